package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dgellow/bff-front/internal"
	"github.com/dgellow/bff-front/internal/config"
	"github.com/dgellow/bff-front/internal/log"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": "v0.0.1",
		"provider": map[string]any{
			"authorizationUrl": "https://login.yourcompany.com/oauth2/authorize",
			"clientId":         "todoapp-client",
			"redirectUri":      "http://localhost:8080/",
			"scopes":           []string{"openid"},
		},
		"bff": map[string]any{
			"baseUrl": "https://localhost:8902",
			"timeout": "15s",
		},
		"store": map[string]any{
			"kind": "sqlite",
			"path": "bff-front.db",
		},
		"agent": map[string]any{
			"maxLoads": 5,
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Printf("Validating: %s\n", path)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		printIssues(result.Errors)
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(result.Warnings))
		printIssues(result.Warnings)
	}

	fmt.Println()
	switch {
	case result.IsValid() && len(result.Warnings) == 0:
		fmt.Println("Result: PASS")
	case result.IsValid():
		fmt.Println("Result: FAIL (warnings present)")
	default:
		fmt.Println("Result: FAIL")
	}

	if len(result.Errors) > 0 || len(result.Warnings) > 0 {
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
	}
	return nil
}

func printIssues(issues []config.ValidationError) {
	for _, issue := range issues {
		if issue.Path != "" {
			fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
		} else {
			fmt.Printf("  - %s\n", issue.Message)
		}
	}
}

func closeFront(b *internal.BFFFront) {
	if err := b.Close(); err != nil {
		log.LogError("Failed to close flag store: %v", err)
	}
}

func main() {
	conf := flag.String("config", "", "path to config file (required)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	logout := flag.Bool("logout", false, "clear local login flags, end the BFF session and exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *validate {
		if *conf == "" {
			fmt.Fprintf(os.Stderr, "Error: -config flag is required for validation\n")
			os.Exit(1)
		}
		if err := validateConfig(*conf); err != nil {
			os.Exit(1)
		}
		return
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting bff-front", map[string]any{
		"version": BuildVersion,
		"config":  *conf,
	})

	ctx := context.Background()
	bffFront, err := internal.NewBFFFront(ctx, cfg, os.Stderr)
	if err != nil {
		log.LogError("Failed to create login client: %v", err)
		os.Exit(1)
	}

	if *logout {
		err = bffFront.Logout(ctx)
		closeFront(bffFront)
		if err != nil {
			log.LogError("Failed to log out: %v", err)
			os.Exit(1)
		}
		fmt.Println("Logged out")
		return
	}

	result, err := bffFront.Run(ctx)
	closeFront(bffFront)
	if err != nil {
		log.LogError("Failed to load resource: %v", err)
		os.Exit(1)
	}
	fmt.Println(result.Payload)
}
