package internal

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/dgellow/bff-front/internal/agent"
	"github.com/dgellow/bff-front/internal/bff"
	"github.com/dgellow/bff-front/internal/config"
	"github.com/dgellow/bff-front/internal/flagstore"
	"github.com/dgellow/bff-front/internal/flow"
	"github.com/dgellow/bff-front/internal/log"
)

// BFFFront is the complete login client with all dependencies built
type BFFFront struct {
	config       config.Config
	store        flagstore.Store
	orchestrator *flow.Orchestrator
	out          io.Writer

	// open overrides how authorization URLs reach the user
	open agent.Opener
}

// NewBFFFront builds the flag store, BFF client and flow orchestrator
func NewBFFFront(ctx context.Context, cfg config.Config, out io.Writer) (*BFFFront, error) {
	log.LogInfoWithFields("bfffront", "Building login client", map[string]any{
		"bff":      cfg.BFF.BaseURL,
		"store":    string(cfg.Store.Kind),
		"clientId": cfg.Provider.ClientID,
	})

	store, err := setupStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to setup flag store: %w", err)
	}

	orchestrator, err := setupFlow(cfg, flagstore.NewFlags(store))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &BFFFront{
		config:       cfg,
		store:        store,
		orchestrator: orchestrator,
		out:          out,
	}, nil
}

// Run signs in (silently when possible) and returns the rendered resource.
// SIGINT and SIGTERM cancel the run.
func (b *BFFFront) Run(ctx context.Context) (*agent.Result, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	receiver, err := agent.NewReceiver(b.config.Provider.RedirectURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start redirect receiver: %w", err)
	}

	a, err := b.newAgent(receiver)
	if err != nil {
		return nil, err
	}

	log.LogInfoWithFields("bfffront", "Loading application", map[string]any{
		"appUrl":   b.config.Agent.AppURL,
		"receiver": receiver.Addr().String(),
	})
	return a.Run(ctx)
}

// Logout clears local flags and ends the BFF session
func (b *BFFFront) Logout(ctx context.Context) error {
	a, err := b.newAgent(nil)
	if err != nil {
		return err
	}
	return a.Logout(ctx)
}

// Close releases the flag store
func (b *BFFFront) Close() error {
	return b.store.Close()
}

func (b *BFFFront) newAgent(receiver *agent.Receiver) (*agent.Agent, error) {
	a, err := agent.New(agent.Options{
		Flow:     b.orchestrator,
		AppURL:   b.config.Agent.AppURL,
		Receiver: receiver,
		MaxLoads: b.config.Agent.MaxLoads,
		Open:     b.open,
		Out:      b.out,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user agent: %w", err)
	}
	return a, nil
}

func setupFlow(cfg config.Config, flags *flagstore.Flags) (*flow.Orchestrator, error) {
	client, err := bff.New(bff.Config{
		BaseURL: cfg.BFF.BaseURL,
		Timeout: cfg.BFF.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create BFF client: %w", err)
	}

	authorizer, err := flow.NewAuthorizer(flow.ProviderConfig{
		AuthorizationURL: cfg.Provider.AuthorizationURL,
		ClientID:         cfg.Provider.ClientID,
		RedirectURI:      cfg.Provider.RedirectURI,
		Scopes:           cfg.Provider.Scopes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider authorizer: %w", err)
	}

	orchestrator, err := flow.NewOrchestrator(flow.Options{
		Flags:       flags,
		Backend:     client,
		Authorizer:  authorizer,
		StateLength: cfg.Agent.StateLength,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create flow orchestrator: %w", err)
	}
	return orchestrator, nil
}

func setupStore(ctx context.Context, cfg config.StoreConfig) (flagstore.Store, error) {
	switch cfg.Kind {
	case config.StoreKindSQLite:
		log.LogInfoWithFields("storage", "Using SQLite flag store", map[string]any{
			"path": cfg.Path,
		})
		return flagstore.NewSQLiteStore(ctx, cfg.Path)

	case config.StoreKindRedis:
		log.LogInfoWithFields("storage", "Using Redis flag store", map[string]any{
			"addr":   cfg.RedisAddr,
			"prefix": cfg.KeyPrefix,
		})
		return flagstore.DialRedisStore(ctx, cfg.RedisAddr, string(cfg.RedisPassword), cfg.KeyPrefix)

	case config.StoreKindFirestore:
		log.LogInfoWithFields("storage", "Using Firestore flag store", map[string]any{
			"project":    cfg.GCPProject,
			"database":   cfg.FirestoreDatabase,
			"collection": cfg.FirestoreCollection,
		})
		return flagstore.NewFirestoreStore(ctx, cfg.GCPProject, cfg.FirestoreDatabase, cfg.FirestoreCollection)

	case config.StoreKindMemory, "":
		log.LogInfoWithFields("storage", "Using in-memory flag store", map[string]any{})
		return flagstore.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}
