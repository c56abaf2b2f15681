package flagstore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ Store = (*FirestoreStore)(nil)
var _ Taker = (*FirestoreStore)(nil)

// DefaultFirestoreCollection is used when no collection is configured
const DefaultFirestoreCollection = "bff_front_flags"

// FlagDoc is the Firestore document stored per key
type FlagDoc struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// FirestoreStore keeps one document per flag in a collection. The collection
// is the namespace: agents sharing it share flags.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore connects to the given project and (optional) database
func NewFirestoreStore(ctx context.Context, projectID, database, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		collection = DefaultFirestoreCollection
	}

	var client *firestore.Client
	var err error
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(key)
}

func (s *FirestoreStore) Get(ctx context.Context, key string) (string, bool, error) {
	snap, err := s.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get flag from Firestore: %w", err)
	}

	var doc FlagDoc
	if err := snap.DataTo(&doc); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal flag: %w", err)
	}
	return doc.Value, true, nil
}

func (s *FirestoreStore) Set(ctx context.Context, key, value string) error {
	_, err := s.doc(key).Set(ctx, FlagDoc{Value: value, UpdatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to store flag in Firestore: %w", err)
	}
	return nil
}

// Remove succeeds for documents that do not exist
func (s *FirestoreStore) Remove(ctx context.Context, key string) error {
	if _, err := s.doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete flag from Firestore: %w", err)
	}
	return nil
}

// Take reads and deletes the document inside one transaction
func (s *FirestoreStore) Take(ctx context.Context, key string) (string, bool, error) {
	var value string
	var found bool

	ref := s.doc(key)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		found = false
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}

		var doc FlagDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("failed to unmarshal flag: %w", err)
		}
		value, found = doc.Value, true
		return tx.Delete(ref)
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to take flag from Firestore: %w", err)
	}
	return value, found, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
