package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore keeps user documents in the Firestore "users" collection.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps an initialized Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (f *FirestoreStore) GetUser(ctx context.Context, uid string) (*User, error) {
	snap, err := f.client.Collection(UsersCollection).Doc(uid).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("user %s: %w", uid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", uid, err)
	}
	return DecodeUser(snap.Data()), nil
}

func (f *FirestoreStore) Merge(ctx context.Context, uid string, fields map[string]any) error {
	if _, err := f.client.Collection(UsersCollection).Doc(uid).Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("merge user %s: %w", uid, err)
	}
	return nil
}

func (f *FirestoreStore) Replace(ctx context.Context, uid, field string, value any) error {
	ref := f.client.Collection(UsersCollection).Doc(uid)
	if _, err := ref.Set(ctx, map[string]any{field: value}, firestore.Merge([]string{field})); err != nil {
		return fmt.Errorf("replace %s on user %s: %w", field, uid, err)
	}
	return nil
}

func (f *FirestoreStore) Set(ctx context.Context, collection, doc string, fields map[string]any) error {
	if _, err := f.client.Collection(collection).Doc(doc).Set(ctx, fields); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, doc, err)
	}
	return nil
}

// Close releases the Firestore client.
func (f *FirestoreStore) Close() error {
	return f.client.Close()
}
