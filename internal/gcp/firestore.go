package gcp

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/resumeflow/internal/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
// It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreStore is the document store backed by one Firestore collection.
// Every write is a field-level update; documents are never replaced.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

// Get returns the document, or nil without error when it does not exist.
func (s *FirestoreStore) Get(ctx context.Context, id string) (*models.Document, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return decodeDocument(snap)
}

// Update applies a partial update. A nil value clears the field.
func (s *FirestoreStore) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	if _, err := s.client.Collection(s.collection).Doc(id).Update(ctx, toUpdates(fields)); err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	return nil
}

// Transition applies fields only if the current value of field is one of
// allowedFrom, inside a transaction. It reports whether the write happened
// and the value that was found.
func (s *FirestoreStore) Transition(ctx context.Context, id, field string, allowedFrom []string, fields map[string]interface{}) (bool, string, error) {
	ref := s.client.Collection(s.collection).Doc(id)
	var applied bool
	var current string
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied, current = false, ""
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		if v, err := snap.DataAt(field); err == nil {
			current, _ = v.(string)
		}
		for _, allowed := range allowedFrom {
			if current == allowed {
				applied = true
				return tx.Update(ref, toUpdates(fields))
			}
		}
		return nil
	})
	if err != nil {
		return false, current, fmt.Errorf("failed to transition document %s: %w", id, err)
	}
	return applied, current, nil
}

// SetUnset writes each of unsetOnly whose current value is missing or null,
// plus every field of always, in one transaction. It returns the keys of
// unsetOnly that were written.
func (s *FirestoreStore) SetUnset(ctx context.Context, id string, unsetOnly, always map[string]interface{}) ([]string, error) {
	ref := s.client.Collection(s.collection).Doc(id)
	var written []string
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		written = nil
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		data := snap.Data()
		fields := make(map[string]interface{}, len(unsetOnly)+len(always))
		for k, v := range unsetOnly {
			if existing, ok := data[k]; !ok || existing == nil {
				fields[k] = v
				written = append(written, k)
			}
		}
		for k, v := range always {
			fields[k] = v
		}
		if len(fields) == 0 {
			return nil
		}
		return tx.Update(ref, toUpdates(fields))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set unset fields on document %s: %w", id, err)
	}
	sort.Strings(written)
	return written, nil
}

func decodeDocument(snap *firestore.DocumentSnapshot) (*models.Document, error) {
	var doc models.Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", snap.Ref.ID, err)
	}
	doc.ID = snap.Ref.ID
	return &doc, nil
}

// toUpdates converts a field map into Firestore updates in a stable order
// and stamps updatedAt.
func toUpdates(fields map[string]interface{}) []firestore.Update {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]firestore.Update, 0, len(keys)+1)
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: fields[k]})
	}
	if _, ok := fields[models.FieldUpdatedAt]; !ok {
		updates = append(updates, firestore.Update{Path: models.FieldUpdatedAt, Value: firestore.ServerTimestamp})
	}
	return updates
}
