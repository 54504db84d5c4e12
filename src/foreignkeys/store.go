package foreignkeys

import (
	"context"
	"fmt"
)

// Operator is an atomic array update understood by the document store.
type Operator string

const (
	AddToSet Operator = "$addToSet"
	Pull     Operator = "$pull"
	Set      Operator = "$set"
)

// Store is the partial-update capability the proxy needs from the document store.
// Both calls must be atomic per document; nothing is assumed across documents.
type Store interface {
	// UpdateOne applies op to field on the single document whose id equals id.
	UpdateOne(ctx context.Context, collection string, id any, op Operator, field string, value any) error

	// UpdateMany applies op to field on every document whose id is one of ids.
	UpdateMany(ctx context.Context, collection string, ids []any, op Operator, field string, value any) error
}

// execute performs one atomic update against a single document.
func execute(ctx context.Context, store Store, op Operator, collection string, id any, key string, inverseID any) error {
	if err := store.UpdateOne(ctx, collection, id, op, key, inverseID); err != nil {
		return fmt.Errorf("%s %s on %s %v: %w", op, key, collection, id, err)
	}
	return nil
}
