// Package repository holds the in-memory feature record store.
package repository

import (
	"context"

	"github.com/okian/featreg/internal/domain/model"
)

// Store provides keyed, per-record atomic access to feature records.
//
// Callbacks passed to Create, Update and Delete run while the key's write
// lock is held, so for a given id they never interleave. Callbacks must not
// call back into the store.
type Store interface {
	// Create stores the record returned by build. Returns ErrAlreadyExists
	// without calling build when id is present.
	Create(ctx context.Context, id int64, build func() (model.FeatureRecord, error)) (model.FeatureRecord, error)

	// Update replaces the record with the one returned by mutate.
	// Returns ErrNotFound when id is absent.
	Update(ctx context.Context, id int64, mutate func(cur model.FeatureRecord) (model.FeatureRecord, error)) (model.FeatureRecord, error)

	// Delete removes the record once check approves it and returns the
	// removed record. Returns ErrNotFound when id is absent.
	Delete(ctx context.Context, id int64, check func(cur model.FeatureRecord) error) (model.FeatureRecord, error)

	// Get returns the current record or ErrNotFound.
	Get(ctx context.Context, id int64) (model.FeatureRecord, error)

	// List returns every record ordered by id ascending.
	List(ctx context.Context) []model.FeatureRecord

	// Count returns the number of stored records.
	Count(ctx context.Context) int

	// StatusCounts returns the number of records per status.
	StatusCounts(ctx context.Context) map[model.Status]int
}
