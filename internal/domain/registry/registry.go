// Package registry is the authoritative gatekeeper for feature records.
// It is the only component that mutates the store.
package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/featreg/internal/adapters/repository"
	"github.com/okian/featreg/internal/domain/model"
	"github.com/okian/featreg/internal/domain/validation"
	"github.com/okian/featreg/pkg/logger"
	"github.com/okian/featreg/pkg/metrics"
)

// Publisher receives a Change after every successful mutation.
// Publish must not block; it reports false when the change was dropped.
type Publisher interface {
	Publish(ctx context.Context, c model.Change) bool
}

// Registry owns the feature store and enforces its invariants.
type Registry struct {
	store     repository.Store
	clock     model.Clock
	publisher Publisher
	logger    logger.Logger

	seq atomic.Uint64
}

// New constructs a Registry over store.
func New(store repository.Store, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		clock:  model.NewMonotonicClock(nil),
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates a healthy record for id holding data.
func (r *Registry) Register(ctx context.Context, id int64, data string) (rec model.FeatureRecord, err error) {
	defer r.observe("register", time.Now(), &err)

	var change model.Change
	rec, err = r.store.Create(ctx, id, func() (model.FeatureRecord, error) {
		now := r.clock.Now()
		candidate := model.FeatureRecord{
			ID:        id,
			Status:    model.StatusHealthy,
			Version:   model.DefaultVersion(id),
			Data:      data,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := validation.Record(candidate); err != nil {
			return model.FeatureRecord{}, err
		}
		change = r.newChange(candidate, model.ChangeRegistered, now)
		return candidate, nil
	})
	if err != nil {
		return model.FeatureRecord{}, err
	}

	r.logger.Debug(ctx, "feature registered", logger.Int64("feature_id", id))
	r.publish(ctx, change)
	return rec, nil
}

// Get returns the record for id. It has no side effects.
func (r *Registry) Get(ctx context.Context, id int64) (rec model.FeatureRecord, err error) {
	defer r.observe("get", time.Now(), &err)
	return r.store.Get(ctx, id)
}

// Update applies fields to the record for id and refreshes updated_at.
// Fields that are not supplied are left untouched.
func (r *Registry) Update(ctx context.Context, id int64, fields model.Fields) (rec model.FeatureRecord, err error) {
	defer r.observe("update", time.Now(), &err)

	if err := validation.Fields(fields); err != nil {
		return model.FeatureRecord{}, err
	}

	var change model.Change
	rec, err = r.store.Update(ctx, id, func(cur model.FeatureRecord) (model.FeatureRecord, error) {
		next := fields.Apply(cur)
		next.UpdatedAt = r.clock.Now()
		if next.UpdatedAt.Before(cur.UpdatedAt) {
			next.UpdatedAt = cur.UpdatedAt
		}
		if err := validation.Record(next); err != nil {
			return model.FeatureRecord{}, err
		}
		change = r.newChange(next, model.ChangeUpdated, next.UpdatedAt)
		return next, nil
	})
	if err != nil {
		return model.FeatureRecord{}, err
	}

	r.logger.Debug(ctx, "feature updated", logger.Int64("feature_id", id), logger.String("status", string(rec.Status)))
	r.publish(ctx, change)
	return rec, nil
}

// List returns every record ordered by id ascending.
func (r *Registry) List(ctx context.Context) []model.FeatureRecord {
	var err error
	defer r.observe("list", time.Now(), &err)
	return r.store.List(ctx)
}

// Delete removes the record for id. Deletion is terminal; registering the id
// again creates a new record.
func (r *Registry) Delete(ctx context.Context, id int64) (err error) {
	defer r.observe("delete", time.Now(), &err)

	var change model.Change
	_, err = r.store.Delete(ctx, id, func(cur model.FeatureRecord) error {
		change = r.newChange(cur, model.ChangeDeleted, r.clock.Now())
		change.Status = ""
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug(ctx, "feature deleted", logger.Int64("feature_id", id))
	r.publish(ctx, change)
	return nil
}

// Count returns the number of registered features.
func (r *Registry) Count(ctx context.Context) int {
	return r.store.Count(ctx)
}

// StatusCounts returns the number of registered features per status.
func (r *Registry) StatusCounts(ctx context.Context) map[model.Status]int {
	return r.store.StatusCounts(ctx)
}

// newChange runs under the key's write lock, so Seq follows commit order
// for any single feature.
func (r *Registry) newChange(rec model.FeatureRecord, kind model.ChangeKind, at time.Time) model.Change {
	return model.Change{
		ID:        uuid.NewString(),
		Seq:       r.seq.Add(1),
		FeatureID: rec.ID,
		Kind:      kind,
		Status:    rec.Status,
		At:        at,
	}
}

func (r *Registry) publish(ctx context.Context, c model.Change) {
	metrics.UpdateFeaturesTotal(r.store.Count(ctx))
	if r.publisher == nil {
		return
	}
	if !r.publisher.Publish(ctx, c) {
		r.logger.Warn(ctx, "change not published",
			logger.Int64("feature_id", c.FeatureID),
			logger.String("kind", string(c.Kind)),
		)
	}
}

func (r *Registry) observe(op string, start time.Time, errp *error) {
	metrics.RecordFeatureOperationLatency(op, float64(time.Since(start).Microseconds())/1000)
	outcome := Outcome(*errp)
	metrics.RecordFeatureOperation(op, outcome)
	if outcome != "ok" {
		metrics.RecordErrorByComponent("registry", outcome)
	}
}

// Outcome classifies err into a short label for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidField):
		return "invalid_field"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
