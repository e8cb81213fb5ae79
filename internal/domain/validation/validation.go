// Package validation checks feature writes before they reach the store.
// Every function here is pure: no I/O, no clock, no shared state.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/featreg/internal/domain/model"
)

// updatable lists the fields an update may carry.
var updatable = map[string]struct{}{
	model.FieldStatus:  {},
	model.FieldData:    {},
	model.FieldVersion: {},
}

// Fields validates a partial update. Keys are checked in sorted order so the
// reported error is deterministic.
func Fields(f model.Fields) error {
	if len(f) == 0 {
		return fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch k {
		case model.FieldID, model.FieldFeatureID:
			return fmt.Errorf("%w: %s is immutable", ErrInvalidField, k)
		}
		if _, ok := updatable[k]; !ok {
			return fmt.Errorf("%w: unrecognized field %q", ErrInvalidField, k)
		}
	}

	if v, ok := f[model.FieldStatus]; ok {
		if err := status(model.Status(v)); err != nil {
			return err
		}
	}
	if v, ok := f[model.FieldVersion]; ok && strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: version must not be empty", ErrInvalidInput)
	}
	return nil
}

// Record validates the full logical write. Both feature_id and status are
// required for a record to be accepted.
func Record(rec model.FeatureRecord) error {
	if rec.ID <= 0 {
		return fmt.Errorf("%w: missing feature_id", ErrInvalidInput)
	}
	if err := status(rec.Status); err != nil {
		return err
	}
	if rec.UpdatedAt.Before(rec.CreatedAt) {
		return fmt.Errorf("%w: updated_at precedes created_at", ErrInvalidInput)
	}
	return nil
}

func status(s model.Status) error {
	switch {
	case s == "":
		return fmt.Errorf("%w: missing status", ErrInvalidInput)
	case !s.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
	case !s.Persistable():
		return fmt.Errorf("%w: status %q cannot be stored", ErrInvalidInput, s)
	}
	return nil
}
