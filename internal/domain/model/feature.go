// Package model contains domain models passed between layers.
package model

import (
	"strconv"
	"time"
)

// Status is the reported condition of a feature.
type Status string

// Feature statuses. StatusUnknown is only ever synthesized for absent
// records and is never stored.
const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusUnknown  Status = "unknown"
)

// Persistable reports whether s may be stored on a record.
func (s Status) Persistable() bool {
	return s == StatusHealthy || s == StatusDegraded
}

// Valid reports whether s is any known status, including unknown.
func (s Status) Valid() bool {
	return s.Persistable() || s == StatusUnknown
}

// FeatureRecord is the unit of registered state, keyed by ID.
// Records are values: the store replaces them whole, never in place.
type FeatureRecord struct {
	ID        int64     `json:"id"`
	Status    Status    `json:"status"`
	Version   string    `json:"version"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultVersion returns the conventional version label for id.
func DefaultVersion(id int64) string {
	return "v" + strconv.FormatInt(id, 10)
}

// ChangeKind names the mutation a Change describes.
type ChangeKind string

// Change kinds.
const (
	ChangeRegistered ChangeKind = "registered"
	ChangeUpdated    ChangeKind = "updated"
	ChangeDeleted    ChangeKind = "deleted"
)

// Change describes one successful registry mutation.
type Change struct {
	ID        string     `json:"id"`
	Seq       uint64     `json:"seq"`
	FeatureID int64      `json:"feature_id"`
	Kind      ChangeKind `json:"kind"`
	Status    Status     `json:"status,omitempty"`
	At        time.Time  `json:"at"`
}
