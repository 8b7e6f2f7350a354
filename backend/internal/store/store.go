// Package store is the persistence boundary for versioned graph documents. A document is a JSON
// body keyed by (kind, course id) with an integer version that every accepted write bumps by one.
package store

import (
	"context"
	"time"
)

// Document is one stored version of a graph document
type Document struct {
	Kind      string    `json:"kind"`
	CourseID  string    `json:"courseId"`
	Version   int64     `json:"version"`
	Body      []byte    `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Audit record kinds
const (
	AuditKindTransition = "transition"
	AuditKindEdit       = "edit"
)

// AuditRecord is one append-only entry of a course's history: an approval transition, or a
// content edit naming its operation, target node and changes.
type AuditRecord struct {
	ID           string    `json:"id"`
	Sequence     int64     `json:"sequence"`
	Kind         string    `json:"kind"`
	CourseID     string    `json:"courseId"`
	TopicID      string    `json:"topicId"`
	FromStatus   string    `json:"from,omitempty"`
	ToStatus     string    `json:"to,omitempty"`
	Operation    string    `json:"operation,omitempty"`
	TargetID     string    `json:"targetId,omitempty"`
	Changes      []string  `json:"changes,omitempty"`
	ActorID      string    `json:"actorId,omitempty"`
	Comment      string    `json:"comment,omitempty"`
	GraphVersion int64     `json:"graphVersion"`
	At           time.Time `json:"at"`
}

// KindOrDefault treats records written without a kind as transitions
func (r AuditRecord) KindOrDefault() string {
	if r.Kind == "" {
		return AuditKindTransition
	}
	return r.Kind
}

// Store persists versioned documents. Every write is atomic: the body, the version bump and any
// audit records are committed together or not at all.
type Store interface {
	// Create stores body as version 1. Fails AlreadyExists if the document exists.
	Create(ctx context.Context, kind, courseID string, body []byte) (*Document, error)
	// Get returns the current version. Fails NotFound if absent.
	Get(ctx context.Context, kind, courseID string) (*Document, error)
	// CompareAndSwap writes only if the stored version equals expected; otherwise it fails
	// VersionConflict and returns no document.
	CompareAndSwap(ctx context.Context, kind, courseID string, expected int64, body []byte, audit []AuditRecord) (*Document, error)
	// AuditLog returns a topic's audit records in append order, or the whole course's when
	// topicID is empty.
	AuditLog(ctx context.Context, courseID, topicID string) ([]AuditRecord, error)
	// Close releases backend resources.
	Close() error
}
