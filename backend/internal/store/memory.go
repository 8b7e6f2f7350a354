package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "course-graph/backend/pkg/errors"
)

type docKey struct {
	kind     string
	courseID string
}

// MemoryStore keeps documents in process. The mutex makes each compare-and-swap a single atomic
// step; it is held only for the compare and the swap, never across caller work.
type MemoryStore struct {
	mu    sync.Mutex
	docs  map[docKey]*Document
	audit []AuditRecord
	seq   int64
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[docKey]*Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(_ context.Context, kind, courseID string, body []byte) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := docKey{kind, courseID}
	if _, ok := s.docs[k]; ok {
		return nil, apperrors.NewAlreadyExists(kind, courseID)
	}
	doc := &Document{Kind: kind, CourseID: courseID, Version: 1, Body: copyBytes(body), UpdatedAt: s.now()}
	s.docs[k] = doc
	return doc.copy(), nil
}

func (s *MemoryStore) Get(_ context.Context, kind, courseID string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[docKey{kind, courseID}]
	if !ok {
		return nil, apperrors.NewNotFound(kind, courseID)
	}
	return doc.copy(), nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, kind, courseID string, expected int64, body []byte, audit []AuditRecord) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[docKey{kind, courseID}]
	if !ok {
		return nil, apperrors.NewNotFound(kind, courseID)
	}
	if doc.Version != expected {
		return nil, apperrors.NewVersionConflict(kind, courseID, expected, doc.Version)
	}
	return s.commit(doc, body, audit), nil
}

// commit must be called with s.mu held
func (s *MemoryStore) commit(doc *Document, body []byte, audit []AuditRecord) *Document {
	doc.Version++
	doc.Body = copyBytes(body)
	doc.UpdatedAt = s.now()
	for _, rec := range audit {
		s.seq++
		rec.Sequence = s.seq
		rec.GraphVersion = doc.Version
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		rec.Kind = rec.KindOrDefault()
		rec.Changes = append([]string(nil), rec.Changes...)
		s.audit = append(s.audit, rec)
	}
	return doc.copy()
}

func (s *MemoryStore) AuditLog(_ context.Context, courseID, topicID string) ([]AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []AuditRecord{}
	for _, rec := range s.audit {
		if rec.CourseID == courseID && (topicID == "" || rec.TopicID == topicID) {
			rec.Changes = append([]string(nil), rec.Changes...)
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func (d *Document) copy() *Document {
	c := *d
	c.Body = copyBytes(d.Body)
	return &c
}

func copyBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
