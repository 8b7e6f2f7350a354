package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"course-graph/backend/internal/constants"
	"course-graph/backend/internal/store"
	apperrors "course-graph/backend/pkg/errors"
	"course-graph/backend/pkg/logger"
)

// Repository stores versioned graph documents in Neo4j. Concept graph documents are also
// projected into (:Concept)-[:RELATES]->(:Concept) so they can be traversed with Cypher.
type Repository struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext) *Repository {
	return &Repository{
		driver: driver,
		logger: logger.Named("neo4j"),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// EnsureSchema creates the constraints the repository relies on. Existing constraints are kept.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT graph_document_key IF NOT EXISTS FOR (d:GraphDocument) REQUIRE (d.kind, d.course_id) IS UNIQUE",
		"CREATE CONSTRAINT concept_key IF NOT EXISTS FOR (c:Concept) REQUIRE (c.course_id, c.id) IS UNIQUE",
		"CREATE CONSTRAINT audit_entry_id IF NOT EXISTS FOR (a:AuditEntry) REQUIRE a.id IS UNIQUE",
	}
	for _, c := range constraints {
		if _, err := session.Run(ctx, c, nil); err != nil {
			return apperrors.NewStorage("ensure schema", err)
		}
	}
	r.logger.Info("Neo4j schema ensured", zap.Int("constraints", len(constraints)))
	return nil
}

// Create stores body as version 1 of a new document
func (r *Repository) Create(ctx context.Context, kind, courseID string, body []byte) (*store.Document, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	now := time.Now().UTC()
	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			OPTIONAL MATCH (existing:GraphDocument {kind: $kind, course_id: $courseID})
			WITH existing WHERE existing IS NULL
			CREATE (d:GraphDocument {
				kind: $kind,
				course_id: $courseID,
				version: 1,
				audit_seq: 0,
				body: $body,
				updated_at: $now
			})
			RETURN d.version as version
		`
		result, err := tx.Run(ctx, query, map[string]interface{}{
			"kind":     kind,
			"courseID": courseID,
			"body":     string(body),
			"now":      now.Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, apperrors.NewStorage("create document", err)
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, apperrors.NewStorage("create document", err)
			}
			return nil, apperrors.NewAlreadyExists(kind, courseID)
		}
		if kind == constants.KindConceptGraph {
			if err := projectConcepts(ctx, tx, courseID, body); err != nil {
				return nil, err
			}
		}
		return &store.Document{Kind: kind, CourseID: courseID, Version: 1, Body: body, UpdatedAt: now}, nil
	})
	if err != nil {
		// A concurrent create passed the guard too; the graph_document_key constraint decides
		if isConstraintViolation(err) {
			return nil, apperrors.NewAlreadyExists(kind, courseID)
		}
		return nil, err
	}
	return out.(*store.Document), nil
}

// Get returns the current version of a document
func (r *Repository) Get(ctx context.Context, kind, courseID string) (*store.Document, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (d:GraphDocument {kind: $kind, course_id: $courseID})
		RETURN d.version as version, d.body as body, d.updated_at as updated_at
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"kind":     kind,
		"courseID": courseID,
	})
	if err != nil {
		return nil, apperrors.NewStorage("get document", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, apperrors.NewStorage("get document", err)
		}
		return nil, apperrors.NewNotFound(kind, courseID)
	}

	record := result.Record()
	return &store.Document{
		Kind:      kind,
		CourseID:  courseID,
		Version:   getInt64FromRecord(record, "version"),
		Body:      []byte(getStringFromRecord(record, "body")),
		UpdatedAt: getTimeFromRecord(record, "updated_at"),
	}, nil
}

// CompareAndSwap writes a new body when the stored version equals expected.
//
// The first statement writes a lock token on the document node, so the version read after it
// cannot change underneath this transaction; a concurrent writer waits and then sees the bumped
// version.
func (r *Repository) CompareAndSwap(ctx context.Context, kind, courseID string, expected int64, body []byte, audit []store.AuditRecord) (*store.Document, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		params := map[string]interface{}{
			"kind":     kind,
			"courseID": courseID,
			"token":    uuid.New().String(),
		}
		result, err := tx.Run(ctx, `
			MATCH (d:GraphDocument {kind: $kind, course_id: $courseID})
			SET d.lock_token = $token
			RETURN d.version as version, coalesce(d.audit_seq, 0) as audit_seq
		`, params)
		if err != nil {
			return nil, apperrors.NewStorage("compare and swap", err)
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, apperrors.NewStorage("compare and swap", err)
			}
			return nil, apperrors.NewNotFound(kind, courseID)
		}
		current := getInt64FromRecord(result.Record(), "version")
		seq := getInt64FromRecord(result.Record(), "audit_seq")
		if current != expected {
			return nil, apperrors.NewVersionConflict(kind, courseID, expected, current)
		}

		now := time.Now().UTC()
		records := make([]map[string]interface{}, 0, len(audit))
		for _, rec := range audit {
			seq++
			if rec.ID == "" {
				rec.ID = uuid.New().String()
			}
			changes := rec.Changes
			if changes == nil {
				changes = []string{}
			}
			records = append(records, map[string]interface{}{
				"id":        rec.ID,
				"sequence":  seq,
				"kind":      rec.KindOrDefault(),
				"topic_id":  rec.TopicID,
				"from":      rec.FromStatus,
				"to":        rec.ToStatus,
				"operation": rec.Operation,
				"target_id": rec.TargetID,
				"changes":   changes,
				"actor_id":  rec.ActorID,
				"comment":   rec.Comment,
				"at":        rec.At.UTC().Format(time.RFC3339Nano),
			})
		}

		_, err = tx.Run(ctx, `
			MATCH (d:GraphDocument {kind: $kind, course_id: $courseID})
			SET d.version = d.version + 1,
			    d.body = $body,
			    d.updated_at = $now,
			    d.audit_seq = $seq
			REMOVE d.lock_token
			WITH d
			UNWIND $records AS rec
			CREATE (a:AuditEntry {
				id: rec.id,
				sequence: rec.sequence,
				kind: rec.kind,
				course_id: $courseID,
				topic_id: rec.topic_id,
				from_status: rec.from,
				to_status: rec.to,
				operation: rec.operation,
				target_id: rec.target_id,
				changes: rec.changes,
				actor_id: rec.actor_id,
				comment: rec.comment,
				graph_version: d.version,
				at: rec.at
			})-[:AUDITS]->(d)
		`, map[string]interface{}{
			"kind":     kind,
			"courseID": courseID,
			"body":     string(body),
			"now":      now.Format(time.RFC3339Nano),
			"seq":      seq,
			"records":  records,
		})
		if err != nil {
			return nil, apperrors.NewStorage("compare and swap", err)
		}

		if kind == constants.KindConceptGraph {
			if err := projectConcepts(ctx, tx, courseID, body); err != nil {
				return nil, err
			}
		}
		return &store.Document{Kind: kind, CourseID: courseID, Version: expected + 1, Body: body, UpdatedAt: now}, nil
	})
	if err != nil {
		if apperrors.IsErrorType(err, apperrors.ErrorTypeVersionConflict) {
			r.logger.Debug("Compare and swap rejected",
				zap.String("kind", kind),
				zap.String("course_id", courseID),
				zap.Int64("expected_version", expected),
			)
		}
		return nil, err
	}
	return out.(*store.Document), nil
}

// AuditLog returns a topic's audit entries in append order, or every entry of the course when
// topicID is empty
func (r *Repository) AuditLog(ctx context.Context, courseID, topicID string) ([]store.AuditRecord, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (a:AuditEntry {course_id: $courseID})
		WHERE $topicID = '' OR a.topic_id = $topicID
		RETURN a.id as id, a.sequence as sequence, coalesce(a.kind, 'transition') as kind,
		       a.topic_id as topic_id, a.from_status as from_status, a.to_status as to_status,
		       a.operation as operation, a.target_id as target_id, a.changes as changes,
		       a.actor_id as actor_id, a.comment as comment, a.graph_version as graph_version, a.at as at
		ORDER BY a.sequence ASC
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"courseID": courseID,
		"topicID":  topicID,
	})
	if err != nil {
		return nil, apperrors.NewStorage("audit log", err)
	}

	records := []store.AuditRecord{}
	for result.Next(ctx) {
		record := result.Record()
		records = append(records, store.AuditRecord{
			ID:           getStringFromRecord(record, "id"),
			Sequence:     getInt64FromRecord(record, "sequence"),
			Kind:         getStringFromRecord(record, "kind"),
			CourseID:     courseID,
			TopicID:      getStringFromRecord(record, "topic_id"),
			FromStatus:   getStringFromRecord(record, "from_status"),
			ToStatus:     getStringFromRecord(record, "to_status"),
			Operation:    getStringFromRecord(record, "operation"),
			TargetID:     getStringFromRecord(record, "target_id"),
			Changes:      auditChanges(getStringSliceFromRecord(record, "changes")),
			ActorID:      getStringFromRecord(record, "actor_id"),
			Comment:      getStringFromRecord(record, "comment"),
			GraphVersion: getInt64FromRecord(record, "graph_version"),
			At:           getTimeFromRecord(record, "at"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return records, nil
}

// Neo4j cannot tell an empty list property from a missing one; both read back as nil
func auditChanges(changes []string) []string {
	if len(changes) == 0 {
		return nil
	}
	return changes
}
