// Package sqlstore implements store.Store on gorm. Postgres is the production backend; sqlite
// serves local runs and tests. The compare-and-swap is a single guarded UPDATE inside the same
// transaction that appends the audit rows.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"course-graph/backend/internal/store"
	apperrors "course-graph/backend/pkg/errors"
	"course-graph/backend/pkg/logger"
)

type graphDocument struct {
	Kind      string         `gorm:"primaryKey;size:32"`
	CourseID  string         `gorm:"primaryKey;size:128"`
	Version   int64          `gorm:"not null"`
	Body      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (graphDocument) TableName() string { return "graph_documents" }

type auditEntry struct {
	Sequence     int64  `gorm:"primaryKey;autoIncrement"`
	ID           string `gorm:"size:36;uniqueIndex"`
	Kind         string `gorm:"size:16;not null"`
	CourseID     string `gorm:"size:128;index:idx_audit_topic,priority:1"`
	TopicID      string `gorm:"size:128;index:idx_audit_topic,priority:2"`
	FromStatus   string `gorm:"size:32"`
	ToStatus     string `gorm:"size:32"`
	Operation    string `gorm:"size:32"`
	TargetID     string `gorm:"size:128"`
	Changes      datatypes.JSON
	ActorID      string `gorm:"size:128"`
	Comment      string
	GraphVersion int64
	At           time.Time
}

func (auditEntry) TableName() string { return "graph_audit" }

// Store is the gorm-backed document store
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenPostgres connects to Postgres and migrates the schema
func OpenPostgres(dsn string) (*Store, error) {
	return open(postgres.Open(dsn), 0)
}

// OpenSQLite opens (or creates) a sqlite database and migrates the schema.
// sqlite allows one writer, so the pool is limited to a single connection.
func OpenSQLite(path string) (*Store, error) {
	return open(sqlite.Open(path), 1)
}

func open(dialector gorm.Dialector, maxOpen int) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, apperrors.NewStorage("open database", err)
	}
	if maxOpen > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, apperrors.NewStorage("open database", err)
		}
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&graphDocument{}, &auditEntry{}); err != nil {
		return nil, apperrors.NewStorage("migrate", err)
	}
	return &Store{db: db, logger: logger.Named("sqlstore")}, nil
}

func (s *Store) Create(ctx context.Context, kind, courseID string, body []byte) (*store.Document, error) {
	row := graphDocument{
		Kind:      kind,
		CourseID:  courseID,
		Version:   1,
		Body:      datatypes.JSON(body),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.NewAlreadyExists(kind, courseID)
		}
		return nil, apperrors.NewStorage("create document", err)
	}
	return toDocument(row), nil
}

func (s *Store) Get(ctx context.Context, kind, courseID string) (*store.Document, error) {
	var row graphDocument
	err := s.db.WithContext(ctx).
		Where("kind = ? AND course_id = ?", kind, courseID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound(kind, courseID)
	}
	if err != nil {
		return nil, apperrors.NewStorage("get document", err)
	}
	return toDocument(row), nil
}

func (s *Store) CompareAndSwap(ctx context.Context, kind, courseID string, expected int64, body []byte, audit []store.AuditRecord) (*store.Document, error) {
	var out graphDocument
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&graphDocument{}).
			Where("kind = ? AND course_id = ? AND version = ?", kind, courseID, expected).
			Updates(map[string]any{
				"version":    gorm.Expr("version + 1"),
				"body":       datatypes.JSON(body),
				"updated_at": now,
			})
		if res.Error != nil {
			return apperrors.NewStorage("compare and swap", res.Error)
		}
		if res.RowsAffected == 0 {
			var cur graphDocument
			err := tx.Where("kind = ? AND course_id = ?", kind, courseID).Take(&cur).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound(kind, courseID)
			}
			if err != nil {
				return apperrors.NewStorage("compare and swap", err)
			}
			return apperrors.NewVersionConflict(kind, courseID, expected, cur.Version)
		}

		if len(audit) > 0 {
			rows := make([]auditEntry, 0, len(audit))
			for _, rec := range audit {
				if rec.ID == "" {
					rec.ID = uuid.New().String()
				}
				changes, err := json.Marshal(rec.Changes)
				if err != nil {
					return apperrors.NewStorage("encode audit changes", err)
				}
				rows = append(rows, auditEntry{
					ID:           rec.ID,
					Kind:         rec.KindOrDefault(),
					CourseID:     courseID,
					TopicID:      rec.TopicID,
					FromStatus:   rec.FromStatus,
					ToStatus:     rec.ToStatus,
					Operation:    rec.Operation,
					TargetID:     rec.TargetID,
					Changes:      datatypes.JSON(changes),
					ActorID:      rec.ActorID,
					Comment:      rec.Comment,
					GraphVersion: expected + 1,
					At:           rec.At,
				})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return apperrors.NewStorage("append audit", err)
			}
		}

		if err := tx.Where("kind = ? AND course_id = ?", kind, courseID).Take(&out).Error; err != nil {
			return apperrors.NewStorage("reload document", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsErrorType(err, apperrors.ErrorTypeVersionConflict) {
			s.logger.Debug("compare and swap rejected",
				zap.String("kind", kind),
				zap.String("course_id", courseID),
				zap.Int64("expected_version", expected),
			)
		}
		return nil, err
	}
	return toDocument(out), nil
}

func (s *Store) AuditLog(ctx context.Context, courseID, topicID string) ([]store.AuditRecord, error) {
	var rows []auditEntry
	query := s.db.WithContext(ctx).Where("course_id = ?", courseID)
	if topicID != "" {
		query = query.Where("topic_id = ?", topicID)
	}
	if err := query.Order("sequence ASC").Find(&rows).Error; err != nil {
		return nil, apperrors.NewStorage("audit log", err)
	}
	out := make([]store.AuditRecord, 0, len(rows))
	for _, r := range rows {
		var changes []string
		if len(r.Changes) > 0 {
			if err := json.Unmarshal(r.Changes, &changes); err != nil {
				return nil, apperrors.NewStorage("decode audit changes", err)
			}
		}
		out = append(out, store.AuditRecord{
			ID:           r.ID,
			Sequence:     r.Sequence,
			Kind:         r.Kind,
			CourseID:     r.CourseID,
			TopicID:      r.TopicID,
			FromStatus:   r.FromStatus,
			ToStatus:     r.ToStatus,
			Operation:    r.Operation,
			TargetID:     r.TargetID,
			Changes:      changes,
			ActorID:      r.ActorID,
			Comment:      r.Comment,
			GraphVersion: r.GraphVersion,
			At:           r.At,
		})
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql handle: %w", err)
	}
	return sqlDB.Close()
}

func toDocument(row graphDocument) *store.Document {
	return &store.Document{
		Kind:      row.Kind,
		CourseID:  row.CourseID,
		Version:   row.Version,
		Body:      append([]byte(nil), row.Body...),
		UpdatedAt: row.UpdatedAt,
	}
}
