// Package storetest holds the behaviour every store.Store backend must share. Backend packages
// call Run from their own tests with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-graph/backend/internal/store"
	apperrors "course-graph/backend/pkg/errors"
)

const kind = "course_graph"

// CoursePrefix starts every course id Run creates, so shared backends can clean up after it
const CoursePrefix = "storetest-"

func newCourseID() string {
	return CoursePrefix + uuid.NewString()
}

// Run exercises create, read, compare-and-swap and audit semantics against a backend
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("CreateThenGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		courseID := newCourseID()

		doc, err := s.Create(ctx, kind, courseID, []byte(`{"a":1}`))
		require.NoError(t, err)
		assert.Equal(t, int64(1), doc.Version)

		got, err := s.Get(ctx, kind, courseID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
		assert.JSONEq(t, `{"a":1}`, string(got.Body))

		_, err = s.Create(ctx, kind, courseID, []byte(`{}`))
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeAlreadyExists))

		_, err = s.Get(ctx, "concept_graph", courseID)
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound), "kinds are independent")
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		courseID := newCourseID()
		_, err := s.Create(ctx, kind, courseID, []byte(`{"v":1}`))
		require.NoError(t, err)

		doc, err := s.CompareAndSwap(ctx, kind, courseID, 1, []byte(`{"v":2}`), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), doc.Version)

		_, err = s.CompareAndSwap(ctx, kind, courseID, 1, []byte(`{"v":"stale"}`), nil)
		require.Error(t, err)
		var conflict *apperrors.ErrVersionConflict
		require.True(t, apperrors.As(err, &conflict))
		assert.Equal(t, int64(2), conflict.CurrentVersion)

		got, err := s.Get(ctx, kind, courseID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		assert.JSONEq(t, `{"v":2}`, string(got.Body))

		_, err = s.CompareAndSwap(ctx, kind, "missing", 1, []byte(`{}`), nil)
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("AuditCommittedWithSwap", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		courseID := newCourseID()
		_, err := s.Create(ctx, kind, courseID, []byte(`{}`))
		require.NoError(t, err)

		at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		_, err = s.CompareAndSwap(ctx, kind, courseID, 1, []byte(`{"n":1}`), []store.AuditRecord{
			{CourseID: courseID, TopicID: "t1", FromStatus: "NOT_STARTED", ToStatus: "GENERATED", ActorID: "gen", At: at},
			{CourseID: courseID, TopicID: "t2", FromStatus: "NOT_STARTED", ToStatus: "GENERATED", ActorID: "gen", At: at},
		})
		require.NoError(t, err)
		_, err = s.CompareAndSwap(ctx, kind, courseID, 2, []byte(`{"n":2}`), []store.AuditRecord{
			{CourseID: courseID, TopicID: "t1", FromStatus: "GENERATED", ToStatus: "APPROVED", ActorID: "r1", Comment: "ok", At: at},
		})
		require.NoError(t, err)

		// a rejected swap must not leave audit rows behind
		_, err = s.CompareAndSwap(ctx, kind, courseID, 1, []byte(`{}`), []store.AuditRecord{
			{CourseID: courseID, TopicID: "t1", FromStatus: "APPROVED", ToStatus: "GENERATED", ActorID: "late", At: at},
		})
		require.Error(t, err)

		trail, err := s.AuditLog(ctx, courseID, "t1")
		require.NoError(t, err)
		require.Len(t, trail, 2)
		assert.Equal(t, "GENERATED", trail[0].ToStatus)
		assert.Equal(t, int64(2), trail[0].GraphVersion)
		assert.Equal(t, "APPROVED", trail[1].ToStatus)
		assert.Equal(t, "ok", trail[1].Comment)
		assert.Equal(t, int64(3), trail[1].GraphVersion)
		assert.Less(t, trail[0].Sequence, trail[1].Sequence)
		assert.NotEmpty(t, trail[0].ID)

		empty, err := s.AuditLog(ctx, courseID, "t9")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("EditRecordsShareTheLog", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		courseID := newCourseID()
		_, err := s.Create(ctx, kind, courseID, []byte(`{}`))
		require.NoError(t, err)

		at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		_, err = s.CompareAndSwap(ctx, kind, courseID, 1, []byte(`{"n":1}`), []store.AuditRecord{
			{CourseID: courseID, TopicID: "t1", FromStatus: "NOT_STARTED", ToStatus: "GENERATED", ActorID: "gen", At: at},
		})
		require.NoError(t, err)
		_, err = s.CompareAndSwap(ctx, kind, courseID, 2, []byte(`{"n":2}`), []store.AuditRecord{
			{Kind: store.AuditKindEdit, CourseID: courseID, TopicID: "t1", Operation: "update_slide", TargetID: "s1", Changes: []string{"title", "bullets"}, At: at},
			{Kind: store.AuditKindEdit, CourseID: courseID, Operation: "rename_module", TargetID: "m1", Changes: []string{"name"}, At: at},
		})
		require.NoError(t, err)

		topic, err := s.AuditLog(ctx, courseID, "t1")
		require.NoError(t, err)
		require.Len(t, topic, 2)
		assert.Equal(t, store.AuditKindTransition, topic[0].Kind)
		assert.Empty(t, topic[0].Changes)
		assert.Equal(t, store.AuditKindEdit, topic[1].Kind)
		assert.Equal(t, "update_slide", topic[1].Operation)
		assert.Equal(t, "s1", topic[1].TargetID)
		assert.Equal(t, []string{"title", "bullets"}, topic[1].Changes)
		assert.Equal(t, int64(3), topic[1].GraphVersion)

		all, err := s.AuditLog(ctx, courseID, "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "rename_module", all[2].Operation)
		assert.Equal(t, "", all[2].TopicID)
		assert.Equal(t, []string{"name"}, all[2].Changes)
	})

	t.Run("ConcurrentCreatesOneWins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		courseID := newCourseID()

		const creators = 8
		var wins, exists atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < creators; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Create(ctx, kind, courseID, []byte(`{}`))
				switch {
				case err == nil:
					wins.Add(1)
				case apperrors.IsErrorType(err, apperrors.ErrorTypeAlreadyExists):
					exists.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(creators-1), exists.Load())
	})

	t.Run("ConcurrentSwapsOneWins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		courseID := newCourseID()
		_, err := s.Create(ctx, kind, courseID, []byte(`{}`))
		require.NoError(t, err)

		const writers = 8
		var wins, conflicts atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.CompareAndSwap(ctx, kind, courseID, 1, []byte(`{"w":true}`), nil)
				switch {
				case err == nil:
					wins.Add(1)
				case apperrors.IsErrorType(err, apperrors.ErrorTypeVersionConflict):
					conflicts.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(writers-1), conflicts.Load())
		got, err := s.Get(ctx, kind, courseID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
	})
}
