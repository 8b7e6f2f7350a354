package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-graph/backend/internal/constants"
	"course-graph/backend/internal/course"
	"course-graph/backend/internal/store"
	apperrors "course-graph/backend/pkg/errors"
)

func strPtr(s string) *string { return &s }

func TestGraphStore_Init(t *testing.T) {
	ctx := context.Background()
	gs := newTestGraphStore(t, store.NewMemoryStore(), course.PolicyDemote)

	initial := skeleton()
	initial.Modules[0].Topics[0].Approval = &course.ApprovalRecord{Status: course.StatusApproved}
	res, err := gs.Init(ctx, "course-1", initial)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Version)
	assert.Equal(t, course.StatusNotStarted, res.Graph.Modules[0].Topics[0].Status())

	_, err = gs.Init(ctx, "course-1", nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeAlreadyExists))

	g, err := gs.Get(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), g.Version)
	assert.Len(t, g.Modules[0].Topics, 2)

	_, err = gs.Get(ctx, "course-2")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

// Two editors load version 2. The first write wins, the second is refused with the current
// version and leaves the stored document untouched, and succeeds after reloading.
func TestGraphStore_ConcurrentEditorsConflict(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	gs := newTestGraphStore(t, mem, course.PolicyDemote)
	seededCourse(t, gs)

	a, err := gs.UpdateSlide(ctx, "course-1", 2, course.UpdateSlide{TopicID: "t1", SlideID: "t1-s0", Title: strPtr("Edited by A")})
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.Version)
	afterA, err := mem.Get(ctx, constants.KindCourseGraph, "course-1")
	require.NoError(t, err)

	_, err = gs.UpdateSlide(ctx, "course-1", 2, course.UpdateSlide{TopicID: "t1", SlideID: "t1-s1", Title: strPtr("Edited by B")})
	var conflict *apperrors.ErrVersionConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(3), conflict.CurrentVersion)

	afterB, err := mem.Get(ctx, constants.KindCourseGraph, "course-1")
	require.NoError(t, err)
	assert.Equal(t, afterA.Body, afterB.Body)
	assert.Equal(t, int64(3), afterB.Version)

	reloaded, err := gs.Get(ctx, "course-1")
	require.NoError(t, err)
	b, err := gs.UpdateSlide(ctx, "course-1", reloaded.Version, course.UpdateSlide{TopicID: "t1", SlideID: "t1-s1", Title: strPtr("Edited by B")})
	require.NoError(t, err)
	assert.Equal(t, int64(4), b.Version)

	slides := b.Graph.Modules[0].Topics[0].Subtopics[0].Slides
	assert.Equal(t, "Edited by A", slides[0].Title)
	assert.Equal(t, "Edited by B", slides[1].Title)
	assert.True(t, slides[0].Tags.EditedByUser)
	assert.False(t, slides[2].Tags.EditedByUser)
	assert.Equal(t, course.StatusGenerated, b.Graph.Modules[0].Topics[0].Status(), "edits leave approval alone")
}

func TestGraphStore_ParallelWritersOneWins(t *testing.T) {
	ctx := context.Background()
	gs := newTestGraphStore(t, store.NewMemoryStore(), course.PolicyDemote)
	seededCourse(t, gs)

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gs.Patch(ctx, "course-1", 2, course.RenameTopic{TopicID: "t2", Title: "Loops"})
			if err == nil {
				wins.Add(1)
			} else if apperrors.IsErrorType(err, apperrors.ErrorTypeVersionConflict) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(9), conflicts.Load())
	g, err := gs.Get(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), g.Version)
}

func TestGraphStore_FailedPatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	gs := newTestGraphStore(t, mem, course.PolicyDemote)
	seededCourse(t, gs)
	before, err := mem.Get(ctx, constants.KindCourseGraph, "course-1")
	require.NoError(t, err)

	_, err = gs.Patch(ctx, "course-1", 2,
		course.RenameTopic{TopicID: "t1", Title: "Renamed"},
		course.UpdateSlide{TopicID: "t1", SlideID: "missing", Title: strPtr("x")},
	)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))

	_, err = gs.Patch(ctx, "course-1", 0, course.RenameTopic{TopicID: "t1", Title: "Renamed"})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))

	after, err := mem.Get(ctx, constants.KindCourseGraph, "course-1")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Body, after.Body)
}

func TestGraphStore_ReplaceSubtreeMarksEdits(t *testing.T) {
	ctx := context.Background()
	gs := newTestGraphStore(t, store.NewMemoryStore(), course.PolicyDemote)
	seededCourse(t, gs)

	g, err := gs.Get(ctx, "course-1")
	require.NoError(t, err)
	subtree := course.CloneSubtree(g.Modules[0].Topics[0].Subtopics)
	slides := subtree[0].Slides
	// move the last slide to the front and edit one bullet elsewhere
	slides[0], slides[7] = slides[7], slides[0]
	slides[3].Bullets = []string{"rewritten"}

	res, err := gs.ReplaceSubtree(ctx, "course-1", "t1", subtree, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1-s3"}, res.Diffs["t1"].Changed)
	assert.Len(t, res.Diffs["t1"].Unchanged, 7)
	assert.Empty(t, res.Transitions)

	for _, s := range res.Graph.Modules[0].Topics[0].Subtopics[0].Slides {
		assert.Equal(t, s.ID == "t1-s3", s.Tags.EditedByUser, s.ID)
	}
}

func TestGraphStore_ApprovalWorkflowAndAudit(t *testing.T) {
	ctx := context.Background()
	gs := newTestGraphStore(t, store.NewMemoryStore(), course.PolicyDemote)
	seededCourse(t, gs)

	res, err := gs.Review(ctx, "course-1", "t1", course.StatusRejected, "too dense", "reviewer", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Version)

	res, err = gs.InstallTopicContent(ctx, "course-1", "t1", generatedSlides("t1", 8), 3, "", false)
	require.NoError(t, err)
	require.Len(t, res.Transitions, 1)
	assert.Equal(t, course.GenerationActor, res.Transitions[0].ActorID)

	res, err = gs.Review(ctx, "course-1", "t1", course.StatusApproved, "", "reviewer", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Version)

	_, err = gs.Review(ctx, "course-1", "t2", course.StatusApproved, "", "reviewer", 5)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidTransition))

	trail, err := gs.AuditTrail(ctx, "course-1", "t1")
	require.NoError(t, err)
	require.Len(t, trail, 4)
	statuses := make([]string, 0, len(trail))
	for _, rec := range trail {
		statuses = append(statuses, rec.FromStatus+">"+rec.ToStatus)
	}
	assert.Equal(t, []string{
		"NOT_STARTED>GENERATED",
		"GENERATED>REJECTED",
		"REJECTED>GENERATED",
		"GENERATED>APPROVED",
	}, statuses)
	assert.Equal(t, "too dense", trail[1].Comment)
	assert.Equal(t, int64(3), trail[1].GraphVersion)
	assert.Equal(t, fixedNow, trail[1].At)

	t2, err := gs.AuditTrail(ctx, "course-1", "t2")
	require.NoError(t, err)
	assert.Empty(t, t2)

	_, err = gs.AuditTrail(ctx, "course-1", "t9")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestGraphStore_ReplaceKeepsApprovals(t *testing.T) {
	ctx := context.Background()
	gs := newTestGraphStore(t, store.NewMemoryStore(), course.PolicyDemote)
	seededCourse(t, gs)
	_, err := gs.Review(ctx, "course-1", "t1", course.StatusApproved, "", "reviewer", 2)
	require.NoError(t, err)

	current, err := gs.Get(ctx, "course-1")
	require.NoError(t, err)
	current.Modules[0].Topics[0].Approval = nil
	current.Modules[0].Name = "Basics"

	res, err := gs.Replace(ctx, "course-1", current, "gen", false)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Version)
	assert.Equal(t, course.StatusApproved, res.Graph.Modules[0].Topics[0].Status())
	assert.Empty(t, res.Transitions)

	current = res.Graph.Clone()
	current.Modules[0].Topics[1].Subtopics = generatedSlides("t2", 8)
	current.Modules[0].Topics[0].Subtopics = generatedSlides("t1-v2", 8)
	res, err = gs.Replace(ctx, "course-1", current, "gen", false)
	require.NoError(t, err)
	assert.Len(t, res.Transitions, 2)
	assert.Equal(t, course.StatusGenerated, res.Graph.Modules[0].Topics[0].Status())
	assert.Equal(t, course.StatusGenerated, res.Graph.Modules[0].Topics[1].Status())
}

func TestGraphStore_RegenerateApprovedRequiresOverride(t *testing.T) {
	ctx := context.Background()
	gs := newTestGraphStore(t, store.NewMemoryStore(), course.PolicyRequireOverride)
	seededCourse(t, gs)
	_, err := gs.Review(ctx, "course-1", "t1", course.StatusApproved, "", "reviewer", 2)
	require.NoError(t, err)

	_, err = gs.InstallTopicContent(ctx, "course-1", "t1", generatedSlides("t1", 8), 3, "gen", false)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidTransition))

	res, err := gs.InstallTopicContent(ctx, "course-1", "t1", generatedSlides("t1", 8), 3, "gen", true)
	require.NoError(t, err)
	assert.Equal(t, course.StatusGenerated, res.Graph.Modules[0].Topics[0].Status())
}

func TestGraphStore_ExportGate(t *testing.T) {
	ctx := context.Background()
	gs := newTestGraphStore(t, store.NewMemoryStore(), course.PolicyDemote)
	seededCourse(t, gs)

	r, err := gs.ExportReadiness(ctx, "course-1", "")
	require.NoError(t, err)
	assert.False(t, r.Ready)
	assert.Len(t, r.Pending, 2)

	_, err = gs.Compile(ctx, "course-1", "t1", false)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))

	plan, err := gs.Compile(ctx, "course-1", "t1", true)
	require.NoError(t, err)
	assert.Len(t, plan.Slides, 8)

	_, err = gs.Review(ctx, "course-1", "t1", course.StatusApproved, "", "reviewer", 2)
	require.NoError(t, err)
	plan, err = gs.Compile(ctx, "course-1", "t1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), plan.Version)

	report, err := gs.Inspect(ctx, "course-1")
	require.NoError(t, err)
	assert.False(t, report.Valid, "t2 has no slides yet")
}

func TestGraphStore_ConflictInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	c := newMapCache()
	gs := NewGraphStore(mem, c, course.PolicyDemote)
	seededCourse(t, gs)

	g, err := gs.Get(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), g.Version, "commits refresh the cache")

	_, err = gs.Patch(ctx, "course-1", 1, course.RenameTopic{TopicID: "t1", Title: "x"})
	require.Error(t, err)
	assert.Equal(t, []string{constants.KindCourseGraph + "/course-1"}, c.invalidated)

	_, ok := c.Get(ctx, constants.KindCourseGraph, "course-1")
	assert.False(t, ok)
}

// A reviewer edits two slides and rejects the topic. Regeneration must not overwrite the edited
// slides: the one the generator produces again keeps the reviewer's content, the one it dropped
// moves to the preserved subtopic.
func TestGraphStore_RegenerationKeepsReviewerEdits(t *testing.T) {
	ctx := context.Background()
	gs := newTestGraphStore(t, store.NewMemoryStore(), course.PolicyDemote)
	seededCourse(t, gs)

	_, err := gs.UpdateSlide(ctx, "course-1", 2, course.UpdateSlide{TopicID: "t1", SlideID: "t1-s0", Title: strPtr("Reviewer rewrote this")})
	require.NoError(t, err)
	bullets := []string{"reviewer bullet"}
	_, err = gs.UpdateSlide(ctx, "course-1", 3, course.UpdateSlide{TopicID: "t1", SlideID: "t1-s7", Bullets: &bullets})
	require.NoError(t, err)
	_, err = gs.Review(ctx, "course-1", "t1", course.StatusRejected, "redo the rest", "reviewer", 4)
	require.NoError(t, err)

	res, err := gs.InstallTopicContent(ctx, "course-1", "t1", generatedSlides("t1", 7), 5, "gen", false)
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.Version)
	assert.Equal(t, []string{"t1-s0", "t1-s7"}, res.Diffs["t1"].Preserved)
	require.Len(t, res.Transitions, 1)
	assert.Equal(t, course.StatusRejected, res.Transitions[0].From)

	g, err := gs.Get(ctx, "course-1")
	require.NoError(t, err)
	topic := &g.Modules[0].Topics[0]
	assert.Equal(t, course.StatusGenerated, topic.Status())

	s0, _, err := topic.FindSlide("t1-s0")
	require.NoError(t, err)
	assert.Equal(t, "Reviewer rewrote this", s0.Title)
	assert.True(t, s0.Tags.EditedByUser)

	s1, _, err := topic.FindSlide("t1-s1")
	require.NoError(t, err)
	assert.Equal(t, "Slide 1", s1.Title)
	assert.False(t, s1.Tags.EditedByUser)

	require.Len(t, topic.Subtopics, 2)
	preserved := topic.Subtopics[1]
	assert.Equal(t, course.PreservedSubtopicTitle, preserved.Title)
	require.Len(t, preserved.Slides, 1)
	assert.Equal(t, "t1-s7", preserved.Slides[0].ID)
	assert.Equal(t, bullets, preserved.Slides[0].Bullets)
}

func TestGraphStore_EditHistory(t *testing.T) {
	ctx := context.Background()
	gs := newTestGraphStore(t, store.NewMemoryStore(), course.PolicyDemote)
	seededCourse(t, gs)

	res, err := gs.UpdateSlide(ctx, "course-1", 2, course.UpdateSlide{TopicID: "t1", SlideID: "t1-s0", Title: strPtr("Edited")})
	require.NoError(t, err)
	require.Len(t, res.Edits, 1)
	_, err = gs.Patch(ctx, "course-1", 3,
		course.RenameModule{ModuleID: "m1", Name: "Basics"},
		course.RenameTopic{TopicID: "t2", Title: "Loops"},
	)
	require.NoError(t, err)
	_, err = gs.Review(ctx, "course-1", "t1", course.StatusApproved, "", "reviewer", 4)
	require.NoError(t, err)

	// a rejected write records nothing
	_, err = gs.UpdateSlide(ctx, "course-1", 2, course.UpdateSlide{TopicID: "t1", SlideID: "t1-s1", Title: strPtr("Stale")})
	require.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeVersionConflict))

	t1, err := gs.EditHistory(ctx, "course-1", "t1")
	require.NoError(t, err)
	require.Len(t, t1, 1)
	assert.Equal(t, store.AuditKindEdit, t1[0].Kind)
	assert.Equal(t, course.OpUpdateSlide, t1[0].Operation)
	assert.Equal(t, "t1-s0", t1[0].TargetID)
	assert.Equal(t, []string{"title"}, t1[0].Changes)
	assert.Equal(t, int64(3), t1[0].GraphVersion)
	assert.Equal(t, fixedNow, t1[0].At)

	all, err := gs.EditHistory(ctx, "course-1", "")
	require.NoError(t, err)
	ops := make([]string, 0, len(all))
	for _, rec := range all {
		ops = append(ops, rec.Operation+":"+rec.TargetID)
	}
	assert.Equal(t, []string{"update_slide:t1-s0", "rename_module:m1", "rename_topic:t2"}, ops)

	trail, err := gs.AuditTrail(ctx, "course-1", "t1")
	require.NoError(t, err)
	require.Len(t, trail, 2, "edits stay out of the approval trail")
	assert.Equal(t, "APPROVED", trail[1].ToStatus)

	_, err = gs.EditHistory(ctx, "course-1", "t9")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}
