package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "course-graph/backend/pkg/errors"
)

func approveAll(g *CourseGraph) {
	g.EachTopic(func(_ *Module, t *Topic) bool {
		t.Approval = &ApprovalRecord{Status: StatusApproved}
		return true
	})
}

func TestExportReadiness(t *testing.T) {
	g := sampleGraph()
	g.Modules[0].Topics[0].Approval = &ApprovalRecord{Status: StatusApproved}

	r, err := ExportReadiness(g, "")
	require.NoError(t, err)
	assert.False(t, r.Ready)
	require.Len(t, r.Pending, 1)
	assert.Equal(t, "t2", r.Pending[0].TopicID)

	r, err = ExportReadiness(g, "t1")
	require.NoError(t, err)
	assert.True(t, r.Ready)

	_, err = ExportReadiness(g, "t9")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestExportReadiness_EmptyCourseNotReady(t *testing.T) {
	r, err := ExportReadiness(New("c"), "")
	require.NoError(t, err)
	assert.False(t, r.Ready)
}

func TestCompile(t *testing.T) {
	g := sampleGraph()

	_, err := Compile(g, "", false)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))

	plan, err := Compile(g, "", true)
	require.NoError(t, err)
	assert.Len(t, plan.Slides, 3)

	approveAll(g)
	plan, err = Compile(g, "", false)
	require.NoError(t, err)
	require.Len(t, plan.Slides, 3)
	assert.Equal(t, "s1", plan.Slides[0].ID)
	assert.Equal(t, "t2", plan.Slides[2].TopicID)
	assert.Equal(t, int64(1), plan.Version)

	plan.Slides[0].Bullets[0] = "mutated"
	assert.Equal(t, "x", g.Modules[0].Topics[0].Subtopics[0].Slides[0].Bullets[0])
}

func TestCompile_NoSlides(t *testing.T) {
	g := sampleGraph()
	g.Modules[0].Topics[1].Subtopics = nil
	approveAll(g)

	_, err := Compile(g, "t2", false)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
}
