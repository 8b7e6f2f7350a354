package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "course-graph/backend/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ApprovalStatus
		want     bool
	}{
		{StatusNotStarted, StatusGenerated, true},
		{StatusNotStarted, StatusApproved, false},
		{StatusNotStarted, StatusRejected, false},
		{StatusGenerated, StatusApproved, true},
		{StatusGenerated, StatusRejected, true},
		{StatusGenerated, StatusNotStarted, false},
		{StatusRejected, StatusGenerated, true},
		{StatusRejected, StatusApproved, false},
		{StatusApproved, StatusGenerated, true},
		{StatusApproved, StatusRejected, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestMachine_NotStartedCannotBeApproved(t *testing.T) {
	m := testMachine(PolicyDemote)
	topic := &Topic{ID: "t1"}

	_, err := m.Review(topic, StatusApproved, "reviewer", "")

	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidTransition))
	assert.Nil(t, topic.Approval)
}

func TestMachine_Lifecycle(t *testing.T) {
	m := testMachine(PolicyDemote)
	topic := &Topic{ID: "t1"}

	tr, fired, err := m.Regenerate(topic, "", false)
	require.NoError(t, err)
	require.True(t, fired)
	assert.Equal(t, StatusNotStarted, tr.From)
	assert.Equal(t, GenerationActor, tr.ActorID)

	tr, err = m.Review(topic, StatusRejected, "reviewer", "  too long  ")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, topic.Status())
	assert.Equal(t, "too long", topic.Approval.Comment)
	assert.Equal(t, fixedNow, tr.At)

	_, err = m.Review(topic, StatusApproved, "reviewer", "")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidTransition))
	assert.Equal(t, StatusRejected, topic.Status())

	_, fired, err = m.Regenerate(topic, "gen", false)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, StatusGenerated, topic.Status())

	_, err = m.Review(topic, StatusApproved, "reviewer", "ok")
	require.NoError(t, err)
	assert.Equal(t, "reviewer", topic.Approval.ActorID)
}

func TestMachine_RegenerateGeneratedIsSilent(t *testing.T) {
	m := testMachine(PolicyDemote)
	topic := &Topic{ID: "t1", Approval: &ApprovalRecord{Status: StatusGenerated, ActorID: "gen"}}

	_, fired, err := m.Regenerate(topic, "other", false)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, "gen", topic.Approval.ActorID)
}

func TestMachine_RegenerateApproved(t *testing.T) {
	approved := func() *Topic {
		return &Topic{ID: "t1", Approval: &ApprovalRecord{Status: StatusApproved, ActorID: "reviewer"}}
	}

	t.Run("demote", func(t *testing.T) {
		topic := approved()
		tr, fired, err := testMachine(PolicyDemote).Regenerate(topic, "gen", false)
		require.NoError(t, err)
		assert.True(t, fired)
		assert.Equal(t, StatusApproved, tr.From)
		assert.Equal(t, StatusGenerated, topic.Status())
	})

	t.Run("require override without override", func(t *testing.T) {
		topic := approved()
		_, _, err := testMachine(PolicyRequireOverride).Regenerate(topic, "gen", false)
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidTransition))
		assert.Equal(t, StatusApproved, topic.Status())
	})

	t.Run("require override with override", func(t *testing.T) {
		topic := approved()
		_, fired, err := testMachine(PolicyRequireOverride).Regenerate(topic, "gen", true)
		require.NoError(t, err)
		assert.True(t, fired)
		assert.Equal(t, StatusGenerated, topic.Status())
	})
}

func TestMachine_ReviewInput(t *testing.T) {
	m := testMachine(PolicyDemote)
	topic := &Topic{ID: "t1", Approval: &ApprovalRecord{Status: StatusGenerated}}

	_, err := m.Review(topic, StatusGenerated, "reviewer", "")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))

	_, err = m.Review(topic, StatusApproved, " ", "")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, StatusGenerated, topic.Status())
}

func TestNewMachine_DefaultsToDemote(t *testing.T) {
	assert.Equal(t, PolicyDemote, NewMachine("").Policy)
}
