package course

import (
	"strings"
	"time"

	apperrors "course-graph/backend/pkg/errors"
)

// RegeneratePolicy decides what regenerating an APPROVED topic requires
type RegeneratePolicy string

const (
	// PolicyDemote lets regeneration move APPROVED back to GENERATED
	PolicyDemote RegeneratePolicy = "demote"
	// PolicyRequireOverride refuses APPROVED -> GENERATED unless the caller passes override
	PolicyRequireOverride RegeneratePolicy = "require_override"
)

// GenerationActor is recorded when the generation collaborator does not name an actor
const GenerationActor = "system:generation"

var transitions = map[ApprovalStatus][]ApprovalStatus{
	StatusNotStarted: {StatusGenerated},
	StatusGenerated:  {StatusApproved, StatusRejected},
	StatusRejected:   {StatusGenerated},
	StatusApproved:   {StatusGenerated},
}

// CanTransition reports whether from -> to appears in the state table
func CanTransition(from, to ApprovalStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition is one entry of the per-topic audit trail
type Transition struct {
	TopicID string         `json:"topicId"`
	From    ApprovalStatus `json:"from"`
	To      ApprovalStatus `json:"to"`
	ActorID string         `json:"actorId"`
	Comment string         `json:"comment,omitempty"`
	At      time.Time      `json:"at"`
}

// Machine applies approval transitions to topics of a working graph
type Machine struct {
	Policy RegeneratePolicy
	Now    func() time.Time
}

// NewMachine returns a machine using policy and the wall clock
func NewMachine(policy RegeneratePolicy) Machine {
	if policy == "" {
		policy = PolicyDemote
	}
	return Machine{Policy: policy, Now: func() time.Time { return time.Now().UTC() }}
}

// Clock returns the machine's current time, the timestamp of everything it records
func (m Machine) Clock() time.Time {
	return m.now()
}

func (m Machine) now() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now()
}

// Fire moves topic to state `to`, replacing its approval record.
// It fails with InvalidTransition, leaving the topic untouched, when the move is not in the table
// or when it regenerates an APPROVED topic under PolicyRequireOverride without override.
func (m Machine) Fire(topic *Topic, to ApprovalStatus, actorID, comment string, override bool) (Transition, error) {
	from := topic.Status()
	if !CanTransition(from, to) {
		return Transition{}, apperrors.NewInvalidTransition(topic.ID, string(from), string(to))
	}
	if from == StatusApproved && to == StatusGenerated && m.Policy == PolicyRequireOverride && !override {
		err := apperrors.NewInvalidTransition(topic.ID, string(from), string(to))
		err.Message += " without override"
		return Transition{}, err
	}

	at := m.now()
	topic.Approval = &ApprovalRecord{
		Status:    to,
		Comment:   comment,
		ActorID:   actorID,
		Timestamp: at,
	}
	return Transition{
		TopicID: topic.ID,
		From:    from,
		To:      to,
		ActorID: actorID,
		Comment: comment,
		At:      at,
	}, nil
}

// Regenerate fires the generation event for a topic whose content was just (re)installed.
// A topic already GENERATED stays there without a transition, so ok is false and nothing is audited.
func (m Machine) Regenerate(topic *Topic, actorID string, override bool) (tr Transition, ok bool, err error) {
	if topic.Status() == StatusGenerated {
		return Transition{}, false, nil
	}
	if strings.TrimSpace(actorID) == "" {
		actorID = GenerationActor
	}
	tr, err = m.Fire(topic, StatusGenerated, actorID, "", override)
	if err != nil {
		return Transition{}, false, err
	}
	return tr, true, nil
}

// Review records a reviewer decision. Only APPROVED and REJECTED are decisions.
func (m Machine) Review(topic *Topic, decision ApprovalStatus, actorID, comment string) (Transition, error) {
	if decision != StatusApproved && decision != StatusRejected {
		return Transition{}, apperrors.NewValidation("decision", "must be APPROVED or REJECTED")
	}
	if strings.TrimSpace(actorID) == "" {
		return Transition{}, apperrors.NewValidation("actorId", "reviewer id is required")
	}
	return m.Fire(topic, decision, actorID, strings.TrimSpace(comment), false)
}
