package course

import (
	"fmt"

	apperrors "course-graph/backend/pkg/errors"
)

// TopicState is a topic's identity and approval status as seen by export gating
type TopicState struct {
	ModuleID string         `json:"moduleId"`
	TopicID  string         `json:"topicId"`
	Title    string         `json:"title"`
	Status   ApprovalStatus `json:"status"`
}

// Readiness reports whether the topics in scope may be exported
type Readiness struct {
	Ready   bool         `json:"ready"`
	TopicID string       `json:"topicId,omitempty"`
	Topics  []TopicState `json:"topics"`
	Pending []TopicState `json:"pending"`
}

// ExportReadiness checks that every topic in scope is APPROVED. An empty scope is never ready.
// topicID narrows the scope to one topic; empty means the whole course.
func ExportReadiness(g *CourseGraph, topicID string) (Readiness, error) {
	r := Readiness{TopicID: topicID, Topics: []TopicState{}, Pending: []TopicState{}}
	g.EachTopic(func(m *Module, t *Topic) bool {
		if topicID != "" && t.ID != topicID {
			return true
		}
		st := TopicState{ModuleID: m.ID, TopicID: t.ID, Title: t.Title, Status: t.Status()}
		r.Topics = append(r.Topics, st)
		if st.Status != StatusApproved {
			r.Pending = append(r.Pending, st)
		}
		return true
	})
	if topicID != "" && len(r.Topics) == 0 {
		return Readiness{}, apperrors.NewNotFound("topic", topicID)
	}
	r.Ready = len(r.Topics) > 0 && len(r.Pending) == 0
	return r, nil
}

// PlannedSlide is one slide flattened for the rendering collaborator
type PlannedSlide struct {
	ID                 string    `json:"id"`
	ModuleID           string    `json:"moduleId"`
	TopicID            string    `json:"topicId"`
	SubtopicID         string    `json:"subtopicId"`
	Order              int       `json:"order"`
	Title              string    `json:"title"`
	Bullets            []string  `json:"bullets"`
	SpeakerNotes       string    `json:"speakerNotes"`
	IllustrationPrompt string    `json:"illustrationPrompt"`
	Tags               SlideTags `json:"tags"`
}

// SlidePlan is the read-only export of a graph snapshot
type SlidePlan struct {
	CourseID string         `json:"courseId"`
	Version  int64          `json:"version"`
	Slides   []PlannedSlide `json:"slides"`
}

// Compile flattens the slides in scope in document order. Unless force is set, it refuses while
// any topic in scope is not APPROVED. It never mutates g.
func Compile(g *CourseGraph, topicID string, force bool) (SlidePlan, error) {
	r, err := ExportReadiness(g, topicID)
	if err != nil {
		return SlidePlan{}, err
	}
	if !force && !r.Ready {
		if len(r.Topics) == 0 {
			return SlidePlan{}, apperrors.NewValidation("export", "graph has no topics")
		}
		return SlidePlan{}, apperrors.NewValidation("export",
			fmt.Sprintf("%d topic(s) not approved", len(r.Pending)))
	}

	plan := SlidePlan{CourseID: g.CourseID, Version: g.Version, Slides: []PlannedSlide{}}
	g.EachTopic(func(m *Module, t *Topic) bool {
		if topicID != "" && t.ID != topicID {
			return true
		}
		for _, sub := range t.Subtopics {
			for _, s := range sub.Slides {
				s = s.Clone()
				plan.Slides = append(plan.Slides, PlannedSlide{
					ID:                 s.ID,
					ModuleID:           m.ID,
					TopicID:            t.ID,
					SubtopicID:         sub.ID,
					Order:              s.Order,
					Title:              s.Title,
					Bullets:            s.Bullets,
					SpeakerNotes:       s.SpeakerNotes,
					IllustrationPrompt: s.IllustrationPrompt,
					Tags:               s.Tags,
				})
			}
		}
		return true
	})
	if len(plan.Slides) == 0 {
		return SlidePlan{}, apperrors.NewValidation("export", "no slides in scope")
	}
	return plan, nil
}
