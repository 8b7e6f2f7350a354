// Package course holds the Course Content Graph: the hierarchical Module → Topic → Subtopic → Slide
// document, its input validation, the node diff used for edit provenance, the per-topic approval
// state machine and the operations that mutate a working copy of the graph.
//
// Nothing in this package performs I/O. The engine package loads a versioned document, applies
// operations from here to a clone and commits the result with a compare-and-swap.
package course

import "time"

// ApprovalStatus is the review state of a single topic
type ApprovalStatus string

const (
	StatusNotStarted ApprovalStatus = "NOT_STARTED"
	StatusGenerated  ApprovalStatus = "GENERATED"
	StatusApproved   ApprovalStatus = "APPROVED"
	StatusRejected   ApprovalStatus = "REJECTED"
)

// Valid reports whether s is one of the four known states
func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusGenerated, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CourseGraph is the root of the versioned document
type CourseGraph struct {
	CourseID string   `json:"courseId" validate:"required"`
	Version  int64    `json:"version"`
	Modules  []Module `json:"modules" validate:"dive"`
}

// Module groups topics
type Module struct {
	ID     string  `json:"id" validate:"required"`
	Name   string  `json:"name"`
	Topics []Topic `json:"topics" validate:"dive"`
}

// Topic is the unit of generation and review
type Topic struct {
	ID        string          `json:"id" validate:"required"`
	Title     string          `json:"title"`
	Subtopics []Subtopic      `json:"subtopics" validate:"dive"`
	Approval  *ApprovalRecord `json:"approval"`
}

// Subtopic groups slides inside a topic
type Subtopic struct {
	ID     string  `json:"id" validate:"required"`
	Title  string  `json:"title"`
	Slides []Slide `json:"slides" validate:"dive"`
}

// Slide is the leaf content node
type Slide struct {
	ID                 string    `json:"id" validate:"required"`
	Order              int       `json:"order" validate:"min=0"`
	Title              string    `json:"title"`
	Bullets            []string  `json:"bullets"`
	SpeakerNotes       string    `json:"speakerNotes"`
	IllustrationPrompt string    `json:"illustrationPrompt"`
	Tags               SlideTags `json:"tags"`
}

// SlideTags carries provenance and concept links for a slide
type SlideTags struct {
	EditedByUser bool     `json:"editedByUser"`
	ConceptIDs   []string `json:"conceptIds"`
}

// ApprovalRecord is the latest review state of a topic
type ApprovalRecord struct {
	Status    ApprovalStatus `json:"status" validate:"required"`
	Comment   string         `json:"comment"`
	ActorID   string         `json:"actorId"`
	Timestamp time.Time      `json:"timestamp"`
}

// Status returns the topic's approval state; a topic without a record has not started.
func (t *Topic) Status() ApprovalStatus {
	if t.Approval == nil || t.Approval.Status == "" {
		return StatusNotStarted
	}
	return t.Approval.Status
}

// SlideCount counts slides across all subtopics
func (t *Topic) SlideCount() int {
	n := 0
	for i := range t.Subtopics {
		n += len(t.Subtopics[i].Slides)
	}
	return n
}

// New returns an empty graph for a freshly initialized course
func New(courseID string) *CourseGraph {
	return &CourseGraph{CourseID: courseID, Modules: []Module{}}
}
