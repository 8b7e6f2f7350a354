package course

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "course-graph/backend/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// AssignMissingIDs gives every subtopic and slide submitted without an id a fresh one.
// Such nodes are new by definition, so the diff will mark their slides as user-edited.
func AssignMissingIDs(subtopics []Subtopic) {
	for i := range subtopics {
		if strings.TrimSpace(subtopics[i].ID) == "" {
			subtopics[i].ID = uuid.New().String()
		}
		for j := range subtopics[i].Slides {
			if strings.TrimSpace(subtopics[i].Slides[j].ID) == "" {
				subtopics[i].Slides[j].ID = uuid.New().String()
			}
		}
	}
}

// ValidateSubtree rejects a topic subtree whose ids are not unique across all of its levels.
// A duplicate id would make the diff ambiguous, so it is refused here instead of resolved later.
func ValidateSubtree(topicID string, subtopics []Subtopic) error {
	seen := make(map[string]string)
	for i := range subtopics {
		sub := &subtopics[i]
		if err := validate.Struct(sub); err != nil {
			return structError(fmt.Sprintf("topic %s subtopic[%d]", topicID, i), err)
		}
		if prev, dup := seen[sub.ID]; dup {
			return apperrors.NewValidation("subtree",
				fmt.Sprintf("topic %s: id %q used by %s and subtopic", topicID, sub.ID, prev))
		}
		seen[sub.ID] = "subtopic"
		for j := range sub.Slides {
			id := sub.Slides[j].ID
			if prev, dup := seen[id]; dup {
				return apperrors.NewValidation("subtree",
					fmt.Sprintf("topic %s: id %q used by %s and slide", topicID, id, prev))
			}
			seen[id] = "slide"
		}
	}
	return nil
}

// ValidateGraph checks a whole submitted graph: required fields, unique module and topic ids,
// and a well-formed subtree under every topic.
func ValidateGraph(g *CourseGraph) error {
	if g == nil {
		return apperrors.NewValidation("graph", "missing document")
	}
	if err := validate.Struct(g); err != nil {
		return structError("graph", err)
	}
	modules := make(map[string]bool, len(g.Modules))
	topics := make(map[string]bool)
	for _, m := range g.Modules {
		if modules[m.ID] {
			return apperrors.NewValidation("graph", fmt.Sprintf("duplicate module id %q", m.ID))
		}
		modules[m.ID] = true
		for _, t := range m.Topics {
			if topics[t.ID] {
				return apperrors.NewValidation("graph", fmt.Sprintf("duplicate topic id %q", t.ID))
			}
			topics[t.ID] = true
			if t.Approval != nil && !t.Approval.Status.Valid() {
				return apperrors.NewValidation("approval", fmt.Sprintf("topic %s: unknown status %q", t.ID, t.Approval.Status))
			}
			if err := ValidateSubtree(t.ID, t.Subtopics); err != nil {
				return err
			}
		}
	}
	return nil
}

// PrepareGraph assigns missing ids throughout an incoming graph and validates it
func PrepareGraph(g *CourseGraph) error {
	if g == nil {
		return apperrors.NewValidation("graph", "missing document")
	}
	for i := range g.Modules {
		m := &g.Modules[i]
		if strings.TrimSpace(m.ID) == "" {
			m.ID = uuid.New().String()
		}
		for j := range m.Topics {
			t := &m.Topics[j]
			if strings.TrimSpace(t.ID) == "" {
				t.ID = uuid.New().String()
			}
			AssignMissingIDs(t.Subtopics)
		}
	}
	return ValidateGraph(g)
}

func structError(field string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.NewValidation(field, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return apperrors.WrapValidation(field, err)
}
