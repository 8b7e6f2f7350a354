package concept

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"course-graph/backend/internal/constants"
	apperrors "course-graph/backend/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// AddConcept creates a concept whose id is derived from label. It never merges or overwrites:
// the same normalized label fails DuplicateConcept, and a different label that hashes to an
// existing id fails IDCollision.
func (g *Graph) AddConcept(label, description string, tags []string) (*Concept, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, apperrors.NewValidation("label", "cannot be empty")
	}
	id := ID(label)
	if existing := g.Find(id); existing != nil {
		if Normalize(existing.Label) == Normalize(label) {
			return nil, apperrors.NewDuplicateConcept(id, label)
		}
		return nil, apperrors.NewIDCollision(id, existing.Label, label)
	}

	g.Concepts = append(g.Concepts, Concept{
		ID:          id,
		Label:       label,
		Description: description,
		Tags:        dedupeTags(tags),
	})
	return &g.Concepts[len(g.Concepts)-1], nil
}

// UpdateConcept changes the description and/or tags of a concept. The label is the identity and
// cannot change.
func (g *Graph) UpdateConcept(id string, description *string, tags []string) (*Concept, error) {
	c := g.Find(id)
	if c == nil {
		return nil, apperrors.NewNotFound("concept", id)
	}
	if description != nil {
		c.Description = *description
	}
	if tags != nil {
		c.Tags = dedupeTags(tags)
	}
	return c, nil
}

// AddRelation links two existing concepts. A missing type defaults to RELATED_TO. Confidence is
// stored as given, 0 included; callers that accept an omitted confidence default it themselves.
func (g *Graph) AddRelation(r Relation) (Relation, error) {
	r.SourceID = strings.TrimSpace(r.SourceID)
	r.TargetID = strings.TrimSpace(r.TargetID)
	r.RelationType = strings.ToUpper(strings.TrimSpace(r.RelationType))
	if r.RelationType == "" {
		r.RelationType = constants.DefaultRelationType
	}
	if err := validate.Struct(r); err != nil {
		return Relation{}, structError(err)
	}
	if g.Find(r.SourceID) == nil {
		return Relation{}, apperrors.NewIntegrityViolation(r.SourceID, "relation source is not a known concept")
	}
	if g.Find(r.TargetID) == nil {
		return Relation{}, apperrors.NewIntegrityViolation(r.TargetID, "relation target is not a known concept")
	}
	for _, existing := range g.Relations {
		if existing.Key() == r.Key() {
			return Relation{}, apperrors.NewDuplicateRelation(r.SourceID, r.TargetID, r.RelationType)
		}
	}

	g.Relations = append(g.Relations, r)
	return r, nil
}

// DeleteRelation removes one relation identified by its endpoints and type
func (g *Graph) DeleteRelation(sourceID, targetID, relationType string) error {
	key := Relation{SourceID: sourceID, TargetID: targetID, RelationType: strings.ToUpper(strings.TrimSpace(relationType))}.Key()
	for i, r := range g.Relations {
		if r.Key() == key {
			g.Relations = append(g.Relations[:i], g.Relations[i+1:]...)
			return nil
		}
	}
	return apperrors.NewNotFound("relation", key)
}

// DeleteConcept removes a concept together with every relation that has it as an endpoint,
// returning how many relations were removed.
func (g *Graph) DeleteConcept(id string) (int, error) {
	idx := -1
	for i := range g.Concepts {
		if g.Concepts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, apperrors.NewNotFound("concept", id)
	}
	g.Concepts = append(g.Concepts[:idx], g.Concepts[idx+1:]...)

	kept := g.Relations[:0]
	removed := 0
	for _, r := range g.Relations {
		if r.Touches(id) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	g.Relations = kept
	return removed, nil
}

// CheckIntegrity verifies that concept ids are unique and match their labels, and that no relation
// references a concept that does not exist.
func (g *Graph) CheckIntegrity() error {
	ids := make(map[string]bool, len(g.Concepts))
	for _, c := range g.Concepts {
		if ids[c.ID] {
			return apperrors.NewIntegrityViolation(c.ID, "duplicate concept id")
		}
		if c.ID != ID(c.Label) {
			return apperrors.NewIntegrityViolation(c.ID, fmt.Sprintf("id does not derive from label %q", c.Label))
		}
		ids[c.ID] = true
	}
	for _, r := range g.Relations {
		if !ids[r.SourceID] {
			return apperrors.NewIntegrityViolation(r.SourceID, "relation references missing source concept")
		}
		if !ids[r.TargetID] {
			return apperrors.NewIntegrityViolation(r.TargetID, "relation references missing target concept")
		}
	}
	return nil
}

func dedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func structError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.NewValidation(fe.Field(), fmt.Sprintf("failed %q", fe.Tag()))
	}
	return apperrors.WrapValidation("relation", err)
}
