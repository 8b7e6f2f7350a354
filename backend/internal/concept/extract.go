package concept

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"course-graph/backend/internal/constants"
	apperrors "course-graph/backend/pkg/errors"
)

// SlideText is the text of one slide offered to extraction
type SlideText struct {
	SlideID      string
	Title        string
	Bullets      []string
	SpeakerNotes string
}

// Extraction is the heuristic output for a set of slides
type Extraction struct {
	Concepts  []Concept
	Relations []Relation
	// BySlide maps slide id to the concept ids found on it, in discovery order
	BySlide map[string][]string
}

var capitalisedPhrase = regexp.MustCompile(`\b[A-Z][a-zA-Z]*(?:\s+[A-Z][a-zA-Z]*)*\b`)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true, "for": true, "to": true,
	"of": true, "and": true, "with": true, "slide": true, "introduction": true, "summary": true,
}

// Extract finds key terms (capitalised phrases that are not stop words) on each slide and links
// terms that co-occur on a slide. Ids follow the same derivation as AddConcept, so a term seen on
// several slides is one concept.
func Extract(slides []SlideText) Extraction {
	out := Extraction{BySlide: make(map[string][]string)}
	concepts := make(map[string]Concept)
	var order []string
	relSeen := make(map[string]bool)

	for i, s := range slides {
		text := strings.Join(append(append([]string{s.Title}, s.Bullets...), s.SpeakerNotes), " ")
		terms := candidates(text)

		var onSlide []string
		for _, term := range terms {
			id := ID(term)
			if _, ok := concepts[id]; !ok {
				concepts[id] = Concept{
					ID:          id,
					Label:       term,
					Description: fmt.Sprintf("Extracted from slide %d", i+1),
					Tags:        []string{"extracted"},
				}
				order = append(order, id)
			}
			if !contains(onSlide, id) {
				onSlide = append(onSlide, id)
			}
		}

		for a := range onSlide {
			for b := a + 1; b < len(onSlide) && b <= a+constants.CoOccurrenceWindow; b++ {
				r := Relation{
					SourceID:     onSlide[a],
					TargetID:     onSlide[b],
					RelationType: constants.CoOccurrenceRelationType,
					Confidence:   constants.CoOccurrenceConfidence,
					Evidence:     fmt.Sprintf("Slide %d", i+1),
				}
				if relSeen[r.Key()] {
					continue
				}
				relSeen[r.Key()] = true
				out.Relations = append(out.Relations, r)
			}
		}
		out.BySlide[s.SlideID] = onSlide
	}

	for _, id := range order {
		out.Concepts = append(out.Concepts, concepts[id])
	}
	return out
}

// candidates returns the distinct key terms of text, sorted for deterministic output
func candidates(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range capitalisedPhrase.FindAllString(text, -1) {
		if len(m) < 3 || stopwords[strings.ToLower(m)] {
			continue
		}
		key := Normalize(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// MergeResult summarises an import of extracted concepts
type MergeResult struct {
	AddedConcepts    []string `json:"addedConcepts"`
	ExistingConcepts []string `json:"existingConcepts"`
	AddedRelations   int      `json:"addedRelations"`
	SkippedRelations int      `json:"skippedRelations"`
}

// Merge adds extracted concepts and relations that are not yet present. A concept whose id
// already exists under the same normalized label is reused; a colliding label fails the merge.
func (g *Graph) Merge(x Extraction) (MergeResult, error) {
	res := MergeResult{AddedConcepts: []string{}, ExistingConcepts: []string{}}
	for _, c := range x.Concepts {
		if existing := g.Find(c.ID); existing != nil {
			if Normalize(existing.Label) != Normalize(c.Label) {
				return MergeResult{}, apperrors.NewIDCollision(c.ID, existing.Label, c.Label)
			}
			res.ExistingConcepts = append(res.ExistingConcepts, c.ID)
			continue
		}
		if _, err := g.AddConcept(c.Label, c.Description, c.Tags); err != nil {
			return MergeResult{}, err
		}
		res.AddedConcepts = append(res.AddedConcepts, c.ID)
	}

	existing := make(map[string]bool, len(g.Relations))
	for _, r := range g.Relations {
		existing[r.Key()] = true
	}
	for _, r := range x.Relations {
		if existing[r.Key()] {
			res.SkippedRelations++
			continue
		}
		if _, err := g.AddRelation(r); err != nil {
			return MergeResult{}, err
		}
		existing[r.Key()] = true
		res.AddedRelations++
	}
	return res, nil
}
