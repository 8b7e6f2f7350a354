package concept

import (
	"regexp"
	"sort"
	"strings"
)

// ============================================================================
// Near-duplicate hints
// ============================================================================

var whitespace = regexp.MustCompile(`\s+`)

// looseNormalize collapses whitespace and strips trailing punctuation on top of Normalize.
// It is only used for hints; identity always uses Normalize.
func looseNormalize(label string) string {
	label = whitespace.ReplaceAllString(Normalize(label), " ")
	return strings.TrimRight(label, ".,!?;:")
}

// SimilarTo returns existing concepts whose labels look like near duplicates of label without
// being the same concept. The result is advisory: AddConcept does not consult it.
func (g *Graph) SimilarTo(label string) []Concept {
	target := looseNormalize(label)
	id := ID(label)

	var hits []Concept
	for _, c := range g.Concepts {
		if c.ID == id {
			continue
		}
		if labelsSimilar(target, looseNormalize(c.Label)) {
			hits = append(hits, c)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Label < hits[j].Label })
	return hits
}

// labelsSimilar treats labels as similar when one contains the other and covers at least 80% of
// its length, or when at least 70% of their significant words overlap.
func labelsSimilar(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) < 4 || len(b) < 4 {
		return false
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		la, lb := len(a), len(b)
		ratio := float64(min(la, lb)) / float64(max(la, lb))
		if ratio >= 0.8 {
			return true
		}
	}

	words1 := strings.Fields(a)
	words2 := strings.Fields(b)
	if len(words1) < 2 || len(words2) < 2 {
		return false
	}

	wordSet := make(map[string]bool)
	for _, word := range words1 {
		if len(word) > 3 {
			wordSet[word] = true
		}
	}
	matches := 0
	for _, word := range words2 {
		if len(word) > 3 && wordSet[word] {
			matches++
		}
	}

	avgWords := (len(words1) + len(words2)) / 2
	return avgWords > 0 && float64(matches)/float64(avgWords) >= 0.7
}
