package course

import "sort"

// DiffResult lists slide ids by how the diff classified them
type DiffResult struct {
	Added     []string `json:"added"`
	Changed   []string `json:"changed"`
	Unchanged []string `json:"unchanged"`
	Removed   []string `json:"removed"`
	// Preserved lists edited slides a regeneration kept instead of overwriting
	Preserved []string `json:"preserved,omitempty"`
}

// Modified reports whether any slide was added, changed or removed
func (d DiffResult) Modified() bool {
	return len(d.Added) > 0 || len(d.Changed) > 0 || len(d.Removed) > 0
}

type indexedNode struct {
	slide *Slide // nil for subtopics
}

// MarkEdits compares a submitted topic subtree with the stored one and returns the subtree to
// persist, with editedByUser set only on slides whose content actually differs.
//
// Matching is by id, never by position, so moving a slide between or within subtopics is not an
// edit. Unchanged slides keep the stored tags (including an earlier editedByUser). Nodes missing
// from the submission are dropped. The submission must already have passed ValidateSubtree.
func MarkEdits(previous, submitted []Subtopic) ([]Subtopic, DiffResult) {
	index := make(map[string]indexedNode)
	for i := range previous {
		index[previous[i].ID] = indexedNode{}
		for j := range previous[i].Slides {
			index[previous[i].Slides[j].ID] = indexedNode{slide: &previous[i].Slides[j]}
		}
	}

	var result DiffResult
	seen := make(map[string]bool)
	out := CloneSubtree(submitted)
	for i := range out {
		for j := range out[i].Slides {
			s := &out[i].Slides[j]
			seen[s.ID] = true

			old, ok := index[s.ID]
			switch {
			case !ok || old.slide == nil:
				s.Tags.EditedByUser = true
				result.Added = append(result.Added, s.ID)
			case slideContentDiffers(old.slide, s):
				s.Tags = old.slide.Clone().Tags
				s.Tags.EditedByUser = true
				result.Changed = append(result.Changed, s.ID)
			default:
				s.Tags = old.slide.Clone().Tags
				result.Unchanged = append(result.Unchanged, s.ID)
			}
		}
	}

	for id, node := range index {
		if node.slide != nil && !seen[id] {
			result.Removed = append(result.Removed, id)
		}
	}
	sort.Strings(result.Removed)

	return out, result
}

// SubtreeDiffers reports whether two subtrees differ in slide content or membership,
// ignoring order and provenance tags.
func SubtreeDiffers(previous, submitted []Subtopic) bool {
	_, d := MarkEdits(previous, submitted)
	return d.Modified()
}

func slideContentDiffers(old, cur *Slide) bool {
	if old.Title != cur.Title ||
		old.SpeakerNotes != cur.SpeakerNotes ||
		old.IllustrationPrompt != cur.IllustrationPrompt {
		return true
	}
	return !equalStrings(old.Bullets, cur.Bullets)
}

// equalStrings compares by length and element; nil and empty are equal
func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
