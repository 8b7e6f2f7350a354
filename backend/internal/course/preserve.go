package course

import "github.com/google/uuid"

// PreservedSubtopicTitle names the subtopic that collects edited slides a regeneration dropped
const PreservedSubtopicTitle = "Preserved User Content"

// PreserveEdits lays freshly generated content over a stored topic subtree without losing reviewer
// work, and returns the merged subtree with the ids of the stored slides it kept.
//
// A generated slide whose id matches a stored slide marked editedByUser is replaced by the stored
// slide, content and tags intact. Edited slides the generator no longer produces are appended, in
// stored order, to the preserved subtopic. Unedited stored slides are superseded.
func PreserveEdits(previous, generated []Subtopic) ([]Subtopic, []string) {
	out := CloneSubtree(generated)

	edited := make(map[string]*Slide)
	var order []string
	for i := range previous {
		for j := range previous[i].Slides {
			s := &previous[i].Slides[j]
			if s.Tags.EditedByUser {
				edited[s.ID] = s
				order = append(order, s.ID)
			}
		}
	}
	if len(edited) == 0 {
		return out, nil
	}

	used := make(map[string]bool)
	var kept []string
	for i := range out {
		used[out[i].ID] = true
		for j := range out[i].Slides {
			id := out[i].Slides[j].ID
			used[id] = true
			if s, ok := edited[id]; ok {
				out[i].Slides[j] = s.Clone()
				kept = append(kept, id)
				delete(edited, id)
			}
		}
	}

	var orphans []Slide
	for _, id := range order {
		if s, ok := edited[id]; ok {
			orphans = append(orphans, s.Clone())
			kept = append(kept, id)
		}
	}
	if len(orphans) > 0 {
		out = appendPreserved(out, previous, orphans, used)
	}
	return out, kept
}

// appendPreserved reuses the preserved subtopic of the submission, then the stored one's id, so
// repeated regenerations keep a stable subtopic id.
func appendPreserved(out, previous []Subtopic, orphans []Slide, used map[string]bool) []Subtopic {
	for i := range out {
		if out[i].Title == PreservedSubtopicTitle {
			out[i].Slides = append(out[i].Slides, orphans...)
			return out
		}
	}
	id := ""
	for i := range previous {
		if previous[i].Title == PreservedSubtopicTitle && !used[previous[i].ID] {
			id = previous[i].ID
			break
		}
	}
	if id == "" {
		id = uuid.New().String()
	}
	return append(out, Subtopic{ID: id, Title: PreservedSubtopicTitle, Slides: orphans})
}
