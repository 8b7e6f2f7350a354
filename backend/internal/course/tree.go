package course

import apperrors "course-graph/backend/pkg/errors"

// FindModule returns the module with the given id
func (g *CourseGraph) FindModule(moduleID string) (*Module, error) {
	for i := range g.Modules {
		if g.Modules[i].ID == moduleID {
			return &g.Modules[i], nil
		}
	}
	return nil, apperrors.NewNotFound("module", moduleID)
}

// FindTopic returns the topic with the given id and the module that holds it
func (g *CourseGraph) FindTopic(topicID string) (*Topic, *Module, error) {
	for i := range g.Modules {
		m := &g.Modules[i]
		for j := range m.Topics {
			if m.Topics[j].ID == topicID {
				return &m.Topics[j], m, nil
			}
		}
	}
	return nil, nil, apperrors.NewNotFound("topic", topicID)
}

// FindSlide returns the slide with the given id inside a topic
func (t *Topic) FindSlide(slideID string) (*Slide, *Subtopic, error) {
	for i := range t.Subtopics {
		sub := &t.Subtopics[i]
		for j := range sub.Slides {
			if sub.Slides[j].ID == slideID {
				return &sub.Slides[j], sub, nil
			}
		}
	}
	return nil, nil, apperrors.NewNotFound("slide", slideID)
}

// EachTopic calls fn for every topic in document order until fn returns false
func (g *CourseGraph) EachTopic(fn func(m *Module, t *Topic) bool) {
	for i := range g.Modules {
		m := &g.Modules[i]
		for j := range m.Topics {
			if !fn(m, &m.Topics[j]) {
				return
			}
		}
	}
}

// Clone returns a deep copy; operations are always applied to a clone so a failed
// operation never leaves a partially mutated graph behind.
func (g *CourseGraph) Clone() *CourseGraph {
	if g == nil {
		return nil
	}
	out := &CourseGraph{CourseID: g.CourseID, Version: g.Version}
	out.Modules = make([]Module, len(g.Modules))
	for i, m := range g.Modules {
		out.Modules[i] = Module{ID: m.ID, Name: m.Name, Topics: make([]Topic, len(m.Topics))}
		for j := range m.Topics {
			out.Modules[i].Topics[j] = m.Topics[j].Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the topic
func (t Topic) Clone() Topic {
	out := Topic{ID: t.ID, Title: t.Title, Subtopics: CloneSubtree(t.Subtopics)}
	if t.Approval != nil {
		rec := *t.Approval
		out.Approval = &rec
	}
	return out
}

// CloneSubtree deep-copies a list of subtopics
func CloneSubtree(subtopics []Subtopic) []Subtopic {
	if subtopics == nil {
		return nil
	}
	out := make([]Subtopic, len(subtopics))
	for i, sub := range subtopics {
		out[i] = Subtopic{ID: sub.ID, Title: sub.Title}
		if sub.Slides != nil {
			out[i].Slides = make([]Slide, len(sub.Slides))
			for j := range sub.Slides {
				out[i].Slides[j] = sub.Slides[j].Clone()
			}
		}
	}
	return out
}

// Clone returns a deep copy of the slide
func (s Slide) Clone() Slide {
	out := s
	out.Bullets = cloneStrings(s.Bullets)
	out.Tags.ConceptIDs = cloneStrings(s.Tags.ConceptIDs)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
