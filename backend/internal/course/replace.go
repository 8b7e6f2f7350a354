package course

// Reconcile prepares an incoming whole-graph replacement against the stored graph.
//
// Approval fields in the incoming document are ignored: each topic keeps the record stored under
// its id, and a topic the store has never seen starts NOT_STARTED. A topic whose slides differ from
// storage and are non-empty has been (re)generated and fires the generation transition, which is
// how NOT_STARTED, REJECTED and APPROVED topics reach GENERATED through a resync.
//
// Incoming slides are generated content, so their editedByUser flags are cleared; stored slides a
// reviewer edited are carried over by PreserveEdits and never overwritten by a resync.
//
// incoming is modified in place; on error it must be discarded.
func Reconcile(stored, incoming *CourseGraph, m Machine, actorID string, override bool) (*Change, error) {
	if err := PrepareGraph(incoming); err != nil {
		return nil, err
	}

	previous := make(map[string]*Topic)
	if stored != nil {
		stored.EachTopic(func(_ *Module, t *Topic) bool {
			previous[t.ID] = t
			return true
		})
	}

	c := &Change{}
	var fireErr error
	incoming.EachTopic(func(_ *Module, t *Topic) bool {
		t.Approval = nil
		var before []Subtopic
		if prior, ok := previous[t.ID]; ok {
			if prior.Approval != nil {
				rec := *prior.Approval
				t.Approval = &rec
			}
			before = prior.Subtopics
		}

		generated := t.SlideCount()
		for i := range t.Subtopics {
			for j := range t.Subtopics[i].Slides {
				t.Subtopics[i].Slides[j].Tags.EditedByUser = false
			}
		}
		merged, kept := PreserveEdits(before, t.Subtopics)
		if err := ValidateSubtree(t.ID, merged); err != nil {
			fireErr = err
			return false
		}
		t.Subtopics = merged

		_, d := MarkEdits(before, t.Subtopics)
		d.Preserved = kept
		c.recordDiff(t.ID, d)
		if generated == 0 || !d.Modified() {
			return true
		}
		tr, fired, err := m.Regenerate(t, actorID, override)
		if err != nil {
			fireErr = err
			return false
		}
		if fired {
			c.Transitions = append(c.Transitions, tr)
		}
		return true
	})
	if fireErr != nil {
		return nil, fireErr
	}
	return c, nil
}
