package course

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "course-graph/backend/pkg/errors"
)

// Change accumulates the side effects of applying operations to a working copy
type Change struct {
	Transitions []Transition
	Diffs       map[string]DiffResult
	Edits       []Edit
}

// Edit is one entry of the content edit history. Changes names the fields an update touched, or
// the slide ids a subtree replacement added, changed and removed as "added:<id>" and so on.
type Edit struct {
	Operation string   `json:"operation"`
	TopicID   string   `json:"topicId,omitempty"`
	TargetID  string   `json:"targetId"`
	Changes   []string `json:"changes"`
}

func (c *Change) recordDiff(topicID string, d DiffResult) {
	if c.Diffs == nil {
		c.Diffs = make(map[string]DiffResult)
	}
	c.Diffs[topicID] = d
}

// Operation mutates a working copy of the graph. Implementations must either fully apply or
// return an error; the caller discards the working copy on error.
type Operation interface {
	Kind() string
	Apply(g *CourseGraph, c *Change) error
}

// Patch operation kinds accepted from editing clients
const (
	OpUpdateSlide    = "update_slide"
	OpReplaceSubtree = "replace_subtree"
	OpRenameModule   = "rename_module"
	OpRenameTopic    = "rename_topic"
)

// Apply runs ops in order against g, stopping at the first failure
func Apply(g *CourseGraph, ops ...Operation) (*Change, error) {
	if len(ops) == 0 {
		return nil, apperrors.NewValidation("operations", "at least one operation is required")
	}
	c := &Change{}
	for i, op := range ops {
		if err := op.Apply(g, c); err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i, op.Kind(), err)
		}
	}
	return c, nil
}

// UpdateSlide edits individual slide fields. Any content field marks the slide as user-edited;
// updating only ConceptIDs or Order does not.
type UpdateSlide struct {
	TopicID            string    `json:"topicId"`
	SlideID            string    `json:"slideId"`
	Title              *string   `json:"title,omitempty"`
	Bullets            *[]string `json:"bullets,omitempty"`
	SpeakerNotes       *string   `json:"speakerNotes,omitempty"`
	IllustrationPrompt *string   `json:"illustrationPrompt,omitempty"`
	Order              *int      `json:"order,omitempty"`
	ConceptIDs         *[]string `json:"conceptIds,omitempty"`
}

func (UpdateSlide) Kind() string { return OpUpdateSlide }

func (op UpdateSlide) Apply(g *CourseGraph, c *Change) error {
	if op.IllustrationPrompt != nil && strings.TrimSpace(*op.IllustrationPrompt) == "" {
		return apperrors.NewValidation("illustrationPrompt", "cannot be empty")
	}
	if op.Order != nil && *op.Order < 0 {
		return apperrors.NewValidation("order", "must be >= 0")
	}
	topic, _, err := g.FindTopic(op.TopicID)
	if err != nil {
		return err
	}
	slide, _, err := topic.FindSlide(op.SlideID)
	if err != nil {
		return err
	}

	before := slide.Clone()
	if op.Title != nil {
		slide.Title = *op.Title
	}
	if op.Bullets != nil {
		slide.Bullets = append([]string{}, (*op.Bullets)...)
	}
	if op.SpeakerNotes != nil {
		slide.SpeakerNotes = *op.SpeakerNotes
	}
	if op.IllustrationPrompt != nil {
		slide.IllustrationPrompt = *op.IllustrationPrompt
	}
	if op.Order != nil {
		slide.Order = *op.Order
	}
	if op.ConceptIDs != nil {
		slide.Tags.ConceptIDs = append([]string{}, (*op.ConceptIDs)...)
	}

	if fields := changedFields(&before, slide); len(fields) > 0 {
		c.Edits = append(c.Edits, Edit{Operation: OpUpdateSlide, TopicID: topic.ID, TargetID: slide.ID, Changes: fields})
	}

	d := DiffResult{}
	if slideContentDiffers(&before, slide) {
		slide.Tags.EditedByUser = true
		d.Changed = []string{slide.ID}
	} else {
		d.Unchanged = []string{slide.ID}
	}
	c.recordDiff(topic.ID, d)
	return nil
}

// ReplaceSubtree installs a reviewer's bulk-edited subtree for a topic, marking provenance
// through MarkEdits. Approval state is not touched.
type ReplaceSubtree struct {
	TopicID   string     `json:"topicId"`
	Subtopics []Subtopic `json:"subtopics"`
}

func (ReplaceSubtree) Kind() string { return OpReplaceSubtree }

func (op ReplaceSubtree) Apply(g *CourseGraph, c *Change) error {
	if op.Subtopics == nil {
		return apperrors.NewValidation("subtopics", "must be a list of nodes")
	}
	topic, _, err := g.FindTopic(op.TopicID)
	if err != nil {
		return err
	}
	submitted := CloneSubtree(op.Subtopics)
	AssignMissingIDs(submitted)
	if err := ValidateSubtree(topic.ID, submitted); err != nil {
		return err
	}

	marked, d := MarkEdits(topic.Subtopics, submitted)
	topic.Subtopics = marked
	c.recordDiff(topic.ID, d)
	if d.Modified() {
		c.Edits = append(c.Edits, Edit{Operation: OpReplaceSubtree, TopicID: topic.ID, TargetID: topic.ID, Changes: diffChanges(d)})
	}
	return nil
}

// RenameModule changes a module's display name
type RenameModule struct {
	ModuleID string `json:"moduleId"`
	Name     string `json:"name"`
}

func (RenameModule) Kind() string { return OpRenameModule }

func (op RenameModule) Apply(g *CourseGraph, c *Change) error {
	if strings.TrimSpace(op.Name) == "" {
		return apperrors.NewValidation("name", "cannot be empty")
	}
	m, err := g.FindModule(op.ModuleID)
	if err != nil {
		return err
	}
	if m.Name != op.Name {
		c.Edits = append(c.Edits, Edit{Operation: OpRenameModule, TargetID: m.ID, Changes: []string{"name"}})
	}
	m.Name = op.Name
	return nil
}

// RenameTopic changes a topic's title
type RenameTopic struct {
	TopicID string `json:"topicId"`
	Title   string `json:"title"`
}

func (RenameTopic) Kind() string { return OpRenameTopic }

func (op RenameTopic) Apply(g *CourseGraph, c *Change) error {
	if strings.TrimSpace(op.Title) == "" {
		return apperrors.NewValidation("title", "cannot be empty")
	}
	t, _, err := g.FindTopic(op.TopicID)
	if err != nil {
		return err
	}
	if t.Title != op.Title {
		c.Edits = append(c.Edits, Edit{Operation: OpRenameTopic, TopicID: t.ID, TargetID: t.ID, Changes: []string{"title"}})
	}
	t.Title = op.Title
	return nil
}

// InstallContent is the generation collaborator's write: it replaces a topic's subtree with
// freshly generated slides and fires the generation transition. Slides a reviewer edited survive
// through PreserveEdits. It is not decodable from a client patch.
type InstallContent struct {
	TopicID   string
	Subtopics []Subtopic
	ActorID   string
	Override  bool
	Machine   Machine
}

func (InstallContent) Kind() string { return "install_content" }

func (op InstallContent) Apply(g *CourseGraph, c *Change) error {
	topic, _, err := g.FindTopic(op.TopicID)
	if err != nil {
		return err
	}
	subtree := CloneSubtree(op.Subtopics)
	AssignMissingIDs(subtree)
	if err := ValidateSubtree(topic.ID, subtree); err != nil {
		return err
	}
	slides := 0
	for i := range subtree {
		slides += len(subtree[i].Slides)
		for j := range subtree[i].Slides {
			subtree[i].Slides[j].Tags.EditedByUser = false
		}
	}
	if slides == 0 {
		return apperrors.NewValidation("subtopics", "generated subtree has no slides")
	}

	merged, kept := PreserveEdits(topic.Subtopics, subtree)
	if err := ValidateSubtree(topic.ID, merged); err != nil {
		return err
	}
	_, d := MarkEdits(topic.Subtopics, merged)
	d.Preserved = kept
	tr, fired, err := op.Machine.Regenerate(topic, op.ActorID, op.Override)
	if err != nil {
		return err
	}
	topic.Subtopics = merged
	if fired {
		c.Transitions = append(c.Transitions, tr)
	}
	c.recordDiff(topic.ID, d)
	return nil
}

// Review applies a reviewer decision through the state machine
type Review struct {
	TopicID  string
	Decision ApprovalStatus
	Comment  string
	ActorID  string
	Machine  Machine
}

func (Review) Kind() string { return "review" }

func (op Review) Apply(g *CourseGraph, c *Change) error {
	topic, _, err := g.FindTopic(op.TopicID)
	if err != nil {
		return err
	}
	tr, err := op.Machine.Review(topic, op.Decision, op.ActorID, op.Comment)
	if err != nil {
		return err
	}
	c.Transitions = append(c.Transitions, tr)
	return nil
}

func changedFields(before, after *Slide) []string {
	var fields []string
	if before.Title != after.Title {
		fields = append(fields, "title")
	}
	if !equalStrings(before.Bullets, after.Bullets) {
		fields = append(fields, "bullets")
	}
	if before.SpeakerNotes != after.SpeakerNotes {
		fields = append(fields, "speakerNotes")
	}
	if before.IllustrationPrompt != after.IllustrationPrompt {
		fields = append(fields, "illustrationPrompt")
	}
	if before.Order != after.Order {
		fields = append(fields, "order")
	}
	if !equalStrings(before.Tags.ConceptIDs, after.Tags.ConceptIDs) {
		fields = append(fields, "conceptIds")
	}
	return fields
}

func diffChanges(d DiffResult) []string {
	changes := make([]string, 0, len(d.Added)+len(d.Changed)+len(d.Removed))
	for _, id := range d.Added {
		changes = append(changes, "added:"+id)
	}
	for _, id := range d.Changed {
		changes = append(changes, "changed:"+id)
	}
	for _, id := range d.Removed {
		changes = append(changes, "removed:"+id)
	}
	return changes
}

type envelope struct {
	Op string `json:"op"`
}

// DecodeOperations parses a client patch: a JSON list of {"op": kind, ...fields}.
// Only editing operations are accepted; approval state cannot be written this way.
func DecodeOperations(raw []json.RawMessage) ([]Operation, error) {
	ops := make([]Operation, 0, len(raw))
	for i, msg := range raw {
		var env envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			return nil, apperrors.WrapValidation(fmt.Sprintf("operations[%d]", i), err)
		}
		var op Operation
		var err error
		switch env.Op {
		case OpUpdateSlide:
			var v UpdateSlide
			err = json.Unmarshal(msg, &v)
			op = v
		case OpReplaceSubtree:
			var v ReplaceSubtree
			err = json.Unmarshal(msg, &v)
			op = v
		case OpRenameModule:
			var v RenameModule
			err = json.Unmarshal(msg, &v)
			op = v
		case OpRenameTopic:
			var v RenameTopic
			err = json.Unmarshal(msg, &v)
			op = v
		default:
			return nil, apperrors.NewValidation(fmt.Sprintf("operations[%d].op", i), fmt.Sprintf("unknown operation %q", env.Op))
		}
		if err != nil {
			return nil, apperrors.WrapValidation(fmt.Sprintf("operations[%d]", i), err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
