package engine

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"course-graph/backend/internal/cache"
	"course-graph/backend/internal/constants"
	"course-graph/backend/internal/course"
	"course-graph/backend/internal/metrics"
	"course-graph/backend/internal/store"
	apperrors "course-graph/backend/pkg/errors"
	"course-graph/backend/pkg/logger"
)

// CourseResult is the outcome of an accepted course graph write
type CourseResult struct {
	Graph       *course.CourseGraph          `json:"document"`
	Version     int64                        `json:"version"`
	Diffs       map[string]course.DiffResult `json:"diffs,omitempty"`
	Transitions []course.Transition          `json:"transitions,omitempty"`
	Edits       []course.Edit                `json:"edits,omitempty"`
}

// GraphStore owns the versioned course graph of every course
type GraphStore struct {
	docs    *documents
	machine course.Machine
	logger  *zap.Logger
}

// NewGraphStore creates a GraphStore on s. A nil cache disables snapshot caching.
func NewGraphStore(s store.Store, c cache.SnapshotCache, policy course.RegeneratePolicy) *GraphStore {
	log := logger.Named("graph-store")
	return &GraphStore{
		docs:    newDocuments(constants.KindCourseGraph, s, c, log),
		machine: course.NewMachine(policy),
		logger:  log,
	}
}

// Machine exposes the approval machine, mainly so tests can pin its clock
func (s *GraphStore) Machine() *course.Machine {
	return &s.machine
}

// Init creates the course graph at version 1. Approval fields of initial are discarded: every topic
// starts NOT_STARTED and only generation moves it forward.
func (s *GraphStore) Init(ctx context.Context, courseID string, initial *course.CourseGraph) (*CourseResult, error) {
	if courseID == "" {
		return nil, apperrors.NewValidation("courseId", "cannot be empty")
	}
	g := course.New(courseID)
	if initial != nil {
		g = initial.Clone()
		g.CourseID = courseID
		if g.Modules == nil {
			g.Modules = []course.Module{}
		}
	}
	if err := course.PrepareGraph(g); err != nil {
		return nil, err
	}
	g.EachTopic(func(_ *course.Module, t *course.Topic) bool {
		t.Approval = nil
		return true
	})
	g.Version = 1

	body, err := json.Marshal(g)
	if err != nil {
		return nil, apperrors.NewStorage("encode course graph", err)
	}
	doc, err := s.docs.create(ctx, courseID, body)
	if err != nil {
		return nil, err
	}
	return &CourseResult{Graph: g, Version: doc.Version}, nil
}

// Get returns the current graph and its version
func (s *GraphStore) Get(ctx context.Context, courseID string) (*course.CourseGraph, error) {
	doc, err := s.docs.snapshot(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return decodeCourse(doc)
}

// Replace overwrites the whole graph without an expected version, as generation resyncs do.
// Stored approval records survive by topic id and changed topics fire the generation transition.
// The commit is still conditional on the version read here, so a concurrent writer is never
// silently overwritten; it surfaces as a version conflict.
func (s *GraphStore) Replace(ctx context.Context, courseID string, incoming *course.CourseGraph, actorID string, override bool) (_ *CourseResult, err error) {
	if incoming == nil {
		return nil, apperrors.NewValidation("document", "cannot be empty")
	}
	ctx, finish := s.docs.span(ctx, "replace", courseID)
	defer func() { finish(err) }()

	doc, err := s.docs.latest(ctx, courseID)
	if err != nil {
		return nil, err
	}
	stored, err := decodeCourse(doc)
	if err != nil {
		return nil, err
	}

	next := incoming.Clone()
	next.CourseID = courseID
	if next.Modules == nil {
		next.Modules = []course.Module{}
	}
	change, err := course.Reconcile(stored, next, s.machine, actorID, override)
	if err != nil {
		s.docs.reject("replace", courseID, err)
		return nil, err
	}
	return s.commit(ctx, "replace", doc.Version, next, change)
}

// Patch applies ops in order to the graph stored at expectedVersion. Any failing op rejects the
// whole patch and nothing is written.
func (s *GraphStore) Patch(ctx context.Context, courseID string, expectedVersion int64, ops ...course.Operation) (*CourseResult, error) {
	return s.apply(ctx, "patch", courseID, expectedVersion, ops...)
}

// UpdateSlide edits one slide
func (s *GraphStore) UpdateSlide(ctx context.Context, courseID string, expectedVersion int64, op course.UpdateSlide) (*CourseResult, error) {
	return s.apply(ctx, course.OpUpdateSlide, courseID, expectedVersion, op)
}

// ReplaceSubtree installs a reviewer's bulk edit of a topic's subtree
func (s *GraphStore) ReplaceSubtree(ctx context.Context, courseID, topicID string, subtopics []course.Subtopic, expectedVersion int64) (*CourseResult, error) {
	return s.apply(ctx, course.OpReplaceSubtree, courseID, expectedVersion, course.ReplaceSubtree{TopicID: topicID, Subtopics: subtopics})
}

// InstallTopicContent is the generation collaborator's write for one topic
func (s *GraphStore) InstallTopicContent(ctx context.Context, courseID, topicID string, subtopics []course.Subtopic, expectedVersion int64, actorID string, override bool) (*CourseResult, error) {
	return s.apply(ctx, "install_content", courseID, expectedVersion, course.InstallContent{
		TopicID:   topicID,
		Subtopics: subtopics,
		ActorID:   actorID,
		Override:  override,
		Machine:   s.machine,
	})
}

// Review records a reviewer decision on a GENERATED topic
func (s *GraphStore) Review(ctx context.Context, courseID, topicID string, decision course.ApprovalStatus, comment, actorID string, expectedVersion int64) (*CourseResult, error) {
	return s.apply(ctx, "review", courseID, expectedVersion, course.Review{
		TopicID:  topicID,
		Decision: decision,
		Comment:  comment,
		ActorID:  actorID,
		Machine:  s.machine,
	})
}

// AuditTrail returns the approval history of a topic, oldest first
func (s *GraphStore) AuditTrail(ctx context.Context, courseID, topicID string) ([]store.AuditRecord, error) {
	g, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if _, _, err := g.FindTopic(topicID); err != nil {
		return nil, err
	}
	return s.history(ctx, courseID, topicID, store.AuditKindTransition)
}

// EditHistory returns the content edits of a topic, or of the whole course when topicID is
// empty, oldest first. Module renames only appear in the course-wide history.
func (s *GraphStore) EditHistory(ctx context.Context, courseID, topicID string) ([]store.AuditRecord, error) {
	g, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if topicID != "" {
		if _, _, err := g.FindTopic(topicID); err != nil {
			return nil, err
		}
	}
	return s.history(ctx, courseID, topicID, store.AuditKindEdit)
}

func (s *GraphStore) history(ctx context.Context, courseID, topicID, kind string) ([]store.AuditRecord, error) {
	records, err := s.docs.store.AuditLog(ctx, courseID, topicID)
	if err != nil {
		return nil, err
	}
	out := make([]store.AuditRecord, 0, len(records))
	for _, rec := range records {
		if rec.KindOrDefault() == kind {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ExportReadiness reports whether the course, or one topic, may be exported
func (s *GraphStore) ExportReadiness(ctx context.Context, courseID, topicID string) (course.Readiness, error) {
	g, err := s.Get(ctx, courseID)
	if err != nil {
		return course.Readiness{}, err
	}
	return course.ExportReadiness(g, topicID)
}

// Compile builds the slide plan handed to the rendering collaborator
func (s *GraphStore) Compile(ctx context.Context, courseID, topicID string, force bool) (course.SlidePlan, error) {
	g, err := s.Get(ctx, courseID)
	if err != nil {
		return course.SlidePlan{}, err
	}
	plan, err := course.Compile(g, topicID, force)
	if err != nil {
		return course.SlidePlan{}, err
	}
	if force {
		s.logger.Warn("Export compiled with force",
			zap.String("course_id", courseID),
			zap.String("topic_id", topicID),
			zap.Int64("version", g.Version),
		)
	}
	return plan, nil
}

// Inspect runs the advisory quality report
func (s *GraphStore) Inspect(ctx context.Context, courseID string) (course.Report, error) {
	g, err := s.Get(ctx, courseID)
	if err != nil {
		return course.Report{}, err
	}
	return course.Inspect(g), nil
}

func (s *GraphStore) apply(ctx context.Context, op, courseID string, expectedVersion int64, ops ...course.Operation) (_ *CourseResult, err error) {
	if expectedVersion < 1 {
		return nil, apperrors.NewValidation("expectedVersion", "must be >= 1")
	}
	ctx, finish := s.docs.span(ctx, op, courseID)
	defer func() { finish(err) }()

	doc, err := s.docs.latest(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.docs.checkVersion(ctx, op, doc, expectedVersion); err != nil {
		return nil, err
	}
	working, err := decodeCourse(doc)
	if err != nil {
		return nil, err
	}

	change, err := course.Apply(working, ops...)
	if err != nil {
		s.docs.reject(op, courseID, err)
		return nil, err
	}
	return s.commit(ctx, op, expectedVersion, working, change)
}

func (s *GraphStore) commit(ctx context.Context, op string, expected int64, g *course.CourseGraph, change *course.Change) (*CourseResult, error) {
	g.Version = expected + 1
	body, err := json.Marshal(g)
	if err != nil {
		return nil, apperrors.NewStorage("encode course graph", err)
	}

	audit := make([]store.AuditRecord, 0, len(change.Transitions)+len(change.Edits))
	for _, tr := range change.Transitions {
		audit = append(audit, store.AuditRecord{
			Kind:       store.AuditKindTransition,
			CourseID:   g.CourseID,
			TopicID:    tr.TopicID,
			FromStatus: string(tr.From),
			ToStatus:   string(tr.To),
			ActorID:    tr.ActorID,
			Comment:    tr.Comment,
			At:         tr.At,
		})
	}

	editedAt := s.machine.Clock()
	for _, e := range change.Edits {
		audit = append(audit, store.AuditRecord{
			Kind:      store.AuditKindEdit,
			CourseID:  g.CourseID,
			TopicID:   e.TopicID,
			Operation: e.Operation,
			TargetID:  e.TargetID,
			Changes:   e.Changes,
			At:        editedAt,
		})
	}

	doc, err := s.docs.commit(ctx, op, g.CourseID, expected, body, audit)
	if err != nil {
		return nil, err
	}
	g.Version = doc.Version
	for _, tr := range change.Transitions {
		metrics.Transitions.WithLabelValues(string(tr.From), string(tr.To)).Inc()
		s.logger.Info("Approval transition",
			zap.String("course_id", g.CourseID),
			zap.String("topic_id", tr.TopicID),
			zap.String("from", string(tr.From)),
			zap.String("to", string(tr.To)),
			zap.String("actor_id", tr.ActorID),
		)
	}
	return &CourseResult{
		Graph:       g,
		Version:     doc.Version,
		Diffs:       change.Diffs,
		Transitions: change.Transitions,
		Edits:       change.Edits,
	}, nil
}

// decodeCourse trusts the document's version over the body's copy of it
func decodeCourse(doc *store.Document) (*course.CourseGraph, error) {
	var g course.CourseGraph
	if err := json.Unmarshal(doc.Body, &g); err != nil {
		return nil, apperrors.NewStorage("decode course graph", err)
	}
	g.CourseID = doc.CourseID
	g.Version = doc.Version
	if g.Modules == nil {
		g.Modules = []course.Module{}
	}
	return &g, nil
}
