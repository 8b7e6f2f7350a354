package engine

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"course-graph/backend/internal/cache"
	"course-graph/backend/internal/concept"
	"course-graph/backend/internal/constants"
	"course-graph/backend/internal/course"
	"course-graph/backend/internal/store"
	apperrors "course-graph/backend/pkg/errors"
	"course-graph/backend/pkg/logger"
)

// Traverser answers neighbourhood queries from a backend that indexes relations, such as the
// Neo4j projection. Without one, traversal runs over the decoded document.
type Traverser interface {
	Related(ctx context.Context, courseID, conceptID string, depth int) ([]concept.Neighbor, error)
}

// CourseReader is the part of GraphStore that concept import needs
type CourseReader interface {
	Get(ctx context.Context, courseID string) (*course.CourseGraph, error)
}

// ConceptResult is the outcome of an accepted concept graph write
type ConceptResult struct {
	Graph            *concept.Graph       `json:"document"`
	Version          int64                `json:"version"`
	Concept          *concept.Concept     `json:"concept,omitempty"`
	Relation         *concept.Relation    `json:"relation,omitempty"`
	Similar          []concept.Concept    `json:"similar,omitempty"`
	RemovedRelations int                  `json:"removedRelations,omitempty"`
	Import           *concept.MergeResult `json:"import,omitempty"`
	SlideConcepts    map[string][]string  `json:"slideConcepts,omitempty"`
}

// ConceptGraphStore owns the concept graph of every course. Its version is independent of the
// course graph's.
type ConceptGraphStore struct {
	docs      *documents
	traverser Traverser
	logger    *zap.Logger
}

// NewConceptGraphStore creates a ConceptGraphStore on s. A nil cache disables snapshot caching.
func NewConceptGraphStore(s store.Store, c cache.SnapshotCache) *ConceptGraphStore {
	log := logger.Named("concept-store")
	return &ConceptGraphStore{
		docs:   newDocuments(constants.KindConceptGraph, s, c, log),
		logger: log,
	}
}

// WithTraverser routes Related through t
func (s *ConceptGraphStore) WithTraverser(t Traverser) *ConceptGraphStore {
	s.traverser = t
	return s
}

// Init creates an empty concept graph for the course. It is a no-op when one already exists.
func (s *ConceptGraphStore) Init(ctx context.Context, courseID string) (*concept.Graph, error) {
	if courseID == "" {
		return nil, apperrors.NewValidation("courseId", "cannot be empty")
	}
	g := concept.New(courseID)
	g.Version = 1
	body, err := json.Marshal(g)
	if err != nil {
		return nil, apperrors.NewStorage("encode concept graph", err)
	}
	if _, err := s.docs.create(ctx, courseID, body); err != nil {
		if apperrors.IsErrorType(err, apperrors.ErrorTypeAlreadyExists) {
			return s.Get(ctx, courseID)
		}
		return nil, err
	}
	return g, nil
}

// Get returns the current concept graph and its version
func (s *ConceptGraphStore) Get(ctx context.Context, courseID string) (*concept.Graph, error) {
	doc, err := s.docs.snapshot(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return decodeConcepts(doc)
}

// AddConcept creates a concept and reports existing concepts with similar labels. The hints never
// block the write.
func (s *ConceptGraphStore) AddConcept(ctx context.Context, courseID string, expectedVersion int64, label, description string, tags []string) (*ConceptResult, error) {
	var res ConceptResult
	err := s.apply(ctx, "add_concept", courseID, expectedVersion, &res, func(g *concept.Graph) error {
		res.Similar = g.SimilarTo(label)
		c, err := g.AddConcept(label, description, tags)
		if err != nil {
			return err
		}
		added := *c
		res.Concept = &added
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(res.Similar) > 0 {
		s.logger.Info("Concept added with similar labels",
			zap.String("course_id", courseID),
			zap.String("concept_id", res.Concept.ID),
			zap.Int("similar", len(res.Similar)),
		)
	}
	return &res, nil
}

// UpdateConcept changes a concept's description and tags; nil leaves a field unchanged
func (s *ConceptGraphStore) UpdateConcept(ctx context.Context, courseID string, expectedVersion int64, conceptID string, description *string, tags []string) (*ConceptResult, error) {
	var res ConceptResult
	err := s.apply(ctx, "update_concept", courseID, expectedVersion, &res, func(g *concept.Graph) error {
		c, err := g.UpdateConcept(conceptID, description, tags)
		if err != nil {
			return err
		}
		updated := *c
		res.Concept = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// AddRelation links two existing concepts
func (s *ConceptGraphStore) AddRelation(ctx context.Context, courseID string, expectedVersion int64, r concept.Relation) (*ConceptResult, error) {
	var res ConceptResult
	err := s.apply(ctx, "add_relation", courseID, expectedVersion, &res, func(g *concept.Graph) error {
		added, err := g.AddRelation(r)
		if err != nil {
			return err
		}
		res.Relation = &added
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteRelation removes one relation
func (s *ConceptGraphStore) DeleteRelation(ctx context.Context, courseID string, expectedVersion int64, sourceID, targetID, relationType string) (*ConceptResult, error) {
	var res ConceptResult
	err := s.apply(ctx, "delete_relation", courseID, expectedVersion, &res, func(g *concept.Graph) error {
		if relationType == "" {
			relationType = constants.DefaultRelationType
		}
		return g.DeleteRelation(sourceID, targetID, relationType)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteConcept removes a concept and every relation touching it in one version bump
func (s *ConceptGraphStore) DeleteConcept(ctx context.Context, courseID string, expectedVersion int64, conceptID string) (*ConceptResult, error) {
	var res ConceptResult
	err := s.apply(ctx, "delete_concept", courseID, expectedVersion, &res, func(g *concept.Graph) error {
		n, err := g.DeleteConcept(conceptID)
		if err != nil {
			return err
		}
		res.RemovedRelations = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ImportFromCourse extracts key terms from the course's slides and merges them into the concept
// graph in one write. The returned SlideConcepts maps slide ids to the concept ids found on them.
func (s *ConceptGraphStore) ImportFromCourse(ctx context.Context, courses CourseReader, courseID string, expectedVersion int64) (*ConceptResult, error) {
	cg, err := courses.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	var slides []concept.SlideText
	cg.EachTopic(func(_ *course.Module, t *course.Topic) bool {
		for _, sub := range t.Subtopics {
			for _, sl := range sub.Slides {
				slides = append(slides, concept.SlideText{
					SlideID:      sl.ID,
					Title:        sl.Title,
					Bullets:      sl.Bullets,
					SpeakerNotes: sl.SpeakerNotes,
				})
			}
		}
		return true
	})
	if len(slides) == 0 {
		return nil, apperrors.NewValidation("course", "no slides to import from")
	}
	extraction := concept.Extract(slides)

	var res ConceptResult
	err = s.apply(ctx, "import", courseID, expectedVersion, &res, func(g *concept.Graph) error {
		merged, err := g.Merge(extraction)
		if err != nil {
			return err
		}
		res.Import = &merged
		res.SlideConcepts = extraction.BySlide
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Concepts imported from course",
		zap.String("course_id", courseID),
		zap.Int("slides", len(slides)),
		zap.Int("added_concepts", len(res.Import.AddedConcepts)),
		zap.Int("added_relations", res.Import.AddedRelations),
	)
	return &res, nil
}

// Related returns the concepts within depth hops of conceptID, nearest first
func (s *ConceptGraphStore) Related(ctx context.Context, courseID, conceptID string, depth int) ([]concept.Neighbor, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > constants.MaxRelatedDepth {
		depth = constants.MaxRelatedDepth
	}
	g, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if g.Find(conceptID) == nil {
		return nil, apperrors.NewNotFound("concept", conceptID)
	}
	if s.traverser != nil {
		return s.traverser.Related(ctx, courseID, conceptID, depth)
	}
	return g.Related(conceptID, depth), nil
}

// apply runs fn on a copy of the stored graph, checks integrity, and commits
func (s *ConceptGraphStore) apply(ctx context.Context, op, courseID string, expectedVersion int64, res *ConceptResult, fn func(g *concept.Graph) error) (err error) {
	if expectedVersion < 1 {
		return apperrors.NewValidation("expectedVersion", "must be >= 1")
	}
	ctx, finish := s.docs.span(ctx, op, courseID)
	defer func() { finish(err) }()

	doc, err := s.docs.latest(ctx, courseID)
	if err != nil {
		return err
	}
	if err := s.docs.checkVersion(ctx, op, doc, expectedVersion); err != nil {
		return err
	}
	working, err := decodeConcepts(doc)
	if err != nil {
		return err
	}

	if err := fn(working); err != nil {
		s.docs.reject(op, courseID, err)
		return err
	}
	if err := working.CheckIntegrity(); err != nil {
		s.logger.Error("Concept graph failed integrity check",
			zap.String("course_id", courseID),
			zap.String("operation", op),
			zap.Error(err),
		)
		s.docs.reject(op, courseID, err)
		return err
	}

	working.Version = expectedVersion + 1
	body, err := json.Marshal(working)
	if err != nil {
		return apperrors.NewStorage("encode concept graph", err)
	}
	committed, err := s.docs.commit(ctx, op, courseID, expectedVersion, body, nil)
	if err != nil {
		return err
	}
	working.Version = committed.Version
	res.Graph = working
	res.Version = committed.Version
	return nil
}

func decodeConcepts(doc *store.Document) (*concept.Graph, error) {
	var g concept.Graph
	if err := json.Unmarshal(doc.Body, &g); err != nil {
		return nil, apperrors.NewStorage("decode concept graph", err)
	}
	g.CourseID = doc.CourseID
	g.Version = doc.Version
	if g.Concepts == nil {
		g.Concepts = []concept.Concept{}
	}
	if g.Relations == nil {
		g.Relations = []concept.Relation{}
	}
	return &g, nil
}
