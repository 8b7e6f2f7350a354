package constants

// Concept identity constants
const (
	// ConceptIDPrefix prefixes every hash-derived concept id
	ConceptIDPrefix = "c_"
	// ConceptIDHashLength is the number of hex characters of the label hash kept in the id
	ConceptIDHashLength = 12
)

// Relation constants
const (
	// DefaultRelationType is used when a relation is submitted without a type
	DefaultRelationType = "RELATED_TO"
	// DefaultRelationConfidence is used when a relation request omits its confidence
	DefaultRelationConfidence = 1.0
	// CoOccurrenceRelationType links concepts extracted from the same slide
	CoOccurrenceRelationType = "CO_OCCURRENCE"
	// CoOccurrenceConfidence is the confidence assigned to extracted co-occurrence relations
	CoOccurrenceConfidence = 0.5
	// CoOccurrenceWindow is how many following concepts on a slide each concept is linked to
	CoOccurrenceWindow = 2
	// MaxRelatedDepth bounds relation traversal requests
	MaxRelatedDepth = 5
)

// Slide quality thresholds used by the advisory report
const (
	MinSlidesPerTopic     = 6
	MaxSlidesPerTopic     = 10
	TargetSlidesPerTopic  = 8
	MinRecommendedBullets = 3
	MaxRecommendedBullets = 5
)

// Document kinds persisted by the store
const (
	KindCourseGraph  = "course_graph"
	KindConceptGraph = "concept_graph"
)
