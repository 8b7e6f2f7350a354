// Package concept holds the Concept Graph: concepts with ids derived from their normalized label,
// typed relations between them, and the mutations that keep every relation anchored to existing
// concepts.
package concept

// Graph is the per-course concept document. Its Version is independent of the course graph.
type Graph struct {
	CourseID  string     `json:"courseId"`
	Version   int64      `json:"version"`
	Concepts  []Concept  `json:"concepts"`
	Relations []Relation `json:"relations"`
}

// Concept is a node of the concept graph
type Concept struct {
	ID          string   `json:"id"`
	Label       string   `json:"label" validate:"required"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Relation is a directed, typed edge between two concepts
type Relation struct {
	SourceID     string  `json:"sourceId" validate:"required"`
	TargetID     string  `json:"targetId" validate:"required"`
	RelationType string  `json:"relationType" validate:"required"`
	Confidence   float64 `json:"confidence" validate:"gte=0,lte=1"`
	Evidence     string  `json:"evidence,omitempty"`
}

// Key identifies a relation by its endpoints and type
func (r Relation) Key() string {
	return r.SourceID + "|" + r.RelationType + "|" + r.TargetID
}

// Touches reports whether the relation has id as either endpoint
func (r Relation) Touches(id string) bool {
	return r.SourceID == id || r.TargetID == id
}

// New returns an empty concept graph for a course
func New(courseID string) *Graph {
	return &Graph{CourseID: courseID, Concepts: []Concept{}, Relations: []Relation{}}
}

// Clone returns a deep copy
func (g *Graph) Clone() *Graph {
	out := &Graph{
		CourseID:  g.CourseID,
		Version:   g.Version,
		Concepts:  make([]Concept, len(g.Concepts)),
		Relations: append([]Relation{}, g.Relations...),
	}
	for i, c := range g.Concepts {
		c.Tags = append([]string{}, c.Tags...)
		out.Concepts[i] = c
	}
	return out
}

// Find returns the concept with id, or nil
func (g *Graph) Find(id string) *Concept {
	for i := range g.Concepts {
		if g.Concepts[i].ID == id {
			return &g.Concepts[i]
		}
	}
	return nil
}
