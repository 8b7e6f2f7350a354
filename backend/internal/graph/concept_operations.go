package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"course-graph/backend/internal/concept"
	"course-graph/backend/internal/constants"
	apperrors "course-graph/backend/pkg/errors"
)

// ============================================================================
// Concept Projection
// ============================================================================

// projectConcepts rewrites the course's (:Concept) nodes and [:RELATES] edges from a concept graph
// body. It runs in the same transaction as the document write, so the projection never lags the
// stored version.
func projectConcepts(ctx context.Context, tx neo4j.ManagedTransaction, courseID string, body []byte) error {
	var g concept.Graph
	if err := json.Unmarshal(body, &g); err != nil {
		return apperrors.NewStorage("decode concept graph", err)
	}

	if _, err := tx.Run(ctx, `
		MATCH (c:Concept {course_id: $courseID})
		DETACH DELETE c
	`, map[string]interface{}{"courseID": courseID}); err != nil {
		return apperrors.NewStorage("clear concept projection", err)
	}

	concepts := make([]map[string]interface{}, 0, len(g.Concepts))
	for _, c := range g.Concepts {
		tags := c.Tags
		if tags == nil {
			tags = []string{}
		}
		concepts = append(concepts, map[string]interface{}{
			"id":          c.ID,
			"label":       c.Label,
			"description": c.Description,
			"tags":        tags,
		})
	}
	if len(concepts) > 0 {
		if _, err := tx.Run(ctx, `
			UNWIND $concepts AS c
			CREATE (:Concept {
				course_id: $courseID,
				id: c.id,
				label: c.label,
				description: c.description,
				tags: c.tags
			})
		`, map[string]interface{}{"courseID": courseID, "concepts": concepts}); err != nil {
			return apperrors.NewStorage("project concepts", err)
		}
	}

	relations := make([]map[string]interface{}, 0, len(g.Relations))
	for _, rel := range g.Relations {
		relations = append(relations, map[string]interface{}{
			"source":     rel.SourceID,
			"target":     rel.TargetID,
			"type":       rel.RelationType,
			"confidence": rel.Confidence,
			"evidence":   rel.Evidence,
		})
	}
	if len(relations) > 0 {
		if _, err := tx.Run(ctx, `
			UNWIND $relations AS r
			MATCH (s:Concept {course_id: $courseID, id: r.source})
			MATCH (t:Concept {course_id: $courseID, id: r.target})
			CREATE (s)-[:RELATES {type: r.type, confidence: r.confidence, evidence: r.evidence}]->(t)
		`, map[string]interface{}{"courseID": courseID, "relations": relations}); err != nil {
			return apperrors.NewStorage("project relations", err)
		}
	}
	return nil
}

// Related finds concepts reachable from conceptID within depth hops over the projected
// relations, in either direction. Depth is clamped to 1..MaxRelatedDepth.
func (r *Repository) Related(ctx context.Context, courseID, conceptID string, depth int) ([]concept.Neighbor, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	if depth < 1 {
		depth = 1
	}
	if depth > constants.MaxRelatedDepth {
		depth = constants.MaxRelatedDepth
	}

	// Variable-length bounds cannot be parameters
	query := fmt.Sprintf(`
		MATCH (start:Concept {course_id: $courseID, id: $conceptID})
		MATCH p = (start)-[:RELATES*1..%d]-(other:Concept)
		WHERE other.id <> start.id
		WITH other, min(length(p)) as depth
		RETURN other.id as id, other.label as label, other.description as description,
		       other.tags as tags, depth
		ORDER BY depth ASC, label ASC
	`, depth)

	result, err := session.Run(ctx, query, map[string]interface{}{
		"courseID":  courseID,
		"conceptID": conceptID,
	})
	if err != nil {
		return nil, apperrors.NewStorage("related concepts", err)
	}

	neighbors := []concept.Neighbor{}
	for result.Next(ctx) {
		record := result.Record()
		neighbors = append(neighbors, concept.Neighbor{
			Concept: concept.Concept{
				ID:          getStringFromRecord(record, "id"),
				Label:       getStringFromRecord(record, "label"),
				Description: getStringFromRecord(record, "description"),
				Tags:        getStringSliceFromRecord(record, "tags"),
			},
			Depth: getIntFromRecord(record, "depth"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStorage("related concepts", err)
	}

	r.logger.Debug("Related concepts",
		zap.String("course_id", courseID),
		zap.String("concept_id", conceptID),
		zap.Int("depth", depth),
		zap.Int("count", len(neighbors)),
	)
	return neighbors, nil
}
