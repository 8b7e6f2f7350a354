package concept

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "course-graph/backend/pkg/errors"
)

// chain builds A -> B -> C with default relations
func chain(t *testing.T) *Graph {
	t.Helper()
	g := New("course-1")
	for _, label := range []string{"Alpha", "Beta", "Gamma"} {
		_, err := g.AddConcept(label, "", nil)
		require.NoError(t, err)
	}
	_, err := g.AddRelation(Relation{SourceID: ID("Alpha"), TargetID: ID("Beta")})
	require.NoError(t, err)
	_, err = g.AddRelation(Relation{SourceID: ID("Beta"), TargetID: ID("Gamma"), RelationType: "prerequisite_of"})
	require.NoError(t, err)
	return g
}

func TestID_StableAcrossCaseAndWhitespace(t *testing.T) {
	id := ID("Recursion")
	assert.Equal(t, id, ID("  recursion "))
	assert.True(t, strings.HasPrefix(id, "c_"))
	assert.Len(t, id, 14)
	assert.NotEqual(t, id, ID("Recursions"))
}

func TestAddConcept_DeduplicatesByNormalizedLabel(t *testing.T) {
	g := New("course-1")
	c, err := g.AddConcept("Recursion", "calls itself", []string{"core", "core", " "})
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, c.Tags)

	_, err = g.AddConcept("  recursion", "", nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeDuplicate))
	assert.Len(t, g.Concepts, 1)

	_, err = g.AddConcept("   ", "", nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
}

func TestAddConcept_RejectsHashCollision(t *testing.T) {
	g := New("course-1")
	// Simulate a different label already stored under the id "Recursion" hashes to
	g.Concepts = append(g.Concepts, Concept{ID: ID("Recursion"), Label: "Something Else"})

	_, err := g.AddConcept("Recursion", "", nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeIDCollision))
}

func TestUpdateConcept(t *testing.T) {
	g := chain(t)
	desc := "first letter"

	c, err := g.UpdateConcept(ID("Alpha"), &desc, []string{"greek"})
	require.NoError(t, err)
	assert.Equal(t, "first letter", c.Description)
	assert.Equal(t, "Alpha", c.Label)

	c, err = g.UpdateConcept(ID("Alpha"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"greek"}, c.Tags)

	_, err = g.UpdateConcept("c_missing", &desc, nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestAddRelation_DefaultsAndValidation(t *testing.T) {
	g := chain(t)

	assert.Equal(t, "RELATED_TO", g.Relations[0].RelationType)
	assert.Equal(t, 0.0, g.Relations[0].Confidence, "confidence is stored as given")
	assert.Equal(t, "PREREQUISITE_OF", g.Relations[1].RelationType)

	_, err := g.AddRelation(Relation{SourceID: ID("Alpha"), TargetID: ID("Beta")})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeDuplicate))

	_, err = g.AddRelation(Relation{SourceID: ID("Alpha"), TargetID: "c_nowhere"})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeIntegrity))

	_, err = g.AddRelation(Relation{SourceID: ID("Alpha"), TargetID: ID("Gamma"), Confidence: 1.5})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))

	_, err = g.AddRelation(Relation{TargetID: ID("Gamma")})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))

	assert.Len(t, g.Relations, 2)
}

func TestDeleteRelation(t *testing.T) {
	g := chain(t)

	require.NoError(t, g.DeleteRelation(ID("Beta"), ID("Gamma"), "Prerequisite_Of"))
	assert.Len(t, g.Relations, 1)

	err := g.DeleteRelation(ID("Beta"), ID("Gamma"), "PREREQUISITE_OF")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestDeleteConcept_CascadesRelations(t *testing.T) {
	g := chain(t)

	removed, err := g.DeleteConcept(ID("Beta"))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Len(t, g.Concepts, 2)
	assert.Empty(t, g.Relations)
	require.NoError(t, g.CheckIntegrity())

	_, err = g.DeleteConcept(ID("Beta"))
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestDeleteConcept_LeavesOriginalUntouched(t *testing.T) {
	g := chain(t)
	working := g.Clone()

	_, err := working.DeleteConcept(ID("Alpha"))
	require.NoError(t, err)
	assert.Len(t, g.Concepts, 3)
	assert.Len(t, g.Relations, 2)
	assert.Len(t, working.Relations, 1)
}

func TestCheckIntegrity(t *testing.T) {
	g := chain(t)
	require.NoError(t, g.CheckIntegrity())

	dangling := g.Clone()
	dangling.Relations = append(dangling.Relations, Relation{SourceID: ID("Alpha"), TargetID: "c_gone", RelationType: "RELATED_TO"})
	assert.True(t, apperrors.IsErrorType(dangling.CheckIntegrity(), apperrors.ErrorTypeIntegrity))

	forged := g.Clone()
	forged.Concepts[0].ID = "c_000000000000"
	assert.True(t, apperrors.IsErrorType(forged.CheckIntegrity(), apperrors.ErrorTypeIntegrity))

	dup := g.Clone()
	dup.Concepts = append(dup.Concepts, dup.Concepts[0])
	assert.True(t, apperrors.IsErrorType(dup.CheckIntegrity(), apperrors.ErrorTypeIntegrity))
}

func TestAddRelation_ExplicitConfidence(t *testing.T) {
	g := chain(t)

	zero, err := g.AddRelation(Relation{SourceID: ID("Alpha"), TargetID: ID("Gamma"), RelationType: "CONTRASTS", Confidence: 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero.Confidence)

	sure, err := g.AddRelation(Relation{SourceID: ID("Gamma"), TargetID: ID("Alpha"), Confidence: 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, sure.Confidence)

	_, err = g.AddRelation(Relation{SourceID: ID("Gamma"), TargetID: ID("Beta"), Confidence: -0.1})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
}
