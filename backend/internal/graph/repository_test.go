package graph

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-graph/backend/internal/concept"
	"course-graph/backend/internal/constants"
	"course-graph/backend/internal/store"
	"course-graph/backend/internal/store/storetest"
	apperrors "course-graph/backend/pkg/errors"
)

// These tests require a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables.

func TestRepository_CompareAndSwap(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	ctx := context.Background()
	repo, courseID := newTestRepository(t)

	doc, err := repo.Create(ctx, constants.KindCourseGraph, courseID, []byte(`{"modules":[]}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)

	_, err = repo.Create(ctx, constants.KindCourseGraph, courseID, []byte(`{}`))
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeAlreadyExists))

	audit := []store.AuditRecord{{CourseID: courseID, TopicID: "t1", FromStatus: "NOT_STARTED", ToStatus: "GENERATED", ActorID: "gen", At: time.Now()}}
	doc, err = repo.CompareAndSwap(ctx, constants.KindCourseGraph, courseID, 1, []byte(`{"modules":[{"id":"m1"}]}`), audit)
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Version)

	_, err = repo.CompareAndSwap(ctx, constants.KindCourseGraph, courseID, 1, []byte(`{"modules":[]}`), audit)
	var conflict *apperrors.ErrVersionConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(2), conflict.CurrentVersion)

	got, err := repo.Get(ctx, constants.KindCourseGraph, courseID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.JSONEq(t, `{"modules":[{"id":"m1"}]}`, string(got.Body))

	log, err := repo.AuditLog(ctx, courseID, "t1")
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "GENERATED", log[0].ToStatus)
	assert.Equal(t, int64(2), log[0].GraphVersion)
}

func TestRepository_StoreContract(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	storetest.Run(t, func(t *testing.T) store.Store {
		repo, _ := newTestRepository(t)
		return repo
	})
}

func TestRepository_GetMissing(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	repo, courseID := newTestRepository(t)

	_, err := repo.Get(context.Background(), constants.KindCourseGraph, courseID)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestRepository_Related(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	ctx := context.Background()
	repo, courseID := newTestRepository(t)

	g := concept.New(courseID)
	for _, label := range []string{"Recursion", "Base Case", "Stack Frame"} {
		_, err := g.AddConcept(label, "", nil)
		require.NoError(t, err)
	}
	_, err := g.AddRelation(concept.Relation{SourceID: concept.ID("Recursion"), TargetID: concept.ID("Base Case")})
	require.NoError(t, err)
	_, err = g.AddRelation(concept.Relation{SourceID: concept.ID("Stack Frame"), TargetID: concept.ID("Base Case"), RelationType: "USES"})
	require.NoError(t, err)
	body, err := json.Marshal(g)
	require.NoError(t, err)

	_, err = repo.Create(ctx, constants.KindConceptGraph, courseID, body)
	require.NoError(t, err)

	one, err := repo.Related(ctx, courseID, concept.ID("Recursion"), 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "Base Case", one[0].Concept.Label)

	two, err := repo.Related(ctx, courseID, concept.ID("Recursion"), 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, 2, two[1].Depth)
	assert.Equal(t, two, g.Related(concept.ID("Recursion"), 2))
}

func newTestRepository(t *testing.T) (*Repository, string) {
	t.Helper()
	driver, err := createTestDriver()
	if err != nil {
		t.Skipf("Neo4j unavailable: %v", err)
	}
	repo := NewRepository(driver)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		_ = driver.Close(context.Background())
		t.Skipf("Neo4j schema setup failed: %v", err)
	}
	courseID := "test-course-" + time.Now().Format("20060102150405.000000")

	t.Cleanup(func() {
		ctx := context.Background()
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx, `
			MATCH (n) WHERE n.course_id = $courseID OR n.course_id STARTS WITH $prefix
			DETACH DELETE n
		`, map[string]interface{}{"courseID": courseID, "prefix": storetest.CoursePrefix})
		_ = driver.Close(ctx)
	})
	return repo, courseID
}

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_PASSWORD")
	if password == "" {
		password = "password"
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}

	// Verify connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}
	return driver, nil
}
