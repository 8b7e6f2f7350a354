package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-graph/backend/internal/bootstrap"
	"course-graph/backend/internal/course"
	"course-graph/backend/pkg/config"
)

const sampleOutline = `
modules:
  - id: m1
    name: Foundations
    topics:
      - id: t1
        title: Recursion
        subtopics:
          - title: Basics
            slides:
              - title: What is Recursion
                bullets: [A function calling itself, Needs a Base Case, Uses the Call Stack]
                illustrationPrompt: a mirror reflecting a mirror
      - title: Iteration
`

func TestParseOutline(t *testing.T) {
	plan, err := parseOutline("course-1", []byte(sampleOutline))
	require.NoError(t, err)

	require.Len(t, plan.Skeleton.Modules, 1)
	topics := plan.Skeleton.Modules[0].Topics
	require.Len(t, topics, 2)
	assert.Equal(t, "t1", topics[0].ID)
	assert.Equal(t, "m1-t2", topics[1].ID)
	assert.Empty(t, topics[0].Subtopics, "content is installed through generation, not at init")

	assert.Equal(t, []string{"t1"}, plan.Order)
	require.Len(t, plan.Content["t1"], 1)
	slides := plan.Content["t1"][0].Slides
	require.Len(t, slides, 1)
	assert.Equal(t, "What is Recursion", slides[0].Title)
	assert.Len(t, slides[0].Bullets, 3)
}

func TestParseOutline_Invalid(t *testing.T) {
	_, err := parseOutline("course-1", []byte("modules: [oops"))
	assert.Error(t, err)
}

func TestSeed_InstallsContentThroughGeneration(t *testing.T) {
	ctx := context.Background()
	svc, err := bootstrap.Open(ctx, &config.Config{
		CourseStore:              config.BackendMemory,
		ConceptStore:             config.BackendMemory,
		RegenerateApprovedPolicy: config.RegeneratePolicyDemote,
	})
	require.NoError(t, err)
	defer svc.Close()

	plan, err := parseOutline("course-1", []byte(sampleOutline))
	require.NoError(t, err)
	require.NoError(t, seed(ctx, svc, "course-1", plan, "seeder"))

	g, err := svc.Courses.Get(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), g.Version)

	recursion, _, err := g.FindTopic("t1")
	require.NoError(t, err)
	assert.Equal(t, course.StatusGenerated, recursion.Status())
	iteration, _, err := g.FindTopic("m1-t2")
	require.NoError(t, err)
	assert.Equal(t, course.StatusNotStarted, iteration.Status())

	trail, err := svc.Courses.AuditTrail(ctx, "course-1", "t1")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "seeder", trail[0].ActorID)

	kg, err := svc.Concepts.Get(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), kg.Version)
}
