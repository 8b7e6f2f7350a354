package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"course-graph/backend/internal/course"
	"course-graph/backend/internal/store"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// mapCache is an in-process SnapshotCache that remembers invalidations
type mapCache struct {
	mu          sync.Mutex
	docs        map[string]*store.Document
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{docs: make(map[string]*store.Document)}
}

func (c *mapCache) Get(_ context.Context, kind, courseID string) (*store.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[kind+"/"+courseID]
	if !ok {
		return nil, false
	}
	cp := *doc
	return &cp, true
}

func (c *mapCache) Set(_ context.Context, doc *store.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := doc.Kind + "/" + doc.CourseID
	if cur, ok := c.docs[k]; ok && cur.Version >= doc.Version {
		return
	}
	cp := *doc
	c.docs[k] = &cp
}

func (c *mapCache) Invalidate(_ context.Context, kind, courseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, kind+"/"+courseID)
	c.invalidated = append(c.invalidated, kind+"/"+courseID)
}

func (c *mapCache) Close() error { return nil }

func generatedSlides(prefix string, n int) []course.Subtopic {
	sub := course.Subtopic{ID: prefix + "-st", Title: "Generated"}
	for i := 0; i < n; i++ {
		sub.Slides = append(sub.Slides, course.Slide{
			ID:                 fmt.Sprintf("%s-s%d", prefix, i),
			Order:              i,
			Title:              fmt.Sprintf("Slide %d", i),
			Bullets:            []string{"one", "two", "three"},
			IllustrationPrompt: "a diagram",
		})
	}
	return []course.Subtopic{sub}
}

// skeleton is a course outline with two empty topics
func skeleton() *course.CourseGraph {
	return &course.CourseGraph{
		Modules: []course.Module{{
			ID:   "m1",
			Name: "Foundations",
			Topics: []course.Topic{
				{ID: "t1", Title: "Recursion"},
				{ID: "t2", Title: "Iteration"},
			},
		}},
	}
}

func newTestGraphStore(t *testing.T, s store.Store, policy course.RegeneratePolicy) *GraphStore {
	t.Helper()
	gs := NewGraphStore(s, nil, policy)
	gs.Machine().Now = func() time.Time { return fixedNow }
	return gs
}

// seededCourse initialises course-1 and installs generated content for t1, leaving it at version 2
func seededCourse(t *testing.T, gs *GraphStore) {
	t.Helper()
	ctx := context.Background()
	_, err := gs.Init(ctx, "course-1", skeleton())
	require.NoError(t, err)
	res, err := gs.InstallTopicContent(ctx, "course-1", "t1", generatedSlides("t1", 8), 1, "gen", false)
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Version)
}
