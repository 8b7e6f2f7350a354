package course

import (
	"fmt"
	"time"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testMachine(policy RegeneratePolicy) Machine {
	return Machine{Policy: policy, Now: func() time.Time { return fixedNow }}
}

func slide(id, title string, bullets ...string) Slide {
	return Slide{
		ID:                 id,
		Title:              title,
		Bullets:            bullets,
		IllustrationPrompt: "diagram of " + title,
		Tags:               SlideTags{ConceptIDs: []string{}},
	}
}

// sampleGraph has one module with two topics. t1 holds slides s1 and s2, t2 holds s3.
func sampleGraph() *CourseGraph {
	return &CourseGraph{
		CourseID: "course-1",
		Version:  1,
		Modules: []Module{{
			ID:   "m1",
			Name: "Foundations",
			Topics: []Topic{
				{
					ID:    "t1",
					Title: "Recursion",
					Subtopics: []Subtopic{{
						ID:     "st1",
						Title:  "Basics",
						Slides: []Slide{slide("s1", "A", "x"), slide("s2", "B", "y")},
					}},
				},
				{
					ID:    "t2",
					Title: "Iteration",
					Subtopics: []Subtopic{{
						ID:     "st2",
						Title:  "Loops",
						Slides: []Slide{slide("s3", "C", "z")},
					}},
				},
			},
		}},
	}
}

// topicWithSlides returns a subtree of n well-formed slides
func topicWithSlides(n int) []Subtopic {
	sub := Subtopic{ID: "gen-st", Title: "Generated"}
	for i := 0; i < n; i++ {
		s := slide(fmt.Sprintf("gen-s%d", i), fmt.Sprintf("Slide %d", i), "one", "two", "three")
		s.Order = i
		sub.Slides = append(sub.Slides, s)
	}
	return []Subtopic{sub}
}
