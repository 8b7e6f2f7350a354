package main

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"course-graph/backend/internal/course"
)

// outline is the YAML seed format: the module/topic skeleton plus optional generated slides
type outline struct {
	Modules []outlineModule `yaml:"modules"`
}

type outlineModule struct {
	ID     string         `yaml:"id"`
	Name   string         `yaml:"name"`
	Topics []outlineTopic `yaml:"topics"`
}

type outlineTopic struct {
	ID        string            `yaml:"id"`
	Title     string            `yaml:"title"`
	Subtopics []outlineSubtopic `yaml:"subtopics"`
}

type outlineSubtopic struct {
	ID     string         `yaml:"id"`
	Title  string         `yaml:"title"`
	Slides []outlineSlide `yaml:"slides"`
}

type outlineSlide struct {
	ID                 string   `yaml:"id"`
	Title              string   `yaml:"title"`
	Bullets            []string `yaml:"bullets"`
	SpeakerNotes       string   `yaml:"speakerNotes"`
	IllustrationPrompt string   `yaml:"illustrationPrompt"`
}

// seedPlan splits an outline into the skeleton created at init and the per-topic content that is
// then installed through generation, so seeded topics reach GENERATED with an audit record.
type seedPlan struct {
	Skeleton *course.CourseGraph
	Content  map[string][]course.Subtopic
	// Order lists topic ids with content in outline order
	Order []string
}

func parseOutline(courseID string, data []byte) (*seedPlan, error) {
	var o outline
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse outline: %w", err)
	}

	plan := &seedPlan{
		Skeleton: course.New(courseID),
		Content:  make(map[string][]course.Subtopic),
	}
	for mi, om := range o.Modules {
		m := course.Module{ID: om.ID, Name: om.Name, Topics: []course.Topic{}}
		if m.ID == "" {
			m.ID = fmt.Sprintf("m%d", mi+1)
		}
		for ti, ot := range om.Topics {
			t := course.Topic{ID: ot.ID, Title: ot.Title, Subtopics: []course.Subtopic{}}
			if t.ID == "" {
				t.ID = fmt.Sprintf("%s-t%d", m.ID, ti+1)
			}
			if len(ot.Subtopics) > 0 {
				plan.Content[t.ID] = convertSubtopics(ot.Subtopics)
				plan.Order = append(plan.Order, t.ID)
			}
			m.Topics = append(m.Topics, t)
		}
		plan.Skeleton.Modules = append(plan.Skeleton.Modules, m)
	}
	return plan, nil
}

// Ids left empty are assigned by the engine
func convertSubtopics(in []outlineSubtopic) []course.Subtopic {
	out := make([]course.Subtopic, 0, len(in))
	for _, ost := range in {
		sub := course.Subtopic{ID: ost.ID, Title: ost.Title, Slides: []course.Slide{}}
		for i, sl := range ost.Slides {
			sub.Slides = append(sub.Slides, course.Slide{
				ID:                 sl.ID,
				Order:              i,
				Title:              sl.Title,
				Bullets:            sl.Bullets,
				SpeakerNotes:       sl.SpeakerNotes,
				IllustrationPrompt: sl.IllustrationPrompt,
				Tags:               course.SlideTags{ConceptIDs: []string{}},
			})
		}
		out = append(out, sub)
	}
	return out
}
