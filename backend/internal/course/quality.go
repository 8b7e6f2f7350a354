package course

import (
	"fmt"
	"strings"

	"course-graph/backend/internal/constants"
)

// Severity of a quality issue
const (
	SeverityError   = "ERROR"
	SeverityWarning = "WARNING"
)

// Issue is one finding of the quality report
type Issue struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	TargetID string `json:"targetId"`
	Location string `json:"location"`
}

// Report is the advisory quality report. It never blocks a commit.
type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *Report) add(severity, targetID, location, format string, args ...any) {
	issue := Issue{Severity: severity, Message: fmt.Sprintf(format, args...), TargetID: targetID, Location: location}
	if severity == SeverityError {
		r.Errors = append(r.Errors, issue)
		return
	}
	r.Warnings = append(r.Warnings, issue)
}

// Inspect checks slide counts, bullets, titles, illustration prompts and slide order per topic
func Inspect(g *CourseGraph) Report {
	r := Report{Errors: []Issue{}, Warnings: []Issue{}}
	g.EachTopic(func(_ *Module, t *Topic) bool {
		inspectTopic(t, &r)
		return true
	})
	r.Valid = len(r.Errors) == 0
	return r
}

func inspectTopic(t *Topic, r *Report) {
	topicLoc := fmt.Sprintf("Topic %s", t.Title)
	orders := make(map[int]bool)
	count := 0

	for _, sub := range t.Subtopics {
		for _, s := range sub.Slides {
			count++
			loc := fmt.Sprintf("Slide %s in Topic %s", s.ID, t.ID)

			if strings.TrimSpace(s.Title) == "" {
				r.add(SeverityError, s.ID, loc, "Slide missing title.")
			}
			switch n := len(s.Bullets); {
			case n == 0:
				r.add(SeverityError, s.ID, loc, "Slide must have at least one bullet point.")
			case n < constants.MinRecommendedBullets || n > constants.MaxRecommendedBullets:
				r.add(SeverityWarning, s.ID, loc, "Slide has %d bullets (recommended %d-%d).",
					n, constants.MinRecommendedBullets, constants.MaxRecommendedBullets)
			}
			if strings.TrimSpace(s.IllustrationPrompt) == "" {
				r.add(SeverityError, s.ID, loc, "Slide missing illustration prompt.")
			}
			if orders[s.Order] {
				r.add(SeverityError, s.ID, loc, "Duplicate slide order %d found.", s.Order)
			}
			orders[s.Order] = true
		}
	}

	switch {
	case count < constants.MinSlidesPerTopic || count > constants.MaxSlidesPerTopic:
		r.add(SeverityError, t.ID, topicLoc, "Topic has %d slides (must be %d-%d).",
			count, constants.MinSlidesPerTopic, constants.MaxSlidesPerTopic)
	case count != constants.TargetSlidesPerTopic:
		r.add(SeverityWarning, t.ID, topicLoc, "Topic has %d slides (target is %d).",
			count, constants.TargetSlidesPerTopic)
	}
}
