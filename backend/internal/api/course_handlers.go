package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"course-graph/backend/internal/course"
	apperrors "course-graph/backend/pkg/errors"
)

type initCourseRequest struct {
	Modules []course.Module `json:"modules"`
}

type replaceGraphRequest struct {
	Document *course.CourseGraph `json:"document" binding:"required"`
	ActorID  string              `json:"actorId"`
	Override bool                `json:"override"`
}

type patchGraphRequest struct {
	ExpectedVersion int64             `json:"expectedVersion" binding:"required,min=1"`
	Operations      []json.RawMessage `json:"operations" binding:"required,min=1"`
}

type updateSlideRequest struct {
	Title              *string   `json:"title"`
	Bullets            *[]string `json:"bullets"`
	SpeakerNotes       *string   `json:"speakerNotes"`
	IllustrationPrompt *string   `json:"illustrationPrompt"`
	Order              *int      `json:"order"`
	ConceptIDs         *[]string `json:"conceptIds"`
}

type replaceSubtreeRequest struct {
	ExpectedVersion int64             `json:"expectedVersion" binding:"required,min=1"`
	Subtopics       []course.Subtopic `json:"subtopics"`
}

type installGeneratedRequest struct {
	ExpectedVersion int64             `json:"expectedVersion" binding:"required,min=1"`
	Subtopics       []course.Subtopic `json:"subtopics"`
	ActorID         string            `json:"actorId"`
	Override        bool              `json:"override"`
}

type reviewRequest struct {
	ExpectedVersion int64  `json:"expectedVersion" binding:"required,min=1"`
	Decision        string `json:"decision" binding:"required,oneof=APPROVED REJECTED"`
	Comment         string `json:"comment"`
	ActorID         string `json:"actorId" binding:"required"`
}

func (h *Handler) initCourse(c *gin.Context) {
	courseID := c.Param("courseId")
	var req initCourseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	initial := course.New(courseID)
	if req.Modules != nil {
		initial.Modules = req.Modules
	}
	res, err := h.courses.Init(c.Request.Context(), courseID, initial)
	if err != nil {
		// A retried init still completes a concept graph an earlier attempt failed to create
		if apperrors.IsErrorType(err, apperrors.ErrorTypeAlreadyExists) {
			if _, kgErr := h.concepts.Init(c.Request.Context(), courseID); kgErr != nil {
				h.respondError(c, kgErr)
				return
			}
		}
		h.respondError(c, err)
		return
	}
	kg, err := h.concepts.Init(c.Request.Context(), courseID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Info("Course initialized", zap.String("course_id", courseID))
	c.JSON(http.StatusCreated, gin.H{
		"document":       res.Graph,
		"version":        res.Version,
		"conceptVersion": kg.Version,
	})
}

func (h *Handler) getGraph(c *gin.Context) {
	g, err := h.courses.Get(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": g, "version": g.Version})
}

func (h *Handler) replaceGraph(c *gin.Context) {
	var req replaceGraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.courses.Replace(c.Request.Context(), c.Param("courseId"), req.Document, req.ActorID, req.Override)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) patchGraph(c *gin.Context) {
	var req patchGraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ops, err := course.DecodeOperations(req.Operations)
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.courses.Patch(c.Request.Context(), c.Param("courseId"), req.ExpectedVersion, ops...)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) updateSlide(c *gin.Context) {
	expected, ok := expectedVersionQuery(c)
	if !ok {
		return
	}
	var req updateSlideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.courses.UpdateSlide(c.Request.Context(), c.Param("courseId"), expected, course.UpdateSlide{
		TopicID:            c.Param("topicId"),
		SlideID:            c.Param("slideId"),
		Title:              req.Title,
		Bullets:            req.Bullets,
		SpeakerNotes:       req.SpeakerNotes,
		IllustrationPrompt: req.IllustrationPrompt,
		Order:              req.Order,
		ConceptIDs:         req.ConceptIDs,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) replaceSubtree(c *gin.Context) {
	var req replaceSubtreeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.courses.ReplaceSubtree(c.Request.Context(), c.Param("courseId"), c.Param("topicId"), req.Subtopics, req.ExpectedVersion)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) installGenerated(c *gin.Context) {
	var req installGeneratedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.courses.InstallTopicContent(c.Request.Context(), c.Param("courseId"), c.Param("topicId"),
		req.Subtopics, req.ExpectedVersion, req.ActorID, req.Override)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) review(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.courses.Review(c.Request.Context(), c.Param("courseId"), c.Param("topicId"),
		course.ApprovalStatus(req.Decision), req.Comment, req.ActorID, req.ExpectedVersion)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) auditTrail(c *gin.Context) {
	records, err := h.courses.AuditTrail(c.Request.Context(), c.Param("courseId"), c.Param("topicId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topicId": c.Param("topicId"), "records": records})
}

func (h *Handler) editHistory(c *gin.Context) {
	topicID := c.Param("topicId")
	if topicID == "" {
		topicID = c.Query("topic_id")
	}
	records, err := h.courses.EditHistory(c.Request.Context(), c.Param("courseId"), topicID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topicId": topicID, "records": records})
}

func (h *Handler) validateGraph(c *gin.Context) {
	report, err := h.courses.Inspect(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) exportReadiness(c *gin.Context) {
	r, err := h.courses.ExportReadiness(c.Request.Context(), c.Param("courseId"), c.Query("topic_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) exportPlan(c *gin.Context) {
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
	plan, err := h.courses.Compile(c.Request.Context(), c.Param("courseId"), c.Query("topic_id"), force)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// expectedVersionQuery reads ?expected_version=, writing a 400 when it is missing or malformed
func expectedVersionQuery(c *gin.Context) (int64, bool) {
	raw := c.Query("expected_version")
	if raw == "" {
		badRequest(c, fmt.Errorf("expected_version query parameter is required"))
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		badRequest(c, fmt.Errorf("expected_version must be a positive integer"))
		return 0, false
	}
	return v, true
}
