package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"course-graph/backend/internal/concept"
	"course-graph/backend/internal/constants"
)

type addConceptRequest struct {
	ExpectedVersion int64    `json:"expectedVersion" binding:"required,min=1"`
	Label           string   `json:"label" binding:"required"`
	Description     string   `json:"description"`
	Tags            []string `json:"tags"`
}

type updateConceptRequest struct {
	ExpectedVersion int64    `json:"expectedVersion" binding:"required,min=1"`
	Description     *string  `json:"description"`
	Tags            []string `json:"tags"`
}

type addRelationRequest struct {
	ExpectedVersion int64    `json:"expectedVersion" binding:"required,min=1"`
	SourceID        string   `json:"sourceId" binding:"required"`
	TargetID        string   `json:"targetId" binding:"required"`
	RelationType    string   `json:"relationType"`
	Confidence      *float64 `json:"confidence" binding:"omitempty,gte=0,lte=1"`
	Evidence        string   `json:"evidence"`
}

type importRequest struct {
	ExpectedVersion int64 `json:"expectedVersion" binding:"required,min=1"`
}

func (h *Handler) getConceptGraph(c *gin.Context) {
	g, err := h.concepts.Get(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": g, "version": g.Version})
}

func (h *Handler) addConcept(c *gin.Context) {
	var req addConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.concepts.AddConcept(c.Request.Context(), c.Param("courseId"), req.ExpectedVersion, req.Label, req.Description, req.Tags)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) updateConcept(c *gin.Context) {
	var req updateConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.concepts.UpdateConcept(c.Request.Context(), c.Param("courseId"), req.ExpectedVersion, c.Param("conceptId"), req.Description, req.Tags)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) deleteConcept(c *gin.Context) {
	expected, ok := expectedVersionQuery(c)
	if !ok {
		return
	}
	res, err := h.concepts.DeleteConcept(c.Request.Context(), c.Param("courseId"), expected, c.Param("conceptId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) addRelation(c *gin.Context) {
	var req addRelationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	confidence := constants.DefaultRelationConfidence
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	res, err := h.concepts.AddRelation(c.Request.Context(), c.Param("courseId"), req.ExpectedVersion, concept.Relation{
		SourceID:     req.SourceID,
		TargetID:     req.TargetID,
		RelationType: req.RelationType,
		Confidence:   confidence,
		Evidence:     req.Evidence,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) deleteRelation(c *gin.Context) {
	expected, ok := expectedVersionQuery(c)
	if !ok {
		return
	}
	res, err := h.concepts.DeleteRelation(c.Request.Context(), c.Param("courseId"), expected,
		c.Query("source"), c.Query("target"), c.DefaultQuery("type", constants.DefaultRelationType))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) importConcepts(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.concepts.ImportFromCourse(c.Request.Context(), h.courses, c.Param("courseId"), req.ExpectedVersion)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) relatedConcepts(c *gin.Context) {
	depth, err := strconv.Atoi(c.DefaultQuery("depth", "1"))
	if err != nil {
		badRequest(c, err)
		return
	}
	neighbors, err := h.concepts.Related(c.Request.Context(), c.Param("courseId"), c.Param("conceptId"), depth)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conceptId": c.Param("conceptId"), "related": neighbors})
}
