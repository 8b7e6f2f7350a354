// Package api exposes the graph engine over HTTP for reviewer clients, the generation
// collaborator and the export collaborator.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"course-graph/backend/internal/engine"
	"course-graph/backend/pkg/logger"
)

// Handler serves the course and concept graph routes
type Handler struct {
	courses  *engine.GraphStore
	concepts *engine.ConceptGraphStore
	logger   *zap.Logger
}

// NewHandler creates a Handler
func NewHandler(courses *engine.GraphStore, concepts *engine.ConceptGraphStore) *Handler {
	return &Handler{
		courses:  courses,
		concepts: concepts,
		logger:   logger.Named("api"),
	}
}

// Register mounts every route on router
func (h *Handler) Register(router gin.IRouter) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/courses/:courseId")
	{
		api.POST("", h.initCourse)

		api.GET("/graph", h.getGraph)
		api.PUT("/graph", h.replaceGraph)
		api.PATCH("/graph", h.patchGraph)
		api.GET("/graph/validate", h.validateGraph)

		api.PATCH("/topics/:topicId/slides/:slideId", h.updateSlide)
		api.PUT("/topics/:topicId/subtree", h.replaceSubtree)
		api.POST("/topics/:topicId/generated", h.installGenerated)
		api.POST("/topics/:topicId/review", h.review)
		api.GET("/topics/:topicId/audit", h.auditTrail)
		api.GET("/topics/:topicId/history", h.editHistory)
		api.GET("/history", h.editHistory)

		api.GET("/export/readiness", h.exportReadiness)
		api.GET("/export/plan", h.exportPlan)

		api.GET("/kg", h.getConceptGraph)
		api.POST("/kg/concepts", h.addConcept)
		api.PATCH("/kg/concepts/:conceptId", h.updateConcept)
		api.DELETE("/kg/concepts/:conceptId", h.deleteConcept)
		api.GET("/kg/concepts/:conceptId/related", h.relatedConcepts)
		api.POST("/kg/relations", h.addRelation)
		api.DELETE("/kg/relations", h.deleteRelation)
		api.POST("/kg/import", h.importConcepts)
	}
}

// RequestLogger logs one line per request
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		log.Info("HTTP Request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// CORS allows browser editing clients on any origin
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
