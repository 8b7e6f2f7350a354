package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "course-graph/backend/pkg/errors"
)

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeVersionConflict, apperrors.ErrorTypeAlreadyExists,
		apperrors.ErrorTypeDuplicate, apperrors.ErrorTypeIDCollision:
		return http.StatusConflict
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeInvalidTransition, apperrors.ErrorTypeIntegrity:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError writes the error body. A version conflict carries the current version and never a
// document, so the client must reload.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{
		"error": err.Error(),
		"type":  string(apperrors.TypeOf(err)),
	}

	var vc *apperrors.ErrVersionConflict
	if apperrors.As(err, &vc) {
		body["currentVersion"] = vc.CurrentVersion
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		body["error"] = "internal error"
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "type": string(apperrors.ErrorTypeValidation)})
}
