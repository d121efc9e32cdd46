package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/util"
)

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case models.IsNotFound(err):
		return http.StatusNotFound
	case models.IsValidation(err):
		return http.StatusBadRequest
	case models.IsTransition(err), models.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "request_id", c.GetString("request_id"), "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// pathID reads the :id path parameter. A malformed ID is answered with 400
// before any store lookup.
func pathID(c *gin.Context, entity string) (string, bool) {
	id, err := util.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, &models.ValidationError{Entity: entity, Field: "id", Message: "must be a UUID"})
		return "", false
	}
	return id, true
}
