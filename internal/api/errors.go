package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradebook/internal/logger"
	"tradebook/internal/model"
)

const invalidJSONMessage = "Invalid JSON data"

// writeError maps err onto a status code and an {"error": ...} body.
func (s *Server) writeError(c *gin.Context, where string, err error) {
	if verr, ok := model.AsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Fields})
		return
	}
	switch {
	case errors.Is(err, model.ErrInvalidJSON):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidJSONMessage})
	case errors.Is(err, model.ErrNoPosition),
		errors.Is(err, model.ErrInsufficientQuantity),
		errors.Is(err, model.ErrRiskLimit):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrUnknownInstrument):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		logger.For(c.Request.Context(), s.log).Error("internal_error", zap.String("where", where), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
