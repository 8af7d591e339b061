package server

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/legit-games/dataset-iam/permission"
	"github.com/legit-games/dataset-iam/security"
	"go.uber.org/zap"
)

// errorStatus maps domain errors to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, security.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, permission.ErrUnknownAction), errors.Is(err, security.ErrInvalidRole):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	body := gin.H{"error": code}
	if status == http.StatusInternalServerError {
		s.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		body["error_description"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, desc string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": desc})
}
