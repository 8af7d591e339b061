package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/dataset-iam/permission"
	"go.uber.org/zap"
)

// RequireDatasetAction returns a middleware that lets the request through only
// when the caller may perform action on the dataset named by :id.
func (s *Server) RequireDatasetAction(action permission.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		datasetID := c.Param("id")
		ok, err := s.Agent.UserAllowedAction(ctx, userIDFrom(c), action, datasetID)
		if err != nil {
			s.abortWithError(c, err)
			return
		}
		if !ok {
			s.Logger.Info("dataset action forbidden",
				zap.String("user_id", userIDFrom(c)),
				zap.String("dataset_id", datasetID),
				zap.String("action", action.Name))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "forbidden",
				"error_description": "not permitted to " + action.Name + " on this dataset",
			})
			return
		}
		c.Next()
	}
}
