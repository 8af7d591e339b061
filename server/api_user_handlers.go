package server

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/legit-games/dataset-iam/dto"
	"github.com/legit-games/dataset-iam/security"
)

// HandleLoginGin exchanges email and password for a bearer token.
func (s *Server) HandleLoginGin(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	u, err := s.Directory.Authenticate(c.Request.Context(), body.Email, body.Password)
	if errors.Is(err, security.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_grant", "error_description": "invalid email or password"})
		return
	}
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	token, err := s.Tokens.Token(u.ID, u.Email, s.TokenTTL)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int64(s.TokenTTL.Seconds()),
		"user":         dto.FromUser(u),
	})
}

// HandleGetPrivateRoleGin returns the caller's private role. With
// auto_create=true the role is created on first request; otherwise a missing
// role is a 404.
func (s *Server) HandleGetPrivateRoleGin(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := s.Directory.GetUser(ctx, userIDFrom(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	autoCreate := isTruthy(c.Query("auto_create"))
	role, err := s.Agent.GetPrivateUserRole(ctx, *u, autoCreate)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if role == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "user has no private role"})
		return
	}
	c.JSON(http.StatusOK, dto.FromRole(role))
}

func isTruthy(v string) bool {
	s := strings.TrimSpace(strings.ToLower(v))
	return s == "1" || s == "true" || s == "yes" || s == "y"
}
