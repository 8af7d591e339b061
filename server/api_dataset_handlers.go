package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/dataset-iam/dto"
	"github.com/legit-games/dataset-iam/models"
	"github.com/legit-games/dataset-iam/permission"
)

// HandleGetDatasetPermissionsGin returns the dataset's permission snapshot.
func (s *Server) HandleGetDatasetPermissionsGin(c *gin.Context) {
	datasetID := c.Param("id")
	g, err := s.Agent.GetDatasetPermissions(c.Request.Context(), datasetID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromGrants(datasetID, g))
}

// HandleSetDatasetPermissionsGin replaces every permission record of the dataset.
func (s *Server) HandleSetDatasetPermissionsGin(c *gin.Context) {
	ctx := c.Request.Context()
	datasetID := c.Param("id")
	var body dto.SetPermissionsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	perms := make(map[string][]models.Role, len(body.Permissions))
	for name, ids := range body.Permissions {
		if _, err := permission.ParseAction(name); err != nil {
			badRequest(c, err.Error())
			return
		}
		roles, err := s.Directory.GetRoles(ctx, ids)
		if err != nil {
			badRequest(c, "unknown role: "+err.Error())
			return
		}
		perms[name] = roles
	}
	if err := s.Agent.SetAllDatasetPermissions(ctx, datasetID, perms); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.HandleGetDatasetPermissionsGin(c)
}

// HandleShareDatasetGin restricts access to the private roles of the listed users.
func (s *Server) HandleShareDatasetGin(c *gin.Context) {
	ctx := c.Request.Context()
	datasetID := c.Param("id")
	var body dto.ShareRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	users, err := s.Directory.GetUsers(ctx, body.UserIDs)
	if err != nil {
		badRequest(c, "unknown user: "+err.Error())
		return
	}
	if err := s.Agent.PrivatelyShareDataset(ctx, datasetID, users); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.HandleGetDatasetPermissionsGin(c)
}

// HandlePublishDatasetGin lifts every access restriction from the dataset.
func (s *Server) HandlePublishDatasetGin(c *gin.Context) {
	if err := s.Agent.MakeDatasetPublic(c.Request.Context(), c.Param("id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.HandleGetDatasetPermissionsGin(c)
}

// HandleCheckDatasetGin reports whether the caller may access and manage the dataset.
func (s *Server) HandleCheckDatasetGin(c *gin.Context) {
	ctx := c.Request.Context()
	datasetID := c.Param("id")
	userID := userIDFrom(c)
	access, err := s.Agent.UserAllowedAction(ctx, userID, permission.DatasetAccess, datasetID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	manage, err := s.Agent.UserAllowedAction(ctx, userID, permission.DatasetManagePermissions, datasetID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CheckResponse{DatasetID: datasetID, Access: access, Manage: manage})
}
