package dto

import "github.com/legit-games/dataset-iam/permission"

// PermissionsResponse lists the restricted actions of a dataset with their
// granted role ids. Actions absent from Permissions follow their default policy.
type PermissionsResponse struct {
	DatasetID   string              `json:"dataset_id"`
	Public      bool                `json:"public"`
	Permissions map[string][]string `json:"permissions"`
}

func FromGrants(datasetID string, g permission.Grants) PermissionsResponse {
	c := g.Clone()
	if c == nil {
		c = permission.Grants{}
	}
	return PermissionsResponse{
		DatasetID:   datasetID,
		Public:      !c.Restricted(permission.DatasetAccess),
		Permissions: c,
	}
}

// SetPermissionsRequest replaces every permission record of a dataset.
// Keys are action names; values are role ids.
type SetPermissionsRequest struct {
	Permissions map[string][]string `json:"permissions" binding:"required"`
}

// ShareRequest restricts access to the private roles of the listed users.
type ShareRequest struct {
	UserIDs []string `json:"user_ids"`
}

// CheckResponse reports what the caller may do with a dataset.
type CheckResponse struct {
	DatasetID string `json:"dataset_id"`
	Access    bool   `json:"access"`
	Manage    bool   `json:"manage"`
}
