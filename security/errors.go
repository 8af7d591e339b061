package security

import (
	"github.com/cockroachdb/errors"
	"github.com/legit-games/dataset-iam/permission"
)

var (
	// ErrNotFound is returned when a dataset or user does not exist.
	ErrNotFound = errors.New("[security] - not found")
	// ErrUnknownAction is returned before any write when a permission map
	// names an unregistered action kind.
	ErrUnknownAction = permission.ErrUnknownAction
	// ErrInvalidRole is returned when a grant references a role without an id.
	ErrInvalidRole = errors.New("[security] - invalid role")
)
