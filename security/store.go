package security

import (
	"context"
	"time"

	"github.com/legit-games/dataset-iam/models"
	"github.com/legit-games/dataset-iam/permission"
)

// Store is the persistence collaborator of the Agent.
type Store interface {
	// Atomically runs fn inside one transaction. fn receives a Store bound to
	// that transaction; an error from fn rolls everything back.
	Atomically(ctx context.Context, fn func(tx Store) error) error

	// GetUser loads a user or returns ErrNotFound.
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// FindPrivateRole returns the user's private role, or nil when none exists.
	FindPrivateRole(ctx context.Context, userID string) (*models.Role, error)

	// FindOrCreatePrivateRole returns the user's private role, creating it
	// with the user as sole member if needed. Concurrent callers observe the
	// same role.
	FindOrCreatePrivateRole(ctx context.Context, user models.User) (*models.Role, error)

	// UserRoleIDs lists every role id the user is a member of.
	UserRoleIDs(ctx context.Context, userID string) ([]string, error)

	// IsAdmin reports whether the user holds a live ADMIN role.
	IsAdmin(ctx context.Context, userID string) (bool, error)

	// DatasetGrants loads the permission snapshot of a dataset or returns
	// ErrNotFound.
	DatasetGrants(ctx context.Context, datasetID string) (permission.Grants, error)

	// ReplaceDatasetGrants deletes every record of the given action names on
	// the dataset (all records when actions is nil), then writes the records
	// present in grants. Every key of grants must be listed in actions unless
	// actions is nil.
	ReplaceDatasetGrants(ctx context.Context, datasetID string, actions []string, grants permission.Grants) error
}

// GrantsCache caches dataset grant snapshots between checks.
type GrantsCache interface {
	Get(ctx context.Context, datasetID string) (permission.Grants, bool, error)
	Set(ctx context.Context, datasetID string, g permission.Grants, ttl time.Duration) error
	Invalidate(ctx context.Context, datasetID string) error
}
