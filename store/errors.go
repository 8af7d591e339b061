package store

import (
	"github.com/cockroachdb/errors"
	"github.com/legit-games/dataset-iam/permission"
)

var (
	ErrConflict        = errors.New("[store] - resource conflict")
	ErrInvalidRoleType = errors.New("[store] - invalid role type")
	ErrInvalidInput    = errors.New("[store] - invalid input")
)

// checkReplaceArgs enforces the ReplaceDatasetGrants contract shared by every
// backend: known action names only, and grants limited to the replaced kinds.
func checkReplaceArgs(actions []string, grants permission.Grants) error {
	if err := grants.Validate(); err != nil {
		return err
	}
	for _, name := range actions {
		if _, ok := permission.Lookup(name); !ok {
			return errors.Wrapf(permission.ErrUnknownAction, "%q", name)
		}
	}
	if actions == nil {
		return nil
	}
	for name := range grants {
		if !contains(actions, name) {
			return errors.Wrapf(ErrInvalidInput, "grant for %q outside replaced actions %v", name, actions)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
