// Package security holds the dataset access-control agent: it loads a
// dataset's permission snapshot, evaluates role sets against it and manages
// permission state (sharing, publishing, privatising) through a Store.
package security

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/legit-games/dataset-iam/models"
	"github.com/legit-games/dataset-iam/permission"
	"go.uber.org/zap"
)

// Agent evaluates and mutates dataset permissions.
type Agent struct {
	store    Store
	cache    GrantsCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

type Option func(*Agent)

func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithGrantsCache enables a read-through snapshot cache. Every mutation
// invalidates the dataset's entry.
func WithGrantsCache(c GrantsCache, ttl time.Duration) Option {
	return func(a *Agent) {
		a.cache = c
		a.cacheTTL = ttl
	}
}

func NewAgent(store Store, opts ...Option) *Agent {
	a := &Agent{store: store, logger: zap.NewNop(), cacheTTL: time.Minute}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetPrivateUserRole returns the user's PRIVATE role. Without autoCreate an
// absent role yields (nil, nil). With autoCreate the role is created on first
// request and the same role is returned on every later call.
func (a *Agent) GetPrivateUserRole(ctx context.Context, user models.User, autoCreate bool) (*models.Role, error) {
	if !autoCreate {
		return a.store.FindPrivateRole(ctx, user.ID)
	}
	privateRoleAutoCreates.Inc()
	role, err := a.store.FindOrCreatePrivateRole(ctx, user)
	if err != nil {
		return nil, errors.Wrapf(err, "private role for user %s", user.ID)
	}
	return role, nil
}

// UserRoleSet returns every role the user holds.
func (a *Agent) UserRoleSet(ctx context.Context, userID string) (permission.RoleSet, error) {
	ids, err := a.store.UserRoleIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return permission.NewRoleSet(ids...), nil
}

// PrivatelyShareDataset restricts ACCESS on the dataset to exactly the private
// roles of users, creating those roles when missing. MANAGE_PERMISSIONS
// records are left untouched. An empty user list restricts access to nobody.
func (a *Agent) PrivatelyShareDataset(ctx context.Context, datasetID string, users []models.User) error {
	err := a.store.Atomically(ctx, func(tx Store) error {
		roleIDs := make([]string, 0, len(users))
		for _, u := range users {
			role, err := tx.FindOrCreatePrivateRole(ctx, u)
			if err != nil {
				return errors.Wrapf(err, "private role for user %s", u.ID)
			}
			roleIDs = append(roleIDs, role.ID)
		}
		g := permission.Grants{permission.DatasetAccess.Name: roleIDs}
		return tx.ReplaceDatasetGrants(ctx, datasetID, []string{permission.DatasetAccess.Name}, g.Clone())
	})
	a.afterMutation(ctx, "privately_share", datasetID, err, zap.Int("users", len(users)))
	return err
}

// MakeDatasetPublic clears every ACCESS record so the default-allow policy
// applies again.
func (a *Agent) MakeDatasetPublic(ctx context.Context, datasetID string) error {
	err := a.store.ReplaceDatasetGrants(ctx, datasetID, []string{permission.DatasetAccess.Name}, permission.Grants{})
	a.afterMutation(ctx, "make_public", datasetID, err)
	return err
}

// SetDatasetPermission replaces the role set of a single action kind.
func (a *Agent) SetDatasetPermission(ctx context.Context, datasetID string, action permission.Action, roles []models.Role) error {
	act, err := permission.ParseAction(action.Name)
	if err != nil {
		return err
	}
	ids, err := roleIDs(roles)
	if err != nil {
		return err
	}
	g := permission.Grants{act.Name: ids}
	err = a.store.ReplaceDatasetGrants(ctx, datasetID, []string{act.Name}, g.Clone())
	a.afterMutation(ctx, "set_permission", datasetID, err, zap.String("action", act.Name))
	return err
}

// SetAllDatasetPermissions replaces every permission record of the dataset
// with perms. Action kinds omitted from perms end up unrestricted. Unknown
// action names fail before anything is written.
func (a *Agent) SetAllDatasetPermissions(ctx context.Context, datasetID string, perms map[string][]models.Role) error {
	g := make(permission.Grants, len(perms))
	for name, roles := range perms {
		act, err := permission.ParseAction(name)
		if err != nil {
			return err
		}
		ids, err := roleIDs(roles)
		if err != nil {
			return err
		}
		g[act.Name] = append(g[act.Name], ids...)
	}
	err := a.store.ReplaceDatasetGrants(ctx, datasetID, nil, g.Clone())
	a.afterMutation(ctx, "set_all", datasetID, err, zap.Strings("actions", g.Names()))
	return err
}

// GetDatasetPermissions returns the dataset's permission snapshot.
func (a *Agent) GetDatasetPermissions(ctx context.Context, datasetID string) (permission.Grants, error) {
	return a.grants(ctx, datasetID)
}

// AllowAction decides whether roles may perform action on the dataset. The
// action is resolved by name through the registry; unregistered names fail
// with permission.ErrUnknownAction.
func (a *Agent) AllowAction(ctx context.Context, roles permission.RoleSet, action permission.Action, datasetID string) (bool, error) {
	action, err := permission.ParseAction(action.Name)
	if err != nil {
		return false, err
	}
	g, err := a.grants(ctx, datasetID)
	if err != nil {
		return false, err
	}
	ok := permission.Allow(roles, action, g)
	observeDecision(action.Name, ok)
	if !ok {
		a.logger.Debug("dataset action denied",
			zap.String("dataset_id", datasetID),
			zap.String("action", action.Name),
			zap.Strings("roles", roles.IDs()))
	}
	return ok, nil
}

// UserAllowedAction decides for a user instead of a role set. Holders of a
// live ADMIN role may manage permissions on every existing dataset; every
// other decision goes through the user's roles.
func (a *Agent) UserAllowedAction(ctx context.Context, userID string, action permission.Action, datasetID string) (bool, error) {
	action, err := permission.ParseAction(action.Name)
	if err != nil {
		return false, err
	}
	if action.Name == permission.DatasetManagePermissions.Name {
		admin, err := a.store.IsAdmin(ctx, userID)
		if err != nil {
			return false, err
		}
		if admin {
			if _, err := a.grants(ctx, datasetID); err != nil {
				return false, err
			}
			observeDecision(action.Name, true)
			return true, nil
		}
	}
	roles, err := a.UserRoleSet(ctx, userID)
	if err != nil {
		return false, err
	}
	return a.AllowAction(ctx, roles, action, datasetID)
}

// CanAccessDataset is true when ACCESS is unrestricted or roles intersect the
// ACCESS grant.
func (a *Agent) CanAccessDataset(ctx context.Context, roles permission.RoleSet, datasetID string) (bool, error) {
	return a.AllowAction(ctx, roles, permission.DatasetAccess, datasetID)
}

// CanManageDataset requires an explicit MANAGE_PERMISSIONS grant.
func (a *Agent) CanManageDataset(ctx context.Context, roles permission.RoleSet, datasetID string) (bool, error) {
	return a.AllowAction(ctx, roles, permission.DatasetManagePermissions, datasetID)
}

// DatasetIsPublic reports whether ACCESS carries no restriction.
func (a *Agent) DatasetIsPublic(ctx context.Context, datasetID string) (bool, error) {
	g, err := a.grants(ctx, datasetID)
	if err != nil {
		return false, err
	}
	return !g.Restricted(permission.DatasetAccess), nil
}

// DatasetIsPrivateToUser reports whether ACCESS is restricted to exactly the
// user's private role.
func (a *Agent) DatasetIsPrivateToUser(ctx context.Context, user models.User, datasetID string) (bool, error) {
	role, err := a.store.FindPrivateRole(ctx, user.ID)
	if err != nil || role == nil {
		return false, err
	}
	g, err := a.grants(ctx, datasetID)
	if err != nil {
		return false, err
	}
	granted := g.RolesFor(permission.DatasetAccess)
	return g.Restricted(permission.DatasetAccess) && len(granted) == 1 && granted[0] == role.ID, nil
}

// grants reads through the cache. A snapshot loaded just before a concurrent
// mutation can be written back after that mutation's invalidation, so a
// cached entry may be stale for at most cacheTTL.
func (a *Agent) grants(ctx context.Context, datasetID string) (permission.Grants, error) {
	if a.cache != nil {
		g, ok, err := a.cache.Get(ctx, datasetID)
		if err != nil {
			a.logger.Warn("grants cache read failed", zap.String("dataset_id", datasetID), zap.Error(err))
		} else if ok {
			return g, nil
		}
	}
	g, err := a.store.DatasetGrants(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		if err := a.cache.Set(ctx, datasetID, g, a.cacheTTL); err != nil {
			a.logger.Warn("grants cache write failed", zap.String("dataset_id", datasetID), zap.Error(err))
		}
	}
	return g, nil
}

func (a *Agent) afterMutation(ctx context.Context, op, datasetID string, err error, fields ...zap.Field) {
	observeMutation(op, err)
	fields = append(fields, zap.String("op", op), zap.String("dataset_id", datasetID))
	if err != nil {
		a.logger.Warn("dataset permission mutation failed", append(fields, zap.Error(err))...)
		return
	}
	if a.cache != nil {
		if cerr := a.cache.Invalidate(ctx, datasetID); cerr != nil {
			a.logger.Warn("grants cache invalidation failed", zap.String("dataset_id", datasetID), zap.Error(cerr))
		}
	}
	a.logger.Info("dataset permissions updated", fields...)
}

func roleIDs(roles []models.Role) ([]string, error) {
	ids := make([]string, 0, len(roles))
	for _, r := range roles {
		if r.ID == "" {
			return nil, errors.Wrapf(ErrInvalidRole, "role %q has no id", r.Name)
		}
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids, nil
}
