package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/legit-games/dataset-iam/models"
	"github.com/legit-games/dataset-iam/permission"
	"github.com/legit-games/dataset-iam/security"
	"github.com/tidwall/buntdb"
)

// Key layout of the embedded store.
const (
	buntUserPrefix        = "user:"
	buntUserEmailPrefix   = "user_email:"
	buntRolePrefix        = "role:"
	buntPrivateRolePrefix = "private_role:"
	buntUserRolePrefix    = "user_role:"
	buntDatasetPrefix     = "dataset:"
	buntGrantsPrefix      = "grants:"
)

// BuntSecurityStore implements security.Store on an embedded buntdb file (or
// ":memory:"). buntdb serializes write transactions, so find-or-create of a
// private role is atomic without further locking.
type BuntSecurityStore struct {
	DB *buntdb.DB
}

var _ security.Store = (*BuntSecurityStore)(nil)

// OpenBuntSecurityStore opens path; use ":memory:" for a throwaway store.
func OpenBuntSecurityStore(path string) (*BuntSecurityStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open buntdb %s", path)
	}
	return &BuntSecurityStore{DB: db}, nil
}

func (s *BuntSecurityStore) Close() error { return s.DB.Close() }

func (s *BuntSecurityStore) view(fn func(t *buntTx) error) error {
	return s.DB.View(func(tx *buntdb.Tx) error { return fn(&buntTx{tx: tx}) })
}

func (s *BuntSecurityStore) update(fn func(t *buntTx) error) error {
	return s.DB.Update(func(tx *buntdb.Tx) error { return fn(&buntTx{tx: tx}) })
}

func (s *BuntSecurityStore) Atomically(ctx context.Context, fn func(tx security.Store) error) error {
	return s.update(func(t *buntTx) error { return fn(t) })
}

func (s *BuntSecurityStore) GetUser(ctx context.Context, userID string) (u *models.User, err error) {
	err = s.view(func(t *buntTx) error {
		u, err = t.GetUser(ctx, userID)
		return err
	})
	return u, err
}

func (s *BuntSecurityStore) FindPrivateRole(ctx context.Context, userID string) (r *models.Role, err error) {
	err = s.view(func(t *buntTx) error {
		r, err = t.FindPrivateRole(ctx, userID)
		return err
	})
	return r, err
}

func (s *BuntSecurityStore) FindOrCreatePrivateRole(ctx context.Context, user models.User) (r *models.Role, err error) {
	err = s.update(func(t *buntTx) error {
		r, err = t.FindOrCreatePrivateRole(ctx, user)
		return err
	})
	return r, err
}

func (s *BuntSecurityStore) UserRoleIDs(ctx context.Context, userID string) (ids []string, err error) {
	err = s.view(func(t *buntTx) error {
		ids, err = t.UserRoleIDs(ctx, userID)
		return err
	})
	return ids, err
}

func (s *BuntSecurityStore) IsAdmin(ctx context.Context, userID string) (admin bool, err error) {
	err = s.view(func(t *buntTx) error {
		admin, err = t.IsAdmin(ctx, userID)
		return err
	})
	return admin, err
}

func (s *BuntSecurityStore) DatasetGrants(ctx context.Context, datasetID string) (g permission.Grants, err error) {
	err = s.view(func(t *buntTx) error {
		g, err = t.DatasetGrants(ctx, datasetID)
		return err
	})
	return g, err
}

func (s *BuntSecurityStore) ReplaceDatasetGrants(ctx context.Context, datasetID string, actions []string, grants permission.Grants) error {
	return s.update(func(t *buntTx) error {
		return t.ReplaceDatasetGrants(ctx, datasetID, actions, grants)
	})
}

// CreateUser stores a new user with a bcrypt-hashed password. Emails are unique.
func (s *BuntSecurityStore) CreateUser(ctx context.Context, email, username, password string) (*models.User, error) {
	hash, err := models.HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := models.User{
		ID:           models.LegitID(),
		Email:        models.NormalizeEmail(email),
		Username:     strings.TrimSpace(username),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if u.Email == "" {
		return nil, errors.New("email is required")
	}
	err = s.update(func(t *buntTx) error {
		if _, err := t.tx.Get(buntUserEmailPrefix + u.Email); err == nil {
			return errors.Wrapf(ErrConflict, "email %s", u.Email)
		} else if !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}
		if err := t.put(buntUserPrefix+u.ID, toBuntUser(u)); err != nil {
			return err
		}
		_, _, err := t.tx.Set(buntUserEmailPrefix+u.Email, u.ID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail resolves a user by normalized email.
func (s *BuntSecurityStore) GetUserByEmail(ctx context.Context, email string) (u *models.User, err error) {
	err = s.view(func(t *buntTx) error {
		id, err := t.tx.Get(buntUserEmailPrefix + models.NormalizeEmail(email))
		if errors.Is(err, buntdb.ErrNotFound) {
			return errors.Wrapf(security.ErrNotFound, "user %s", email)
		}
		if err != nil {
			return err
		}
		u, err = t.GetUser(ctx, id)
		return err
	})
	return u, err
}

// CreateRole stores a non-private role with the given members.
func (s *BuntSecurityStore) CreateRole(ctx context.Context, name, description string, roleType models.RoleType, userIDs ...string) (*models.Role, error) {
	if roleType == models.RoleTypePrivate || !roleType.Valid() {
		return nil, errors.Wrapf(ErrInvalidRoleType, "%q", roleType)
	}
	r := models.Role{
		ID:          models.LegitID(),
		Name:        strings.TrimSpace(name),
		Description: description,
		Type:        roleType,
		CreatedAt:   time.Now().UTC(),
	}
	err := s.update(func(t *buntTx) error {
		if err := t.put(buntRolePrefix+r.ID, r); err != nil {
			return err
		}
		for _, uid := range userIDs {
			if _, err := t.GetUser(ctx, uid); err != nil {
				return err
			}
			if err := t.addMember(uid, r.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateDataset stores a new dataset without any permission records.
func (s *BuntSecurityStore) CreateDataset(ctx context.Context) (*models.Dataset, error) {
	d := models.NewDataset()
	err := s.update(func(t *buntTx) error { return t.put(buntDatasetPrefix+d.ID, d) })
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// buntUser is the stored form of a user. models.User hides the password hash
// from JSON, so the record carries it under its own tag.
type buntUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Deleted      bool      `json:"deleted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toBuntUser(u models.User) buntUser {
	return buntUser{
		ID: u.ID, Email: u.Email, Username: u.Username, PasswordHash: u.PasswordHash,
		Deleted: u.Deleted, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

func (b buntUser) model() models.User {
	return models.User{
		ID: b.ID, Email: b.Email, Username: b.Username, PasswordHash: b.PasswordHash,
		Deleted: b.Deleted, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
}

// buntTx is a security.Store bound to one buntdb transaction.
type buntTx struct {
	tx *buntdb.Tx
}

func (t *buntTx) Atomically(ctx context.Context, fn func(tx security.Store) error) error {
	return fn(t)
}

func (t *buntTx) put(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _, err = t.tx.Set(key, string(b), nil)
	return err
}

func (t *buntTx) get(key string, v any) error {
	raw, err := t.tx.Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), v)
}

func (t *buntTx) addMember(userID, roleID string) error {
	ur := models.UserRole{ID: models.LegitID(), UserID: userID, RoleID: roleID, AssignedAt: time.Now().UTC()}
	return t.put(buntUserRolePrefix+userID+":"+roleID, ur)
}

func (t *buntTx) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var rec buntUser
	err := t.get(buntUserPrefix+userID, &rec)
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, errors.Wrapf(security.ErrNotFound, "user %s", userID)
	}
	if err != nil {
		return nil, err
	}
	u := rec.model()
	return &u, nil
}

func (t *buntTx) FindPrivateRole(ctx context.Context, userID string) (*models.Role, error) {
	roleID, err := t.tx.Get(buntPrivateRolePrefix + userID)
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r models.Role
	if err := t.get(buntRolePrefix+roleID, &r); err != nil {
		return nil, errors.Wrapf(err, "private role %s of user %s", roleID, userID)
	}
	return &r, nil
}

func (t *buntTx) FindOrCreatePrivateRole(ctx context.Context, user models.User) (*models.Role, error) {
	existing, err := t.FindPrivateRole(ctx, user.ID)
	if err != nil || existing != nil {
		return existing, err
	}
	stored, err := t.GetUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	r := models.PrivateRoleFor(*stored)
	if err := t.put(buntRolePrefix+r.ID, r); err != nil {
		return nil, err
	}
	if _, _, err := t.tx.Set(buntPrivateRolePrefix+stored.ID, r.ID, nil); err != nil {
		return nil, err
	}
	if err := t.addMember(stored.ID, r.ID); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *buntTx) UserRoleIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	prefix := buntUserRolePrefix + userID + ":"
	err := t.tx.AscendKeys(prefix+"*", func(key, value string) bool {
		ids = append(ids, strings.TrimPrefix(key, prefix))
		return true
	})
	return ids, err
}

func (t *buntTx) IsAdmin(ctx context.Context, userID string) (bool, error) {
	ids, err := t.UserRoleIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		var r models.Role
		if err := t.get(buntRolePrefix+id, &r); err != nil {
			return false, errors.Wrapf(err, "role %s of user %s", id, userID)
		}
		if r.Type == models.RoleTypeAdmin && !r.Deleted {
			return true, nil
		}
	}
	return false, nil
}

func (t *buntTx) datasetExists(datasetID string) error {
	_, err := t.tx.Get(buntDatasetPrefix + datasetID)
	if errors.Is(err, buntdb.ErrNotFound) {
		return errors.Wrapf(security.ErrNotFound, "dataset %s", datasetID)
	}
	return err
}

func (t *buntTx) DatasetGrants(ctx context.Context, datasetID string) (permission.Grants, error) {
	if err := t.datasetExists(datasetID); err != nil {
		return nil, err
	}
	g := permission.Grants{}
	err := t.get(buntGrantsPrefix+datasetID, &g)
	if errors.Is(err, buntdb.ErrNotFound) {
		return permission.Grants{}, nil
	}
	if err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

func (t *buntTx) ReplaceDatasetGrants(ctx context.Context, datasetID string, actions []string, grants permission.Grants) error {
	if err := checkReplaceArgs(actions, grants); err != nil {
		return err
	}
	current, err := t.DatasetGrants(ctx, datasetID)
	if err != nil {
		return err
	}
	for name, roleIDs := range grants {
		for _, id := range roleIDs {
			if _, err := t.tx.Get(buntRolePrefix + id); errors.Is(err, buntdb.ErrNotFound) {
				return errors.Wrapf(security.ErrNotFound, "role %s granted %q", id, name)
			} else if err != nil {
				return err
			}
		}
	}
	next := permission.Grants{}
	if actions != nil {
		for name, roleIDs := range current {
			if !contains(actions, name) {
				next[name] = roleIDs
			}
		}
	}
	for name, roleIDs := range grants {
		next[name] = roleIDs
	}
	if len(next) == 0 {
		_, err := t.tx.Delete(buntGrantsPrefix + datasetID)
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		}
		return err
	}
	return t.put(buntGrantsPrefix+datasetID, next.Clone())
}

// GetUsers loads users by id, failing if any id is unknown.
func (s *BuntSecurityStore) GetUsers(ctx context.Context, ids []string) (users []models.User, err error) {
	users = make([]models.User, 0, len(ids))
	err = s.view(func(t *buntTx) error {
		for _, id := range dedupeStrings(ids) {
			u, err := t.GetUser(ctx, id)
			if err != nil {
				return err
			}
			users = append(users, *u)
		}
		return nil
	})
	return users, err
}

// GetRoles loads roles by id, failing if any id is unknown.
func (s *BuntSecurityStore) GetRoles(ctx context.Context, ids []string) (roles []models.Role, err error) {
	roles = make([]models.Role, 0, len(ids))
	err = s.view(func(t *buntTx) error {
		for _, id := range dedupeStrings(ids) {
			var r models.Role
			err := t.get(buntRolePrefix+id, &r)
			if errors.Is(err, buntdb.ErrNotFound) {
				return errors.Wrapf(security.ErrNotFound, "role %s", id)
			}
			if err != nil {
				return err
			}
			roles = append(roles, r)
		}
		return nil
	})
	return roles, err
}

// Authenticate returns the user when email and password match.
func (s *BuntSecurityStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u.Deleted || !u.CheckPassword(password) {
		return nil, errors.Wrapf(security.ErrNotFound, "user %s", email)
	}
	return u, nil
}
