package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/legit-games/dataset-iam/models"
	"github.com/legit-games/dataset-iam/permission"
	"github.com/legit-games/dataset-iam/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return db, mock
}

func TestSecurityStoreDatasetGrantsUnknownDataset(t *testing.T) {
	db, mock := newMockGorm(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "datasets"`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := NewSecurityStore(db).DatasetGrants(context.Background(), "d1")
	assert.True(t, errors.Is(err, security.ErrNotFound), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSecurityStoreDatasetGrantsFromRows(t *testing.T) {
	db, mock := newMockGorm(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "datasets"`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "dataset_restrictions"`).
		WillReturnRows(sqlmock.NewRows([]string{"dataset_id", "action", "created_at"}).
			AddRow("d1", "access", now).
			AddRow("d1", "manage permissions", now))
	mock.ExpectQuery(`SELECT \* FROM "dataset_permissions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "dataset_id", "action", "role_id", "created_at"}).
			AddRow("p1", "d1", "access", "r2", now).
			AddRow("p2", "d1", "access", "r1", now))

	g, err := NewSecurityStore(db).DatasetGrants(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, permission.Grants{"access": {"r1", "r2"}, "manage permissions": {}}, g)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSecurityStoreFindPrivateRoleAbsent(t *testing.T) {
	db, mock := newMockGorm(t)
	mock.ExpectQuery(`SELECT \* FROM "roles" WHERE owner_user_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	r, err := NewSecurityStore(db).FindPrivateRole(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, r)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSecurityStoreGetUserNotFound(t *testing.T) {
	db, mock := newMockGorm(t)
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewSecurityStore(db).GetUser(context.Background(), "u1")
	assert.True(t, errors.Is(err, security.ErrNotFound), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceDatasetGrantsValidatesBeforeSQL(t *testing.T) {
	db, mock := newMockGorm(t)
	s := NewSecurityStore(db)
	ctx := context.Background()

	err := s.ReplaceDatasetGrants(ctx, "d1", nil, permission.Grants{"fly": {"r1"}})
	assert.True(t, errors.Is(err, permission.ErrUnknownAction))

	err = s.ReplaceDatasetGrants(ctx, "d1", []string{"access"}, permission.Grants{"manage permissions": {"r1"}})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemStoreValidatesBeforeSQL(t *testing.T) {
	db, mock := newMockGorm(t)
	s := NewItemStore(db)
	ctx := context.Background()
	ref := models.ItemRef{Kind: models.OwnerHDA, ID: "h1"}

	assert.ErrorIs(t, s.Rate(ctx, ref, "u1", 9), models.ErrInvalidRating)
	_, err := s.AddTag(ctx, ref, "u1", "  ")
	assert.ErrorIs(t, err, models.ErrEmptyTag)
	_, err = s.SetAnnotation(ctx, models.ItemRef{Kind: "bogus", ID: "x"}, "u1", "note")
	assert.ErrorIs(t, err, models.ErrInvalidOwner)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleStoreRejectsPrivate(t *testing.T) {
	db, mock := newMockGorm(t)
	_, err := NewRoleStore(db).CreateRole(context.Background(), "mine", "", models.RoleTypePrivate)
	assert.True(t, errors.Is(err, ErrInvalidRoleType))
	require.NoError(t, mock.ExpectationsWereMet())
}
