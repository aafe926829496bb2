package admin

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/Additional-Code/loft/internal/database"
)

var adminColumns = []string{"id", "name", "email", "role", "password_hash", "active", "last_login_at", "created_at", "updated_at"}

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(&database.Connections{Writer: db, Reader: db}), mock
}

func TestRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM "administrators" AS "a" WHERE \(a.id = 'adm-1'\)`).
		WillReturnRows(sqlmock.NewRows(adminColumns).AddRow("adm-1", "Grace", "grace@example.com", "admin", "hash", false, nil, now, now))

	a, err := repo.GetByID(context.Background(), "adm-1")
	require.NoError(t, err)
	assert.False(t, a.Active)
	assert.Nil(t, a.LastLoginAt)
}

func TestRepository_GetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`SELECT (.+) FROM "administrators"`).WillReturnRows(sqlmock.NewRows(adminColumns))

	_, err := repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_TouchLastLogin(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(`UPDATE "administrators" AS "a" SET last_login_at = (.+) WHERE \(id = 'adm-1'\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.TouchLastLogin(context.Background(), "adm-1", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
