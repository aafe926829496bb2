package customer

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/Additional-Code/loft/internal/database"
	"github.com/Additional-Code/loft/internal/entity"
)

var customerColumns = []string{"id", "first_name", "last_name", "email", "phone", "password_hash", "created_at", "updated_at"}

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(&database.Connections{Writer: db, Reader: db}), mock
}

func TestRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		now := time.Now()
		mock.ExpectQuery(`SELECT (.+) FROM "customers" AS "c" WHERE \(c.email = 'ada@example.com'\) LIMIT 1`).
			WillReturnRows(sqlmock.NewRows(customerColumns).AddRow("cust-1", "Ada", "Lovelace", "ada@example.com", "", "hash", now, now))

		c, err := repo.GetByEmail(ctx, "  Ada@Example.com ")
		require.NoError(t, err)
		assert.Equal(t, "cust-1", c.ID)
		assert.Equal(t, "Ada Lovelace", c.DisplayName())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(`SELECT (.+) FROM "customers"`).WillReturnRows(sqlmock.NewRows(customerColumns))

		_, err := repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRepository_CreateDuplicate(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(`INSERT INTO "customers"`).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &entity.Customer{ID: "cust-1", Email: "ada@example.com", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRepository_Update(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(`UPDATE "customers" AS "c" SET (.+)first_name(.+) WHERE (.+)id(.+)'cust-1'`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &entity.Customer{ID: "cust-1", FirstName: "Ada", UpdatedAt: time.Now()})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
