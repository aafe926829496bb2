package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	entries, err := fs.ReadDir(Schema(), ".")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{
		"00001_create_accounts.sql",
		"00002_create_items.sql",
		"00003_create_orders.sql",
	}, names)
}

func TestOrdersMigrationCarriesConstraints(t *testing.T) {
	raw, err := fs.ReadFile(Schema(), "00003_create_orders.sql")
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, "-- +goose Up")
	assert.Contains(t, body, "-- +goose Down")
	assert.Contains(t, body, "number           VARCHAR(64)    NOT NULL UNIQUE")
	assert.Contains(t, body, "version          BIGINT         NOT NULL DEFAULT 1")
	assert.True(t, strings.Contains(body, "'returned'"))
}

func TestGooseDialect(t *testing.T) {
	for _, driver := range []string{"postgres", "pg", "pgx"} {
		dialect, err := gooseDialect(driver)
		require.NoError(t, err)
		assert.Equal(t, goose.DialectPostgres, dialect)
	}

	_, err := gooseDialect("mysql")
	assert.Error(t, err)
}

func TestProviderListsEmbeddedSources(t *testing.T) {
	sqldb, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqldb.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqldb, Schema())
	require.NoError(t, err)

	sources := provider.ListSources()
	require.Len(t, sources, 3)
	assert.Equal(t, int64(3), sources[2].Version)
}
