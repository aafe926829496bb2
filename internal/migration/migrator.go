package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/config"
	"github.com/Additional-Code/loft/internal/database"
)

//go:embed sql/*.sql
var migrations embed.FS

// Schema returns the embedded migration files rooted at their directory.
func Schema() fs.FS {
	sub, err := fs.Sub(migrations, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// Status describes one migration file and whether it has been applied.
type Status struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator applies the embedded postgres schema through a goose provider.
type Migrator struct {
	provider *goose.Provider
	logger   *zap.Logger
}

// New builds a migrator on the writer pool.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	provider, err := goose.NewProvider(dialect, conns.Writer.DB, Schema())
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}

	return &Migrator{provider: provider, logger: logger}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		m.logger.Info("no migrations to apply")
		return nil
	}
	m.logResults("migration applied", results)
	return nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if all {
		results, err := m.provider.DownTo(ctx, 0)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			m.logger.Info("no migrations to rollback")
			return nil
		}
		m.logResults("migration rolled back", results)
		return nil
	}

	for i := 0; i < max(steps, 1); i++ {
		result, err := m.provider.Down(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			m.logger.Info("no migrations to rollback")
			return nil
		}
		if err != nil {
			return err
		}
		m.logResults("migration rolled back", []*goose.MigrationResult{result})
	}
	return nil
}

// Status lists every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	states, err := m.provider.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(states))
	for _, st := range states {
		out = append(out, Status{
			Version:   st.Source.Version,
			Name:      st.Source.Path,
			Applied:   st.State == goose.StateApplied,
			AppliedAt: st.AppliedAt,
		})
	}
	return out, nil
}

func (m *Migrator) logResults(msg string, results []*goose.MigrationResult) {
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		m.logger.Info(msg,
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("took", r.Duration),
		)
	}
}

func gooseDialect(driver string) (goose.Dialect, error) {
	switch driver {
	case "postgres", "pg", "pgx":
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("embedded migrations target postgres; unsupported driver %s", driver)
	}
}
