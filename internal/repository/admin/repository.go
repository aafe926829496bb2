package admin

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/loft/internal/database"
	"github.com/Additional-Code/loft/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/loft/repository/admin")

var (
	ErrNotFound       = errors.New("administrator not found")
	ErrDuplicateEmail = errors.New("administrator email already exists")
)

// Repository persists back-office administrators.
type Repository struct {
	db *bun.DB
}

// NewRepository wires a repository on the writer connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{db: conns.Writer}
}

// Create inserts a new administrator.
func (r *Repository) Create(ctx context.Context, a *entity.Administrator) error {
	ctx, span := repoTracer.Start(ctx, "AdminRepository.Create")
	defer span.End()

	_, err := r.db.NewInsert().Model(a).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID loads an administrator by primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.Administrator, error) {
	ctx, span := repoTracer.Start(ctx, "AdminRepository.GetByID", trace.WithAttributes(attribute.String("admin.id", id)))
	defer span.End()

	return r.one(ctx, span, "a.id = ?", id)
}

// GetByEmail loads an administrator by case-insensitive email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*entity.Administrator, error) {
	ctx, span := repoTracer.Start(ctx, "AdminRepository.GetByEmail")
	defer span.End()

	return r.one(ctx, span, "a.email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *Repository) one(ctx context.Context, span trace.Span, where string, arg any) (*entity.Administrator, error) {
	a := new(entity.Administrator)
	err := r.db.NewSelect().Model(a).Where(where, arg).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return a, nil
}

// TouchLastLogin records a successful login.
func (r *Repository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "AdminRepository.TouchLastLogin", trace.WithAttributes(attribute.String("admin.id", id)))
	defer span.End()

	_, err := r.db.NewUpdate().Model((*entity.Administrator)(nil)).
		Set("last_login_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}
