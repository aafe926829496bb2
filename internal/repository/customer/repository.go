package customer

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/loft/internal/database"
	"github.com/Additional-Code/loft/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/loft/repository/customer")

var (
	ErrNotFound       = errors.New("customer not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Repository persists storefront customers.
type Repository struct {
	db *bun.DB
}

// NewRepository wires a repository on the writer connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{db: conns.Writer}
}

// Create inserts a new customer.
func (r *Repository) Create(ctx context.Context, c *entity.Customer) error {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.Create")
	defer span.End()

	_, err := r.db.NewInsert().Model(c).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID loads a customer by primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.Customer, error) {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.GetByID", trace.WithAttributes(attribute.String("customer.id", id)))
	defer span.End()

	return r.one(ctx, span, "c.id = ?", id)
}

// GetByEmail loads a customer by case-insensitive email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*entity.Customer, error) {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.GetByEmail")
	defer span.End()

	return r.one(ctx, span, "c.email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *Repository) one(ctx context.Context, span trace.Span, where string, arg any) (*entity.Customer, error) {
	c := new(entity.Customer)
	err := r.db.NewSelect().Model(c).Where(where, arg).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return c, nil
}

// Update writes the mutable profile columns.
func (r *Repository) Update(ctx context.Context, c *entity.Customer) error {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.Update", trace.WithAttributes(attribute.String("customer.id", c.ID)))
	defer span.End()

	res, err := r.db.NewUpdate().Model(c).
		Column("first_name", "last_name", "email", "phone", "password_hash", "updated_at").
		WherePK().
		Exec(ctx)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
