package catalog

import (
	"context"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/loft/internal/database"
	"github.com/Additional-Code/loft/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/loft/repository/catalog")

// Repository answers existence questions about catalog items. Catalog editing lives
// elsewhere.
type Repository struct {
	db *bun.DB
}

// NewRepository wires a lookup on the reader connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{db: conns.Reader}
}

// Missing returns the subset of ids that do not name an active catalog item, in input order.
func (r *Repository) Missing(ctx context.Context, ids []string) ([]string, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.Missing", trace.WithAttributes(attribute.Int("item.count", len(ids))))
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	var found []string
	err := r.db.NewSelect().Model((*entity.CatalogItem)(nil)).
		Column("id").
		Where("i.id IN (?)", bun.In(ids)).
		Where("i.active = ?", true).
		Scan(ctx, &found)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}

	known := make(map[string]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	var missing []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := known[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	return missing, nil
}
