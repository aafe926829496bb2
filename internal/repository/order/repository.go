package order

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/loft/internal/database"
	"github.com/Additional-Code/loft/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/loft/repository/order")

// likeEscaper makes search terms match literally under ESCAPE '!'.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

var (
	// ErrNotFound is returned when an order is missing.
	ErrNotFound = errors.New("order not found")
	// ErrVersionConflict is returned when a guarded write matched no row at the expected version.
	ErrVersionConflict = errors.New("order version conflict")
	// ErrDuplicateNumber is returned when the order number collides with an existing one.
	ErrDuplicateNumber = errors.New("duplicate order number")
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
	recentOrders = 5
)

// Filter narrows list queries. A zero value lists everything.
type Filter struct {
	CustomerID    string
	Status        entity.OrderStatus
	OrderType     entity.OrderType
	PaymentStatus entity.PaymentStatus
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Search        string
	Page          int
	Limit         int
}

// Normalise clamps pagination to sane bounds.
func (f Filter) Normalise() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// Offset returns the row offset for the filter's page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Stats aggregates the order book.
type Stats struct {
	Total    int64
	ByStatus map[entity.OrderStatus]int64
	ByType   map[entity.OrderType]int64
	Revenue  decimal.Decimal
	Recent   []entity.Order
}

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			span.SetStatus(codes.Error, "duplicate number")
			return ErrDuplicateNumber
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key. Reads go to the writer so a caller sees its
// own writes immediately after a transition.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.writer.NewSelect().Model(order).Where("o.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// List returns one page of orders matching f, newest first, and the total match count.
func (r *Repository) List(ctx context.Context, f Filter) ([]entity.Order, int64, error) {
	f = f.Normalise()
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List", trace.WithAttributes(
		attribute.String("order.customer_id", f.CustomerID),
		attribute.String("order.status", string(f.Status)),
		attribute.Int("page", f.Page),
		attribute.Int("limit", f.Limit),
	))
	defer span.End()

	total, err := r.reader.NewSelect().Model((*entity.Order)(nil)).Apply(f.apply).Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return nil, 0, err
	}

	orders := make([]entity.Order, 0, f.Limit)
	if total > 0 {
		err = r.reader.NewSelect().Model(&orders).
			Apply(f.apply).
			Order("o.created_at DESC").
			Limit(f.Limit).
			Offset(f.Offset()).
			Scan(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "select failed")
			return nil, 0, err
		}
	}
	return orders, int64(total), nil
}

func (f Filter) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if f.CustomerID != "" {
		q = q.Where("o.customer_id = ?", f.CustomerID)
	}
	if f.Status != "" {
		q = q.Where("o.status = ?", f.Status)
	}
	if f.OrderType != "" {
		q = q.Where("o.order_type = ?", f.OrderType)
	}
	if f.PaymentStatus != "" {
		q = q.Where("o.payment_status = ?", f.PaymentStatus)
	}
	if f.CreatedFrom != nil {
		q = q.Where("o.created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("o.created_at <= ?", *f.CreatedTo)
	}
	if f.Search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(f.Search)) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(o.tracking_number) LIKE ? ESCAPE '!'", pattern).
				WhereOr("LOWER(o.notes) LIKE ? ESCAPE '!'", pattern)
		})
	}
	return q
}

// UpdateStatus sets the fulfilment status in one statement, stamping delivery_date the
// first time the order enters delivered. expectedVersion <= 0 disables the version guard.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status entity.OrderStatus, expectedVersion int64, now time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	q := r.writer.NewUpdate().Model((*entity.Order)(nil)).Set("status = ?", status)
	if status == entity.OrderStatusDelivered {
		q = q.Set("delivery_date = COALESCE(delivery_date, ?)", now)
	}
	return r.update(ctx, span, q, id, expectedVersion, now)
}

// UpdatePaymentStatus sets the payment status in one statement.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, id string, status entity.PaymentStatus, expectedVersion int64, now time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdatePaymentStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.payment_status", string(status)),
	))
	defer span.End()

	q := r.writer.NewUpdate().Model((*entity.Order)(nil)).Set("payment_status = ?", status)
	return r.update(ctx, span, q, id, expectedVersion, now)
}

// SetTrackingNumber records the carrier tracking number.
func (r *Repository) SetTrackingNumber(ctx context.Context, id, tracking string, expectedVersion int64, now time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.SetTrackingNumber", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	q := r.writer.NewUpdate().Model((*entity.Order)(nil)).Set("tracking_number = ?", tracking)
	return r.update(ctx, span, q, id, expectedVersion, now)
}

// CompareAndSwapStatus moves the order to status `to` with new notes, but only while it is
// still at expectedVersion and in one of the from statuses.
func (r *Repository) CompareAndSwapStatus(ctx context.Context, id string, expectedVersion int64, from []entity.OrderStatus, to entity.OrderStatus, notes string, now time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CompareAndSwapStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(to)),
		attribute.Int64("order.version", expectedVersion),
	))
	defer span.End()

	if expectedVersion <= 0 {
		return errors.New("compare and swap requires a version")
	}
	q := r.writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("status = ?", to).
		Set("notes = ?", notes)
	if len(from) > 0 {
		q = q.Where("status IN (?)", bun.In(from))
	}
	return r.update(ctx, span, q, id, expectedVersion, now)
}

func (r *Repository) update(ctx context.Context, span trace.Span, q *bun.UpdateQuery, id string, expectedVersion int64, now time.Time) error {
	q = q.Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("id = ?", id)
	if expectedVersion > 0 {
		q = q.Where("version = ?", expectedVersion)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if affected > 0 {
		return nil
	}

	exists, err := r.writer.NewSelect().Model((*entity.Order)(nil)).Where("o.id = ?", id).Exists(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !exists {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	span.SetStatus(codes.Error, "version conflict")
	return ErrVersionConflict
}

type statusCount struct {
	Status entity.OrderStatus `bun:"status"`
	Count  int64              `bun:"count"`
}

type typeCount struct {
	OrderType entity.OrderType `bun:"order_type"`
	Count     int64            `bun:"count"`
}

// Stats computes the aggregate overview of every order.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Stats")
	defer span.End()

	fail := func(err error, msg string) (*Stats, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return nil, err
	}

	total, err := r.reader.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	if err != nil {
		return fail(err, "count failed")
	}

	var byStatus []statusCount
	err = r.reader.NewSelect().Model((*entity.Order)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Group("status").
		Scan(ctx, &byStatus)
	if err != nil {
		return fail(err, "status breakdown failed")
	}

	var byType []typeCount
	err = r.reader.NewSelect().Model((*entity.Order)(nil)).
		Column("order_type").
		ColumnExpr("COUNT(*) AS count").
		Group("order_type").
		Scan(ctx, &byType)
	if err != nil {
		return fail(err, "type breakdown failed")
	}

	var revenue decimal.NullDecimal
	err = r.reader.NewSelect().Model((*entity.Order)(nil)).
		ColumnExpr("SUM(total_amount)").
		Where("payment_status = ?", entity.PaymentStatusPaid).
		Scan(ctx, &revenue)
	if err != nil {
		return fail(err, "revenue failed")
	}

	recent := make([]entity.Order, 0, recentOrders)
	err = r.reader.NewSelect().Model(&recent).
		Order("o.created_at DESC").
		Limit(recentOrders).
		Scan(ctx)
	if err != nil {
		return fail(err, "recent failed")
	}

	stats := &Stats{
		Total:    int64(total),
		ByStatus: make(map[entity.OrderStatus]int64, len(entity.OrderStatuses)),
		ByType:   make(map[entity.OrderType]int64, len(entity.OrderTypes)),
		Revenue:  decimal.Zero,
		Recent:   recent,
	}
	for _, s := range entity.OrderStatuses {
		stats.ByStatus[s] = 0
	}
	for _, t := range entity.OrderTypes {
		stats.ByType[t] = 0
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.Count
	}
	for _, row := range byType {
		stats.ByType[row.OrderType] = row.Count
	}
	if revenue.Valid {
		stats.Revenue = revenue.Decimal
	}
	return stats, nil
}
