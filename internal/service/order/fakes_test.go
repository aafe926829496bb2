package order

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/loft/internal/entity"
	"github.com/Additional-Code/loft/internal/messaging"
	repo "github.com/Additional-Code/loft/internal/repository/order"
)

type fakeRepo struct {
	mu         sync.Mutex
	orders     map[string]*entity.Order
	createErrs []error
	statsCalls int
	// beforeCAS runs just before a compare-and-swap is evaluated.
	beforeCAS func(*fakeRepo)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[string]*entity.Order)}
}

func clone(o *entity.Order) *entity.Order {
	c := *o
	c.Items = append([]entity.OrderLine(nil), o.Items...)
	if o.DeliveryDate != nil {
		d := *o.DeliveryDate
		c.DeliveryDate = &d
	}
	return &c
}

func (r *fakeRepo) put(o *entity.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = clone(o)
}

func (r *fakeRepo) Create(_ context.Context, o *entity.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range r.orders {
		if existing.Number == o.Number {
			return repo.ErrDuplicateNumber
		}
	}
	r.orders[o.ID] = clone(o)
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return clone(o), nil
}

func (r *fakeRepo) List(_ context.Context, f repo.Filter) ([]entity.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Order
	for _, o := range r.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *clone(o))
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) mutate(id string, expectedVersion int64, now time.Time, fn func(*entity.Order) bool) error {
	o, ok := r.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	if expectedVersion > 0 && o.Version != expectedVersion {
		return repo.ErrVersionConflict
	}
	if !fn(o) {
		return repo.ErrVersionConflict
	}
	o.Version++
	o.UpdatedAt = now
	return nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id string, status entity.OrderStatus, expectedVersion int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutate(id, expectedVersion, now, func(o *entity.Order) bool {
		o.Status = status
		if status == entity.OrderStatusDelivered && o.DeliveryDate == nil {
			stamp := now
			o.DeliveryDate = &stamp
		}
		return true
	})
}

func (r *fakeRepo) UpdatePaymentStatus(_ context.Context, id string, status entity.PaymentStatus, expectedVersion int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutate(id, expectedVersion, now, func(o *entity.Order) bool {
		o.PaymentStatus = status
		return true
	})
}

func (r *fakeRepo) SetTrackingNumber(_ context.Context, id, tracking string, expectedVersion int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutate(id, expectedVersion, now, func(o *entity.Order) bool {
		o.TrackingNumber = tracking
		return true
	})
}

func (r *fakeRepo) CompareAndSwapStatus(_ context.Context, id string, expectedVersion int64, from []entity.OrderStatus, to entity.OrderStatus, notes string, now time.Time) error {
	if r.beforeCAS != nil {
		hook := r.beforeCAS
		r.beforeCAS = nil
		hook(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutate(id, expectedVersion, now, func(o *entity.Order) bool {
		allowed := false
		for _, s := range from {
			if o.Status == s {
				allowed = true
			}
		}
		if !allowed {
			return false
		}
		o.Status = to
		o.Notes = notes
		return true
	})
}

func (r *fakeRepo) Stats(_ context.Context) (*repo.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statsCalls++
	stats := &repo.Stats{
		ByStatus: map[entity.OrderStatus]int64{},
		ByType:   map[entity.OrderType]int64{},
		Revenue:  decimal.Zero,
	}
	for _, o := range r.orders {
		stats.Total++
		stats.ByStatus[o.Status]++
		stats.ByType[o.OrderType]++
		if o.PaymentStatus == entity.PaymentStatusPaid {
			stats.Revenue = stats.Revenue.Add(o.TotalAmount)
		}
	}
	return stats, nil
}

type fakeCatalog struct {
	missing map[string]bool
}

func (c fakeCatalog) Missing(_ context.Context, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		if c.missing[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

type published struct {
	key     string
	headers map[string]string
	event   Event
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
}

func (p *recordingPublisher) Publish(_ context.Context, key, value []byte, headers map[string]string) error {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{key: string(key), headers: headers, event: event})
	return nil
}

func (p *recordingPublisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *recordingPublisher) Topic() string { return "orders.events" }

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.messages))
	for _, m := range p.messages {
		out = append(out, m.event.Type)
	}
	return out
}
