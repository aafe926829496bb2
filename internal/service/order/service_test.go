package order

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/cache"
	"github.com/Additional-Code/loft/internal/config"
	"github.com/Additional-Code/loft/internal/entity"
	"github.com/Additional-Code/loft/internal/messaging"
	repo "github.com/Additional-Code/loft/internal/repository/order"
	"github.com/Additional-Code/loft/pkg/errorbank"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc       *Service
	repo      *fakeRepo
	cache     *cache.MemoryStore
	publisher *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:      newFakeRepo(),
		cache:     cache.NewMemory(time.Minute),
		publisher: &recordingPublisher{},
	}
	cfg := config.Config{}
	cfg.Cache.DefaultTTL = time.Minute
	cfg.Messaging.Enabled = true
	cfg.Orders.PaymentMethods = []string{"credit_card", "paypal"}
	cfg.Orders.VerifyItems = true
	cfg.Orders.StatsTTL = time.Minute

	h.svc = NewService(Params{
		Repository: h.repo,
		Catalog:    fakeCatalog{missing: map[string]bool{"ghost": true}},
		Cache:      h.cache,
		Config:     cfg,
		Logger:     zap.NewNop(),
		Publisher:  h.publisher,
	})
	h.svc.now = func() time.Time { return fixedNow }
	return h
}

var address = entity.Address{Street: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"}

func purchaseInput(customerID string) CreateInput {
	return CreateInput{
		CustomerID:      customerID,
		Items:           []LineInput{{ItemID: "sofa-1", Quantity: 2, Price: decimal.NewFromInt(100)}},
		ShippingAddress: address,
		PaymentMethod:   "credit_card",
	}
}

func rentalLine(start time.Time, days int) LineInput {
	end := start.AddDate(0, 0, days)
	return LineInput{
		ItemID:          "chair-9",
		Quantity:        1,
		Price:           decimal.RequireFromString("15.50"),
		IsRental:        true,
		RentalDuration:  days,
		RentalStartDate: &start,
		RentalEndDate:   &end,
	}
}

func (h *harness) seed(t *testing.T, customerID string, status entity.OrderStatus) *entity.Order {
	t.Helper()
	order, err := h.svc.Create(context.Background(), purchaseInput(customerID))
	require.NoError(t, err)
	if status != entity.OrderStatusPending {
		h.repo.mu.Lock()
		h.repo.orders[order.ID].Status = status
		h.repo.mu.Unlock()
		h.svc.invalidate(context.Background(), order.ID)
	}
	return order
}

func requireKind(t *testing.T, err error, kind errorbank.Kind) *errorbank.AppError {
	t.Helper()
	require.Error(t, err)
	appErr := errorbank.From(err)
	require.Equal(t, kind, appErr.Kind(), appErr.Error())
	return appErr
}

func fieldNames(appErr *errorbank.AppError) []string {
	var out []string
	for _, f := range appErr.Fields() {
		out = append(out, f.Field)
	}
	return out
}

func TestCreatePurchaseOrder(t *testing.T) {
	h := newHarness(t)
	in := purchaseInput("cust-a")
	declared := decimal.NewFromInt(200)
	in.DeclaredTotal = &declared
	in.DeclaredType = entity.OrderTypePurchase

	order, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, entity.OrderStatusPending, order.Status)
	assert.Equal(t, entity.PaymentStatusPending, order.PaymentStatus)
	assert.True(t, decimal.NewFromInt(200).Equal(order.TotalAmount))
	assert.Equal(t, entity.OrderTypePurchase, order.OrderType)
	assert.Equal(t, "cust-a", order.CustomerID)
	assert.Equal(t, int64(1), order.Version)
	assert.Equal(t, address, order.BillingAddress)
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{13}-[0-9A-Z]{4}$`), order.Number)

	require.Len(t, h.publisher.messages, 1)
	msg := h.publisher.messages[0]
	assert.Equal(t, order.ID, msg.key)
	assert.Equal(t, string(EventOrderCreated), msg.headers[messaging.HeaderEventType])
	assert.Equal(t, order.Number, msg.event.Number)
}

func TestCreateTotalIsSumOfLines(t *testing.T) {
	h := newHarness(t)
	start := time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
	in := purchaseInput("cust-a")
	in.Items = append(in.Items,
		LineInput{ItemID: "lamp-2", Quantity: 3, Price: decimal.RequireFromString("19.99")},
		rentalLine(start, 7),
	)

	order, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "275.47", order.TotalAmount.StringFixed(2))
	assert.Equal(t, entity.OrderTypeMixed, order.OrderType)
}

func TestDeriveOrderType(t *testing.T) {
	sale := entity.OrderLine{}
	rental := entity.OrderLine{IsRental: true}

	assert.Equal(t, entity.OrderTypePurchase, DeriveOrderType([]entity.OrderLine{sale, sale}))
	assert.Equal(t, entity.OrderTypeRental, DeriveOrderType([]entity.OrderLine{rental, rental}))
	assert.Equal(t, entity.OrderTypeMixed, DeriveOrderType([]entity.OrderLine{sale, rental}))
}

func TestCreateRentalOrder(t *testing.T) {
	h := newHarness(t)
	start := time.Date(2024, 7, 1, 18, 0, 0, 0, time.UTC)
	in := purchaseInput("cust-a")
	in.Items = []LineInput{rentalLine(start, 3)}

	order, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderTypeRental, order.OrderType)
	require.NotNil(t, order.Items[0].RentalEndDate)
	assert.Equal(t, time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC), *order.Items[0].RentalEndDate)
}

func TestCreateRejectsIncompleteRentalLine(t *testing.T) {
	h := newHarness(t)
	in := purchaseInput("cust-a")
	in.Items = []LineInput{{ItemID: "chair-9", Quantity: 1, Price: decimal.NewFromInt(10), IsRental: true}}

	order, err := h.svc.Create(context.Background(), in)
	assert.Nil(t, order)
	appErr := requireKind(t, err, errorbank.KindBadRequest)
	assert.ElementsMatch(t, []string{
		"items[0].rentalDuration", "items[0].rentalStartDate", "items[0].rentalEndDate",
	}, fieldNames(appErr))
	assert.Empty(t, h.repo.orders)
}

func TestCreateRejectsInconsistentRentalDates(t *testing.T) {
	h := newHarness(t)
	line := rentalLine(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), 3)
	wrongEnd := line.RentalEndDate.AddDate(0, 0, 1)
	line.RentalEndDate = &wrongEnd
	in := purchaseInput("cust-a")
	in.Items = []LineInput{line}

	_, err := h.svc.Create(context.Background(), in)
	appErr := requireKind(t, err, errorbank.KindBadRequest)
	assert.Equal(t, []string{"items[0].rentalEndDate"}, fieldNames(appErr))
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"no items", func(in *CreateInput) { in.Items = nil }, "items"},
		{"zero quantity", func(in *CreateInput) { in.Items[0].Quantity = 0 }, "items[0].quantity"},
		{"negative price", func(in *CreateInput) { in.Items[0].Price = decimal.NewFromInt(-1) }, "items[0].price"},
		{"sub-cent price", func(in *CreateInput) { in.Items[0].Price = decimal.RequireFromString("19.999") }, "items[0].price"},
		{"price beyond money column", func(in *CreateInput) { in.Items[0].Price = decimal.RequireFromString("10000000000") }, "items[0].price"},
		{"total beyond money column", func(in *CreateInput) {
			in.Items[0].Price = decimal.RequireFromString("9999999999.99")
		}, "totalAmount"},
		{"missing city", func(in *CreateInput) { in.ShippingAddress.City = "" }, "shippingAddress.city"},
		{"unsupported payment", func(in *CreateInput) { in.PaymentMethod = "seashells" }, "paymentMethod"},
		{"declared total mismatch", func(in *CreateInput) {
			wrong := decimal.NewFromInt(150)
			in.DeclaredTotal = &wrong
		}, "totalAmount"},
		{"declared type mismatch", func(in *CreateInput) { in.DeclaredType = entity.OrderTypeRental }, "orderType"},
		{"unknown item", func(in *CreateInput) { in.Items[0].ItemID = "ghost" }, "items"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			in := purchaseInput("cust-a")
			tc.mutate(&in)

			order, err := h.svc.Create(context.Background(), in)
			assert.Nil(t, order)
			appErr := requireKind(t, err, errorbank.KindBadRequest)
			assert.Contains(t, fieldNames(appErr), tc.field)
			assert.Empty(t, h.publisher.messages)
		})
	}
}

func TestCreateTotalKeepsCentPrecision(t *testing.T) {
	h := newHarness(t)
	in := purchaseInput("cust-a")
	in.Items = []LineInput{
		{ItemID: "lamp-2", Quantity: 3, Price: decimal.RequireFromString("19.990")},
		{ItemID: "rug-7", Quantity: 1, Price: decimal.RequireFromString("0.05")},
	}

	order, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "60.02", order.TotalAmount.StringFixed(2))
	assert.True(t, order.TotalAmount.Equal(order.TotalAmount.Round(2)))

	var recomputed decimal.Decimal
	for _, line := range order.Items {
		recomputed = recomputed.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	assert.True(t, recomputed.Equal(order.TotalAmount))
}

func TestCreateUnsupportedPaymentListsAccepted(t *testing.T) {
	h := newHarness(t)
	in := purchaseInput("cust-a")
	in.PaymentMethod = "seashells"

	_, err := h.svc.Create(context.Background(), in)
	appErr := requireKind(t, err, errorbank.KindBadRequest)
	require.Len(t, appErr.Fields(), 1)
	assert.Equal(t, "unsupported payment method, accepted: credit_card, paypal", appErr.Fields()[0].Message)
}

func TestCreatePaymentMethodIsCaseInsensitive(t *testing.T) {
	h := newHarness(t)
	in := purchaseInput("cust-a")
	in.PaymentMethod = " PayPal "

	order, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "paypal", order.PaymentMethod)
}

func TestCreateSanitizesNotes(t *testing.T) {
	h := newHarness(t)
	in := purchaseInput("cust-a")
	in.Notes = `<script>alert(1)</script>Leave at the door`

	order, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Leave at the door", order.Notes)
}

func TestFreeTextKeepsPlainPunctuation(t *testing.T) {
	h := newHarness(t)
	in := purchaseInput("cust-a")
	in.Notes = `Don't ring; "Tom & Jerry" live here`

	order, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, `Don't ring; "Tom & Jerry" live here`, order.Notes)

	cancelled, err := h.svc.Cancel(context.Background(), "cust-a", order.ID, "wrong size & <b>colour</b>")
	require.NoError(t, err)
	assert.Equal(t, "Don't ring; \"Tom & Jerry\" live here\nCancelled by customer: wrong size & colour", cancelled.Notes)

	shipped := h.seed(t, "cust-a", entity.OrderStatusShipped)
	updated, err := h.svc.SetTrackingNumber(context.Background(), shipped.ID, "DHL<>1&2", 0)
	require.NoError(t, err)
	assert.Equal(t, "DHL<>1&2", updated.TrackingNumber)
}

func TestCreateRetriesOnDuplicateNumber(t *testing.T) {
	h := newHarness(t)
	h.repo.createErrs = []error{repo.ErrDuplicateNumber, repo.ErrDuplicateNumber}
	calls := 0
	h.svc.numbers = func(at time.Time) string {
		calls++
		return fmt.Sprintf("ORD-%d-000%d", at.UnixMilli(), calls)
	}

	order, err := h.svc.Create(context.Background(), purchaseInput("cust-a"))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, fmt.Sprintf("ORD-%d-0003", fixedNow.UnixMilli()), order.Number)
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	h := newHarness(t)
	h.repo.createErrs = []error{repo.ErrDuplicateNumber, repo.ErrDuplicateNumber, repo.ErrDuplicateNumber}

	order, err := h.svc.Create(context.Background(), purchaseInput("cust-a"))
	assert.Nil(t, order)
	requireKind(t, err, errorbank.KindInternal)
}

func TestCreatePersistenceFailure(t *testing.T) {
	h := newHarness(t)
	h.repo.createErrs = []error{fmt.Errorf("connection reset")}

	order, err := h.svc.Create(context.Background(), purchaseInput("cust-a"))
	assert.Nil(t, order)
	requireKind(t, err, errorbank.KindInternal)
	assert.Empty(t, h.publisher.messages)
}

func TestGetForCustomerHidesForeignOrders(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-b", entity.OrderStatusPending)

	got, err := h.svc.GetForCustomer(context.Background(), "cust-b", order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	got, err = h.svc.GetForCustomer(context.Background(), "cust-a", order.ID)
	assert.Nil(t, got)
	requireKind(t, err, errorbank.KindNotFound)

	_, err = h.svc.Get(context.Background(), "missing")
	requireKind(t, err, errorbank.KindNotFound)
}

func TestCancelAllowedStatuses(t *testing.T) {
	for _, status := range entity.OrderStatuses {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness(t)
			order := h.seed(t, "cust-a", status)

			updated, err := h.svc.Cancel(context.Background(), "cust-a", order.ID, "changed my mind")
			stored, _ := h.repo.GetByID(context.Background(), order.ID)

			if status == entity.OrderStatusPending || status == entity.OrderStatusConfirmed {
				require.NoError(t, err)
				assert.Equal(t, entity.OrderStatusCancelled, updated.Status)
				assert.Equal(t, "Cancelled by customer: changed my mind", updated.Notes)
				assert.Equal(t, int64(2), updated.Version)
				return
			}
			appErr := requireKind(t, err, errorbank.KindInvalidTransition)
			assert.Equal(t, "cannot cancel at this stage", appErr.Message())
			assert.Equal(t, status, stored.Status)
		})
	}
}

func TestCancelAppendsToExistingNotes(t *testing.T) {
	h := newHarness(t)
	in := purchaseInput("cust-a")
	in.Notes = "Ring twice"
	order, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)

	updated, err := h.svc.Cancel(context.Background(), "cust-a", order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Ring twice\nCancelled by customer: no reason provided", updated.Notes)
}

func TestCancelIsNotIdempotent(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-a", entity.OrderStatusPending)

	_, err := h.svc.Cancel(context.Background(), "cust-a", order.ID, "first")
	require.NoError(t, err)

	_, err = h.svc.Cancel(context.Background(), "cust-a", order.ID, "second")
	requireKind(t, err, errorbank.KindInvalidTransition)
}

func TestCancelForeignOrder(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-b", entity.OrderStatusPending)

	_, err := h.svc.Cancel(context.Background(), "cust-a", order.ID, "mine now")
	requireKind(t, err, errorbank.KindNotFound)

	stored, _ := h.repo.GetByID(context.Background(), order.ID)
	assert.Equal(t, entity.OrderStatusPending, stored.Status)
}

func TestCancelLosesRaceToShipment(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-a", entity.OrderStatusPending)
	h.repo.beforeCAS = func(r *fakeRepo) {
		_ = r.UpdateStatus(context.Background(), order.ID, entity.OrderStatusShipped, 0, fixedNow)
	}

	_, err := h.svc.Cancel(context.Background(), "cust-a", order.ID, "too slow")
	requireKind(t, err, errorbank.KindInvalidTransition)

	stored, _ := h.repo.GetByID(context.Background(), order.ID)
	assert.Equal(t, entity.OrderStatusShipped, stored.Status)
}

func TestCancelLosesRaceToUnrelatedWrite(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-a", entity.OrderStatusPending)
	h.repo.beforeCAS = func(r *fakeRepo) {
		_ = r.UpdatePaymentStatus(context.Background(), order.ID, entity.PaymentStatusPaid, 0, fixedNow)
	}

	_, err := h.svc.Cancel(context.Background(), "cust-a", order.ID, "retry me")
	requireKind(t, err, errorbank.KindConflict)
}

func TestSetStatusDeliveredStampsOnce(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-a", entity.OrderStatusShipped)

	first, err := h.svc.SetStatus(context.Background(), order.ID, entity.OrderStatusDelivered, 0)
	require.NoError(t, err)
	require.NotNil(t, first.DeliveryDate)
	assert.Equal(t, fixedNow, *first.DeliveryDate)

	h.svc.now = func() time.Time { return fixedNow.Add(48 * time.Hour) }
	second, err := h.svc.SetStatus(context.Background(), order.ID, entity.OrderStatusDelivered, 0)
	require.NoError(t, err)
	require.NotNil(t, second.DeliveryDate)
	assert.Equal(t, fixedNow, *second.DeliveryDate)

	third, err := h.svc.SetStatus(context.Background(), order.ID, entity.OrderStatusCompleted, 0)
	require.NoError(t, err)
	require.NotNil(t, third.DeliveryDate)
}

func TestSetStatusIsUnbounded(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-a", entity.OrderStatusCompleted)

	updated, err := h.svc.SetStatus(context.Background(), order.ID, entity.OrderStatusPending, 0)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusPending, updated.Status)

	assert.Equal(t, []EventType{EventOrderCreated, EventStatusChanged}, h.publisher.types())
	assert.Equal(t, entity.OrderStatusCompleted, h.publisher.messages[1].event.PreviousStatus)
}

func TestSetStatusRejectsUnknownValue(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-a", entity.OrderStatusPending)

	_, err := h.svc.SetStatus(context.Background(), order.ID, entity.OrderStatus("lost"), 0)
	appErr := requireKind(t, err, errorbank.KindBadRequest)
	assert.Equal(t, []string{"status"}, fieldNames(appErr))

	_, err = h.svc.SetStatus(context.Background(), "missing", entity.OrderStatusShipped, 0)
	requireKind(t, err, errorbank.KindNotFound)
}

func TestConcurrentStatusWritesLastWins(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-a", entity.OrderStatusPending)

	_, err := h.svc.SetStatus(context.Background(), order.ID, entity.OrderStatusShipped, 0)
	require.NoError(t, err)
	_, err = h.svc.SetStatus(context.Background(), order.ID, entity.OrderStatusCancelled, 0)
	require.NoError(t, err)

	stored, _ := h.repo.GetByID(context.Background(), order.ID)
	assert.Equal(t, entity.OrderStatusCancelled, stored.Status)
	assert.Equal(t, int64(3), stored.Version)
}

func TestConcurrentStatusWritesWithExpectedVersion(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-a", entity.OrderStatusPending)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	targets := []entity.OrderStatus{entity.OrderStatusShipped, entity.OrderStatusCancelled}
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target entity.OrderStatus) {
			defer wg.Done()
			_, errs[i] = h.svc.SetStatus(context.Background(), order.ID, target, order.Version)
		}(i, target)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireKind(t, err, errorbank.KindConflict)
	}
	assert.Equal(t, 1, succeeded)
}

func TestSetPaymentStatusDoesNotAdvanceStatus(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-a", entity.OrderStatusPending)

	updated, err := h.svc.SetPaymentStatus(context.Background(), order.ID, entity.PaymentStatusPaid, 0)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, entity.OrderStatusPending, updated.Status)

	_, err = h.svc.SetPaymentStatus(context.Background(), order.ID, entity.PaymentStatus("maybe"), 0)
	requireKind(t, err, errorbank.KindBadRequest)
}

func TestSetTrackingNumber(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-a", entity.OrderStatusShipped)

	updated, err := h.svc.SetTrackingNumber(context.Background(), order.ID, " 1Z999AA10123456784 ", 0)
	require.NoError(t, err)
	assert.Equal(t, "1Z999AA10123456784", updated.TrackingNumber)

	_, err = h.svc.SetTrackingNumber(context.Background(), order.ID, "   ", 0)
	requireKind(t, err, errorbank.KindBadRequest)

	_, err = h.svc.SetTrackingNumber(context.Background(), order.ID, "X", 1)
	requireKind(t, err, errorbank.KindConflict)
}

func TestSetTrackingNumberLength(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-a", entity.OrderStatusShipped)

	_, err := h.svc.SetTrackingNumber(context.Background(), order.ID, strings.Repeat("Z", maxTrackingLength+1), 0)
	appErr := requireKind(t, err, errorbank.KindBadRequest)
	assert.Equal(t, []string{"trackingNumber"}, fieldNames(appErr))

	updated, err := h.svc.SetTrackingNumber(context.Background(), order.ID, strings.Repeat("Ü", maxTrackingLength), 0)
	require.NoError(t, err)
	assert.Equal(t, maxTrackingLength, utf8.RuneCountInString(updated.TrackingNumber))
}

func TestGetServesFromCacheAndInvalidatesOnWrite(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-a", entity.OrderStatusPending)

	_, err := h.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)

	// Changing storage behind the service's back is invisible while cached.
	h.repo.mu.Lock()
	h.repo.orders[order.ID].TrackingNumber = "hidden"
	h.repo.mu.Unlock()
	cached, err := h.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Empty(t, cached.TrackingNumber)

	_, err = h.svc.SetPaymentStatus(context.Background(), order.ID, entity.PaymentStatusPaid, 0)
	require.NoError(t, err)
	fresh, err := h.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "hidden", fresh.TrackingNumber)
	assert.Equal(t, entity.PaymentStatusPaid, fresh.PaymentStatus)
}

func TestStatsCachedUntilWrite(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, "cust-a", entity.OrderStatusPending)

	stats, err := h.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.True(t, stats.Revenue.IsZero())

	_, err = h.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.repo.statsCalls)

	_, err = h.svc.SetPaymentStatus(context.Background(), order.ID, entity.PaymentStatusPaid, 0)
	require.NoError(t, err)

	stats, err = h.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, h.repo.statsCalls)
	assert.Equal(t, "200", stats.Revenue.String())
}

func TestListForCustomerScopesToOwner(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "cust-a", entity.OrderStatusPending)
	h.seed(t, "cust-a", entity.OrderStatusShipped)
	h.seed(t, "cust-b", entity.OrderStatusPending)

	orders, total, f, err := h.svc.ListForCustomer(context.Background(), "cust-a", repo.Filter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, orders, 2)
	assert.Equal(t, repo.MaxLimit, f.Limit)
	for _, o := range orders {
		assert.Equal(t, "cust-a", o.CustomerID)
	}

	_, total, _, err = h.svc.List(context.Background(), repo.Filter{Status: entity.OrderStatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
