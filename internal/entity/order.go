package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderStatus is the fulfilment axis of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusReturned,
}

// Valid reports whether s is one of the enumerated statuses.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further fulfilment is expected.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusReturned
}

// PaymentStatus is the payment axis of an order, independent of OrderStatus.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentStatuses lists every payment status.
var PaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

// Valid reports whether s is one of the enumerated payment statuses.
func (s PaymentStatus) Valid() bool {
	for _, known := range PaymentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// OrderType tells purchases and rentals apart.
type OrderType string

const (
	OrderTypePurchase OrderType = "purchase"
	OrderTypeRental   OrderType = "rental"
	OrderTypeMixed    OrderType = "mixed"
)

// OrderTypes lists every order type.
var OrderTypes = []OrderType{OrderTypePurchase, OrderTypeRental, OrderTypeMixed}

// Valid reports whether t is one of the enumerated order types.
func (t OrderType) Valid() bool {
	return t == OrderTypePurchase || t == OrderTypeRental || t == OrderTypeMixed
}

// Address is a postal address stored as JSON on the order row.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// OrderLine is a priced, quantified sale or rental entry. Price is a snapshot taken
// when the order was placed.
type OrderLine struct {
	ItemID          string          `json:"itemId"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	IsRental        bool            `json:"isRental"`
	RentalDuration  int             `json:"rentalDuration,omitempty"`
	RentalStartDate *time.Time      `json:"rentalStartDate,omitempty"`
	RentalEndDate   *time.Time      `json:"rentalEndDate,omitempty"`
}

// Subtotal returns price × quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order represents a customer order stored in the relational database.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              string          `bun:"id,pk"`
	Number          string          `bun:"number,notnull,unique"`
	CustomerID      string          `bun:"customer_id,notnull"`
	Items           []OrderLine     `bun:"items,type:jsonb,notnull"`
	OrderType       OrderType       `bun:"order_type,notnull"`
	TotalAmount     decimal.Decimal `bun:"total_amount,type:numeric(12,2),notnull"`
	Status          OrderStatus     `bun:"status,notnull"`
	PaymentStatus   PaymentStatus   `bun:"payment_status,notnull"`
	PaymentMethod   string          `bun:"payment_method,notnull"`
	ShippingAddress Address         `bun:"shipping_address,type:jsonb,notnull"`
	BillingAddress  Address         `bun:"billing_address,type:jsonb,notnull"`
	Notes           string          `bun:"notes,notnull"`
	TrackingNumber  string          `bun:"tracking_number,notnull"`
	DeliveryDate    *time.Time      `bun:"delivery_date"`
	Version         int64           `bun:"version,notnull"`
	CreatedAt       time.Time       `bun:"created_at,notnull"`
	UpdatedAt       time.Time       `bun:"updated_at,nullzero"`
}

// OwnedBy reports whether the order belongs to the given customer.
func (o *Order) OwnedBy(customerID string) bool {
	return o != nil && customerID != "" && o.CustomerID == customerID
}
