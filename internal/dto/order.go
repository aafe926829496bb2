package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/loft/internal/entity"
	service "github.com/Additional-Code/loft/internal/service/order"
)

// AddressPayload is a postal address on the wire.
type AddressPayload struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

func (a AddressPayload) toEntity() entity.Address {
	return entity.Address{
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func fromAddress(a entity.Address) AddressPayload {
	return AddressPayload{
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

// OrderLineRequest is one cart line sent at checkout.
type OrderLineRequest struct {
	ItemID          string          `json:"itemId"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	IsRental        bool            `json:"isRental"`
	RentalDuration  int             `json:"rentalDuration"`
	RentalStartDate *Date           `json:"rentalStartDate"`
	RentalEndDate   *Date           `json:"rentalEndDate"`
}

// CreateOrderRequest is the checkout payload.
type CreateOrderRequest struct {
	Items           []OrderLineRequest `json:"items"`
	ShippingAddress AddressPayload     `json:"shippingAddress"`
	BillingAddress  *AddressPayload    `json:"billingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
	Notes           string             `json:"notes"`
	TotalAmount     *decimal.Decimal   `json:"totalAmount"`
	OrderType       string             `json:"orderType"`
}

// ToInput converts the payload into a service request for customerID.
func (r CreateOrderRequest) ToInput(customerID string) service.CreateInput {
	in := service.CreateInput{
		CustomerID:      customerID,
		Items:           make([]service.LineInput, 0, len(r.Items)),
		ShippingAddress: r.ShippingAddress.toEntity(),
		PaymentMethod:   r.PaymentMethod,
		Notes:           r.Notes,
		DeclaredTotal:   r.TotalAmount,
		DeclaredType:    entity.OrderType(r.OrderType),
	}
	if r.BillingAddress != nil {
		billing := r.BillingAddress.toEntity()
		in.BillingAddress = &billing
	}
	for _, line := range r.Items {
		in.Items = append(in.Items, service.LineInput{
			ItemID:          line.ItemID,
			Quantity:        line.Quantity,
			Price:           line.Price,
			IsRental:        line.IsRental,
			RentalDuration:  line.RentalDuration,
			RentalStartDate: line.RentalStartDate.Ptr(),
			RentalEndDate:   line.RentalEndDate.Ptr(),
		})
	}
	return in
}

// CancelOrderRequest carries an optional cancellation reason.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// StatusUpdateRequest sets the fulfilment status. ExpectedVersion turns the write into a
// compare-and-swap.
type StatusUpdateRequest struct {
	Status          string `json:"status"`
	ExpectedVersion *int64 `json:"expectedVersion"`
}

// PaymentUpdateRequest sets the payment status.
type PaymentUpdateRequest struct {
	PaymentStatus   string `json:"paymentStatus"`
	ExpectedVersion *int64 `json:"expectedVersion"`
}

// TrackingUpdateRequest sets the carrier tracking number.
type TrackingUpdateRequest struct {
	TrackingNumber  string `json:"trackingNumber"`
	ExpectedVersion *int64 `json:"expectedVersion"`
}

// Version returns the expected version or zero when absent.
func Version(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// OrderLineResponse is one order line as exposed via transport layers.
type OrderLineResponse struct {
	ItemID          string     `json:"itemId"`
	Quantity        int        `json:"quantity"`
	Price           float64    `json:"price"`
	Subtotal        float64    `json:"subtotal"`
	IsRental        bool       `json:"isRental"`
	RentalDuration  int        `json:"rentalDuration,omitempty"`
	RentalStartDate *time.Time `json:"rentalStartDate,omitempty"`
	RentalEndDate   *time.Time `json:"rentalEndDate,omitempty"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"orderNumber"`
	CustomerID      string              `json:"customerId"`
	Items           []OrderLineResponse `json:"items"`
	OrderType       string              `json:"orderType"`
	TotalAmount     float64             `json:"totalAmount"`
	Status          string              `json:"status"`
	PaymentStatus   string              `json:"paymentStatus"`
	PaymentMethod   string              `json:"paymentMethod"`
	ShippingAddress AddressPayload      `json:"shippingAddress"`
	BillingAddress  AddressPayload      `json:"billingAddress"`
	Notes           string              `json:"notes,omitempty"`
	TrackingNumber  string              `json:"trackingNumber,omitempty"`
	DeliveryDate    *time.Time          `json:"deliveryDate,omitempty"`
	Version         int64               `json:"version"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// NewOrderResponse maps an order entity onto its wire form.
func NewOrderResponse(o *entity.Order) OrderResponse {
	lines := make([]OrderLineResponse, 0, len(o.Items))
	for _, line := range o.Items {
		lines = append(lines, OrderLineResponse{
			ItemID:          line.ItemID,
			Quantity:        line.Quantity,
			Price:           line.Price.InexactFloat64(),
			Subtotal:        line.Subtotal().InexactFloat64(),
			IsRental:        line.IsRental,
			RentalDuration:  line.RentalDuration,
			RentalStartDate: line.RentalStartDate,
			RentalEndDate:   line.RentalEndDate,
		})
	}
	return OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.Number,
		CustomerID:      o.CustomerID,
		Items:           lines,
		OrderType:       string(o.OrderType),
		TotalAmount:     o.TotalAmount.InexactFloat64(),
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: fromAddress(o.ShippingAddress),
		BillingAddress:  fromAddress(o.BillingAddress),
		Notes:           o.Notes,
		TrackingNumber:  o.TrackingNumber,
		DeliveryDate:    o.DeliveryDate,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// NewOrderResponses maps a page of orders.
func NewOrderResponses(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return out
}
