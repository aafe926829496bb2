package dto

import (
	"strings"
	"time"

	"github.com/Additional-Code/loft/internal/entity"
	repo "github.com/Additional-Code/loft/internal/repository/order"
	"github.com/Additional-Code/loft/pkg/errorbank"
)

// OrderListQuery carries the query-string filters for order listings.
type OrderListQuery struct {
	Page          int    `query:"page"`
	Limit         int    `query:"limit"`
	Status        string `query:"status"`
	OrderType     string `query:"orderType"`
	PaymentStatus string `query:"paymentStatus"`
	StartDate     string `query:"startDate"`
	EndDate       string `query:"endDate"`
	Search        string `query:"search"`
}

// ToFilter validates the query and converts it into a repository filter.
func (q OrderListQuery) ToFilter() (repo.Filter, []errorbank.FieldError) {
	var errs []errorbank.FieldError
	f := repo.Filter{
		Page:   q.Page,
		Limit:  q.Limit,
		Search: strings.TrimSpace(q.Search),
	}

	if q.Page < 0 {
		errs = append(errs, errorbank.FieldError{Field: "page", Message: "must be positive"})
	}
	if q.Limit < 0 {
		errs = append(errs, errorbank.FieldError{Field: "limit", Message: "must be positive"})
	}
	if q.Status != "" {
		f.Status = entity.OrderStatus(strings.ToLower(q.Status))
		if !f.Status.Valid() {
			errs = append(errs, errorbank.FieldError{Field: "status", Message: "unknown order status"})
		}
	}
	if q.OrderType != "" {
		f.OrderType = entity.OrderType(strings.ToLower(q.OrderType))
		if !f.OrderType.Valid() {
			errs = append(errs, errorbank.FieldError{Field: "orderType", Message: "unknown order type"})
		}
	}
	if q.PaymentStatus != "" {
		f.PaymentStatus = entity.PaymentStatus(strings.ToLower(q.PaymentStatus))
		if !f.PaymentStatus.Valid() {
			errs = append(errs, errorbank.FieldError{Field: "paymentStatus", Message: "unknown payment status"})
		}
	}
	if q.StartDate != "" {
		t, err := parseBound(q.StartDate, false)
		if err != nil {
			errs = append(errs, errorbank.FieldError{Field: "startDate", Message: "must be YYYY-MM-DD or RFC 3339"})
		} else {
			f.CreatedFrom = &t
		}
	}
	if q.EndDate != "" {
		t, err := parseBound(q.EndDate, true)
		if err != nil {
			errs = append(errs, errorbank.FieldError{Field: "endDate", Message: "must be YYYY-MM-DD or RFC 3339"})
		} else {
			f.CreatedTo = &t
		}
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedTo.Before(*f.CreatedFrom) {
		errs = append(errs, errorbank.FieldError{Field: "endDate", Message: "must not precede startDate"})
	}
	return f.Normalise(), errs
}

// parseBound reads a date-only bound as the whole day: the start of the day for a lower
// bound and its last instant for an upper bound.
func parseBound(raw string, upper bool) (time.Time, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		if upper {
			return t.Add(24*time.Hour - time.Nanosecond), nil
		}
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
