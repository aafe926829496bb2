package dto

import (
	"time"

	"github.com/Additional-Code/loft/internal/auth"
	"github.com/Additional-Code/loft/internal/entity"
	"github.com/Additional-Code/loft/internal/service/account"
)

// RegisterRequest is the storefront sign-up payload.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
}

// ToInput converts the payload into a service request.
func (r RegisterRequest) ToInput() account.RegisterInput {
	return account.RegisterInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Password:  r.Password,
		Phone:     r.Phone,
	}
}

// LoginRequest carries credentials for either login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdateRequest is a merge-patch over the customer profile.
type ProfileUpdateRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Password  *string `json:"password"`
}

// ToPatch converts the payload into a service patch.
func (r ProfileUpdateRequest) ToPatch() account.ProfilePatch {
	return account.ProfilePatch{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
		Password:  r.Password,
	}
}

// CustomerResponse is the public view of a customer.
type CustomerResponse struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewCustomerResponse maps a customer entity without its password hash.
func NewCustomerResponse(c *entity.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
	}
}

// AdministratorResponse is the public view of an administrator.
type AdministratorResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// NewAdministratorResponse maps an administrator entity without its password hash.
func NewAdministratorResponse(a *entity.Administrator) AdministratorResponse {
	return AdministratorResponse{
		ID:          a.ID,
		Name:        a.Name,
		Email:       a.Email,
		Role:        a.Role,
		LastLoginAt: a.LastLoginAt,
	}
}

// CustomerAuthResponse pairs a customer with a fresh credential.
type CustomerAuthResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Customer  CustomerResponse `json:"user"`
}

// NewCustomerAuthResponse builds the login/register response.
func NewCustomerAuthResponse(c *entity.Customer, token auth.Token) CustomerAuthResponse {
	return CustomerAuthResponse{Token: token.Value, ExpiresAt: token.ExpiresAt, Customer: NewCustomerResponse(c)}
}

// AdministratorAuthResponse pairs an administrator with a fresh credential.
type AdministratorAuthResponse struct {
	Token         string                `json:"token"`
	ExpiresAt     time.Time             `json:"expiresAt"`
	Administrator AdministratorResponse `json:"admin"`
}

// NewAdministratorAuthResponse builds the admin login response.
func NewAdministratorAuthResponse(a *entity.Administrator, token auth.Token) AdministratorAuthResponse {
	return AdministratorAuthResponse{Token: token.Value, ExpiresAt: token.ExpiresAt, Administrator: NewAdministratorResponse(a)}
}
