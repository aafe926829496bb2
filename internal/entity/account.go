package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Customer is a storefront shopper.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID           string    `bun:"id,pk"`
	FirstName    string    `bun:"first_name,notnull"`
	LastName     string    `bun:"last_name,notnull"`
	Email        string    `bun:"email,notnull,unique"`
	Phone        string    `bun:"phone,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero"`
}

// DisplayName joins first and last name.
func (c *Customer) DisplayName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// Administrator is a back-office operator. Inactive administrators cannot authenticate.
type Administrator struct {
	bun.BaseModel `bun:"table:administrators,alias:a"`

	ID           string     `bun:"id,pk"`
	Name         string     `bun:"name,notnull"`
	Email        string     `bun:"email,notnull,unique"`
	Role         string     `bun:"role,notnull"`
	PasswordHash string     `bun:"password_hash,notnull"`
	Active       bool       `bun:"active,notnull"`
	LastLoginAt  *time.Time `bun:"last_login_at"`
	CreatedAt    time.Time  `bun:"created_at,notnull"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero"`
}

// CatalogItem is the slice of the catalog the order core needs: whether an item exists.
type CatalogItem struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	Active    bool      `bun:"active,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
