package auth

import (
	"context"

	"github.com/labstack/echo/v4"
)

// Kind distinguishes the two disjoint principal families.
type Kind string

const (
	KindCustomer      Kind = "customer"
	KindAdministrator Kind = "administrator"
)

// Valid reports whether k names a known principal kind.
func (k Kind) Valid() bool {
	return k == KindCustomer || k == KindAdministrator
}

// Principal is a verified {kind, id} pair extracted from a credential.
type Principal struct {
	Kind Kind
	ID   string
}

// Identity is the resolved principal record exposed to handlers. It never carries a
// password hash.
type Identity struct {
	Principal
	Name  string
	Email string
	Role  string
}

type contextKey struct{}

const echoContextKey = "auth.identity"

// WithIdentity stores the identity on a context.Context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// FromContext returns the identity attached by the gate, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(*Identity)
	return identity, ok && identity != nil
}

// Current returns the identity attached to an echo request.
func Current(c echo.Context) (*Identity, bool) {
	if identity, ok := c.Get(echoContextKey).(*Identity); ok && identity != nil {
		return identity, true
	}
	return FromContext(c.Request().Context())
}

func attach(c echo.Context, identity *Identity) {
	c.Set(echoContextKey, identity)
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), identity)))
}
