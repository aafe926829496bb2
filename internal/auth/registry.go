package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrPrincipalInactive = errors.New("principal inactive")
)

// Store resolves a verified principal id to its record for one kind.
type Store interface {
	Resolve(ctx context.Context, id string) (*Identity, error)
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context, id string) (*Identity, error)

// Resolve calls f.
func (f StoreFunc) Resolve(ctx context.Context, id string) (*Identity, error) {
	return f(ctx, id)
}

// StoreBinding registers a Store for a principal kind.
type StoreBinding struct {
	Kind  Kind
	Store Store
}

// Registry maps each principal kind to its verifier domain and store.
type Registry struct {
	verifier *Verifier
	stores   map[Kind]Store
	logger   *zap.Logger
	metrics  *gateMetrics
}

// RegistryParams collects the registry dependencies via Fx.
type RegistryParams struct {
	fx.In

	Verifier *Verifier
	Logger   *zap.Logger
	Bindings []StoreBinding `group:"auth.stores"`
}

// Module wires the verifier and registry.
var Module = fx.Provide(
	NewVerifier,
	NewRegistryFromParams,
)

// NewRegistryFromParams builds a Registry from Fx-grouped store bindings.
func NewRegistryFromParams(p RegistryParams) (*Registry, error) {
	return NewRegistry(p.Verifier, p.Logger, p.Bindings...)
}

// NewRegistry builds a Registry with explicit bindings.
func NewRegistry(verifier *Verifier, logger *zap.Logger, bindings ...StoreBinding) (*Registry, error) {
	if verifier == nil {
		return nil, errors.New("auth registry requires a verifier")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	stores := make(map[Kind]Store, len(bindings))
	for _, b := range bindings {
		if !b.Kind.Valid() || b.Store == nil {
			return nil, fmt.Errorf("invalid store binding for kind %q", b.Kind)
		}
		if _, dup := stores[b.Kind]; dup {
			return nil, fmt.Errorf("duplicate store binding for kind %q", b.Kind)
		}
		stores[b.Kind] = b.Store
	}
	return &Registry{
		verifier: verifier,
		stores:   stores,
		logger:   logger,
		metrics:  newGateMetrics(),
	}, nil
}

// Verifier exposes the verifier used for issuing credentials.
func (r *Registry) Verifier() *Verifier {
	return r.verifier
}

// Authenticate verifies the Authorization header for kind and resolves the principal.
func (r *Registry) Authenticate(ctx context.Context, kind Kind, header string) (*Identity, error) {
	store, ok := r.stores[kind]
	if !ok {
		return nil, ErrWrongDomain
	}

	raw, err := ExtractBearer(header)
	if err != nil {
		return nil, err
	}

	principal, err := r.verifier.Verify(kind, raw)
	if err != nil {
		return nil, err
	}

	identity, err := store.Resolve(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, ErrPrincipalNotFound
	}
	identity.Principal = principal
	return identity, nil
}
