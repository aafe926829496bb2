package account

import (
	"context"
	"errors"

	"github.com/Additional-Code/loft/internal/auth"
	adminrepo "github.com/Additional-Code/loft/internal/repository/admin"
	customerrepo "github.com/Additional-Code/loft/internal/repository/customer"
)

// CustomerStore resolves customer principals. Customers have no active flag.
func (s *Service) CustomerStore() auth.Store {
	return auth.StoreFunc(func(ctx context.Context, id string) (*auth.Identity, error) {
		customer, err := s.customers.GetByID(ctx, id)
		if errors.Is(err, customerrepo.ErrNotFound) {
			return nil, auth.ErrPrincipalNotFound
		}
		if err != nil {
			return nil, err
		}
		return &auth.Identity{
			Principal: auth.Principal{Kind: auth.KindCustomer, ID: customer.ID},
			Name:      customer.DisplayName(),
			Email:     customer.Email,
			Role:      string(auth.KindCustomer),
		}, nil
	})
}

// AdministratorStore resolves administrator principals, refusing inactive accounts.
func (s *Service) AdministratorStore() auth.Store {
	return auth.StoreFunc(func(ctx context.Context, id string) (*auth.Identity, error) {
		admin, err := s.admins.GetByID(ctx, id)
		if errors.Is(err, adminrepo.ErrNotFound) {
			return nil, auth.ErrPrincipalNotFound
		}
		if err != nil {
			return nil, err
		}
		if !admin.Active {
			return nil, auth.ErrPrincipalInactive
		}
		return &auth.Identity{
			Principal: auth.Principal{Kind: auth.KindAdministrator, ID: admin.ID},
			Name:      admin.Name,
			Email:     admin.Email,
			Role:      admin.Role,
		}, nil
	})
}

func customerBinding(s *Service) auth.StoreBinding {
	return auth.StoreBinding{Kind: auth.KindCustomer, Store: s.CustomerStore()}
}

func administratorBinding(s *Service) auth.StoreBinding {
	return auth.StoreBinding{Kind: auth.KindAdministrator, Store: s.AdministratorStore()}
}
