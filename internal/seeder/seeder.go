package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/auth"
	"github.com/Additional-Code/loft/internal/database"
	"github.com/Additional-Code/loft/internal/entity"
	"github.com/Additional-Code/loft/internal/service/account"
	"github.com/Additional-Code/loft/pkg/errorbank"
)

// Accounts provisions seeded principals.
type Accounts interface {
	CreateAdministrator(ctx context.Context, in account.AdminInput) (*entity.Administrator, error)
	RegisterCustomer(ctx context.Context, in account.RegisterInput) (*entity.Customer, auth.Token, error)
}

// Options controls which demo accounts are created.
type Options struct {
	AdminName        string
	AdminEmail       string
	AdminPassword    string
	CustomerEmail    string
	CustomerPassword string
}

// DefaultOptions are the local development credentials.
func DefaultOptions() Options {
	return Options{
		AdminName:        "Loft Admin",
		AdminEmail:       "admin@loft.local",
		AdminPassword:    "admin12345",
		CustomerEmail:    "customer@loft.local",
		CustomerPassword: "customer12345",
	}
}

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db       *bun.DB
	accounts Accounts
	logger   *zap.Logger
	now      func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, accounts *account.Service, logger *zap.Logger) *Seeder {
	return newSeeder(conns.Writer, accounts, logger)
}

func newSeeder(db *bun.DB, accounts Accounts, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{db: db, accounts: accounts, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Run seeds the catalog and the demo accounts.
func (s *Seeder) Run(ctx context.Context, opts Options) error {
	if err := s.Items(ctx); err != nil {
		return err
	}
	if err := s.Administrator(ctx, opts); err != nil {
		return err
	}
	return s.Customer(ctx, opts)
}

// Items seeds the furniture catalog if entries are missing.
func (s *Seeder) Items(ctx context.Context) error {
	now := s.now()
	items := []entity.CatalogItem{
		{ID: "sofa-oslo-3", Name: "Oslo three-seat sofa", Active: true, CreatedAt: now},
		{ID: "chair-bergen", Name: "Bergen dining chair", Active: true, CreatedAt: now},
		{ID: "table-fjord-oak", Name: "Fjord oak dining table", Active: true, CreatedAt: now},
		{ID: "bed-nordic-queen", Name: "Nordic queen bed frame", Active: true, CreatedAt: now},
		{ID: "lamp-aurora", Name: "Aurora floor lamp", Active: true, CreatedAt: now},
	}

	if _, err := s.db.NewInsert().Model(&items).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return err
	}

	s.logger.Info("seeded catalog items", zap.Int("count", len(items)))
	return nil
}

// Administrator creates the demo administrator unless the email is taken.
func (s *Seeder) Administrator(ctx context.Context, opts Options) error {
	_, err := s.accounts.CreateAdministrator(ctx, account.AdminInput{
		Name:     opts.AdminName,
		Email:    opts.AdminEmail,
		Password: opts.AdminPassword,
		Role:     "super_admin",
	})
	if errorbank.Is(err, errorbank.KindConflict) {
		s.logger.Info("administrator already seeded", zap.String("email", opts.AdminEmail))
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("seeded administrator", zap.String("email", opts.AdminEmail))
	return nil
}

// Customer registers the demo customer unless the email is taken.
func (s *Seeder) Customer(ctx context.Context, opts Options) error {
	_, _, err := s.accounts.RegisterCustomer(ctx, account.RegisterInput{
		FirstName: "Demo",
		LastName:  "Customer",
		Email:     opts.CustomerEmail,
		Password:  opts.CustomerPassword,
	})
	if errorbank.Is(err, errorbank.KindConflict) {
		s.logger.Info("customer already seeded", zap.String("email", opts.CustomerEmail))
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("seeded customer", zap.String("email", opts.CustomerEmail))
	return nil
}
