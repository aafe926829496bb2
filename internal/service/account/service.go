package account

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Additional-Code/loft/internal/auth"
	"github.com/Additional-Code/loft/internal/config"
	"github.com/Additional-Code/loft/internal/entity"
	adminrepo "github.com/Additional-Code/loft/internal/repository/admin"
	customerrepo "github.com/Additional-Code/loft/internal/repository/customer"
	"github.com/Additional-Code/loft/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/loft/service/account")

const minPasswordLength = 8

// Customers is the customer persistence contract.
type Customers interface {
	Create(ctx context.Context, c *entity.Customer) error
	GetByID(ctx context.Context, id string) (*entity.Customer, error)
	GetByEmail(ctx context.Context, email string) (*entity.Customer, error)
	Update(ctx context.Context, c *entity.Customer) error
}

// Administrators is the administrator persistence contract.
type Administrators interface {
	Create(ctx context.Context, a *entity.Administrator) error
	GetByID(ctx context.Context, id string) (*entity.Administrator, error)
	GetByEmail(ctx context.Context, email string) (*entity.Administrator, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// Service handles registration, login and profile management for both principal kinds.
type Service struct {
	customers  Customers
	admins     Administrators
	verifier   *auth.Verifier
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Customers      Customers
	Administrators Administrators
	Verifier       *auth.Verifier
	Config         config.Config
	Logger         *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cost := p.Config.Auth.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		customers:  p.Customers,
		admins:     p.Administrators,
		verifier:   p.Verifier,
		bcryptCost: cost,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput carries a storefront sign-up.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
}

// RegisterCustomer creates a customer and issues a customer credential.
func (s *Service) RegisterCustomer(ctx context.Context, in RegisterInput) (*entity.Customer, auth.Token, error) {
	ctx, span := serviceTracer.Start(ctx, "AccountService.RegisterCustomer")
	defer span.End()

	email := normaliseEmail(in.Email)
	var fields []errorbank.FieldError
	if strings.TrimSpace(in.FirstName) == "" {
		fields = append(fields, errorbank.FieldError{Field: "firstName", Message: "is required"})
	}
	if strings.TrimSpace(in.LastName) == "" {
		fields = append(fields, errorbank.FieldError{Field: "lastName", Message: "is required"})
	}
	fields = append(fields, checkEmail(email)...)
	fields = append(fields, checkPassword(in.Password)...)
	if len(fields) > 0 {
		return nil, auth.Token{}, errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(fields...))
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, auth.Token{}, err
	}

	now := s.now()
	customer := &entity.Customer{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		if errors.Is(err, customerrepo.ErrDuplicateEmail) {
			return nil, auth.Token{}, errorbank.Conflict("email already registered",
				errorbank.WithFieldErrors(errorbank.FieldError{Field: "email", Message: "already registered"}))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, auth.Token{}, errorbank.Internal("failed to register customer", errorbank.WithCause(err))
	}

	token, err := s.issue(auth.KindCustomer, customer.ID)
	if err != nil {
		return nil, auth.Token{}, err
	}
	s.logger.Info("customer registered", zap.String("customer_id", customer.ID))
	return customer, token, nil
}

// LoginCustomer checks customer credentials and issues a customer credential.
func (s *Service) LoginCustomer(ctx context.Context, email, password string) (*entity.Customer, auth.Token, error) {
	ctx, span := serviceTracer.Start(ctx, "AccountService.LoginCustomer")
	defer span.End()

	customer, err := s.customers.GetByEmail(ctx, normaliseEmail(email))
	if err != nil {
		if errors.Is(err, customerrepo.ErrNotFound) {
			return nil, auth.Token{}, invalidCredentials()
		}
		span.RecordError(err)
		return nil, auth.Token{}, errorbank.Internal("failed to load customer", errorbank.WithCause(err))
	}
	if !matches(customer.PasswordHash, password) {
		return nil, auth.Token{}, invalidCredentials()
	}

	token, err := s.issue(auth.KindCustomer, customer.ID)
	if err != nil {
		return nil, auth.Token{}, err
	}
	return customer, token, nil
}

// LoginAdministrator checks administrator credentials, rejects inactive accounts and
// records the login time.
func (s *Service) LoginAdministrator(ctx context.Context, email, password string) (*entity.Administrator, auth.Token, error) {
	ctx, span := serviceTracer.Start(ctx, "AccountService.LoginAdministrator")
	defer span.End()

	admin, err := s.admins.GetByEmail(ctx, normaliseEmail(email))
	if err != nil {
		if errors.Is(err, adminrepo.ErrNotFound) {
			return nil, auth.Token{}, invalidCredentials()
		}
		span.RecordError(err)
		return nil, auth.Token{}, errorbank.Internal("failed to load administrator", errorbank.WithCause(err))
	}
	if !matches(admin.PasswordHash, password) {
		return nil, auth.Token{}, invalidCredentials()
	}
	if !admin.Active {
		return nil, auth.Token{}, errorbank.Unauthenticated("account not found or inactive")
	}

	now := s.now()
	if err := s.admins.TouchLastLogin(ctx, admin.ID, now); err != nil {
		s.logger.Warn("record admin login failed", zap.String("admin_id", admin.ID), zap.Error(err))
	} else {
		admin.LastLoginAt = &now
	}

	token, err := s.issue(auth.KindAdministrator, admin.ID)
	if err != nil {
		return nil, auth.Token{}, err
	}
	s.logger.Info("administrator logged in", zap.String("admin_id", admin.ID))
	return admin, token, nil
}

// Customer loads a customer profile.
func (s *Service) Customer(ctx context.Context, id string) (*entity.Customer, error) {
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, customerrepo.ErrNotFound) {
			return nil, errorbank.NotFound("customer not found")
		}
		return nil, errorbank.Internal("failed to load customer", errorbank.WithCause(err))
	}
	return customer, nil
}

// Administrator loads an administrator record.
func (s *Service) Administrator(ctx context.Context, id string) (*entity.Administrator, error) {
	admin, err := s.admins.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, adminrepo.ErrNotFound) {
			return nil, errorbank.NotFound("administrator not found")
		}
		return nil, errorbank.Internal("failed to load administrator", errorbank.WithCause(err))
	}
	return admin, nil
}

// ProfilePatch is a merge-patch: nil fields are left untouched.
type ProfilePatch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Password  *string
}

// UpdateProfile applies patch to the customer's profile. A supplied password is re-hashed.
func (s *Service) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*entity.Customer, error) {
	ctx, span := serviceTracer.Start(ctx, "AccountService.UpdateProfile", trace.WithAttributes(attribute.String("customer.id", id)))
	defer span.End()

	customer, err := s.Customer(ctx, id)
	if err != nil {
		return nil, err
	}

	var fields []errorbank.FieldError
	if patch.FirstName != nil {
		if v := strings.TrimSpace(*patch.FirstName); v == "" {
			fields = append(fields, errorbank.FieldError{Field: "firstName", Message: "must not be empty"})
		} else {
			customer.FirstName = v
		}
	}
	if patch.LastName != nil {
		if v := strings.TrimSpace(*patch.LastName); v == "" {
			fields = append(fields, errorbank.FieldError{Field: "lastName", Message: "must not be empty"})
		} else {
			customer.LastName = v
		}
	}
	if patch.Email != nil {
		email := normaliseEmail(*patch.Email)
		if errs := checkEmail(email); len(errs) > 0 {
			fields = append(fields, errs...)
		} else {
			customer.Email = email
		}
	}
	if patch.Phone != nil {
		customer.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Password != nil {
		if errs := checkPassword(*patch.Password); len(errs) > 0 {
			fields = append(fields, errs...)
		} else {
			hash, err := s.hash(*patch.Password)
			if err != nil {
				return nil, err
			}
			customer.PasswordHash = hash
		}
	}
	if len(fields) > 0 {
		return nil, errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(fields...))
	}

	customer.UpdatedAt = s.now()
	if err := s.customers.Update(ctx, customer); err != nil {
		switch {
		case errors.Is(err, customerrepo.ErrDuplicateEmail):
			return nil, errorbank.Conflict("email already registered",
				errorbank.WithFieldErrors(errorbank.FieldError{Field: "email", Message: "already registered"}))
		case errors.Is(err, customerrepo.ErrNotFound):
			return nil, errorbank.NotFound("customer not found")
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "update failed")
			return nil, errorbank.Internal("failed to update profile", errorbank.WithCause(err))
		}
	}
	return customer, nil
}

// AdminInput carries a new administrator account.
type AdminInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// CreateAdministrator provisions an active administrator.
func (s *Service) CreateAdministrator(ctx context.Context, in AdminInput) (*entity.Administrator, error) {
	email := normaliseEmail(in.Email)
	var fields []errorbank.FieldError
	if strings.TrimSpace(in.Name) == "" {
		fields = append(fields, errorbank.FieldError{Field: "name", Message: "is required"})
	}
	fields = append(fields, checkEmail(email)...)
	fields = append(fields, checkPassword(in.Password)...)
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = "admin"
	}
	if role != "admin" && role != "super_admin" {
		fields = append(fields, errorbank.FieldError{Field: "role", Message: "must be admin or super_admin"})
	}
	if len(fields) > 0 {
		return nil, errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(fields...))
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	admin := &entity.Administrator{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, adminrepo.ErrDuplicateEmail) {
			return nil, errorbank.Conflict("administrator email already exists")
		}
		return nil, errorbank.Internal("failed to create administrator", errorbank.WithCause(err))
	}
	s.logger.Info("administrator created", zap.String("admin_id", admin.ID), zap.String("role", role))
	return admin, nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", errorbank.Internal("failed to hash password", errorbank.WithCause(err))
	}
	return string(hash), nil
}

func (s *Service) issue(kind auth.Kind, id string) (auth.Token, error) {
	token, err := s.verifier.Issue(auth.Principal{Kind: kind, ID: id})
	if err != nil {
		return auth.Token{}, errorbank.Internal("failed to issue token", errorbank.WithCause(err))
	}
	return token, nil
}

func matches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func invalidCredentials() error {
	return errorbank.Unauthenticated("invalid email or password")
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkEmail(email string) []errorbank.FieldError {
	if email == "" {
		return []errorbank.FieldError{{Field: "email", Message: "is required"}}
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return []errorbank.FieldError{{Field: "email", Message: "must be a valid email address"}}
	}
	return nil
}

func checkPassword(password string) []errorbank.FieldError {
	if len(password) < minPasswordLength {
		return []errorbank.FieldError{{Field: "password", Message: "must be at least 8 characters"}}
	}
	return nil
}
