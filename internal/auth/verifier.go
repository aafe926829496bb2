package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/Additional-Code/loft/internal/config"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWrongDomain  = errors.New("token issued for another principal kind")
)

// Domain is an independent verification domain: its own secret and audience.
type Domain struct {
	Secret   []byte
	Audience string
}

// Claims is the JWT payload issued for a principal.
type Claims struct {
	Kind Kind `json:"kind"`
	jwt.RegisteredClaims
}

// Token is a signed credential handed back to clients.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	ID        string    `json:"-"`
}

// Verifier issues and validates HS256 credentials for every principal kind.
type Verifier struct {
	issuer  string
	ttl     time.Duration
	domains map[Kind]Domain
	now     func() time.Time
}

// NewVerifier builds a Verifier from the auth configuration.
func NewVerifier(cfg config.Config) *Verifier {
	return NewVerifierWith(cfg.Auth.Issuer, cfg.Auth.TokenTTL, map[Kind]Domain{
		KindCustomer:      {Secret: []byte(cfg.Auth.CustomerSecret), Audience: "loft:" + string(KindCustomer)},
		KindAdministrator: {Secret: []byte(cfg.Auth.AdminSecret), Audience: "loft:" + string(KindAdministrator)},
	})
}

// NewVerifierWith builds a Verifier with explicit domains.
func NewVerifierWith(issuer string, ttl time.Duration, domains map[Kind]Domain) *Verifier {
	return &Verifier{
		issuer:  issuer,
		ttl:     ttl,
		domains: domains,
		now:     time.Now,
	}
}

// Issue signs a credential for p within p.Kind's domain.
func (v *Verifier) Issue(p Principal) (Token, error) {
	domain, ok := v.domains[p.Kind]
	if !ok {
		return Token{}, fmt.Errorf("no verification domain for kind %q", p.Kind)
	}
	if p.ID == "" {
		return Token{}, errors.New("principal id is required")
	}

	now := v.now().UTC()
	expires := now.Add(v.ttl)
	jti := ulid.Make().String()

	claims := Claims{
		Kind: p.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   p.ID,
			Audience:  jwt.ClaimStrings{domain.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(domain.Secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: expires, ID: jti}, nil
}

// Verify validates raw against the domain of the expected kind.
func (v *Verifier) Verify(kind Kind, raw string) (Principal, error) {
	if strings.TrimSpace(raw) == "" {
		return Principal{}, ErrMissingToken
	}
	domain, ok := v.domains[kind]
	if !ok {
		return Principal{}, ErrWrongDomain
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(domain.Audience),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return domain.Secret, nil
	})
	if err != nil {
		return Principal{}, v.classify(kind, raw, err)
	}

	if claims.Kind != kind {
		return Principal{}, ErrWrongDomain
	}
	if claims.Subject == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{Kind: kind, ID: claims.Subject}, nil
}

func (v *Verifier) classify(kind Kind, raw string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrWrongDomain
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		// A well-formed credential from the other domain fails the signature check.
		unverified := &Claims{}
		if _, _, perr := jwt.NewParser().ParseUnverified(raw, unverified); perr == nil && unverified.Kind.Valid() && unverified.Kind != kind {
			return ErrWrongDomain
		}
		return ErrInvalidToken
	default:
		return ErrInvalidToken
	}
}

// ExtractBearer pulls the token out of an Authorization header value.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
