package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier() *Verifier {
	return NewVerifierWith("loft-test", time.Hour, map[Kind]Domain{
		KindCustomer:      {Secret: []byte("customer-secret"), Audience: "loft:customer"},
		KindAdministrator: {Secret: []byte("admin-secret"), Audience: "loft:administrator"},
	})
}

func TestIssueAndVerify(t *testing.T) {
	v := newTestVerifier()

	token, err := v.Issue(Principal{Kind: KindCustomer, ID: "cust-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, token.Value)
	assert.NotEmpty(t, token.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)

	p, err := v.Verify(KindCustomer, token.Value)
	require.NoError(t, err)
	assert.Equal(t, Principal{Kind: KindCustomer, ID: "cust-1"}, p)
}

func TestIssueUsesUniqueTokenIDs(t *testing.T) {
	v := newTestVerifier()

	a, err := v.Issue(Principal{Kind: KindAdministrator, ID: "adm-1"})
	require.NoError(t, err)
	b, err := v.Issue(Principal{Kind: KindAdministrator, ID: "adm-1"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestVerifyRejectsOtherDomain(t *testing.T) {
	v := newTestVerifier()

	customer, err := v.Issue(Principal{Kind: KindCustomer, ID: "cust-1"})
	require.NoError(t, err)
	admin, err := v.Issue(Principal{Kind: KindAdministrator, ID: "adm-1"})
	require.NoError(t, err)

	_, err = v.Verify(KindAdministrator, customer.Value)
	assert.ErrorIs(t, err, ErrWrongDomain)

	_, err = v.Verify(KindCustomer, admin.Value)
	assert.ErrorIs(t, err, ErrWrongDomain)
}

func TestVerifyRejectsOtherDomainWithSharedSecret(t *testing.T) {
	v := NewVerifierWith("loft-test", time.Hour, map[Kind]Domain{
		KindCustomer:      {Secret: []byte("shared"), Audience: "loft:customer"},
		KindAdministrator: {Secret: []byte("shared"), Audience: "loft:administrator"},
	})

	customer, err := v.Issue(Principal{Kind: KindCustomer, ID: "cust-1"})
	require.NoError(t, err)

	_, err = v.Verify(KindAdministrator, customer.Value)
	assert.ErrorIs(t, err, ErrWrongDomain)
}

func TestVerifyExpired(t *testing.T) {
	v := newTestVerifier()
	v.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }

	token, err := v.Issue(Principal{Kind: KindCustomer, ID: "cust-1"})
	require.NoError(t, err)

	v.now = time.Now
	_, err = v.Verify(KindCustomer, token.Value)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyMalformedAndTampered(t *testing.T) {
	v := newTestVerifier()

	_, err := v.Verify(KindCustomer, "")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = v.Verify(KindCustomer, "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err := v.Issue(Principal{Kind: KindCustomer, ID: "cust-1"})
	require.NoError(t, err)
	parts := strings.Split(token.Value, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = v.Verify(KindCustomer, tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueUnknownKind(t *testing.T) {
	v := newTestVerifier()

	_, err := v.Issue(Principal{Kind: Kind("guest"), ID: "x"})
	assert.Error(t, err)
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		header string
		token  string
		err    error
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"bearer   abc", "abc", nil},
		{"", "", ErrMissingToken},
		{"Bearer ", "", ErrInvalidToken},
		{"Basic dXNlcjpwYXNz", "", ErrInvalidToken},
		{"abc.def.ghi", "", ErrInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.header, func(t *testing.T) {
			token, err := ExtractBearer(tc.header)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.token, token)
		})
	}
}
