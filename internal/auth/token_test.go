package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse_Success(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("super-secret", time.Hour)
	tok, issued, err := m.Issue("user-123", "admin")
	require.NoError(t, err)

	claims, err := m.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, issued.ID, claims.ID)
	assert.NotEmpty(t, claims.ID)
}

func TestIssue_DistinctTokenIDs(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("k", time.Hour)
	_, a, err := m.Issue("u", "admin")
	require.NoError(t, err)
	_, b, err := m.Issue("u", "admin")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestParse_Expired(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("secret", -time.Second)
	tok, _, err := m.Issue("u1", "admin")
	require.NoError(t, err)

	_, err = m.Parse(tok)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestParse_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := NewTokenManager("right-secret", time.Hour).Issue("u2", "admin")
	require.NoError(t, err)

	_, err = NewTokenManager("wrong-secret", time.Hour).Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	_, err := NewTokenManager("k", time.Hour).Parse("not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u",
		ID:        "j",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = NewTokenManager("k", time.Hour).Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_RequiresSubjectAndID(t *testing.T) {
	t.Parallel()

	claims := Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = NewTokenManager("k", time.Hour).Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}
