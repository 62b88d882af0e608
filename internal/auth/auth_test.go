package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m, err := NewJWTManager("secret")
	require.NoError(t, err)

	token, err := m.CreateToken("u1", "alice", time.Hour)
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)
	require.Equal(t, "alice", claims.UserName)
}

func TestJWTManager_RejectsForeignAndExpired(t *testing.T) {
	m, err := NewJWTManager("secret")
	require.NoError(t, err)
	other, err := NewJWTManager("other")
	require.NoError(t, err)

	token, err := other.CreateToken("u1", "", 0)
	require.NoError(t, err)
	_, err = m.VerifyToken(token)
	require.ErrorIs(t, err, ErrUnauthorized)

	now := time.Now()
	m.now = func() time.Time { return now }
	token, err = m.CreateToken("u1", "", time.Minute)
	require.NoError(t, err)
	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = m.VerifyToken(token)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = m.VerifyToken("garbage")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestNewJWTManager_RequiresSecret(t *testing.T) {
	_, err := NewJWTManager("")
	require.Error(t, err)
}

func hashKey(t *testing.T, key string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAPIKeyProvider(t *testing.T) {
	p, err := NewAPIKeyProvider([]string{
		"u1:alice:" + hashKey(t, "key-one"),
		"",
		"u2:bob:" + hashKey(t, "key-two"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, p.Len())

	got, err := p.Verify("key-two")
	require.NoError(t, err)
	require.Equal(t, Principal{UserID: "u2", UserName: "bob"}, got)

	// Cached path.
	got, err = p.Verify("key-two")
	require.NoError(t, err)
	require.Equal(t, "u2", got.UserID)

	_, err = p.Verify("nope")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = p.Verify("")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAPIKeyProvider_RejectsMalformed(t *testing.T) {
	_, err := NewAPIKeyProvider([]string{"u1:alice"})
	require.Error(t, err)
	_, err = NewAPIKeyProvider([]string{"u1:alice:not-a-hash"})
	require.Error(t, err)
}

func TestAuthenticator(t *testing.T) {
	m, err := NewJWTManager("secret")
	require.NoError(t, err)
	keys, err := NewAPIKeyProvider([]string{"u9:carol:" + hashKey(t, "k")})
	require.NoError(t, err)
	a := NewAuthenticator(m, keys)

	token, err := m.CreateToken("u1", "alice", 0)
	require.NoError(t, err)

	p, err := a.Authenticate(token, "")
	require.NoError(t, err)
	require.Equal(t, "u1", p.UserID)

	p, err = a.Authenticate("", "k")
	require.NoError(t, err)
	require.Equal(t, "u9", p.UserID)

	_, err = a.Authenticate("", "")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = a.Authenticate("bad", "k")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestCheckSessionToken(t *testing.T) {
	require.NoError(t, CheckSessionToken("abc", "abc"))
	require.ErrorIs(t, CheckSessionToken("abc", "abd"), ErrTokenMismatch)
	require.ErrorIs(t, CheckSessionToken("abc", ""), ErrTokenMismatch)
	require.ErrorIs(t, CheckSessionToken("", ""), ErrTokenMismatch)
}

func TestOriginPolicy(t *testing.T) {
	p := NewOriginPolicy([]string{"https://app.example.com/", " http://localhost:5173 "})
	require.NoError(t, p.Check(""))
	require.NoError(t, p.Check("https://app.example.com"))
	require.NoError(t, p.Check("HTTPS://App.Example.com"))
	require.NoError(t, p.Check("http://localhost:5173"))
	require.ErrorIs(t, p.Check("https://evil.example.com"), ErrOriginRejected)
	require.ErrorIs(t, p.Check("null"), ErrOriginRejected)
	require.False(t, p.AllowAll())

	require.NoError(t, NewOriginPolicy([]string{"*"}).Check("https://anything.test"))
}
