package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestHMACValidator(t *testing.T) {
	v, err := NewValidator("HS256", "s3cret", "")
	require.NoError(t, err)

	tok := sign(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()})
	uid, err := v.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	legacy := sign(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.MapClaims{"user_id": "u2"})
	uid, err = v.Validate(legacy)
	require.NoError(t, err)
	assert.Equal(t, "u2", uid)

	_, err = v.Validate(sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "u1"}))
	assert.Error(t, err)

	_, err = v.Validate(sign(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()}))
	assert.Error(t, err)

	_, err = v.Validate(sign(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.MapClaims{"role": "x"}))
	assert.Error(t, err)
}

func TestRSAValidator(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := NewValidator("RS256", "", path)
	require.NoError(t, err)

	uid, err := v.Validate(sign(t, jwt.SigningMethodRS256, key, jwt.MapClaims{"sub": "u9"}))
	require.NoError(t, err)
	assert.Equal(t, "u9", uid)

	// an HMAC token must not pass an RSA validator
	_, err = v.Validate(sign(t, jwt.SigningMethodHS256, []byte("x"), jwt.MapClaims{"sub": "u9"}))
	assert.Error(t, err)
}

func TestNewValidator_Errors(t *testing.T) {
	_, err := NewValidator("HS256", "", "")
	assert.Error(t, err)
	_, err = NewValidator("ES256", "x", "")
	assert.Error(t, err)
	_, err = NewValidator("RS256", "", filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}

func TestParseBearer(t *testing.T) {
	tok, ok := ParseBearer("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	_, ok = ParseBearer("Basic xyz")
	assert.False(t, ok)
	_, ok = ParseBearer("Bearer ")
	assert.False(t, ok)
	_, ok = ParseBearer("")
	assert.False(t, ok)
}
