package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var errInvalidToken = errors.New("invalid token")

// Validator checks bearer tokens and yields the user id they carry.
type Validator struct {
	method string
	key    any
}

func NewHMACValidator(secret string) (*Validator, error) {
	if secret == "" {
		return nil, errors.New("jwt: empty hs secret")
	}
	return &Validator{method: "HS256", key: []byte(secret)}, nil
}

func NewRSAValidator(path string) (*Validator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("jwt: parse public key: %w", err)
	}
	return &Validator{method: "RS256", key: pub}, nil
}

// NewValidator picks the validator for alg ("HS256" or "RS256").
func NewValidator(alg, secret, publicKeyPath string) (*Validator, error) {
	switch strings.ToUpper(alg) {
	case "", "HS256":
		return NewHMACValidator(secret)
	case "RS256":
		return NewRSAValidator(publicKeyPath)
	}
	return nil, fmt.Errorf("jwt: unsupported alg %q", alg)
}

func (v *Validator) Validate(tokenStr string) (string, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{v.method}))
	if err != nil {
		return "", err
	}
	if claims, ok := tok.Claims.(jwt.MapClaims); ok && tok.Valid {
		if sub, ok := claims["sub"].(string); ok && sub != "" {
			return sub, nil
		}
		if userID, ok := claims["user_id"].(string); ok && userID != "" {
			return userID, nil
		}
	}
	return "", errInvalidToken
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(hdr string) (string, bool) {
	const pref = "Bearer "
	if len(hdr) <= len(pref) || !strings.EqualFold(hdr[:len(pref)], pref) {
		return "", false
	}
	return strings.TrimSpace(hdr[len(pref):]), true
}
