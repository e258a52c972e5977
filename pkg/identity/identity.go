// Package identity issues and parses the HS256 tokens that carry a user's id and display name.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("token secret is not configured")
)

const AnonymousUsername = "anonymous"

type Identity struct {
	UserID   string
	Username string
}

func (i Identity) Anonymous() bool {
	return i.UserID == ""
}

func Anonymous() Identity {
	return Identity{Username: AnonymousUsername}
}

type claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret []byte
}

func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret)}
}

// Issue signs a token for id. A zero ttl issues a token without expiry.
func (t *Tokens) Issue(id Identity, ttl time.Duration) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrNoSecret
	}

	c := claims{
		Name: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.UserID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
}

// Parse verifies tokenString. With no secret configured every token is rejected, since an empty
// HMAC key would let anyone sign as any user.
func (t *Tokens) Parse(tokenString string) (Identity, error) {
	if len(t.secret) == 0 {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrNoSecret)
	}

	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	username := c.Name
	if username == "" {
		username = c.Subject
	}

	return Identity{
		UserID:   c.Subject,
		Username: username,
	}, nil
}

// FromRequest resolves the caller's identity from the "token" query parameter or a bearer
// Authorization header. No token at all yields the anonymous identity.
func (t *Tokens) FromRequest(r *http.Request) (Identity, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}

	if token == "" {
		return Anonymous(), nil
	}

	return t.Parse(token)
}
