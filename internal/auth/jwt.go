package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fretquiz/internal/types"
)

// UserCookie carries the identity token in browsers.
const UserCookie = "_fq_user"

// Tokens are long lived; this matches the fixed expiry older clients hold.
var tokenExpiry = time.Unix(2_000_000_000, 0)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing token")
)

type Claims struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// User returns the identity the claims describe.
func (c *Claims) User() types.User {
	return types.User{ID: c.ID, Name: c.Name}
}

// Ledger keeps a record of issued tokens. Tokens it does not know are
// rejected even when their signature checks out.
type Ledger interface {
	Record(ctx context.Context, userID int64, name, token string) error
	Verify(ctx context.Context, userID int64, token string) error
}

// Provider issues and validates identity tokens.
type Provider struct {
	key    []byte
	ledger Ledger
}

// NewProvider signs with secret. ledger may be nil.
func NewProvider(secret string, ledger Ledger) *Provider {
	return &Provider{key: []byte(secret), ledger: ledger}
}

// Issue signs a token for user and records it in the ledger.
func (p *Provider) Issue(ctx context.Context, user types.User) (string, error) {
	claims := &Claims{
		ID:   user.ID,
		Name: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(tokenExpiry),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", err
	}

	if p.ledger != nil {
		if err := p.ledger.Record(ctx, user.ID, user.Name, token); err != nil {
			return "", fmt.Errorf("record token: %w", err)
		}
	}
	return token, nil
}

// Decode validates tokenStr and returns its claims. Every failure wraps
// ErrInvalidToken.
func (p *Provider) Decode(ctx context.Context, tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return p.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if p.ledger != nil {
		if err := p.ledger.Verify(ctx, claims.ID, tokenStr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}
	return claims, nil
}

// TokenFromRequest looks for a credential in the cookie, then a bearer
// header, then the token query parameter.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(UserCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// Cookie builds the identity cookie for token.
func Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     UserCookie,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Expires:  tokenExpiry,
	}
}
