package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tripdesk/apiserver/types"
)

const DefaultTokenTTL = time.Hour

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Claims are the JWT claims carried by an access token.
type Claims struct {
	jwt.RegisteredClaims
	IsAdmin bool `json:"is_admin"`
}

// Actor returns the identity encoded in the claims.
func (c Claims) Actor() (types.Actor, error) {
	id, err := strconv.Atoi(strings.TrimSpace(c.Subject))
	if err != nil || id < 1 {
		return types.Actor{}, ErrInvalidToken
	}
	return types.Actor{ID: id, IsAdmin: c.IsAdmin}, nil
}

// Remaining is the lifetime left on the token at now.
func (c Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(c.ExpiresAt.Sub(now), 0)
}

// Token is a signed access token.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
	TTL       time.Duration
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type IssuerOption func(*Issuer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

func NewIssuer(secret string, ttl time.Duration, opts ...IssuerOption) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	i := &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// TTL is the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for user. The admin flag is captured at issue time.
func (i *Issuer) Issue(user types.User) (Token, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		IsAdmin: user.IsAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time, TTL: i.ttl}, nil
}

// Parse verifies tokenString and returns its claims.
func (i *Issuer) Parse(tokenString string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if _, err := claims.Actor(); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
