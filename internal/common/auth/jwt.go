package auth

import (
	"context"
	"fmt"
	"time"

	"business-directory/internal/common/errors"
	"business-directory/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Name  string   `json:"name,omitempty"`
	Email string   `json:"email,omitempty"`
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type JWTAuthenticator struct {
	secret []byte
	issuer string
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTAuthenticator(secret, issuer, algorithm string, ttl time.Duration) (*JWTAuthenticator, error) {
	var method *jwt.SigningMethodHMAC
	switch algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &JWTAuthenticator{
		secret: []byte(secret),
		issuer: issuer,
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, bearer string) (*models.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{a.method.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(bearer, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, errors.NewUnauthenticatedError("invalid token")
	}

	if claims.Subject == "" {
		return nil, errors.NewUnauthenticatedError("token has no subject")
	}

	return &models.Principal{
		UserID: claims.Subject,
		Name:   claims.Name,
		Email:  claims.Email,
		Role:   roleFrom(append([]string{claims.Role}, claims.Roles...)...),
	}, nil
}

// Issue signs a token for p that expires after the configured TTL.
func (a *JWTAuthenticator) Issue(p models.Principal) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)

	claims := Claims{
		Name:  p.Name,
		Email: p.Email,
		Role:  string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(a.method, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}
