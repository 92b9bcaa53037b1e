package auth

import (
	"context"
	"strings"

	"business-directory/internal/common/errors"
	"business-directory/internal/models"
)

// Authenticator resolves a bearer credential to a principal. Any failure is
// reported as an UNAUTHENTICATED StandardError, except transport problems
// with the identity provider, which are UNAVAILABLE.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*models.Principal, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", errors.NewUnauthenticatedError("no bearer token")
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", errors.NewUnauthenticatedError("empty bearer token")
	}
	return token, nil
}

// roleFrom maps provider role names onto the directory's two roles.
func roleFrom(values ...string) models.Role {
	for _, v := range values {
		if strings.EqualFold(v, string(models.RoleAdmin)) {
			return models.RoleAdmin
		}
	}
	return models.RoleCustomer
}
