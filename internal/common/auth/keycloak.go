package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"business-directory/internal/common/errors"
	httpclient "business-directory/internal/common/http"
	"business-directory/internal/models"
)

// KeycloakAuthenticator validates bearer tokens through the realm's token
// introspection endpoint.
type KeycloakAuthenticator struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *httpclient.Client
}

type TokenInfo struct {
	Active      bool   `json:"active"`
	Sub         string `json:"sub,omitempty"`
	Username    string `json:"username,omitempty"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Exp         int64  `json:"exp,omitempty"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

func NewKeycloakAuthenticator(baseURL, realm, clientID, clientSecret string) *KeycloakAuthenticator {
	return &KeycloakAuthenticator{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpclient.NewClient(10 * time.Second),
	}
}

func (k *KeycloakAuthenticator) Authenticate(ctx context.Context, bearer string) (*models.Principal, error) {
	info, err := k.introspect(ctx, bearer)
	if err != nil {
		return nil, err
	}
	if !info.Active || info.Sub == "" {
		return nil, errors.NewUnauthenticatedError("token is not active")
	}

	name := info.Name
	if name == "" {
		name = info.Username
	}
	return &models.Principal{
		UserID: info.Sub,
		Name:   name,
		Email:  info.Email,
		Role:   roleFrom(info.RealmAccess.Roles...),
	}, nil
}

func (k *KeycloakAuthenticator) introspect(ctx context.Context, token string) (*TokenInfo, error) {
	introspectURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequest(http.MethodPost, introspectURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return nil, errors.NewUnavailableError("keycloak", err)
	}
	defer resp.Body.Close()

	if httpclient.IsTransientStatus(resp.StatusCode) {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.NewUnavailableError("keycloak", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewUnauthenticatedError(fmt.Sprintf("introspection rejected with status %d", resp.StatusCode))
	}

	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.NewUnauthenticatedError("malformed introspection response")
	}
	return &info, nil
}
