package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"business-directory/internal/common/auth"
	"business-directory/internal/common/config"
	"business-directory/internal/common/database"
	"business-directory/internal/common/logger"
	"business-directory/internal/directory/contactgate"
	"business-directory/internal/directory/service"
	"business-directory/internal/leads"
	"business-directory/internal/media"
	"business-directory/internal/models"
	"business-directory/internal/storage/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	handler http.Handler
	jwt     *auth.JWTAuthenticator
	media   *media.MemoryStore
}

type pinger struct {
	name string
	err  error
}

func (p pinger) Name() string { return p.name }
func (p pinger) Ping(ctx context.Context) error { return p.err }

func newHarness(t *testing.T, health ...database.Pinger) *harness {
	t.Helper()
	log := logger.NewTestLogger(t)

	jwtAuth, err := auth.NewJWTAuthenticator("test-secret", "directory", "HS256", time.Hour)
	require.NoError(t, err)

	store := media.NewMemoryStore(media.MaxImageBytes)
	gate := contactgate.New(contactgate.DefaultConfig(), contactgate.NewMemoryStore(), leads.Noop{}, log)
	svc := service.New(service.DefaultConfig(), service.Deps{
		Store:  memory.New(),
		Media:  store,
		Gate:   gate,
		Logger: log,
	})

	srv := New(Options{
		Directory:     svc,
		Authenticator: jwtAuth,
		Issuer:        jwtAuth,
		Users: []config.UserCredential{
			{ID: "admin-1", Name: "Admin", Email: "admin@example.com", Password: "pw", Role: "ADMIN"},
		},
		Media:  store,
		Health: health,
		Logger: log,
		Mode:   gin.TestMode,
	})
	return &harness{handler: srv.Handler(), jwt: jwtAuth, media: store}
}

func (h *harness) token(t *testing.T, userID string, role models.Role) string {
	t.Helper()
	tok, _, err := h.jwt.Issue(models.Principal{UserID: userID, Name: userID, Role: role})
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func listingBody(name string) map[string]string {
	return map[string]string{
		"businessName": name,
		"category":     "Restaurant",
		"description":  "Wood fired pizza",
		"email":        "joe@example.com",
		"phone":        "+1 512 555 0100",
		"address":      "1 Main St",
		"city":         "Austin",
	}
}

func TestCreateAndReadListing(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, "alice", models.RoleCustomer)

	w := h.do(t, http.MethodPost, "/api/business", alice, listingBody("Joe's Pizza"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Listing
	decode(t, w, &created)
	assert.Equal(t, "Joe's Pizza", created.Name)

	w = h.do(t, http.MethodGet, "/api/business/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var public models.Listing
	decode(t, w, &public)
	assert.Empty(t, public.Phone)

	w = h.do(t, http.MethodGet, "/api/business/my-business", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/api/business?city=AUSTIN", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Listing
	decode(t, w, &listed)
	assert.Len(t, listed, 1)

	w = h.do(t, http.MethodGet, "/api/business/facets", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cities":["Austin"]`)
}

func TestErrorEnvelope(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, "alice", models.RoleCustomer)
	bob := h.token(t, "bob", models.RoleCustomer)

	w := h.do(t, http.MethodPost, "/api/business", alice, listingBody("Joe's Pizza"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Listing
	decode(t, w, &created)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
		code   string
	}{
		{"anonymous create", http.MethodPost, "/api/business", "", listingBody("X"), http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"garbage token", http.MethodGet, "/api/business", "not-a-jwt", nil, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"second listing", http.MethodPost, "/api/business", alice, listingBody("Other"), http.StatusConflict, "CONFLICT"},
		{"non-owner update", http.MethodPut, "/api/business/" + created.ID, bob, listingBody("Hijack"), http.StatusForbidden, "FORBIDDEN"},
		{"missing listing", http.MethodGet, "/api/business/nope", "", nil, http.StatusNotFound, "NOT_FOUND"},
		{"customer on admin route", http.MethodGet, "/api/business/admin/all", bob, nil, http.StatusForbidden, "FORBIDDEN"},
		{"rating out of range", http.MethodPost, "/api/rating/" + created.ID, bob, map[string]int{"rating": 9}, http.StatusBadRequest, "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			var env errorEnvelope
			decode(t, w, &env)
			assert.EqualValues(t, tt.code, env.Error.Code)
			assert.False(t, env.Error.Retryable)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "Please log in to continue", env.Error.Message)
			}
		})
	}
}

func TestValidationFieldsAreReturned(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, "alice", models.RoleCustomer)

	body := listingBody("Joe's Pizza")
	body["email"] = "nope"
	body["category"] = "Casino"

	w := h.do(t, http.MethodPost, "/api/business", alice, body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var env errorEnvelope
	decode(t, w, &env)
	assert.Contains(t, env.Error.Fields, "email")
	assert.Contains(t, env.Error.Fields, "category")
}

func TestRatingFlow(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, "root", models.RoleAdmin)

	w := h.do(t, http.MethodPost, "/api/business/admin", admin, listingBody("Joe's Pizza"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Listing
	decode(t, w, &created)
	assert.True(t, created.IsAdminListing)

	u1 := h.token(t, "U1", models.RoleCustomer)
	u2 := h.token(t, "U2", models.RoleCustomer)

	w = h.do(t, http.MethodPost, "/api/rating/"+created.ID, u1, map[string]interface{}{"rating": 5})
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodPost, "/api/rating/"+created.ID, u2, map[string]interface{}{"rating": 1, "comment": "cold"})
	require.Equal(t, http.StatusOK, w.Code)

	var summary models.RatingSummary
	decode(t, w, &summary)
	assert.Equal(t, 3.0, summary.AverageRating)
	assert.Equal(t, 2, summary.TotalRatings)

	w = h.do(t, http.MethodDelete, "/api/rating/"+created.ID, u1, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/api/rating/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &summary)
	assert.Equal(t, 1.0, summary.AverageRating)
	assert.Equal(t, 1, summary.TotalRatings)
}

func TestAdminScopes(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, "root", models.RoleAdmin)
	alice := h.token(t, "alice", models.RoleCustomer)

	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/api/business/admin", admin, listingBody("Town Hall")).Code)
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/api/business", alice, listingBody("Alice Cafe")).Code)

	var res service.QueryResult
	w := h.do(t, http.MethodGet, "/api/business/admin/listings", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	require.Len(t, res.Listings, 1)
	assert.Equal(t, "Town Hall", res.Listings[0].Name)

	w = h.do(t, http.MethodGet, "/api/business/admin/public-listings", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	require.Len(t, res.Listings, 1)
	assert.Equal(t, "Alice Cafe", res.Listings[0].Name)

	w = h.do(t, http.MethodGet, "/api/business/admin/all", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	assert.Equal(t, 2, res.Counts.All)
	assert.NotEmpty(t, res.Listings[0].Phone)

	w = h.do(t, http.MethodGet, "/api/business/admin/all", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestContactGateOverHTTP(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, "alice", models.RoleCustomer)

	w := h.do(t, http.MethodPost, "/api/business", alice, listingBody("Joe's Pizza"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Listing
	decode(t, w, &created)

	base := "/api/business/" + created.ID + "/contact/"

	w = h.do(t, http.MethodPost, base+"reveal", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	session := w.Header().Get(SessionHeader)
	require.NotEmpty(t, session)

	var res contactgate.RevealResult
	decode(t, w, &res)
	assert.Equal(t, contactgate.FormOpen, res.State)

	w = h.do(t, http.MethodPost, base+"lead", "", map[string]string{"name": "Ann", "email": "bad", "phone": "123"}, SessionHeader, session)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, base+"lead", "", map[string]string{"name": "Ann", "email": "ann@example.com", "phone": "+1 555 0199"}, SessionHeader, session)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	assert.Equal(t, contactgate.Revealed, res.State)
	assert.Equal(t, "+1 512 555 0100", res.Phone)

	w = h.do(t, http.MethodPost, base+"reveal", "", nil, SessionHeader, session)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	assert.Equal(t, contactgate.Revealed, res.State)

	// A different session starts locked again.
	w = h.do(t, http.MethodPost, base+"reveal", "", nil, SessionHeader, "other")
	decode(t, w, &res)
	assert.Equal(t, contactgate.FormOpen, res.State)

	w = h.do(t, http.MethodPost, base+"cancel", "", nil, SessionHeader, "other")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"locked"`)
}

func TestMultipartImageUpload(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, "alice", models.RoleCustomer)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range listingBody("Joe's Pizza") {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("image", "front.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/business", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+alice)
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Listing
	decode(t, w, &created)
	require.NotEmpty(t, created.Image)

	w = h.do(t, http.MethodGet, "/api/media/"+created.Image, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = h.do(t, http.MethodGet, "/api/media/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "ADMIN@example.com", Password: "pw"})
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Token string           `json:"token"`
		User  models.Principal `json:"user"`
	}
	decode(t, w, &out)
	assert.Equal(t, models.RoleAdmin, out.User.Role)

	w = h.do(t, http.MethodGet, "/api/business/admin/all", out.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "admin@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, pinger{name: "postgres"})
	w := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	h = newHarness(t, pinger{name: "postgres"}, pinger{name: "redis", err: stderrors.New("refused")})
	w = h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"refused"`)
}
