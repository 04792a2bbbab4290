package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/internal/server/jwt"
	"github.com/iudanet/gophauth/internal/server/oauth"
	"github.com/iudanet/gophauth/pkg/api"
)

// mockOAuthService is a mock implementation of OAuthService for testing
type mockOAuthService struct {
	authURLErr  error
	verifierErr error
	loginErr    error
	linkErr     error
	unlinkErr   error
	lastState   string
	lastCode    string
	lastVerify  string
	lastUnlink  string
	loggedIn    bool
	linked      bool
}

func (m *mockOAuthService) RedirectURI(provider string) string {
	return "https://auth.example.com/api/v1/oauth/code/" + provider
}

func (m *mockOAuthService) AuthorizationURL(_ context.Context, provider, state string) (string, error) {
	m.lastState = state
	if m.authURLErr != nil {
		return "", m.authURLErr
	}
	return "https://" + provider + ".test/authorize?state=" + state, nil
}

func (m *mockOAuthService) ResolveVerifier(_ context.Context, state, callbackURL string) (string, error) {
	if m.verifierErr != nil {
		return "", m.verifierErr
	}
	if state == "" {
		return callbackURL, nil
	}
	return "verifier-for-" + state, nil
}

func (m *mockOAuthService) Login(_ context.Context, _, code, verifier, _, _ string) (jwt.Pair, error) {
	m.lastCode = code
	m.lastVerify = verifier
	if m.loginErr != nil {
		return jwt.Pair{}, m.loginErr
	}
	m.loggedIn = true
	return testPair(), nil
}

func (m *mockOAuthService) Link(_ context.Context, provider, code, verifier, _ string, payload *jwt.AccessPayload) (*oauth.Profile, error) {
	m.lastCode = code
	m.lastVerify = verifier
	if m.linkErr != nil {
		return nil, m.linkErr
	}
	m.linked = true
	return &oauth.Profile{Provider: provider, ProviderUserID: "ya-1", Email: payload.Sub + "@example.com"}, nil
}

func (m *mockOAuthService) Unlink(_ context.Context, _, login string) error {
	m.lastUnlink = login
	return m.unlinkErr
}

// mockVerifier принимает только токен "good"
type mockVerifier struct{}

func (mockVerifier) VerifyAccessToken(_ context.Context, token string, _ ...string) (*jwt.AccessPayload, error) {
	if token != "good" {
		return nil, auth.ErrInvalidToken
	}
	return &jwt.AccessPayload{Sub: "alice", DeviceID: "dev-1", Roles: []string{}}, nil
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestOAuthHandler_Page(t *testing.T) {
	svc := &mockOAuthService{}
	handler := NewOAuthHandler(setupTestLogger(), svc, mockVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/oauth/page/yandex?state=s1", nil)
	req = withURLParam(req, "provider", "yandex")
	w := httptest.NewRecorder()

	handler.Page(w, req)

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "https://yandex.test/authorize?state=s1", w.Header().Get("Location"))
	assert.Equal(t, "s1", svc.lastState)
}

func TestOAuthHandler_PageUnknownProvider(t *testing.T) {
	svc := &mockOAuthService{authURLErr: auth.ErrUnknownProvider}
	handler := NewOAuthHandler(setupTestLogger(), svc, mockVerifier{})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/oauth/page/github", nil), "provider", "github")
	w := httptest.NewRecorder()

	handler.Page(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOAuthHandler_CodeLogin(t *testing.T) {
	tests := []struct {
		name             string
		provider         string
		url              string
		expectedVerifier string
	}{
		{
			name:             "pkce provider",
			provider:         "yandex",
			url:              "/api/v1/oauth/code/yandex?code=c1&state=s1",
			expectedVerifier: "verifier-for-s1",
		},
		{
			name:             "provider without pkce",
			provider:         "vk",
			url:              "/api/v1/oauth/code/vk?code=c1",
			expectedVerifier: "https://auth.example.com/api/v1/oauth/code/vk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOAuthService{}
			handler := NewOAuthHandler(setupTestLogger(), svc, mockVerifier{})

			req := withURLParam(httptest.NewRequest(http.MethodGet, tt.url, nil), "provider", tt.provider)
			w := httptest.NewRecorder()

			handler.Code(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.True(t, svc.loggedIn)
			assert.False(t, svc.linked)
			assert.Equal(t, "c1", svc.lastCode)
			assert.Equal(t, tt.expectedVerifier, svc.lastVerify)

			var resp api.TokenResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, "access-token", resp.AccessToken)
		})
	}
}

func TestOAuthHandler_CodeLink(t *testing.T) {
	svc := &mockOAuthService{}
	handler := NewOAuthHandler(setupTestLogger(), svc, mockVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/oauth/code/yandex?code=c1&state=s1", nil)
	req.Header.Set("Authorization", "Bearer good")
	req = withURLParam(req, "provider", "yandex")
	w := httptest.NewRecorder()

	handler.Code(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.linked)
	assert.False(t, svc.loggedIn)

	var resp api.OAuthProfileResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "yandex", resp.Provider)
	assert.Equal(t, "ya-1", resp.ProviderUserID)
	assert.Equal(t, "alice@example.com", resp.Email)
}

func TestOAuthHandler_CodeErrors(t *testing.T) {
	tests := []struct {
		svc            *mockOAuthService
		name           string
		url            string
		header         string
		expectedStatus int
	}{
		{name: "missing code", svc: &mockOAuthService{}, url: "/cb?state=s1", expectedStatus: http.StatusBadRequest},
		{name: "provider denied", svc: &mockOAuthService{}, url: "/cb?error=access_denied", expectedStatus: http.StatusBadRequest},
		{name: "unknown state", svc: &mockOAuthService{verifierErr: auth.ErrInvalidState}, url: "/cb?code=c&state=x", expectedStatus: http.StatusBadRequest},
		{name: "upstream failure", svc: &mockOAuthService{loginErr: auth.ErrUpstreamProvider}, url: "/cb?code=c", expectedStatus: http.StatusBadGateway},
		{name: "invalid bearer for link", svc: &mockOAuthService{}, url: "/cb?code=c", header: "Bearer bad", expectedStatus: http.StatusUnauthorized},
		{name: "linked elsewhere", svc: &mockOAuthService{linkErr: auth.ErrAlreadyLinkedElsewhere}, url: "/cb?code=c", header: "Bearer good", expectedStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewOAuthHandler(setupTestLogger(), tt.svc, mockVerifier{})

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			req = withURLParam(req, "provider", "yandex")
			w := httptest.NewRecorder()

			handler.Code(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.False(t, tt.svc.linked)
		})
	}
}

func TestOAuthHandler_Unlink(t *testing.T) {
	payload := &jwt.AccessPayload{Sub: "alice", DeviceID: "dev-1", Roles: []string{}}

	tests := []struct {
		serviceErr     error
		name           string
		withPayload    bool
		expectedStatus int
	}{
		{name: "success", withPayload: true, expectedStatus: http.StatusNoContent},
		{name: "not linked", withPayload: true, serviceErr: auth.ErrOAuthAccountNotExists, expectedStatus: http.StatusNotFound},
		{name: "no payload in context", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOAuthService{unlinkErr: tt.serviceErr}
			handler := NewOAuthHandler(setupTestLogger(), svc, mockVerifier{})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/oauth/unlink/yandex", nil)
			req = withURLParam(req, "provider", "yandex")
			if tt.withPayload {
				req = req.WithContext(WithAccessToken(req.Context(), "good", payload))
			}
			w := httptest.NewRecorder()

			handler.Unlink(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.withPayload {
				assert.Equal(t, "alice", svc.lastUnlink)
			}
		})
	}
}
