package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophauth/internal/server/auth"
	rediscache "github.com/iudanet/gophauth/internal/server/cache/redis"
	"github.com/iudanet/gophauth/internal/server/handlers"
	"github.com/iudanet/gophauth/internal/server/jwt"
	"github.com/iudanet/gophauth/internal/server/oauth"
	"github.com/iudanet/gophauth/internal/server/storage/sqlite"
	"github.com/iudanet/gophauth/pkg/api"
)

// stubProvider отдает один и тот же профиль на любой code
type stubProvider struct{}

func (stubProvider) Name() string   { return "yandex" }
func (stubProvider) UsesPKCE() bool { return true }

func (stubProvider) AuthorizationURL(redirectURI, state, challenge string) string {
	q := url.Values{"redirect_uri": {redirectURI}, "state": {state}, "code_challenge": {challenge}}
	return "https://oauth.yandex.test/authorize?" + q.Encode()
}

func (stubProvider) ExchangeCodeForProfile(context.Context, string, string) (*oauth.Profile, error) {
	return &oauth.Profile{Provider: "yandex", ProviderUserID: "ya-77", Email: "alice@example.com"}, nil
}

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mr := miniredis.RunT(t)
	c := rediscache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })

	codec := jwt.NewCodec("test-secret-key-at-least-32-chars-long", 2*time.Hour, 14*24*time.Hour)
	authService := auth.NewService(logger, store, codec, auth.NewRevocationCache(c))
	oauthService := auth.NewOAuthService(logger, authService, oauth.NewRegistry(stubProvider{}), c, "https://auth.example.com")

	srv := httptest.NewServer(NewRouter(Deps{
		Logger:  logger,
		Auth:    authService,
		OAuth:   oauthService,
		Health:  map[string]handlers.Pinger{"database": store, "cache": c},
		Version: "test",
	}))
	t.Cleanup(srv.Close)

	return srv
}

func doJSON(t *testing.T, method, target, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "router-test")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRouter_PasswordSessionLifecycle(t *testing.T) {
	srv := setupTestServer(t)
	base := srv.URL + "/api/v1"

	resp := doJSON(t, http.MethodPost, base+"/auth/register", "", api.RegisterRequest{
		Login:    "alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/auth/login", "", api.LoginRequest{Login: "alice", Password: "secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tokens := decode[api.TokenResponse](t, resp)

	resp = doJSON(t, http.MethodGet, base+"/profile", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[api.ProfileResponse](t, resp)
	assert.Equal(t, "alice", profile.Login)

	resp = doJSON(t, http.MethodPost, base+"/auth/refresh", "", api.RefreshRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rotated := decode[api.TokenResponse](t, resp)

	// Старый refresh токен больше не принимается
	resp = doJSON(t, http.MethodPost, base+"/auth/refresh", "", api.RefreshRequest{RefreshToken: tokens.RefreshToken})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"/profile/history", rotated.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[api.HistoryResponse](t, resp)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, "login", history.Entries[0].Action)

	resp = doJSON(t, http.MethodPost, base+"/auth/logout", rotated.AccessToken, api.LogoutRequest{})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"/profile", rotated.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/auth/refresh", "", api.RefreshRequest{RefreshToken: rotated.RefreshToken})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_OAuthFlow(t *testing.T) {
	srv := setupTestServer(t)
	base := srv.URL + "/api/v1"

	resp := doJSON(t, http.MethodGet, base+"/oauth/page/yandex", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "https://auth.example.com/api/v1/oauth/code/yandex", location.Query().Get("redirect_uri"))

	resp = doJSON(t, http.MethodGet, base+"/oauth/code/yandex?code=abc&state="+state, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tokens := decode[api.TokenResponse](t, resp)

	resp = doJSON(t, http.MethodGet, base+"/profile", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[api.ProfileResponse](t, resp)
	assert.Equal(t, "alice@example.com", profile.Login)
	require.Len(t, profile.Links, 1)

	// state одноразовый
	resp = doJSON(t, http.MethodGet, base+"/oauth/code/yandex?code=abc&state="+state, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/oauth/unlink/yandex", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/oauth/unlink/yandex", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"/oauth/page/github", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_DeleteProfile(t *testing.T) {
	srv := setupTestServer(t)
	base := srv.URL + "/api/v1"

	resp := doJSON(t, http.MethodPost, base+"/auth/register", "", api.RegisterRequest{Login: "bobby", Password: "secret123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/auth/login", "", api.LoginRequest{Login: "bobby", Password: "secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tokens := decode[api.TokenResponse](t, resp)

	resp = doJSON(t, http.MethodDelete, base+"/profile", tokens.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/auth/login", "", api.LoginRequest{Login: "bobby", Password: "secret123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_HealthAndAuthRequired(t *testing.T) {
	srv := setupTestServer(t)
	base := srv.URL + "/api/v1"

	resp := doJSON(t, http.MethodGet, base+"/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[api.HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)

	for _, path := range []string{"/profile", "/profile/history"} {
		resp = doJSON(t, http.MethodGet, base+path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	resp = doJSON(t, http.MethodPost, base+"/auth/logout", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_OAuthStateCannotRestoreLoggedOutToken(t *testing.T) {
	srv := setupTestServer(t)
	base := srv.URL + "/api/v1"

	resp := doJSON(t, http.MethodPost, base+"/auth/register", "", api.RegisterRequest{Login: "alice", Password: "secret123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/auth/login", "", api.LoginRequest{Login: "alice", Password: "secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tokens := decode[api.TokenResponse](t, resp)

	resp = doJSON(t, http.MethodPost, base+"/auth/logout", tokens.AccessToken, api.LogoutRequest{})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	state := url.QueryEscape(tokens.AccessToken)

	resp = doJSON(t, http.MethodGet, base+"/oauth/page/yandex?state="+state, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"/oauth/code/yandex?code=abc&state="+state, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"/profile", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_UpdateProfile(t *testing.T) {
	srv := setupTestServer(t)
	base := srv.URL + "/api/v1"

	resp := doJSON(t, http.MethodPost, base+"/auth/register", "", api.RegisterRequest{Login: "carol", Password: "secret123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, base+"/auth/register", "", api.RegisterRequest{Login: "daniel", Password: "secret123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/auth/login", "", api.LoginRequest{Login: "carol", Password: "secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tokens := decode[api.TokenResponse](t, resp)

	resp = doJSON(t, http.MethodPatch, base+"/profile", "", map[string]string{"first_name": "Carol"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, base+"/profile", tokens.AccessToken, map[string]string{"first_name": "Carol"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[api.ProfileResponse](t, resp)
	assert.Equal(t, "Carol", profile.FirstName)
	require.Len(t, profile.Devices, 1)
	assert.Equal(t, "router-test", profile.Devices[0].UserAgent)

	resp = doJSON(t, http.MethodPatch, base+"/profile", tokens.AccessToken, map[string]string{"login": "daniel"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, base+"/profile", tokens.AccessToken, map[string]string{"password": "n3wsecret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/auth/refresh", "", api.RefreshRequest{RefreshToken: tokens.RefreshToken})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/auth/login", "", api.LoginRequest{Login: "carol", Password: "secret123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, base+"/auth/login", "", api.LoginRequest{Login: "carol", Password: "n3wsecret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
