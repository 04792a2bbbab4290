package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/storage"
)

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	user := env.register(t, "alice", "secret123")
	assert.NotEmpty(t, user.ID)
	assert.True(t, user.IsActive)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$argon2id$"))

	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr error
	}{
		{name: "duplicate login", req: RegisterRequest{Login: "alice", Password: "secret123"}, wantErr: ErrUserExists},
		{name: "duplicate email", req: RegisterRequest{Login: "alice2", Email: "alice@example.com", Password: "secret123"}, wantErr: ErrUserExists},
		{name: "reserved login", req: RegisterRequest{Login: models.SuperuserLogin, Password: "secret123"}, wantErr: ErrReservedLogin},
		{name: "without email", req: RegisterRequest{Login: "bobby", Password: "secret123"}},
		{name: "second user without email", req: RegisterRequest{Login: "carol", Password: "secret123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Register(ctx, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestService_Profile(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)
	user := env.register(t, "alice", "secret123")
	require.NoError(t, env.store.CreateRole(ctx, &models.Role{Title: "admin"}))
	require.NoError(t, env.store.AssignRole(ctx, user.ID, "admin"))

	profile, err := env.svc.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, profile.User.ID)
	assert.Equal(t, []string{"admin"}, profile.Roles)
	assert.Empty(t, profile.Links)
	assert.Empty(t, profile.Devices)

	env.login(t, "alice", "secret123", "UA1")
	env.login(t, "alice", "secret123", "UA2")
	env.login(t, "alice", "secret123", "UA1")

	profile, err = env.svc.Profile(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, profile.Devices, 2)
	assert.ElementsMatch(t, []string{"UA1", "UA2"}, []string{profile.Devices[0].UserAgent, profile.Devices[1].UserAgent})

	_, err = env.svc.Profile(ctx, "nobody")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func ptr(s string) *string { return &s }

func TestService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)
	env.register(t, "alice", "secret123")
	env.register(t, "bobby", "secret123")

	tests := []struct {
		wantErr error
		req     UpdateProfileRequest
		name    string
		login   string
	}{
		{name: "names", login: "alice", req: UpdateProfileRequest{FirstName: ptr("Alice"), LastName: ptr("Smith")}},
		{name: "clear email", login: "alice", req: UpdateProfileRequest{Email: ptr("")}},
		{name: "login taken", login: "alice", req: UpdateProfileRequest{Login: ptr("bobby")}, wantErr: ErrUserExists},
		{name: "email taken", login: "alice", req: UpdateProfileRequest{Email: ptr("bobby@example.com")}, wantErr: ErrUserExists},
		{name: "rename to superuser", login: "alice", req: UpdateProfileRequest{Login: ptr(models.SuperuserLogin)}, wantErr: ErrReservedLogin},
		{name: "superuser itself", login: models.SuperuserLogin, req: UpdateProfileRequest{FirstName: ptr("Root")}, wantErr: ErrReservedLogin},
		{name: "unknown user", login: "nobody", req: UpdateProfileRequest{FirstName: ptr("X")}, wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := env.svc.UpdateProfile(ctx, tt.login, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.login, profile.User.Login)
		})
	}

	stored, err := env.store.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", stored.FirstName)
	assert.Equal(t, "Smith", stored.LastName)
	assert.Empty(t, stored.Email)
}

func TestService_UpdateProfilePasswordRevokesSessions(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)
	env.register(t, "alice", "secret123")

	first := env.login(t, "alice", "secret123", "UA1")
	second := env.login(t, "alice", "secret123", "UA2")

	_, err := env.svc.UpdateProfile(ctx, "alice", UpdateProfileRequest{Password: ptr("n3wsecret")})
	require.NoError(t, err)

	stored, err := env.store.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))

	for _, p := range []string{first.RefreshToken, second.RefreshToken} {
		_, err = env.svc.Refresh(ctx, p)
		assert.ErrorIs(t, err, ErrTokenNotFound)
	}

	_, err = env.svc.Login(ctx, LoginRequest{Login: "alice", Password: "secret123", UserAgent: "UA1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	env.login(t, "alice", "n3wsecret", "UA1")
}

func TestService_UpdateProfileLoginChange(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)
	env.register(t, "alice", "secret123")
	pair := env.login(t, "alice", "secret123", "UA1")

	profile, err := env.svc.UpdateProfile(ctx, "alice", UpdateProfileRequest{Login: ptr("alicia")})
	require.NoError(t, err)
	assert.Equal(t, "alicia", profile.User.Login)

	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// Токен выписан на старый логин
	_, err = env.svc.Profile(ctx, "alice")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	env.login(t, "alicia", "secret123", "UA1")
}

func TestService_UpdateProfileKeepsSessionsForNames(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)
	env.register(t, "alice", "secret123")
	pair := env.login(t, "alice", "secret123", "UA1")

	_, err := env.svc.UpdateProfile(ctx, "alice", UpdateProfileRequest{FirstName: ptr("Alice"), Login: ptr("alice")})
	require.NoError(t, err)

	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestService_HistoryPagination(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)
	env.register(t, "alice", "secret123")

	for _, ua := range []string{"UA1", "UA2", "UA3"} {
		env.login(t, "alice", "secret123", ua)
	}

	all, err := env.svc.History(ctx, "alice", 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)

	page, err := env.svc.History(ctx, "alice", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)

	empty, err := env.svc.History(ctx, "alice", 10, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestService_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)
	user := env.register(t, "alice", "secret123")

	pair := env.login(t, "alice", "secret123", "UA1")
	other := env.login(t, "alice", "secret123", "UA2")

	require.NoError(t, env.svc.DeleteAccount(ctx, pair.AccessToken))

	stored, err := env.store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.True(t, strings.HasPrefix(stored.Login, "deleted-"))
	assert.True(t, strings.HasSuffix(stored.Email, "@user.deleted"))

	_, err = env.store.GetUserByLogin(ctx, "alice")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	_, err = env.svc.Login(ctx, LoginRequest{Login: "alice", Password: "secret123", UserAgent: "UA1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	for _, p := range []string{pair.RefreshToken, other.RefreshToken} {
		_, err = env.svc.Refresh(ctx, p)
		assert.ErrorIs(t, err, ErrTokenNotFound)
	}

	_, err = env.svc.VerifyAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Освободившиеся login и email можно занять заново
	_, err = env.svc.Register(ctx, RegisterRequest{Login: "alice", Email: "alice@example.com", Password: "secret456"})
	assert.NoError(t, err)
}

func TestService_DeleteAccountRejectsSuperuser(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	_, err := env.svc.EnsureSuperuser(ctx, "rootpass")
	require.NoError(t, err)
	pair := env.login(t, models.SuperuserLogin, "rootpass", "console")

	assert.ErrorIs(t, env.svc.DeleteAccount(ctx, pair.AccessToken), ErrReservedLogin)
}

func TestService_EnsureSuperuser(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	created, err := env.svc.EnsureSuperuser(ctx, "first-pass")
	require.NoError(t, err)
	assert.True(t, created)

	pair := env.login(t, models.SuperuserLogin, "first-pass", "console")
	payload, err := env.svc.VerifyAccessToken(ctx, pair.AccessToken, "admin", "anything")
	require.NoError(t, err)
	assert.Equal(t, models.SuperuserLogin, payload.Sub)

	created, err = env.svc.EnsureSuperuser(ctx, "second-pass")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = env.svc.Login(ctx, LoginRequest{Login: models.SuperuserLogin, Password: "first-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Смена пароля закрывает старые сессии
	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	env.login(t, models.SuperuserLogin, "second-pass", "console")
}
