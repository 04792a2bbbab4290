package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/iudanet/gophauth/internal/crypto"
	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/cache"
	"github.com/iudanet/gophauth/internal/server/jwt"
	"github.com/iudanet/gophauth/internal/server/oauth"
	"github.com/iudanet/gophauth/internal/server/storage"
)

// StateTTL is how long a PKCE verifier waits for the provider callback
const StateTTL = 600 * time.Second

// CallbackPath is the route prefix providers redirect back to
const CallbackPath = "/api/v1/oauth/code/"

// stateKeyPrefix отделяет PKCE verifier'ы от других записей общего кэша
const stateKeyPrefix = "oauth_state:"

// statePattern ограничивает state, пришедший от клиента: URL-safe и короткий
var statePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// generatedPasswordLen is the length of random passwords of users created from a provider profile
const generatedPasswordLen = 20

// OAuthService runs the authorization code flows on top of Service
type OAuthService struct {
	logger    *slog.Logger
	auth      *Service
	providers *oauth.Registry
	cache     cache.Cache
	baseURL   string
}

// NewOAuthService creates OAuth service
// baseURL is the public URL of this server used to build redirect URIs
func NewOAuthService(logger *slog.Logger, auth *Service, providers *oauth.Registry, c cache.Cache, baseURL string) *OAuthService {
	return &OAuthService{
		logger:    logger,
		auth:      auth,
		providers: providers,
		cache:     c,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// RedirectURI returns callback URL registered with the provider
func (o *OAuthService) RedirectURI(provider string) string {
	return o.baseURL + CallbackPath + provider
}

// AuthorizationURL builds the provider page URL.
// For PKCE providers a verifier is generated and kept in the cache under state.
func (o *OAuthService) AuthorizationURL(ctx context.Context, providerName, state string) (string, error) {
	p, err := o.providers.Get(providerName)
	if err != nil {
		return "", err
	}

	redirectURI := o.RedirectURI(p.Name())
	if !p.UsesPKCE() {
		return p.AuthorizationURL(redirectURI, "", ""), nil
	}

	if state == "" {
		state = uuid.NewString()
	}
	if !statePattern.MatchString(state) {
		return "", ErrInvalidState
	}
	verifier := oauth2.GenerateVerifier()

	if err := o.cache.Put(ctx, stateKey(state), verifier, StateTTL); err != nil {
		return "", fmt.Errorf("failed to store code verifier: %w", err)
	}

	return p.AuthorizationURL(redirectURI, state, oauth2.S256ChallengeFromVerifier(verifier)), nil
}

// ResolveVerifier returns the code verifier for a callback.
// With state it is the cached PKCE verifier, consumed on read. Without state it is the
// callback URL stripped of its query, which providers without PKCE expect back as redirect_uri.
func (o *OAuthService) ResolveVerifier(ctx context.Context, state, callbackURL string) (string, error) {
	if state == "" {
		u, err := url.Parse(callbackURL)
		if err != nil {
			return "", fmt.Errorf("invalid callback url: %w", err)
		}
		u.RawQuery = ""
		u.Fragment = ""
		return u.String(), nil
	}

	if !statePattern.MatchString(state) {
		return "", ErrInvalidState
	}

	verifier, found, err := o.cache.Get(ctx, stateKey(state))
	if err != nil {
		return "", fmt.Errorf("failed to read code verifier: %w", err)
	}
	if !found {
		return "", ErrInvalidState
	}

	if err := o.cache.Delete(ctx, stateKey(state)); err != nil {
		o.logger.WarnContext(ctx, "failed to delete used oauth state", slog.Any("error", err))
	}

	return verifier, nil
}

func stateKey(state string) string {
	return stateKeyPrefix + state
}

// Login signs in with a provider account, provisioning the local user on first use
func (o *OAuthService) Login(ctx context.Context, providerName, code, verifier, userAgent, ip string) (pair jwt.Pair, err error) {
	ctx, span := o.auth.tracer.Start(ctx, "oauth.Login", trace.WithAttributes(
		attribute.String("auth.provider", providerName),
	))
	defer func() { endSpan(span, err) }()

	p, profile, err := o.exchange(ctx, providerName, code, verifier)
	if err != nil {
		return jwt.Pair{}, err
	}

	user, err := o.resolveUser(ctx, p.Name(), profile)
	if err != nil {
		return jwt.Pair{}, err
	}

	return o.auth.Login(ctx, LoginRequest{
		Login:     user.Login,
		UserAgent: userAgent,
		IP:        ip,
		Provider:  p.Name(),
	})
}

// Link attaches provider account to the user of an already verified access token
func (o *OAuthService) Link(ctx context.Context, providerName, code, verifier, ip string, payload *jwt.AccessPayload) (profile *oauth.Profile, err error) {
	ctx, span := o.auth.tracer.Start(ctx, "oauth.Link", trace.WithAttributes(
		attribute.String("auth.provider", providerName),
	))
	defer func() { endSpan(span, err) }()

	p, profile, err := o.exchange(ctx, providerName, code, verifier)
	if err != nil {
		return nil, err
	}

	user, err := o.auth.activeUser(ctx, payload.Sub)
	if err != nil {
		return nil, err
	}

	link, err := o.auth.storage.GetOAuthLink(ctx, p.Name(), profile.ProviderUserID)
	switch {
	case err == nil:
		if link.UserID != user.ID {
			return nil, ErrAlreadyLinkedElsewhere
		}
		return profile, nil
	case !errors.Is(err, storage.ErrOAuthLinkNotFound):
		return nil, fmt.Errorf("failed to get oauth link: %w", err)
	}

	err = o.auth.storage.CreateOAuthLink(ctx, &models.OAuthLink{
		UserID:         user.ID,
		Provider:       p.Name(),
		ProviderUserID: profile.ProviderUserID,
	})
	if err != nil {
		if errors.Is(err, storage.ErrOAuthLinkExists) {
			// Параллельная привязка успела раньше
			return nil, ErrAlreadyLinkedElsewhere
		}
		return nil, fmt.Errorf("failed to create oauth link: %w", err)
	}

	// Привязка записывается на устройство, с которого пришел токен
	deviceID := payload.DeviceID
	o.auth.appendHistory(ctx, &models.UserHistory{
		UserID:   user.ID,
		DeviceID: &deviceID,
		Action:   "login via " + p.Name(),
		IP:       ip,
	})

	o.logger.InfoContext(ctx, "oauth account linked",
		slog.String("login", user.Login),
		slog.String("provider", p.Name()))

	return profile, nil
}

// Unlink removes provider link of the user
func (o *OAuthService) Unlink(ctx context.Context, providerName, login string) error {
	p, err := o.providers.Get(providerName)
	if err != nil {
		return err
	}

	user, err := o.auth.activeUser(ctx, login)
	if err != nil {
		return err
	}

	if err := o.auth.storage.DeleteOAuthLink(ctx, p.Name(), user.ID); err != nil {
		if errors.Is(err, storage.ErrOAuthLinkNotFound) {
			return ErrOAuthAccountNotExists
		}
		return fmt.Errorf("failed to delete oauth link: %w", err)
	}

	o.logger.InfoContext(ctx, "oauth account unlinked",
		slog.String("login", user.Login),
		slog.String("provider", p.Name()))

	return nil
}

func (o *OAuthService) exchange(ctx context.Context, providerName, code, verifier string) (oauth.Provider, *oauth.Profile, error) {
	p, err := o.providers.Get(providerName)
	if err != nil {
		return nil, nil, err
	}

	profile, err := p.ExchangeCodeForProfile(ctx, code, verifier)
	if err != nil {
		o.logger.WarnContext(ctx, "oauth code exchange failed",
			slog.String("provider", p.Name()),
			slog.Any("error", err))
		if errors.Is(err, oauth.ErrUpstream) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrUpstreamProvider, err)
	}

	return p, profile, nil
}

// resolveUser finds the user by provider link, then by email, and creates one otherwise
func (o *OAuthService) resolveUser(ctx context.Context, provider string, profile *oauth.Profile) (*models.User, error) {
	store := o.auth.storage

	link, err := store.GetOAuthLink(ctx, provider, profile.ProviderUserID)
	if err == nil {
		return o.userByID(ctx, link.UserID)
	}
	if !errors.Is(err, storage.ErrOAuthLinkNotFound) {
		return nil, fmt.Errorf("failed to get oauth link: %w", err)
	}

	user, err := store.GetUserByEmail(ctx, profile.Email)
	if errors.Is(err, storage.ErrUserNotFound) {
		user, err = o.createUser(ctx, provider, profile)
	}
	if err != nil {
		return nil, err
	}

	err = store.CreateOAuthLink(ctx, &models.OAuthLink{
		UserID:         user.ID,
		Provider:       provider,
		ProviderUserID: profile.ProviderUserID,
	})
	if errors.Is(err, storage.ErrOAuthLinkExists) {
		// Параллельный вход уже создал связь, используем ее
		link, err := store.GetOAuthLink(ctx, provider, profile.ProviderUserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get oauth link: %w", err)
		}
		return o.userByID(ctx, link.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth link: %w", err)
	}

	return user, nil
}

func (o *OAuthService) createUser(ctx context.Context, provider string, profile *oauth.Profile) (*models.User, error) {
	password, err := crypto.RandomString(generatedPasswordLen)
	if err != nil {
		return nil, err
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	login := profile.Email
	if login == "" {
		login = provider + "_" + profile.ProviderUserID
	}

	user := &models.User{
		Login:        login,
		Email:        profile.Email,
		PasswordHash: hash,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		IsActive:     true,
	}

	err = o.auth.storage.CreateUser(ctx, user)
	if errors.Is(err, storage.ErrUserAlreadyExists) {
		// Пользователь с этим email мог появиться между поиском и вставкой
		existing, lookupErr := o.auth.storage.GetUserByEmail(ctx, profile.Email)
		if lookupErr == nil {
			return existing, nil
		}
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	o.logger.InfoContext(ctx, "user created from oauth profile",
		slog.String("login", user.Login),
		slog.String("provider", provider))

	return user, nil
}

func (o *OAuthService) userByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := o.auth.storage.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
