package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// VK endpoints
const (
	VKAuthURL    = "https://oauth.vk.com/authorize"
	VKTokenURL   = "https://oauth.vk.com/access_token"
	VKProfileURL = "https://api.vk.com/method/account.getProfileInfo?v=5.199"
)

// VK implements authorization code flow without PKCE.
// The redirect URI used for the code has to be repeated on exchange, it travels as verifier.
type VK struct {
	httpClient *http.Client
	cfg        Config
}

// NewVK creates VK provider, empty endpoints fall back to production URLs
func NewVK(cfg Config) *VK {
	if cfg.AuthURL == "" {
		cfg.AuthURL = VKAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = VKTokenURL
	}
	if cfg.ProfileURL == "" {
		cfg.ProfileURL = VKProfileURL
	}

	return &VK{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

// Name returns "vk"
func (v *VK) Name() string { return "vk" }

// UsesPKCE returns false
func (v *VK) UsesPKCE() bool { return false }

// AuthorizationURL builds authorize page URL requesting email scope
func (v *VK) AuthorizationURL(redirectURI, _, _ string) string {
	q := url.Values{}
	q.Set("client_id", v.cfg.ClientID)
	q.Set("display", "page")
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", "email")
	q.Set("v", "5.131")

	return withQuery(v.cfg.AuthURL, q)
}

type vkToken struct {
	AccessToken string `json:"access_token"`
	Email       string `json:"email"`
	UserID      flexID `json:"user_id"`
}

type vkProfile struct {
	Error *struct {
		Code int    `json:"error_code"`
		Msg  string `json:"error_msg"`
	} `json:"error"`
	Response struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"response"`
}

// ExchangeCodeForProfile exchanges code using verifier as redirect_uri, then reads account profile
func (v *VK) ExchangeCodeForProfile(ctx context.Context, code, verifier string) (*Profile, error) {
	if v.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.Timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("client_id", v.cfg.ClientID)
	q.Set("client_secret", v.cfg.ClientSecret)
	q.Set("redirect_uri", verifier)
	q.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, withQuery(v.cfg.TokenURL, q), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	var token vkToken
	if err := doJSON(v.httpClient, v.Name(), req, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" || token.UserID == "" {
		return nil, &UpstreamError{Provider: v.Name(), Err: errors.New("token response has no access_token or user_id")}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.ProfileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	var profile vkProfile
	if err := doJSON(v.httpClient, v.Name(), req, &profile); err != nil {
		return nil, err
	}
	// VK отвечает 200 и кладет ошибку в тело
	if profile.Error != nil {
		return nil, &UpstreamError{
			Provider:   v.Name(),
			StatusCode: http.StatusOK,
			Body:       fmt.Sprintf("%d: %s", profile.Error.Code, profile.Error.Msg),
		}
	}

	return &Profile{
		Provider:       v.Name(),
		ProviderUserID: string(token.UserID),
		Email:          token.Email,
		FirstName:      profile.Response.FirstName,
		LastName:       profile.Response.LastName,
	}, nil
}

// withQuery добавляет параметры к URL, сохраняя уже существующие
func withQuery(base string, q url.Values) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}
