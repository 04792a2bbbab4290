package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Yandex endpoints
const (
	YandexAuthURL    = "https://oauth.yandex.ru/authorize"
	YandexTokenURL   = "https://oauth.yandex.ru/token"
	YandexProfileURL = "https://login.yandex.ru/info"
)

// Yandex implements authorization code flow with PKCE (S256)
type Yandex struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	profileURL string
	cfg        Config
}

// NewYandex creates Yandex provider, empty endpoints fall back to production URLs
func NewYandex(cfg Config) *Yandex {
	if cfg.AuthURL == "" {
		cfg.AuthURL = YandexAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = YandexTokenURL
	}
	if cfg.ProfileURL == "" {
		cfg.ProfileURL = YandexProfileURL
	}

	return &Yandex{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
				// client_id:client_secret передаются в Basic заголовке
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
		profileURL: cfg.ProfileURL,
		cfg:        cfg,
	}
}

// Name returns "yandex"
func (y *Yandex) Name() string { return "yandex" }

// UsesPKCE returns true
func (y *Yandex) UsesPKCE() bool { return true }

// AuthorizationURL builds authorize page URL with S256 code challenge
func (y *Yandex) AuthorizationURL(redirectURI, state, codeChallenge string) string {
	return y.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("redirect_uri", redirectURI),
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

type yandexProfile struct {
	ID           flexID `json:"id"`
	DefaultEmail string `json:"default_email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
}

// ExchangeCodeForProfile exchanges code with code_verifier and reads login.yandex.ru/info
func (y *Yandex) ExchangeCodeForProfile(ctx context.Context, code, verifier string) (*Profile, error) {
	if y.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.cfg.Timeout)
		defer cancel()
	}

	// oauth2 берет http.Client из контекста
	ctx = context.WithValue(ctx, oauth2.HTTPClient, y.httpClient)

	token, err := y.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, y.exchangeError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+token.AccessToken)

	var info yandexProfile
	if err := doJSON(y.httpClient, y.Name(), req, &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, &UpstreamError{Provider: y.Name(), Err: errors.New("profile has no id")}
	}

	return &Profile{
		Provider:       y.Name(),
		ProviderUserID: string(info.ID),
		Email:          info.DefaultEmail,
		FirstName:      info.FirstName,
		LastName:       info.LastName,
	}, nil
}

func (y *Yandex) exchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return &UpstreamError{Provider: y.Name(), StatusCode: status, Body: string(re.Body)}
	}
	return &UpstreamError{Provider: y.Name(), Err: err}
}
