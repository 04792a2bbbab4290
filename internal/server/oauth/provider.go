// Package oauth contains authorization-code providers that turn a callback code into a user profile.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrUnknownProvider indicates that provider is not configured
	ErrUnknownProvider = errors.New("unknown oauth provider")

	// ErrUpstream indicates that the provider call failed, the caller may retry
	ErrUpstream = errors.New("oauth provider request failed")
)

// Profile is the provider identity normalized across providers
type Profile struct {
	Provider       string `json:"provider"`
	ProviderUserID string `json:"user_id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
}

// Provider is one identity provider with authorization code flow
type Provider interface {
	// Name returns provider key used in URLs and links
	Name() string

	// UsesPKCE reports whether the provider expects code_challenge/code_verifier
	UsesPKCE() bool

	// AuthorizationURL builds the provider page URL the user is redirected to
	// state and codeChallenge are empty for providers without PKCE
	AuthorizationURL(redirectURI, state, codeChallenge string) string

	// ExchangeCodeForProfile trades authorization code for provider token and fetches the profile
	// For providers without PKCE verifier is the redirect URI used for the code
	ExchangeCodeForProfile(ctx context.Context, code, verifier string) (*Profile, error)
}

// Config holds client credentials and endpoints of one provider
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	ProfileURL   string
	Timeout      time.Duration
}

// UpstreamError carries provider status and body for diagnostics
type UpstreamError struct {
	Err        error
	Provider   string
	Body       string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Unwrap matches both ErrUpstream and the transport error
func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}

// Registry selects provider by name
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates registry of the given providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns provider by name
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns sorted names of configured providers
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// flexID accepts both JSON numbers and strings, providers disagree on id type
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", data)
	}
	*f = flexID(n.String())
	return nil
}
