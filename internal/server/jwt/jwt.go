package jwt

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	// ErrInvalidSignature indicates that token is not three segments or its HMAC does not match
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrMalformedToken indicates that payload segment is not valid base64 JSON of the expected shape
	ErrMalformedToken = errors.New("malformed token")

	// ErrExpiredToken indicates that token exp is in the past
	ErrExpiredToken = errors.New("token expired")
)

// Header is the fixed token header. Field order matters for the wire format.
type Header struct {
	Typ string `json:"typ"`
	Alg string `json:"alg"`
}

// DefaultHeader is used for every issued token
var DefaultHeader = Header{Typ: "JWT", Alg: "HS256"}

// AccessPayload represents access token claims
type AccessPayload struct {
	Sub      string   `json:"sub"`
	DeviceID string   `json:"device_id"`
	Roles    []string `json:"roles"`
	Exp      string   `json:"exp"`
}

// ExpiresAt parses exp
func (p *AccessPayload) ExpiresAt() (time.Time, error) {
	return ParseExp(p.Exp)
}

// HasRole reports whether role is present in the roles claim
func (p *AccessPayload) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RefreshPayload represents refresh token claims. Roles are not carried.
type RefreshPayload struct {
	Sub      string `json:"sub"`
	DeviceID string `json:"device_id"`
	Exp      string `json:"exp"`
}

// ExpiresAt parses exp
func (p *RefreshPayload) ExpiresAt() (time.Time, error) {
	return ParseExp(p.Exp)
}

// Pair is a freshly minted access and refresh token
type Pair struct {
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	AccessToken      string
	RefreshToken     string
}

// Codec encodes, signs, verifies and decodes tokens
// The only state is the HMAC secret and token lifetimes
type Codec struct {
	secret          []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// NewCodec creates a new token codec
// secret should be a cryptographically secure random string
func NewCodec(secret string, accessTokenTTL, refreshTokenTTL time.Duration) *Codec {
	return &Codec{
		secret:          []byte(secret),
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// AccessTokenTTL returns access token lifetime
func (c *Codec) AccessTokenTTL() time.Duration {
	return c.accessTokenTTL
}

// RefreshTokenTTL returns refresh token lifetime
func (c *Codec) RefreshTokenTTL() time.Duration {
	return c.refreshTokenTTL
}

// Encode serializes header and payload and appends hex HMAC-SHA256 of "<b64header>.<b64payload>"
// Same inputs and secret always produce the same token
func (c *Codec) Encode(header, payload any) (string, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("failed to marshal header: %w", err)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	signingString := base64.StdEncoding.EncodeToString(headerJSON) + "." +
		base64.StdEncoding.EncodeToString(payloadJSON)

	signature, err := c.sign(signingString)
	if err != nil {
		return "", err
	}

	return signingString + "." + signature, nil
}

// Verify checks token structure and signature. It does not look at the payload.
func (c *Codec) Verify(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrInvalidSignature
	}

	signature, err := hex.DecodeString(parts[2])
	if err != nil {
		return ErrInvalidSignature
	}
	// Only the canonical lowercase form produced by Encode is accepted
	if hex.EncodeToString(signature) != parts[2] {
		return ErrInvalidSignature
	}

	if err := gojwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], signature, c.secret); err != nil {
		return ErrInvalidSignature
	}

	return nil
}

// DecodeAccess decodes access token payload and checks expiry
// Call Verify first on any token received from outside
func (c *Codec) DecodeAccess(token string) (*AccessPayload, error) {
	var payload AccessPayload
	if err := decodeSegment(token, &payload); err != nil {
		return nil, err
	}
	if payload.Sub == "" || payload.DeviceID == "" || payload.Roles == nil {
		return nil, ErrMalformedToken
	}
	if err := checkExp(payload.Exp); err != nil {
		return nil, err
	}
	return &payload, nil
}

// DecodeRefresh decodes refresh token payload and checks expiry
// Call Verify first on any token received from outside
func (c *Codec) DecodeRefresh(token string) (*RefreshPayload, error) {
	var payload RefreshPayload
	if err := decodeSegment(token, &payload); err != nil {
		return nil, err
	}
	if payload.Sub == "" || payload.DeviceID == "" {
		return nil, ErrMalformedToken
	}
	if err := checkExp(payload.Exp); err != nil {
		return nil, err
	}
	return &payload, nil
}

// IssuePair mints access and refresh tokens for login on device
func (c *Codec) IssuePair(login, deviceID string, roles []string, now time.Time) (Pair, error) {
	if roles == nil {
		roles = []string{}
	}

	accessExp := now.Add(c.accessTokenTTL)
	refreshExp := now.Add(c.refreshTokenTTL)

	access, err := c.Encode(DefaultHeader, AccessPayload{
		Sub:      login,
		DeviceID: deviceID,
		Roles:    roles,
		Exp:      FormatExp(accessExp),
	})
	if err != nil {
		return Pair{}, fmt.Errorf("failed to create access token: %w", err)
	}

	refresh, err := c.Encode(DefaultHeader, RefreshPayload{
		Sub:      login,
		DeviceID: deviceID,
		Exp:      FormatExp(refreshExp),
	})
	if err != nil {
		return Pair{}, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// FormatExp encodes t as decimal epoch seconds with microsecond precision
func FormatExp(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', -1, 64)
}

// ParseExp parses decimal epoch seconds
func ParseExp(exp string) (time.Time, error) {
	secs, err := strconv.ParseFloat(exp, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, ErrMalformedToken
	}
	return time.UnixMicro(int64(math.Round(secs * 1e6))).UTC(), nil
}

// sign возвращает hex HMAC-SHA256 подпись
func (c *Codec) sign(data string) (string, error) {
	signature, err := gojwt.SigningMethodHS256.Sign(data, c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return hex.EncodeToString(signature), nil
}

func decodeSegment(token string, dst any) error {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return ErrMalformedToken
	}

	raw, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	return nil
}

func checkExp(exp string) error {
	expiresAt, err := ParseExp(exp)
	if err != nil {
		return err
	}
	if expiresAt.Before(time.Now()) {
		return ErrExpiredToken
	}
	return nil
}
