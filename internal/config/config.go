// Package config загружает конфигурацию сервера: YAML файл, переменные окружения GOPHAUTH_*, значения по умолчанию
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "GOPHAUTH_"

// Cache backends
const (
	CacheRedis = "redis"
	CacheBolt  = "bolt"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Auth     AuthConfig     `yaml:"auth"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"` // публичный адрес, из него строятся redirect URI провайдеров
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type CacheConfig struct {
	Backend string      `yaml:"backend"` // redis или bolt
	Redis   RedisConfig `yaml:"redis"`
	Bolt    BoltConfig  `yaml:"bolt"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type BoltConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // период удаления просроченных refresh токенов
}

type OAuthConfig struct {
	Timeout time.Duration  `yaml:"timeout"`
	Yandex  ProviderConfig `yaml:"yandex"`
	VK      ProviderConfig `yaml:"vk"`
}

// ProviderConfig провайдер включен, только если задан client_id
type ProviderConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	ProfileURL   string `yaml:"profile_url"`
}

// Enabled сообщает, настроен ли провайдер
func (p ProviderConfig) Enabled() bool {
	return p.ClientID != ""
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"` // host:port OTLP HTTP коллектора
	Insecure    bool   `yaml:"insecure"`
	Stdout      bool   `yaml:"stdout"` // печатать спаны в stdout вместо OTLP
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text или json
}

// Load читает YAML файл, применяет переменные окружения, проверяет и дополняет значения по умолчанию
// Отсутствующий файл не ошибка: конфигурация берется из окружения
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"BASE_URL":             &c.Server.BaseURL,
		"HOST":                 &c.Server.Host,
		"DATABASE_PATH":        &c.Database.Path,
		"CACHE_BACKEND":        &c.Cache.Backend,
		"REDIS_ADDR":           &c.Cache.Redis.Addr,
		"REDIS_PASSWORD":       &c.Cache.Redis.Password,
		"BOLT_PATH":            &c.Cache.Bolt.Path,
		"JWT_SECRET":           &c.Auth.JWTSecret,
		"YANDEX_CLIENT_ID":     &c.OAuth.Yandex.ClientID,
		"YANDEX_CLIENT_SECRET": &c.OAuth.Yandex.ClientSecret,
		"VK_CLIENT_ID":         &c.OAuth.VK.ClientID,
		"VK_CLIENT_SECRET":     &c.OAuth.VK.ClientSecret,
		"TRACING_ENDPOINT":     &c.Tracing.Endpoint,
		"LOG_LEVEL":            &c.Log.Level,
		"LOG_FORMAT":           &c.Log.Format,
	}
	for name, dst := range strs {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PORT":     &c.Server.Port,
		"REDIS_DB": &c.Cache.Redis.DB,
	}
	for name, dst := range ints {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s must be an integer: %w", envPrefix, name, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv(envPrefix + "TRACING_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sTRACING_ENABLED must be a boolean: %w", envPrefix, err)
		}
		c.Tracing.Enabled = enabled
	}

	return nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	if c.Auth.AccessTokenTTL < 0 || c.Auth.RefreshTokenTTL < 0 || c.Auth.CleanupInterval < 0 {
		return fmt.Errorf("auth durations must not be negative")
	}
	if c.Auth.AccessTokenTTL > 0 && c.Auth.RefreshTokenTTL > 0 && c.Auth.RefreshTokenTTL < c.Auth.AccessTokenTTL {
		return fmt.Errorf("auth.refresh_token_ttl must not be shorter than auth.access_token_ttl")
	}
	switch c.Cache.Backend {
	case "", CacheRedis, CacheBolt:
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", CacheRedis, CacheBolt, c.Cache.Backend)
	}
	if c.Log.Level != "" {
		if _, err := c.Log.SlogLevel(); err != nil {
			return err
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	for name, p := range map[string]ProviderConfig{"yandex": c.OAuth.Yandex, "vk": c.OAuth.VK} {
		if p.Enabled() && p.ClientSecret == "" {
			return fmt.Errorf("oauth.%s.client_secret is required when client_id is set", name)
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Database.Path == "" {
		c.Database.Path = "gophauth.db"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheRedis
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "localhost:6379"
	}
	if c.Cache.Bolt.Path == "" {
		c.Cache.Bolt.Path = "gophauth-cache.db"
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 2 * time.Hour
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = 14 * 24 * time.Hour
	}
	if c.Auth.CleanupInterval == 0 {
		c.Auth.CleanupInterval = time.Hour
	}
	if c.OAuth.Timeout == 0 {
		c.OAuth.Timeout = 10 * time.Second
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "gophauth"
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4318"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SlogLevel переводит log.level в slog.Level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level must be debug, info, warn or error: %w", err)
	}
	return level, nil
}
