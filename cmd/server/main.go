package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/gophauth/internal/config"
	"github.com/iudanet/gophauth/internal/server"
	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/internal/server/cache"
	boltcache "github.com/iudanet/gophauth/internal/server/cache/boltdb"
	rediscache "github.com/iudanet/gophauth/internal/server/cache/redis"
	"github.com/iudanet/gophauth/internal/server/cleanup"
	"github.com/iudanet/gophauth/internal/server/handlers"
	"github.com/iudanet/gophauth/internal/server/jwt"
	"github.com/iudanet/gophauth/internal/server/oauth"
	"github.com/iudanet/gophauth/internal/server/storage/sqlite"
	"github.com/iudanet/gophauth/internal/server/tracing"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "gophauth: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, Version, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error("Failed to shutdown tracing", slog.Any("error", err))
		}
	}()

	store, err := sqlite.New(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close database", slog.Any("error", err))
		}
	}()

	c, sweeper, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close cache", slog.Any("error", err))
		}
	}()

	codec := jwt.NewCodec(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	authService := auth.NewService(logger, store, codec, auth.NewRevocationCache(c))
	oauthService := auth.NewOAuthService(logger, authService, newProviders(cfg.OAuth), c, cfg.Server.BaseURL)

	router := server.NewRouter(server.Deps{
		Logger: logger,
		Auth:   authService,
		OAuth:  oauthService,
		Health: map[string]handlers.Pinger{
			"database": store,
			"cache":    c,
		},
		Version: Version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	worker := cleanup.NewWorker(logger, store, sweeper, cfg.Auth.CleanupInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server",
			slog.String("addr", srv.Addr),
			slog.String("version", Version),
			slog.String("cache", cfg.Cache.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return worker.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler), nil
}

// openCache возвращает sweeper только для bolt, redis удаляет ключи по TTL сам
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, cleanup.Sweeper, error) {
	switch cfg.Backend {
	case config.CacheBolt:
		c, err := boltcache.New(cfg.Bolt.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open bolt cache: %w", err)
		}
		return c, c, nil
	default:
		c, err := rediscache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return c, nil, nil
	}
}

func newProviders(cfg config.OAuthConfig) *oauth.Registry {
	var providers []oauth.Provider

	if cfg.Yandex.Enabled() {
		providers = append(providers, oauth.NewYandex(providerConfig(cfg.Yandex, cfg.Timeout)))
	}
	if cfg.VK.Enabled() {
		providers = append(providers, oauth.NewVK(providerConfig(cfg.VK, cfg.Timeout)))
	}

	return oauth.NewRegistry(providers...)
}

func providerConfig(p config.ProviderConfig, timeout time.Duration) oauth.Config {
	return oauth.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		AuthURL:      p.AuthURL,
		TokenURL:     p.TokenURL,
		ProfileURL:   p.ProfileURL,
		Timeout:      timeout,
	}
}

func printVersion() {
	fmt.Printf("GophAuth Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
