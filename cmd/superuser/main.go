package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/iudanet/gophauth/internal/config"
	"github.com/iudanet/gophauth/internal/iocli"
	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/internal/server/jwt"
	"github.com/iudanet/gophauth/internal/server/storage/sqlite"
	"github.com/iudanet/gophauth/internal/validation"
)

var errPasswordMismatch = errors.New("passwords do not match")

// superuserService создает или обновляет учетную запись суперпользователя
type superuserService interface {
	EnsureSuperuser(ctx context.Context, password string) (bool, error)
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *configPath, iocli.NewStdio()); err != nil {
		fmt.Fprintf(os.Stderr, "superuser: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, console iocli.IO) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := sqlite.New(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	// Команда только пишет в базу, отзыв access токенов через кэш здесь не нужен
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec := jwt.NewCodec(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	svc := auth.NewService(logger, store, codec, nil)

	return setPassword(ctx, svc, console)
}

func setPassword(ctx context.Context, svc superuserService, console iocli.IO) error {
	password, err := promptPassword(console)
	if err != nil {
		return err
	}

	created, err := svc.EnsureSuperuser(ctx, password)
	if err != nil {
		return err
	}

	if created {
		console.Printf("Superuser %q created\n", models.SuperuserLogin)
	} else {
		console.Printf("Password of %q updated, its sessions were revoked\n", models.SuperuserLogin)
	}
	return nil
}

// promptPassword запрашивает пароль дважды
func promptPassword(console iocli.IO) (string, error) {
	password, err := console.ReadPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", err
	}

	repeated, err := console.ReadPassword("Repeat password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password != repeated {
		return "", errPasswordMismatch
	}

	return password, nil
}
