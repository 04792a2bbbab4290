// Package cleanup периодически удаляет просроченные refresh токены и записи кэша
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// TokenStore удаляет refresh токены, истекшие до before
type TokenStore interface {
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

// Sweeper удаляет просроченные записи кэша
// Redis чистит ключи сам, bolt кэшу нужен явный проход
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Worker периодически удаляет просроченные refresh токены и, если задан sweeper, записи кэша.
// Ошибки очистки логируются и не останавливают цикл
type Worker struct {
	logger   *slog.Logger
	tokens   TokenStore
	sweeper  Sweeper
	now      func() time.Time
	interval time.Duration
}

// NewWorker создает worker, sweeper может быть nil
func NewWorker(logger *slog.Logger, tokens TokenStore, sweeper Sweeper, interval time.Duration) *Worker {
	return &Worker{
		logger:   logger,
		tokens:   tokens,
		sweeper:  sweeper,
		now:      time.Now,
		interval: interval,
	}
}

// Run выполняет очистку сразу и затем каждые interval до отмены ctx
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting cleanup worker", slog.Duration("interval", w.interval))

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Stopping cleanup worker")
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	deleted, err := w.tokens.DeleteExpiredTokens(ctx, w.now())
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to delete expired refresh tokens", slog.Any("error", err))
	} else if deleted > 0 {
		w.logger.InfoContext(ctx, "Deleted expired refresh tokens", slog.Int64("count", deleted))
	}

	if w.sweeper == nil {
		return
	}

	swept, err := w.sweeper.Sweep(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to sweep cache", slog.Any("error", err))
	} else if swept > 0 {
		w.logger.InfoContext(ctx, "Swept expired cache entries", slog.Int("count", swept))
	}
}
