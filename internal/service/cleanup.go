// cleanup.go — сервис retention-очистки событий скачивания.
//
// CleanupService запускает фоновую горутину с ticker (R2X_CLEANUP_INTERVAL),
// которая удаляет события старше R2X_RETENTION_DAYS. Та же операция
// доступна по требованию через POST /maintenance/cleanup-downloads.
//
// Prometheus-метрики:
//   - r2index_cleanup_runs_total — количество запусков очистки
//   - r2index_cleanup_deleted_total — количество удалённых событий
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/elaunira/r2index/internal/repository"
)

// Prometheus-метрики очистки.
var (
	cleanupRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "r2index_cleanup_runs_total",
		Help: "Количество запусков retention-очистки событий скачивания.",
	})
	cleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "r2index_cleanup_deleted_total",
		Help: "Количество удалённых retention-очисткой событий скачивания.",
	})
)

// CleanupService — фоновый сервис retention-очистки событий скачивания.
type CleanupService struct {
	downloads     repository.DownloadRepository
	retentionDays int
	interval      time.Duration
	logger        *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCleanupService создаёт сервис retention-очистки.
func NewCleanupService(
	downloads repository.DownloadRepository,
	retentionDays int,
	interval time.Duration,
	logger *slog.Logger,
) *CleanupService {
	return &CleanupService{
		downloads:     downloads,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger.With(slog.String("component", "cleanup_service")),
	}
}

// Start запускает фоновую горутину периодической очистки.
// Вызывается один раз при старте приложения.
func (s *CleanupService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("Периодическая retention-очистка запущена",
			slog.String("interval", s.interval.String()),
			slog.Int("retention_days", s.retentionDays),
		)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Периодическая retention-очистка остановлена")
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					s.logger.Error("Ошибка retention-очистки", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// Stop останавливает фоновую горутину и ждёт завершения.
func (s *CleanupService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// RunOnce выполняет один проход очистки: единичный ограниченный DELETE
// с cutoff = now − retentionDays. Повтор с тем же cutoff идемпотентен.
func (s *CleanupService) RunOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)

	deleted, err := s.downloads.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention-очистка: %w", err)
	}

	cleanupRunsTotal.Inc()
	cleanupDeletedTotal.Add(float64(deleted))
	s.logger.Info("Retention-очистка завершена",
		slog.Time("cutoff", cutoff),
		slog.Int64("deleted", deleted),
	)
	return deleted, nil
}
