// downloads.go — сервис записи событий скачивания.
// Ключи bucket'ов вычисляются здесь, один раз, при записи события.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/elaunira/r2index/internal/domain/model"
	"github.com/elaunira/r2index/internal/repository"
)

var downloadsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "r2index_downloads_recorded_total",
	Help: "Общее количество записанных событий скачивания.",
})

// RecordDownloadInput — входные данные записи события скачивания.
type RecordDownloadInput struct {
	// FileID — UUID записи индекса (кортеж берётся из неё)
	FileID string
	// IPAddress — IP клиента, обязателен
	IPAddress string
	// UserAgent — user-agent клиента, опционален
	UserAgent *string
}

// DownloadService — запись событий скачивания.
type DownloadService struct {
	files     repository.FileRepository
	downloads repository.DownloadRepository
	logger    *slog.Logger
}

// NewDownloadService создаёт сервис записи скачиваний.
func NewDownloadService(
	files repository.FileRepository,
	downloads repository.DownloadRepository,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		files:     files,
		downloads: downloads,
		logger:    logger.With(slog.String("component", "download_service")),
	}
}

// Record записывает событие скачивания. Кортеж расположения снимается
// с текущей записи индекса и замораживается в событии: событие переживёт
// удаление записи. Запись append-only, повтор клиента создаёт дубликат —
// допустимо при at-least-once семантике аналитики.
func (s *DownloadService) Record(ctx context.Context, in RecordDownloadInput) (*model.DownloadEvent, error) {
	if in.IPAddress == "" {
		return nil, fmt.Errorf("%w: ip_address обязателен", ErrValidation)
	}

	f, err := s.files.GetByID(ctx, in.FileID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	now := time.Now().UTC()
	keys := Bucketize(now)
	e := &model.DownloadEvent{
		ID:           uuid.New().String(),
		RemoteTuple:  f.RemoteTuple,
		IPAddress:    in.IPAddress,
		UserAgent:    in.UserAgent,
		DownloadedAt: now,
		HourBucket:   keys.Hour,
		DayBucket:    keys.Day,
		MonthBucket:  keys.Month,
	}

	if err := s.downloads.Insert(ctx, e); err != nil {
		return nil, fmt.Errorf("запись события скачивания: %w", err)
	}

	downloadsRecordedTotal.Inc()
	s.logger.Debug("Событие скачивания записано",
		slog.String("id", e.ID),
		slog.String("ip", e.IPAddress),
		slog.String("remote_filename", e.RemoteFilename),
	)
	return e, nil
}
