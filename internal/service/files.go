// files.go — сервис записей файлового индекса.
// Upsert по кортежу, частичное обновление, удаление, точечные выборки.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/elaunira/r2index/internal/domain/model"
	"github.com/elaunira/r2index/internal/repository"
)

// Prometheus-метрики мутаций индекса.
var (
	fileUpsertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "r2index_file_upserts_total",
		Help: "Общее количество upsert-операций, по исходу (created/updated).",
	}, []string{"outcome"})
	fileDeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "r2index_file_deletes_total",
		Help: "Общее количество удалённых записей индекса.",
	})
)

// FileService — мутации и точечные выборки записей файлового индекса.
type FileService struct {
	files  repository.FileRepository
	tags   repository.TagRepository
	tx     *repository.TxRunner
	cache  *CacheService
	logger *slog.Logger
}

// NewFileService создаёт сервис записей индекса.
func NewFileService(
	files repository.FileRepository,
	tags repository.TagRepository,
	tx *repository.TxRunner,
	cache *CacheService,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		files:  files,
		tags:   tags,
		tx:     tx,
		cache:  cache,
		logger: logger.With(slog.String("component", "file_service")),
	}
}

// Upsert создаёт запись или обновляет существующую с тем же кортежем.
// Запись и её теги пишутся в одной транзакции. Возвращает итоговую
// запись и признак создания.
func (s *FileService) Upsert(ctx context.Context, f *model.FileRecord) (*model.FileRecord, bool, error) {
	f.ID = uuid.New().String()

	var created bool
	err := s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		files := repository.NewFileRepository(tx)
		var err error
		// При конфликте кортежа id перезаписывается id существующей записи.
		created, err = files.Upsert(ctx, f)
		if err != nil {
			return err
		}
		return repository.NewTagRepository(tx).Replace(ctx, f.ID, f.Tags)
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert записи индекса: %w", err)
	}

	s.cache.Delete(f.ID)

	outcome := "updated"
	if created {
		outcome = "created"
	}
	fileUpsertsTotal.WithLabelValues(outcome).Inc()
	s.logger.Info("Запись индекса сохранена",
		slog.String("id", f.ID),
		slog.String("bucket", f.Bucket),
		slog.String("remote_filename", f.RemoteFilename),
		slog.Bool("created", created),
	)
	if f.Tags == nil {
		f.Tags = []string{}
	}
	return f, created, nil
}

// GetByID возвращает запись с тегами. Сначала LRU-кэш, затем БД.
func (s *FileService) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	if f, ok := s.cache.Get(id); ok {
		return f, nil
	}

	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if err := s.attachTags(ctx, f); err != nil {
		return nil, err
	}
	s.cache.Set(id, f)
	return f, nil
}

// GetByTuple возвращает запись по кортежу расположения, с тегами.
func (s *FileService) GetByTuple(ctx context.Context, t model.RemoteTuple) (*model.FileRecord, error) {
	f, err := s.files.GetByTuple(ctx, t)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if err := s.attachTags(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Update применяет частичное обновление полей и, если запрошено,
// заменяет теги. Замена тегов — два шага после обновления записи:
// читатель между шагами может увидеть пустой набор тегов.
func (s *FileService) Update(ctx context.Context, id string, upd repository.FileUpdate, tags []string) (*model.FileRecord, error) {
	if err := s.files.Update(ctx, id, upd); err != nil {
		return nil, mapRepoErr(err)
	}
	if tags != nil {
		if err := s.tags.Replace(ctx, id, tags); err != nil {
			return nil, fmt.Errorf("замена тегов: %w", err)
		}
	}

	s.cache.Delete(id)

	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if err := s.attachTags(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Info("Запись индекса обновлена", slog.String("id", id))
	return f, nil
}

// DeleteByID удаляет запись по UUID. Теги удаляются каскадно.
func (s *FileService) DeleteByID(ctx context.Context, id string) error {
	if err := s.files.DeleteByID(ctx, id); err != nil {
		return mapRepoErr(err)
	}
	s.cache.Delete(id)
	fileDeletesTotal.Inc()
	s.logger.Info("Запись индекса удалена", slog.String("id", id))
	return nil
}

// DeleteByTuple удаляет запись по кортежу расположения.
func (s *FileService) DeleteByTuple(ctx context.Context, t model.RemoteTuple) error {
	// Запись ищется до удаления, чтобы инвалидировать кэш по id.
	f, err := s.files.GetByTuple(ctx, t)
	if err != nil {
		return mapRepoErr(err)
	}
	if err := s.files.DeleteByID(ctx, f.ID); err != nil {
		return mapRepoErr(err)
	}
	s.cache.Delete(f.ID)
	fileDeletesTotal.Inc()
	s.logger.Info("Запись индекса удалена по кортежу", slog.String("id", f.ID))
	return nil
}

// attachTags загружает теги одной записи.
func (s *FileService) attachTags(ctx context.Context, f *model.FileRecord) error {
	tagsByID, err := s.tags.GetByFileIDs(ctx, []string{f.ID})
	if err != nil {
		return fmt.Errorf("загрузка тегов: %w", err)
	}
	f.Tags = tagsByID[f.ID]
	if f.Tags == nil {
		f.Tags = []string{}
	}
	return nil
}

// mapRepoErr переводит ошибки репозитория в ошибки сервисного слоя.
func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrConflict
	default:
		return err
	}
}
