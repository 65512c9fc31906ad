// index.go — материализация файлового индекса:
// свёртка полного отфильтрованного набора записей в структуру
// entity → extension → карта метаданных.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/elaunira/r2index/internal/domain/model"
	"github.com/elaunira/r2index/internal/repository"
)

var indexBuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "r2index_index_builds_total",
	Help: "Общее количество материализаций файлового индекса.",
})

// IndexEntry — лист материализованного индекса: синтезированные поля
// плюс свободные extra-ключи записи.
type IndexEntry = map[string]any

// FileIndex — материализованный индекс entity → extension → entry.
type FileIndex = map[string]map[string]IndexEntry

// IndexService — материализация файлового индекса.
type IndexService struct {
	files  repository.FileRepository
	logger *slog.Logger
}

// NewIndexService создаёт сервис материализации индекса.
func NewIndexService(files repository.FileRepository, logger *slog.Logger) *IndexService {
	return &IndexService{
		files:  files,
		logger: logger.With(slog.String("component", "index_service")),
	}
}

// Materialize строит индекс по фильтрам (без пагинации).
// Если две записи делят пару (entity, extension), побеждает более
// поздняя по порядку выборки — last-write-wins, не ошибка.
func (s *IndexService) Materialize(ctx context.Context, filters repository.FileFilters) (FileIndex, error) {
	records, err := s.files.ListAll(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("выборка записей индекса: %w", err)
	}

	index := make(FileIndex)
	for _, f := range records {
		byExt, ok := index[f.Entity]
		if !ok {
			byExt = make(map[string]IndexEntry)
			index[f.Entity] = byExt
		}
		byExt[f.Extension] = materializeEntry(f)
	}

	indexBuildsTotal.Inc()
	s.logger.Debug("Индекс материализован",
		slog.Int("records", len(records)),
		slog.Int("entities", len(index)),
	)
	return index, nil
}

// materializeEntry синтезирует лист индекса из одной записи.
// Ключи extra раскладываются прямо в лист и могут перекрывать
// синтетические ключи при совпадении имён — допустимое поведение.
func materializeEntry(f *model.FileRecord) IndexEntry {
	entry := IndexEntry{}

	checksums := map[string]string{}
	if f.ChecksumMD5 != nil {
		checksums["md5"] = *f.ChecksumMD5
	}
	if f.ChecksumSHA1 != nil {
		checksums["sha1"] = *f.ChecksumSHA1
	}
	if f.ChecksumSHA256 != nil {
		checksums["sha256"] = *f.ChecksumSHA256
	}
	if f.ChecksumSHA512 != nil {
		checksums["sha512"] = *f.ChecksumSHA512
	}
	entry["checksums"] = checksums

	if f.Size != nil {
		entry["size"] = strconv.FormatInt(*f.Size, 10)
	}
	if !f.UpdatedAt.IsZero() {
		entry["last_updated"] = f.UpdatedAt.UTC().Format(time.RFC3339)
	}
	if f.Name != nil {
		entry["name"] = *f.Name
	}

	for k, v := range f.Extra {
		entry[k] = v
	}
	return entry
}
