// search.go — сервис поиска и группировки записей индекса.
// Координирует repository и Prometheus-метрики.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/elaunira/r2index/internal/domain/model"
	"github.com/elaunira/r2index/internal/repository"
)

// Пределы пагинации списка файлов.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Prometheus-метрики поиска.
var (
	searchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "r2index_search_total",
		Help: "Общее количество поисковых запросов.",
	})
	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "r2index_search_duration_seconds",
		Help:    "Длительность поисковых запросов.",
		Buckets: prometheus.DefBuckets,
	})
)

// SearchResult — результат поиска с пагинацией.
type SearchResult struct {
	// Items — найденные записи с тегами
	Items []*model.FileRecord
	// Total — общее количество совпадений до усечения
	Total int
	// Limit — применённый лимит
	Limit int
	// Offset — текущее смещение
	Offset int
	// HasMore — есть ли ещё результаты
	HasMore bool
}

// GroupResult — результат группировки по уникальным значениям поля.
type GroupResult struct {
	// Field — поле группировки
	Field string
	// Groups — количество записей на значение, по убыванию количества
	Groups []repository.GroupCount
	// Total — сумма всех групп (равна общему количеству без группировки)
	Total int
}

// SearchService — поиск, группировка и материализация индекса.
type SearchService struct {
	files  repository.FileRepository
	tags   repository.TagRepository
	logger *slog.Logger
}

// NewSearchService создаёт сервис поиска.
func NewSearchService(
	files repository.FileRepository,
	tags repository.TagRepository,
	logger *slog.Logger,
) *SearchService {
	return &SearchService{
		files:  files,
		tags:   tags,
		logger: logger.With(slog.String("component", "search_service")),
	}
}

// normalizeLimits приводит limit/offset к допустимым границам.
func normalizeLimits(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Search возвращает страницу записей по фильтрам + общее количество.
// Теги подгружаются одним пакетным запросом на всю страницу,
// никогда — по одному на запись.
func (s *SearchService) Search(ctx context.Context, filters repository.FileFilters, limit, offset int) (*SearchResult, error) {
	start := time.Now()
	searchTotal.Inc()
	limit, offset = normalizeLimits(limit, offset)

	items, err := s.files.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("поиск записей: %w", err)
	}
	total, err := s.files.Count(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("подсчёт записей: %w", err)
	}
	if err := s.attachTagsBatch(ctx, items); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	searchDuration.Observe(duration.Seconds())

	s.logger.Debug("Поиск выполнен",
		slog.Int("total", total),
		slog.Int("returned", len(items)),
		slog.Duration("duration", duration),
	)

	return &SearchResult{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(items) < total,
	}, nil
}

// GroupBy возвращает количество записей на каждое уникальное значение поля.
// Поле проверяется по allow-list ДО обращения к хранилищу.
func (s *SearchService) GroupBy(ctx context.Context, field string, filters repository.FileFilters) (*GroupResult, error) {
	if !repository.IsGroupableField(field) {
		return nil, fmt.Errorf("%w: недопустимое поле группировки %q", ErrValidation, field)
	}

	start := time.Now()
	searchTotal.Inc()

	groups, err := s.files.GroupCount(ctx, field, filters)
	if err != nil {
		return nil, fmt.Errorf("группировка записей: %w", err)
	}

	total := 0
	for _, g := range groups {
		total += g.Count
	}

	searchDuration.Observe(time.Since(start).Seconds())

	return &GroupResult{
		Field:  field,
		Groups: groups,
		Total:  total,
	}, nil
}

// attachTagsBatch подгружает теги для пачки записей одним запросом.
func (s *SearchService) attachTagsBatch(ctx context.Context, items []*model.FileRecord) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i, f := range items {
		ids[i] = f.ID
	}
	tagsByID, err := s.tags.GetByFileIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("загрузка тегов: %w", err)
	}
	for _, f := range items {
		f.Tags = tagsByID[f.ID]
		if f.Tags == nil {
			f.Tags = []string{}
		}
	}
	return nil
}
