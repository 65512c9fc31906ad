// analytics.go — агрегация аналитики скачиваний: временные ряды,
// итоги за период, срез по IP, рейтинг user-agent'ов.
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

// Пределы аналитических запросов.
const (
	DefaultTimeseriesCap = 100
	MaxTimeseriesCap     = 1000
	DefaultUserAgentsCap = 20
	MaxUserAgentsCap     = 100
	summaryTopUserAgents = 10
)

var analyticsQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "r2index_analytics_queries_total",
	Help: "Общее количество аналитических запросов, по типу.",
}, []string{"query"})

// TimeseriesParams — параметры запроса временного ряда.
// StartMS/EndMS — epoch ms, включительно; для scale=month они
// преобразуются в календарные YYYYMM-границы.
type TimeseriesParams struct {
	StartMS int64
	EndMS   int64
	// Scale — hour, day или month; пустое значение — day
	Scale string
	// Filter — любое подмножество полей кортежа расположения
	Filter repository.TupleFilter
	// Cap — максимум файлов в детализации одного bucket'а
	Cap int
}

// TimeseriesFile — детализация одного файла внутри bucket'а.
type TimeseriesFile struct {
	// FileID — id текущей записи индекса; nil, если кортеж не проиндексирован
	FileID    *string
	Tuple     model.RemoteTuple
	Downloads int64
	UniqueIPs int64
}

// TimeseriesBucket — один bucket временного ряда.
type TimeseriesBucket struct {
	// Bucket — ключ bucket'а (epoch ms или YYYYMM для month)
	Bucket int64
	// TotalDownloads — точный итог по ВСЕМ файлам bucket'а,
	// независимо от усечения детализации
	TotalDownloads int64
	// UniqueIPs — точное число уникальных IP по всем файлам bucket'а
	UniqueIPs int64
	// Files — детализация top-N файлов по скачиваниям, не более cap
	Files []TimeseriesFile
}

// TimeseriesResult — упорядоченный по возрастанию bucket'ов ряд.
// Bucket'ы без событий опускаются, не заполняются нулями.
type TimeseriesResult struct {
	Scale   string
	StartMS int64
	EndMS   int64
	Buckets []TimeseriesBucket
}

// SummaryResult — точные итоги за период.
type SummaryResult struct {
	TotalDownloads int64
	UniqueIPs      int64
	UniqueFiles    int64
	TopUserAgents  []repository.UserAgentStat
}

// ByIPItem — одно скачивание в срезе по IP.
type ByIPItem struct {
	FileID       *string
	Tuple        model.RemoteTuple
	UserAgent    *string
	DownloadedAt time.Time
}

// ByIPResult — срез скачиваний одного IP.
type ByIPResult struct {
	IPAddress string
	Total     int64
	Items     []ByIPItem
	Limit     int
	Offset    int
}

// AnalyticsService — агрегация событий скачивания. Все операции —
// чистые чтения; между несколькими запросами одной агрегации
// point-in-time изоляция не гарантируется.
type AnalyticsService struct {
	files     repository.FileRepository
	downloads repository.DownloadRepository
	logger    *slog.Logger
}

// NewAnalyticsService создаёт сервис аналитики.
func NewAnalyticsService(
	files repository.FileRepository,
	downloads repository.DownloadRepository,
	logger *slog.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		files:     files,
		downloads: downloads,
		logger:    logger.With(slog.String("component", "analytics_service")),
	}
}

// validateRange проверяет границы периода до любого обращения к хранилищу.
func validateRange(startMS, endMS int64) error {
	if startMS > endMS {
		return fmt.Errorf("%w: start позже end", ErrValidation)
	}
	return nil
}

// Timeseries строит временной ряд скачиваний.
//
// Итоги и уникальные IP bucket'а точные: итог суммируется по всем
// группам (bucket, кортеж), а уникальные IP считаются отдельным
// запросом без группировки по кортежу — из детализации их не вывести,
// один IP мог скачать несколько разных файлов в одном bucket'е.
// Детализация усечена до cap файлов, отсортированных по скачиваниям.
func (s *AnalyticsService) Timeseries(ctx context.Context, p TimeseriesParams) (*TimeseriesResult, error) {
	if err := validateRange(p.StartMS, p.EndMS); err != nil {
		return nil, err
	}
	if p.Scale == "" {
		p.Scale = "day"
	}
	if !repository.IsValidScale(p.Scale) {
		return nil, fmt.Errorf("%w: недопустимый масштаб %q", ErrValidation, p.Scale)
	}
	if p.Cap <= 0 {
		p.Cap = DefaultTimeseriesCap
	}
	if p.Cap > MaxTimeseriesCap {
		p.Cap = MaxTimeseriesCap
	}
	analyticsQueriesTotal.WithLabelValues("timeseries").Inc()

	lo, hi := BucketRange(p.Scale, p.StartMS, p.EndMS)

	groups, err := s.downloads.TimeseriesGroups(ctx, p.Scale, lo, hi, p.Filter)
	if err != nil {
		return nil, fmt.Errorf("агрегация временного ряда: %w", err)
	}
	uniques, err := s.downloads.BucketUniqueIPs(ctx, p.Scale, lo, hi, p.Filter)
	if err != nil {
		return nil, fmt.Errorf("подсчёт уникальных IP: %w", err)
	}

	// Свёртка групп: группы приходят bucket ASC, downloads DESC,
	// поэтому первые cap групп bucket'а — его top-N.
	result := &TimeseriesResult{
		Scale:   p.Scale,
		StartMS: p.StartMS,
		EndMS:   p.EndMS,
		Buckets: []TimeseriesBucket{},
	}
	var retained []model.RemoteTuple
	for _, g := range groups {
		n := len(result.Buckets)
		if n == 0 || result.Buckets[n-1].Bucket != g.Bucket {
			result.Buckets = append(result.Buckets, TimeseriesBucket{
				Bucket:    g.Bucket,
				UniqueIPs: uniques[g.Bucket],
			})
			n++
		}
		b := &result.Buckets[n-1]
		// Итог никогда не усекается cap'ом
		b.TotalDownloads += g.Downloads
		if len(b.Files) < p.Cap {
			b.Files = append(b.Files, TimeseriesFile{
				Tuple:     g.Tuple,
				Downloads: g.Downloads,
				UniqueIPs: g.UniqueIPs,
			})
			retained = append(retained, g.Tuple)
		}
	}

	if err := s.attachFileIDs(ctx, result.Buckets, retained); err != nil {
		return nil, err
	}

	s.logger.Debug("Временной ряд построен",
		slog.String("scale", p.Scale),
		slog.Int("buckets", len(result.Buckets)),
		slog.Int("groups", len(groups)),
	)
	return result, nil
}

// attachFileIDs присоединяет id текущих записей индекса к детализации.
// Кортеж без записи получает nil id — событие может пережить запись
// или опередить её.
func (s *AnalyticsService) attachFileIDs(ctx context.Context, buckets []TimeseriesBucket, tuples []model.RemoteTuple) error {
	if len(tuples) == 0 {
		return nil
	}
	// Дедупликация: один кортеж может встретиться в нескольких bucket'ах
	seen := make(map[model.RemoteTuple]struct{}, len(tuples))
	unique := tuples[:0]
	for _, t := range tuples {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			unique = append(unique, t)
		}
	}

	ids, err := s.files.ResolveIDsByTuples(ctx, unique)
	if err != nil {
		return fmt.Errorf("разрешение id файлов: %w", err)
	}
	for i := range buckets {
		for j := range buckets[i].Files {
			if id, ok := ids[buckets[i].Files[j].Tuple]; ok {
				buckets[i].Files[j].FileID = &id
			}
		}
	}
	return nil
}

// Summary возвращает точные итоги за период и top-10 user-agent'ов.
func (s *AnalyticsService) Summary(ctx context.Context, startMS, endMS int64, filter repository.TupleFilter) (*SummaryResult, error) {
	if err := validateRange(startMS, endMS); err != nil {
		return nil, err
	}
	analyticsQueriesTotal.WithLabelValues("summary").Inc()

	from, to := time.UnixMilli(startMS).UTC(), time.UnixMilli(endMS).UTC()

	stats, err := s.downloads.Summary(ctx, from, to, filter)
	if err != nil {
		return nil, fmt.Errorf("итоги за период: %w", err)
	}
	topAgents, err := s.downloads.UserAgentStats(ctx, from, to, filter, summaryTopUserAgents)
	if err != nil {
		return nil, fmt.Errorf("рейтинг user-agent: %w", err)
	}

	return &SummaryResult{
		TotalDownloads: stats.TotalDownloads,
		UniqueIPs:      stats.UniqueIPs,
		UniqueFiles:    stats.UniqueFiles,
		TopUserAgents:  topAgents,
	}, nil
}

// ByIP возвращает точный итог и страницу скачиваний одного IP,
// downloaded_at DESC. IP обязателен.
func (s *AnalyticsService) ByIP(ctx context.Context, ip string, startMS, endMS int64, limit, offset int) (*ByIPResult, error) {
	if ip == "" {
		return nil, fmt.Errorf("%w: ip обязателен", ErrValidation)
	}
	if err := validateRange(startMS, endMS); err != nil {
		return nil, err
	}
	limit, offset = normalizeLimits(limit, offset)
	analyticsQueriesTotal.WithLabelValues("by_ip").Inc()

	from, to := time.UnixMilli(startMS).UTC(), time.UnixMilli(endMS).UTC()

	total, err := s.downloads.CountByIP(ctx, ip, from, to)
	if err != nil {
		return nil, fmt.Errorf("подсчёт скачиваний IP: %w", err)
	}
	events, err := s.downloads.ListByIP(ctx, ip, from, to, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("страница скачиваний IP: %w", err)
	}

	// Разрешение id пачкой на всю страницу
	tuples := make([]model.RemoteTuple, 0, len(events))
	for _, e := range events {
		tuples = append(tuples, e.RemoteTuple)
	}
	ids, err := s.files.ResolveIDsByTuples(ctx, tuples)
	if err != nil {
		return nil, fmt.Errorf("разрешение id файлов: %w", err)
	}

	items := make([]ByIPItem, len(events))
	for i, e := range events {
		items[i] = ByIPItem{
			Tuple:        e.RemoteTuple,
			UserAgent:    e.UserAgent,
			DownloadedAt: e.DownloadedAt,
		}
		if id, ok := ids[e.RemoteTuple]; ok {
			items[i].FileID = &id
		}
	}

	return &ByIPResult{
		IPAddress: ip,
		Total:     total,
		Items:     items,
		Limit:     limit,
		Offset:    offset,
	}, nil
}

// UserAgents возвращает рейтинг user-agent'ов за период.
// Усечение cap'ом здесь влияет на размер списка — отдельного
// точного итога не требуется.
func (s *AnalyticsService) UserAgents(ctx context.Context, startMS, endMS int64, filter repository.TupleFilter, limit int) ([]repository.UserAgentStat, error) {
	if err := validateRange(startMS, endMS); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultUserAgentsCap
	}
	if limit > MaxUserAgentsCap {
		limit = MaxUserAgentsCap
	}
	analyticsQueriesTotal.WithLabelValues("user_agents").Inc()

	from, to := time.UnixMilli(startMS).UTC(), time.UnixMilli(endMS).UTC()

	stats, err := s.downloads.UserAgentStats(ctx, from, to, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("рейтинг user-agent: %w", err)
	}
	if stats == nil {
		stats = []repository.UserAgentStat{}
	}
	return stats, nil
}
