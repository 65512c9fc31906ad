// handler.go — основной обработчик API r2index.
// Регистрирует маршруты и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/elaunira/r2index/internal/api/errors"
	"github.com/elaunira/r2index/internal/repository"
	"github.com/elaunira/r2index/internal/service"
)

// APIHandler — основной обработчик API r2index.
type APIHandler struct {
	health    *HealthHandler
	files     *service.FileService
	search    *service.SearchService
	index     *service.IndexService
	downloads *service.DownloadService
	analytics *service.AnalyticsService
	cleanup   *service.CleanupService
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	files *service.FileService,
	search *service.SearchService,
	index *service.IndexService,
	downloads *service.DownloadService,
	analytics *service.AnalyticsService,
	cleanup *service.CleanupService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		files:     files,
		search:    search,
		index:     index,
		downloads: downloads,
		analytics: analytics,
		cleanup:   cleanup,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// RegisterRoutes регистрирует все маршруты API.
func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.health.HealthLive)
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Route("/files", func(r chi.Router) {
		r.Get("/", h.ListFiles)
		r.Post("/", h.UpsertFile)
		r.Delete("/", h.DeleteFileByTuple)
		r.Get("/by-tuple", h.GetFileByTuple)
		r.Get("/index", h.GetFileIndex)
		r.Get("/{id}", h.GetFile)
		r.Put("/{id}", h.UpdateFile)
		r.Delete("/{id}", h.DeleteFile)
	})

	r.Post("/downloads", h.RecordDownload)

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/timeseries", h.AnalyticsTimeseries)
		r.Get("/summary", h.AnalyticsSummary)
		r.Get("/by-ip", h.AnalyticsByIP)
		r.Get("/user-agents", h.AnalyticsUserAgents)
	})

	r.Post("/maintenance/cleanup-downloads", h.CleanupDownloads)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Каждая ошибка ядра попадает ровно в один из классов:
// validation / not-found / conflict / internal.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	default:
		h.logger.Error("Внутренняя ошибка запроса", slog.String("error", err.Error()))
		apierrors.InternalError(w, "внутренняя ошибка сервера")
	}
}

// queryStr возвращает указатель на строковый query-параметр или nil.
func queryStr(r *http.Request, name string) *string {
	if v := r.URL.Query().Get(name); v != "" {
		return &v
	}
	return nil
}

// queryInt возвращает целочисленный query-параметр или дефолт.
// Некорректное значение — ошибка валидации.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("параметр " + name + " должен быть целым числом")
	}
	return n, nil
}

// queryInt64 возвращает обязательный int64 query-параметр (epoch ms).
func queryInt64(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, errors.New("параметр " + name + " обязателен")
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.New("параметр " + name + " должен быть epoch ms")
	}
	return n, nil
}

// parseFileFilters собирает фильтры поиска из query-параметров.
func parseFileFilters(r *http.Request) (repository.FileFilters, error) {
	filters := repository.FileFilters{
		Bucket:    queryStr(r, "bucket"),
		Category:  queryStr(r, "category"),
		Entity:    queryStr(r, "entity"),
		Extension: queryStr(r, "extension"),
		MediaType: queryStr(r, "media_type"),
	}

	if v := r.URL.Query().Get("deprecated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filters, errors.New("параметр deprecated должен быть true или false")
		}
		filters.Deprecated = &b
	}

	// Теги — через запятую; пустые элементы отбрасываются
	if v := r.URL.Query().Get("tags"); v != "" {
		for _, tag := range strings.Split(v, ",") {
			tag = strings.TrimSpace(tag)
			if tag != "" {
				filters.Tags = append(filters.Tags, tag)
			}
		}
	}

	return filters, nil
}

// parseTupleFilter собирает фильтр по подмножеству полей кортежа.
func parseTupleFilter(r *http.Request) repository.TupleFilter {
	return repository.TupleFilter{
		Bucket:         queryStr(r, "bucket"),
		RemotePath:     queryStr(r, "remote_path"),
		RemoteFilename: queryStr(r, "remote_filename"),
		RemoteVersion:  queryStr(r, "remote_version"),
	}
}
