// analytics.go — обработчики аналитики скачиваний.
// Все периоды задаются как start/end в epoch ms, включительно.
package handlers

import (
	"net/http"
	"time"

	apierrors "github.com/elaunira/r2index/internal/api/errors"
	"github.com/elaunira/r2index/internal/repository"
	"github.com/elaunira/r2index/internal/service"
)

// timeseriesFileDTO — детализация одного файла внутри bucket'а.
type timeseriesFileDTO struct {
	FileID         *string `json:"fileId"`
	Bucket         string  `json:"bucket"`
	RemotePath     string  `json:"remotePath"`
	RemoteFilename string  `json:"remoteFilename"`
	RemoteVersion  string  `json:"remoteVersion"`
	Downloads      int64   `json:"downloads"`
	UniqueIPs      int64   `json:"uniqueIps"`
}

// timeseriesBucketDTO — один bucket временного ряда.
type timeseriesBucketDTO struct {
	Bucket         int64               `json:"bucket"`
	TotalDownloads int64               `json:"totalDownloads"`
	UniqueIPs      int64               `json:"uniqueIps"`
	Files          []timeseriesFileDTO `json:"files"`
}

// timeseriesResponse — ответ GET /analytics/timeseries.
type timeseriesResponse struct {
	Scale   string                `json:"scale"`
	Start   int64                 `json:"start"`
	End     int64                 `json:"end"`
	Buckets []timeseriesBucketDTO `json:"buckets"`
}

// userAgentDTO — одна строка рейтинга user-agent'ов.
type userAgentDTO struct {
	UserAgent string `json:"userAgent"`
	Count     int64  `json:"count"`
	UniqueIPs int64  `json:"uniqueIps"`
}

// summaryResponse — ответ GET /analytics/summary.
type summaryResponse struct {
	TotalDownloads int64          `json:"totalDownloads"`
	UniqueIPs      int64          `json:"uniqueIps"`
	UniqueFiles    int64          `json:"uniqueFiles"`
	TopUserAgents  []userAgentDTO `json:"topUserAgents"`
	Start          int64          `json:"start"`
	End            int64          `json:"end"`
}

// byIPItemDTO — одно скачивание в срезе по IP.
type byIPItemDTO struct {
	FileID         *string `json:"fileId"`
	Bucket         string  `json:"bucket"`
	RemotePath     string  `json:"remotePath"`
	RemoteFilename string  `json:"remoteFilename"`
	RemoteVersion  string  `json:"remoteVersion"`
	UserAgent      *string `json:"userAgent,omitempty"`
	DownloadedAt   string  `json:"downloadedAt"`
}

// byIPResponse — ответ GET /analytics/by-ip.
type byIPResponse struct {
	IPAddress string        `json:"ipAddress"`
	Total     int64         `json:"total"`
	Downloads []byIPItemDTO `json:"downloads"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
}

// userAgentsResponse — ответ GET /analytics/user-agents.
type userAgentsResponse struct {
	UserAgents []userAgentDTO `json:"userAgents"`
}

// parseAnalyticsRange извлекает обязательные start/end (epoch ms).
func parseAnalyticsRange(r *http.Request) (startMS, endMS int64, err error) {
	if startMS, err = queryInt64(r, "start"); err != nil {
		return 0, 0, err
	}
	if endMS, err = queryInt64(r, "end"); err != nil {
		return 0, 0, err
	}
	return startMS, endMS, nil
}

// AnalyticsTimeseries — GET /analytics/timeseries: временной ряд
// скачиваний с точными итогами и усечённой детализацией по файлам.
func (h *APIHandler) AnalyticsTimeseries(w http.ResponseWriter, r *http.Request) {
	startMS, endMS, err := parseAnalyticsRange(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	// Детализация bucket'а ограничивается параметром limit (имя из
	// клиентской библиотеки); cap принимается как синоним.
	capFiles, err := queryInt(r, "limit", 0)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if capFiles == 0 {
		if capFiles, err = queryInt(r, "cap", 0); err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
	}

	result, err := h.analytics.Timeseries(r.Context(), service.TimeseriesParams{
		StartMS: startMS,
		EndMS:   endMS,
		Scale:   r.URL.Query().Get("scale"),
		Filter:  parseTupleFilter(r),
		Cap:     capFiles,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := timeseriesResponse{
		Scale:   result.Scale,
		Start:   result.StartMS,
		End:     result.EndMS,
		Buckets: make([]timeseriesBucketDTO, len(result.Buckets)),
	}
	for i, b := range result.Buckets {
		dto := timeseriesBucketDTO{
			Bucket:         b.Bucket,
			TotalDownloads: b.TotalDownloads,
			UniqueIPs:      b.UniqueIPs,
			Files:          make([]timeseriesFileDTO, len(b.Files)),
		}
		for j, f := range b.Files {
			dto.Files[j] = timeseriesFileDTO{
				FileID:         f.FileID,
				Bucket:         f.Tuple.Bucket,
				RemotePath:     f.Tuple.RemotePath,
				RemoteFilename: f.Tuple.RemoteFilename,
				RemoteVersion:  f.Tuple.RemoteVersion,
				Downloads:      f.Downloads,
				UniqueIPs:      f.UniqueIPs,
			}
		}
		resp.Buckets[i] = dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// AnalyticsSummary — GET /analytics/summary: точные итоги за период
// и top-10 user-agent'ов.
func (h *APIHandler) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	startMS, endMS, err := parseAnalyticsRange(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	result, err := h.analytics.Summary(r.Context(), startMS, endMS, parseTupleFilter(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		TotalDownloads: result.TotalDownloads,
		UniqueIPs:      result.UniqueIPs,
		UniqueFiles:    result.UniqueFiles,
		TopUserAgents:  toUserAgentDTOs(result.TopUserAgents),
		Start:          startMS,
		End:            endMS,
	})
}

// AnalyticsByIP — GET /analytics/by-ip: срез скачиваний одного IP.
func (h *APIHandler) AnalyticsByIP(w http.ResponseWriter, r *http.Request) {
	startMS, endMS, err := parseAnalyticsRange(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	result, err := h.analytics.ByIP(r.Context(), r.URL.Query().Get("ip"), startMS, endMS, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]byIPItemDTO, len(result.Items))
	for i, item := range result.Items {
		items[i] = byIPItemDTO{
			FileID:         item.FileID,
			Bucket:         item.Tuple.Bucket,
			RemotePath:     item.Tuple.RemotePath,
			RemoteFilename: item.Tuple.RemoteFilename,
			RemoteVersion:  item.Tuple.RemoteVersion,
			UserAgent:      item.UserAgent,
			DownloadedAt:   item.DownloadedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, byIPResponse{
		IPAddress: result.IPAddress,
		Total:     result.Total,
		Downloads: items,
		Limit:     result.Limit,
		Offset:    result.Offset,
	})
}

// AnalyticsUserAgents — GET /analytics/user-agents: рейтинг
// user-agent'ов за период.
func (h *APIHandler) AnalyticsUserAgents(w http.ResponseWriter, r *http.Request) {
	startMS, endMS, err := parseAnalyticsRange(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	stats, err := h.analytics.UserAgents(r.Context(), startMS, endMS, parseTupleFilter(r), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userAgentsResponse{UserAgents: toUserAgentDTOs(stats)})
}

// toUserAgentDTOs конвертирует статистику user-agent'ов в DTO.
func toUserAgentDTOs(stats []repository.UserAgentStat) []userAgentDTO {
	dtos := make([]userAgentDTO, len(stats))
	for i, s := range stats {
		dtos[i] = userAgentDTO{
			UserAgent: s.UserAgent,
			Count:     s.Downloads,
			UniqueIPs: s.UniqueIPs,
		}
	}
	return dtos
}
