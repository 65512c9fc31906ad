// downloads.go — обработчик записи событий скачивания.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	apierrors "github.com/elaunira/r2index/internal/api/errors"
	"github.com/elaunira/r2index/internal/service"
)

// recordDownloadRequest — тело POST /downloads.
type recordDownloadRequest struct {
	FileID    string  `json:"fileId"`
	IPAddress string  `json:"ipAddress"`
	UserAgent *string `json:"userAgent"`
}

// recordDownloadResponse — ответ POST /downloads (201).
type recordDownloadResponse struct {
	ID           string  `json:"id"`
	FileID       string  `json:"fileId"`
	IPAddress    string  `json:"ipAddress"`
	UserAgent    *string `json:"userAgent,omitempty"`
	DownloadedAt string  `json:"downloadedAt"`
}

// RecordDownload — POST /downloads: регистрация факта скачивания.
// Кортеж расположения снимается с записи индекса на стороне сервера.
func (h *APIHandler) RecordDownload(w http.ResponseWriter, r *http.Request) {
	var req recordDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса: "+err.Error())
		return
	}
	if req.FileID == "" {
		apierrors.ValidationError(w, "поле fileId обязательно")
		return
	}

	e, err := h.downloads.Record(r.Context(), service.RecordDownloadInput{
		FileID:    req.FileID,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, recordDownloadResponse{
		ID:           e.ID,
		FileID:       req.FileID,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		DownloadedAt: e.DownloadedAt.Format(time.RFC3339),
	})
}
