// maintenance.go — обработчики административных операций.
package handlers

import "net/http"

// cleanupResponse — ответ POST /maintenance/cleanup-downloads.
type cleanupResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

// CleanupDownloads — POST /maintenance/cleanup-downloads: немедленный
// проход retention-очистки событий скачивания.
func (h *APIHandler) CleanupDownloads(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.cleanup.RunOnce(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{DeletedCount: deleted})
}
