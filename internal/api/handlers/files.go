// files.go — обработчики записей файлового индекса:
// поиск/группировка, upsert, точечные выборки, обновление, удаление,
// материализация индекса.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/elaunira/r2index/internal/api/errors"
	"github.com/elaunira/r2index/internal/domain/model"
	"github.com/elaunira/r2index/internal/repository"
)

// Ограничения полей записи.
const (
	maxTagsPerRecord = 20
	maxTagLength     = 50
)

// Фиксированные hex-длины контрольных сумм.
var checksumLengths = map[string]int{
	"md5":    32,
	"sha1":   40,
	"sha256": 64,
	"sha512": 128,
}

// fileCreateRequest — тело POST /files (upsert по кортежу).
type fileCreateRequest struct {
	Bucket            string         `json:"bucket"`
	RemotePath        string         `json:"remote_path"`
	RemoteFilename    string         `json:"remote_filename"`
	RemoteVersion     string         `json:"remote_version"`
	Category          string         `json:"category"`
	Entity            string         `json:"entity"`
	Extension         string         `json:"extension"`
	MediaType         string         `json:"media_type"`
	Name              *string        `json:"name"`
	Size              *int64         `json:"size"`
	MD5               *string        `json:"md5"`
	SHA1              *string        `json:"sha1"`
	SHA256            *string        `json:"sha256"`
	SHA512            *string        `json:"sha512"`
	MetadataPath      *string        `json:"metadata_path"`
	Extra             map[string]any `json:"extra"`
	Tags              []string       `json:"tags"`
	Deprecated        bool           `json:"deprecated"`
	DeprecationReason string         `json:"deprecation_reason"`
}

// fileUpdateRequest — тело PUT /files/{id} (частичное обновление).
// nil-поле — без изменения; Tags != nil — полная замена набора тегов.
type fileUpdateRequest struct {
	Bucket            *string        `json:"bucket"`
	RemotePath        *string        `json:"remote_path"`
	RemoteFilename    *string        `json:"remote_filename"`
	RemoteVersion     *string        `json:"remote_version"`
	Category          *string        `json:"category"`
	Entity            *string        `json:"entity"`
	Extension         *string        `json:"extension"`
	MediaType         *string        `json:"media_type"`
	Name              *string        `json:"name"`
	Size              *int64         `json:"size"`
	MD5               *string        `json:"md5"`
	SHA1              *string        `json:"sha1"`
	SHA256            *string        `json:"sha256"`
	SHA512            *string        `json:"sha512"`
	MetadataPath      *string        `json:"metadata_path"`
	Extra             map[string]any `json:"extra"`
	Tags              *[]string      `json:"tags"`
	Deprecated        *bool          `json:"deprecated"`
	DeprecationReason *string        `json:"deprecation_reason"`
}

// tupleRequest — кортеж расположения в теле DELETE /files.
type tupleRequest struct {
	Bucket         string `json:"bucket"`
	RemotePath     string `json:"remote_path"`
	RemoteFilename string `json:"remote_filename"`
	RemoteVersion  string `json:"remote_version"`
}

// fileListResponse — ответ непагинированного режима GET /files.
// page/pageSize обязательны для клиентской модели FileListResponse,
// limit/offset дублируют применённые параметры запроса.
type fileListResponse struct {
	Files    []*model.FileRecord `json:"files"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"pageSize"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
}

// groupEntry — одна группа в сгруппированном режиме GET /files.
type groupEntry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// fileGroupResponse — ответ сгруппированного режима GET /files.
type fileGroupResponse struct {
	GroupBy string       `json:"group_by"`
	Groups  []groupEntry `json:"groups"`
	Total   int          `json:"total"`
}

// ListFiles — GET /files: пагинированный список или, при наличии
// group_by, количество записей на уникальное значение поля.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFileFilters(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if field := r.URL.Query().Get("group_by"); field != "" {
		result, err := h.search.GroupBy(r.Context(), field, filters)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		groups := make([]groupEntry, len(result.Groups))
		for i, g := range result.Groups {
			groups[i] = groupEntry{Value: g.Value, Count: g.Count}
		}
		writeJSON(w, http.StatusOK, fileGroupResponse{
			GroupBy: result.Field,
			Groups:  groups,
			Total:   result.Total,
		})
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

	result, err := h.search.Search(r.Context(), filters, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if result.Items == nil {
		result.Items = []*model.FileRecord{}
	}
	writeJSON(w, http.StatusOK, fileListResponse{
		Files:    result.Items,
		Total:    result.Total,
		Page:     result.Offset/result.Limit + 1,
		PageSize: result.Limit,
		Limit:    result.Limit,
		Offset:   result.Offset,
	})
}

// UpsertFile — POST /files: создание или обновление по кортежу.
// 201 при создании, 200 при обновлении существующей записи.
func (h *APIHandler) UpsertFile(w http.ResponseWriter, r *http.Request) {
	var req fileCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	f := req.toRecord()
	saved, created, err := h.files.Upsert(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

// GetFile — GET /files/{id}.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.files.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// GetFileByTuple — GET /files/by-tuple: выборка по полному кортежу
// из query-параметров. Все четыре поля обязательны.
func (h *APIHandler) GetFileByTuple(w http.ResponseWriter, r *http.Request) {
	t, err := tupleFromQuery(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	f, err := h.files.GetByTuple(r.Context(), t)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// GetFileIndex — GET /files/index: материализованный индекс
// entity → extension → метаданные. Без пагинации.
func (h *APIHandler) GetFileIndex(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFileFilters(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	index, err := h.index.Materialize(r.Context(), filters)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, index)
}

// UpdateFile — PUT /files/{id}: частичное обновление.
func (h *APIHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	var req fileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	upd := repository.FileUpdate{
		Bucket:            req.Bucket,
		RemotePath:        req.RemotePath,
		RemoteFilename:    req.RemoteFilename,
		RemoteVersion:     req.RemoteVersion,
		Category:          req.Category,
		Entity:            req.Entity,
		Extension:         req.Extension,
		MediaType:         req.MediaType,
		Name:              req.Name,
		Size:              req.Size,
		ChecksumMD5:       req.MD5,
		ChecksumSHA1:      req.SHA1,
		ChecksumSHA256:    req.SHA256,
		ChecksumSHA512:    req.SHA512,
		MetadataPath:      req.MetadataPath,
		Extra:             req.Extra,
		Deprecated:        req.Deprecated,
		DeprecationReason: req.DeprecationReason,
	}

	var tags []string
	if req.Tags != nil {
		tags = *req.Tags
		if tags == nil {
			tags = []string{}
		}
	}

	f, err := h.files.Update(r.Context(), chi.URLParam(r, "id"), upd, tags)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// DeleteFile — DELETE /files/{id}.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.files.DeleteByID(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFileByTuple — DELETE /files: удаление по кортежу в теле запроса.
func (h *APIHandler) DeleteFileByTuple(w http.ResponseWriter, r *http.Request) {
	var req tupleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса: "+err.Error())
		return
	}
	if req.Bucket == "" || req.RemotePath == "" || req.RemoteFilename == "" || req.RemoteVersion == "" {
		apierrors.ValidationError(w, "все четыре поля кортежа обязательны")
		return
	}

	err := h.files.DeleteByTuple(r.Context(), model.RemoteTuple{
		Bucket:         req.Bucket,
		RemotePath:     req.RemotePath,
		RemoteFilename: req.RemoteFilename,
		RemoteVersion:  req.RemoteVersion,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Валидация и конвертация ---

// validate проверяет форму тела upsert-запроса.
func (req *fileCreateRequest) validate() error {
	for name, val := range map[string]string{
		"bucket":          req.Bucket,
		"remote_path":     req.RemotePath,
		"remote_filename": req.RemoteFilename,
		"remote_version":  req.RemoteVersion,
		"category":        req.Category,
		"entity":          req.Entity,
	} {
		if val == "" {
			return fmt.Errorf("поле %s обязательно", name)
		}
	}
	if req.Extension == "" {
		req.Extension = deriveExtension(req.RemoteFilename)
		if req.Extension == "" {
			return fmt.Errorf("поле extension обязательно: из %q его не вывести", req.RemoteFilename)
		}
	}
	if req.MediaType == "" {
		req.MediaType = "application/octet-stream"
	}
	if req.Size != nil && *req.Size < 0 {
		return fmt.Errorf("size не может быть отрицательным")
	}
	if err := validateChecksums(req.MD5, req.SHA1, req.SHA256, req.SHA512); err != nil {
		return err
	}
	return validateTags(req.Tags)
}

// validate проверяет форму тела частичного обновления.
func (req *fileUpdateRequest) validate() error {
	for name, val := range map[string]*string{
		"bucket":          req.Bucket,
		"remote_path":     req.RemotePath,
		"remote_filename": req.RemoteFilename,
		"remote_version":  req.RemoteVersion,
		"category":        req.Category,
		"entity":          req.Entity,
		"extension":       req.Extension,
		"media_type":      req.MediaType,
	} {
		if val != nil && *val == "" {
			return fmt.Errorf("поле %s не может быть пустым", name)
		}
	}
	if req.Size != nil && *req.Size < 0 {
		return fmt.Errorf("size не может быть отрицательным")
	}
	if err := validateChecksums(req.MD5, req.SHA1, req.SHA256, req.SHA512); err != nil {
		return err
	}
	if req.Tags != nil {
		return validateTags(*req.Tags)
	}
	return nil
}

// validateChecksums проверяет фиксированные hex-длины контрольных сумм.
func validateChecksums(md5, sha1, sha256, sha512 *string) error {
	for kind, val := range map[string]*string{
		"md5": md5, "sha1": sha1, "sha256": sha256, "sha512": sha512,
	} {
		if val != nil && len(*val) != checksumLengths[kind] {
			return fmt.Errorf("контрольная сумма %s должна быть длиной %d hex-символов", kind, checksumLengths[kind])
		}
	}
	return nil
}

// validateTags проверяет количество и длины тегов.
func validateTags(tags []string) error {
	if len(tags) > maxTagsPerRecord {
		return fmt.Errorf("не более %d тегов на запись", maxTagsPerRecord)
	}
	for _, tag := range tags {
		if len(tag) < 1 || len(tag) > maxTagLength {
			return fmt.Errorf("тег должен быть длиной 1–%d символов", maxTagLength)
		}
	}
	return nil
}

// deriveExtension выводит расширение из имени файла: всё после первой
// точки, чтобы сохранить составные расширения вида tar.gz.
func deriveExtension(filename string) string {
	if i := strings.Index(filename, "."); i >= 0 && i+1 < len(filename) {
		return filename[i+1:]
	}
	return ""
}

// toRecord конвертирует тело запроса в доменную модель.
func (req *fileCreateRequest) toRecord() *model.FileRecord {
	return &model.FileRecord{
		RemoteTuple: model.RemoteTuple{
			Bucket:         req.Bucket,
			RemotePath:     req.RemotePath,
			RemoteFilename: req.RemoteFilename,
			RemoteVersion:  req.RemoteVersion,
		},
		Category:          req.Category,
		Entity:            req.Entity,
		Extension:         req.Extension,
		MediaType:         req.MediaType,
		Name:              req.Name,
		Size:              req.Size,
		ChecksumMD5:       req.MD5,
		ChecksumSHA1:      req.SHA1,
		ChecksumSHA256:    req.SHA256,
		ChecksumSHA512:    req.SHA512,
		MetadataPath:      req.MetadataPath,
		Extra:             req.Extra,
		Tags:              req.Tags,
		Deprecated:        req.Deprecated,
		DeprecationReason: req.DeprecationReason,
	}
}

// tupleFromQuery собирает полный кортеж из query-параметров.
func tupleFromQuery(r *http.Request) (model.RemoteTuple, error) {
	t := model.RemoteTuple{
		Bucket:         r.URL.Query().Get("bucket"),
		RemotePath:     r.URL.Query().Get("remote_path"),
		RemoteFilename: r.URL.Query().Get("remote_filename"),
		RemoteVersion:  r.URL.Query().Get("remote_version"),
	}
	if t.Bucket == "" || t.RemotePath == "" || t.RemoteFilename == "" || t.RemoteVersion == "" {
		return t, fmt.Errorf("все четыре параметра кортежа обязательны")
	}
	return t, nil
}
