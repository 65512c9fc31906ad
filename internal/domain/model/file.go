// Пакет model — доменные модели r2index.
// FileRecord — маппинг таблицы file_records (метаданные объекта в R2).
package model

import "time"

// RemoteTuple — кортеж расположения объекта в удалённом хранилище.
// Уникален для каждой записи file_records (natural key для upsert).
type RemoteTuple struct {
	// Bucket — имя S3/R2 bucket
	Bucket string `json:"bucket"`
	// RemotePath — путь в хранилище (например /releases/myapp)
	RemotePath string `json:"remote_path"`
	// RemoteFilename — имя файла в хранилище
	RemoteFilename string `json:"remote_filename"`
	// RemoteVersion — идентификатор версии (например v1.2.3)
	RemoteVersion string `json:"remote_version"`
}

// FileRecord — запись метаданных файла в индексе.
// Физический файл живёт в R2; запись только ссылается на него через RemoteTuple.
type FileRecord struct {
	// ID — UUID записи (назначается при создании, неизменяем)
	ID string `json:"id"`
	// RemoteTuple — кортеж расположения (уникален по всем записям)
	RemoteTuple
	// Category — категория файла
	Category string `json:"category"`
	// Entity — логическая сущность (продукт/компонент), к которой относится файл
	Entity string `json:"entity"`
	// Extension — расширение файла (без точки, например tar.gz)
	Extension string `json:"extension"`
	// MediaType — MIME-тип файла
	MediaType string `json:"media_type"`
	// Name — человекочитаемое имя (опционально)
	Name *string `json:"name,omitempty"`
	// Size — размер файла в байтах (опционально)
	Size *int64 `json:"size,omitempty"`
	// Контрольные суммы (hex, фиксированные длины 32/40/64/128)
	ChecksumMD5    *string `json:"md5,omitempty"`
	ChecksumSHA1   *string `json:"sha1,omitempty"`
	ChecksumSHA256 *string `json:"sha256,omitempty"`
	ChecksumSHA512 *string `json:"sha512,omitempty"`
	// MetadataPath — путь к сопутствующему файлу метаданных (опционально)
	MetadataPath *string `json:"metadata_path,omitempty"`
	// Extra — произвольные метаданные вызывающей стороны (JSON-дерево)
	Extra map[string]any `json:"extra,omitempty"`
	// Tags — теги файла (зависимое дочернее множество, ≤20 шт.)
	Tags []string `json:"tags"`
	// Deprecated — файл помечен как устаревший
	Deprecated bool `json:"deprecated"`
	// DeprecationReason — причина пометки (пустая строка, если не задана)
	DeprecationReason string `json:"deprecation_reason"`
	// CreatedAt — время создания записи (устанавливается один раз)
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt — время последнего изменения
	UpdatedAt time.Time `json:"updated_at"`
}
