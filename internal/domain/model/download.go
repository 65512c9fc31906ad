// download.go — модель события скачивания.
package model

import "time"

// DownloadEvent — одно событие скачивания (append-only, никогда не изменяется).
// Кортеж расположения дублирует FileRecord без FK: событие может ссылаться
// на кортеж, которого уже (или ещё) нет в индексе.
type DownloadEvent struct {
	// ID — UUID события
	ID string `json:"id"`
	// RemoteTuple — кортеж скачанного объекта
	RemoteTuple
	// IPAddress — IP-адрес клиента (IPv4/IPv6, ≤45 символов)
	IPAddress string `json:"ip_address"`
	// UserAgent — user-agent клиента (опционально)
	UserAgent *string `json:"user_agent,omitempty"`
	// DownloadedAt — время скачивания (назначается при записи, неизменяемо)
	DownloadedAt time.Time `json:"downloaded_at"`
	// Предвычисленные ключи временных bucket'ов для быстрой агрегации.
	// hour/day — epoch ms, выровненный к границе; month — UTC год*100+месяц.
	HourBucket  int64 `json:"hour_bucket"`
	DayBucket   int64 `json:"day_bucket"`
	MonthBucket int64 `json:"month_bucket"`
}
