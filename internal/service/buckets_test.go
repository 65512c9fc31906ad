package service

import (
	"testing"
	"time"
)

// --- Тесты Bucketize ---

// TestBucketize проверяет формулы всех трёх bucket'ов.
func TestBucketize(t *testing.T) {
	// 2026-03-15 10:30:45.123 UTC
	at := time.Date(2026, 3, 15, 10, 30, 45, 123_000_000, time.UTC)
	keys := Bucketize(at)

	wantHour := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC).UnixMilli()
	if keys.Hour != wantHour {
		t.Errorf("Hour = %d, ожидался %d", keys.Hour, wantHour)
	}

	wantDay := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC).UnixMilli()
	if keys.Day != wantDay {
		t.Errorf("Day = %d, ожидался %d", keys.Day, wantDay)
	}

	if keys.Month != 202603 {
		t.Errorf("Month = %d, ожидался 202603", keys.Month)
	}
}

// TestBucketize_MonthUTC проверяет, что месяц берётся в UTC:
// момент 23:30 31 декабря в поясе UTC+3 — это уже январь локально,
// но по UTC ещё декабрь.
func TestBucketize_MonthUTC(t *testing.T) {
	msk := time.FixedZone("MSK", 3*3600)
	at := time.Date(2027, 1, 1, 1, 30, 0, 0, msk) // 2026-12-31 22:30 UTC
	keys := Bucketize(at)

	if keys.Month != 202612 {
		t.Errorf("Month = %d, ожидался 202612 (UTC)", keys.Month)
	}
}

// TestBucketize_ExactBoundary проверяет момент точно на границе часа.
func TestBucketize_ExactBoundary(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	keys := Bucketize(at)

	if keys.Hour != at.UnixMilli() {
		t.Errorf("Hour = %d, ожидался сам момент %d", keys.Hour, at.UnixMilli())
	}
}

// TestBucketize_Pre1970 проверяет выравнивание отрицательных epoch ms:
// граница bucket'а берётся снизу, а не усекается к нулю.
func TestBucketize_Pre1970(t *testing.T) {
	// 1969-12-31 23:30 UTC — отрицательные ms
	at := time.Date(1969, 12, 31, 23, 30, 0, 0, time.UTC)
	keys := Bucketize(at)

	wantHour := time.Date(1969, 12, 31, 23, 0, 0, 0, time.UTC).UnixMilli()
	if keys.Hour != wantHour {
		t.Errorf("Hour = %d, ожидался %d (нижняя граница, не округление вверх)", keys.Hour, wantHour)
	}

	wantDay := time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC).UnixMilli()
	if keys.Day != wantDay {
		t.Errorf("Day = %d, ожидался %d", keys.Day, wantDay)
	}

	if keys.Month != 196912 {
		t.Errorf("Month = %d, ожидался 196912", keys.Month)
	}
}

// --- Тесты BucketRange ---

// TestBucketRange_HourDay проверяет выравнивание границ к bucket'ам.
func TestBucketRange_HourDay(t *testing.T) {
	start := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC).UnixMilli()
	end := time.Date(2026, 3, 16, 23, 59, 0, 0, time.UTC).UnixMilli()

	lo, hi := BucketRange("hour", start, end)
	if lo != time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("hour lo = %d, ожидалось выравнивание к 10:00", lo)
	}
	if hi != time.Date(2026, 3, 16, 23, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("hour hi = %d, ожидалось выравнивание к 23:00", hi)
	}

	lo, hi = BucketRange("day", start, end)
	if lo != time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("day lo = %d, ожидалось начало суток 15-го", lo)
	}
	if hi != time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("day hi = %d, ожидалось начало суток 16-го", hi)
	}
}

// TestBucketRange_Pre1970 проверяет нижнее выравнивание отрицательных
// границ запроса.
func TestBucketRange_Pre1970(t *testing.T) {
	start := time.Date(1969, 12, 30, 6, 45, 0, 0, time.UTC).UnixMilli()
	end := time.Date(1969, 12, 31, 23, 59, 0, 0, time.UTC).UnixMilli()

	lo, hi := BucketRange("day", start, end)
	if lo != time.Date(1969, 12, 30, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("day lo = %d, ожидалось начало суток 30-го", lo)
	}
	if hi != time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("day hi = %d, ожидалось начало суток 31-го", hi)
	}
}

// TestBucketRange_Month проверяет преобразование epoch ms в YYYYMM:
// при scale=month границы сравниваются как календарные месяцы.
func TestBucketRange_Month(t *testing.T) {
	start := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC).UnixMilli()
	end := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC).UnixMilli()

	lo, hi := BucketRange("month", start, end)
	if lo != 202601 {
		t.Errorf("month lo = %d, ожидался 202601", lo)
	}
	if hi != 202603 {
		t.Errorf("month hi = %d, ожидался 202603", hi)
	}
}

// TestBucketRange_MonthSameMonth проверяет, что start и end внутри
// одного месяца дают одинаковые границы — такой запрос всегда
// покрывает весь календарный месяц.
func TestBucketRange_MonthSameMonth(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	end := time.Date(2026, 5, 31, 23, 59, 59, 0, time.UTC).UnixMilli()

	lo, hi := BucketRange("month", start, end)
	if lo != hi || lo != 202605 {
		t.Errorf("month lo/hi = %d/%d, ожидались равные 202605", lo, hi)
	}
}
