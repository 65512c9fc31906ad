// buckets.go — чистая арифметика временных bucket'ов событий скачивания.
// Вычисляется один раз при записи события и сохраняется в строке.
package service

import "time"

// Миллисекунды в часе и сутках.
const (
	hourMillis = int64(3_600_000)
	dayMillis  = int64(86_400_000)
)

// BucketKeys — три ключа bucket'ов одного момента времени.
// hour/day — epoch ms, выровненный к границе; month — UTC год*100+месяц.
type BucketKeys struct {
	Hour  int64
	Day   int64
	Month int64
}

// Bucketize возвращает ключи bucket'ов для момента времени.
// Месяц всегда берётся в UTC.
func Bucketize(t time.Time) BucketKeys {
	ms := t.UnixMilli()
	utc := t.UTC()
	return BucketKeys{
		Hour:  floorAlign(ms, hourMillis),
		Day:   floorAlign(ms, dayMillis),
		Month: int64(utc.Year())*100 + int64(utc.Month()),
	}
}

// floorAlign выравнивает epoch ms к нижней границе bucket'а.
// Деление в Go усечённое к нулю, поэтому отрицательные ms (моменты
// до 1970 года, достижимые через start/end запроса) выравниваются
// отдельно — граница всегда берётся снизу.
func floorAlign(ms, size int64) int64 {
	q := ms / size
	if ms%size != 0 && ms < 0 {
		q--
	}
	return q * size
}

// BucketRange переводит epoch-ms границы запроса в пространство bucket'ов
// указанного масштаба. Для hour/day — выравнивание к границе в epoch ms,
// для month — преобразование в целые YYYYMM: запрос со scale=month
// сравнивает календарные месяцы, а не миллисекунды.
func BucketRange(scale string, startMS, endMS int64) (lo, hi int64) {
	switch scale {
	case "hour":
		return floorAlign(startMS, hourMillis), floorAlign(endMS, hourMillis)
	case "month":
		return monthKey(startMS), monthKey(endMS)
	default: // day
		return floorAlign(startMS, dayMillis), floorAlign(endMS, dayMillis)
	}
}

// monthKey переводит epoch ms в YYYYMM (UTC).
func monthKey(ms int64) int64 {
	t := time.UnixMilli(ms).UTC()
	return int64(t.Year())*100 + int64(t.Month())
}
