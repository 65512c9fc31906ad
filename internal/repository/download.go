package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/elaunira/r2index/internal/domain/model"
)

// DownloadRepository — доступ к таблице download_events.
type DownloadRepository interface {
	// Insert записывает событие скачивания (append-only).
	Insert(ctx context.Context, e *model.DownloadEvent) error
	// TimeseriesGroups возвращает группы (bucket, кортеж) с количеством
	// скачиваний и уникальных IP в каждой группе; bucket ASC, downloads DESC.
	TimeseriesGroups(ctx context.Context, scale string, lo, hi int64, filter TupleFilter) ([]TimeseriesGroup, error)
	// BucketUniqueIPs возвращает точное число уникальных IP на bucket
	// БЕЗ группировки по кортежу — из групп его не вывести:
	// один IP мог скачать несколько разных файлов в одном bucket'е.
	BucketUniqueIPs(ctx context.Context, scale string, lo, hi int64, filter TupleFilter) (map[int64]int64, error)
	// Summary возвращает точные итоги за период: всего скачиваний,
	// уникальных IP, уникальных кортежей.
	Summary(ctx context.Context, from, to time.Time, filter TupleFilter) (SummaryStats, error)
	// UserAgentStats возвращает статистику по user-agent'ам, downloads DESC,
	// NULL user-agent исключается из рейтинга.
	UserAgentStats(ctx context.Context, from, to time.Time, filter TupleFilter, limit int) ([]UserAgentStat, error)
	// CountByIP возвращает точное число скачиваний IP за период.
	CountByIP(ctx context.Context, ip string, from, to time.Time) (int64, error)
	// ListByIP возвращает страницу событий IP, downloaded_at DESC.
	ListByIP(ctx context.Context, ip string, from, to time.Time, limit, offset int) ([]*model.DownloadEvent, error)
	// DeleteOlderThan удаляет события старше cutoff. Идемпотентна.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TupleFilter — фильтр по любому подмножеству полей кортежа расположения.
type TupleFilter struct {
	Bucket         *string
	RemotePath     *string
	RemoteFilename *string
	RemoteVersion  *string
}

// TimeseriesGroup — одна группа (bucket, кортеж) временного ряда.
type TimeseriesGroup struct {
	Bucket    int64
	Tuple     model.RemoteTuple
	Downloads int64
	UniqueIPs int64
}

// SummaryStats — точные итоги за период.
type SummaryStats struct {
	TotalDownloads int64
	UniqueIPs      int64
	UniqueFiles    int64
}

// UserAgentStat — статистика одного user-agent.
type UserAgentStat struct {
	UserAgent string
	Downloads int64
	UniqueIPs int64
}

// bucketColumns — allow-list колонок bucket'ов по масштабу.
var bucketColumns = map[string]string{
	"hour":  "hour_bucket",
	"day":   "day_bucket",
	"month": "month_bucket",
}

// IsValidScale сообщает, допустим ли масштаб временного ряда.
func IsValidScale(scale string) bool {
	_, ok := bucketColumns[scale]
	return ok
}

type downloadRepo struct {
	db DBTX
}

// NewDownloadRepository создаёт репозиторий событий скачивания.
func NewDownloadRepository(db DBTX) DownloadRepository {
	return &downloadRepo{db: db}
}

func (r *downloadRepo) Insert(ctx context.Context, e *model.DownloadEvent) error {
	query := `
		INSERT INTO download_events (id, bucket, remote_path, remote_filename, remote_version,
			ip_address, user_agent, downloaded_at, hour_bucket, day_bucket, month_bucket)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		e.ID, e.Bucket, e.RemotePath, e.RemoteFilename, e.RemoteVersion,
		e.IPAddress, e.UserAgent, e.DownloadedAt, e.HourBucket, e.DayBucket, e.MonthBucket,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи события скачивания: %w", err)
	}
	return nil
}

// buildTupleWhere строит условия фильтра по подмножеству полей кортежа.
func buildTupleWhere(filter TupleFilter, startArg int) ([]string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	addEq := func(col string, val any) {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col, argNum))
		args = append(args, val)
		argNum++
	}

	if filter.Bucket != nil {
		addEq("bucket", *filter.Bucket)
	}
	if filter.RemotePath != nil {
		addEq("remote_path", *filter.RemotePath)
	}
	if filter.RemoteFilename != nil {
		addEq("remote_filename", *filter.RemoteFilename)
	}
	if filter.RemoteVersion != nil {
		addEq("remote_version", *filter.RemoteVersion)
	}
	return conditions, args
}

func (r *downloadRepo) TimeseriesGroups(ctx context.Context, scale string, lo, hi int64, filter TupleFilter) ([]TimeseriesGroup, error) {
	col, ok := bucketColumns[scale]
	if !ok {
		return nil, fmt.Errorf("недопустимый масштаб: %q", scale)
	}

	conditions := []string{
		fmt.Sprintf("%s >= $1", col),
		fmt.Sprintf("%s <= $2", col),
	}
	args := []any{lo, hi}
	tupleConds, tupleArgs := buildTupleWhere(filter, 3)
	conditions = append(conditions, tupleConds...)
	args = append(args, tupleArgs...)

	query := fmt.Sprintf(`
		SELECT %s, bucket, remote_path, remote_filename, remote_version,
			COUNT(*) AS downloads, COUNT(DISTINCT ip_address) AS unique_ips
		FROM download_events
		WHERE %s
		GROUP BY %s, bucket, remote_path, remote_filename, remote_version
		ORDER BY %s ASC, downloads DESC, bucket, remote_path, remote_filename, remote_version`,
		col, strings.Join(conditions, " AND "), col, col)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка агрегации временного ряда: %w", err)
	}
	defer rows.Close()

	var result []TimeseriesGroup
	for rows.Next() {
		var g TimeseriesGroup
		err := rows.Scan(&g.Bucket, &g.Tuple.Bucket, &g.Tuple.RemotePath,
			&g.Tuple.RemoteFilename, &g.Tuple.RemoteVersion, &g.Downloads, &g.UniqueIPs)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования группы ряда: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (r *downloadRepo) BucketUniqueIPs(ctx context.Context, scale string, lo, hi int64, filter TupleFilter) (map[int64]int64, error) {
	col, ok := bucketColumns[scale]
	if !ok {
		return nil, fmt.Errorf("недопустимый масштаб: %q", scale)
	}

	conditions := []string{
		fmt.Sprintf("%s >= $1", col),
		fmt.Sprintf("%s <= $2", col),
	}
	args := []any{lo, hi}
	tupleConds, tupleArgs := buildTupleWhere(filter, 3)
	conditions = append(conditions, tupleConds...)
	args = append(args, tupleArgs...)

	query := fmt.Sprintf(`
		SELECT %s, COUNT(DISTINCT ip_address)
		FROM download_events
		WHERE %s
		GROUP BY %s`, col, strings.Join(conditions, " AND "), col)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта уникальных IP: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]int64)
	for rows.Next() {
		var bucket, uniques int64
		if err := rows.Scan(&bucket, &uniques); err != nil {
			return nil, fmt.Errorf("ошибка сканирования уникальных IP: %w", err)
		}
		result[bucket] = uniques
	}
	return result, rows.Err()
}

func (r *downloadRepo) Summary(ctx context.Context, from, to time.Time, filter TupleFilter) (SummaryStats, error) {
	conditions := []string{"downloaded_at >= $1", "downloaded_at <= $2"}
	args := []any{from, to}
	tupleConds, tupleArgs := buildTupleWhere(filter, 3)
	conditions = append(conditions, tupleConds...)
	args = append(args, tupleArgs...)

	query := fmt.Sprintf(`
		SELECT COUNT(*),
			COUNT(DISTINCT ip_address),
			COUNT(DISTINCT (bucket, remote_path, remote_filename, remote_version))
		FROM download_events
		WHERE %s`, strings.Join(conditions, " AND "))

	var s SummaryStats
	err := r.db.QueryRow(ctx, query, args...).Scan(&s.TotalDownloads, &s.UniqueIPs, &s.UniqueFiles)
	if err != nil {
		return SummaryStats{}, fmt.Errorf("ошибка подсчёта итогов: %w", err)
	}
	return s, nil
}

func (r *downloadRepo) UserAgentStats(ctx context.Context, from, to time.Time, filter TupleFilter, limit int) ([]UserAgentStat, error) {
	conditions := []string{"downloaded_at >= $1", "downloaded_at <= $2", "user_agent IS NOT NULL"}
	args := []any{from, to}
	tupleConds, tupleArgs := buildTupleWhere(filter, 3)
	conditions = append(conditions, tupleConds...)
	args = append(args, tupleArgs...)

	query := fmt.Sprintf(`
		SELECT user_agent, COUNT(*) AS downloads, COUNT(DISTINCT ip_address) AS unique_ips
		FROM download_events
		WHERE %s
		GROUP BY user_agent
		ORDER BY downloads DESC, user_agent
		LIMIT $%d`, strings.Join(conditions, " AND "), len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка агрегации user-agent: %w", err)
	}
	defer rows.Close()

	var result []UserAgentStat
	for rows.Next() {
		var s UserAgentStat
		if err := rows.Scan(&s.UserAgent, &s.Downloads, &s.UniqueIPs); err != nil {
			return nil, fmt.Errorf("ошибка сканирования user-agent: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *downloadRepo) CountByIP(ctx context.Context, ip string, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM download_events
		WHERE ip_address = $1 AND downloaded_at >= $2 AND downloaded_at <= $3`,
		ip, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта скачиваний IP: %w", err)
	}
	return count, nil
}

func (r *downloadRepo) ListByIP(ctx context.Context, ip string, from, to time.Time, limit, offset int) ([]*model.DownloadEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, bucket, remote_path, remote_filename, remote_version,
			ip_address, user_agent, downloaded_at, hour_bucket, day_bucket, month_bucket
		FROM download_events
		WHERE ip_address = $1 AND downloaded_at >= $2 AND downloaded_at <= $3
		ORDER BY downloaded_at DESC, id
		LIMIT $4 OFFSET $5`, ip, from, to, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения скачиваний IP: %w", err)
	}
	defer rows.Close()

	var result []*model.DownloadEvent
	for rows.Next() {
		e := &model.DownloadEvent{}
		err := rows.Scan(&e.ID, &e.Bucket, &e.RemotePath, &e.RemoteFilename, &e.RemoteVersion,
			&e.IPAddress, &e.UserAgent, &e.DownloadedAt, &e.HourBucket, &e.DayBucket, &e.MonthBucket)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования события: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *downloadRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM download_events WHERE downloaded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления устаревших событий: %w", err)
	}
	return tag.RowsAffected(), nil
}
