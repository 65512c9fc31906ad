package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/elaunira/r2index/internal/domain/model"
)

// FileRepository — доступ к таблице file_records.
type FileRepository interface {
	// Upsert вставляет запись или обновляет существующую по кортежу расположения.
	// Возвращает true, если была создана новая запись.
	// ID и created_at/updated_at записываются обратно в f.
	Upsert(ctx context.Context, f *model.FileRecord) (created bool, err error)
	// GetByID возвращает запись по UUID.
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	// GetByTuple возвращает запись по кортежу расположения.
	GetByTuple(ctx context.Context, t model.RemoteTuple) (*model.FileRecord, error)
	// List возвращает страницу записей по фильтрам, created_at DESC.
	List(ctx context.Context, filters FileFilters, limit, offset int) ([]*model.FileRecord, error)
	// Count возвращает количество записей по фильтрам (до пагинации).
	Count(ctx context.Context, filters FileFilters) (int, error)
	// GroupCount возвращает количество записей на каждое уникальное значение
	// поля field (из allow-list), по убыванию количества.
	GroupCount(ctx context.Context, field string, filters FileFilters) ([]GroupCount, error)
	// ListAll возвращает все записи по фильтрам без пагинации,
	// упорядоченные по (entity, extension, updated_at) для материализации индекса.
	ListAll(ctx context.Context, filters FileFilters) ([]*model.FileRecord, error)
	// Update применяет частичное обновление. ErrNotFound, если id не существует,
	// ErrConflict — если новый кортеж занят другой записью.
	Update(ctx context.Context, id string, upd FileUpdate) error
	// DeleteByID удаляет запись по UUID. Теги каскадируются.
	DeleteByID(ctx context.Context, id string) error
	// DeleteByTuple удаляет запись по кортежу расположения.
	DeleteByTuple(ctx context.Context, t model.RemoteTuple) error
	// ResolveIDsByTuples возвращает id текущих записей для набора кортежей.
	// Кортежи без записи в индексе в результат не попадают.
	ResolveIDsByTuples(ctx context.Context, tuples []model.RemoteTuple) (map[model.RemoteTuple]string, error)
}

// FileFilters — фильтры равенства + фильтр тегов для поиска.
type FileFilters struct {
	Bucket     *string
	Category   *string
	Entity     *string
	Extension  *string
	MediaType  *string
	Deprecated *bool
	// Tags — запись подходит, только если имеет КАЖДЫЙ из перечисленных тегов.
	Tags []string
}

// GroupCount — количество записей для одного уникального значения поля.
type GroupCount struct {
	Value string
	Count int
}

// FileUpdate — частичное обновление записи. nil-поле — без изменения.
type FileUpdate struct {
	Bucket            *string
	RemotePath        *string
	RemoteFilename    *string
	RemoteVersion     *string
	Category          *string
	Entity            *string
	Extension         *string
	MediaType         *string
	Name              *string
	Size              *int64
	ChecksumMD5       *string
	ChecksumSHA1      *string
	ChecksumSHA256    *string
	ChecksumSHA512    *string
	MetadataPath      *string
	Extra             map[string]any
	Deprecated        *bool
	DeprecationReason *string
}

// groupColumns — allow-list полей для group_by.
// Ключ — имя поля в API, значение — имя колонки в SQL.
var groupColumns = map[string]string{
	"bucket":     "bucket",
	"category":   "category",
	"entity":     "entity",
	"extension":  "extension",
	"media_type": "media_type",
	"deprecated": "deprecated",
}

// IsGroupableField сообщает, допустимо ли поле для group_by.
func IsGroupableField(field string) bool {
	_, ok := groupColumns[field]
	return ok
}

const fileColumns = `id, bucket, remote_path, remote_filename, remote_version,
		category, entity, extension, media_type, name, size,
		checksum_md5, checksum_sha1, checksum_sha256, checksum_sha512,
		metadata_path, extra, deprecated, deprecation_reason, created_at, updated_at`

type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлового индекса.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) Upsert(ctx context.Context, f *model.FileRecord) (bool, error) {
	// xmax = 0 — признак того, что строка была вставлена, а не обновлена.
	query := `
		INSERT INTO file_records (id, bucket, remote_path, remote_filename, remote_version,
			category, entity, extension, media_type, name, size,
			checksum_md5, checksum_sha1, checksum_sha256, checksum_sha512,
			metadata_path, extra, deprecated, deprecation_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (bucket, remote_path, remote_filename, remote_version) DO UPDATE SET
			category = EXCLUDED.category,
			entity = EXCLUDED.entity,
			extension = EXCLUDED.extension,
			media_type = EXCLUDED.media_type,
			name = EXCLUDED.name,
			size = EXCLUDED.size,
			checksum_md5 = EXCLUDED.checksum_md5,
			checksum_sha1 = EXCLUDED.checksum_sha1,
			checksum_sha256 = EXCLUDED.checksum_sha256,
			checksum_sha512 = EXCLUDED.checksum_sha512,
			metadata_path = EXCLUDED.metadata_path,
			extra = EXCLUDED.extra,
			deprecated = EXCLUDED.deprecated,
			deprecation_reason = EXCLUDED.deprecation_reason,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS is_insert`

	var created bool
	err := r.db.QueryRow(ctx, query,
		f.ID, f.Bucket, f.RemotePath, f.RemoteFilename, f.RemoteVersion,
		f.Category, f.Entity, f.Extension, f.MediaType, f.Name, f.Size,
		f.ChecksumMD5, f.ChecksumSHA1, f.ChecksumSHA256, f.ChecksumSHA512,
		f.MetadataPath, f.Extra, f.Deprecated, f.DeprecationReason,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("ошибка upsert записи файла: %w", err)
	}
	return created, nil
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM file_records WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *fileRepo) GetByTuple(ctx context.Context, t model.RemoteTuple) (*model.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM file_records
		WHERE bucket = $1 AND remote_path = $2 AND remote_filename = $3 AND remote_version = $4`
	return r.getOne(ctx, query, t.Bucket, t.RemotePath, t.RemoteFilename, t.RemoteVersion)
}

func (r *fileRepo) getOne(ctx context.Context, query string, args ...any) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&f.ID, &f.Bucket, &f.RemotePath, &f.RemoteFilename, &f.RemoteVersion,
		&f.Category, &f.Entity, &f.Extension, &f.MediaType, &f.Name, &f.Size,
		&f.ChecksumMD5, &f.ChecksumSHA1, &f.ChecksumSHA256, &f.ChecksumSHA512,
		&f.MetadataPath, &f.Extra, &f.Deprecated, &f.DeprecationReason, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи файла: %w", err)
	}
	return f, nil
}

// buildFileWhere строит WHERE-условие и аргументы для фильтров поиска.
// Фильтр тегов требует наличия КАЖДОГО тега: подзапрос с
// HAVING COUNT(DISTINCT tag) = длине списка.
func buildFileWhere(filters FileFilters, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	addEq := func(col string, val any) {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col, argNum))
		args = append(args, val)
		argNum++
	}

	if filters.Bucket != nil {
		addEq("bucket", *filters.Bucket)
	}
	if filters.Category != nil {
		addEq("category", *filters.Category)
	}
	if filters.Entity != nil {
		addEq("entity", *filters.Entity)
	}
	if filters.Extension != nil {
		addEq("extension", *filters.Extension)
	}
	if filters.MediaType != nil {
		addEq("media_type", *filters.MediaType)
	}
	if filters.Deprecated != nil {
		addEq("deprecated", *filters.Deprecated)
	}
	if len(filters.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf(
			`id IN (SELECT file_id FROM file_tags WHERE tag = ANY($%d)
				GROUP BY file_id HAVING COUNT(DISTINCT tag) = $%d)`,
			argNum, argNum+1))
		args = append(args, filters.Tags, len(filters.Tags))
		argNum += 2
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

func (r *fileRepo) List(ctx context.Context, filters FileFilters, limit, offset int) ([]*model.FileRecord, error) {
	where, args := buildFileWhere(filters, 1)
	argNum := len(args) + 1

	query := fmt.Sprintf(`SELECT `+fileColumns+`
		FROM file_records
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, where, argNum, argNum+1)
	args = append(args, limit, offset)

	return r.queryMany(ctx, query, args...)
}

func (r *fileRepo) ListAll(ctx context.Context, filters FileFilters) ([]*model.FileRecord, error) {
	where, args := buildFileWhere(filters, 1)

	// Порядок определяет last-write-wins при свёртке индекса:
	// более поздняя запись (entity, extension) перезаписывает раннюю.
	query := fmt.Sprintf(`SELECT `+fileColumns+`
		FROM file_records
		%s
		ORDER BY entity, extension, updated_at`, where)

	return r.queryMany(ctx, query, args...)
}

func (r *fileRepo) queryMany(ctx context.Context, query string, args ...any) ([]*model.FileRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f := &model.FileRecord{}
		err := rows.Scan(
			&f.ID, &f.Bucket, &f.RemotePath, &f.RemoteFilename, &f.RemoteVersion,
			&f.Category, &f.Entity, &f.Extension, &f.MediaType, &f.Name, &f.Size,
			&f.ChecksumMD5, &f.ChecksumSHA1, &f.ChecksumSHA256, &f.ChecksumSHA512,
			&f.MetadataPath, &f.Extra, &f.Deprecated, &f.DeprecationReason, &f.CreatedAt, &f.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRepo) Count(ctx context.Context, filters FileFilters) (int, error) {
	where, args := buildFileWhere(filters, 1)

	query := fmt.Sprintf(`SELECT COUNT(*) FROM file_records %s`, where)

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return count, nil
}

func (r *fileRepo) GroupCount(ctx context.Context, field string, filters FileFilters) ([]GroupCount, error) {
	col, ok := groupColumns[field]
	if !ok {
		return nil, fmt.Errorf("недопустимое поле группировки: %q", field)
	}

	where, args := buildFileWhere(filters, 1)

	// ::text — boolean deprecated отдаётся строками "true"/"false".
	query := fmt.Sprintf(`
		SELECT %s::text AS val, COUNT(*) AS cnt
		FROM file_records
		%s
		GROUP BY %s
		ORDER BY cnt DESC, val`, col, where, col)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка группировки файлов: %w", err)
	}
	defer rows.Close()

	var result []GroupCount
	for rows.Next() {
		var g GroupCount
		if err := rows.Scan(&g.Value, &g.Count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования группы: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

// buildUpdateSet строит SET-часть частичного обновления.
func buildUpdateSet(upd FileUpdate) ([]string, []any) {
	var sets []string
	var args []any
	argNum := 1

	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argNum))
		args = append(args, val)
		argNum++
	}

	if upd.Bucket != nil {
		add("bucket", *upd.Bucket)
	}
	if upd.RemotePath != nil {
		add("remote_path", *upd.RemotePath)
	}
	if upd.RemoteFilename != nil {
		add("remote_filename", *upd.RemoteFilename)
	}
	if upd.RemoteVersion != nil {
		add("remote_version", *upd.RemoteVersion)
	}
	if upd.Category != nil {
		add("category", *upd.Category)
	}
	if upd.Entity != nil {
		add("entity", *upd.Entity)
	}
	if upd.Extension != nil {
		add("extension", *upd.Extension)
	}
	if upd.MediaType != nil {
		add("media_type", *upd.MediaType)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Size != nil {
		add("size", *upd.Size)
	}
	if upd.ChecksumMD5 != nil {
		add("checksum_md5", *upd.ChecksumMD5)
	}
	if upd.ChecksumSHA1 != nil {
		add("checksum_sha1", *upd.ChecksumSHA1)
	}
	if upd.ChecksumSHA256 != nil {
		add("checksum_sha256", *upd.ChecksumSHA256)
	}
	if upd.ChecksumSHA512 != nil {
		add("checksum_sha512", *upd.ChecksumSHA512)
	}
	if upd.MetadataPath != nil {
		add("metadata_path", *upd.MetadataPath)
	}
	if upd.Extra != nil {
		add("extra", upd.Extra)
	}
	if upd.Deprecated != nil {
		add("deprecated", *upd.Deprecated)
	}
	if upd.DeprecationReason != nil {
		add("deprecation_reason", *upd.DeprecationReason)
	}

	return sets, args
}

func (r *fileRepo) Update(ctx context.Context, id string, upd FileUpdate) error {
	sets, args := buildUpdateSet(upd)
	if len(sets) == 0 {
		// Менять нечего — но существование записи проверить обязаны.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	query := fmt.Sprintf(`UPDATE file_records SET %s WHERE id = $%d`,
		strings.Join(sets, ", "), len(args)+1)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: кортеж расположения занят другой записью", ErrConflict)
		}
		return fmt.Errorf("ошибка обновления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM file_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) DeleteByTuple(ctx context.Context, t model.RemoteTuple) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM file_records
		WHERE bucket = $1 AND remote_path = $2 AND remote_filename = $3 AND remote_version = $4`,
		t.Bucket, t.RemotePath, t.RemoteFilename, t.RemoteVersion)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) ResolveIDsByTuples(ctx context.Context, tuples []model.RemoteTuple) (map[model.RemoteTuple]string, error) {
	result := make(map[model.RemoteTuple]string, len(tuples))
	if len(tuples) == 0 {
		return result, nil
	}

	// Один запрос на всю пачку: IN по конструкторам строк.
	var values []string
	var args []any
	argNum := 1
	for _, t := range tuples {
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d)", argNum, argNum+1, argNum+2, argNum+3))
		args = append(args, t.Bucket, t.RemotePath, t.RemoteFilename, t.RemoteVersion)
		argNum += 4
	}

	query := fmt.Sprintf(`
		SELECT id, bucket, remote_path, remote_filename, remote_version
		FROM file_records
		WHERE (bucket, remote_path, remote_filename, remote_version) IN (%s)`,
		strings.Join(values, ", "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка разрешения кортежей: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var t model.RemoteTuple
		if err := rows.Scan(&id, &t.Bucket, &t.RemotePath, &t.RemoteFilename, &t.RemoteVersion); err != nil {
			return nil, fmt.Errorf("ошибка сканирования кортежа: %w", err)
		}
		result[t] = id
	}
	return result, rows.Err()
}
