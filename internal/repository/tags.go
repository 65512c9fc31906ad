package repository

import (
	"context"
	"fmt"
)

// TagRepository — доступ к таблице file_tags.
type TagRepository interface {
	// Replace атомарно заменяет набор тегов записи (delete-all-then-insert).
	Replace(ctx context.Context, fileID string, tags []string) error
	// GetByFileIDs возвращает теги для пачки записей одним запросом.
	GetByFileIDs(ctx context.Context, fileIDs []string) (map[string][]string, error)
}

type tagRepo struct {
	db DBTX
}

// NewTagRepository создаёт репозиторий тегов.
func NewTagRepository(db DBTX) TagRepository {
	return &tagRepo{db: db}
}

func (r *tagRepo) Replace(ctx context.Context, fileID string, tags []string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM file_tags WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("ошибка удаления тегов: %w", err)
	}
	if len(tags) == 0 {
		return nil
	}

	// Вставка всей пачки одним запросом через unnest.
	_, err := r.db.Exec(ctx, `
		INSERT INTO file_tags (file_id, tag)
		SELECT $1, unnest($2::varchar[])
		ON CONFLICT DO NOTHING`, fileID, tags)
	if err != nil {
		return fmt.Errorf("ошибка вставки тегов: %w", err)
	}
	return nil
}

func (r *tagRepo) GetByFileIDs(ctx context.Context, fileIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(fileIDs))
	if len(fileIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT file_id, tag
		FROM file_tags
		WHERE file_id = ANY($1)
		ORDER BY file_id, tag`, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения тегов: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fileID, tag string
		if err := rows.Scan(&fileID, &tag); err != nil {
			return nil, fmt.Errorf("ошибка сканирования тега: %w", err)
		}
		result[fileID] = append(result[fileID], tag)
	}
	return result, rows.Err()
}
