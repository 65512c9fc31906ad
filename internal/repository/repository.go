// Пакет repository — доступ к PostgreSQL: таблицы file_records,
// file_tags и download_events. Чистый SQL через pgx, без ORM;
// динамические WHERE/SET собираются построителями в file.go и download.go.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись с таким id или кортежем расположения отсутствует.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — кортеж расположения занят другой записью
	// (ограничение uq_file_records_tuple).
	ErrConflict = errors.New("кортеж расположения уже занят")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx: одни и те же репозитории
// работают и с пулом напрямую, и внутри транзакции upsert+replace тегов.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner выполняет функцию в одной транзакции пула.
// Используется FileService.Upsert: запись индекса и полный набор её
// тегов публикуются атомарно.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner над пулом соединений.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции: ошибка fn откатывает её,
// успех — коммитит.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// pgUniqueViolation — SQLSTATE нарушения уникальности.
const pgUniqueViolation = "23505"

// isUniqueViolation сообщает, вызвана ли ошибка нарушением уникальности.
// Для file_records это конфликт кортежа расположения (uq_file_records_tuple).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
