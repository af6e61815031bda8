// view_ledger.go — репозиторий леджера просмотров.
// Таблица view_ledger: ровно одна строка на пару (card_id, fingerprint).
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mstepanov/cardpress/views-module/internal/domain/model"
)

// ViewLedgerRepository — операции леджера просмотров.
type ViewLedgerRepository interface {
	// Find возвращает запись по ключу или ErrNotFound.
	// Просроченные записи тоже возвращаются: оценка срока жизни —
	// обязанность вызывающего, хранилище остаётся простым примитивом.
	Find(ctx context.Context, cardID, fingerprint string) (*model.ViewRecord, error)
	// Upsert создаёт запись или перезаписывает изменяемые поля существующей
	// (client_addr, user_agent, expires_at). created_at при повторном upsert
	// сохраняется. Атомарен per-key (INSERT ... ON CONFLICT DO UPDATE).
	Upsert(ctx context.Context, rec *model.ViewRecord) error
	// DeleteExpired удаляет все записи с expires_at < now, возвращает количество.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// CountAll возвращает общее количество записей леджера.
	CountAll(ctx context.Context) (int64, error)
	// CountExpired возвращает количество просроченных записей на момент now.
	CountExpired(ctx context.Context, now time.Time) (int64, error)
	// CountCreatedSince возвращает количество записей, созданных после since.
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
}

// viewLedgerRepo — реализация ViewLedgerRepository.
type viewLedgerRepo struct {
	db DBTX
}

// NewViewLedgerRepository создаёт репозиторий леджера просмотров.
func NewViewLedgerRepository(db DBTX) ViewLedgerRepository {
	return &viewLedgerRepo{db: db}
}

func (r *viewLedgerRepo) Find(ctx context.Context, cardID, fingerprint string) (*model.ViewRecord, error) {
	query := `
		SELECT card_id, fingerprint, client_addr, user_agent, created_at, expires_at
		FROM view_ledger
		WHERE card_id = $1 AND fingerprint = $2`

	rec := &model.ViewRecord{}
	err := r.db.QueryRow(ctx, query, cardID, fingerprint).Scan(
		&rec.CardID, &rec.Fingerprint, &rec.ClientAddr, &rec.UserAgent,
		&rec.CreatedAt, &rec.ExpiresAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска записи просмотра: %w", err)
	}
	return rec, nil
}

func (r *viewLedgerRepo) Upsert(ctx context.Context, rec *model.ViewRecord) error {
	// created_at не входит в DO UPDATE: момент первого наблюдения пары
	// сохраняется, продлевается только expires_at (и диагностические поля).
	query := `
		INSERT INTO view_ledger (card_id, fingerprint, client_addr, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (card_id, fingerprint) DO UPDATE SET
			client_addr = EXCLUDED.client_addr,
			user_agent  = EXCLUDED.user_agent,
			expires_at  = EXCLUDED.expires_at
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		rec.CardID, rec.Fingerprint, rec.ClientAddr, rec.UserAgent, rec.ExpiresAt,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка upsert записи просмотра: %w", err)
	}
	return nil
}

func (r *viewLedgerRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	// Граница включительно: запись с expires_at == now уже просрочена.
	query := `DELETE FROM view_ledger WHERE expires_at <= $1`

	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления просроченных записей: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *viewLedgerRepo) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM view_ledger`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей леджера: %w", err)
	}
	return count, nil
}

func (r *viewLedgerRepo) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM view_ledger WHERE expires_at <= $1`, now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта просроченных записей: %w", err)
	}
	return count, nil
}

func (r *viewLedgerRepo) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM view_ledger WHERE created_at >= $1`, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей за окно: %w", err)
	}
	return count, nil
}
