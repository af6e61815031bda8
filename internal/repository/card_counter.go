// card_counter.go — репозиторий персистентных счётчиков просмотров карточек.
// Счётчик инкрементируется ровно тогда, когда движок дедупликации
// засчитал просмотр; инкремент атомарен на стороне PostgreSQL.
package repository

import (
	"context"
	"fmt"
)

// CardCounterRepository — операции над счётчиками просмотров.
type CardCounterRepository interface {
	// IncrementViews увеличивает счётчик карточки на единицу,
	// создавая строку при первом просмотре.
	IncrementViews(ctx context.Context, cardID string) error
	// TotalViews возвращает сумму счётчиков всех карточек.
	TotalViews(ctx context.Context) (int64, error)
	// Views возвращает счётчик одной карточки (0, если строки нет).
	Views(ctx context.Context, cardID string) (int64, error)
}

// cardCounterRepo — реализация CardCounterRepository.
type cardCounterRepo struct {
	db DBTX
}

// NewCardCounterRepository создаёт репозиторий счётчиков просмотров.
func NewCardCounterRepository(db DBTX) CardCounterRepository {
	return &cardCounterRepo{db: db}
}

func (r *cardCounterRepo) IncrementViews(ctx context.Context, cardID string) error {
	query := `
		INSERT INTO card_view_counters (card_id, view_count, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (card_id) DO UPDATE SET
			view_count = card_view_counters.view_count + 1,
			updated_at = now()`

	if _, err := r.db.Exec(ctx, query, cardID); err != nil {
		return fmt.Errorf("ошибка инкремента счётчика просмотров: %w", err)
	}
	return nil
}

func (r *cardCounterRepo) TotalViews(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(view_count), 0) FROM card_view_counters`,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта суммы просмотров: %w", err)
	}
	return total, nil
}

func (r *cardCounterRepo) Views(ctx context.Context, cardID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(
			(SELECT view_count FROM card_view_counters WHERE card_id = $1), 0)`,
		cardID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения счётчика просмотров: %w", err)
	}
	return count, nil
}
