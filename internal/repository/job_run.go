// job_run.go — репозиторий журнала запусков служебных команд.
package repository

import (
	"context"
	"fmt"

	"github.com/mstepanov/cardpress/views-module/internal/domain/model"
)

// JobRunRepository — операции над журналом запусков команд.
type JobRunRepository interface {
	// Record сохраняет запись запуска команды.
	Record(ctx context.Context, run *model.JobRun) error
	// ListByName возвращает последние запуски команды, новые первыми.
	ListByName(ctx context.Context, jobName string, limit int) ([]*model.JobRun, error)
}

// jobRunRepo — реализация JobRunRepository.
type jobRunRepo struct {
	db DBTX
}

// NewJobRunRepository создаёт репозиторий журнала запусков.
func NewJobRunRepository(db DBTX) JobRunRepository {
	return &jobRunRepo{db: db}
}

func (r *jobRunRepo) Record(ctx context.Context, run *model.JobRun) error {
	query := `
		INSERT INTO job_runs (run_id, job_name, status, exit_code, stdout, stderr, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		run.RunID, run.JobName, run.Status, run.ExitCode,
		run.Stdout, run.Stderr, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: запуск с таким run_id уже записан", ErrConflict)
		}
		return fmt.Errorf("ошибка записи запуска команды: %w", err)
	}
	return nil
}

func (r *jobRunRepo) ListByName(ctx context.Context, jobName string, limit int) ([]*model.JobRun, error) {
	query := `
		SELECT run_id, job_name, status, exit_code, stdout, stderr, started_at, finished_at
		FROM job_runs
		WHERE job_name = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, jobName, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка запусков: %w", err)
	}
	defer rows.Close()

	var result []*model.JobRun
	for rows.Next() {
		run := &model.JobRun{}
		if err := rows.Scan(
			&run.RunID, &run.JobName, &run.Status, &run.ExitCode,
			&run.Stdout, &run.Stderr, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования запуска: %w", err)
		}
		result = append(result, run)
	}
	return result, rows.Err()
}
