// jobs.go — обработчики служебных заданий.
// POST /api/v1/jobs/{name}/run — синхронный запуск задания
// GET /api/v1/jobs/{name}/runs — история запусков
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/mstepanov/cardpress/views-module/internal/api/errors"
	"github.com/mstepanov/cardpress/views-module/internal/domain/model"
	"github.com/mstepanov/cardpress/views-module/internal/jobs"
)

// defaultRunsLimit — число записей истории по умолчанию.
const defaultRunsLimit = 20

// maxRunsLimit — максимальное число записей истории за один запрос.
const maxRunsLimit = 100

// JobsHandler — обработчик служебных заданий.
type JobsHandler struct {
	runner *jobs.Runner
	logger *slog.Logger
}

// NewJobsHandler создаёт обработчик служебных заданий.
func NewJobsHandler(runner *jobs.Runner, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		runner: runner,
		logger: logger.With(slog.String("component", "jobs_handler")),
	}
}

// RunJob — POST /api/v1/jobs/{name}/run.
// Выполняет задание синхронно и возвращает результат запуска.
func (h *JobsHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		apierrors.ValidationError(w, "Не указано имя задания")
		return
	}

	run, err := h.runner.Run(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrUnknownJob):
			apierrors.NotFound(w, "Задание не сконфигурировано: "+name)
		case errors.Is(err, jobs.ErrJobInProgress):
			apierrors.JobInProgress(w, "Задание уже выполняется: "+name)
		default:
			h.logger.Error("Ошибка запуска задания",
				slog.String("job", name),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Не удалось запустить задание")
		}
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// ListJobRuns — GET /api/v1/jobs/{name}/runs?limit=N.
// Возвращает последние запуски задания в обратном хронологическом порядке.
func (h *JobsHandler) ListJobRuns(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		apierrors.ValidationError(w, "Не указано имя задания")
		return
	}

	if !h.runner.Has(name) {
		apierrors.NotFound(w, "Задание не сконфигурировано: "+name)
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			apierrors.ValidationError(w, "Параметр limit должен быть положительным числом")
			return
		}
		limit = parsed
		if limit > maxRunsLimit {
			limit = maxRunsLimit
		}
	}

	runs, err := h.runner.History(r.Context(), name, limit)
	if err != nil {
		h.logger.Error("Ошибка чтения истории запусков",
			slog.String("job", name),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Не удалось прочитать историю запусков")
		return
	}

	if runs == nil {
		runs = []*model.JobRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}
