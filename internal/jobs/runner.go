// Пакет jobs — запуск именованных служебных команд по требованию оператора.
//
// Runner выполняет заранее сконфигурированную shell-команду с жёстким
// wall-clock таймаутом, захватывает stdout и stderr (каждый усекается до
// лимита при сохранении) и записывает результат в журнал запусков.
// Это синхронный исполнитель с таймаутом, не планировщик: периодический
// запуск обеспечивается внешним триггером (cron, Kubernetes CronJob).
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mstepanov/cardpress/views-module/internal/domain/model"
	"github.com/mstepanov/cardpress/views-module/internal/repository"
)

// Prometheus метрики job runner-а.
var (
	jobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vm_job_runs_total",
			Help: "Общее количество запусков служебных команд",
		},
		[]string{"job", "status"},
	)

	jobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vm_job_duration_seconds",
			Help:    "Длительность выполнения служебных команд в секундах",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 600},
		},
		[]string{"job"},
	)
)

// Ошибки runner-а.
var (
	// ErrUnknownJob — команда с таким именем не сконфигурирована.
	ErrUnknownJob = errors.New("неизвестная команда")
	// ErrJobInProgress — команда уже выполняется.
	ErrJobInProgress = errors.New("команда уже выполняется")
)

// Runner — исполнитель именованных служебных команд.
type Runner struct {
	commands    map[string]string
	timeout     time.Duration
	outputLimit int
	runs        repository.JobRunRepository
	logger      *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool // имена выполняющихся сейчас команд
}

// NewRunner создаёт исполнитель команд.
// commands — карта имя → shell-команда из конфигурации.
func NewRunner(
	commands map[string]string,
	timeout time.Duration,
	outputLimit int,
	runs repository.JobRunRepository,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		commands:    commands,
		timeout:     timeout,
		outputLimit: outputLimit,
		runs:        runs,
		logger:      logger.With(slog.String("component", "job_runner")),
		inFlight:    make(map[string]bool),
	}
}

// Has возвращает true, если команда с таким именем сконфигурирована.
func (r *Runner) Has(name string) bool {
	_, ok := r.commands[name]
	return ok
}

// Run выполняет команду name и возвращает запись запуска.
// Подвисший процесс убивается по таймауту; частичный вывод сохраняется.
// Одновременно выполняется не более одного экземпляра каждой команды —
// повторный запуск возвращает ErrJobInProgress.
func (r *Runner) Run(ctx context.Context, name string) (*model.JobRun, error) {
	command, ok := r.commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	r.mu.Lock()
	if r.inFlight[name] {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobInProgress, name)
	}
	r.inFlight[name] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inFlight, name)
		r.mu.Unlock()
	}()

	run := r.execute(ctx, name, command)

	// Журнал — best effort: результат выполнения возвращается вызывающему
	// даже если запись в журнал не удалась.
	if err := r.runs.Record(ctx, run); err != nil {
		r.logger.Error("Ошибка записи запуска в журнал",
			slog.String("job", name),
			slog.String("run_id", run.RunID),
			slog.String("error", err.Error()),
		)
	}

	jobRunsTotal.WithLabelValues(name, run.Status).Inc()
	jobDurationSeconds.WithLabelValues(name).Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())

	return run, nil
}

// History возвращает последние запуски команды name из журнала.
func (r *Runner) History(ctx context.Context, name string, limit int) ([]*model.JobRun, error) {
	return r.runs.ListByName(ctx, name, limit)
}

// execute запускает команду через /bin/sh -c с таймаутом и захватом вывода.
func (r *Runner) execute(ctx context.Context, name, command string) *model.JobRun {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	run := &model.JobRun{
		RunID:     uuid.New().String(),
		JobName:   name,
		StartedAt: time.Now().UTC(),
	}

	r.logger.Info("Запуск команды",
		slog.String("job", name),
		slog.String("run_id", run.RunID),
	)

	stdout := newCappedBuffer(r.outputLimit)
	stderr := newCappedBuffer(r.outputLimit)

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Потомки убитого shell-а могут держать pipe открытым;
	// не ждём их дольше секунды после отмены контекста.
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	run.FinishedAt = time.Now().UTC()
	run.Stdout = stdout.String()
	run.Stderr = stderr.String()

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		run.Status = model.JobStatusTimeout
		r.logger.Warn("Команда прервана по таймауту",
			slog.String("job", name),
			slog.String("run_id", run.RunID),
			slog.String("timeout", r.timeout.String()),
		)
	case err != nil:
		run.Status = model.JobStatusFailure
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		run.ExitCode = &exitCode
		r.logger.Warn("Команда завершилась с ошибкой",
			slog.String("job", name),
			slog.String("run_id", run.RunID),
			slog.Int("exit_code", exitCode),
		)
	default:
		run.Status = model.JobStatusSuccess
		exitCode := 0
		run.ExitCode = &exitCode
		r.logger.Info("Команда выполнена",
			slog.String("job", name),
			slog.String("run_id", run.RunID),
			slog.Duration("duration", run.FinishedAt.Sub(run.StartedAt)),
		)
	}

	return run
}

// cappedBuffer — буфер с жёстким лимитом размера.
// Байты сверх лимита отбрасываются, запись никогда не возвращает ошибку:
// многословный процесс не должен падать из-за усечения вывода.
type cappedBuffer struct {
	buf   []byte
	limit int
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if remaining := b.limit - len(b.buf); remaining > 0 {
		if len(p) > remaining {
			b.buf = append(b.buf, p[:remaining]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return string(b.buf)
}
