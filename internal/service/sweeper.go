// sweeper.go — сервис фоновой очистки просроченных записей леджера.
//
// Чистое обслуживание: мёртвые записи уже инертны для движка дедупликации,
// sweeper лишь освобождает место. Запускается как горутина с периодическим
// тикером (VM_SWEEP_INTERVAL) и дополнительно по требованию оператора
// через maintenance endpoint.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mstepanov/cardpress/views-module/internal/repository"
)

// Prometheus метрики sweeper-а.
var (
	// sweepRunsTotal — количество запусков очистки.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_sweep_runs_total",
		Help: "Общее количество запусков очистки леджера",
	})

	// sweepDeletedTotal — количество удалённых просроченных записей.
	sweepDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_sweep_deleted_total",
		Help: "Общее количество записей, удалённых очисткой",
	})

	// sweepDurationSeconds — длительность выполнения очистки.
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vm_sweep_duration_seconds",
		Help:    "Длительность выполнения очистки леджера в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного запуска очистки.
type SweepResult struct {
	// Deleted — количество удалённых записей
	Deleted int64
	// Duration — длительность выполнения
	Duration time.Duration
}

// SweeperService — сервис очистки просроченных записей леджера.
type SweeperService struct {
	ledger   repository.ViewLedgerRepository
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce в одном процессе
	cancel context.CancelFunc
}

// NewSweeperService создаёт сервис очистки.
func NewSweeperService(
	ledger repository.ViewLedgerRepository,
	interval time.Duration,
	logger *slog.Logger,
) *SweeperService {
	return &SweeperService{
		ledger:   ledger,
		interval: interval,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// Start запускает фоновую горутину очистки с периодическим тикером.
// Вызывается один раз при старте приложения.
func (s *SweeperService) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.run(sweepCtx)

	s.logger.Info("Sweeper запущен",
		slog.String("interval", s.interval.String()),
	)
}

// Stop останавливает фоновый процесс очистки.
func (s *SweeperService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("Sweeper остановлен")
}

// run — основной цикл фоновой горутины.
func (s *SweeperService) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл очистки: удаляет все записи с истёкшим
// expires_at и возвращает их количество. Идемпотентен: повторный запуск
// без новых просроченных записей возвращает 0. Живые записи не удаляются.
//
// Ошибка хранилища не пробрасывается: «в этот цикл ничего не очищено»,
// количество 0, повтор на следующем тике безопасен.
func (s *SweeperService) RunOnce(ctx context.Context) *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}

	now := s.now().UTC()

	deleted, err := s.ledger.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error("Ошибка очистки леджера, цикл пропущен",
			slog.String("error", err.Error()),
		)
		result.Duration = time.Since(start)
		return result
	}
	result.Deleted = deleted
	result.Duration = time.Since(start)

	// Обновляем Prometheus метрики
	sweepRunsTotal.Inc()
	sweepDeletedTotal.Add(float64(deleted))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	s.logger.Info("Очистка леджера завершена",
		slog.Int64("deleted", result.Deleted),
		slog.Duration("duration", result.Duration),
	)

	return result
}
