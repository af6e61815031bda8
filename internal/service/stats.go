// stats.go — агрегатор статистики просмотров для дашбордов.
// Только чтение; любая ошибка хранилища даёт нулевую статистику,
// чтобы дашборды переживали временную недоступность PostgreSQL.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mstepanov/cardpress/views-module/internal/domain/model"
	"github.com/mstepanov/cardpress/views-module/internal/repository"
)

// uniqueViewsWindow — окно подсчёта уникальных зрителей.
const uniqueViewsWindow = 24 * time.Hour

// StatsService — read-only агрегатор статистики просмотров.
type StatsService struct {
	ledger   repository.ViewLedgerRepository
	counters repository.CardCounterRepository
	now      func() time.Time
	logger   *slog.Logger
}

// NewStatsService создаёт агрегатор статистики.
func NewStatsService(
	ledger repository.ViewLedgerRepository,
	counters repository.CardCounterRepository,
	logger *slog.Logger,
) *StatsService {
	return &StatsService{
		ledger:   ledger,
		counters: counters,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "stats")),
	}
}

// GetViewStats возвращает агрегированную статистику просмотров.
// При любой ошибке чтения возвращается нулевая статистика, ошибка — в лог.
func (s *StatsService) GetViewStats(ctx context.Context) *model.ViewStats {
	now := s.now().UTC()

	totalViews, err := s.counters.TotalViews(ctx)
	if err != nil {
		return s.zeroStats(err)
	}

	unique24h, err := s.ledger.CountCreatedSince(ctx, now.Add(-uniqueViewsWindow))
	if err != nil {
		return s.zeroStats(err)
	}

	totalLogs, err := s.ledger.CountAll(ctx)
	if err != nil {
		return s.zeroStats(err)
	}

	expiredLogs, err := s.ledger.CountExpired(ctx, now)
	if err != nil {
		return s.zeroStats(err)
	}

	return &model.ViewStats{
		TotalViews:     totalViews,
		UniqueViews24h: unique24h,
		TotalLogs:      totalLogs,
		ExpiredLogs:    expiredLogs,
	}
}

// zeroStats логирует ошибку и возвращает нулевую статистику.
func (s *StatsService) zeroStats(err error) *model.ViewStats {
	s.logger.Error("Ошибка чтения статистики, возвращены нули",
		slog.String("error", err.Error()),
	)
	return &model.ViewStats{}
}
