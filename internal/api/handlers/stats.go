// stats.go — обработчик статистики просмотров.
// GET /api/v1/stats/views — агрегированная статистика по всем карточкам.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/mstepanov/cardpress/views-module/internal/service"
)

// StatsHandler — обработчик статистики просмотров.
type StatsHandler struct {
	stats  *service.StatsService
	logger *slog.Logger
}

// NewStatsHandler создаёт обработчик статистики.
func NewStatsHandler(stats *service.StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		stats:  stats,
		logger: logger.With(slog.String("component", "stats_handler")),
	}
}

// GetViewStats — GET /api/v1/stats/views.
// При недоступности хранилища сервисный слой возвращает нулевую
// статистику, поэтому ответ всегда 200.
func (h *StatsHandler) GetViewStats(w http.ResponseWriter, r *http.Request) {
	stats := h.stats.GetViewStats(r.Context())
	writeJSON(w, http.StatusOK, stats)
}
