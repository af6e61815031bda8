// maintenance.go — обработчик служебных операций обслуживания.
// POST /api/v1/maintenance/cleanup — внеочередная очистка просроченных записей.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/mstepanov/cardpress/views-module/internal/service"
)

// MaintenanceHandler — обработчик операций обслуживания.
type MaintenanceHandler struct {
	sweeper *service.SweeperService
	logger  *slog.Logger
}

// NewMaintenanceHandler создаёт обработчик операций обслуживания.
func NewMaintenanceHandler(sweeper *service.SweeperService, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		sweeper: sweeper,
		logger:  logger.With(slog.String("component", "maintenance_handler")),
	}
}

// cleanupResponse — результат внеочередной очистки.
type cleanupResponse struct {
	Deleted    int64 `json:"deleted"`
	DurationMs int64 `json:"duration_ms"`
}

// RunCleanup — POST /api/v1/maintenance/cleanup.
// Запускает немедленный проход очистки просроченных записей журнала.
// Ошибки хранилища не прерывают ответ: проход возвращает 0 удалённых.
func (h *MaintenanceHandler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	result := h.sweeper.RunOnce(r.Context())

	h.logger.Info("Внеочередная очистка выполнена",
		slog.Int64("deleted", result.Deleted),
		slog.Duration("duration", result.Duration),
	)

	writeJSON(w, http.StatusOK, cleanupResponse{
		Deleted:    result.Deleted,
		DurationMs: result.Duration.Milliseconds(),
	})
}
