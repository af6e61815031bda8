// views.go — обработчик регистрации просмотров карточек.
// POST /api/v1/cards/{cardId}/view — публичный endpoint, вызывается
// при каждой отдаче карточки. Дедупликация выполняется сервисным слоем.
package handlers

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/mstepanov/cardpress/views-module/internal/api/errors"
	"github.com/mstepanov/cardpress/views-module/internal/service"
)

// CardCounter — интерфейс инкремента счётчика просмотров карточки.
type CardCounter interface {
	IncrementViews(ctx context.Context, cardID string) error
}

// ViewsHandler — обработчик регистрации просмотров.
type ViewsHandler struct {
	dedup   *service.DedupService
	counter CardCounter
	logger  *slog.Logger
}

// NewViewsHandler создаёт обработчик регистрации просмотров.
func NewViewsHandler(dedup *service.DedupService, counter CardCounter, logger *slog.Logger) *ViewsHandler {
	return &ViewsHandler{
		dedup:   dedup,
		counter: counter,
		logger:  logger.With(slog.String("component", "views_handler")),
	}
}

// viewResponse — ответ на регистрацию просмотра.
type viewResponse struct {
	CardID  string `json:"card_id"`
	Counted bool   `json:"counted"`
}

// RegisterView — POST /api/v1/cards/{cardId}/view.
// Извлекает сигналы запроса, принимает решение о дедупликации и при
// положительном решении инкрементирует счётчик просмотров карточки.
func (h *ViewsHandler) RegisterView(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardId")
	if cardID == "" {
		apierrors.ValidationError(w, "Не указан идентификатор карточки")
		return
	}

	signals := extractSignals(r)
	counted := h.dedup.ShouldCountView(r.Context(), cardID, signals)

	if counted {
		if err := h.counter.IncrementViews(r.Context(), cardID); err != nil {
			// Запись в журнале уже есть — просмотр считаем учтённым,
			// расхождение счётчика фиксируем в логе.
			h.logger.Error("Не удалось инкрементировать счётчик просмотров",
				slog.String("card_id", cardID),
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, http.StatusOK, viewResponse{
		CardID:  cardID,
		Counted: counted,
	})
}

// extractSignals собирает сигналы дедупликации из HTTP-запроса.
func extractSignals(r *http.Request) service.RequestSignals {
	return service.RequestSignals{
		ClientAddr:     clientAddr(r),
		UserAgent:      r.Header.Get("User-Agent"),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
		Referrer:       r.Header.Get("Referer"),
	}
}

// clientAddr определяет адрес клиента.
// Приоритет: первый адрес из X-Forwarded-For (добавляется балансировщиком),
// затем адрес соединения, затем "unknown".
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.Index(xff, ","); idx >= 0 {
			first = xff[:idx]
		}
		if addr := strings.TrimSpace(first); addr != "" {
			return addr
		}
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}

	return "unknown"
}
