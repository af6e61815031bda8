// dedup.go — движок дедупликации просмотров.
//
// Отвечает на вопрос «засчитывать ли этот просмотр»: просмотр засчитывается,
// если пара (карточка, отпечаток зрителя) не наблюдалась в пределах живого
// TTL-окна. Последовательность find → upsert не атомарна: два одновременных
// первых просмотра нового ключа могут оба вернуть true. Это принятая
// ограниченная неточность (не более одного лишнего инкремента на новый
// ключ под гонкой); ON CONFLICT в upsert гарантирует, что вторая строка
// при этом не появится.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mstepanov/cardpress/views-module/internal/domain/model"
	"github.com/mstepanov/cardpress/views-module/internal/repository"
)

// Prometheus-метрики движка дедупликации.
var (
	dedupDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vm_dedup_decisions_total",
			Help: "Решения движка дедупликации по результату.",
		},
		[]string{"result"}, // counted, suppressed, error
	)
)

// DedupService — движок дедупликации просмотров.
// Один логический экземпляр на процесс; хранилище внедряется через
// интерфейс репозитория, без скрытого глобального состояния.
type DedupService struct {
	ledger repository.ViewLedgerRepository
	cache  *DedupCache
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewDedupService создаёт движок дедупликации.
// ttl — окно подавления повторных просмотров; cache может быть nil.
func NewDedupService(
	ledger repository.ViewLedgerRepository,
	cache *DedupCache,
	ttl time.Duration,
	logger *slog.Logger,
) *DedupService {
	return &DedupService{
		ledger: ledger,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With(slog.String("component", "dedup")),
	}
}

// ShouldCountView решает, представляет ли запрос нового уникального зрителя
// карточки в пределах TTL-окна, и при положительном решении продлевает
// запись леджера. Ровно одна мутация леджера при true, ноль при false.
//
// Любая ошибка хранилища даёт false: недосчитать безопаснее, чем
// пересчитать или уронить запрос; ошибка уходит только в лог.
func (s *DedupService) ShouldCountView(ctx context.Context, cardID string, signals RequestSignals) bool {
	fingerprint := signals.Fingerprint()
	key := cardID + ":" + fingerprint

	// Горячий путь: ключ засчитан этим экземпляром в пределах окна —
	// запись леджера заведомо жива, в хранилище можно не ходить.
	if s.cache != nil && s.cache.Seen(key) {
		dedupDecisionsTotal.WithLabelValues("suppressed").Inc()
		return false
	}

	now := s.now().UTC()

	rec, err := s.ledger.Find(ctx, cardID, fingerprint)
	switch {
	case err == nil:
		// Live — просмотр уже засчитан, ничего не мутируем.
		if !rec.Expired(now) {
			dedupDecisionsTotal.WithLabelValues("suppressed").Inc()
			return false
		}
		// Expired — логически отсутствует, засчитываем заново.
	case errors.Is(err, repository.ErrNotFound):
		// Absent — первый просмотр.
	default:
		s.logger.Error("Ошибка чтения леджера, просмотр не засчитан",
			slog.String("card_id", cardID),
			slog.String("error", err.Error()),
		)
		dedupDecisionsTotal.WithLabelValues("error").Inc()
		return false
	}

	rec = &model.ViewRecord{
		CardID:      cardID,
		Fingerprint: fingerprint,
		ClientAddr:  signals.ClientAddr,
		UserAgent:   signals.UserAgent,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.ledger.Upsert(ctx, rec); err != nil {
		s.logger.Error("Ошибка upsert леджера, просмотр не засчитан",
			slog.String("card_id", cardID),
			slog.String("error", err.Error()),
		)
		dedupDecisionsTotal.WithLabelValues("error").Inc()
		return false
	}

	if s.cache != nil {
		s.cache.MarkCounted(key)
	}

	s.logger.Debug("Просмотр засчитан",
		slog.String("card_id", cardID),
		slog.Time("expires_at", rec.ExpiresAt),
	)
	dedupDecisionsTotal.WithLabelValues("counted").Inc()
	return true
}
