// Пакет model — доменные структуры Views Module.
package model

import "time"

// ViewRecord — запись леджера просмотров: одна пара
// (карточка, контекст зрителя), наблюдавшаяся в текущем TTL-окне.
// Пара (CardID, Fingerprint) уникальна — не более одной живой записи.
type ViewRecord struct {
	// CardID — идентификатор просмотренной карточки (задаётся вызывающей стороной)
	CardID string
	// Fingerprint — SHA-256 дайджест сигналов запроса, hex в нижнем регистре
	Fingerprint string
	// ClientAddr — сетевой адрес запроса; только для диагностики, в ключ не входит
	ClientAddr string
	// UserAgent — User-Agent запроса; только для диагностики, в ключ не входит
	UserAgent string
	// CreatedAt — момент первого наблюдения пары; при повторных upsert сохраняется
	CreatedAt time.Time
	// ExpiresAt — момент, после которого запись перестаёт подавлять засчитывание
	ExpiresAt time.Time
}

// Expired возвращает true, если запись логически мертва на момент now.
// Мёртвая запись эквивалентна отсутствующей для движка дедупликации,
// даже если sweeper ещё не удалил её физически.
func (r *ViewRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
