// cache.go — per-instance LRU-кэш засчитанных ключей дедупликации.
// Обёртка над hashicorp/golang-lru/v2/expirable.
//
// Кэш — только ускорение горячего пути: ключ попадает в него исключительно
// в момент засчитывания просмотра, с TTL равным окну подавления, поэтому
// попадание в кэш эквивалентно живой записи леджера. Корректность между
// репликами по-прежнему обеспечивает разделяемое хранилище.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_dedup_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш засчитанных ключей.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_dedup_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша засчитанных ключей.",
	})
)

// DedupCache — LRU-кэш ключей, засчитанных этим экземпляром сервиса.
// Каждый экземпляр Views Module имеет собственный in-memory кэш
// (per-instance, stateless архитектура).
type DedupCache struct {
	lru *expirable.LRU[string, struct{}]
}

// NewDedupCache создаёт кэш на size элементов с TTL, равным окну подавления.
// size == 0 отключает кэш (все обращения — промахи).
func NewDedupCache(size int, ttl time.Duration) *DedupCache {
	c := &DedupCache{}
	if size > 0 {
		c.lru = expirable.NewLRU[string, struct{}](size, nil, ttl)
	}
	return c
}

// Seen возвращает true, если ключ был засчитан этим экземпляром
// в пределах текущего окна.
func (c *DedupCache) Seen(key string) bool {
	if c.lru == nil {
		cacheMissesTotal.Inc()
		return false
	}
	if _, ok := c.lru.Get(key); ok {
		cacheHitsTotal.Inc()
		return true
	}
	cacheMissesTotal.Inc()
	return false
}

// MarkCounted запоминает ключ в момент засчитывания просмотра.
func (c *DedupCache) MarkCounted(key string) {
	if c.lru == nil {
		return
	}
	c.lru.Add(key, struct{}{})
}

// Len возвращает текущее количество элементов в кэше.
func (c *DedupCache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
