package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mstepanov/cardpress/views-module/internal/domain/model"
	"github.com/mstepanov/cardpress/views-module/internal/service"
)

// Сквозной сценарий жизненного цикла просмотра: регистрация, подавление
// повтора, истечение окна, очистка и агрегированная статистика.
func TestViewLifecycle(t *testing.T) {
	ledger := newFakeLedger()
	counter := newFakeCounter()
	logger := testLogger()

	dedup := service.NewDedupService(ledger, nil, time.Hour, logger)
	sweeper := service.NewSweeperService(ledger, time.Hour, logger)
	stats := service.NewStatsService(ledger, counter, logger)

	router := chi.NewRouter()
	router.Post("/api/v1/cards/{cardId}/view", NewViewsHandler(dedup, counter, logger).RegisterView)
	router.Post("/api/v1/maintenance/cleanup", NewMaintenanceHandler(sweeper, logger).RunCleanup)
	router.Get("/api/v1/stats/views", NewStatsHandler(stats, logger).GetViewStats)

	contextA := map[string]string{
		"X-Forwarded-For": "203.0.113.7",
		"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0",
		"Accept-Language": "ru-RU,ru;q=0.9",
		"Accept-Encoding": "gzip, deflate, br",
	}
	contextB := map[string]string{
		"X-Forwarded-For": "198.51.100.23",
		"User-Agent":      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5) Safari/604.1",
		"Accept-Language": "en-US,en;q=0.5",
		"Accept-Encoding": "gzip",
	}

	// Первый просмотр из контекста A — засчитан.
	if resp := postView(t, router, "card-42", contextA); !resp.Counted {
		t.Fatal("первый просмотр из контекста A должен быть засчитан")
	}

	// Повтор из контекста A в пределах окна — подавлен.
	if resp := postView(t, router, "card-42", contextA); resp.Counted {
		t.Fatal("повторный просмотр из контекста A должен быть подавлен")
	}

	// Просмотр из контекста B — другой отпечаток, засчитан.
	if resp := postView(t, router, "card-42", contextB); !resp.Counted {
		t.Fatal("просмотр из контекста B должен быть засчитан")
	}

	if got := counter.total("card-42"); got != 2 {
		t.Fatalf("ожидался счётчик 2, получен %d", got)
	}

	// Имитируем истечение окна подавления для записи контекста A.
	ledger.mu.Lock()
	for _, rec := range ledger.records {
		if rec.ClientAddr == "203.0.113.7" {
			rec.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		}
	}
	ledger.mu.Unlock()

	// Очистка удаляет просроченную запись.
	cleanupReq := httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/cleanup", nil)
	cleanupRec := httptest.NewRecorder()
	router.ServeHTTP(cleanupRec, cleanupReq)

	if cleanupRec.Code != http.StatusOK {
		t.Fatalf("очистка: ожидался статус 200, получен %d", cleanupRec.Code)
	}
	var cleanup cleanupResponse
	if err := json.Unmarshal(cleanupRec.Body.Bytes(), &cleanup); err != nil {
		t.Fatalf("разбор ответа очистки: %v", err)
	}
	if cleanup.Deleted != 1 {
		t.Fatalf("ожидалась 1 удалённая запись, получено %d", cleanup.Deleted)
	}

	// После истечения окна контекст A снова считается новым зрителем.
	if resp := postView(t, router, "card-42", contextA); !resp.Counted {
		t.Fatal("просмотр из контекста A после истечения окна должен быть засчитан")
	}

	if got := counter.total("card-42"); got != 3 {
		t.Fatalf("ожидался счётчик 3, получен %d", got)
	}

	// Итоговая статистика: 3 учтённых просмотра, 2 живые записи журнала.
	statsReq := httptest.NewRequest(http.MethodGet, "/api/v1/stats/views", nil)
	statsRec := httptest.NewRecorder()
	router.ServeHTTP(statsRec, statsReq)

	if statsRec.Code != http.StatusOK {
		t.Fatalf("статистика: ожидался статус 200, получен %d", statsRec.Code)
	}
	var got model.ViewStats
	if err := json.Unmarshal(statsRec.Body.Bytes(), &got); err != nil {
		t.Fatalf("разбор статистики: %v", err)
	}
	if got.TotalViews != 3 {
		t.Errorf("total_views: ожидалось 3, получено %d", got.TotalViews)
	}
	if got.TotalLogs != 2 {
		t.Errorf("total_logs: ожидалось 2, получено %d", got.TotalLogs)
	}
	if got.ExpiredLogs != 0 {
		t.Errorf("expired_logs: ожидалось 0, получено %d", got.ExpiredLogs)
	}
	// Запись контекста A удалена очисткой, поэтому окно 24h видит 2 записи.
	if got.UniqueViews24h != 2 {
		t.Errorf("unique_views_24h: ожидалось 2, получено %d", got.UniqueViews24h)
	}
}
