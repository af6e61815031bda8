package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestValidator(t *testing.T) *OpenAPIValidator {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v, err := NewOpenAPIValidator(logger)
	if err != nil {
		t.Fatalf("создание валидатора: %v", err)
	}
	return v
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestOpenAPIValidator_ValidRequests(t *testing.T) {
	v := newTestValidator(t)
	handler := v.Middleware()(okHandler())

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"регистрация просмотра", http.MethodPost, "/api/v1/cards/card-42/view"},
		{"статистика", http.MethodGet, "/api/v1/stats/views"},
		{"очистка", http.MethodPost, "/api/v1/maintenance/cleanup"},
		{"запуск задания", http.MethodPost, "/api/v1/jobs/backup/run"},
		{"история запусков", http.MethodGet, "/api/v1/jobs/backup/runs?limit=10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("ожидался статус 200, получен %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestOpenAPIValidator_InvalidQueryParam(t *testing.T) {
	v := newTestValidator(t)
	handler := v.Middleware()(okHandler())

	tests := []struct {
		name string
		path string
	}{
		{"нечисловой limit", "/api/v1/jobs/backup/runs?limit=abc"},
		{"limit меньше минимума", "/api/v1/jobs/backup/runs?limit=0"},
		{"limit больше максимума", "/api/v1/jobs/backup/runs?limit=500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("ожидался статус 400, получен %d", rec.Code)
			}

			var resp struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("разбор ответа: %v", err)
			}
			if resp.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("ожидался код VALIDATION_ERROR, получен %q", resp.Error.Code)
			}
		})
	}
}

func TestOpenAPIValidator_NonAPIPathsPassThrough(t *testing.T) {
	v := newTestValidator(t)
	handler := v.Middleware()(okHandler())

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("путь %s: ожидался статус 200, получен %d", path, rec.Code)
		}
	}
}

func TestOpenAPIValidator_UnknownRoutePassesThrough(t *testing.T) {
	v := newTestValidator(t)

	// Неизвестный маршрут отдаётся дальше — chi вернёт 404.
	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := v.Middleware()(notFound)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("ожидался статус 404, получен %d", rec.Code)
	}
}
