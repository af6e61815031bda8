// validator.go — валидация запросов по OpenAPI-описанию API.
// Документ встроен в бинарь через go:embed; запросы к /api/v1/*
// проверяются до передачи в handlers (path/query параметры, типы).
package middleware

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

//go:embed openapi.yaml
var openapiDocument []byte

// OpenAPIValidator — middleware валидации входящих запросов по OpenAPI.
type OpenAPIValidator struct {
	router routers.Router
	logger *slog.Logger
}

// NewOpenAPIValidator загружает встроенный OpenAPI-документ и строит роутер
// для сопоставления запросов с операциями.
func NewOpenAPIValidator(logger *slog.Logger) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiDocument)
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI-документа: %w", err)
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("невалидный OpenAPI-документ: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("создание OpenAPI-роутера: %w", err)
	}

	return &OpenAPIValidator{
		router: router,
		logger: logger.With(slog.String("component", "openapi_validator")),
	}, nil
}

// Middleware возвращает HTTP middleware, валидирующий запросы к /api/v1/*.
// Запросы вне /api/v1 (health, metrics) пропускаются без проверки.
// Аутентификация проверяется отдельным JWT middleware, поэтому security
// requirements документа здесь не применяются.
func (v *OpenAPIValidator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/v1/") {
				next.ServeHTTP(w, r)
				return
			}

			route, pathParams, err := v.router.FindRoute(r)
			if err != nil {
				// Неизвестный путь или метод — отдаём chi, он вернёт 404/405.
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}

			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				v.logger.Debug("Запрос не прошёл валидацию OpenAPI",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeValidationError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeValidationError преобразует ошибку валидации в ответ API.
func writeValidationError(w http.ResponseWriter, err error) {
	var requestError *openapi3filter.RequestError
	message := "Запрос не соответствует описанию API"
	if errors.As(err, &requestError) && requestError.Reason != "" {
		message = requestError.Reason
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, `{"error":{"code":"VALIDATION_ERROR","message":%q}}`, message)
}
