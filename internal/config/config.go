// Пакет config — загрузка и валидация конфигурации Views Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Views Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8000-8009)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Дедупликация просмотров ---

	// Окно подавления повторных просмотров (TTL записи в леджере)
	ViewTTL time.Duration
	// Интервал фоновой очистки просроченных записей
	SweepInterval time.Duration
	// Размер per-instance LRU-кэша засчитанных ключей
	DedupCacheSize int

	// --- JWT (защита служебных endpoints) ---

	// URL JWKS endpoint; пустая строка — аутентификация отключена
	JWTJWKSURL string
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- Job runner ---

	// Именованные команды: имя → shell-команда
	Jobs map[string]string
	// Таймаут выполнения одной команды
	JobTimeout time.Duration
	// Максимальный размер сохраняемого stdout/stderr, байт
	JobOutputLimit int

	// --- topologymetrics ---

	// Имя группы в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// VM_PORT — порт HTTP-сервера (по умолчанию 8002)
	cfg.Port, err = getEnvInt("VM_PORT", 8002)
	if err != nil {
		return nil, fmt.Errorf("VM_PORT: %w", err)
	}
	if cfg.Port < 8000 || cfg.Port > 8009 {
		return nil, fmt.Errorf("VM_PORT: значение %d вне допустимого диапазона 8000-8009", cfg.Port)
	}

	// VM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("VM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("VM_LOG_LEVEL: %w", err)
	}

	// VM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("VM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("VM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// VM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("VM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// VM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("VM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("VM_DB_PORT: %w", err)
	}

	// VM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("VM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// VM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("VM_DB_USER")
	if err != nil {
		return nil, err
	}

	// VM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("VM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// VM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("VM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("VM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Дедупликация просмотров ---

	// VM_VIEW_TTL — окно подавления повторных просмотров (по умолчанию 1h)
	cfg.ViewTTL, err = getEnvDuration("VM_VIEW_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("VM_VIEW_TTL: %w", err)
	}
	if cfg.ViewTTL <= 0 {
		return nil, fmt.Errorf("VM_VIEW_TTL: значение должно быть положительным, получено %s", cfg.ViewTTL)
	}

	// VM_SWEEP_INTERVAL — интервал фоновой очистки (по умолчанию 15m)
	cfg.SweepInterval, err = getEnvDuration("VM_SWEEP_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("VM_SWEEP_INTERVAL: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("VM_SWEEP_INTERVAL: значение должно быть положительным, получено %s", cfg.SweepInterval)
	}

	// VM_DEDUP_CACHE_SIZE — размер LRU-кэша (по умолчанию 16384, 0 — кэш отключён)
	cfg.DedupCacheSize, err = getEnvInt("VM_DEDUP_CACHE_SIZE", 16384)
	if err != nil {
		return nil, fmt.Errorf("VM_DEDUP_CACHE_SIZE: %w", err)
	}
	if cfg.DedupCacheSize < 0 {
		return nil, fmt.Errorf("VM_DEDUP_CACHE_SIZE: значение не может быть отрицательным, получено %d", cfg.DedupCacheSize)
	}

	// --- JWT ---

	// VM_JWT_JWKS_URL — опциональный; пустая строка отключает аутентификацию
	cfg.JWTJWKSURL = getEnvDefault("VM_JWT_JWKS_URL", "")

	// VM_JWT_LEEWAY — допустимое отклонение времени (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("VM_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_JWT_LEEWAY: %w", err)
	}

	// --- Job runner ---

	// VM_JOBS — именованные команды в формате "name=command;name=command"
	cfg.Jobs, err = parseJobs(getEnvDefault("VM_JOBS", ""))
	if err != nil {
		return nil, fmt.Errorf("VM_JOBS: %w", err)
	}

	// VM_JOB_TIMEOUT — таймаут команды (по умолчанию 5m)
	cfg.JobTimeout, err = getEnvDuration("VM_JOB_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("VM_JOB_TIMEOUT: %w", err)
	}
	if cfg.JobTimeout <= 0 {
		return nil, fmt.Errorf("VM_JOB_TIMEOUT: значение должно быть положительным, получено %s", cfg.JobTimeout)
	}

	// VM_JOB_OUTPUT_LIMIT — лимит сохраняемого вывода (по умолчанию 65536 байт)
	cfg.JobOutputLimit, err = getEnvInt("VM_JOB_OUTPUT_LIMIT", 65536)
	if err != nil {
		return nil, fmt.Errorf("VM_JOB_OUTPUT_LIMIT: %w", err)
	}
	if cfg.JobOutputLimit < 1024 {
		return nil, fmt.Errorf("VM_JOB_OUTPUT_LIMIT: значение %d меньше минимального 1024", cfg.JobOutputLimit)
	}

	// --- topologymetrics ---

	// VM_DEPHEALTH_GROUP — имя группы (по умолчанию cardpress)
	cfg.DephealthGroup = getEnvDefault("VM_DEPHEALTH_GROUP", "cardpress")

	// VM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("VM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// VM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("VM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL (для метрик dephealth).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// AuthEnabled возвращает true, если задан JWKS URL.
func (c *Config) AuthEnabled() bool {
	return c.JWTJWKSURL != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseJobs разбирает строку вида "name=command;name=command" в карту команд.
// Разделитель пар — точка с запятой, т.к. сами команды могут содержать запятые.
// Пустая строка — нет настроенных jobs.
func parseJobs(s string) (map[string]string, error) {
	jobs := make(map[string]string)
	if s == "" {
		return jobs, nil
	}

	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, command, found := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		command = strings.TrimSpace(command)
		if !found || name == "" || command == "" {
			return nil, fmt.Errorf("некорректная пара %q, ожидается формат name=command", pair)
		}
		if _, exists := jobs[name]; exists {
			return nil, fmt.Errorf("дублирующееся имя команды %q", name)
		}
		jobs[name] = command
	}
	return jobs, nil
}
