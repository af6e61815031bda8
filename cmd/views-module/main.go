// Точка входа Views Module — модуль учёта просмотров карточек CardPress.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт repository и сервисный слой (дедупликация, счётчики, статистика),
// запускает фоновые задачи (sweeper, topologymetrics), HTTP-сервер
// с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/mstepanov/cardpress/views-module/internal/api/handlers"
	"github.com/mstepanov/cardpress/views-module/internal/api/middleware"
	"github.com/mstepanov/cardpress/views-module/internal/config"
	"github.com/mstepanov/cardpress/views-module/internal/database"
	"github.com/mstepanov/cardpress/views-module/internal/jobs"
	"github.com/mstepanov/cardpress/views-module/internal/repository"
	"github.com/mstepanov/cardpress/views-module/internal/server"
	"github.com/mstepanov/cardpress/views-module/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Views Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждения о дефолтных значениях topologymetrics
	if os.Getenv("VM_DEPHEALTH_GROUP") == "" {
		logger.Warn("VM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories
	ledgerRepo := repository.NewViewLedgerRepository(pool)
	counterRepo := repository.NewCardCounterRepository(pool)
	jobRunRepo := repository.NewJobRunRepository(pool)

	// 6. Services
	dedupCache := service.NewDedupCache(cfg.DedupCacheSize, cfg.ViewTTL)
	dedupSvc := service.NewDedupService(ledgerRepo, dedupCache, cfg.ViewTTL, logger)
	statsSvc := service.NewStatsService(ledgerRepo, counterRepo, logger)
	sweeperSvc := service.NewSweeperService(ledgerRepo, cfg.SweepInterval, logger)

	// 7. Runner служебных заданий
	runner := jobs.NewRunner(cfg.Jobs, cfg.JobTimeout, cfg.JobOutputLimit, jobRunRepo, logger)
	if len(cfg.Jobs) > 0 {
		names := make([]string, 0, len(cfg.Jobs))
		for name := range cfg.Jobs {
			names = append(names, name)
		}
		logger.Info("Служебные задания сконфигурированы", slog.Any("jobs", names))
	}

	// 8. Readiness checker и handlers
	pgChecker := database.NewReadinessChecker(pool)
	h := server.Handlers{
		Health:      handlers.NewHealthHandler(pgChecker),
		Views:       handlers.NewViewsHandler(dedupSvc, counterRepo, logger),
		Stats:       handlers.NewStatsHandler(statsSvc, logger),
		Maintenance: handlers.NewMaintenanceHandler(sweeperSvc, logger),
		Jobs:        handlers.NewJobsHandler(runner, logger),
	}

	// 9. OpenAPI-валидация запросов
	validator, err := middleware.NewOpenAPIValidator(logger)
	if err != nil {
		logger.Error("Ошибка инициализации OpenAPI-валидатора", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. JWT middleware (опционально: VM_JWT_JWKS_URL пустая — auth отключён)
	var jwtAuth *middleware.JWTAuth
	if cfg.AuthEnabled() {
		jwtAuth, err = middleware.NewJWTAuth(cfg.JWTJWKSURL, cfg.JWTLeeway, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
		)
	} else {
		logger.Warn("VM_JWT_JWKS_URL не задана, служебные endpoints без аутентификации")
	}

	// 11. Запуск фоновых задач
	sweeperSvc.Start(ctx)

	// 11.1 topologymetrics — мониторинг зависимостей (PostgreSQL + JWKS)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"views-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.JWTJWKSURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h, jwtAuth, validator)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 13. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	sweeperSvc.Stop()

	logger.Info("Views Module остановлен")
}
