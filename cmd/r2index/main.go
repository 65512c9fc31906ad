// Точка входа r2index — индекс метаданных файлов в R2-хранилище.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт сервисный слой и API handlers, запускает фоновую retention-очистку
// и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/elaunira/r2index/internal/api/handlers"
	"github.com/elaunira/r2index/internal/config"
	"github.com/elaunira/r2index/internal/database"
	"github.com/elaunira/r2index/internal/repository"
	"github.com/elaunira/r2index/internal/server"
	"github.com/elaunira/r2index/internal/service"
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
	logger.Info("r2index запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)
	if len(cfg.APITokens) == 0 {
		logger.Warn("R2X_API_TOKENS не задан, API работает без аутентификации")
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

	// 5. Repositories
	fileRepo := repository.NewFileRepository(pool)
	tagRepo := repository.NewTagRepository(pool)
	downloadRepo := repository.NewDownloadRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 6. Services
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	fileSvc := service.NewFileService(fileRepo, tagRepo, txRunner, cache, logger)
	searchSvc := service.NewSearchService(fileRepo, tagRepo, logger)
	indexSvc := service.NewIndexService(fileRepo, logger)
	downloadSvc := service.NewDownloadService(fileRepo, downloadRepo, logger)
	analyticsSvc := service.NewAnalyticsService(fileRepo, downloadRepo, logger)
	cleanupSvc := service.NewCleanupService(downloadRepo, cfg.RetentionDays, cfg.CleanupInterval, logger)

	// 7. Фоновая retention-очистка событий скачивания
	cleanupSvc.Start(ctx)

	// 8. Handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool))
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		fileSvc,
		searchSvc,
		indexSvc,
		downloadSvc,
		analyticsSvc,
		cleanupSvc,
		logger,
	)

	// 9. Запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	cleanupSvc.Stop()

	logger.Info("r2index остановлен")
}
