package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposaldesk/internal/config"
	"github.com/ignatzorin/proposaldesk/internal/db"
	"github.com/ignatzorin/proposaldesk/internal/goroutine"
	httpHandlers "github.com/ignatzorin/proposaldesk/internal/http/handlers"
	httpRouter "github.com/ignatzorin/proposaldesk/internal/http/router"
	"github.com/ignatzorin/proposaldesk/internal/locks"
	"github.com/ignatzorin/proposaldesk/internal/logger"
	"github.com/ignatzorin/proposaldesk/internal/repository"
	"github.com/ignatzorin/proposaldesk/internal/service"
	"github.com/ignatzorin/proposaldesk/internal/storage"
	"github.com/ignatzorin/proposaldesk/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	appLog := logger.Init(cfg.LogLevel, cfg.Env == "production")

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		appLog.WithError(err).Fatal("main: ошибка подключения к базе")
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath, logger.Component("migrations")); err != nil {
		appLog.WithError(err).Fatal("main: ошибка миграций")
	}

	// Объектное хранилище.
	var (
		store        storage.ObjectStore
		filesHandler *httpHandlers.FilesHandler
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverS3:
		s3Store, err := storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:       cfg.Storage.S3Endpoint,
			Region:         cfg.Storage.S3Region,
			AccessKey:      cfg.Storage.S3AccessKey,
			SecretKey:      cfg.Storage.S3SecretKey,
			ForcePathStyle: cfg.Storage.S3ForcePathStyle,
			PublicBaseURL:  cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			appLog.WithError(err).Fatal("main: не удалось подключить S3")
		}
		store = s3Store
	default:
		local, err := storage.NewLocalStorage(cfg.Storage.LocalPath, cfg.MaxUploadSizeMB, cfg.Storage.PublicBaseURL, cfg.JWTSecret)
		if err != nil {
			appLog.WithError(err).Fatal("main: не удалось подготовить файловое хранилище")
		}
		store = local
		filesHandler = httpHandlers.NewFilesHandler(local)
	}

	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Блокировки документов: Redis для нескольких реплик, иначе в памяти.
	var locker locks.Locker = locks.NewMemoryLocker()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := client.Close(); err != nil {
				appLog.WithError(err).Warn("main: ошибка закрытия redis")
			}
		}()

		redisLocker := locks.NewRedisLocker(client, cfg.LockTTL, logger.Component("locks"))
		if err := redisLocker.Ping(ctx); err != nil {
			appLog.WithError(err).Fatal("main: redis недоступен")
		}
		locker = redisLocker
		healthHandler.WithCheck("redis", redisLocker.Ping)
	}

	// Вебсокеты.
	hub := ws.NewHub(logger.Component("ws"))
	goroutine.SafeGoWithContext(ctx, "ws-hub", hub.Run)

	// Репозитории.
	proposalRepo := repository.NewProposalRepository(dbConn)
	templateRepo := repository.NewTemplateRepository(dbConn)

	// Сервисы.
	tokens := service.NewTokenVerifier(cfg.JWTSecret)
	pageService := service.NewPageService(proposalRepo, store, locker, hub, logger.Component("pages"), service.PageServiceConfig{
		Bucket:       cfg.Storage.ProposalsBucket,
		SignedURLTTL: cfg.Storage.SignedURLTTL,
	}).WithURLCache(service.NewURLCache(ctx))
	templateService := service.NewTemplateService(templateRepo, store, locker, hub, logger.Component("templates"), service.TemplateServiceConfig{
		TemplatesBucket: cfg.Storage.TemplatesBucket,
		ProposalsBucket: cfg.Storage.ProposalsBucket,
	})
	reconcileService := service.NewReconcileService(proposalRepo, templateRepo, store, cfg.Storage.ProposalsBucket, locker, logger.Component("reconcile"))

	if cfg.ReconcileInterval > 0 {
		goroutine.SafeGoWithContext(ctx, "reconcile", func(ctx context.Context) {
			reconcileService.Run(ctx, cfg.ReconcileInterval, cfg.ReconcileBatch)
		})
	}

	// HTTP хэндлеры.
	proposalHandler := httpHandlers.NewProposalHandler(pageService, reconcileService, cfg.MaxUploadBytes())
	templateHandler := httpHandlers.NewTemplateHandler(templateService, reconcileService, cfg.MaxUploadBytes())
	wsHandler := httpHandlers.NewWSHandler(hub, tokens, cfg.AllowedOrigins)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, proposalHandler, templateHandler, wsHandler, healthHandler, filesHandler, tokens)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			appLog.WithError(err).Error("main: ошибка остановки http сервера")
		}
	}()

	appLog.WithFields(logrus.Fields{
		"port":    cfg.HTTPPort,
		"storage": cfg.Storage.Driver,
		"redis":   cfg.Redis.Addr != "",
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		appLog.WithError(err).Fatal("main: сервер завершился с ошибкой")
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
