package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/scout-reports/internal/ai"
	"github.com/ignatzorin/scout-reports/internal/config"
	"github.com/ignatzorin/scout-reports/internal/db"
	"github.com/ignatzorin/scout-reports/internal/goroutine"
	httpHandlers "github.com/ignatzorin/scout-reports/internal/http/handlers"
	"github.com/ignatzorin/scout-reports/internal/http/middleware"
	httpRouter "github.com/ignatzorin/scout-reports/internal/http/router"
	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/metrics"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/realtime"
	"github.com/ignatzorin/scout-reports/internal/repository"
	"github.com/ignatzorin/scout-reports/internal/service"
	"github.com/ignatzorin/scout-reports/internal/storage"
	"github.com/ignatzorin/scout-reports/internal/ws"
	"github.com/ignatzorin/scout-reports/migrations"
)

func main() {
	root := &cobra.Command{
		Use:          "scout-server",
		Short:        "API сервера отчётов о растениях",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(newSetRoleCmd())

	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.Get()

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Error("main: ошибка подключения к базе")
		return err
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, migrationsFS(cfg)); err != nil {
		log.WithError(err).Error("main: ошибка миграций")
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		log.WithError(err).Error("main: не удалось зарегистрировать метрики")
		return err
	}

	blobs, err := storage.New(ctx, cfg.Blob, cfg.MaxUploadBytes)
	if err != nil {
		log.WithError(err).Error("main: не удалось подготовить хранилище фотографий")
		return err
	}

	limiterStore, err := middleware.NewLimiterStore(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Error("main: не удалось подготовить хранилище лимитов")
		return err
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	profileRepo := repository.NewProfileRepository(dbConn)
	reportRepo := repository.NewReportRepository(dbConn)

	// Сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	roles := service.NewRoleResolver(profileRepo, cfg.RoleCacheTTL)
	authService := service.NewAuthService(userRepo, tokenManager, roles, cfg.AllowRangerSignup)
	classifier := ai.NewClient(cfg.AIBaseURL, cfg.AIModel, cfg.AIAPIKey)
	ingestionService := service.NewIngestionService(classifier, reportRepo, ai.ParseRegion(cfg.DeploymentRegion), m)
	reportService := service.NewReportService(reportRepo, roles)
	profileService := service.NewProfileService(profileRepo, reportRepo)

	// Вебсокеты и канал изменений.
	hub := ws.NewHub(m)
	goroutine.SafeGo("ws-hub", func() { hub.Run(ctx) })

	listener, err := realtime.NewListener(cfg.DatabaseURL, reportRepo, hub, m)
	if err != nil {
		log.WithError(err).Error("main: не удалось подписаться на изменения отчётов")
		return err
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.WithError(err).Warn("main: ошибка закрытия listener")
		}
	}()
	goroutine.SafeGo("realtime-listener", func() { listener.Run(ctx) })

	upload := httpHandlers.NewUploadHandler(blobs, cfg.MaxUploadBytes)
	var mediaRoot string
	if local, ok := blobs.(*storage.LocalStore); ok {
		mediaRoot = local.Root()
	}

	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Analyze:  httpHandlers.NewAnalyzeHandler(ingestionService),
		Auth:     httpHandlers.NewAuthHandler(authService),
		Upload:   upload,
		Reports:  httpHandlers.NewReportHandler(reportService),
		Profile:  httpHandlers.NewProfileHandler(profileService),
		Health:   httpHandlers.NewHealthHandler(dbConn, hub),
		Realtime: httpHandlers.NewRealtimeHandler(hub, cfg.AllowedOrigins),
	}, httpRouter.Deps{
		Tokens:       tokenManager,
		Roles:        roles,
		LimiterStore: limiterStore,
		Metrics:      m,
		MediaRoot:    mediaRoot,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo("http-shutdown", func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	})

	log.WithFields(logrus.Fields{
		"port":    cfg.HTTPPort,
		"blob":    cfg.Blob.Backend,
		"region":  cfg.DeploymentRegion,
		"limiter": limiterBackend(cfg.RedisURL),
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("main: сервер завершился с ошибкой")
		return err
	}
	return nil
}

const setRoleLong = `Назначить роль пользователю.

Команда меняет только базу. Запущенный сервер держит роль в кеше,
новая роль вступит в силу после ROLE_CACHE_TTL или после выхода пользователя.`

// newSetRoleCmd назначает роль пользователю. Рейнджеров заводит администратор,
// регистрация через API по умолчанию создаёт только скаутов.
func newSetRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <user-id> <scout|ranger>",
		Short: "Назначить роль пользователю",
		Long:  setRoleLong,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			role := models.Role(args[1])
			if !role.Valid() {
				return errors.New("main: роль должна быть scout или ranger")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dbConn, err := db.NewPostgres(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer safeClose(dbConn)

			profiles := repository.NewProfileRepository(dbConn)
			if err := profiles.UpdateRole(cmd.Context(), userID, role); err != nil {
				return err
			}
			logger.Get().WithFields(logrus.Fields{
				"user_id": userID,
				"role":    role,
			}).Info("main: роль обновлена")
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// Инициализация логгера
	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}
	return cfg, nil
}

// migrationsFS встроенные миграции, либо каталог из MIGRATIONS_PATH.
func migrationsFS(cfg *config.Config) fs.FS {
	if cfg.MigrationsPath != "" {
		return os.DirFS(cfg.MigrationsPath)
	}
	return migrations.FS
}

func limiterBackend(redisURL string) string {
	if redisURL != "" {
		return "redis"
	}
	return "memory"
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.Get().WithError(err).Error("main: ошибка закрытия базы")
	}
}
