package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/booking-service/internal/api/http"
	"github.com/spec-kit/booking-service/internal/api/http/handlers"
	"github.com/spec-kit/booking-service/internal/auth"
	"github.com/spec-kit/booking-service/internal/config"
	"github.com/spec-kit/booking-service/internal/events"
	"github.com/spec-kit/booking-service/internal/notify"
	"github.com/spec-kit/booking-service/internal/observability"
	"github.com/spec-kit/booking-service/internal/persistence"
	"github.com/spec-kit/booking-service/internal/repository"
	"github.com/spec-kit/booking-service/internal/repository/memory"
	"github.com/spec-kit/booking-service/internal/service"
	"github.com/spec-kit/booking-service/internal/worker"
)

type repositories struct {
	users        repository.UserRepository
	slots        repository.SlotRepository
	appointments repository.AppointmentRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	loc, err := cfg.Schedule.Location()
	if err != nil {
		logger.Fatal("invalid schedule timezone", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	repos := openRepositories(pg)

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	locker := persistence.NewLocalLocker()
	if redis.Enabled() {
		locker = persistence.NewRedisLocker(redis.Client, cfg.Redis.LockTTL(), logger)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	notifier := worker.NewNotificationWorker(notify.NewLogSink(logger, cfg.Notify.Sender), logger, metrics, cfg.Notify)
	notifier.Start(ctx)
	defer notifier.Stop()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{UserRepo: repos.users})
	directoryService := service.NewDirectoryService(*cfg, service.DirectoryDependencies{
		UserRepo:        repos.users,
		SlotRepo:        repos.slots,
		AppointmentRepo: repos.appointments,
		Logger:          logger,
	})
	slotService := service.NewSlotService(cfg.Schedule, service.SlotDependencies{
		UserRepo:   repos.users,
		SlotRepo:   repos.slots,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	appointmentService := service.NewAppointmentService(cfg.Schedule, service.AppointmentDependencies{
		UserRepo:        repos.users,
		AppointmentRepo: repos.appointments,
		Locker:          locker,
		Dispatcher:      dispatcher,
		Logger:          logger,
		Location:        loc,
	})
	calendarService := service.NewCalendarService(service.CalendarDependencies{
		UserRepo:        repos.users,
		SlotRepo:        repos.slots,
		AppointmentRepo: repos.appointments,
		Location:        loc,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		UserRepo:   repos.users,
		Queue:      notifier,
		Logger:     logger,
		Location:   loc,
	})
	notificationService.RegisterHandlers()

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.users)

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService, directoryService),
		Calendar:       handlers.NewCalendarHandler(calendarService),
		Slots:          handlers.NewSlotsHandler(slotService),
		Appointments:   handlers.NewAppointmentsHandler(appointmentService, loc),
		Directory:      handlers.NewDirectoryHandler(directoryService, notificationService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

func openRepositories(pg *persistence.Postgres) repositories {
	if !pg.Enabled() {
		store := memory.NewStore()
		return repositories{users: store.Users, slots: store.Slots, appointments: store.Appointments}
	}
	pool := pg.PoolHandle()
	return repositories{
		users:        repository.NewUserRepository(pool),
		slots:        repository.NewSlotRepository(pool),
		appointments: repository.NewAppointmentRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
