package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/spec-kit/booking-service/internal/config"
	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/observability"
	"github.com/spec-kit/booking-service/internal/persistence"
	"github.com/spec-kit/booking-service/internal/repository"
	"github.com/spec-kit/booking-service/internal/service"
)

const (
	operatorCount     = 5
	clientCount       = 40
	appointmentCount  = 60
	seedPassword      = "password123"
	appointmentLength = 45 * time.Minute
)

var specializations = []string{
	"Physiotherapy",
	"Dermatology",
	"General Practice",
	"Nutrition",
	"Psychology",
}

var serviceTypes = []string{
	"First visit",
	"Follow-up",
	"Consultation",
	"Check-up",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Postgres.DSN == "" {
		log.Fatal("postgres.dsn is required")
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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	gofakeit.Seed(time.Now().UnixNano())

	pool := pg.PoolHandle()
	users := repository.NewUserRepository(pool)
	slots := repository.NewSlotRepository(pool)
	appointments := repository.NewAppointmentRepository(pool)

	s := &seeder{
		logger: logger,
		auth:   service.NewAuthService(*cfg, service.AuthDependencies{UserRepo: users}),
		directory: service.NewDirectoryService(*cfg, service.DirectoryDependencies{
			UserRepo:        users,
			SlotRepo:        slots,
			AppointmentRepo: appointments,
			Logger:          logger,
		}),
		slots: service.NewSlotService(cfg.Schedule, service.SlotDependencies{
			UserRepo: users,
			SlotRepo: slots,
			Logger:   logger,
		}),
		appointments: service.NewAppointmentService(cfg.Schedule, service.AppointmentDependencies{
			UserRepo:        users,
			AppointmentRepo: appointments,
			Locker:          persistence.NewLocalLocker(),
			Logger:          logger,
			Location:        loc,
		}),
		location: loc,
	}
	if err := s.run(ctx); err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
	logger.Info("seed complete")
}

type seeder struct {
	logger       *zap.Logger
	auth         *service.AuthService
	directory    *service.DirectoryService
	slots        *service.SlotService
	appointments *service.AppointmentService
	location     *time.Location
}

func (s *seeder) run(ctx context.Context) error {
	suffix := gofakeit.Number(1000, 9999)

	admin, err := s.auth.Register(ctx, service.RegisterInput{
		Username: fmt.Sprintf("admin%d", suffix),
		Email:    fmt.Sprintf("admin%d@example.com", suffix),
		Password: seedPassword,
		Phone:    gofakeit.Phone(),
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.logger.Info("admin seeded", zap.String("username", admin.Username))

	operators := make([]*domain.User, 0, operatorCount)
	for i := 0; i < operatorCount; i++ {
		operator, err := s.directory.CreateOperator(ctx, admin.ID, s.member(suffix, i, specializations[i%len(specializations)]))
		if err != nil {
			return fmt.Errorf("seed operator: %w", err)
		}
		operators = append(operators, operator)
	}
	s.logger.Info("operators seeded", zap.Int("count", len(operators)))

	clients := make([]*domain.User, 0, clientCount)
	for i := 0; i < clientCount; i++ {
		client, err := s.directory.CreateClient(ctx, admin.ID, s.member(suffix, operatorCount+i, ""))
		if err != nil {
			return fmt.Errorf("seed client: %w", err)
		}
		clients = append(clients, client)
	}
	s.logger.Info("clients seeded", zap.Int("count", len(clients)))

	if err := s.seedSlots(ctx, operators, clients); err != nil {
		return err
	}
	return s.seedAppointments(ctx, admin.ID, operators, clients)
}

func (s *seeder) member(suffix, i int, specialization string) service.MemberInput {
	username := fmt.Sprintf("%s%d%d", strings.ToLower(gofakeit.FirstName()), suffix, i)
	return service.MemberInput{
		Username:       username,
		Email:          username + "@example.com",
		Password:       seedPassword,
		Phone:          gofakeit.Phone(),
		Specialization: specialization,
	}
}

// seedSlots requests one weekly slot per client and decides most of them.
func (s *seeder) seedSlots(ctx context.Context, operators, clients []*domain.User) error {
	decided := 0
	for _, client := range clients {
		operator := operators[gofakeit.Number(0, len(operators)-1)]
		hour := gofakeit.Number(8, 17)
		slot, err := s.slots.RequestSlot(ctx, service.SlotRequestInput{
			ClientID:   client.ID,
			OperatorID: operator.ID,
			SlotWindow: service.SlotWindow{
				DayOfWeek: gofakeit.Number(1, 5),
				StartTime: fmt.Sprintf("%02d:00", hour),
				EndTime:   fmt.Sprintf("%02d:00", hour+1),
			},
		})
		if err != nil {
			return fmt.Errorf("seed slot: %w", err)
		}

		switch gofakeit.Number(0, 3) {
		case 0:
			continue
		case 1:
			_, err = s.slots.Reject(ctx, slot.ID)
		default:
			_, err = s.slots.Approve(ctx, slot.ID)
		}
		if err != nil {
			return fmt.Errorf("decide slot: %w", err)
		}
		decided++
	}
	s.logger.Info("slots seeded", zap.Int("requested", len(clients)), zap.Int("decided", decided))
	return nil
}

func notes() string {
	if gofakeit.Bool() {
		return ""
	}
	return "Bring previous reports"
}

// seedAppointments books appointments over the next two weeks, skipping overlaps.
func (s *seeder) seedAppointments(ctx context.Context, adminID int64, operators, clients []*domain.User) error {
	statuses := domain.ReportedAppointmentStatuses
	today := time.Now().In(s.location)

	created := 0
	for i := 0; i < appointmentCount; i++ {
		start := time.Date(today.Year(), today.Month(), today.Day()+gofakeit.Number(1, 14),
			gofakeit.Number(8, 17), 15*gofakeit.Number(0, 3), 0, 0, s.location)
		_, err := s.appointments.Create(ctx, adminID, service.AppointmentCreateInput{
			OperatorID:  operators[gofakeit.Number(0, len(operators)-1)].ID,
			ClientID:    clients[gofakeit.Number(0, len(clients)-1)].ID,
			StartTime:   start,
			EndTime:     start.Add(appointmentLength),
			ServiceType: serviceTypes[gofakeit.Number(0, len(serviceTypes)-1)],
			Status:      statuses[gofakeit.Number(0, len(statuses)-1)],
			Notes:       notes(),
		})
		if err != nil {
			s.logger.Debug("appointment skipped", zap.Error(err))
			continue
		}
		created++
	}
	s.logger.Info("appointments seeded", zap.Int("count", created))
	return nil
}
