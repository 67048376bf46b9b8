package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

type serviceSeed struct {
	name       string
	minutes    int
	priceCents int64
}

var services = []serviceSeed{
	{"Fonoaudiología", 40, 1800000},
	{"Terapia ocupacional", 45, 2000000},
	{"Psicopedagogía", 45, 1900000},
	{"Psicología", 50, 2200000},
	{"Kinesiología", 30, 1500000},
	{"Psicomotricidad", 45, 1900000},
}

func main() {
	_ = godotenv.Load()

	logger, err := logging.New(os.Getenv("APP_ENV"), "seed")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	s := &seeder{pool: pool, faker: faker, logger: logger}

	run := context.Background()
	serviceIDs, err := s.seedServices(run)
	if err != nil {
		logger.Fatal("seed services", zap.Error(err))
	}
	if err := s.seedRooms(run, envInt("SEED_ROOMS", 6)); err != nil {
		logger.Fatal("seed rooms", zap.Error(err))
	}
	if err := s.seedProfessionals(run, envInt("SEED_PROFESSIONALS", 20), serviceIDs); err != nil {
		logger.Fatal("seed professionals", zap.Error(err))
	}
	if err := s.seedPatients(run, envInt("SEED_PATIENTS", 500), serviceIDs); err != nil {
		logger.Fatal("seed patients", zap.Error(err))
	}

	logger.Info("seed complete")
}

type seeder struct {
	pool   *pgxpool.Pool
	faker  *gofakeit.Faker
	logger *zap.Logger
}

func (s *seeder) seedServices(ctx context.Context) ([]uuid.UUID, error) {
	s.logger.Info("seeding services", zap.Int("count", len(services)))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(services))
	for _, svc := range services {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, name, default_duration_minutes, default_price_cents, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, svc.name, svc.minutes, svc.priceCents)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *seeder) seedRooms(ctx context.Context, count int) error {
	s.logger.Info("seeding rooms", zap.Int("count", count))

	rows := make([][]any, 0, count)
	for i := 1; i <= count; i++ {
		rows = append(rows, []any{uuid.New(), "Consultorio " + strconv.Itoa(i)})
	}

	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{"rooms"}, []string{"id", "name"}, pgx.CopyFromRows(rows))
	return err
}

// seedProfessionals gives every professional one or two services so each
// service ends up with several candidates.
func (s *seeder) seedProfessionals(ctx context.Context, count int, serviceIDs []uuid.UUID) error {
	s.logger.Info("seeding professionals", zap.Int("count", count))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		if _, err := tx.Exec(ctx, `
			INSERT INTO professionals (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, "Lic. "+s.faker.Name()); err != nil {
			return err
		}

		primary := serviceIDs[i%len(serviceIDs)]
		qualified := []uuid.UUID{primary}
		if s.faker.Bool() {
			if extra := serviceIDs[s.faker.Number(0, len(serviceIDs)-1)]; extra != primary {
				qualified = append(qualified, extra)
			}
		}
		for _, svc := range qualified {
			if _, err := tx.Exec(ctx, `
				INSERT INTO professional_services (professional_id, service_id)
				VALUES ($1, $2)
			`, id, svc); err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func (s *seeder) seedPatients(ctx context.Context, count int, serviceIDs []uuid.UUID) error {
	s.logger.Info("seeding patients", zap.Int("count", count))

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			birthdate := s.faker.DateRange(time.Now().AddDate(-17, 0, 0), time.Now().AddDate(-2, 0, 0))
			guardians := []string{s.faker.Name()}
			if s.faker.Bool() {
				guardians = append(guardians, s.faker.Name())
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, dni, birthdate, guardians, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, id, s.faker.Name(), strconv.Itoa(s.faker.Number(40000000, 59999999)), birthdate, guardians)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			// one to three required services, in treatment-plan order
			n := s.faker.Number(1, 3)
			picked := map[uuid.UUID]bool{}
			for pos := 0; len(picked) < n && pos < 10; pos++ {
				svc := serviceIDs[s.faker.Number(0, len(serviceIDs)-1)]
				if picked[svc] {
					continue
				}
				picked[svc] = true
				if _, err := tx.Exec(ctx, `
					INSERT INTO patient_required_services (patient_id, service_id, position)
					VALUES ($1, $2, $3)
				`, id, svc, len(picked)); err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		s.logger.Info("patients seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
