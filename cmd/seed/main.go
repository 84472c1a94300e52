package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-chat-scheduling/internal/db"
	"github.com/hackgods/clinic-chat-scheduling/pkg/logging"
)

var log = logging.New("seed", "info").Logger

type specialtySeed struct {
	name               string
	requiresAttachment bool
}

var specialties = []specialtySeed{
	{name: "Clínica Geral"},
	{name: "Cardiologia"},
	{name: "Dermatologia"},
	{name: "Ortopedia"},
	{name: "Endocrinologia"},
	{name: "Ginecologia"},
	{name: "Pediatria"},
	{name: "Oftalmologia"},
	{name: "Neuropediatria", requiresAttachment: true},
	{name: "Psiquiatria Infantil", requiresAttachment: true},
}

var neighbourhoods = []string{"Centro", "Savassi", "Pampulha", "Barreiro", "Buritis"}

func main() {
	doctorsPer := flag.Int("doctors-per-specialty", 3, "doctors created for each specialty")
	patients := flag.Int("patients", 2000, "patients to create")
	flag.Parse()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.PoolOptions{})
	if err != nil {
		log.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	locationIDs, err := seedCatalog(context.Background(), pool, *doctorsPer)
	if err != nil {
		log.Error("seed catalog", "error", err)
		os.Exit(1)
	}
	if err := seedPatients(context.Background(), pool, *patients); err != nil {
		log.Error("seed patients", "error", err)
		os.Exit(1)
	}

	log.Info("seed complete", "locations", len(locationIDs), "specialties", len(specialties))
}

// seedCatalog writes locations, specialties, doctors and their weekly
// schedules in one transaction so a failed run leaves nothing behind.
func seedCatalog(ctx context.Context, pool *pgxpool.Pool, doctorsPer int) ([]uuid.UUID, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	locationIDs := make([]uuid.UUID, 0, len(neighbourhoods))
	for _, hood := range neighbourhoods {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO locations (id, name, address, city, phone, active)
			VALUES ($1, $2, $3, 'Belo Horizonte', $4, TRUE)
		`, id, "Unidade "+hood, fmt.Sprintf("%s, %d", gofakeit.Street(), gofakeit.Number(10, 2500)), fakePhone())
		if err != nil {
			return nil, fmt.Errorf("insert location: %w", err)
		}
		locationIDs = append(locationIDs, id)
	}
	log.Info("locations seeded", "count", len(locationIDs))

	doctors := 0
	for _, spec := range specialties {
		specID := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO specialties (id, name, active, requires_attachment)
			VALUES ($1, $2, TRUE, $3)
			ON CONFLICT (name) DO NOTHING
		`, specID, spec.name, spec.requiresAttachment)
		if err != nil {
			return nil, fmt.Errorf("insert specialty %s: %w", spec.name, err)
		}
		// a re-run keeps the existing row; look its id up
		if err := tx.QueryRow(ctx, `SELECT id FROM specialties WHERE name = $1`, spec.name).Scan(&specID); err != nil {
			return nil, fmt.Errorf("lookup specialty %s: %w", spec.name, err)
		}

		for i := 0; i < doctorsPer; i++ {
			if err := seedDoctor(ctx, tx, specID, locationIDs); err != nil {
				return nil, err
			}
			doctors++
		}
	}
	log.Info("doctors seeded", "count", doctors)

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return locationIDs, nil
}

func seedDoctor(ctx context.Context, tx pgx.Tx, specialtyID uuid.UUID, locationIDs []uuid.UUID) error {
	id := uuid.New()
	prefix := "Dr."
	if gofakeit.Bool() {
		prefix = "Dra."
	}
	name := fmt.Sprintf("%s %s %s", prefix, gofakeit.FirstName(), gofakeit.LastName())
	license := fmt.Sprintf("CRM-MG %05d", gofakeit.Number(10000, 99999))

	_, err := tx.Exec(ctx, `
		INSERT INTO doctors (id, name, license, specialty_id, active, recurring_schedule)
		VALUES ($1, $2, $3, $4, TRUE, $5)
	`, id, name, license, specialtyID, gofakeit.Bool())
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}

	// Two weekdays at one or two units, morning or afternoon.
	durations := []int{20, 30, 45, 60}
	duration := durations[gofakeit.Number(0, len(durations)-1)]
	first := gofakeit.Number(0, 4)
	second := (first + gofakeit.Number(1, 4)) % 5
	for _, wd := range []int{first, second} {
		start, end := "08:00", "12:00"
		if gofakeit.Bool() {
			start, end = "13:00", "18:00"
		}
		loc := locationIDs[gofakeit.Number(0, len(locationIDs)-1)]
		_, err := tx.Exec(ctx, `
			INSERT INTO weekly_availability (id, doctor_id, location_id, weekday, start_time, end_time, duration_minutes, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		`, uuid.New(), id, loc, wd, start, end, duration)
		if err != nil {
			return fmt.Errorf("insert availability: %w", err)
		}
	}
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Info("seeding patients", "count", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		batch := &pgx.Batch{}
		for i := offset; i < end; i++ {
			birth := gofakeit.DateRange(
				time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC),
			)
			billing, card := "private", ""
			if gofakeit.Number(0, 2) == 0 {
				billing, card = "insured", gofakeit.Numerify("##########")
			}
			batch.Queue(`
				INSERT INTO patients (id, national_id, name, birth_date, phone, email, insurance_card, billing)
				VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
				ON CONFLICT (national_id) DO NOTHING
			`, uuid.New(), gofakeit.Numerify("###########"), gofakeit.Name(), birth, fakePhone(), gofakeit.Email(), card, billing)
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert patients %d-%d: %w", offset, end, err)
		}
		log.Info("patients batch seeded", "from", offset, "to", end)
	}

	return nil
}

func fakePhone() string {
	return gofakeit.Numerify("(31) 9####-####")
}
