// Seed prepares local regional databases: creates the medical_records
// schema in each country database and fills it with fake rows for load and
// idempotency testing.
package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/appointment"
	"github.com/medflow/appointment-saga/internal/config"
	"github.com/medflow/appointment-saga/internal/logger"
	"github.com/medflow/appointment-saga/internal/medicalrecord"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, "console", "appointment-seed")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()

	count := 50
	if v := os.Getenv("SEED_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			count = n
		}
	}

	gofakeit.Seed(time.Now().UnixNano())
	ctx := context.Background()

	for _, country := range appointment.Countries {
		if err := seedCountry(ctx, cfg, country, count, zl); err != nil {
			zl.Fatal("seed failed", zap.String("country", string(country)), zap.Error(err))
		}
	}

	zl.Info("seed complete")
}

func seedCountry(ctx context.Context, cfg config.Config, country appointment.CountryISO, count int, zl *zap.Logger) error {
	db, err := medicalrecord.Open(cfg.RegionalDB.DSNFor(country))
	if err != nil {
		return err
	}
	defer db.Close()

	store := medicalrecord.NewStore(db, zap.NewNop())
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	zl.Info("seeding medical records", zap.String("country", string(country)), zap.Int("count", count))

	for i := 0; i < count; i++ {
		rec, err := medicalrecord.New(
			uuid.NewString(),
			gofakeit.DigitN(5),
			gofakeit.Number(1, 5000),
			country,
		)
		if err != nil {
			return err
		}
		if _, err := store.InsertOrGet(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
