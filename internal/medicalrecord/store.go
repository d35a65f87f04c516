package medicalrecord

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/apperrors"
	"github.com/medflow/appointment-saga/internal/appointment"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS medical_records (
	id             BIGSERIAL PRIMARY KEY,
	appointment_id TEXT        NOT NULL,
	insured_id     CHAR(5)     NOT NULL,
	schedule_id    BIGINT      NOT NULL,
	country_iso    CHAR(2)     NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT medical_records_natural_key UNIQUE (insured_id, schedule_id, country_iso)
)`

// The conflict arm re-assigns a column to itself so RETURNING yields the
// surviving row's id: one atomic statement covers both the first insert and
// every redelivery, with the unique constraint closing the race between
// concurrent deliveries of the same created event.
const insertOrGetQuery = `
INSERT INTO medical_records (appointment_id, insured_id, schedule_id, country_iso, created_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (insured_id, schedule_id, country_iso)
DO UPDATE SET appointment_id = medical_records.appointment_id
RETURNING id`

const findByNaturalKeyQuery = `
SELECT id, appointment_id, insured_id, schedule_id, country_iso, created_at
FROM medical_records
WHERE insured_id = $1 AND schedule_id = $2 AND country_iso = $3`

// Store persists medical records in one country's database.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewStore(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates the medical_records table and its natural-key constraint.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return &apperrors.StoreError{Op: "migrate medical_records", Err: err}
	}
	return nil
}

// InsertOrGet returns the record id for the natural key, inserting the row
// if it did not exist yet. Calling it twice with the same key yields the
// same id and leaves exactly one row behind.
func (s *Store) InsertOrGet(ctx context.Context, rec *Record) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, insertOrGetQuery,
		rec.AppointmentID, rec.InsuredID, rec.ScheduleID, string(rec.CountryISO),
	).Scan(&id)
	if err != nil {
		return 0, &apperrors.StoreError{Op: "insert medical record", Err: err}
	}

	s.logger.Info("medical record upserted",
		zap.Int64("record_id", id),
		zap.String("appointment_id", rec.AppointmentID),
		zap.String("country", string(rec.CountryISO)))
	return id, nil
}

// FindByNaturalKey looks a record up by its business key. Returns (nil, nil)
// when absent.
func (s *Store) FindByNaturalKey(ctx context.Context, insuredID string, scheduleID int, country appointment.CountryISO) (*Record, error) {
	var rec Record
	err := s.db.GetContext(ctx, &rec, findByNaturalKeyQuery, insuredID, scheduleID, string(country))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &apperrors.StoreError{Op: "find medical record", Err: err}
	}
	return &rec, nil
}
