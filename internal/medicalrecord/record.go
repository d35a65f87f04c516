// Package medicalrecord holds the per-country relational store: the
// authoritative, append-only evidence that an appointment was processed in a
// region. The natural key (insuredId, scheduleId, countryISO) is what makes
// the saga idempotent under at-least-once redelivery.
package medicalrecord

import (
	"time"

	"github.com/medflow/appointment-saga/internal/apperrors"
	"github.com/medflow/appointment-saga/internal/appointment"
)

// Record is one row in a country's medical_records table. ID is assigned by
// the store and propagated into the completed event.
type Record struct {
	ID            int64                  `db:"id" json:"id"`
	AppointmentID string                 `db:"appointment_id" json:"appointmentId"`
	InsuredID     string                 `db:"insured_id" json:"insuredId"`
	ScheduleID    int                    `db:"schedule_id" json:"scheduleId"`
	CountryISO    appointment.CountryISO `db:"country_iso" json:"countryISO"`
	CreatedAt     time.Time              `db:"created_at" json:"createdAt"`
}

// New validates the fields that form the natural key plus the correlation id
// back to the global aggregate.
func New(appointmentID, insuredID string, scheduleID int, country appointment.CountryISO) (*Record, error) {
	if appointmentID == "" {
		return nil, &apperrors.ValidationError{Field: "appointmentId", Reason: "is required"}
	}
	if err := appointment.ValidateInsuredID(insuredID); err != nil {
		return nil, err
	}
	if scheduleID <= 0 {
		return nil, &apperrors.ValidationError{Field: "scheduleId", Reason: "must be a positive integer"}
	}
	if !appointment.ValidCountry(country) {
		return nil, &apperrors.ValidationError{Field: "countryISO", Reason: "must be PE or CL"}
	}

	return &Record{
		AppointmentID: appointmentID,
		InsuredID:     insuredID,
		ScheduleID:    scheduleID,
		CountryISO:    country,
	}, nil
}
