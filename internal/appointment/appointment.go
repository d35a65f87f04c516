package appointment

import (
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/appointment-saga/internal/apperrors"
)

// Status of the global appointment aggregate. The transition is monotone:
// pending -> completed, never back.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// CountryISO selects the regional store and channel routing.
type CountryISO string

const (
	CountryPE CountryISO = "PE"
	CountryCL CountryISO = "CL"
)

// Countries lists every supported regional deployment.
var Countries = []CountryISO{CountryPE, CountryCL}

var insuredIDPattern = regexp.MustCompile(`^[0-9]{5}$`)

// Appointment is the global aggregate stored in DynamoDB, keyed by ID with a
// secondary index on InsuredID. All fields except Status and UpdatedAt are
// immutable after construction.
type Appointment struct {
	ID         string     `json:"id" dynamodbav:"id"`
	InsuredID  string     `json:"insuredId" dynamodbav:"insuredId"`
	ScheduleID int        `json:"scheduleId" dynamodbav:"scheduleId"`
	CountryISO CountryISO `json:"countryISO" dynamodbav:"countryISO"`
	Status     Status     `json:"status" dynamodbav:"status"`
	CreatedAt  time.Time  `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt" dynamodbav:"updatedAt"`
}

// New constructs a pending appointment with a fresh id, validating every
// immutable field.
func New(insuredID string, scheduleID int, country CountryISO) (*Appointment, error) {
	if err := ValidateInsuredID(insuredID); err != nil {
		return nil, err
	}
	if scheduleID <= 0 {
		return nil, &apperrors.ValidationError{Field: "scheduleId", Reason: "must be a positive integer"}
	}
	if !ValidCountry(country) {
		return nil, &apperrors.ValidationError{Field: "countryISO", Reason: "must be PE or CL"}
	}

	now := time.Now().UTC()
	return &Appointment{
		ID:         uuid.NewString(),
		InsuredID:  insuredID,
		ScheduleID: scheduleID,
		CountryISO: country,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ValidateInsuredID enforces the 5-digit insured code format.
func ValidateInsuredID(insuredID string) error {
	if !insuredIDPattern.MatchString(insuredID) {
		return &apperrors.ValidationError{Field: "insuredId", Reason: "must be exactly 5 digits"}
	}
	return nil
}

// ValidCountry reports whether c names a supported regional deployment.
func ValidCountry(c CountryISO) bool {
	return c == CountryPE || c == CountryCL
}

func (a *Appointment) IsPending() bool   { return a.Status == StatusPending }
func (a *Appointment) IsCompleted() bool { return a.Status == StatusCompleted }

// Complete transitions the aggregate to completed and refreshes UpdatedAt.
// Completing twice is an error, not a silent success, so duplicate
// deliveries surface instead of disappearing.
func (a *Appointment) Complete() error {
	if a.Status != StatusPending {
		return &apperrors.InvalidStateError{AppointmentID: a.ID, Status: string(a.Status)}
	}
	a.Status = StatusCompleted
	a.UpdatedAt = time.Now().UTC()
	return nil
}
