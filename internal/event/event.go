// Package event defines the wire payloads carried by the two saga channels:
// the created fan-out (SNS, filtered per country) and the completed fan-in
// (EventBridge back to a single completion queue).
package event

import "time"

// Message attributes and envelope constants consumed by transport-level
// filtering and routing.
const (
	AttrCountryISO = "countryISO"
	AttrEventType  = "eventType"

	TypeAppointmentCreated = "AppointmentCreated"

	Source              = "appointment.service"
	DetailTypeCompleted = "Appointment Completed"
)

// AppointmentCreated is published once per create call and routed to exactly
// one per-country consumer via the countryISO message attribute.
type AppointmentCreated struct {
	AppointmentID string    `json:"appointmentId"`
	InsuredID     string    `json:"insuredId"`
	ScheduleID    int       `json:"scheduleId"`
	CountryISO    string    `json:"countryISO"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// AppointmentCompleted is published by a regional processor every time it
// handles a created event, including idempotent replays. Downstream consumes
// it under a duplicate-tolerant policy.
type AppointmentCompleted struct {
	AppointmentID   string    `json:"appointmentId"`
	InsuredID       string    `json:"insuredId"`
	ScheduleID      int       `json:"scheduleId"`
	CountryISO      string    `json:"countryISO"`
	MedicalRecordID int64     `json:"medicalRecordId"`
	OccurredAt      time.Time `json:"occurredAt"`
}
