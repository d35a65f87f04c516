package validation

// CreateAppointmentRequest is the payload for POST /appointments.
type CreateAppointmentRequest struct {
	InsuredID  string `json:"insuredId" validate:"required,insured_id"`   // 5-digit insured code
	ScheduleID int    `json:"scheduleId" validate:"required,gt=0"`        // slot identifier
	CountryISO string `json:"countryISO" validate:"required,oneof=PE CL"` // regional routing
}
