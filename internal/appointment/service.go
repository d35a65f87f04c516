package appointment

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/apperrors"
	"github.com/medflow/appointment-saga/internal/event"
)

// Storage is the appointment record store port consumed by the service.
// *Store satisfies it; tests substitute fakes.
type Storage interface {
	Save(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	ListByInsured(ctx context.Context, insuredID string) ([]Appointment, error)
	UpdateStatus(ctx context.Context, id string, expected, next Status) error
}

// CreatedPublisher is the event channel port for the create fan-out.
type CreatedPublisher interface {
	PublishCreated(ctx context.Context, ev event.AppointmentCreated) error
}

// ListCache is an optional read cache in front of ListByInsured.
type ListCache interface {
	GetList(ctx context.Context, insuredID string) ([]Appointment, bool)
	SetList(ctx context.Context, insuredID string, appointments []Appointment)
	Invalidate(ctx context.Context, insuredID string)
}

// Service implements the creation orchestrator, the completion orchestrator
// and the insured query over the global store.
type Service struct {
	store     Storage
	publisher CreatedPublisher
	cache     ListCache
	logger    *zap.Logger
}

// NewService wires the service. cache may be nil; publisher may be nil for
// consumers that only complete appointments.
func NewService(store Storage, publisher CreatedPublisher, cache ListCache, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		cache:     cache,
		logger:    logger,
	}
}

// Create validates the request, persists a pending aggregate and publishes
// the created event tagged with the country for transport-level routing.
//
// If the publish fails after the save succeeded, the aggregate is left
// pending with no regional processing triggered; the reconciler sweep picks
// those up and republishes, so the error is surfaced rather than compensated
// here.
func (s *Service) Create(ctx context.Context, insuredID string, scheduleID int, country CountryISO) (*Appointment, error) {
	appt, err := New(insuredID, scheduleID, country)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, appt); err != nil {
		return nil, err
	}

	err = s.publisher.PublishCreated(ctx, event.AppointmentCreated{
		AppointmentID: appt.ID,
		InsuredID:     appt.InsuredID,
		ScheduleID:    appt.ScheduleID,
		CountryISO:    string(appt.CountryISO),
		OccurredAt:    appt.CreatedAt,
	})
	if err != nil {
		s.logger.Error("created event publish failed; appointment stays pending until reconciliation",
			zap.String("appointment_id", appt.ID),
			zap.String("country", string(appt.CountryISO)),
			zap.Error(err))
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, appt.InsuredID)
	}

	s.logger.Info("appointment created",
		zap.String("appointment_id", appt.ID),
		zap.String("insured_id", appt.InsuredID),
		zap.String("country", string(appt.CountryISO)))
	return appt, nil
}

// Complete loads the aggregate and transitions it pending -> completed. A
// duplicate completion returns InvalidStateError; the caller decides whether
// that is fatal (HTTP) or merely logged (queue consumer).
func (s *Service) Complete(ctx context.Context, appointmentID string) (*Appointment, error) {
	appt, err := s.store.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		return nil, &apperrors.NotFoundError{AppointmentID: appointmentID}
	}

	if err := appt.Complete(); err != nil {
		return nil, err
	}

	err = s.store.UpdateStatus(ctx, appointmentID, StatusPending, StatusCompleted)
	if errors.Is(err, ErrStatusMismatch) {
		// Lost a race with a concurrent completion, or the read above was
		// stale. Re-read to report the actual state.
		current, getErr := s.store.Get(ctx, appointmentID)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, &apperrors.NotFoundError{AppointmentID: appointmentID}
		}
		return nil, &apperrors.InvalidStateError{AppointmentID: appointmentID, Status: string(current.Status)}
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, appt.InsuredID)
	}

	s.logger.Info("appointment completed",
		zap.String("appointment_id", appt.ID),
		zap.String("insured_id", appt.InsuredID))
	return appt, nil
}

// ListByInsured returns every appointment for an insured person, newest
// first. An insured with no appointments gets an empty list, not an error.
func (s *Service) ListByInsured(ctx context.Context, insuredID string) ([]Appointment, error) {
	if err := ValidateInsuredID(insuredID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.GetList(ctx, insuredID); ok {
			return cached, nil
		}
	}

	appointments, err := s.store.ListByInsured(ctx, insuredID)
	if err != nil {
		return nil, err
	}
	if appointments == nil {
		appointments = []Appointment{}
	}

	if s.cache != nil {
		s.cache.SetList(ctx, insuredID, appointments)
	}
	return appointments, nil
}
