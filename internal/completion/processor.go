// Package completion closes the saga: it consumes completed events from the
// fan-in queue and transitions the global appointment record.
package completion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/apperrors"
	"github.com/medflow/appointment-saga/internal/appointment"
	"github.com/medflow/appointment-saga/internal/event"
)

type completer interface {
	Complete(ctx context.Context, appointmentID string) (*appointment.Appointment, error)
}

// Processor consumes completed events and transitions the global aggregate.
// The completion channel delivers duplicates by design (the regional side
// republishes on every redelivery), so this consumer is tolerant: a
// duplicate is logged distinctly and acked instead of being retried into
// the DLQ.
type Processor struct {
	svc    completer
	logger *zap.Logger
}

func NewProcessor(svc completer, logger *zap.Logger) *Processor {
	return &Processor{svc: svc, logger: logger}
}

func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	p.logger.Info("received completion events", zap.Int("count", len(ev.Records)))
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.logger.Error("completion processing failed", zap.Error(err))
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	msg, err := decodeCompleted(rec.Body)
	if err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	appt, err := p.svc.Complete(ctx, msg.AppointmentID)
	if apperrors.IsInvalidState(err) {
		p.logger.Warn("duplicate completion rejected",
			zap.String("appointment_id", msg.AppointmentID),
			zap.Int64("record_id", msg.MedicalRecordID),
			zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	p.logger.Info("appointment marked completed",
		zap.String("appointment_id", appt.ID),
		zap.String("insured_id", appt.InsuredID),
		zap.Int64("record_id", msg.MedicalRecordID))
	return nil
}

// completionEnvelope covers the shapes the completion queue sees: the
// EventBridge envelope (detail), the SNS envelope (Message) and a raw
// payload.
type completionEnvelope struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"Message"`
}

func decodeCompleted(body string) (event.AppointmentCompleted, error) {
	var envelope completionEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err == nil {
		if len(envelope.Detail) > 0 {
			body = string(envelope.Detail)
		} else if envelope.Message != "" {
			body = envelope.Message
		}
	}

	var msg event.AppointmentCompleted
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return event.AppointmentCompleted{}, err
	}
	if msg.AppointmentID == "" {
		return event.AppointmentCompleted{}, fmt.Errorf("missing appointmentId")
	}
	return msg, nil
}
