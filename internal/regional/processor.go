// Package regional consumes created events routed to one country and records
// them idempotently in that country's database.
package regional

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/appointment"
	"github.com/medflow/appointment-saga/internal/event"
	"github.com/medflow/appointment-saga/internal/medicalrecord"
)

type recordStore interface {
	InsertOrGet(ctx context.Context, rec *medicalrecord.Record) (int64, error)
}

type completedPublisher interface {
	PublishCompleted(ctx context.Context, ev event.AppointmentCompleted) error
}

// Processor is the regional half of the saga: it consumes created events
// routed to its country, records them idempotently and emits a completed
// event on every delivery, duplicates included.
type Processor struct {
	country   appointment.CountryISO
	records   recordStore
	publisher completedPublisher
	logger    *zap.Logger
	nowFunc   func() time.Time
}

func NewProcessor(country appointment.CountryISO, records recordStore, publisher completedPublisher, logger *zap.Logger) *Processor {
	return &Processor{
		country:   country,
		records:   records,
		publisher: publisher,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// Handle receives an SQS batch event and processes each message. A failed
// item fails the batch so the runtime redelivers; the natural key makes
// redelivery harmless.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	p.logger.Info("received created events", zap.Int("count", len(ev.Records)))
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.logger.Error("regional processing failed", zap.Error(err))
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	msg, err := decodeCreated(rec.Body)
	if err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	if appointment.CountryISO(msg.CountryISO) != p.country {
		// A filter-policy bug, not a business condition. Let it hit the DLQ.
		return fmt.Errorf("misrouted event: appointment %s is for %s, this processor serves %s",
			msg.AppointmentID, msg.CountryISO, p.country)
	}

	record, err := medicalrecord.New(msg.AppointmentID, msg.InsuredID, msg.ScheduleID, p.country)
	if err != nil {
		return fmt.Errorf("invalid created event for appointment %s: %w", msg.AppointmentID, err)
	}

	recordID, err := p.records.InsertOrGet(ctx, record)
	if err != nil {
		return err
	}

	// Published on every delivery, idempotent hits included, so a redelivered
	// created event still drives a completion notification downstream.
	err = p.publisher.PublishCompleted(ctx, event.AppointmentCompleted{
		AppointmentID:   msg.AppointmentID,
		InsuredID:       msg.InsuredID,
		ScheduleID:      msg.ScheduleID,
		CountryISO:      string(p.country),
		MedicalRecordID: recordID,
		OccurredAt:      p.nowFunc().UTC(),
	})
	if err != nil {
		return err
	}

	p.logger.Info("appointment processed",
		zap.String("appointment_id", msg.AppointmentID),
		zap.Int64("record_id", recordID),
		zap.String("country", string(p.country)))
	return nil
}

// snsEnvelope is the shape SNS wraps around the payload when a queue is
// subscribed without raw message delivery.
type snsEnvelope struct {
	Message string `json:"Message"`
}

func decodeCreated(body string) (event.AppointmentCreated, error) {
	var envelope snsEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Message != "" {
		body = envelope.Message
	}

	var msg event.AppointmentCreated
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return event.AppointmentCreated{}, err
	}
	if msg.AppointmentID == "" {
		return event.AppointmentCreated{}, fmt.Errorf("missing appointmentId")
	}
	return msg, nil
}
