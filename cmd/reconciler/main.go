// The reconciler is the run-once sweep that closes the saga's known gap: an
// aggregate saved durably whose created event was never published stays
// pending forever. Republishing the created event is safe because the
// regional natural key turns redelivery into a no-op.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/appointment"
	"github.com/medflow/appointment-saga/internal/awsx"
	"github.com/medflow/appointment-saga/internal/config"
	"github.com/medflow/appointment-saga/internal/event"
	"github.com/medflow/appointment-saga/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "appointment-reconciler")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()

	if cfg.AppointmentsTable == "" || cfg.CreatedTopicARN == "" {
		zl.Fatal("APPOINTMENTS_TABLE and CREATED_TOPIC_ARN are required")
	}

	ctx := context.Background()
	clients, err := awsx.NewClients(ctx)
	if err != nil {
		zl.Fatal("failed to init aws clients", zap.Error(err))
	}

	store := appointment.NewStore(clients.DynamoDB, cfg.AppointmentsTable)
	publisher := awsx.NewCreatedPublisher(clients.SNS, cfg.CreatedTopicARN)

	cutoff := time.Now().Add(-cfg.StalePendingAfter)
	stale, err := store.ListStalePending(ctx, cutoff)
	if err != nil {
		zl.Fatal("failed to scan for stale pending appointments", zap.Error(err))
	}
	zl.Info("reconciliation sweep starting",
		zap.Int("stale_pending", len(stale)),
		zap.Time("cutoff", cutoff))

	var failed int
	for _, appt := range stale {
		err := publisher.PublishCreated(ctx, event.AppointmentCreated{
			AppointmentID: appt.ID,
			InsuredID:     appt.InsuredID,
			ScheduleID:    appt.ScheduleID,
			CountryISO:    string(appt.CountryISO),
			OccurredAt:    appt.CreatedAt,
		})
		if err != nil {
			failed++
			zl.Error("failed to republish created event",
				zap.String("appointment_id", appt.ID),
				zap.Error(err))
			continue
		}
		zl.Info("created event republished",
			zap.String("appointment_id", appt.ID),
			zap.String("country", string(appt.CountryISO)),
			zap.Time("created_at", appt.CreatedAt))
	}

	zl.Info("reconciliation sweep finished",
		zap.Int("republished", len(stale)-failed),
		zap.Int("failed", failed))
	if failed > 0 {
		os.Exit(1)
	}
}
