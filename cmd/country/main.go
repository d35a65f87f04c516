package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/awsx"
	"github.com/medflow/appointment-saga/internal/config"
	"github.com/medflow/appointment-saga/internal/logger"
	"github.com/medflow/appointment-saga/internal/medicalrecord"
	"github.com/medflow/appointment-saga/internal/regional"
)

// One deployment of this binary runs per country; COUNTRY_ISO selects the
// regional database and the queue it is subscribed to.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.CountryISO == "" {
		log.Fatal("COUNTRY_ISO is required")
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "appointment-"+string(cfg.CountryISO))
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()

	clients, err := awsx.NewClients(context.Background())
	if err != nil {
		zl.Fatal("failed to init aws clients", zap.Error(err))
	}

	db, err := medicalrecord.Open(cfg.RegionalDB.DSNFor(cfg.CountryISO))
	if err != nil {
		zl.Fatal("failed to open regional database", zap.Error(err))
	}
	defer db.Close()

	processor := regional.NewProcessor(
		cfg.CountryISO,
		medicalrecord.NewStore(db, zl),
		awsx.NewCompletedPublisher(clients.EventBridge, cfg.CompletionBusName),
		zl,
	)

	lambda.Start(processor.Handle)
}
