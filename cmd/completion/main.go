package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/appointment"
	"github.com/medflow/appointment-saga/internal/awsx"
	"github.com/medflow/appointment-saga/internal/cache"
	"github.com/medflow/appointment-saga/internal/completion"
	"github.com/medflow/appointment-saga/internal/config"
	"github.com/medflow/appointment-saga/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "appointment-completion")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()

	if cfg.AppointmentsTable == "" {
		zl.Fatal("APPOINTMENTS_TABLE is required")
	}

	clients, err := awsx.NewClients(context.Background())
	if err != nil {
		zl.Fatal("failed to init aws clients", zap.Error(err))
	}

	store := appointment.NewStore(clients.DynamoDB, cfg.AppointmentsTable)

	var listCache appointment.ListCache
	if cfg.RedisAddr != "" {
		c, err := cache.New(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.CacheTTL, zl)
		if err != nil {
			zl.Warn("redis unavailable, completions will not invalidate the read cache", zap.Error(err))
		} else {
			listCache = c
		}
	}

	// This consumer only completes appointments; it never publishes created
	// events, so no publisher is wired.
	svc := appointment.NewService(store, nil, listCache, zl)

	lambda.Start(completion.NewProcessor(svc, zl).Handle)
}
