package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/appointment"
	"github.com/medflow/appointment-saga/internal/awsx"
	"github.com/medflow/appointment-saga/internal/cache"
	"github.com/medflow/appointment-saga/internal/config"
	"github.com/medflow/appointment-saga/internal/handlers"
	"github.com/medflow/appointment-saga/internal/logger"
)

func setupRouter(svc *appointment.Service, zl *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterAppointmentRoutes(r, svc, zl)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "appointment-api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()

	if cfg.AppointmentsTable == "" || cfg.CreatedTopicARN == "" {
		zl.Fatal("APPOINTMENTS_TABLE and CREATED_TOPIC_ARN are required")
	}

	clients, err := awsx.NewClients(context.Background())
	if err != nil {
		zl.Fatal("failed to init aws clients", zap.Error(err))
	}

	store := appointment.NewStore(clients.DynamoDB, cfg.AppointmentsTable)
	publisher := awsx.NewCreatedPublisher(clients.SNS, cfg.CreatedTopicARN)

	var listCache appointment.ListCache
	if cfg.RedisAddr != "" {
		c, err := cache.New(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.CacheTTL, zl)
		if err != nil {
			zl.Warn("redis unavailable, serving without read cache", zap.Error(err))
		} else {
			listCache = c
		}
	}

	svc := appointment.NewService(store, publisher, listCache, zl)
	r := setupRouter(svc, zl)

	// if environment variable RUN_LOCAL is set to "true", run a local HTTP
	// server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":" + cfg.HTTPPort
		zl.Info("running local server", zap.String("addr", addr))
		if err := r.Run(addr); err != nil {
			zl.Fatal("local server failed", zap.Error(err))
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
