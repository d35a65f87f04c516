// Localflow runs the whole saga pipeline on one machine: it long-polls the
// per-country created queues and the completion queue over SQS and feeds the
// batches to the same processors the Lambda deployments use. Intended for
// development against LocalStack or a sandbox account.
package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/appointment"
	"github.com/medflow/appointment-saga/internal/awsx"
	"github.com/medflow/appointment-saga/internal/completion"
	"github.com/medflow/appointment-saga/internal/config"
	"github.com/medflow/appointment-saga/internal/logger"
	"github.com/medflow/appointment-saga/internal/medicalrecord"
	"github.com/medflow/appointment-saga/internal/regional"
)

// sqsHandler is what both processors expose; the poller is agnostic to which
// side of the saga it drives.
type sqsHandler interface {
	Handle(ctx context.Context, ev events.SQSEvent) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, "console", "appointment-localflow")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients, err := awsx.NewClients(ctx)
	if err != nil {
		zl.Fatal("failed to init aws clients", zap.Error(err))
	}

	store := appointment.NewStore(clients.DynamoDB, cfg.AppointmentsTable)
	svc := appointment.NewService(store, nil, nil, zl)
	completionProc := completion.NewProcessor(svc, zl)

	queues := map[string]sqsHandler{}
	if cfg.CompletionQueueURL != "" {
		queues[cfg.CompletionQueueURL] = completionProc
	}

	createdQueues := map[appointment.CountryISO]string{
		appointment.CountryPE: cfg.CreatedQueuePE,
		appointment.CountryCL: cfg.CreatedQueueCL,
	}
	for country, queueURL := range createdQueues {
		if queueURL == "" {
			continue
		}
		db, err := medicalrecord.Open(cfg.RegionalDB.DSNFor(country))
		if err != nil {
			zl.Fatal("failed to open regional database",
				zap.String("country", string(country)), zap.Error(err))
		}
		defer db.Close()

		recordStore := medicalrecord.NewStore(db, zl)
		if err := recordStore.Migrate(ctx); err != nil {
			zl.Fatal("failed to migrate regional schema",
				zap.String("country", string(country)), zap.Error(err))
		}

		queues[queueURL] = regional.NewProcessor(
			country,
			recordStore,
			awsx.NewCompletedPublisher(clients.EventBridge, cfg.CompletionBusName),
			zl,
		)
	}

	if len(queues) == 0 {
		zl.Fatal("no queue URLs configured, nothing to poll")
	}

	var wg sync.WaitGroup
	for queueURL, handler := range queues {
		wg.Add(1)
		go func(queueURL string, handler sqsHandler) {
			defer wg.Done()
			poll(ctx, clients.SQS, queueURL, handler, zl.With(zap.String("queue", queueURL)))
		}(queueURL, handler)
	}

	zl.Info("polling queues", zap.Int("count", len(queues)))
	wg.Wait()
	zl.Info("shutdown complete")
}

// poll long-polls one queue until the context is cancelled. Messages are
// deleted only after the handler reports success, mirroring Lambda's
// redelivery semantics.
func poll(ctx context.Context, client awsx.SQSAPI, queueURL string, handler sqsHandler, zl *zap.Logger) {
	for {
		out, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            &queueURL,
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			zl.Error("receive failed", zap.Error(err))
			continue
		}
		if len(out.Messages) == 0 {
			continue
		}

		batch := events.SQSEvent{}
		for _, m := range out.Messages {
			batch.Records = append(batch.Records, events.SQSMessage{
				MessageId:     deref(m.MessageId),
				ReceiptHandle: deref(m.ReceiptHandle),
				Body:          deref(m.Body),
			})
		}

		if err := handler.Handle(ctx, batch); err != nil {
			// Leave the batch in flight; SQS redelivers after the visibility
			// timeout and the consumers are idempotent.
			zl.Warn("batch failed, leaving messages for redelivery", zap.Error(err))
			continue
		}

		for _, m := range out.Messages {
			if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      &queueURL,
				ReceiptHandle: m.ReceiptHandle,
			}); err != nil {
				zl.Error("delete failed", zap.Error(err))
			}
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
