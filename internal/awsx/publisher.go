package awsx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/medflow/appointment-saga/internal/apperrors"
	"github.com/medflow/appointment-saga/internal/event"
)

// CreatedPublisher fans created events out over SNS. The countryISO message
// attribute is what the per-country SQS subscriptions filter on, so exactly
// one regional processor receives each event.
type CreatedPublisher struct {
	SNS      SNSAPI
	TopicARN string
}

func NewCreatedPublisher(client SNSAPI, topicARN string) *CreatedPublisher {
	return &CreatedPublisher{SNS: client, TopicARN: topicARN}
}

func (p *CreatedPublisher) PublishCreated(ctx context.Context, ev event.AppointmentCreated) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal created event: %w", err)
	}

	_, err = p.SNS.Publish(ctx, &sns.PublishInput{
		TopicArn: &p.TopicARN,
		Message:  awsString(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			event.AttrCountryISO: {
				DataType:    awsString("String"),
				StringValue: awsString(ev.CountryISO),
			},
			event.AttrEventType: {
				DataType:    awsString("String"),
				StringValue: awsString(event.TypeAppointmentCreated),
			},
		},
	})
	if err != nil {
		return &apperrors.StoreError{Op: "publish created event", Err: err}
	}
	return nil
}

// CompletedPublisher fans completed events back in over EventBridge; a rule
// on the bus routes them to the single completion queue.
type CompletedPublisher struct {
	EventBridge EventBridgeAPI
	BusName     string
}

func NewCompletedPublisher(client EventBridgeAPI, busName string) *CompletedPublisher {
	return &CompletedPublisher{EventBridge: client, BusName: busName}
}

func (p *CompletedPublisher) PublishCompleted(ctx context.Context, ev event.AppointmentCompleted) error {
	detail, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal completed event: %w", err)
	}

	entry := ebtypes.PutEventsRequestEntry{
		Source:     awsString(event.Source),
		DetailType: awsString(event.DetailTypeCompleted),
		Detail:     awsString(string(detail)),
	}
	if p.BusName != "" {
		entry.EventBusName = &p.BusName
	}

	out, err := p.EventBridge.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return &apperrors.StoreError{Op: "publish completed event", Err: err}
	}
	if out.FailedEntryCount > 0 {
		return &apperrors.StoreError{
			Op:  "publish completed event",
			Err: fmt.Errorf("%d entries failed", out.FailedEntryCount),
		}
	}
	return nil
}

// awsString helper
func awsString(s string) *string { return &s }
