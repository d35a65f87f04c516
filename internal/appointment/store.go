package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/medflow/appointment-saga/internal/apperrors"
	"github.com/medflow/appointment-saga/internal/awsx"
)

// insuredIndex is the GSI keyed by insuredId with createdAt as range key, so
// queries come back ordered by creation time.
const insuredIndex = "insuredId-index"

// ErrStatusMismatch is returned by UpdateStatus when the conditional write
// failed: the item is absent or its status is not the expected one.
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// Store encapsulates operations on the appointments table.
type Store struct {
	client    awsx.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new appointments Store.
func NewStore(client awsx.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Save persists the aggregate with an unconditional put. Deduplication is
// deliberately not done here; the table is keyed by a fresh uuid per create
// and the regional natural key is the dedup point of the saga.
func (s *Store) Save(ctx context.Context, a *Appointment) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return &apperrors.StoreError{Op: "marshal appointment", Err: err}
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return &apperrors.StoreError{Op: "put appointment", Err: err}
	}
	return nil
}

// Get fetches an appointment by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*Appointment, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, &apperrors.StoreError{Op: "get appointment", Err: err}
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var a Appointment
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, &apperrors.StoreError{Op: "unmarshal appointment", Err: err}
	}
	return &a, nil
}

// ListByInsured returns every appointment for an insured person, newest
// first (the GSI range key is createdAt and we scan the index backwards).
func (s *Store) ListByInsured(ctx context.Context, insuredID string) ([]Appointment, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(insuredIndex),
		KeyConditionExpression: awsString("insuredId = :insuredId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":insuredId": &types.AttributeValueMemberS{Value: insuredID},
		},
		ScanIndexForward: awsBool(false),
	})
	if err != nil {
		return nil, &apperrors.StoreError{Op: "query appointments by insured", Err: err}
	}

	appointments := make([]Appointment, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &appointments); err != nil {
		return nil, &apperrors.StoreError{Op: "unmarshal appointments", Err: err}
	}
	return appointments, nil
}

// UpdateStatus conditionally moves the status from expected to next and
// refreshes updatedAt. Returns ErrStatusMismatch if the item is absent or
// the status no longer matches, which closes the race between two
// concurrent completions both observing pending.
func (s *Store) UpdateStatus(ctx context.Context, id string, expected, next Status) error {
	now := s.nowFunc().UTC()
	updatedAt, err := attributevalue.Marshal(now)
	if err != nil {
		return &apperrors.StoreError{Op: "marshal updatedAt", Err: err}
	}

	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:         awsString("SET #s = :next, updatedAt = :ua"),
		ConditionExpression:      awsString("attribute_exists(id) AND #s = :expected"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":next":     &types.AttributeValueMemberS{Value: string(next)},
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
			":ua":       updatedAt,
		},
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return ErrStatusMismatch
		}
		return &apperrors.StoreError{Op: "update appointment status", Err: err}
	}
	return nil
}

// ListStalePending scans for appointments still pending after the cutoff,
// for the reconciliation sweep. createdAt is stored as an RFC3339Nano
// string, so the comparison is lexicographic.
func (s *Store) ListStalePending(ctx context.Context, olderThan time.Time) ([]Appointment, error) {
	cutoff, err := attributevalue.Marshal(olderThan.UTC())
	if err != nil {
		return nil, &apperrors.StoreError{Op: "marshal cutoff", Err: err}
	}

	var (
		stale    []Appointment
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:                &s.tableName,
			FilterExpression:         awsString("#s = :pending AND createdAt < :cutoff"),
			ExpressionAttributeNames: map[string]string{"#s": "status"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pending": &types.AttributeValueMemberS{Value: string(StatusPending)},
				":cutoff":  cutoff,
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, &apperrors.StoreError{Op: "scan stale pending", Err: err}
		}

		var page []Appointment
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, &apperrors.StoreError{Op: "unmarshal stale pending", Err: err}
		}
		stale = append(stale, page...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return stale, nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
