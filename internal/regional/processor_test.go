package regional

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/appointment"
	"github.com/medflow/appointment-saga/internal/event"
	"github.com/medflow/appointment-saga/internal/medicalrecord"
)

// fakeRecordStore mimics the natural-key behavior of the real store: the
// same (insuredId, scheduleId, countryISO) always maps to the same id.
type fakeRecordStore struct {
	ids     map[string]int64
	nextID  int64
	inserts int
	err     error
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{ids: map[string]int64{}, nextID: 1}
}

func (f *fakeRecordStore) InsertOrGet(ctx context.Context, rec *medicalrecord.Record) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.inserts++
	key := fmt.Sprintf("%s/%d/%s", rec.InsuredID, rec.ScheduleID, rec.CountryISO)
	if id, ok := f.ids[key]; ok {
		return id, nil
	}
	id := f.nextID
	f.nextID++
	f.ids[key] = id
	return id, nil
}

type fakeCompletedPublisher struct {
	published []event.AppointmentCompleted
	err       error
}

func (f *fakeCompletedPublisher) PublishCompleted(ctx context.Context, ev event.AppointmentCompleted) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, ev)
	return nil
}

func createdBody(t *testing.T, ev event.AppointmentCreated) string {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return string(b)
}

func sqsEvent(bodies ...string) events.SQSEvent {
	var ev events.SQSEvent
	for _, b := range bodies {
		ev.Records = append(ev.Records, events.SQSMessage{Body: b})
	}
	return ev
}

func peCreated() event.AppointmentCreated {
	return event.AppointmentCreated{
		AppointmentID: "appt-1",
		InsuredID:     "01234",
		ScheduleID:    42,
		CountryISO:    "PE",
		OccurredAt:    time.Now().UTC(),
	}
}

func TestHandle_RecordsAndPublishes(t *testing.T) {
	records := newFakeRecordStore()
	pub := &fakeCompletedPublisher{}
	p := NewProcessor(appointment.CountryPE, records, pub, zap.NewNop())

	err := p.Handle(context.Background(), sqsEvent(createdBody(t, peCreated())))
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	got := pub.published[0]
	assert.Equal(t, "appt-1", got.AppointmentID)
	assert.Equal(t, int64(1), got.MedicalRecordID)
	assert.Equal(t, "PE", got.CountryISO)
	assert.False(t, got.OccurredAt.IsZero())
}

func TestHandle_RedeliveryPublishesSameRecordID(t *testing.T) {
	records := newFakeRecordStore()
	pub := &fakeCompletedPublisher{}
	p := NewProcessor(appointment.CountryPE, records, pub, zap.NewNop())

	body := createdBody(t, peCreated())
	require.NoError(t, p.Handle(context.Background(), sqsEvent(body)))
	require.NoError(t, p.Handle(context.Background(), sqsEvent(body)))

	// A redelivered created event still produces a completion notification,
	// with the same record id both times.
	require.Len(t, pub.published, 2)
	assert.Equal(t, pub.published[0].MedicalRecordID, pub.published[1].MedicalRecordID)
}

func TestHandle_SNSEnvelope(t *testing.T) {
	records := newFakeRecordStore()
	pub := &fakeCompletedPublisher{}
	p := NewProcessor(appointment.CountryPE, records, pub, zap.NewNop())

	inner := createdBody(t, peCreated())
	wrapped, err := json.Marshal(map[string]string{
		"Type":    "Notification",
		"Message": inner,
	})
	require.NoError(t, err)

	require.NoError(t, p.Handle(context.Background(), sqsEvent(string(wrapped))))
	assert.Len(t, pub.published, 1)
}

func TestHandle_MisroutedCountry(t *testing.T) {
	records := newFakeRecordStore()
	pub := &fakeCompletedPublisher{}
	p := NewProcessor(appointment.CountryCL, records, pub, zap.NewNop())

	err := p.Handle(context.Background(), sqsEvent(createdBody(t, peCreated())))
	require.Error(t, err)
	assert.Zero(t, records.inserts, "a misrouted event must not touch the regional store")
	assert.Empty(t, pub.published)
}

func TestHandle_MalformedBody(t *testing.T) {
	p := NewProcessor(appointment.CountryPE, newFakeRecordStore(), &fakeCompletedPublisher{}, zap.NewNop())

	err := p.Handle(context.Background(), sqsEvent("not json"))
	assert.Error(t, err)
}

func TestHandle_MissingAppointmentID(t *testing.T) {
	p := NewProcessor(appointment.CountryPE, newFakeRecordStore(), &fakeCompletedPublisher{}, zap.NewNop())

	ev := peCreated()
	ev.AppointmentID = ""
	err := p.Handle(context.Background(), sqsEvent(createdBody(t, ev)))
	assert.Error(t, err)
}

func TestHandle_StoreErrorFailsBatch(t *testing.T) {
	records := newFakeRecordStore()
	records.err = errors.New("db down")
	pub := &fakeCompletedPublisher{}
	p := NewProcessor(appointment.CountryPE, records, pub, zap.NewNop())

	err := p.Handle(context.Background(), sqsEvent(createdBody(t, peCreated())))
	require.Error(t, err)
	assert.Empty(t, pub.published)
}

func TestHandle_PublishErrorFailsBatch(t *testing.T) {
	pub := &fakeCompletedPublisher{err: errors.New("bus down")}
	p := NewProcessor(appointment.CountryPE, newFakeRecordStore(), pub, zap.NewNop())

	err := p.Handle(context.Background(), sqsEvent(createdBody(t, peCreated())))
	assert.Error(t, err)
}
