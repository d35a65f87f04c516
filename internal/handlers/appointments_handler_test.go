package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/apperrors"
	"github.com/medflow/appointment-saga/internal/appointment"
)

type fakeService struct {
	created   *appointment.Appointment
	createErr error
	list      []appointment.Appointment
	listErr   error
}

func (f *fakeService) Create(ctx context.Context, insuredID string, scheduleID int, country appointment.CountryISO) (*appointment.Appointment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.created, nil
}

func (f *fakeService) ListByInsured(ctx context.Context, insuredID string) ([]appointment.Appointment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func newTestRouter(svc AppointmentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAppointmentRoutes(r, svc, zap.NewNop())
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateAppointment(t *testing.T) {
	appt, err := appointment.New("01234", 42, appointment.CountryPE)
	require.NoError(t, err)

	r := newTestRouter(&fakeService{created: appt})
	w := doRequest(r, http.MethodPost, "/appointments",
		`{"insuredId":"01234","scheduleId":42,"countryISO":"PE"}`)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Message     string                  `json:"message"`
		Appointment appointment.Appointment `json:"appointment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, appt.ID, resp.Appointment.ID)
	assert.Equal(t, appointment.StatusPending, resp.Appointment.Status)
}

func TestCreateAppointment_BadPayload(t *testing.T) {
	r := newTestRouter(&fakeService{})

	cases := []struct {
		name string
		body string
	}{
		{"not json", `insuredId=01234`},
		{"bad insured id", `{"insuredId":"12","scheduleId":42,"countryISO":"PE"}`},
		{"bad country", `{"insuredId":"01234","scheduleId":42,"countryISO":"US"}`},
		{"missing schedule", `{"insuredId":"01234","countryISO":"PE"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/appointments", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateAppointment_ServiceError(t *testing.T) {
	r := newTestRouter(&fakeService{
		createErr: &apperrors.StoreError{Op: "put appointment", Err: context.DeadlineExceeded},
	})

	w := doRequest(r, http.MethodPost, "/appointments",
		`{"insuredId":"01234","scheduleId":42,"countryISO":"PE"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestListAppointments(t *testing.T) {
	appt, err := appointment.New("01234", 42, appointment.CountryPE)
	require.NoError(t, err)

	r := newTestRouter(&fakeService{list: []appointment.Appointment{*appt}})
	w := doRequest(r, http.MethodGet, "/appointments/01234", "")

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Appointments []appointment.Appointment `json:"appointments"`
		TotalCount   int                       `json:"totalCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalCount)
	require.Len(t, resp.Appointments, 1)
	assert.Equal(t, appt.ID, resp.Appointments[0].ID)
}

func TestListAppointments_Empty(t *testing.T) {
	r := newTestRouter(&fakeService{list: []appointment.Appointment{}})
	w := doRequest(r, http.MethodGet, "/appointments/01234", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"appointments":[]`)
	assert.Contains(t, w.Body.String(), `"totalCount":0`)
}

func TestListAppointments_InvalidID(t *testing.T) {
	r := newTestRouter(&fakeService{
		listErr: &apperrors.ValidationError{Field: "insuredId", Reason: "must be exactly 5 digits"},
	})
	w := doRequest(r, http.MethodGet, "/appointments/12ab3", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")
}
