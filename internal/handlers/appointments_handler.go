package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/apperrors"
	"github.com/medflow/appointment-saga/internal/appointment"
	"github.com/medflow/appointment-saga/internal/validation"
)

// AppointmentService is the slice of the service consumed by the HTTP
// surface; queue consumers use the Complete half.
type AppointmentService interface {
	Create(ctx context.Context, insuredID string, scheduleID int, country appointment.CountryISO) (*appointment.Appointment, error)
	ListByInsured(ctx context.Context, insuredID string) ([]appointment.Appointment, error)
}

// RegisterAppointmentRoutes registers the appointment API.
func RegisterAppointmentRoutes(r *gin.Engine, svc AppointmentService, logger *zap.Logger) {
	v := validation.New()

	r.POST("/appointments", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CreateAppointmentRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		appt, err := svc.Create(ctx, req.InsuredID, req.ScheduleID, appointment.CountryISO(req.CountryISO))
		if err != nil {
			writeError(c, err, logger)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message":     "Appointment request received and is being processed",
			"appointment": appt,
		})
	})

	r.GET("/appointments/:insuredId", func(c *gin.Context) {
		ctx := c.Request.Context()
		insuredID := c.Param("insuredId")

		appointments, err := svc.ListByInsured(ctx, insuredID)
		if err != nil {
			writeError(c, err, logger)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"appointments": appointments,
			"totalCount":   len(appointments),
		})
	})
}

// writeError maps the domain error taxonomy onto response codes: validation
// 400, missing aggregate 404, illegal transition 409, everything else 500.
func writeError(c *gin.Context, err error, logger *zap.Logger) {
	switch {
	case apperrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "detail": err.Error()})
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "appointment_not_found", "detail": err.Error()})
	case apperrors.IsInvalidState(err):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_state", "detail": err.Error()})
	default:
		logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
