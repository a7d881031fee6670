package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medbook/clinic-scheduling/internal/scheduling"
)

// SchedulingService is the slice of the scheduling core the handlers need.
type SchedulingService interface {
	Schedule(ctx context.Context, req scheduling.SchedulingRequest) (*scheduling.AppointmentDetail, error)
	Cancel(ctx context.Context, req scheduling.CancellationRequest) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]scheduling.Appointment, error)
}

type RouterConfig struct {
	Service       SchedulingService
	Practitioners scheduling.PractitionerDirectory
	Patients      scheduling.PatientDirectory
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	Logger        zerolog.Logger
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment endpoints
	r.Post("/appointments", scheduleAppointmentHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))

	// Directory endpoints
	r.Route("/practitioners", func(r chi.Router) {
		r.Post("/", createPractitionerHandler(cfg.Practitioners))
		r.Get("/", listPractitionersHandler(cfg.Practitioners))
		r.Get("/{id}", getPractitionerHandler(cfg.Practitioners))
		r.Put("/{id}", updatePractitionerHandler(cfg.Practitioners))
		r.Delete("/{id}", deactivatePractitionerHandler(cfg.Practitioners))
	})
	r.Route("/patients", func(r chi.Router) {
		r.Post("/", createPatientHandler(cfg.Patients))
		r.Get("/", listPatientsHandler(cfg.Patients))
		r.Get("/{id}", getPatientHandler(cfg.Patients))
		r.Put("/{id}", updatePatientHandler(cfg.Patients))
		r.Delete("/{id}", deactivatePatientHandler(cfg.Patients))
	})

	return r
}
