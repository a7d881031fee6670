package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/medbook/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentScheduled = "APPOINTMENT_SCHEDULED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentReminder  = "APPOINTMENT_REMINDER"
)

// Service orchestrates scheduling and cancellation: existence pre-checks,
// the validator chains, practitioner selection and the final write. All
// reads and the write for one request are expected to run inside one
// transaction boundary owned by the repository implementation.
type Service struct {
	patients      PatientRepository
	practitioners PractitionerRepository
	appointments  AppointmentRepository

	selector          *PractitionerSelector
	schedulingRules   *SchedulingChain
	cancellationRules *CancellationChain

	locker redisclient.Locker
	log    zerolog.Logger
	now    func() time.Time
}

// ServiceConfig carries the service's collaborators. Now and Rand are
// injectable for deterministic tests and default to the wall clock and a
// time-seeded source; a nil Locker disables booking-lock serialization.
type ServiceConfig struct {
	Patients      PatientRepository
	Practitioners PractitionerRepository
	Appointments  AppointmentRepository
	Locker        redisclient.Locker
	Logger        zerolog.Logger
	Now           func() time.Time
	Rand          *rand.Rand
}

func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	locker := cfg.Locker
	if locker == nil {
		locker = noopLocker{}
	}

	return &Service{
		patients:          cfg.Patients,
		practitioners:     cfg.Practitioners,
		appointments:      cfg.Appointments,
		selector:          NewPractitionerSelector(cfg.Practitioners, cfg.Rand),
		schedulingRules:   NewSchedulingChain(DefaultSchedulingValidators(cfg.Patients, cfg.Practitioners, now)...),
		cancellationRules: NewCancellationChain(DefaultCancellationValidators(cfg.Appointments, now)...),
		locker:            locker,
		log:               cfg.Logger,
		now:               now,
	}
}

// Schedule books an appointment. It fails with *InvalidRequestError for a
// malformed request, ErrPatientNotFound / ErrPractitionerNotFound when a
// referenced id does not exist, and *ValidationError when a business rule
// rejects the request. Exactly one appointment row is created on success and
// none on failure.
func (s *Service) Schedule(ctx context.Context, req SchedulingRequest) (*AppointmentDetail, error) {
	if err := validateSchedulingRequest(req); err != nil {
		return nil, err
	}

	exists, err := s.patients.PatientExists(ctx, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("check patient exists: %w", err)
	}
	if !exists {
		return nil, ErrPatientNotFound
	}

	if req.PractitionerID != nil {
		exists, err := s.practitioners.PractitionerExists(ctx, *req.PractitionerID)
		if err != nil {
			return nil, fmt.Errorf("check practitioner exists: %w", err)
		}
		if !exists {
			return nil, ErrPractitionerNotFound
		}
	}

	if err := s.schedulingRules.Run(ctx, req); err != nil {
		return nil, err
	}

	prac, err := s.selector.Select(ctx, req)
	if err != nil {
		return nil, err
	}

	var created *Appointment

	err = s.locker.WithBookingLock(ctx, prac.ID, req.ScheduledAt, func(lockCtx context.Context) error {
		// Re-check inside the critical section: the selector's availability
		// snapshot may be stale by now.
		booked, err := s.appointments.PractitionerHasAppointmentAt(lockCtx, prac.ID, req.ScheduledAt)
		if err != nil {
			return fmt.Errorf("check practitioner availability: %w", err)
		}
		if booked {
			return &ValidationError{Reason: "practitioner already has an appointment at the requested time"}
		}

		appt, err := s.appointments.CreateAppointment(lockCtx, prac.ID, req.PatientID, req.ScheduledAt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentScheduled, map[string]any{
			"practitioner_id": prac.ID.String(),
			"patient_id":      req.PatientID.String(),
			"scheduled_at":    req.ScheduledAt,
		})

		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingContended
		}
		return nil, err
	}

	return &AppointmentDetail{
		ID:             created.ID,
		PractitionerID: created.PractitionerID,
		PatientID:      created.PatientID,
		ScheduledAt:    created.ScheduledAt,
	}, nil
}

// Cancel marks an appointment cancelled with the given reason. The
// appointment's timestamp is untouched; only the cancellation reason
// transitions, once, from unset to set.
func (s *Service) Cancel(ctx context.Context, req CancellationRequest) error {
	if req.AppointmentID == uuid.Nil {
		return &InvalidRequestError{Reason: "appointment id is required"}
	}
	if strings.TrimSpace(req.Reason) == "" {
		return &InvalidRequestError{Reason: "cancellation reason is required"}
	}

	exists, err := s.appointments.AppointmentExists(ctx, req.AppointmentID)
	if err != nil {
		return fmt.Errorf("check appointment exists: %w", err)
	}
	if !exists {
		return ErrAppointmentNotFound
	}

	if err := s.cancellationRules.Run(ctx, req); err != nil {
		return err
	}

	appt, err := s.appointments.CancelAppointment(ctx, req.AppointmentID, req.Reason)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventAppointmentCancelled, map[string]any{
		"reason": req.Reason,
	})

	return nil
}

// GetAppointment retrieves an appointment by id.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appointments.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointmentsByPatient retrieves appointments for a specific patient.
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.appointments.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// RecordDueReminders is intended to be called by the worker periodically.
// It records one reminder event per non-cancelled appointment starting
// within the window that has no reminder yet, and returns how many it wrote.
func (s *Service) RecordDueReminders(ctx context.Context, window time.Duration) (int, error) {
	now := s.now()

	due, err := s.appointments.FindUpcomingWithoutReminder(ctx, now, now.Add(window))
	if err != nil {
		return 0, fmt.Errorf("find appointments due a reminder: %w", err)
	}

	recorded := 0
	for _, appt := range due {
		apptID := appt.ID
		ev := EventLog{
			EventType:     EventAppointmentReminder,
			AppointmentID: &apptID,
			Payload:       mustJSON(map[string]any{"scheduled_at": appt.ScheduledAt}),
			CreatedAt:     now,
		}
		if err := s.appointments.InsertEvent(ctx, ev); err != nil {
			s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to record reminder event")
			continue
		}
		recorded++
	}

	return recorded, nil
}

func validateSchedulingRequest(req SchedulingRequest) error {
	if req.PatientID == uuid.Nil {
		return &InvalidRequestError{Reason: "patient id is required"}
	}
	if req.ScheduledAt.IsZero() {
		return &InvalidRequestError{Reason: "appointment time is required"}
	}
	if req.PractitionerID == nil && req.Specialty == "" {
		return &InvalidRequestError{Reason: "specialty is required when no practitioner is chosen"}
	}
	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       mustJSON(payload),
		CreatedAt:     s.now(),
	}

	if err := s.appointments.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Str("appointment_id", appointmentID.String()).Msg("failed to insert event log")
	}
}

func mustJSON(payload map[string]any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

type noopLocker struct{}

func (noopLocker) WithBookingLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
