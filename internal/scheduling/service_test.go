package scheduling

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/medbook/clinic-scheduling/internal/redis"
)

// tuesdaySlot is a bookable time: Tuesday 2025-06-10 09:00, a full day
// after testNow.
var tuesdaySlot = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

func newTestService(repo *memRepo) *Service {
	return NewService(ServiceConfig{
		Patients:      repo,
		Practitioners: repo,
		Appointments:  repo,
		Now:           fixedClock(testNow),
		Rand:          rand.New(rand.NewSource(1)),
	})
}

func TestScheduleBySpecialty(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)
	cardiologistID := repo.addPractitioner("dr heart", SpecialtyCardiology, true)

	svc := newTestService(repo)
	detail, err := svc.Schedule(context.Background(), SchedulingRequest{
		PatientID:   patientID,
		Specialty:   SpecialtyCardiology,
		ScheduledAt: tuesdaySlot,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if detail.PractitionerID != cardiologistID {
		t.Fatalf("practitioner = %s, want %s", detail.PractitionerID, cardiologistID)
	}
	if detail.PatientID != patientID {
		t.Fatalf("patient = %s, want %s", detail.PatientID, patientID)
	}
	if !detail.ScheduledAt.Equal(tuesdaySlot) {
		t.Fatalf("scheduled at = %s, want %s", detail.ScheduledAt, tuesdaySlot)
	}

	stored, ok := repo.appointments[detail.ID]
	if !ok {
		t.Fatal("appointment was not persisted")
	}
	if stored.Cancelled() {
		t.Fatal("new appointment must not carry a cancellation reason")
	}
	if got := len(repo.eventsOfType(EventAppointmentScheduled)); got != 1 {
		t.Fatalf("scheduled events = %d, want 1", got)
	}
}

func TestScheduleWithExplicitPractitioner(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)
	pracID := repo.addPractitioner("dr chosen", SpecialtyDermatology, true)
	repo.addPractitioner("dr other", SpecialtyDermatology, true)

	svc := newTestService(repo)
	detail, err := svc.Schedule(context.Background(), SchedulingRequest{
		PatientID:      patientID,
		PractitionerID: &pracID,
		ScheduledAt:    tuesdaySlot,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.PractitionerID != pracID {
		t.Fatalf("practitioner = %s, want the explicitly chosen %s", detail.PractitionerID, pracID)
	}
}

func TestSchedulePatientNotFound(t *testing.T) {
	repo := newMemRepo()
	repo.addPractitioner("dr heart", SpecialtyCardiology, true)

	svc := newTestService(repo)
	_, err := svc.Schedule(context.Background(), SchedulingRequest{
		PatientID:   uuid.New(),
		Specialty:   SpecialtyCardiology,
		ScheduledAt: tuesdaySlot,
	})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("error = %v, want ErrPatientNotFound", err)
	}
	if len(repo.appointments) != 0 {
		t.Fatal("no appointment may be created on failure")
	}
}

func TestSchedulePractitionerNotFound(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)
	unknown := uuid.New()

	svc := newTestService(repo)
	_, err := svc.Schedule(context.Background(), SchedulingRequest{
		PatientID:      patientID,
		PractitionerID: &unknown,
		ScheduledAt:    tuesdaySlot,
	})
	if !errors.Is(err, ErrPractitionerNotFound) {
		t.Fatalf("error = %v, want ErrPractitionerNotFound", err)
	}
}

func TestScheduleRequestShape(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)
	svc := newTestService(repo)

	tests := []struct {
		name string
		req  SchedulingRequest
	}{
		{"missing patient", SchedulingRequest{Specialty: SpecialtyCardiology, ScheduledAt: tuesdaySlot}},
		{"missing time", SchedulingRequest{PatientID: patientID, Specialty: SpecialtyCardiology}},
		{"no practitioner and no specialty", SchedulingRequest{PatientID: patientID, ScheduledAt: tuesdaySlot}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Schedule(context.Background(), tt.req)
			var irErr *InvalidRequestError
			if !errors.As(err, &irErr) {
				t.Fatalf("error type = %T (%v), want *InvalidRequestError", err, err)
			}
		})
	}
}

func TestScheduleRejectsShortLeadTime(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)
	repo.addPractitioner("dr heart", SpecialtyCardiology, true)

	svc := newTestService(repo)
	_, err := svc.Schedule(context.Background(), SchedulingRequest{
		PatientID:   patientID,
		Specialty:   SpecialtyCardiology,
		ScheduledAt: testNow.Add(10 * time.Minute),
	})
	requireValidationError(t, err, "appointment must be scheduled at least 30 minutes in advance")
	if len(repo.appointments) != 0 {
		t.Fatal("no appointment may be created on failure")
	}
}

func TestScheduleRejectsOutsideClinicHours(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)
	repo.addPractitioner("dr heart", SpecialtyCardiology, true)

	svc := newTestService(repo)

	sunday := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	_, err := svc.Schedule(context.Background(), SchedulingRequest{
		PatientID:   patientID,
		Specialty:   SpecialtyCardiology,
		ScheduledAt: sunday,
	})
	requireValidationError(t, err, "appointment is outside clinic operating hours")

	lateTuesday := time.Date(2025, 6, 10, 19, 0, 0, 0, time.UTC)
	_, err = svc.Schedule(context.Background(), SchedulingRequest{
		PatientID:   patientID,
		Specialty:   SpecialtyCardiology,
		ScheduledAt: lateTuesday,
	})
	requireValidationError(t, err, "appointment is outside clinic operating hours")
}

func TestScheduleRejectsInactiveParties(t *testing.T) {
	t.Run("inactive explicit practitioner", func(t *testing.T) {
		repo := newMemRepo()
		patientID := repo.addPatient(true)
		inactiveID := repo.addPractitioner("dr gone", SpecialtyCardiology, false)

		svc := newTestService(repo)
		_, err := svc.Schedule(context.Background(), SchedulingRequest{
			PatientID:      patientID,
			PractitionerID: &inactiveID,
			ScheduledAt:    tuesdaySlot,
		})
		requireValidationError(t, err, "appointment cannot be scheduled with an inactive practitioner")
	})

	t.Run("inactive patient", func(t *testing.T) {
		repo := newMemRepo()
		patientID := repo.addPatient(false)
		repo.addPractitioner("dr heart", SpecialtyCardiology, true)

		svc := newTestService(repo)
		_, err := svc.Schedule(context.Background(), SchedulingRequest{
			PatientID:   patientID,
			Specialty:   SpecialtyCardiology,
			ScheduledAt: tuesdaySlot,
		})
		requireValidationError(t, err, "appointment cannot be scheduled for an inactive patient")
	})
}

func TestScheduleRejectsSecondAppointmentSameDay(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)
	repo.addPractitioner("dr heart", SpecialtyCardiology, true)
	repo.addPractitioner("dr skin", SpecialtyDermatology, true)

	svc := newTestService(repo)

	if _, err := svc.Schedule(context.Background(), SchedulingRequest{
		PatientID:   patientID,
		Specialty:   SpecialtyCardiology,
		ScheduledAt: tuesdaySlot,
	}); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	_, err := svc.Schedule(context.Background(), SchedulingRequest{
		PatientID:   patientID,
		Specialty:   SpecialtyDermatology,
		ScheduledAt: tuesdaySlot.Add(3 * time.Hour),
	})
	requireValidationError(t, err, "patient already has an appointment scheduled on that day")

	// The next day is fine.
	if _, err := svc.Schedule(context.Background(), SchedulingRequest{
		PatientID:   patientID,
		Specialty:   SpecialtyDermatology,
		ScheduledAt: tuesdaySlot.AddDate(0, 0, 1),
	}); err != nil {
		t.Fatalf("next-day booking failed: %v", err)
	}
}

func TestScheduleNoAvailablePractitioner(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)

	svc := newTestService(repo)
	_, err := svc.Schedule(context.Background(), SchedulingRequest{
		PatientID:   patientID,
		Specialty:   SpecialtyCardiology,
		ScheduledAt: tuesdaySlot,
	})
	requireValidationError(t, err, "no practitioner is available at the requested time")
}

func TestScheduleRecheckInsideLock(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)
	otherPatientID := repo.addPatient(true)
	pracID := repo.addPractitioner("dr busy", SpecialtyCardiology, true)
	repo.addAppointment(pracID, otherPatientID, tuesdaySlot)

	// The explicit-practitioner path skips the availability filter, so the
	// in-lock re-check is what catches the conflict.
	svc := newTestService(repo)
	_, err := svc.Schedule(context.Background(), SchedulingRequest{
		PatientID:      patientID,
		PractitionerID: &pracID,
		ScheduledAt:    tuesdaySlot,
	})
	requireValidationError(t, err, "practitioner already has an appointment at the requested time")
}

type contendedLocker struct{}

func (contendedLocker) WithBookingLock(context.Context, uuid.UUID, time.Time, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func TestScheduleLockContention(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)
	repo.addPractitioner("dr heart", SpecialtyCardiology, true)

	svc := NewService(ServiceConfig{
		Patients:      repo,
		Practitioners: repo,
		Appointments:  repo,
		Locker:        contendedLocker{},
		Now:           fixedClock(testNow),
	})

	_, err := svc.Schedule(context.Background(), SchedulingRequest{
		PatientID:   patientID,
		Specialty:   SpecialtyCardiology,
		ScheduledAt: tuesdaySlot,
	})
	if !errors.Is(err, ErrBookingContended) {
		t.Fatalf("error = %v, want ErrBookingContended", err)
	}
	if len(repo.appointments) != 0 {
		t.Fatal("no appointment may be created when the lock is contended")
	}
}

func TestCancel(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)
	pracID := repo.addPractitioner("dr heart", SpecialtyCardiology, true)
	apptID := repo.addAppointment(pracID, patientID, testNow.Add(48*time.Hour))

	svc := newTestService(repo)
	if err := svc.Cancel(context.Background(), CancellationRequest{
		AppointmentID: apptID,
		Reason:        "patient request",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	appt := repo.appointments[apptID]
	if !appt.Cancelled() || *appt.CancellationReason != "patient request" {
		t.Fatalf("cancellation reason = %v, want %q", appt.CancellationReason, "patient request")
	}
	if got := len(repo.eventsOfType(EventAppointmentCancelled)); got != 1 {
		t.Fatalf("cancelled events = %d, want 1", got)
	}
}

func TestCancelRejectsShortNotice(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)
	pracID := repo.addPractitioner("dr heart", SpecialtyCardiology, true)
	apptID := repo.addAppointment(pracID, patientID, testNow.Add(12*time.Hour))

	svc := newTestService(repo)
	err := svc.Cancel(context.Background(), CancellationRequest{
		AppointmentID: apptID,
		Reason:        "too late",
	})
	requireValidationError(t, err, "appointment can only be cancelled at least 24 hours in advance")

	if repo.appointments[apptID].Cancelled() {
		t.Fatal("appointment must stay active after a rejected cancellation")
	}
}

func TestCancelTwiceKeepsOriginalReason(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)
	pracID := repo.addPractitioner("dr heart", SpecialtyCardiology, true)
	apptID := repo.addAppointment(pracID, patientID, testNow.Add(48*time.Hour))

	svc := newTestService(repo)
	if err := svc.Cancel(context.Background(), CancellationRequest{
		AppointmentID: apptID,
		Reason:        "first reason",
	}); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}

	err := svc.Cancel(context.Background(), CancellationRequest{
		AppointmentID: apptID,
		Reason:        "second reason",
	})
	requireValidationError(t, err, "appointment is already cancelled")

	if got := *repo.appointments[apptID].CancellationReason; got != "first reason" {
		t.Fatalf("cancellation reason = %q, want the original %q", got, "first reason")
	}
}

func TestCancelNotFoundAndBadRequest(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	err := svc.Cancel(context.Background(), CancellationRequest{AppointmentID: uuid.New(), Reason: "x"})
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("error = %v, want ErrAppointmentNotFound", err)
	}

	var irErr *InvalidRequestError
	err = svc.Cancel(context.Background(), CancellationRequest{AppointmentID: uuid.New(), Reason: "   "})
	if !errors.As(err, &irErr) {
		t.Fatalf("error type = %T (%v), want *InvalidRequestError", err, err)
	}
}

func TestRecordDueReminders(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient(true)
	pracID := repo.addPractitioner("dr heart", SpecialtyCardiology, true)

	soonID := repo.addAppointment(pracID, patientID, testNow.Add(6*time.Hour))
	repo.addAppointment(pracID, patientID, testNow.Add(72*time.Hour)) // outside window

	svc := newTestService(repo)
	recorded, err := svc.RecordDueReminders(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorded != 1 {
		t.Fatalf("recorded = %d, want 1", recorded)
	}

	events := repo.eventsOfType(EventAppointmentReminder)
	if len(events) != 1 || *events[0].AppointmentID != soonID {
		t.Fatalf("reminder events = %+v, want one for %s", events, soonID)
	}

	// A second run records nothing new.
	recorded, err = svc.RecordDueReminders(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorded != 0 {
		t.Fatalf("second run recorded = %d, want 0", recorded)
	}
}
