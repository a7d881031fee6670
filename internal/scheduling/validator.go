package scheduling

import (
	"context"
	"fmt"
	"time"
)

// SchedulingValidator is a single business rule over a scheduling request.
// Implementations may read from repositories but must not mutate anything.
type SchedulingValidator interface {
	Validate(ctx context.Context, req SchedulingRequest) error
}

type CancellationValidator interface {
	Validate(ctx context.Context, req CancellationRequest) error
}

// SchedulingChain applies its validators in registration order and stops at
// the first rejection.
type SchedulingChain struct {
	validators []SchedulingValidator
}

func NewSchedulingChain(validators ...SchedulingValidator) *SchedulingChain {
	return &SchedulingChain{validators: validators}
}

func (c *SchedulingChain) Run(ctx context.Context, req SchedulingRequest) error {
	for _, v := range c.validators {
		if err := v.Validate(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

type CancellationChain struct {
	validators []CancellationValidator
}

func NewCancellationChain(validators ...CancellationValidator) *CancellationChain {
	return &CancellationChain{validators: validators}
}

func (c *CancellationChain) Run(ctx context.Context, req CancellationRequest) error {
	for _, v := range c.validators {
		if err := v.Validate(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// DefaultSchedulingValidators builds the rule set applied to every booking.
// Lead time and clinic hours are registered as two independent rules on
// purpose; each must be enforceable on its own.
func DefaultSchedulingValidators(patients PatientRepository, practitioners PractitionerRepository, now func() time.Time) []SchedulingValidator {
	return []SchedulingValidator{
		&LeadTimeValidator{Now: now},
		&ClinicHoursValidator{},
		&PractitionerActiveValidator{Practitioners: practitioners},
		&PatientActiveValidator{Patients: patients},
		&SingleDailyAppointmentValidator{Patients: patients},
	}
}

func DefaultCancellationValidators(appointments AppointmentRepository, now func() time.Time) []CancellationValidator {
	return []CancellationValidator{
		&NotAlreadyCancelledValidator{Appointments: appointments},
		&CancellationNoticeValidator{Appointments: appointments, Now: now},
	}
}

// LeadTimeValidator rejects bookings made less than MinLeadTime before the
// requested time.
type LeadTimeValidator struct {
	Now func() time.Time
}

func (v *LeadTimeValidator) Validate(_ context.Context, req SchedulingRequest) error {
	if req.ScheduledAt.Sub(v.now()) < MinLeadTime {
		return &ValidationError{Reason: fmt.Sprintf("appointment must be scheduled at least %d minutes in advance", int(MinLeadTime.Minutes()))}
	}
	return nil
}

func (v *LeadTimeValidator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// ClinicHoursValidator rejects bookings on Sundays and outside the clinic's
// opening hours. A booking at any minute of the closing hour is still inside
// hours; 19:00 onwards is not.
type ClinicHoursValidator struct{}

func (v *ClinicHoursValidator) Validate(_ context.Context, req SchedulingRequest) error {
	at := req.ScheduledAt
	sunday := at.Weekday() == time.Sunday
	beforeOpening := at.Hour() < OpeningHour
	afterClosing := at.Hour() > ClosingHour

	if sunday || beforeOpening || afterClosing {
		return &ValidationError{Reason: "appointment is outside clinic operating hours"}
	}
	return nil
}

// PractitionerActiveValidator only applies when the caller chose a specific
// practitioner; automatic selection never returns inactive ones.
type PractitionerActiveValidator struct {
	Practitioners PractitionerRepository
}

func (v *PractitionerActiveValidator) Validate(ctx context.Context, req SchedulingRequest) error {
	if req.PractitionerID == nil {
		return nil
	}

	active, err := v.Practitioners.PractitionerActive(ctx, *req.PractitionerID)
	if err != nil {
		return fmt.Errorf("check practitioner active: %w", err)
	}
	if !active {
		return &ValidationError{Reason: "appointment cannot be scheduled with an inactive practitioner"}
	}
	return nil
}

type PatientActiveValidator struct {
	Patients PatientRepository
}

func (v *PatientActiveValidator) Validate(ctx context.Context, req SchedulingRequest) error {
	active, err := v.Patients.PatientActive(ctx, req.PatientID)
	if err != nil {
		return fmt.Errorf("check patient active: %w", err)
	}
	if !active {
		return &ValidationError{Reason: "appointment cannot be scheduled for an inactive patient"}
	}
	return nil
}

// SingleDailyAppointmentValidator rejects a booking when the patient already
// holds a non-cancelled appointment anywhere in the clinic's working window
// of the same calendar day.
type SingleDailyAppointmentValidator struct {
	Patients PatientRepository
}

func (v *SingleDailyAppointmentValidator) Validate(ctx context.Context, req SchedulingRequest) error {
	at := req.ScheduledAt
	dayStart := time.Date(at.Year(), at.Month(), at.Day(), OpeningHour, 0, 0, 0, at.Location())
	dayEnd := time.Date(at.Year(), at.Month(), at.Day(), ClosingHour, 0, 0, 0, at.Location())

	booked, err := v.Patients.PatientHasAppointmentBetween(ctx, req.PatientID, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("check same-day appointment: %w", err)
	}
	if booked {
		return &ValidationError{Reason: "patient already has an appointment scheduled on that day"}
	}
	return nil
}

// CancellationNoticeValidator rejects cancellations made less than
// MinCancellationNotice before the scheduled time. Cancelling exactly at the
// notice boundary is allowed.
type CancellationNoticeValidator struct {
	Appointments AppointmentRepository
	Now          func() time.Time
}

func (v *CancellationNoticeValidator) Validate(ctx context.Context, req CancellationRequest) error {
	appt, err := v.Appointments.GetAppointmentByID(ctx, req.AppointmentID)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}

	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}

	if appt.ScheduledAt.Sub(now) < MinCancellationNotice {
		return &ValidationError{Reason: fmt.Sprintf("appointment can only be cancelled at least %d hours in advance", int(MinCancellationNotice.Hours()))}
	}
	return nil
}

// NotAlreadyCancelledValidator makes re-cancellation a defined error so the
// original cancellation reason is never overwritten.
type NotAlreadyCancelledValidator struct {
	Appointments AppointmentRepository
}

func (v *NotAlreadyCancelledValidator) Validate(ctx context.Context, req CancellationRequest) error {
	appt, err := v.Appointments.GetAppointmentByID(ctx, req.AppointmentID)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}
	if appt.Cancelled() {
		return &ValidationError{Reason: "appointment is already cancelled"}
	}
	return nil
}
