package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medbook/clinic-scheduling/internal/scheduling"
)

type ScheduleAppointmentRequest struct {
	PatientID      string    `json:"patient_id"`
	PractitionerID string    `json:"practitioner_id,omitempty"`
	Specialty      string    `json:"specialty,omitempty"`
	ScheduledAt    time.Time `json:"scheduled_at"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID `json:"id"`
	PractitionerID     uuid.UUID `json:"practitioner_id"`
	PatientID          uuid.UUID `json:"patient_id"`
	ScheduledAt        time.Time `json:"scheduled_at"`
	CancellationReason *string   `json:"cancellation_reason,omitempty"`
}

func appointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		PractitionerID:     a.PractitionerID,
		PatientID:          a.PatientID,
		ScheduledAt:        a.ScheduledAt,
		CancellationReason: a.CancellationReason,
	}
}

type CreatePractitionerRequest struct {
	Name      string  `json:"name"`
	Email     *string `json:"email,omitempty"`
	Specialty string  `json:"specialty"`
}

type CreatePatientRequest struct {
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
}

type UpdateDirectoryEntryRequest struct {
	Name  string  `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

type PractitionerResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	Specialty string    `json:"specialty"`
	Active    bool      `json:"active"`
}

func practitionerResponse(p *scheduling.Practitioner) PractitionerResponse {
	return PractitionerResponse{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Specialty: p.Specialty,
		Active:    p.Active,
	}
}

type PatientResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  *string   `json:"email,omitempty"`
	Active bool      `json:"active"`
}

func patientResponse(p *scheduling.Patient) PatientResponse {
	return PatientResponse{
		ID:     p.ID,
		Name:   p.Name,
		Email:  p.Email,
		Active: p.Active,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
