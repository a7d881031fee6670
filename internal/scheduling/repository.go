package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PatientRepository answers the read-only patient questions the scheduling
// rules need. The appointment-in-range check is scoped per patient, which is
// why it lives here rather than on AppointmentRepository.
type PatientRepository interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
	PatientActive(ctx context.Context, id uuid.UUID) (bool, error)
	PatientHasAppointmentBetween(ctx context.Context, patientID uuid.UUID, from, to time.Time) (bool, error)
}

type PractitionerRepository interface {
	PractitionerExists(ctx context.Context, id uuid.UUID) (bool, error)
	PractitionerActive(ctx context.Context, id uuid.UUID) (bool, error)
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)

	// ListAvailableBySpecialty returns active practitioners of the given
	// specialty with no non-cancelled appointment at exactly the given time.
	ListAvailableBySpecialty(ctx context.Context, specialty string, at time.Time) ([]Practitioner, error)
}

type AppointmentRepository interface {
	AppointmentExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	PractitionerHasAppointmentAt(ctx context.Context, practitionerID uuid.UUID, at time.Time) (bool, error)

	CreateAppointment(ctx context.Context, practitionerID, patientID uuid.UUID, at time.Time) (*Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error)

	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Reminder worker
	FindUpcomingWithoutReminder(ctx context.Context, from, to time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// PractitionerDirectory and PatientDirectory cover the registration CRUD
// used by the HTTP layer; the scheduling core itself never writes to them.
type PractitionerDirectory interface {
	CreatePractitioner(ctx context.Context, p *Practitioner) (*Practitioner, error)
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	UpdatePractitioner(ctx context.Context, id uuid.UUID, name string, email *string) (*Practitioner, error)
	DeactivatePractitioner(ctx context.Context, id uuid.UUID) error
	ListActivePractitioners(ctx context.Context, limit, offset int) ([]Practitioner, error)
}

type PatientDirectory interface {
	CreatePatient(ctx context.Context, p *Patient) (*Patient, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, name string, email *string) (*Patient, error)
	DeactivatePatient(ctx context.Context, id uuid.UUID) error
	ListActivePatients(ctx context.Context, limit, offset int) ([]Patient, error)
}
