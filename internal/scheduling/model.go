package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Clinic business rules. The clinic is closed on Sundays and outside
// opening hours; bookings need a minimum lead time and cancellations a
// minimum notice.
const (
	OpeningHour = 7
	ClosingHour = 18

	MinLeadTime           = 30 * time.Minute
	MinCancellationNotice = 24 * time.Hour
)

// Specialties known to the seeder and the simulator. The scheduling core
// treats specialty as an opaque string; practitioners may carry any value.
const (
	SpecialtyCardiology      = "CARDIOLOGY"
	SpecialtyDermatology     = "DERMATOLOGY"
	SpecialtyGeneralPractice = "GENERAL_PRACTICE"
	SpecialtyOrthopedics     = "ORTHOPEDICS"
	SpecialtyPediatrics      = "PEDIATRICS"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Practitioner struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Specialty string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment is created only through a successful Schedule call. Its
// timestamp never changes after creation; the only mutation allowed is the
// one-way transition of CancellationReason from nil to a reason.
type Appointment struct {
	ID                 uuid.UUID
	PractitionerID     uuid.UUID
	PatientID          uuid.UUID
	ScheduledAt        time.Time
	CancellationReason *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (a *Appointment) Cancelled() bool {
	return a.CancellationReason != nil
}

// SchedulingRequest is the caller's intent to book an appointment.
// PractitionerID is optional; when absent, Specialty must be set and a free
// practitioner is picked automatically.
type SchedulingRequest struct {
	PatientID      uuid.UUID
	PractitionerID *uuid.UUID
	Specialty      string
	ScheduledAt    time.Time
}

type CancellationRequest struct {
	AppointmentID uuid.UUID
	Reason        string
}

// AppointmentDetail is the view returned to the caller after booking.
type AppointmentDetail struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	ScheduledAt    time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
