package scheduling

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// memRepo implements every repository interface of this package in memory,
// mirroring the SQL semantics of PgRepository.
type memRepo struct {
	patients      map[uuid.UUID]*Patient
	practitioners map[uuid.UUID]*Practitioner
	appointments  map[uuid.UUID]*Appointment
	events        []EventLog
}

func newMemRepo() *memRepo {
	return &memRepo{
		patients:      make(map[uuid.UUID]*Patient),
		practitioners: make(map[uuid.UUID]*Practitioner),
		appointments:  make(map[uuid.UUID]*Appointment),
	}
}

func (m *memRepo) addPatient(active bool) uuid.UUID {
	id := uuid.New()
	m.patients[id] = &Patient{ID: id, Name: "patient", Active: active}
	return id
}

func (m *memRepo) addPractitioner(name, specialty string, active bool) uuid.UUID {
	id := uuid.New()
	m.practitioners[id] = &Practitioner{ID: id, Name: name, Specialty: specialty, Active: active}
	return id
}

func (m *memRepo) addAppointment(practitionerID, patientID uuid.UUID, at time.Time) uuid.UUID {
	id := uuid.New()
	m.appointments[id] = &Appointment{
		ID:             id,
		PractitionerID: practitionerID,
		PatientID:      patientID,
		ScheduledAt:    at,
	}
	return id
}

func (m *memRepo) PatientExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.patients[id]
	return ok, nil
}

func (m *memRepo) PatientActive(_ context.Context, id uuid.UUID) (bool, error) {
	p, ok := m.patients[id]
	if !ok {
		return false, ErrPatientNotFound
	}
	return p.Active, nil
}

func (m *memRepo) PatientHasAppointmentBetween(_ context.Context, patientID uuid.UUID, from, to time.Time) (bool, error) {
	for _, a := range m.appointments {
		if a.PatientID != patientID || a.Cancelled() {
			continue
		}
		if !a.ScheduledAt.Before(from) && !a.ScheduledAt.After(to) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) PractitionerExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.practitioners[id]
	return ok, nil
}

func (m *memRepo) PractitionerActive(_ context.Context, id uuid.UUID) (bool, error) {
	p, ok := m.practitioners[id]
	if !ok {
		return false, ErrPractitionerNotFound
	}
	return p.Active, nil
}

func (m *memRepo) GetPractitionerByID(_ context.Context, id uuid.UUID) (*Practitioner, error) {
	p, ok := m.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) ListAvailableBySpecialty(ctx context.Context, specialty string, at time.Time) ([]Practitioner, error) {
	var result []Practitioner
	for _, p := range m.practitioners {
		if p.Specialty != specialty || !p.Active {
			continue
		}
		booked, err := m.PractitionerHasAppointmentAt(ctx, p.ID, at)
		if err != nil {
			return nil, err
		}
		if !booked {
			result = append(result, *p)
		}
	}
	// Map iteration order is random; keep candidate order stable for the
	// seeded-rng selection tests.
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *memRepo) AppointmentExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.appointments[id]
	return ok, nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) PractitionerHasAppointmentAt(_ context.Context, practitionerID uuid.UUID, at time.Time) (bool, error) {
	for _, a := range m.appointments {
		if a.PractitionerID == practitionerID && a.ScheduledAt.Equal(at) && !a.Cancelled() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) CreateAppointment(_ context.Context, practitionerID, patientID uuid.UUID, at time.Time) (*Appointment, error) {
	id := uuid.New()
	a := &Appointment{
		ID:             id,
		PractitionerID: practitionerID,
		PatientID:      patientID,
		ScheduledAt:    at,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	m.appointments[id] = a
	cp := *a
	return &cp, nil
}

func (m *memRepo) CancelAppointment(_ context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok || a.Cancelled() {
		return nil, ErrAppointmentNotFound
	}
	a.CancellationReason = &reason
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	var result []Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledAt.After(result[j].ScheduledAt) })
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *memRepo) FindUpcomingWithoutReminder(_ context.Context, from, to time.Time) ([]Appointment, error) {
	reminded := make(map[uuid.UUID]bool)
	for _, ev := range m.events {
		if ev.EventType == EventAppointmentReminder && ev.AppointmentID != nil {
			reminded[*ev.AppointmentID] = true
		}
	}

	var result []Appointment
	for _, a := range m.appointments {
		if a.Cancelled() || reminded[a.ID] {
			continue
		}
		if !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

func (m *memRepo) eventsOfType(eventType string) []EventLog {
	var result []EventLog
	for _, ev := range m.events {
		if ev.EventType == eventType {
			result = append(result, ev)
		}
	}
	return result
}

// fixedClock returns a func() time.Time pinned to t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
