package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository implements every repository interface of this package on a
// single pgx pool.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.Specialty,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var reason *string

	err := row.Scan(
		&a.ID,
		&a.PractitionerID,
		&a.PatientID,
		&a.ScheduledAt,
		&reason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.CancellationReason = reason
	return &a, nil
}

// PatientRepository

func (r *PgRepository) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)
	`, id).Scan(&exists)
	return exists, err
}

func (r *PgRepository) PatientActive(ctx context.Context, id uuid.UUID) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `
		SELECT active FROM patients WHERE id = $1
	`, id).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrPatientNotFound
		}
		return false, err
	}
	return active, nil
}

func (r *PgRepository) PatientHasAppointmentBetween(ctx context.Context, patientID uuid.UUID, from, to time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1
			  AND scheduled_at BETWEEN $2 AND $3
			  AND cancellation_reason IS NULL
		)
	`, patientID, from, to).Scan(&exists)
	return exists, err
}

// PractitionerRepository

func (r *PgRepository) PractitionerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM practitioners WHERE id = $1)
	`, id).Scan(&exists)
	return exists, err
}

func (r *PgRepository) PractitionerActive(ctx context.Context, id uuid.UUID) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `
		SELECT active FROM practitioners WHERE id = $1
	`, id).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrPractitionerNotFound
		}
		return false, err
	}
	return active, nil
}

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, specialty, active, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) ListAvailableBySpecialty(ctx context.Context, specialty string, at time.Time) ([]Practitioner, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.email, p.specialty, p.active, p.created_at, p.updated_at
		FROM practitioners p
		WHERE p.specialty = $1
		  AND p.active
		  AND NOT EXISTS (
			SELECT 1 FROM appointments a
			WHERE a.practitioner_id = p.id
			  AND a.scheduled_at = $2
			  AND a.cancellation_reason IS NULL
		  )
	`, specialty, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Practitioner
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// AppointmentRepository

func (r *PgRepository) AppointmentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)
	`, id).Scan(&exists)
	return exists, err
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, practitioner_id, patient_id, scheduled_at, cancellation_reason, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) PractitionerHasAppointmentAt(ctx context.Context, practitionerID uuid.UUID, at time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE practitioner_id = $1
			  AND scheduled_at = $2
			  AND cancellation_reason IS NULL
		)
	`, practitionerID, at).Scan(&exists)
	return exists, err
}

func (r *PgRepository) CreateAppointment(ctx context.Context, practitionerID, patientID uuid.UUID, at time.Time) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, practitioner_id, patient_id, scheduled_at, cancellation_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULL, now(), now())
		RETURNING id, practitioner_id, patient_id, scheduled_at, cancellation_reason, created_at, updated_at
	`, id, practitionerID, patientID, at)

	return scanAppointment(row)
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET cancellation_reason = $2,
		    updated_at = now()
		WHERE id = $1
		  AND cancellation_reason IS NULL
		RETURNING id, practitioner_id, patient_id, scheduled_at, cancellation_reason, created_at, updated_at
	`, id, reason)

	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, practitioner_id, patient_id, scheduled_at, cancellation_reason, created_at, updated_at
		FROM appointments
		WHERE patient_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) FindUpcomingWithoutReminder(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.practitioner_id, a.patient_id, a.scheduled_at, a.cancellation_reason, a.created_at, a.updated_at
		FROM appointments a
		WHERE a.cancellation_reason IS NULL
		  AND a.scheduled_at >= $1
		  AND a.scheduled_at < $2
		  AND NOT EXISTS (
			SELECT 1 FROM event_logs e
			WHERE e.appointment_id = a.id
			  AND e.event_type = 'APPOINTMENT_REMINDER'
		  )
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// PractitionerDirectory

func (r *PgRepository) CreatePractitioner(ctx context.Context, p *Practitioner) (*Practitioner, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO practitioners (id, name, email, specialty, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, now(), now())
		RETURNING id, name, email, specialty, active, created_at, updated_at
	`, id, p.Name, p.Email, p.Specialty)

	return scanPractitioner(row)
}

func (r *PgRepository) UpdatePractitioner(ctx context.Context, id uuid.UUID, name string, email *string) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE practitioners
		SET name = COALESCE(NULLIF($2, ''), name),
		    email = COALESCE($3, email),
		    updated_at = now()
		WHERE id = $1
		RETURNING id, name, email, specialty, active, created_at, updated_at
	`, id, name, email)

	return scanPractitioner(row)
}

func (r *PgRepository) DeactivatePractitioner(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE practitioners
		SET active = false,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPractitionerNotFound
	}
	return nil
}

func (r *PgRepository) ListActivePractitioners(ctx context.Context, limit, offset int) ([]Practitioner, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, specialty, active, created_at, updated_at
		FROM practitioners
		WHERE active
		ORDER BY name
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Practitioner
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// PatientDirectory

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, name, email, active, created_at, updated_at)
		VALUES ($1, $2, $3, true, now(), now())
		RETURNING id, name, email, active, created_at, updated_at
	`, id, p.Name, p.Email)

	return scanPatient(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, active, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) UpdatePatient(ctx context.Context, id uuid.UUID, name string, email *string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE patients
		SET name = COALESCE(NULLIF($2, ''), name),
		    email = COALESCE($3, email),
		    updated_at = now()
		WHERE id = $1
		RETURNING id, name, email, active, created_at, updated_at
	`, id, name, email)

	return scanPatient(row)
}

func (r *PgRepository) DeactivatePatient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE patients
		SET active = false,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PgRepository) ListActivePatients(ctx context.Context, limit, offset int) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, active, created_at, updated_at
		FROM patients
		WHERE active
		ORDER BY name
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
