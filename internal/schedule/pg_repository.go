package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
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

func scanRule(row pgx.Row) (*AvailabilityRule, error) {
	var r AvailabilityRule
	var weekday, start, end int

	err := row.Scan(
		&r.ID,
		&r.DoctorID,
		&weekday,
		&start,
		&end,
		&r.SlotMinutes,
		&r.Active,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	r.Weekday = time.Weekday(weekday)
	r.Start = TimeOfDay(start)
	r.End = TimeOfDay(end)
	return &r, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var note *string

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.ScheduledAt,
		&a.Status,
		&a.Reason,
		&note,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Note = note
	return &a, nil
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorByName(ctx context.Context, name string) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE lower(name) = lower($1)
	`, name)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetActiveRule(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*AvailabilityRule, error) {
	// A partial unique index keeps one active rule per (doctor, weekday);
	// the ordering makes the pick deterministic if legacy data predates it.
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, weekday, start_minute, end_minute, slot_minutes, active, created_at, updated_at
		FROM availability_rules
		WHERE doctor_id = $1 AND weekday = $2 AND active
		ORDER BY created_at
		LIMIT 1
	`, doctorID, int(weekday))
	return scanRule(row)
}

func (r *PgRepository) ListDoctorsActiveOn(ctx context.Context, weekday time.Weekday, exclude uuid.UUID, limit int) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT d.id, d.name, d.specialty, d.created_at, d.updated_at
		FROM doctors d
		JOIN availability_rules ar ON ar.doctor_id = d.id
		WHERE ar.weekday = $1 AND ar.active AND d.id <> $2
		ORDER BY d.name
		LIMIT $3
	`, int(weekday), exclude, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListOccupiedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeOfDay, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	rows, err := r.pool.Query(ctx, `
		SELECT scheduled_at
		FROM appointments
		WHERE doctor_id = $1
		  AND scheduled_at >= $2
		  AND scheduled_at < $3
		  AND status IN ('pending', 'scheduled')
		ORDER BY scheduled_at
	`, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occupied []TimeOfDay
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		occupied = append(occupied, TimeOfDayFrom(at))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return occupied, nil
}

// CreatePendingAppointment is the only write path for appointments. The
// conflict check and the insert run inside one transaction, with the
// conflicting rows locked, so two concurrent bookings of the same
// (doctor, instant) serialize and exactly one commits. The partial unique
// index on non-cancelled (doctor_id, scheduled_at) backs the same guarantee
// at the storage layer.
func (r *PgRepository) CreatePendingAppointment(ctx context.Context, doctorID, patientID uuid.UUID, at time.Time, reason string) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id
		FROM appointments
		WHERE doctor_id = $1
		  AND scheduled_at = $2
		  AND status IN ('pending', 'scheduled')
		FOR UPDATE
	`, doctorID, at).Scan(&existing)
	if err == nil {
		return nil, ErrSlotTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check occupied slot: %w", err)
	}

	id := uuid.New()

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, scheduled_at, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, now(), now())
		RETURNING id, doctor_id, patient_id, scheduled_at, status, reason, note, created_at, updated_at
	`, id, doctorID, patientID, at, reason)

	appt, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return appt, nil
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT a.id, a.doctor_id, a.patient_id, a.scheduled_at, a.status, a.reason, a.note, a.created_at, a.updated_at,
		       d.id, d.name, d.specialty, d.created_at, d.updated_at,
		       p.id, p.name, p.email, p.created_at, p.updated_at
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		JOIN patients p ON p.id = a.patient_id
		WHERE a.id = $1
	`, id)

	var detail AppointmentDetail
	var note, specialty, email *string
	var doctor Doctor
	var patient Patient

	err := row.Scan(
		&detail.ID,
		&detail.DoctorID,
		&detail.PatientID,
		&detail.ScheduledAt,
		&detail.Status,
		&detail.Reason,
		&note,
		&detail.CreatedAt,
		&detail.UpdatedAt,
		&doctor.ID,
		&doctor.Name,
		&specialty,
		&doctor.CreatedAt,
		&doctor.UpdatedAt,
		&patient.ID,
		&patient.Name,
		&email,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	detail.Note = note
	doctor.Specialty = specialty
	patient.Email = email
	detail.Doctor = &doctor
	detail.Patient = &patient

	return &detail, nil
}
