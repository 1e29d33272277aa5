package instantconsult

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careloop/patient-portal/internal/schedule"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request

	err := row.Scan(
		&r.ID,
		&r.PatientID,
		&r.DoctorID,
		&r.MeetingRef,
		&r.Status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	return &r, nil
}

func (r *PgRepository) FindOnShiftDoctor(ctx context.Context, weekday time.Weekday, at schedule.TimeOfDay) (*schedule.Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT d.id, d.name, d.specialty, d.created_at, d.updated_at
		FROM doctors d
		JOIN availability_rules ar ON ar.doctor_id = d.id
		WHERE ar.weekday = $1
		  AND ar.active
		  AND ar.start_minute <= $2
		  AND ar.end_minute > $2
		ORDER BY d.name
		LIMIT 1
	`, int(weekday), int(at))

	var d schedule.Doctor
	var specialty *string

	err := row.Scan(&d.ID, &d.Name, &specialty, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoDoctorAvailable
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func (r *PgRepository) CreateWaiting(ctx context.Context, patientID, doctorID uuid.UUID, meetingRef string) (*Request, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO instant_consults (id, patient_id, doctor_id, meeting_ref, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'waiting', now(), now())
		RETURNING id, patient_id, doctor_id, meeting_ref, status, created_at, updated_at
	`, id, patientID, doctorID, meetingRef)

	return scanRequest(row)
}

func (r *PgRepository) EndStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE instant_consults
		SET status = 'ended',
		    updated_at = now()
		WHERE status = 'waiting'
		  AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("end stale instant consults: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *PgRepository) ListWaiting(ctx context.Context) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, doctor_id, meeting_ref, status, created_at, updated_at
		FROM instant_consults
		WHERE status = 'waiting'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpdateStatusByID(ctx context.Context, id uuid.UUID, to Status) (*Request, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE instant_consults
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, patient_id, doctor_id, meeting_ref, status, created_at, updated_at
	`, id, to)

	return scanRequest(row)
}

func (r *PgRepository) UpdateStatusByMeetingRef(ctx context.Context, meetingRef string, to Status) (*Request, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE instant_consults
		SET status = $2,
		    updated_at = now()
		WHERE meeting_ref = $1
		RETURNING id, patient_id, doctor_id, meeting_ref, status, created_at, updated_at
	`, meetingRef, to)

	return scanRequest(row)
}
