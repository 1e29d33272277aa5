package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrRuleNotFound        = errors.New("availability rule not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned by CreatePendingAppointment when a
	// non-cancelled appointment already holds the same instant.
	ErrSlotTaken = errors.New("slot already taken")
)

// Repository contains all DB interactions needed by the scheduling service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetDoctorByName(ctx context.Context, name string) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// GetActiveRule resolves the doctor's recurring window for a weekday.
	// No active rule for that day is ErrRuleNotFound, which callers treat
	// as zero bookable slots, not a failure.
	GetActiveRule(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*AvailabilityRule, error)

	// ListDoctorsActiveOn suggests other doctors holding an active rule on
	// the given weekday, excluding one doctor, for "try someone else" hints.
	ListDoctorsActiveOn(ctx context.Context, weekday time.Weekday, exclude uuid.UUID, limit int) ([]Doctor, error)

	// ListOccupiedTimes returns the start times of pending and scheduled
	// appointments for the doctor on the given calendar date.
	ListOccupiedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeOfDay, error)

	// CreatePendingAppointment performs the atomic check-then-insert: within
	// one transaction it verifies no pending or scheduled appointment holds
	// (doctorID, at) and inserts a pending row, or fails with ErrSlotTaken.
	CreatePendingAppointment(ctx context.Context, doctorID, patientID uuid.UUID, at time.Time, reason string) (*Appointment, error)

	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
}
