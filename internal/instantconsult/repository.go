package instantconsult

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/patient-portal/internal/schedule"
)

var (
	ErrRequestNotFound = errors.New("instant consult request not found")
)

// Repository contains all DB interactions needed by the matcher.
type Repository interface {
	// FindOnShiftDoctor returns a doctor whose active rule covers the given
	// weekday and time of day (start <= at < end). First match by name.
	FindOnShiftDoctor(ctx context.Context, weekday time.Weekday, at schedule.TimeOfDay) (*schedule.Doctor, error)

	CreateWaiting(ctx context.Context, patientID, doctorID uuid.UUID, meetingRef string) (*Request, error)

	// EndStale flips waiting requests created before the cutoff to ended.
	// Idempotent: re-ending an ended request changes nothing.
	EndStale(ctx context.Context, cutoff time.Time) (int64, error)

	ListWaiting(ctx context.Context) ([]Request, error)

	UpdateStatusByID(ctx context.Context, id uuid.UUID, to Status) (*Request, error)
	UpdateStatusByMeetingRef(ctx context.Context, meetingRef string, to Status) (*Request, error)
}
