package instantconsult

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusJoined  Status = "joined"
	StatusEnded   Status = "ended"
)

// ValidStatus reports whether s is a status a caller may transition to.
func ValidStatus(s Status) bool {
	switch s {
	case StatusWaiting, StatusJoined, StatusEnded:
		return true
	}
	return false
}

// Request is one patient's waiting-room entry for an on-demand video
// consult. A request left in waiting past the timeout counts as ended; the
// transition is applied lazily on the next waiting-list read.
type Request struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	DoctorID   uuid.UUID
	MeetingRef string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Stale is the reaping decision: a request created before now-timeout is
// treated as ended. Pure so it can be tested without a live clock.
func Stale(now, createdAt time.Time, timeout time.Duration) bool {
	return now.Sub(createdAt) > timeout
}
