package schedule

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCancelled AppointmentStatus = "cancelled"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityRule is a doctor's recurring weekly window. Rules are written
// by clinic administration and read-only here.
type AvailabilityRule struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	Weekday     time.Weekday
	Start       TimeOfDay
	End         TimeOfDay
	SlotMinutes int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Appointment struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	ScheduledAt time.Time
	Status      AppointmentStatus
	Reason      string
	Note        *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Slot is a bookable unit derived from a rule. Slots are computed per
// request and never persisted.
type Slot struct {
	Start TimeOfDay
	End   TimeOfDay
}

type AppointmentDetail struct {
	Appointment
	Doctor  *Doctor
	Patient *Patient
}
