package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/careloop/patient-portal/internal/redis"
)

var (
	// ErrDoctorNotAvailable: no active rule for the requested weekday.
	// Not retryable without changing the day or the doctor.
	ErrDoctorNotAvailable = errors.New("doctor is not available on the requested day")

	// ErrInvalidSlot: the requested time is not on the slot grid the
	// doctor's rule generates. A caller bug, not retryable.
	ErrInvalidSlot = errors.New("requested time is not a valid slot")

	// ErrSlotUnavailable: lost the race to another booking. Retryable with
	// a different slot; the service never auto-selects an alternative.
	ErrSlotUnavailable = errors.New("slot is no longer available")
)

const alternativeDoctorLimit = 3

// DayAvailability is the computed slot picture for one doctor and date.
type DayAvailability struct {
	Doctor       *Doctor
	Date         time.Time
	Weekday      time.Weekday
	Slots        []Slot
	TotalSlots   int
	BookedSlots  int
	Alternatives []Doctor
}

func (d *DayAvailability) Available() bool {
	return len(d.Slots) > 0
}

type Service struct {
	repo   Repository
	locker redisclient.Locker
	log    zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		log:    log,
	}
}

// AvailableSlots computes the bookable slots for a doctor on a calendar
// date: weekday rule -> candidate grid -> minus occupied starts. A day with
// no rule is a normal outcome and comes back with zero slots plus up to
// three other doctors active that weekday.
func (s *Service) AvailableSlots(ctx context.Context, doctorName string, date time.Time) (*DayAvailability, error) {
	doctor, err := s.repo.GetDoctorByName(ctx, doctorName)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	weekday := date.Weekday()

	day := &DayAvailability{
		Doctor:  doctor,
		Date:    date,
		Weekday: weekday,
	}

	rule, err := s.repo.GetActiveRule(ctx, doctor.ID, weekday)
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			alternatives, altErr := s.repo.ListDoctorsActiveOn(ctx, weekday, doctor.ID, alternativeDoctorLimit)
			if altErr != nil {
				// Suggestions are best effort; the empty day still stands.
				s.log.Warn().Err(altErr).Str("doctor", doctorName).Msg("list alternative doctors failed")
			} else {
				day.Alternatives = alternatives
			}
			return day, nil
		}
		return nil, fmt.Errorf("load availability rule: %w", err)
	}

	candidates := Slots(*rule)

	occupied, err := s.repo.ListOccupiedTimes(ctx, doctor.ID, date)
	if err != nil {
		return nil, fmt.Errorf("list occupied times: %w", err)
	}

	day.Slots = Available(candidates, occupied)
	day.TotalSlots = len(candidates)
	day.BookedSlots = len(candidates) - len(day.Slots)

	return day, nil
}

// Book creates a pending appointment for the exact slot, or fails. The
// availability and grid checks run up front; the conflict check runs again
// inside the repository transaction, under a per-slot Redis lock, so two
// concurrent bookings of the identical slot cannot both succeed.
func (s *Service) Book(ctx context.Context, doctorID, patientID uuid.UUID, date time.Time, at TimeOfDay, reason string) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	rule, err := s.repo.GetActiveRule(ctx, doctorID, date.Weekday())
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return nil, ErrDoctorNotAvailable
		}
		return nil, fmt.Errorf("load availability rule: %w", err)
	}

	if !OnGrid(*rule, at) {
		return nil, ErrInvalidSlot
	}

	scheduledAt := at.At(date)

	var created *Appointment

	err = s.locker.WithBookingLock(ctx, doctorID, scheduledAt, func(lockCtx context.Context) error {
		appt, err := s.repo.CreatePendingAppointment(lockCtx, doctorID, patientID, scheduledAt, reason)
		if err != nil {
			return err
		}
		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrSlotTaken) || errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", doctorID.String()).
		Time("scheduled_at", scheduledAt).
		Msg("appointment booked")

	return created, nil
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}
