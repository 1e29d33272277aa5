package instantconsult

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/careloop/patient-portal/internal/clock"
	"github.com/careloop/patient-portal/internal/schedule"
	"github.com/careloop/patient-portal/internal/video"
)

var (
	// ErrNoDoctorAvailable: no doctor is inside an availability window right
	// now. Retryable later.
	ErrNoDoctorAvailable = errors.New("no doctor is available right now")

	ErrInvalidStatus = errors.New("invalid instant consult status")
)

const meetingRefAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
const meetingRefLength = 12

type Match struct {
	Request *Request
	Doctor  *schedule.Doctor
}

type Service struct {
	repo    Repository
	video   video.Provisioner
	clock   clock.Clock
	timeout time.Duration
	log     zerolog.Logger
}

func NewService(repo Repository, provisioner video.Provisioner, clk clock.Clock, timeout time.Duration, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		video:   provisioner,
		clock:   clk,
		timeout: timeout,
		log:     log,
	}
}

// RequestNow matches the patient with a doctor currently on shift, records
// a waiting entry, and provisions a meeting room for the reference.
func (s *Service) RequestNow(ctx context.Context, patientID uuid.UUID) (*Match, error) {
	now := s.clock.Now()

	doctor, err := s.repo.FindOnShiftDoctor(ctx, now.Weekday(), schedule.TimeOfDayFrom(now))
	if err != nil {
		if errors.Is(err, ErrNoDoctorAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("find on-shift doctor: %w", err)
	}

	meetingRef, err := gonanoid.Generate(meetingRefAlphabet, meetingRefLength)
	if err != nil {
		return nil, fmt.Errorf("generate meeting reference: %w", err)
	}

	req, err := s.repo.CreateWaiting(ctx, patientID, doctor.ID, meetingRef)
	if err != nil {
		return nil, fmt.Errorf("create waiting request: %w", err)
	}

	if err := s.video.Provision(ctx, meetingRef); err != nil {
		// The entry stays in waiting; the admin poller or the timeout will
		// end it if the room never materializes.
		s.log.Error().Err(err).Str("meeting_ref", meetingRef).Msg("meeting room provisioning failed")
	}

	s.log.Info().
		Str("request_id", req.ID.String()).
		Str("doctor_id", doctor.ID.String()).
		Str("meeting_ref", meetingRef).
		Msg("instant consult matched")

	return &Match{Request: req, Doctor: doctor}, nil
}

// WaitingList reaps stale entries and returns the live waiting room. The
// reap is a side effect of every read; there is no background timer.
func (s *Service) WaitingList(ctx context.Context) ([]Request, error) {
	cutoff := s.clock.Now().Add(-s.timeout)

	reaped, err := s.repo.EndStale(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("reap stale requests: %w", err)
	}
	if reaped > 0 {
		s.log.Info().Int64("count", reaped).Msg("stale instant consults ended")
	}

	waiting, err := s.repo.ListWaiting(ctx)
	if err != nil {
		return nil, fmt.Errorf("list waiting requests: %w", err)
	}

	return waiting, nil
}

// UpdateStatus transitions a request by its identity.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Request, error) {
	if !ValidStatus(to) {
		return nil, ErrInvalidStatus
	}

	req, err := s.repo.UpdateStatusByID(ctx, id, to)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update instant consult: %w", err)
	}

	return req, nil
}

// UpdateStatusByMeetingRef transitions a request by its meeting reference,
// the handle the external video platform knows it by.
func (s *Service) UpdateStatusByMeetingRef(ctx context.Context, meetingRef string, to Status) (*Request, error) {
	if !ValidStatus(to) {
		return nil, ErrInvalidStatus
	}

	req, err := s.repo.UpdateStatusByMeetingRef(ctx, meetingRef, to)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update instant consult: %w", err)
	}

	return req, nil
}
