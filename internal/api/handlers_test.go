package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/patient-portal/internal/clock"
	"github.com/careloop/patient-portal/internal/instantconsult"
	"github.com/careloop/patient-portal/internal/schedule"
)

// In-memory repositories backing the real services, so the handlers are
// exercised end to end without Postgres or Redis.

type memRepo struct {
	mu       sync.Mutex
	doctors  map[uuid.UUID]schedule.Doctor
	patients map[uuid.UUID]schedule.Patient
	rules    []schedule.AvailabilityRule
	booked   map[string]schedule.Appointment
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:  make(map[uuid.UUID]schedule.Doctor),
		patients: make(map[uuid.UUID]schedule.Patient),
		booked:   make(map[string]schedule.Appointment),
	}
}

func (m *memRepo) key(doctorID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s|%d", doctorID, at.Unix())
}

func (m *memRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*schedule.Doctor, error) {
	if d, ok := m.doctors[id]; ok {
		return &d, nil
	}
	return nil, schedule.ErrDoctorNotFound
}

func (m *memRepo) GetDoctorByName(_ context.Context, name string) (*schedule.Doctor, error) {
	for _, d := range m.doctors {
		if d.Name == name {
			return &d, nil
		}
	}
	return nil, schedule.ErrDoctorNotFound
}

func (m *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*schedule.Patient, error) {
	if p, ok := m.patients[id]; ok {
		return &p, nil
	}
	return nil, schedule.ErrPatientNotFound
}

func (m *memRepo) GetActiveRule(_ context.Context, doctorID uuid.UUID, weekday time.Weekday) (*schedule.AvailabilityRule, error) {
	for _, r := range m.rules {
		if r.DoctorID == doctorID && r.Weekday == weekday && r.Active {
			rule := r
			return &rule, nil
		}
	}
	return nil, schedule.ErrRuleNotFound
}

func (m *memRepo) ListDoctorsActiveOn(_ context.Context, weekday time.Weekday, exclude uuid.UUID, limit int) ([]schedule.Doctor, error) {
	var result []schedule.Doctor
	for _, r := range m.rules {
		if r.Weekday != weekday || !r.Active || r.DoctorID == exclude {
			continue
		}
		if d, ok := m.doctors[r.DoctorID]; ok {
			result = append(result, d)
			if len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

func (m *memRepo) ListOccupiedTimes(_ context.Context, doctorID uuid.UUID, date time.Time) ([]schedule.TimeOfDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var occupied []schedule.TimeOfDay
	for _, a := range m.booked {
		if a.DoctorID == doctorID && a.ScheduledAt.Year() == date.Year() && a.ScheduledAt.YearDay() == date.YearDay() {
			occupied = append(occupied, schedule.TimeOfDayFrom(a.ScheduledAt))
		}
	}
	return occupied, nil
}

func (m *memRepo) CreatePendingAppointment(_ context.Context, doctorID, patientID uuid.UUID, at time.Time, reason string) (*schedule.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.key(doctorID, at)
	if _, ok := m.booked[key]; ok {
		return nil, schedule.ErrSlotTaken
	}

	appt := schedule.Appointment{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		PatientID:   patientID,
		ScheduledAt: at,
		Status:      schedule.StatusPending,
		Reason:      reason,
	}
	m.booked[key] = appt
	return &appt, nil
}

func (m *memRepo) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*schedule.AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.booked {
		if a.ID == id {
			doctor := m.doctors[a.DoctorID]
			patient := m.patients[a.PatientID]
			return &schedule.AppointmentDetail{Appointment: a, Doctor: &doctor, Patient: &patient}, nil
		}
	}
	return nil, schedule.ErrAppointmentNotFound
}

type memConsultRepo struct {
	mu       sync.Mutex
	rules    []schedule.AvailabilityRule
	doctors  map[uuid.UUID]schedule.Doctor
	requests map[uuid.UUID]*instantconsult.Request
}

func newMemConsultRepo() *memConsultRepo {
	return &memConsultRepo{
		doctors:  make(map[uuid.UUID]schedule.Doctor),
		requests: make(map[uuid.UUID]*instantconsult.Request),
	}
}

func (m *memConsultRepo) FindOnShiftDoctor(_ context.Context, weekday time.Weekday, at schedule.TimeOfDay) (*schedule.Doctor, error) {
	for _, r := range m.rules {
		if r.Weekday == weekday && r.Active && r.Start <= at && at < r.End {
			d := m.doctors[r.DoctorID]
			return &d, nil
		}
	}
	return nil, instantconsult.ErrNoDoctorAvailable
}

func (m *memConsultRepo) CreateWaiting(_ context.Context, patientID, doctorID uuid.UUID, meetingRef string) (*instantconsult.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req := &instantconsult.Request{
		ID:         uuid.New(),
		PatientID:  patientID,
		DoctorID:   doctorID,
		MeetingRef: meetingRef,
		Status:     instantconsult.StatusWaiting,
		CreatedAt:  tuesdayNoon,
	}
	m.requests[req.ID] = req
	return req, nil
}

func (m *memConsultRepo) EndStale(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, req := range m.requests {
		if req.Status == instantconsult.StatusWaiting && req.CreatedAt.Before(cutoff) {
			req.Status = instantconsult.StatusEnded
			n++
		}
	}
	return n, nil
}

func (m *memConsultRepo) ListWaiting(_ context.Context) ([]instantconsult.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []instantconsult.Request
	for _, req := range m.requests {
		if req.Status == instantconsult.StatusWaiting {
			result = append(result, *req)
		}
	}
	return result, nil
}

func (m *memConsultRepo) UpdateStatusByID(_ context.Context, id uuid.UUID, to instantconsult.Status) (*instantconsult.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, instantconsult.ErrRequestNotFound
	}
	req.Status = to
	out := *req
	return &out, nil
}

func (m *memConsultRepo) UpdateStatusByMeetingRef(_ context.Context, meetingRef string, to instantconsult.Status) (*instantconsult.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, req := range m.requests {
		if req.MeetingRef == meetingRef {
			req.Status = to
			out := *req
			return &out, nil
		}
	}
	return nil, instantconsult.ErrRequestNotFound
}

type passLocker struct{}

func (passLocker) WithBookingLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type noopProvisioner struct{}

func (noopProvisioner) Provision(context.Context, string) error { return nil }

type fixture struct {
	handler http.Handler
	repo    *memRepo
	consult *memConsultRepo
	doctor  schedule.Doctor
	patient schedule.Patient
}

// tuesdayNoon keeps the instant-consult doctor on shift during the tests.
var tuesdayNoon = time.Date(2026, time.September, 8, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMemRepo()
	consult := newMemConsultRepo()

	doctor := schedule.Doctor{ID: uuid.New(), Name: "Ortiz"}
	patient := schedule.Patient{ID: uuid.New(), Name: "Marta Silva"}
	repo.doctors[doctor.ID] = doctor
	repo.patients[patient.ID] = patient

	start, err := schedule.ParseTimeOfDay("09:00")
	require.NoError(t, err)
	end, err := schedule.ParseTimeOfDay("10:00")
	require.NoError(t, err)

	ruleTemplate := schedule.AvailabilityRule{
		ID:          uuid.New(),
		DoctorID:    doctor.ID,
		Start:       start,
		End:         end,
		SlotMinutes: 30,
		Active:      true,
	}

	monday := ruleTemplate
	monday.Weekday = time.Monday
	repo.rules = append(repo.rules, monday)

	tuesday := ruleTemplate
	tuesday.Weekday = time.Tuesday
	tuesday.End, err = schedule.ParseTimeOfDay("17:00")
	require.NoError(t, err)
	consult.doctors[doctor.ID] = doctor
	consult.rules = append(consult.rules, tuesday)

	scheduleSvc := schedule.NewService(repo, passLocker{}, zerolog.Nop())
	instantSvc := instantconsult.NewService(consult, noopProvisioner{}, clock.Fixed{T: tuesdayNoon}, 90*time.Second, zerolog.Nop())

	handler := NewRouter(RouterConfig{
		Schedule: scheduleSvc,
		Instant:  instantSvc,
		Log:      zerolog.Nop(),
		Env:      "test",
		Version:  "test",
	})

	return &fixture{
		handler: handler,
		repo:    repo,
		consult: consult,
		doctor:  doctor,
		patient: patient,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestListSlots(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/doctors/Ortiz/slots?date=2026-09-07", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[SlotListingResponse](t, rec)
	assert.True(t, resp.Available)
	assert.Equal(t, "Monday", resp.DayOfWeek)
	assert.Equal(t, []string{"9:00 AM", "9:30 AM"}, resp.AvailableSlots)
	assert.Equal(t, 2, resp.TotalSlots)
	assert.Equal(t, 0, resp.BookedSlots)
}

func TestListSlots_NoRuleForDay(t *testing.T) {
	f := newFixture(t)

	// No Wednesday rule exists.
	rec := f.do(t, http.MethodGet, "/doctors/Ortiz/slots?date=2026-09-09", nil)
	require.Equal(t, http.StatusOK, rec.Code, "a day off is not an HTTP error")

	resp := decode[SlotListingResponse](t, rec)
	assert.False(t, resp.Available)
	assert.Empty(t, resp.AvailableSlots)
	assert.NotEmpty(t, resp.Message)
}

func TestListSlots_BadInput(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/doctors/Ortiz/slots?date=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/doctors/Nobody/slots?date=2026-09-07", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "doctor_not_found", decode[ErrorResponse](t, rec).Error)
}

func TestBookAppointment(t *testing.T) {
	f := newFixture(t)

	body := BookAppointmentRequest{
		DoctorID:  f.doctor.ID.String(),
		PatientID: f.patient.ID.String(),
		Date:      "2026-09-07",
		Time:      "09:00",
		Reason:    "checkup",
	}

	rec := f.do(t, http.MethodPost, "/appointments", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, f.doctor.ID, resp.DoctorID)

	// The slot disappears from the listing.
	listRec := f.do(t, http.MethodGet, "/doctors/Ortiz/slots?date=2026-09-07", nil)
	listing := decode[SlotListingResponse](t, listRec)
	assert.Equal(t, []string{"9:30 AM"}, listing.AvailableSlots)
	assert.Equal(t, 1, listing.BookedSlots)

	// Retry of the same slot loses.
	rec = f.do(t, http.MethodPost, "/appointments", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_unavailable", decode[ErrorResponse](t, rec).Error)
}

func TestBookAppointment_ErrorTaxonomy(t *testing.T) {
	f := newFixture(t)

	base := BookAppointmentRequest{
		DoctorID:  f.doctor.ID.String(),
		PatientID: f.patient.ID.String(),
		Date:      "2026-09-07",
		Time:      "09:00",
		Reason:    "checkup",
	}

	offGrid := base
	offGrid.Time = "09:10"
	rec := f.do(t, http.MethodPost, "/appointments", offGrid)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_slot", decode[ErrorResponse](t, rec).Error)

	dayOff := base
	dayOff.Date = "2026-09-09"
	rec = f.do(t, http.MethodPost, "/appointments", dayOff)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "doctor_not_available", decode[ErrorResponse](t, rec).Error)

	unknownPatient := base
	unknownPatient.PatientID = uuid.NewString()
	rec = f.do(t, http.MethodPost, "/appointments", unknownPatient)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "patient_not_found", decode[ErrorResponse](t, rec).Error)

	badID := base
	badID.DoctorID = "not-a-uuid"
	rec = f.do(t, http.MethodPost, "/appointments", badID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAppointment(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  f.doctor.ID.String(),
		PatientID: f.patient.ID.String(),
		Date:      "2026-09-07",
		Time:      "09:30",
		Reason:    "follow-up",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[AppointmentResponse](t, rec)

	rec = f.do(t, http.MethodGet, "/appointments/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	detail := decode[AppointmentDetailResponse](t, rec)
	assert.Equal(t, "Ortiz", detail.DoctorName)
	assert.Equal(t, "Marta Silva", detail.PatientName)

	rec = f.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInstantConsultFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/instant-consults", InstantConsultRequestBody{
		PatientID: f.patient.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decode[InstantConsultResponse](t, rec)
	assert.Equal(t, "waiting", created.Status)
	assert.Equal(t, "Ortiz", created.DoctorName)
	assert.NotEmpty(t, created.MeetingRef)

	rec = f.do(t, http.MethodGet, "/instant-consults/waiting", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	waiting := decode[[]InstantConsultResponse](t, rec)
	require.Len(t, waiting, 1)

	// The video platform ends the call by meeting reference.
	rec = f.do(t, http.MethodPatch, "/instant-consults/meeting/"+created.MeetingRef, UpdateInstantConsultRequest{Status: "ended"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ended", decode[InstantConsultResponse](t, rec).Status)

	rec = f.do(t, http.MethodGet, "/instant-consults/waiting", nil)
	waiting = decode[[]InstantConsultResponse](t, rec)
	assert.Empty(t, waiting)
}

func TestInstantConsult_NoDoctorOnShift(t *testing.T) {
	f := newFixture(t)
	f.consult.rules = nil

	rec := f.do(t, http.MethodPost, "/instant-consults", InstantConsultRequestBody{
		PatientID: f.patient.ID.String(),
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no_doctor_available", decode[ErrorResponse](t, rec).Error)
}

func TestInstantConsult_UpdateValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPatch, "/instant-consults/"+uuid.NewString(), UpdateInstantConsultRequest{Status: "cancelled"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/instant-consults/"+uuid.NewString(), UpdateInstantConsultRequest{Status: "ended"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health/live", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "my-custom-id")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "my-custom-id", rec.Header().Get("X-Request-ID"))
}
