package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careloop/patient-portal/internal/schedule"
)

const dateLayout = "2006-01-02"

func listSlotsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorName := chi.URLParam(r, "name")

		dateStr := r.URL.Query().Get("date")
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		day, err := svc.AvailableSlots(r.Context(), doctorName, date)
		if err != nil {
			if errors.Is(err, schedule.ErrDoctorNotFound) {
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := SlotListingResponse{
			Doctor:         day.Doctor.Name,
			Date:           date.Format(dateLayout),
			DayOfWeek:      day.Weekday.String(),
			Available:      day.Available(),
			AvailableSlots: make([]string, 0, len(day.Slots)),
			TotalSlots:     day.TotalSlots,
			BookedSlots:    day.BookedSlots,
		}

		for _, s := range day.Slots {
			resp.AvailableSlots = append(resp.AvailableSlots, s.Start.Clock12())
		}

		if !day.Available() {
			resp.Message = fmt.Sprintf("Dr. %s has no open slots on %s", day.Doctor.Name, day.Weekday)
			for _, d := range day.Alternatives {
				resp.AlternativeDoctors = append(resp.AlternativeDoctors, d.Name)
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func bookAppointmentHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		at, err := schedule.ParseTimeOfDay(req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM")
			return
		}

		appt, err := svc.Book(r.Context(), doctorID, patientID, date, at, req.Reason)
		if err != nil {
			handleBookError(w, err)
			return
		}

		resp := AppointmentResponse{
			ID:          appt.ID,
			DoctorID:    appt.DoctorID,
			PatientID:   appt.PatientID,
			ScheduledAt: appt.ScheduledAt,
			Status:      string(appt.Status),
			Reason:      appt.Reason,
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func getAppointmentHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "id")
		id, err := uuid.Parse(idStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, schedule.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := AppointmentDetailResponse{
			AppointmentResponse: AppointmentResponse{
				ID:          detail.ID,
				DoctorID:    detail.DoctorID,
				PatientID:   detail.PatientID,
				ScheduledAt: detail.ScheduledAt,
				Status:      string(detail.Status),
				Reason:      detail.Reason,
			},
			DoctorName:  detail.Doctor.Name,
			PatientName: detail.Patient.Name,
		}
		if detail.Note != nil {
			resp.Note = *detail.Note
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func handleBookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, schedule.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, schedule.ErrDoctorNotAvailable):
		writeError(w, http.StatusConflict, "doctor_not_available", err.Error())
	case errors.Is(err, schedule.ErrInvalidSlot):
		writeError(w, http.StatusUnprocessableEntity, "invalid_slot", err.Error())
	case errors.Is(err, schedule.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "slot was booked by someone else, pick another")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
