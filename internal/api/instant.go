package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careloop/patient-portal/internal/instantconsult"
)

func requestInstantConsultHandler(svc *instantconsult.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req InstantConsultRequestBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		match, err := svc.RequestNow(r.Context(), patientID)
		if err != nil {
			if errors.Is(err, instantconsult.ErrNoDoctorAvailable) {
				writeError(w, http.StatusNotFound, "no_doctor_available", "no doctor is on shift right now, try again later")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := InstantConsultResponse{
			ID:         match.Request.ID,
			PatientID:  match.Request.PatientID,
			DoctorID:   match.Request.DoctorID,
			DoctorName: match.Doctor.Name,
			MeetingRef: match.Request.MeetingRef,
			Status:     string(match.Request.Status),
			CreatedAt:  match.Request.CreatedAt,
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func waitingListHandler(svc *instantconsult.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		waiting, err := svc.WaitingList(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]InstantConsultResponse, 0, len(waiting))
		for _, req := range waiting {
			resp = append(resp, InstantConsultResponse{
				ID:         req.ID,
				PatientID:  req.PatientID,
				DoctorID:   req.DoctorID,
				MeetingRef: req.MeetingRef,
				Status:     string(req.Status),
				CreatedAt:  req.CreatedAt,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func updateInstantConsultHandler(svc *instantconsult.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "id")
		id, err := uuid.Parse(idStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_id", "id must be a valid UUID")
			return
		}

		status, ok := decodeStatusUpdate(w, r)
		if !ok {
			return
		}

		req, err := svc.UpdateStatus(r.Context(), id, status)
		if err != nil {
			handleInstantUpdateError(w, err)
			return
		}

		writeUpdatedConsult(w, req)
	}
}

func updateInstantConsultByRefHandler(svc *instantconsult.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "ref")
		if ref == "" {
			writeError(w, http.StatusBadRequest, "invalid_meeting_ref", "meeting reference is required")
			return
		}

		status, ok := decodeStatusUpdate(w, r)
		if !ok {
			return
		}

		req, err := svc.UpdateStatusByMeetingRef(r.Context(), ref, status)
		if err != nil {
			handleInstantUpdateError(w, err)
			return
		}

		writeUpdatedConsult(w, req)
	}
}

func decodeStatusUpdate(w http.ResponseWriter, r *http.Request) (instantconsult.Status, bool) {
	var body UpdateInstantConsultRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return "", false
	}

	status := instantconsult.Status(body.Status)
	if !instantconsult.ValidStatus(status) {
		writeError(w, http.StatusBadRequest, "invalid_status", "status must be waiting, joined or ended")
		return "", false
	}

	return status, true
}

func handleInstantUpdateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, instantconsult.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "request_not_found", err.Error())
	case errors.Is(err, instantconsult.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeUpdatedConsult(w http.ResponseWriter, req *instantconsult.Request) {
	writeJSON(w, http.StatusOK, InstantConsultResponse{
		ID:         req.ID,
		PatientID:  req.PatientID,
		DoctorID:   req.DoctorID,
		MeetingRef: req.MeetingRef,
		Status:     string(req.Status),
		CreatedAt:  req.CreatedAt,
	})
}
