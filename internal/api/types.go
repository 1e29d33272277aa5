package api

import (
	"time"

	"github.com/google/uuid"
)

type SlotListingResponse struct {
	Doctor             string   `json:"doctor"`
	Date               string   `json:"date"`
	DayOfWeek          string   `json:"day_of_week"`
	Available          bool     `json:"available"`
	AvailableSlots     []string `json:"available_slots"`
	TotalSlots         int      `json:"total_slots"`
	BookedSlots        int      `json:"booked_slots"`
	Message            string   `json:"message,omitempty"`
	AlternativeDoctors []string `json:"alternative_doctors,omitempty"`
}

type BookAppointmentRequest struct {
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Reason    string `json:"reason"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	DoctorName  string `json:"doctor_name"`
	PatientName string `json:"patient_name"`
	Note        string `json:"note,omitempty"`
}

type InstantConsultRequestBody struct {
	PatientID string `json:"patient_id"`
}

type InstantConsultResponse struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	DoctorID   uuid.UUID `json:"doctor_id"`
	DoctorName string    `json:"doctor_name,omitempty"`
	MeetingRef string    `json:"meeting_ref"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type UpdateInstantConsultRequest struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
