package api

import (
	"github.com/google/uuid"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/chat"
)

type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type ChatResponse struct {
	SessionID string `json:"session_id"`
	chat.Response
}

type LocationResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address,omitempty"`
	City    string    `json:"city"`
	Phone   string    `json:"phone,omitempty"`
}

type SpecialtyResponse struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	RequiresAttachment bool      `json:"requires_attachment"`
}

// AvailabilityRequest carries date as YYYY-MM-DD and time as HH:MM.
type AvailabilityRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

func locationResponse(l appointment.Location) LocationResponse {
	return LocationResponse{ID: l.ID, Name: l.Name, Address: l.Address, City: l.City, Phone: l.Phone}
}

func specialtyResponse(s appointment.Specialty) SpecialtyResponse {
	return SpecialtyResponse{ID: s.ID, Name: s.Name, RequiresAttachment: s.RequiresAttachment}
}
