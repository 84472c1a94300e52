package chat

import (
	"github.com/google/uuid"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/slots"
)

type ResponseKind string

const (
	KindText              ResponseKind = "text"
	KindInfo              ResponseKind = "info"
	KindGuidance          ResponseKind = "guidance"
	KindLocations         ResponseKind = "locations"
	KindSpecialties       ResponseKind = "specialties"
	KindSlots             ResponseKind = "slots"
	KindAttachmentRequest ResponseKind = "attachment_request"
	KindConfirmation      ResponseKind = "confirmation"
	KindSuccess           ResponseKind = "success"
	KindCancellation      ResponseKind = "cancellation"
	KindLookup            ResponseKind = "lookup"
	KindError             ResponseKind = "error"
)

type Response struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	Kind          ResponseKind      `json:"response_kind"`
	NextState     State             `json:"next_state"`
	Slots         []slots.Slot      `json:"slots,omitempty"`
	Appointments  []AppointmentView `json:"appointments,omitempty"`
	AppointmentID *uuid.UUID        `json:"appointment_id,omitempty"`
	UploadRef     string            `json:"upload_ref,omitempty"`
}

// AppointmentView is an appointment as listed back to the patient.
type AppointmentView struct {
	ID            uuid.UUID                     `json:"id"`
	Date          string                        `json:"date"`
	Time          string                        `json:"time"`
	Status        appointment.AppointmentStatus `json:"status"`
	DoctorName    string                        `json:"doctor_name"`
	SpecialtyName string                        `json:"specialty_name"`
	LocationName  string                        `json:"location_name"`
}

func viewOf(a appointment.AppointmentDetail) AppointmentView {
	return AppointmentView{
		ID:            a.ID,
		Date:          a.Date.Format("02/01/2006"),
		Time:          a.Time.String(),
		Status:        a.Status,
		DoctorName:    a.DoctorName,
		SpecialtyName: a.SpecialtyName,
		LocationName:  a.LocationName,
	}
}

func reply(kind ResponseKind, msg string) Response {
	return Response{Success: true, Message: msg, Kind: kind}
}

func reject(kind ResponseKind, msg string) Response {
	return Response{Success: false, Message: msg, Kind: kind}
}
