package chat

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/intent"
	"github.com/hackgods/clinic-chat-scheduling/internal/slots"
)

type DraftKind string

const (
	DraftIdentify     DraftKind = "identify"
	DraftRegistration DraftKind = "registration"
	DraftBooking      DraftKind = "booking"
	DraftCancellation DraftKind = "cancellation"
)

// Draft is the state-scoped slot-filling data of a conversation. Exactly one
// of the concrete types below implements it.
type Draft interface {
	Kind() DraftKind
	clone() Draft
}

// IdentifyDraft carries the intent that sent the patient to the ID prompt.
type IdentifyDraft struct {
	Intent intent.Label `json:"intent"`
}

type RegistrationDraft struct {
	NationalID    string                  `json:"national_id"`
	Step          RegistrationStep        `json:"step"`
	Name          string                  `json:"name,omitempty"`
	BirthDate     *time.Time              `json:"birth_date,omitempty"`
	Phone         string                  `json:"phone,omitempty"`
	Email         *string                 `json:"email,omitempty"`
	InsuranceCard *string                 `json:"insurance_card,omitempty"`
	Billing       appointment.BillingType `json:"billing,omitempty"`
}

type BookingDraft struct {
	LocationID         uuid.UUID   `json:"location_id"`
	LocationName       string      `json:"location_name,omitempty"`
	SpecialtyID        uuid.UUID   `json:"specialty_id"`
	SpecialtyName      string      `json:"specialty_name,omitempty"`
	RequiresAttachment bool        `json:"requires_attachment,omitempty"`
	Selection          *slots.Slot `json:"selection,omitempty"`
	PlaceholderID      *uuid.UUID  `json:"placeholder_id,omitempty"`
	AttachmentReceived bool        `json:"attachment_received,omitempty"`
}

// CancellationContext lists the scheduled appointments offered for
// cancellation, in the order shown to the patient.
type CancellationContext struct {
	PatientID      uuid.UUID   `json:"patient_id"`
	AppointmentIDs []uuid.UUID `json:"appointment_ids"`
}

func (d *IdentifyDraft) Kind() DraftKind       { return DraftIdentify }
func (d *RegistrationDraft) Kind() DraftKind   { return DraftRegistration }
func (d *BookingDraft) Kind() DraftKind        { return DraftBooking }
func (d *CancellationContext) Kind() DraftKind { return DraftCancellation }

func (d *IdentifyDraft) clone() Draft {
	c := *d
	return &c
}

func (d *RegistrationDraft) clone() Draft {
	c := *d
	if d.BirthDate != nil {
		bd := *d.BirthDate
		c.BirthDate = &bd
	}
	if d.Email != nil {
		e := *d.Email
		c.Email = &e
	}
	if d.InsuranceCard != nil {
		ic := *d.InsuranceCard
		c.InsuranceCard = &ic
	}
	return &c
}

func (d *BookingDraft) clone() Draft {
	c := *d
	if d.Selection != nil {
		s := *d.Selection
		c.Selection = &s
	}
	if d.PlaceholderID != nil {
		id := *d.PlaceholderID
		c.PlaceholderID = &id
	}
	return &c
}

func (d *CancellationContext) clone() Draft {
	c := *d
	c.AppointmentIDs = slices.Clone(d.AppointmentIDs)
	return &c
}

type draftEnvelope struct {
	Kind DraftKind       `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalDraft encodes a draft as {"kind": ..., "data": ...}. A nil draft
// encodes as JSON null.
func MarshalDraft(d Draft) ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal %s draft: %w", d.Kind(), err)
	}
	return json.Marshal(draftEnvelope{Kind: d.Kind(), Data: data})
}

func UnmarshalDraft(b []byte) (Draft, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}

	var env draftEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode draft envelope: %w", err)
	}

	var d Draft
	switch env.Kind {
	case DraftIdentify:
		d = &IdentifyDraft{}
	case DraftRegistration:
		d = &RegistrationDraft{}
	case DraftBooking:
		d = &BookingDraft{}
	case DraftCancellation:
		d = &CancellationContext{}
	default:
		return nil, fmt.Errorf("unknown draft kind %q", env.Kind)
	}

	if err := json.Unmarshal(env.Data, d); err != nil {
		return nil, fmt.Errorf("decode %s draft: %w", env.Kind, err)
	}
	return d, nil
}
