package chat

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/intent"
	"github.com/hackgods/clinic-chat-scheduling/internal/slots"
)

func TestMarshalDraft_Envelope(t *testing.T) {
	b, err := MarshalDraft(&IdentifyDraft{Intent: intent.Cancellation})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"identify","data":{"intent":"cancellation"}}`, string(b))

	b, err = MarshalDraft(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	d, err := UnmarshalDraft(b)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestUnmarshalDraft_Booking(t *testing.T) {
	placeholder := uuid.New()
	in := &BookingDraft{
		LocationID:         uuid.New(),
		LocationName:       "Centro",
		SpecialtyID:        uuid.New(),
		SpecialtyName:      "Neuropediatria",
		RequiresAttachment: true,
		Selection: &slots.Slot{
			DoctorID:      uuid.New(),
			DoctorName:    "Bruno",
			Date:          time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC),
			DateFormatted: "21/10/2026",
			Time:          appointment.MustTimeOfDay("14:30"),
		},
		PlaceholderID: &placeholder,
	}

	b, err := MarshalDraft(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"time":"14:30"`)

	out, err := UnmarshalDraft(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnmarshalDraft_Errors(t *testing.T) {
	_, err := UnmarshalDraft([]byte(`{"kind":"unknown","data":{}}`))
	assert.ErrorContains(t, err, "unknown draft kind")

	_, err = UnmarshalDraft([]byte(`{"kind":"booking","data":{"location_id":42}}`))
	assert.Error(t, err)

	_, err = UnmarshalDraft([]byte(`not json`))
	assert.Error(t, err)
}

func TestConversationClone_IsDeep(t *testing.T) {
	bd := time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC)
	email := "a@b.com"
	patient := uuid.New()

	c := NewConversation("s1", time.Now())
	c.PatientID = &patient
	c.Draft = &RegistrationDraft{NationalID: "12345678901", BirthDate: &bd, Email: &email}

	cp := c.Clone()
	*cp.PatientID = uuid.Nil
	d := cp.Draft.(*RegistrationDraft)
	*d.BirthDate = time.Time{}
	*d.Email = "x@y.com"
	d.Step = StepPhone

	orig := c.Draft.(*RegistrationDraft)
	assert.Equal(t, patient, *c.PatientID)
	assert.Equal(t, bd, *orig.BirthDate)
	assert.Equal(t, "a@b.com", *orig.Email)
	assert.Equal(t, RegistrationStep(""), orig.Step)
}

func TestConversationReset_KeepsPatient(t *testing.T) {
	patient := uuid.New()
	c := NewConversation("s1", time.Now())
	c.State = StateConfirm
	c.PatientID = &patient
	c.Draft = &BookingDraft{}

	c.Reset()

	assert.Equal(t, StateStart, c.State)
	assert.Nil(t, c.Draft)
	assert.Equal(t, &patient, c.PatientID)
}

func TestStateKnown(t *testing.T) {
	assert.True(t, StateAttachmentRequest.Known())
	assert.False(t, State("waiting").Known())
}
