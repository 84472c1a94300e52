package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/config"
	"github.com/hackgods/clinic-chat-scheduling/internal/intent"
	"github.com/hackgods/clinic-chat-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/clinic-chat-scheduling/internal/redis"
	"github.com/hackgods/clinic-chat-scheduling/internal/slots"
	"github.com/hackgods/clinic-chat-scheduling/pkg/logging"
)

var clinicTZ = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}()

// Monday 2026-10-19 10:15 local.
var mondayMorning = time.Date(2026, 10, 19, 10, 15, 0, 0, clinicTZ)

const knownCPF = "98765432100"

type harness struct {
	repo    *appointment.MemoryRepository
	svc     *appointment.Service
	engine  *Engine
	reg     *prometheus.Registry
	loc     appointment.Location
	cardio  appointment.Specialty
	neuro   appointment.Specialty
	ana     appointment.Doctor
	patient *appointment.Patient
}

func newHarness(t *testing.T, tweak ...func(*Deps)) *harness {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return mondayMorning }

	repo := appointment.NewMemoryRepository()
	loc := repo.AddLocation(appointment.Location{
		Name: "Centro", Address: "Rua da Bahia, 100", City: "Belo Horizonte", Phone: "(31) 3333-4444", Active: true,
	})
	cardio := repo.AddSpecialty(appointment.Specialty{Name: "Cardiologia", Active: true})
	neuro := repo.AddSpecialty(appointment.Specialty{Name: "Neuropediatria", Active: true, RequiresAttachment: true})

	ana := repo.AddDoctor(appointment.Doctor{Name: "Ana Souza", License: "CRM-1001", SpecialtyID: cardio.ID, Active: true})
	repo.AddAvailability(appointment.WeeklyAvailability{
		DoctorID: ana.ID, LocationID: loc.ID, Weekday: 1,
		StartTime: appointment.MustTimeOfDay("09:00"), EndTime: appointment.MustTimeOfDay("10:00"),
		DurationMinutes: 30, Active: true,
	})
	bruno := repo.AddDoctor(appointment.Doctor{Name: "Bruno Lima", License: "CRM-2002", SpecialtyID: neuro.ID, Active: true})
	repo.AddAvailability(appointment.WeeklyAvailability{
		DoctorID: bruno.ID, LocationID: loc.ID, Weekday: 2,
		StartTime: appointment.MustTimeOfDay("14:00"), EndTime: appointment.MustTimeOfDay("15:00"),
		DurationMinutes: 30, Active: true,
	})

	patient, err := repo.CreatePatient(ctx, appointment.NewPatient{
		NationalID: knownCPF, Name: "João Pereira", BirthDate: time.Date(1980, 5, 1, 0, 0, 0, 0, time.UTC),
		Phone: "31999887766", Billing: appointment.BillingPrivate,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewSchedulingMetrics(reg)
	logger := logging.Discard()

	svc := appointment.NewService(repo, redisclient.NewLocalSlotLocker(), config.Config{PlaceholderTTL: time.Hour}, logger, m).WithClock(clock)
	gen := slots.NewGenerator(repo, clinicTZ, logger, m).WithClock(clock)

	deps := Deps{
		Repo:    repo,
		Booking: svc,
		Slots:   gen,
		Intents: intent.NewComposite(nil, logger, m),
		Clinic: config.Clinic{
			Name: "Clínica Teste", Phone: "(31) 3000-0000", Hours: "Segunda a Sexta, 8h às 18h",
			AssistantName: "Assistente", Location: clinicTZ,
		},
		Logger:  logger,
		Metrics: m,
	}
	for _, fn := range tweak {
		fn(&deps)
	}

	return &harness{
		repo:    repo,
		svc:     svc,
		engine:  NewEngine(deps).WithClock(clock),
		reg:     reg,
		loc:     loc,
		cardio:  cardio,
		neuro:   neuro,
		ana:     ana,
		patient: patient,
	}
}

func (h *harness) send(c *Conversation, msg string) Response {
	return h.engine.ProcessMessage(context.Background(), msg, c)
}

// walk sends msgs in order and returns the last response.
func (h *harness) walk(t *testing.T, c *Conversation, msgs ...string) Response {
	t.Helper()
	var resp Response
	for _, m := range msgs {
		resp = h.send(c, m)
		require.NotEqual(t, KindError, resp.Kind, "message %q: %s", m, resp.Message)
	}
	return resp
}

func (h *harness) scheduled() []appointment.Appointment {
	var out []appointment.Appointment
	for _, a := range h.repo.Appointments() {
		if a.Status == appointment.StatusScheduled {
			out = append(out, a)
		}
	}
	return out
}

func (h *harness) book(at string, day int, status appointment.AppointmentStatus) appointment.Appointment {
	return h.repo.PutAppointment(appointment.Appointment{
		PatientID:   h.patient.ID,
		DoctorID:    h.ana.ID,
		SpecialtyID: h.cardio.ID,
		LocationID:  h.loc.ID,
		Date:        time.Date(2026, 10, day, 0, 0, 0, 0, time.UTC),
		Time:        appointment.MustTimeOfDay(at),
		Status:      status,
	})
}

func TestGreetingStartsSchedulingFromAnyState(t *testing.T) {
	h := newHarness(t)

	for _, st := range []State{StateStart, StateChooseSlot, StateConfirm, StateDone, State("garbage")} {
		c := NewConversation("s1", mondayMorning)
		c.State = st
		c.Draft = &BookingDraft{LocationID: h.loc.ID}

		resp := h.send(c, "oi")

		assert.True(t, resp.Success, "from %s", st)
		assert.Equal(t, StateAwaitingID, resp.NextState)
		assert.Equal(t, StateAwaitingID, c.State)
		assert.Contains(t, resp.Message, "CPF")
		assert.Equal(t, &IdentifyDraft{Intent: intent.Scheduling}, c.Draft)
	}
}

func TestStartIntents(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		msg   string
		kind  ResponseKind
		state State
	}{
		{"qual o endereço?", KindInfo, StateStart},
		{"como está o clima hoje", KindGuidance, StateStart},
		{"ver minhas consultas", KindText, StateLookup},
		{"preciso de um médico", KindText, StateAwaitingID},
		{"xyz", KindText, StateAwaitingID},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			c := NewConversation("s1", mondayMorning)
			resp := h.send(c, tt.msg)
			assert.Equal(t, tt.kind, resp.Kind)
			assert.Equal(t, tt.state, c.State)
		})
	}
}

func TestInfoReplyListsLocations(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)

	resp := h.send(c, "qual o telefone da clínica")

	assert.Equal(t, KindInfo, resp.Kind)
	assert.Contains(t, resp.Message, "Centro - Rua da Bahia, 100 (Tel: (31) 3333-4444)")
	assert.Contains(t, resp.Message, "Segunda a Sexta, 8h às 18h")
}

func TestInvalidNationalIDKeepsState(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)
	h.walk(t, c, "oi")

	resp := h.send(c, "123")

	assert.False(t, resp.Success)
	assert.Equal(t, StateAwaitingID, c.State)
	assert.Contains(t, resp.Message, "CPF inválido")
}

func TestRegistrationFlow(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)

	resp := h.walk(t, c, "oi", "123.456.789-01")
	assert.Equal(t, StateRegistration, c.State)
	assert.Contains(t, resp.Message, "123.456.789-01")
	d, ok := c.Draft.(*RegistrationDraft)
	require.True(t, ok)
	assert.Equal(t, StepName, d.Step)

	resp = h.send(c, "Maria   Silva")
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "DD/MM/AAAA")
	assert.Equal(t, StepBirthDate, c.Draft.(*RegistrationDraft).Step)
	assert.Equal(t, "Maria Silva", c.Draft.(*RegistrationDraft).Name)

	resp = h.send(c, "31/02/1990")
	assert.False(t, resp.Success)
	assert.Equal(t, StepBirthDate, c.Draft.(*RegistrationDraft).Step)

	resp = h.walk(t, c, "15/03/1990", "(31) 98888-7777", "pular")
	assert.Equal(t, StepInsuranceCard, c.Draft.(*RegistrationDraft).Step)
	assert.Contains(t, resp.Message, "particular")

	resp = h.send(c, "particular")
	assert.True(t, resp.Success)
	assert.Equal(t, KindLocations, resp.Kind)
	assert.Equal(t, StateChooseLocation, c.State)
	assert.Contains(t, resp.Message, "Cadastro realizado com sucesso, Maria Silva!")
	assert.Contains(t, resp.Message, "Centro - Belo Horizonte")

	p, err := h.repo.FindPatientByNationalID(context.Background(), "12345678901")
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", p.Name)
	assert.Equal(t, "31988887777", p.Phone)
	assert.Nil(t, p.Email)
	assert.Equal(t, appointment.BillingPrivate, p.Billing)
	require.NotNil(t, c.PatientID)
	assert.Equal(t, p.ID, *c.PatientID)
}

func TestRegistrationRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)
	h.walk(t, c, "oi", "12345678901", "Maria Silva", "15/03/1990")

	resp := h.send(c, "1234")
	assert.False(t, resp.Success)
	assert.Equal(t, StepPhone, c.Draft.(*RegistrationDraft).Step)

	h.walk(t, c, "31988887777")
	resp = h.send(c, "maria-at-mail")
	assert.False(t, resp.Success)
	assert.Equal(t, StepEmail, c.Draft.(*RegistrationDraft).Step)

	h.walk(t, c, "maria@mail.com")
	resp = h.send(c, "12a")
	assert.False(t, resp.Success)
	assert.Equal(t, StepInsuranceCard, c.Draft.(*RegistrationDraft).Step)

	resp = h.send(c, "ABC-123-456")
	assert.True(t, resp.Success)

	p, err := h.repo.FindPatientByNationalID(context.Background(), "12345678901")
	require.NoError(t, err)
	require.NotNil(t, p.Email)
	assert.Equal(t, "maria@mail.com", *p.Email)
	require.NotNil(t, p.InsuranceCard)
	assert.Equal(t, "ABC123456", *p.InsuranceCard)
	assert.Equal(t, appointment.BillingInsured, p.Billing)
}

func TestRegistrationUsesConcurrentlyCreatedPatient(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)
	h.walk(t, c, "oi", "12345678901", "Maria Silva", "15/03/1990", "31988887777", "pular")

	other, err := h.repo.CreatePatient(context.Background(), appointment.NewPatient{
		NationalID: "12345678901", Name: "Maria S.", Phone: "31900000000", Billing: appointment.BillingPrivate,
	})
	require.NoError(t, err)

	resp := h.send(c, "particular")

	assert.True(t, resp.Success)
	assert.Equal(t, StateChooseLocation, c.State)
	assert.Equal(t, other.ID, *c.PatientID)
}

func TestBookingWithoutAttachment(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)

	resp := h.walk(t, c, "oi", knownCPF)
	assert.Equal(t, KindLocations, resp.Kind)
	assert.Contains(t, resp.Message, "Olá, João Pereira!")

	resp = h.send(c, "centro")
	assert.Equal(t, KindSpecialties, resp.Kind)
	assert.Equal(t, StateChooseSpecialty, c.State)
	assert.Contains(t, resp.Message, "• Cardiologia")
	assert.Contains(t, resp.Message, "• Neuropediatria")

	resp = h.send(c, "problema no coração")
	assert.Equal(t, KindSlots, resp.Kind)
	assert.Equal(t, StateChooseSlot, c.State)
	require.Len(t, resp.Slots, slots.MaxSlots)
	assert.Equal(t, "20/10/2026", resp.Slots[0].DateFormatted)
	assert.Equal(t, "09:00", resp.Slots[0].Time.String())

	resp = h.send(c, "20/10 às 9h30")
	assert.Equal(t, KindConfirmation, resp.Kind)
	assert.Equal(t, StateConfirm, c.State)
	assert.Contains(t, resp.Message, "Paciente: João Pereira")
	assert.Contains(t, resp.Message, "Horário: 09:30")

	resp = h.send(c, "sim")
	assert.True(t, resp.Success)
	assert.Equal(t, KindSuccess, resp.Kind)
	assert.Equal(t, StateDone, c.State)
	assert.Nil(t, c.Draft)
	assert.Contains(t, resp.Message, "Rua da Bahia, 100, Belo Horizonte, Tel: (31) 3333-4444")

	booked := h.scheduled()
	require.Len(t, booked, 1)
	require.NotNil(t, resp.AppointmentID)
	assert.Equal(t, booked[0].ID, *resp.AppointmentID)
	assert.Equal(t, h.patient.ID, booked[0].PatientID)
	assert.Equal(t, "09:30", booked[0].Time.String())
	assert.Contains(t, h.repo.EventTypes(), appointment.EventAppointmentCreated)
}

func TestBookingWithAttachment(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)

	resp := h.walk(t, c, "oi", knownCPF, "centro", "neuropediatria")
	require.Equal(t, KindSlots, resp.Kind)

	resp = h.send(c, "1")
	assert.Equal(t, KindAttachmentRequest, resp.Kind)
	assert.Equal(t, StateAttachmentRequest, c.State)
	require.NotNil(t, resp.AppointmentID)
	assert.Equal(t, "/attachments/"+resp.AppointmentID.String(), resp.UploadRef)

	held := h.repo.Appointments()
	require.Len(t, held, 1)
	assert.Equal(t, appointment.StatusAttachmentPending, held[0].Status)
	assert.Equal(t, *resp.AppointmentID, held[0].ID)

	resp = h.send(c, "me manda o link")
	assert.Equal(t, KindAttachmentRequest, resp.Kind)
	assert.Equal(t, held[0].ID, *resp.AppointmentID)
	assert.Len(t, h.repo.Appointments(), 1)

	resp = h.send(c, "anexo enviado")
	assert.Equal(t, KindConfirmation, resp.Kind)
	assert.Contains(t, resp.Message, "pedido médico recebido")
	assert.True(t, c.booking().AttachmentReceived)

	resp = h.send(c, "sim")
	assert.Equal(t, KindSuccess, resp.Kind)
	assert.Equal(t, held[0].ID, *resp.AppointmentID)

	all := h.repo.Appointments()
	require.Len(t, all, 1)
	assert.Equal(t, appointment.StatusScheduled, all[0].Status)
	require.NotNil(t, all[0].AttachmentName)
	require.NotNil(t, all[0].AttachmentPath)
	assert.Equal(t, "pedido_medico_"+h.patient.ID.String(), *all[0].AttachmentName)
	assert.Equal(t, "attachments/"+held[0].ID.String(), *all[0].AttachmentPath)
}

func TestBookingWithSkippedAttachmentLeavesItEmpty(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)

	resp := h.walk(t, c, "oi", knownCPF, "centro", "neuropediatria", "1", "sem anexo", "sim")
	require.Equal(t, KindSuccess, resp.Kind)

	booked := h.scheduled()
	require.Len(t, booked, 1)
	assert.Nil(t, booked[0].AttachmentName)
	assert.Nil(t, booked[0].AttachmentPath)
}

func TestAttachmentUnrecognisedReplyExplainsOptions(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)
	h.walk(t, c, "oi", knownCPF, "centro", "neuropediatria", "1")

	resp := h.send(c, "hmm")

	assert.Equal(t, KindAttachmentRequest, resp.Kind)
	assert.Equal(t, StateAttachmentRequest, c.State)
	assert.Contains(t, resp.Message, "'link'")
}

func TestConfirmNoDiscardsHoldAndReoffers(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)
	h.walk(t, c, "oi", knownCPF, "centro", "neuropediatria", "1", "sem anexo")
	require.Equal(t, StateConfirm, c.State)

	resp := h.send(c, "não")

	assert.True(t, resp.Success)
	assert.Equal(t, KindSlots, resp.Kind)
	assert.Equal(t, StateChooseSlot, c.State)
	assert.Nil(t, c.booking().Selection)
	assert.Nil(t, c.booking().PlaceholderID)

	all := h.repo.Appointments()
	require.Len(t, all, 1)
	assert.Equal(t, appointment.StatusCancelled, all[0].Status)
}

func TestConfirmUnclearAnswer(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)
	h.walk(t, c, "oi", knownCPF, "centro", "cardiologia", "1")

	resp := h.send(c, "talvez")

	assert.False(t, resp.Success)
	assert.Equal(t, KindConfirmation, resp.Kind)
	assert.Equal(t, StateConfirm, c.State)
}

func TestConfirmConflictReoffers(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)
	h.walk(t, c, "oi", knownCPF, "centro", "cardiologia", "1")

	// Another session books 20/10 09:00 first.
	h.book("09:00", 20, appointment.StatusScheduled)

	resp := h.send(c, "sim")

	assert.False(t, resp.Success)
	assert.Equal(t, KindSlots, resp.Kind)
	assert.Equal(t, StateChooseSlot, c.State)
	require.NotEmpty(t, resp.Slots)
	assert.Equal(t, "09:30", resp.Slots[0].Time.String())
	assert.Len(t, h.scheduled(), 1)
}

func TestNoSlotsReturnsToSpecialty(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)
	h.walk(t, c, "oi", knownCPF, "centro")

	// Fill every Tuesday inside the horizon.
	for day := 20; day <= 31; day += 7 {
		h.book("09:00", day, appointment.StatusScheduled)
		h.book("09:30", day, appointment.StatusScheduled)
	}
	for _, day := range []int{3, 10, 17, 24} {
		for _, at := range []string{"09:00", "09:30"} {
			h.repo.PutAppointment(appointment.Appointment{
				DoctorID: h.ana.ID, Date: time.Date(2026, 11, day, 0, 0, 0, 0, time.UTC),
				Time: appointment.MustTimeOfDay(at), Status: appointment.StatusScheduled,
			})
		}
	}
	for _, day := range []int{1, 8} {
		for _, at := range []string{"09:00", "09:30"} {
			h.repo.PutAppointment(appointment.Appointment{
				DoctorID: h.ana.ID, Date: time.Date(2026, 12, day, 0, 0, 0, 0, time.UTC),
				Time: appointment.MustTimeOfDay(at), Status: appointment.StatusScheduled,
			})
		}
	}

	resp := h.send(c, "cardiologia")

	assert.False(t, resp.Success)
	assert.Equal(t, KindSpecialties, resp.Kind)
	assert.Equal(t, StateChooseSpecialty, c.State)
}

func TestUnknownLocationRelists(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)
	h.walk(t, c, "oi", knownCPF)

	resp := h.send(c, "Curitiba")

	assert.False(t, resp.Success)
	assert.Equal(t, KindLocations, resp.Kind)
	assert.Equal(t, StateChooseLocation, c.State)
}

func TestCancelOverride(t *testing.T) {
	h := newHarness(t)

	t.Run("without national id", func(t *testing.T) {
		c := NewConversation("s1", mondayMorning)
		h.walk(t, c, "oi", knownCPF, "centro", "cardiologia")

		resp := h.send(c, "quero cancelar")

		assert.Equal(t, StateCancellation, c.State)
		assert.Nil(t, c.Draft)
		assert.Contains(t, resp.Message, "CPF")
	})

	t.Run("with national id", func(t *testing.T) {
		appt := h.book("09:00", 20, appointment.StatusScheduled)
		c := NewConversation("s2", mondayMorning)
		h.walk(t, c, "oi", knownCPF, "centro")

		resp := h.send(c, "cancelar "+knownCPF)

		assert.Equal(t, KindCancellation, resp.Kind)
		assert.Equal(t, StateCancellation, c.State)
		require.Len(t, resp.Appointments, 1)
		assert.Equal(t, appt.ID, resp.Appointments[0].ID)
	})
}

func TestRestartReleasesHeldPlaceholder(t *testing.T) {
	tests := []struct {
		name  string
		steps []string
		msg   string
		want  State
	}{
		{"greeting while awaiting attachment", []string{"oi", knownCPF, "centro", "neuropediatria", "1"}, "oi", StateAwaitingID},
		{"cancel while confirming", []string{"oi", knownCPF, "centro", "neuropediatria", "1", "sem anexo"}, "quero cancelar", StateCancellation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			c := NewConversation("s1", mondayMorning)
			h.walk(t, c, tt.steps...)

			held := h.repo.Appointments()
			require.Len(t, held, 1)
			require.Equal(t, appointment.StatusAttachmentPending, held[0].Status)

			h.send(c, tt.msg)

			assert.Equal(t, tt.want, c.State)
			all := h.repo.Appointments()
			require.Len(t, all, 1)
			assert.Equal(t, appointment.StatusCancelled, all[0].Status)
		})
	}
}

func TestCancellationByIndex(t *testing.T) {
	h := newHarness(t)
	first := h.book("09:00", 20, appointment.StatusScheduled)
	second := h.book("09:30", 27, appointment.StatusScheduled)
	h.book("09:00", 13, appointment.StatusCancelled)

	c := NewConversation("s1", mondayMorning)
	resp := h.walk(t, c, "quero desmarcar", knownCPF)

	assert.Equal(t, KindCancellation, resp.Kind)
	require.Len(t, resp.Appointments, 2)
	assert.Equal(t, first.ID, resp.Appointments[0].ID)
	assert.Contains(t, resp.Message, "1. Ana Souza - Cardiologia")

	resp = h.send(c, "3")
	assert.False(t, resp.Success)
	assert.Equal(t, StateCancellation, c.State)

	resp = h.send(c, "dois")
	assert.False(t, resp.Success)

	resp = h.send(c, "2")
	assert.True(t, resp.Success)
	assert.Equal(t, KindSuccess, resp.Kind)
	assert.Equal(t, StateDone, c.State)
	assert.Equal(t, second.ID, *resp.AppointmentID)
	assert.Contains(t, resp.Message, "27/10/2026 às 09:30")

	got, err := h.repo.GetAppointmentByID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, appointment.CancelReasonPatient, *got.CancelReason)
}

func TestCancellationAlreadyCancelled(t *testing.T) {
	h := newHarness(t)
	appt := h.book("09:00", 20, appointment.StatusScheduled)

	c := NewConversation("s1", mondayMorning)
	h.walk(t, c, "cancelar", knownCPF)

	_, err := h.svc.CancelByPatient(context.Background(), appt.ID)
	require.NoError(t, err)

	resp := h.send(c, "1")
	assert.False(t, resp.Success)
	assert.Equal(t, StateCancellation, c.State)
}

func TestCancellationWithoutAppointmentsResets(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)

	resp := h.walk(t, c, "cancelar", knownCPF)

	assert.False(t, resp.Success)
	assert.Equal(t, StateStart, c.State)
	assert.Contains(t, resp.Message, "não possui agendamentos ativos")
}

func TestCancellationUnknownPatientResets(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)

	resp := h.walk(t, c, "cancelar", "11122233344")

	assert.False(t, resp.Success)
	assert.Equal(t, StateStart, c.State)
	assert.Contains(t, resp.Message, "111.222.333-44")
}

func TestLookupGroupsAndTrimsHistory(t *testing.T) {
	h := newHarness(t)
	h.book("09:00", 20, appointment.StatusScheduled)
	for _, day := range []int{1, 2, 5, 6} {
		h.book("09:00", day, appointment.StatusCancelled)
	}
	h.book("09:30", 7, appointment.StatusCompleted)

	c := NewConversation("s1", mondayMorning)
	resp := h.walk(t, c, "meus agendamentos", knownCPF)

	assert.Equal(t, KindLookup, resp.Kind)
	assert.Equal(t, StateStart, c.State)
	assert.Len(t, resp.Appointments, 5)
	assert.Contains(t, resp.Message, "Agendamentos ativos:")
	assert.Contains(t, resp.Message, "Agendamentos cancelados:")
	assert.Contains(t, resp.Message, "Consultas realizadas:")
	assert.NotContains(t, resp.Message, "01/10/2026")
	assert.Contains(t, resp.Message, "06/10/2026")
}

func TestLookupWithoutHistory(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)

	resp := h.walk(t, c, "meus agendamentos", knownCPF)

	assert.Equal(t, KindText, resp.Kind)
	assert.Equal(t, StateStart, c.State)
	assert.Contains(t, resp.Message, "não possui nenhum agendamento")
}

type panickingSlots struct{}

func (panickingSlots) Generate(context.Context, uuid.UUID, uuid.UUID) []slots.Slot {
	panic("generator exploded")
}

type failingBooker struct {
	Booker
}

func (failingBooker) Finalize(context.Context, appointment.BookingRequest, *uuid.UUID) (*appointment.Appointment, error) {
	return nil, errors.New("db down")
}

const faultsMetric = `
# HELP clinic_chat_faults_total Messages that ended in a conversation reset
# TYPE clinic_chat_faults_total counter
clinic_chat_faults_total 1
`

func TestPanicResetsConversation(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Slots = panickingSlots{} })
	c := NewConversation("s1", mondayMorning)
	h.walk(t, c, "oi", knownCPF, "centro")

	resp := h.send(c, "cardiologia")

	assert.False(t, resp.Success)
	assert.Equal(t, KindError, resp.Kind)
	assert.Equal(t, StateStart, resp.NextState)
	assert.Equal(t, StateStart, c.State)
	assert.Nil(t, c.Draft)
	assert.NotNil(t, c.PatientID)
	assert.NoError(t, testutil.GatherAndCompare(h.reg, strings.NewReader(faultsMetric), "clinic_chat_faults_total"))
}

func TestHandlerErrorResetsConversation(t *testing.T) {
	h := newHarness(t)
	h.engine.booking = failingBooker{Booker: h.svc}
	c := NewConversation("s1", mondayMorning)
	h.walk(t, c, "oi", knownCPF, "centro", "cardiologia", "1")

	resp := h.send(c, "sim")

	assert.Equal(t, KindError, resp.Kind)
	assert.Equal(t, apologyMessage, resp.Message)
	assert.Equal(t, StateStart, c.State)
	assert.Nil(t, c.Draft)
	assert.Empty(t, h.scheduled())
	assert.NoError(t, testutil.GatherAndCompare(h.reg, strings.NewReader(faultsMetric), "clinic_chat_faults_total"))
}

func TestBrokenDraftRestarts(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)
	c.State = StateConfirm
	c.Draft = &RegistrationDraft{NationalID: knownCPF}

	resp := h.send(c, "sim")

	assert.False(t, resp.Success)
	assert.Equal(t, StateStart, c.State)
	assert.Nil(t, c.Draft)
}

func TestDoneStateStartsOver(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning)
	h.walk(t, c, "oi", knownCPF, "centro", "cardiologia", "1", "sim")
	require.Equal(t, StateDone, c.State)

	resp := h.send(c, "agendar")

	assert.Equal(t, StateAwaitingID, c.State)
	assert.True(t, resp.Success)
}

func TestUpdatedAtAdvancesOnEveryTurn(t *testing.T) {
	h := newHarness(t)
	c := NewConversation("s1", mondayMorning.Add(-time.Hour))

	h.send(c, "oi")

	assert.True(t, c.UpdatedAt.Equal(mondayMorning))
	assert.True(t, c.CreatedAt.Equal(mondayMorning.Add(-time.Hour)))
}
