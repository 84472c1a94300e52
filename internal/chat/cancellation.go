package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/intent"
)

const recentHistory = 3

func (e *Engine) handleCancellation(ctx context.Context, msg string, c *Conversation) (Response, error) {
	d, ok := c.Draft.(*CancellationContext)
	if !ok || len(d.AppointmentIDs) == 0 {
		return e.identify(ctx, msg, c, intent.Cancellation)
	}

	n, err := strconv.Atoi(strings.TrimSpace(msg))
	if err != nil {
		return reject(KindCancellation, "Por favor, digite apenas o número do agendamento que deseja cancelar:"), nil
	}
	if n < 1 || n > len(d.AppointmentIDs) {
		return reject(KindCancellation, fmt.Sprintf("Número inválido. Digite um número entre 1 e %d:", len(d.AppointmentIDs))), nil
	}

	appt, err := e.booking.CancelByPatient(ctx, d.AppointmentIDs[n-1])
	if errors.Is(err, appointment.ErrInvalidStatusTransition) {
		return reject(KindCancellation, "Agendamento não encontrado ou já foi cancelado. Digite um número válido:"), nil
	}
	if err != nil {
		return Response{}, fmt.Errorf("cancel appointment: %w", err)
	}

	detail := e.describe(ctx, appt)
	c.State = StateDone
	c.Draft = nil

	id := appt.ID
	resp := reply(KindSuccess, fmt.Sprintf(
		"Agendamento cancelado!\n\nMédico: Dr(a). %s\nEspecialidade: %s\nData/Hora: %s às %s\n\n"+
			"O agendamento foi cancelado com sucesso. Se precisar reagendar, digite 'agendar'.",
		detail.DoctorName, detail.SpecialtyName, detail.Date, detail.Time))
	resp.AppointmentID = &id
	return resp, nil
}

// describe resolves display names for an appointment, leaving "N/A" where
// the catalogue lookup fails.
func (e *Engine) describe(ctx context.Context, a *appointment.Appointment) AppointmentView {
	v := AppointmentView{
		ID:            a.ID,
		Date:          a.Date.Format("02/01/2006"),
		Time:          a.Time.String(),
		Status:        a.Status,
		DoctorName:    "N/A",
		SpecialtyName: "N/A",
		LocationName:  "N/A",
	}
	if doc, err := e.repo.GetDoctorByID(ctx, a.DoctorID); err == nil {
		v.DoctorName = doc.Name
	}
	if spec, err := e.repo.GetSpecialtyByID(ctx, a.SpecialtyID); err == nil {
		v.SpecialtyName = spec.Name
	}
	if loc, err := e.repo.GetLocationByID(ctx, a.LocationID); err == nil {
		v.LocationName = loc.Name
	}
	return v
}

func (e *Engine) offerCancellation(ctx context.Context, c *Conversation, patient *appointment.Patient) (Response, error) {
	all, err := e.repo.ListAppointmentsByPatient(ctx, patient.ID)
	if err != nil {
		return Response{}, fmt.Errorf("list appointments: %w", err)
	}

	var (
		views []AppointmentView
		lines []string
	)
	cancellable := &CancellationContext{PatientID: patient.ID}
	for _, a := range all {
		if a.Status != appointment.StatusScheduled {
			continue
		}
		v := viewOf(a)
		cancellable.AppointmentIDs = append(cancellable.AppointmentIDs, a.ID)
		views = append(views, v)
		lines = append(lines, fmt.Sprintf("%d. %s - %s\n   %s às %s\n   %s",
			len(views), v.DoctorName, v.SpecialtyName, v.Date, v.Time, v.LocationName))
	}

	if len(views) == 0 {
		c.Reset()
		return reject(KindText, fmt.Sprintf(
			"Olá, %s! Você não possui agendamentos ativos para cancelar.\n\nDigite 'oi' se quiser fazer um novo agendamento.", patient.Name)), nil
	}

	c.State = StateCancellation
	c.Draft = cancellable

	resp := reply(KindCancellation, fmt.Sprintf(
		"Olá, %s!\n\nVocê possui %d agendamento(s) ativo(s):\n\n%s\n\nDigite o número do agendamento que deseja cancelar:",
		patient.Name, len(views), strings.Join(lines, "\n\n")))
	resp.Appointments = views
	return resp, nil
}
