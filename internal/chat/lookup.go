package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/intent"
)

func (e *Engine) handleLookup(ctx context.Context, msg string, c *Conversation) (Response, error) {
	return e.identify(ctx, msg, c, intent.Lookup)
}

// listAppointments shows every scheduled appointment plus the most recent
// cancelled and completed ones, then returns to start. Rows arrive ordered by
// appointment date and time, so "most recent" means latest appointment.
func (e *Engine) listAppointments(ctx context.Context, c *Conversation, patient *appointment.Patient) (Response, error) {
	all, err := e.repo.ListAppointmentsByPatient(ctx, patient.ID)
	if err != nil {
		return Response{}, fmt.Errorf("list appointments: %w", err)
	}
	c.Reset()

	var scheduled, cancelled, completed []AppointmentView
	for _, a := range all {
		switch a.Status {
		case appointment.StatusScheduled:
			scheduled = append(scheduled, viewOf(a))
		case appointment.StatusCancelled:
			cancelled = append(cancelled, viewOf(a))
		case appointment.StatusCompleted:
			completed = append(completed, viewOf(a))
		}
	}
	cancelled = lastN(cancelled, recentHistory)
	completed = lastN(completed, recentHistory)

	if len(scheduled)+len(cancelled)+len(completed) == 0 {
		return reply(KindText, fmt.Sprintf(
			"Olá, %s!\n\nVocê não possui nenhum agendamento registrado no sistema.\n\nDigite 'agendar' se quiser fazer um novo agendamento.", patient.Name)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Olá, %s!\n\nSeus agendamentos:\n", patient.Name)
	writeGroup(&b, "Agendamentos ativos:", scheduled, true)
	writeGroup(&b, "Agendamentos cancelados:", cancelled, false)
	writeGroup(&b, "Consultas realizadas:", completed, false)
	b.WriteString("\nDigite 'agendar' para fazer um novo agendamento ou 'cancelar' para cancelar algum agendamento ativo.")

	resp := reply(KindLookup, b.String())
	resp.Appointments = append(append(scheduled, cancelled...), completed...)
	return resp, nil
}

func writeGroup(b *strings.Builder, title string, views []AppointmentView, withLocation bool) {
	if len(views) == 0 {
		return
	}
	b.WriteString("\n" + title + "\n")
	for _, v := range views {
		fmt.Fprintf(b, "• Dr(a). %s - %s\n  %s às %s\n", v.DoctorName, v.SpecialtyName, v.Date, v.Time)
		if withLocation {
			fmt.Fprintf(b, "  %s\n", v.LocationName)
		}
	}
}

func lastN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
