package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackgods/clinic-chat-scheduling/internal/intent"
)

func (e *Engine) handleStart(ctx context.Context, msg string, c *Conversation) (Response, error) {
	c.Draft = nil

	switch e.intents.Decide(ctx, msg).Label {
	case intent.Cancellation:
		c.State = StateCancellation
		return reply(KindText, "Olá! Para cancelar uma consulta, preciso do seu CPF. Digite apenas os números:"), nil

	case intent.Lookup:
		c.State = StateLookup
		return reply(KindText, "Olá! Para consultar seus agendamentos, preciso do seu CPF. Digite apenas os números:"), nil

	case intent.Information:
		c.State = StateStart
		return e.clinicInfo(ctx)

	case intent.OutOfScope:
		c.State = StateStart
		return reply(KindGuidance, fmt.Sprintf(
			"Olá! Eu sou o %s da %s.\n\nEste chatbot é especializado apenas em agendamentos de consultas médicas. "+
				"Para outros assuntos, entre em contato com a clínica pelo telefone %s.\n\nSe deseja agendar uma consulta, digite 'agendar'.",
			e.clinic.AssistantName, e.clinic.Name, e.clinic.Phone)), nil

	default:
		c.State = StateAwaitingID
		c.Draft = &IdentifyDraft{Intent: intent.Scheduling}
		return reply(KindText, fmt.Sprintf(
			"Olá! Bem-vindo ao sistema de agendamento da %s!\n\nPara começar o agendamento, preciso do CPF da pessoa que será atendida (o paciente).\n\nDigite apenas os 11 números do CPF:",
			e.clinic.Name)), nil
	}
}

func (e *Engine) clinicInfo(ctx context.Context) (Response, error) {
	locations, err := e.repo.ListActiveLocations(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("list locations: %w", err)
	}

	var lines []string
	for _, l := range locations {
		where := l.Address
		if where == "" {
			where = l.City
		}
		line := fmt.Sprintf("• %s - %s", l.Name, where)
		if l.Phone != "" {
			line += fmt.Sprintf(" (Tel: %s)", l.Phone)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = []string{"• Informações em atualização"}
	}

	return reply(KindInfo, fmt.Sprintf(
		"%s - Informações\n\nLocais de atendimento:\n%s\n\nContato: %s\n\nHorário de funcionamento: %s\n\nDigite 'agendar' para marcar uma consulta!",
		e.clinic.Name, strings.Join(lines, "\n"), e.clinic.Phone, e.clinic.Hours)), nil
}
