package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/intent"
	"github.com/hackgods/clinic-chat-scheduling/internal/slots"
)

const brokenBooking = "Erro nos dados do agendamento. Vamos recomeçar."

func (e *Engine) locationPrompt(ctx context.Context, header string, success bool) (Response, error) {
	locations, err := e.repo.ListActiveLocations(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("list locations: %w", err)
	}

	lines := make([]string, 0, len(locations))
	for _, l := range locations {
		lines = append(lines, fmt.Sprintf("• %s - %s", l.Name, l.City))
	}

	resp := reply(KindLocations, header+"\n\n"+strings.Join(lines, "\n")+"\n\nDigite o nome do local desejado:")
	resp.Success = success
	return resp, nil
}

func containsFold(haystack, needle string) bool {
	return needle != "" && strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (e *Engine) handleChooseLocation(ctx context.Context, msg string, c *Conversation) (Response, error) {
	d := c.booking()
	if d == nil {
		return restart(c, brokenBooking), nil
	}
	if msg == "" {
		return e.locationPrompt(ctx, "Em qual local você gostaria de ser atendido?", true)
	}

	locations, err := e.repo.ListActiveLocations(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("list locations: %w", err)
	}

	for _, l := range locations {
		if containsFold(msg, l.Name) || containsFold(msg, l.City) ||
			containsFold(l.Name, msg) || containsFold(l.City, msg) {
			d.LocationID = l.ID
			d.LocationName = l.Name
			c.State = StateChooseSpecialty
			return e.specialtyPrompt(ctx, d, fmt.Sprintf("Perfeito! Local escolhido: %s\n\nAgora, qual especialidade médica você precisa?", l.Name), true)
		}
	}

	return e.locationPrompt(ctx, "Não consegui identificar o local. Por favor, escolha um dos locais disponíveis:", false)
}

func (e *Engine) specialtyPrompt(ctx context.Context, d *BookingDraft, header string, success bool) (Response, error) {
	specialties, err := e.repo.ListSpecialtiesAtLocation(ctx, d.LocationID)
	if err != nil {
		return Response{}, fmt.Errorf("list specialties: %w", err)
	}

	lines := make([]string, 0, len(specialties))
	for _, s := range specialties {
		lines = append(lines, "• "+s.Name)
	}

	resp := reply(KindSpecialties, header+"\n\n"+strings.Join(lines, "\n")+"\n\nDigite o nome da especialidade desejada:")
	resp.Success = success
	return resp, nil
}

func matchSpecialty(msg string, candidates []appointment.Specialty) (appointment.Specialty, bool) {
	for _, s := range candidates {
		if containsFold(msg, s.Name) || containsFold(s.Name, msg) {
			return s, true
		}
	}
	for _, rule := range symptomRules {
		if !intent.MatchAny(msg, []string{rule.keyword}) {
			continue
		}
		for _, s := range candidates {
			if containsFold(s.Name, rule.specialty) {
				return s, true
			}
		}
	}
	return appointment.Specialty{}, false
}

func (e *Engine) handleChooseSpecialty(ctx context.Context, msg string, c *Conversation) (Response, error) {
	d := c.booking()
	if d == nil || d.LocationID == uuid.Nil {
		return restart(c, brokenBooking), nil
	}
	if msg == "" {
		return e.specialtyPrompt(ctx, d, "Qual especialidade médica você precisa?", true)
	}

	candidates, err := e.repo.ListSpecialtiesAtLocation(ctx, d.LocationID)
	if err != nil {
		return Response{}, fmt.Errorf("list specialties: %w", err)
	}

	spec, ok := matchSpecialty(msg, candidates)
	if !ok {
		return e.specialtyPrompt(ctx, d, "Não consegui identificar a especialidade. Por favor, escolha uma das especialidades disponíveis:", false)
	}

	doctors, err := e.repo.ListActiveDoctors(ctx, spec.ID)
	if err != nil {
		return Response{}, fmt.Errorf("list doctors: %w", err)
	}
	if len(doctors) == 0 {
		return e.specialtyPrompt(ctx, d, fmt.Sprintf("Desculpe, não temos médicos de %s disponíveis no momento. Por favor, escolha outra especialidade:", spec.Name), false)
	}

	d.SpecialtyID = spec.ID
	d.SpecialtyName = spec.Name
	d.RequiresAttachment = spec.RequiresAttachment
	d.Selection = nil
	c.State = StateChooseSlot

	return e.handleChooseSlot(ctx, "", c)
}

func (e *Engine) handleChooseSlot(ctx context.Context, msg string, c *Conversation) (Response, error) {
	d := c.booking()
	if d == nil || d.SpecialtyID == uuid.Nil || c.PatientID == nil {
		return restart(c, brokenBooking), nil
	}

	candidates := e.slots.Generate(ctx, d.SpecialtyID, d.LocationID)
	if len(candidates) == 0 {
		c.State = StateChooseSpecialty
		return e.specialtyPrompt(ctx, d, "Não há horários disponíveis nos próximos dias para esta especialidade neste local. Vamos escolher outra especialidade:", false)
	}

	if msg == "" {
		return slotList(candidates, "Horários disponíveis:", true), nil
	}

	choice, ok := slots.Choose(msg, candidates)
	if !ok {
		return slotList(candidates, "Não encontrei esse horário. Escolha um dos horários abaixo:", true), nil
	}

	d.Selection = &choice
	d.AttachmentReceived = false

	if !d.RequiresAttachment {
		c.State = StateConfirm
		return e.summary(ctx, c, d, "Resumo do agendamento", "")
	}

	return e.holdForAttachment(ctx, c, d)
}

// holdForAttachment creates the attachment_pending placeholder for the
// current selection and hands out its upload reference.
func (e *Engine) holdForAttachment(ctx context.Context, c *Conversation, d *BookingDraft) (Response, error) {
	placeholder, err := e.booking.HoldForAttachment(ctx, bookingRequest(c, d))
	if errors.Is(err, appointment.ErrSlotUnavailable) {
		return e.reoffer(ctx, c, d, "Esse horário acabou de ser reservado.", false)
	}
	if err != nil {
		return Response{}, fmt.Errorf("hold slot: %w", err)
	}

	id := placeholder.ID
	d.PlaceholderID = &id
	c.State = StateAttachmentRequest

	ref, err := e.uploads.UploadRef(ctx, id)
	if err != nil {
		return Response{}, fmt.Errorf("issue upload reference: %w", err)
	}

	s := d.Selection
	resp := reply(KindAttachmentRequest, fmt.Sprintf(
		"Agendamento selecionado\n\nMédico: %s\nEspecialidade: %s\nData: %s\nHorário: %s\n\n"+
			"ATENÇÃO: esta consulta requer PEDIDO MÉDICO OBRIGATÓRIO. Sem o pedido médico a consulta não poderá ser realizada.\n\n"+
			"Envie seu pedido médico pelo link:\n%s\n\nAceitos: PDF, JPG, PNG, DOC, DOCX.\nApós enviar o arquivo, digite 'anexo enviado' para continuar.",
		s.DoctorName, d.SpecialtyName, s.DateFormatted, s.Time, ref))
	resp.AppointmentID = &id
	resp.UploadRef = ref
	return resp, nil
}

// reoffer drops the current selection and shows freshly generated slots,
// falling back to specialty selection when none are left.
func (e *Engine) reoffer(ctx context.Context, c *Conversation, d *BookingDraft, header string, success bool) (Response, error) {
	d.Selection = nil
	d.PlaceholderID = nil
	d.AttachmentReceived = false

	candidates := e.slots.Generate(ctx, d.SpecialtyID, d.LocationID)
	if len(candidates) == 0 {
		c.State = StateChooseSpecialty
		return e.specialtyPrompt(ctx, d, header+" Não há outros horários disponíveis; escolha outra especialidade:", success)
	}
	c.State = StateChooseSlot
	return slotList(candidates, header+" Escolha outro horário:", success), nil
}

func (e *Engine) handleAttachment(ctx context.Context, msg string, c *Conversation) (Response, error) {
	d := c.booking()
	if d == nil || d.Selection == nil || c.PatientID == nil {
		return restart(c, brokenBooking), nil
	}

	switch {
	case intent.MatchAny(msg, attachmentSentKeywords):
		d.AttachmentReceived = true
		c.State = StateConfirm
		return e.summary(ctx, c, d, "Anexo recebido!\n\nResumo do agendamento", "Anexo: pedido médico recebido")

	case intent.MatchAny(msg, attachmentSkipKeywords):
		c.State = StateConfirm
		return e.summary(ctx, c, d, "Prosseguindo sem anexo\n\nResumo do agendamento", "Anexo: será necessário levar o pedido físico")

	case intent.MatchAny(msg, attachmentLinkKeywords):
		return e.reissueUpload(ctx, c, d)

	default:
		return reply(KindAttachmentRequest,
			"Para esta especialidade é obrigatório anexar o pedido médico.\n\n"+
				"• Digite 'link' para receber o link de upload\n"+
				"• Digite 'enviei' se já enviou o arquivo\n"+
				"• Digite 'sem anexo' se não tem o pedido agora\n\n"+
				"Sem o anexo, será necessário levar o pedido físico na consulta."), nil
	}
}

// reissueUpload hands out a fresh upload reference, creating a new hold when
// the previous one is gone.
func (e *Engine) reissueUpload(ctx context.Context, c *Conversation, d *BookingDraft) (Response, error) {
	if d.PlaceholderID != nil {
		appt, err := e.repo.GetAppointmentByID(ctx, *d.PlaceholderID)
		if err != nil && !errors.Is(err, appointment.ErrAppointmentNotFound) {
			return Response{}, fmt.Errorf("load placeholder: %w", err)
		}
		if appt != nil && appt.Status == appointment.StatusAttachmentPending {
			ref, err := e.uploads.UploadRef(ctx, appt.ID)
			if err != nil {
				return Response{}, fmt.Errorf("issue upload reference: %w", err)
			}
			id := appt.ID
			resp := reply(KindAttachmentRequest, fmt.Sprintf(
				"Link para anexar arquivo\n\n%s\n\nApós anexar o arquivo, digite 'anexo enviado' para continuar.", ref))
			resp.AppointmentID = &id
			resp.UploadRef = ref
			return resp, nil
		}
		d.PlaceholderID = nil
	}

	return e.holdForAttachment(ctx, c, d)
}

func (e *Engine) handleConfirm(ctx context.Context, msg string, c *Conversation) (Response, error) {
	d := c.booking()
	if d == nil || d.Selection == nil || c.PatientID == nil {
		return restart(c, brokenBooking), nil
	}

	switch {
	case intent.MatchAny(msg, confirmYesKeywords):
		return e.finalize(ctx, c, d)

	case intent.MatchAny(msg, confirmNoKeywords):
		if d.PlaceholderID != nil {
			if err := e.booking.Discard(ctx, *d.PlaceholderID); err != nil {
				return Response{}, err
			}
		}
		return e.reoffer(ctx, c, d, "Agendamento não realizado.", true)

	default:
		return reject(KindConfirmation, "Não entendi sua resposta. Por favor, digite 'sim' para confirmar o agendamento ou 'não' para voltar:"), nil
	}
}

func (e *Engine) finalize(ctx context.Context, c *Conversation, d *BookingDraft) (Response, error) {
	appt, err := e.booking.Finalize(ctx, bookingRequest(c, d), d.PlaceholderID)
	if errors.Is(err, appointment.ErrSlotUnavailable) {
		if d.PlaceholderID != nil {
			if derr := e.booking.Discard(ctx, *d.PlaceholderID); derr != nil {
				return Response{}, derr
			}
		}
		return e.reoffer(ctx, c, d, "Esse horário não está mais disponível.", false)
	}
	if err != nil {
		return Response{}, fmt.Errorf("finalize booking: %w", err)
	}

	location, err := e.repo.GetLocationByID(ctx, d.LocationID)
	if err != nil && !errors.Is(err, appointment.ErrLocationNotFound) {
		return Response{}, fmt.Errorf("load location: %w", err)
	}

	address := d.LocationName
	if location != nil {
		var parts []string
		for _, p := range []string{location.Address, location.City} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if location.Phone != "" {
			parts = append(parts, "Tel: "+location.Phone)
		}
		if len(parts) > 0 {
			address = strings.Join(parts, ", ")
		}
	}

	s := d.Selection
	id := appt.ID
	c.State = StateDone
	c.Draft = nil

	resp := reply(KindSuccess, fmt.Sprintf(
		"Agendamento confirmado!\n\nNúmero: #%s\nMédico: %s\nEspecialidade: %s\nLocal: %s\nEndereço: %s\nData: %s\nHorário: %s\n\n"+
			"IMPORTANTE: faça um print desta mensagem para guardar as informações do seu agendamento.\n\nObrigado por usar nosso sistema!",
		id, s.DoctorName, d.SpecialtyName, d.LocationName, address, s.DateFormatted, s.Time))
	resp.AppointmentID = &id
	return resp, nil
}

func (e *Engine) summary(ctx context.Context, c *Conversation, d *BookingDraft, header, attachmentLine string) (Response, error) {
	patient, err := e.repo.GetPatientByID(ctx, *c.PatientID)
	if err != nil {
		return Response{}, fmt.Errorf("load patient: %w", err)
	}

	s := d.Selection
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nPaciente: %s\nMédico: %s\nEspecialidade: %s\nLocal: %s\nData: %s\nHorário: %s\n",
		header, patient.Name, s.DoctorName, d.SpecialtyName, d.LocationName, s.DateFormatted, s.Time)
	if attachmentLine != "" {
		b.WriteString(attachmentLine + "\n")
	}
	b.WriteString("\nConfirma o agendamento? Digite 'sim' para confirmar ou 'não' para voltar:")

	return reply(KindConfirmation, b.String()), nil
}

func bookingRequest(c *Conversation, d *BookingDraft) appointment.BookingRequest {
	req := appointment.BookingRequest{
		PatientID:   *c.PatientID,
		DoctorID:    d.Selection.DoctorID,
		SpecialtyID: d.SpecialtyID,
		LocationID:  d.LocationID,
		Date:        d.Selection.Date,
		Time:        d.Selection.Time,
	}
	if d.AttachmentReceived {
		req.AttachmentName = "pedido_medico_" + c.PatientID.String()
	}
	return req
}

func slotList(candidates []slots.Slot, header string, success bool) Response {
	var b strings.Builder
	b.WriteString(header + "\n")
	for i, s := range candidates {
		if i > 0 {
			b.WriteString("\n━━━━━━━━━━━━━━━━━━━━━━")
		}
		fmt.Fprintf(&b, "\n%d) %s (%s)\n• %s - Dr(a). %s\n• %s - CRM: %s\n• Local: %s\n• Duração: %d minutos",
			i+1, s.DateFormatted, s.Weekday, s.Time, s.DoctorName, s.SpecialtyName, s.DoctorLicense, s.LocationName, s.DurationMinutes)
	}
	b.WriteString("\n\nPara agendar, digite a data e hora desejadas (ex: '05/09 às 14:00') ou o número do horário ('1' para o primeiro, '2' para o segundo, etc.).")

	resp := reply(KindSlots, b.String())
	resp.Success = success
	resp.Slots = candidates
	return resp
}
