package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/intent"
)

func (e *Engine) handleAwaitingID(ctx context.Context, msg string, c *Conversation) (Response, error) {
	want := intent.Scheduling
	if d, ok := c.Draft.(*IdentifyDraft); ok && d.Intent.Valid() {
		want = d.Intent
	}
	return e.identify(ctx, msg, c, want)
}

// identify resolves the national ID in msg and continues the flow the
// patient asked for.
func (e *Engine) identify(ctx context.Context, msg string, c *Conversation, want intent.Label) (Response, error) {
	nationalID, ok := ExtractNationalID(msg)
	if !ok {
		return reject(KindText, "CPF inválido. Por favor, digite apenas os 11 números do CPF:"), nil
	}

	patient, err := e.repo.FindPatientByNationalID(ctx, nationalID)
	if err != nil && !errors.Is(err, appointment.ErrPatientNotFound) {
		return Response{}, fmt.Errorf("find patient: %w", err)
	}

	if patient == nil {
		if want == intent.Cancellation || want == intent.Lookup {
			c.Reset()
			return reject(KindText, fmt.Sprintf(
				"CPF %s não encontrado no sistema. Para cancelar ou consultar agendamentos, é necessário ter cadastro.\n\nDigite 'oi' para fazer um novo agendamento.",
				FormatNationalID(nationalID))), nil
		}
		c.State = StateRegistration
		c.Draft = &RegistrationDraft{NationalID: nationalID, Step: StepName}
		return reply(KindText, fmt.Sprintf(
			"CPF %s não encontrado.\n\nVamos fazer seu cadastro! Qual é o seu nome completo?", FormatNationalID(nationalID))), nil
	}

	id := patient.ID
	c.PatientID = &id

	switch want {
	case intent.Cancellation:
		return e.offerCancellation(ctx, c, patient)
	case intent.Lookup:
		return e.listAppointments(ctx, c, patient)
	default:
		c.State = StateChooseLocation
		c.Draft = &BookingDraft{}
		return e.locationPrompt(ctx, fmt.Sprintf("Olá, %s!\n\nPrimeiro, em qual local você gostaria de ser atendido?", patient.Name), true)
	}
}

func (e *Engine) handleRegistration(ctx context.Context, msg string, c *Conversation) (Response, error) {
	d, ok := c.Draft.(*RegistrationDraft)
	if !ok || d.NationalID == "" {
		return restart(c, "Erro nos dados do cadastro. Vamos recomeçar."), nil
	}

	switch d.Step {
	case StepName, "":
		name := strings.Join(strings.Fields(msg), " ")
		if name == "" {
			return reject(KindText, "Por favor, digite o nome completo do paciente:"), nil
		}
		d.Name = name
		d.Step = StepBirthDate
		return reply(KindText, fmt.Sprintf(
			"Prazer, %s!\n\nAgora preciso da data de nascimento do paciente no formato DD/MM/AAAA (ex: 15/03/1990):", name)), nil

	case StepBirthDate:
		bd, ok := ParseBirthDate(msg, e.now().In(e.clinic.Location))
		if !ok {
			return reject(KindText, "Data inválida. Digite a data de nascimento no formato DD/MM/AAAA (ex: 15/03/1990):"), nil
		}
		d.BirthDate = &bd
		d.Step = StepPhone
		return reply(KindText, "Perfeito! Agora preciso do telefone de contato com DDD (ex: 11999887766):"), nil

	case StepPhone:
		phone, ok := ExtractPhone(msg)
		if !ok {
			return reject(KindText, "Telefone inválido. Digite o telefone com DDD (ex: 11999887766):"), nil
		}
		d.Phone = phone
		d.Step = StepEmail
		return reply(KindText, "Perfeito! Agora seu e-mail (opcional - digite 'pular' se não quiser informar):"), nil

	case StepEmail:
		d.Email = nil
		if !isSkip(msg, emailSkipWords) {
			email, ok := ExtractEmail(msg)
			if !ok {
				return reject(KindText, "E-mail inválido. Digite um e-mail válido ou 'pular' para continuar:"), nil
			}
			d.Email = &email
		}
		d.Step = StepInsuranceCard
		return reply(KindText, "Você tem plano de saúde? Se sim, digite o número da sua carteirinha.\nSe não tem plano ou prefere atendimento particular, digite 'particular':"), nil

	case StepInsuranceCard:
		card, billing, ok := ParseInsurance(msg)
		if !ok {
			return reject(KindText, "Número de carteirinha inválido. Digite um número válido ou 'particular' para atendimento particular:"), nil
		}
		d.InsuranceCard = card
		d.Billing = billing
		return e.completeRegistration(ctx, c, d)

	default:
		return restart(c, "Erro nos dados do cadastro. Vamos recomeçar."), nil
	}
}

func (e *Engine) completeRegistration(ctx context.Context, c *Conversation, d *RegistrationDraft) (Response, error) {
	if d.BirthDate == nil || d.Name == "" || d.Phone == "" {
		return restart(c, "Erro nos dados do cadastro. Vamos recomeçar."), nil
	}

	patient, err := e.repo.CreatePatient(ctx, appointment.NewPatient{
		NationalID:    d.NationalID,
		Name:          d.Name,
		BirthDate:     *d.BirthDate,
		Phone:         d.Phone,
		Email:         d.Email,
		InsuranceCard: d.InsuranceCard,
		Billing:       d.Billing,
	})
	if errors.Is(err, appointment.ErrPatientExists) {
		// Registered from another session in the meantime.
		patient, err = e.repo.FindPatientByNationalID(ctx, d.NationalID)
	}
	if err != nil {
		return Response{}, fmt.Errorf("register patient: %w", err)
	}

	id := patient.ID
	c.PatientID = &id
	c.State = StateChooseLocation
	c.Draft = &BookingDraft{}

	billing := "atendimento particular"
	if patient.Billing == appointment.BillingInsured {
		billing = "plano de saúde"
	}
	return e.locationPrompt(ctx, fmt.Sprintf(
		"Cadastro realizado com sucesso, %s!\n\nTipo: %s\n\nPrimeiro, em qual local você gostaria de ser atendido?", patient.Name, billing), true)
}
