package chat

type State string

const (
	StateStart             State = "start"
	StateAwaitingID        State = "awaiting_id"
	StateRegistration      State = "registration"
	StateChooseLocation    State = "choose_location"
	StateChooseSpecialty   State = "choose_specialty"
	StateChooseSlot        State = "choose_slot"
	StateAttachmentRequest State = "attachment_request"
	StateConfirm           State = "confirm"
	StateCancellation      State = "cancellation"
	StateLookup            State = "lookup"
	StateDone              State = "done"
)

var knownStates = map[State]bool{
	StateStart:             true,
	StateAwaitingID:        true,
	StateRegistration:      true,
	StateChooseLocation:    true,
	StateChooseSpecialty:   true,
	StateChooseSlot:        true,
	StateAttachmentRequest: true,
	StateConfirm:           true,
	StateCancellation:      true,
	StateLookup:            true,
	StateDone:              true,
}

func (s State) Known() bool {
	return knownStates[s]
}

type RegistrationStep string

const (
	StepName          RegistrationStep = "name"
	StepBirthDate     RegistrationStep = "birth_date"
	StepPhone         RegistrationStep = "phone"
	StepEmail         RegistrationStep = "email"
	StepInsuranceCard RegistrationStep = "insurance_card"
)
