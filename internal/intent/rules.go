package intent

import "context"

var (
	CancellationKeywords = []string{"cancelar", "desmarcar", "remover consulta", "cancelo", "cancelamento"}
	LookupKeywords       = []string{"meus agendamentos", "minhas consultas", "consultar agendamento", "ver consultas"}
	InformationKeywords  = []string{
		"telefone", "endereço", "endereco", "onde fica",
		"horário funcionamento", "horário de funcionamento", "horario de funcionamento", "localização",
	}
	OutOfScopeKeywords = []string{"clima", "tempo", "futebol", "política", "receita culinária"}

	SchedulingHeuristics = []string{
		"oi", "olá", "ola", "bom dia", "boa tarde", "boa noite", "hello", "hi",
		"dor", "problema", "consulta", "médico", "doutor", "sintoma", "doença",
		"preciso", "quero marcar", "agendar", "emergência",
	}
)

type rule struct {
	label    Label
	keywords []string
}

// RuleClassifier checks fixed keyword lists in priority order.
type RuleClassifier struct {
	rules []rule
}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{rules: []rule{
		{Cancellation, CancellationKeywords},
		{Lookup, LookupKeywords},
		{Information, InformationKeywords},
		{OutOfScope, OutOfScopeKeywords},
	}}
}

func (c *RuleClassifier) Classify(_ context.Context, text string) (Label, error) {
	for _, r := range c.rules {
		if MatchAny(text, r.keywords) {
			return r.label, nil
		}
	}
	return "", ErrNoMatch
}

// HeuristicClassifier recognises greetings and symptom words as scheduling.
type HeuristicClassifier struct {
	keywords []string
}

func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{keywords: SchedulingHeuristics}
}

func (c *HeuristicClassifier) Classify(_ context.Context, text string) (Label, error) {
	if MatchAny(text, c.keywords) {
		return Scheduling, nil
	}
	return "", ErrNoMatch
}
