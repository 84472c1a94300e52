package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/clinic-chat-scheduling/internal/llm"
)

const classifierPrompt = `Você é um assistente médico virtual especializado em agendamentos. Classifique a mensagem do usuário em uma das categorias:

1. "agendamento" - intenção de agendar consulta, marcar horário, saudações iniciais, pedidos de ajuda para marcar consulta, menções de sintomas ou necessidade médica
2. "cancelamento" - intenção clara de cancelar, desmarcar ou remover agendamento existente
3. "consulta" - quer verificar, ver ou listar agendamentos já marcados
4. "informacao" - perguntas sobre a clínica (telefone, endereço, horários de funcionamento, médicos, especialidades, localização)
5. "fora_escopo" - conversas casuais não relacionadas à clínica

Exemplos:
- "oi" → agendamento
- "estou com dor de cabeça" → agendamento
- "quero cancelar minha consulta" → cancelamento
- "quais são meus agendamentos?" → consulta
- "qual o telefone da clínica?" → informacao
- "como está o tempo?" → fora_escopo

Responda APENAS com uma palavra: agendamento, cancelamento, consulta, informacao, fora_escopo`

var modelLabels = map[string]Label{
	"agendamento":  Scheduling,
	"cancelamento": Cancellation,
	"consulta":     Lookup,
	"informacao":   Information,
	"fora_escopo":  OutOfScope,
}

// LLMClassifier asks a completion model for one of the five labels.
type LLMClassifier struct {
	client  llm.Client
	timeout time.Duration
}

// NewLLMClassifier bounds every call by timeout when it is positive.
func NewLLMClassifier(client llm.Client, timeout time.Duration) *LLMClassifier {
	return &LLMClassifier{client: client, timeout: timeout}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (Label, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Complete(ctx, llm.Request{
		System:      []string{classifierPrompt},
		Messages:    []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: fmt.Sprintf("Mensagem do usuário: %q", text)}},
		MaxTokens:   10,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("classify with llm: %w", err)
	}

	label, ok := ParseModelLabel(resp.Text)
	if !ok {
		return "", fmt.Errorf("llm returned invalid label %q", resp.Text)
	}
	return label, nil
}

// ParseModelLabel accepts exactly one of the five model words, ignoring case
// and surrounding whitespace.
func ParseModelLabel(s string) (Label, bool) {
	label, ok := modelLabels[strings.ToLower(strings.TrimSpace(s))]
	return label, ok
}
