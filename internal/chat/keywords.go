package chat

import "github.com/hackgods/clinic-chat-scheduling/internal/intent"

var (
	greetingKeywords = []string{"oi", "olá", "ola", "hey", "hello", "bom dia", "boa tarde", "boa noite"}

	attachmentSentKeywords = []string{"enviei", "enviado", "anexei", "anexado", "pronto", "ok", "sim", "foto", "arquivo"}
	attachmentSkipKeywords = []string{"pular", "sem anexo", "não tenho", "nao tenho", "depois", "não", "nao"}
	attachmentLinkKeywords = []string{"link", "upload", "anexo"}

	confirmYesKeywords = []string{"sim", "s", "confirmo", "ok", "confirmar"}
	confirmNoKeywords  = []string{"não", "nao", "n", "voltar"}
)

type symptomRule struct {
	keyword   string
	specialty string
}

// symptomRules maps lay words to the specialty whose name contains the
// target, checked in order.
var symptomRules = []symptomRule{
	{"coração", "cardiologia"},
	{"pele", "dermatologia"},
	{"criança", "pediatria"},
	{"neuro", "neuropediatra"},
	{"neurologia", "neuropediatra"},
	{"neurologista", "neuropediatra"},
	{"neuropediatra", "neuropediatra"},
	{"pediatra", "neuropediatra"},
	{"avaliação", "avaliação - terapia"},
	{"avaliacao", "avaliação - terapia"},
	{"terapia", "avaliação - terapia"},
	{"mulher", "ginecologia"},
	{"osso", "ortopedia"},
	{"mental", "psiquiatria"},
	{"olho", "oftalmologia"},
}

func isGreeting(msg string) bool {
	return intent.MatchAny(msg, greetingKeywords)
}

func isCancellation(msg string) bool {
	return intent.MatchAny(msg, intent.CancellationKeywords)
}
