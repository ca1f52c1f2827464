package prompt

import (
	"strings"

	"github.com/haven-chat/haven/internal/memory"
	"github.com/haven-chat/haven/internal/retrieval"
)

// Message is one entry of the ordered payload sent to the model provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultInstructions is the baseline persona block when the caller supplies
// none.
const DefaultInstructions = "You are Haven, a calm, supportive companion. " +
	"Listen first, answer briefly, and never present yourself as a medical professional. " +
	"Use the reference notes when they are relevant and ignore them when they are not."

// Assembler builds the instruction+context+history payload under a hard size
// ceiling.
type Assembler struct {
	ceiling int
}

func NewAssembler(ceiling int) *Assembler {
	if ceiling <= 0 {
		ceiling = 24000
	}
	return &Assembler{ceiling: ceiling}
}

// Build returns the ordered message sequence: system block first, prior turns
// in chronological order, the new user turn last. When the total exceeds the
// ceiling, oldest history turns are dropped before knowledge text is
// truncated; recent turns matter more to coherence than a full corpus.
func (a *Assembler) Build(instructions string, actx retrieval.AssembledContext, recent []memory.Turn, userText, language string) []Message {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultInstructions
	}

	history := make([]memory.Turn, len(recent))
	copy(history, recent)
	knowledge := actx.KnowledgeText

	msgs := a.compose(instructions, knowledge, history, userText, language)
	for totalChars(msgs) > a.ceiling && len(history) > 0 {
		history = history[1:]
		msgs = a.compose(instructions, knowledge, history, userText, language)
	}

	if over := totalChars(msgs) - a.ceiling; over > 0 && knowledge != "" {
		keep := len(knowledge) - over - len(retrieval.TruncationMarker)
		if keep < 0 {
			keep = 0
		}
		knowledge = strings.TrimSpace(knowledge[:keep])
		if knowledge != "" {
			knowledge += retrieval.TruncationMarker
		}
		msgs = a.compose(instructions, knowledge, history, userText, language)
	}

	return msgs
}

func (a *Assembler) compose(instructions, knowledge string, history []memory.Turn, userText, language string) []Message {
	var sys strings.Builder
	sys.WriteString(instructions)
	if lang := strings.TrimSpace(language); lang != "" {
		sys.WriteString("\n\nRespond in ")
		sys.WriteString(lang)
		sys.WriteString(".")
	}
	if knowledge != "" {
		sys.WriteString("\n\nReference notes:\n")
		sys.WriteString(knowledge)
	}

	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: RoleSystem, Content: sys.String()})
	for _, turn := range history {
		msgs = append(msgs, Message{Role: string(turn.Role), Content: turn.Text})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: userText})
	return msgs
}

func totalChars(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
	}
	return total
}
