package prompt

import (
	"strings"
	"testing"

	"github.com/haven-chat/haven/internal/memory"
	"github.com/haven-chat/haven/internal/retrieval"
)

func TestBuildOrdering(t *testing.T) {
	a := NewAssembler(0)
	recent := []memory.Turn{
		{Role: memory.RoleUser, Text: "hi"},
		{Role: memory.RoleAssistant, Text: "hello"},
	}
	actx := retrieval.AssembledContext{KnowledgeText: "notes"}

	msgs := a.Build("", actx, recent, "how are you", "")
	if len(msgs) != 4 {
		t.Fatalf("Build() len = %d, want 4", len(msgs))
	}
	if msgs[0].Role != RoleSystem {
		t.Fatalf("msgs[0].Role = %q, want system first", msgs[0].Role)
	}
	if !strings.Contains(msgs[0].Content, "notes") {
		t.Fatalf("system block missing knowledge text")
	}
	if msgs[1].Content != "hi" || msgs[2].Content != "hello" {
		t.Fatalf("history out of order: %+v", msgs[1:3])
	}
	last := msgs[len(msgs)-1]
	if last.Role != RoleUser || last.Content != "how are you" {
		t.Fatalf("last message = %+v, want the new user turn", last)
	}
}

func TestBuildDefaultInstructions(t *testing.T) {
	a := NewAssembler(0)
	msgs := a.Build("  ", retrieval.AssembledContext{}, nil, "hello", "")
	if !strings.Contains(msgs[0].Content, "Haven") {
		t.Fatalf("system block = %q, want default instructions", msgs[0].Content)
	}
}

func TestBuildLanguageHint(t *testing.T) {
	a := NewAssembler(0)
	msgs := a.Build("", retrieval.AssembledContext{}, nil, "hola", "Spanish")
	if !strings.Contains(msgs[0].Content, "Respond in Spanish.") {
		t.Fatalf("system block missing language hint: %q", msgs[0].Content)
	}
}

func TestBuildDropsOldestHistoryBeforeKnowledge(t *testing.T) {
	knowledge := strings.Repeat("k", 400)
	recent := []memory.Turn{
		{Role: memory.RoleUser, Text: "oldest " + strings.Repeat("x", 200)},
		{Role: memory.RoleUser, Text: "middle " + strings.Repeat("y", 200)},
		{Role: memory.RoleUser, Text: "newest " + strings.Repeat("z", 200)},
	}

	// Ceiling fits instructions+knowledge+one turn, not all three turns.
	a := NewAssembler(len(DefaultInstructions) + len(knowledge) + 350)
	msgs := a.Build("", retrieval.AssembledContext{KnowledgeText: knowledge}, recent, "q", "")

	joined := ""
	for _, m := range msgs {
		joined += m.Content + "\n"
	}
	if strings.Contains(joined, "oldest") {
		t.Fatalf("oldest turn survived, want it dropped first")
	}
	if !strings.Contains(joined, "newest") {
		t.Fatalf("newest turn dropped, want it kept")
	}
	if !strings.Contains(joined, strings.Repeat("k", 100)) {
		t.Fatalf("knowledge truncated before history exhausted")
	}
}

func TestBuildTruncatesKnowledgeLast(t *testing.T) {
	knowledge := strings.Repeat("k", 5000)
	a := NewAssembler(len(DefaultInstructions) + 1000)

	msgs := a.Build("", retrieval.AssembledContext{KnowledgeText: knowledge}, nil, "q", "")
	if total := totalLen(msgs); total > len(DefaultInstructions)+1000+len(retrieval.TruncationMarker)+64 {
		t.Fatalf("total context chars = %d, want near ceiling", total)
	}
	if !strings.Contains(msgs[0].Content, retrieval.TruncationMarker) {
		t.Fatalf("truncated knowledge missing marker")
	}
}

func totalLen(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
	}
	return total
}
