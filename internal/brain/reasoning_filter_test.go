package brain

import "testing"

func TestReasoningFilterStripsSingleChunkBlock(t *testing.T) {
	f := NewReasoningFilter()
	got := f.Consume("<think>weighing options</think>Here is my answer.") + f.Finalize()
	want := "Here is my answer."
	if got != want {
		t.Fatalf("filtered = %q, want %q", got, want)
	}
}

func TestReasoningFilterStripsSplitMarkers(t *testing.T) {
	f := NewReasoningFilter()
	var got string
	for _, delta := range []string{"<thi", "nk>hidden ", "reasoning</th", "ink>Visible", " text."} {
		got += f.Consume(delta)
	}
	got += f.Finalize()
	want := "Visible text."
	if got != want {
		t.Fatalf("filtered = %q, want %q", got, want)
	}
}

func TestReasoningFilterHandlesEachConvention(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"xml-think", "<think>x</think>hello"},
		{"xml-thinking", "<thinking>x</thinking>hello"},
		{"xml-reasoning", "<reasoning>x</reasoning>hello"},
		{"bracket-upper", "[THINKING]x[/THINKING]hello"},
		{"bracket-lower", "[thinking]x[/thinking]hello"},
		{"unicode", "◁think▷x◁/think▷hello"},
	}
	for _, tc := range cases {
		if got := StripReasoning(tc.in); got != "hello" {
			t.Errorf("%s: StripReasoning(%q) = %q, want %q", tc.name, tc.in, got, "hello")
		}
	}
}

func TestReasoningFilterDropsUnclosedBlock(t *testing.T) {
	f := NewReasoningFilter()
	got := f.Consume("Before. <think>never closed") + f.Finalize()
	want := "Before. "
	if got != want {
		t.Fatalf("filtered = %q, want %q", got, want)
	}
}

func TestReasoningFilterKeepsPlainText(t *testing.T) {
	f := NewReasoningFilter()
	got := f.Consume("No markup here, just < a comparison and [brackets].") + f.Finalize()
	want := "No markup here, just < a comparison and [brackets]."
	if got != want {
		t.Fatalf("filtered = %q, want %q", got, want)
	}
}

func TestReasoningFilterHoldsAmbiguousSuffixThenReleases(t *testing.T) {
	f := NewReasoningFilter()
	if got := f.Consume("answer <th"); got != "answer " {
		t.Fatalf("Consume(part1) = %q, want %q", got, "answer ")
	}
	if got := f.Consume("e rest"); got != "<the rest" {
		t.Fatalf("Consume(part2) = %q, want %q", got, "<the rest")
	}
	if got := f.Finalize(); got != "" {
		t.Fatalf("Finalize() = %q, want empty", got)
	}
}

func TestReasoningFilterStripsMultipleBlocks(t *testing.T) {
	in := "<think>a</think>one <thinking>b</thinking>two"
	if got := StripReasoning(in); got != "one two" {
		t.Fatalf("StripReasoning() = %q, want %q", got, "one two")
	}
}
