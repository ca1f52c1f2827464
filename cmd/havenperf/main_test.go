package main

import "testing"

func TestParseTextsDefaults(t *testing.T) {
	texts, err := parseTexts("")
	if err != nil {
		t.Fatalf("parseTexts() error = %v", err)
	}
	if len(texts) != len(defaultUtterances) {
		t.Fatalf("len(texts) = %d, want %d", len(texts), len(defaultUtterances))
	}
}

func TestParseTextsSplitsAndTrims(t *testing.T) {
	texts, err := parseTexts(" hello | | how are you |")
	if err != nil {
		t.Fatalf("parseTexts() error = %v", err)
	}
	if len(texts) != 2 || texts[0] != "hello" || texts[1] != "how are you" {
		t.Fatalf("texts = %v", texts)
	}
}

func TestParseTextsRejectsAllBlank(t *testing.T) {
	if _, err := parseTexts(" | | "); err == nil {
		t.Fatal("expected error for blank utterances")
	}
}

func TestParseSSEData(t *testing.T) {
	if got, ok := parseSSEData(`data: {"content":"hi"}`); !ok || got != `{"content":"hi"}` {
		t.Fatalf("parseSSEData() = %q, %v", got, ok)
	}
	if got, ok := parseSSEData("data: [DONE]"); !ok || got != "[DONE]" {
		t.Fatalf("parseSSEData(done) = %q, %v", got, ok)
	}
	if _, ok := parseSSEData(": heartbeat"); ok {
		t.Fatal("comment line should not parse")
	}
	if _, ok := parseSSEData(""); ok {
		t.Fatal("blank line should not parse")
	}
}

func TestQuantile(t *testing.T) {
	sorted := []float64{100, 200, 300, 400}
	if got := quantile(sorted, 0); got != 100 {
		t.Fatalf("q0 = %.1f, want 100", got)
	}
	if got := quantile(sorted, 1); got != 400 {
		t.Fatalf("q1 = %.1f, want 400", got)
	}
	if got := quantile(sorted, 0.5); got != 250 {
		t.Fatalf("q0.5 = %.1f, want 250", got)
	}
	if got := quantile(nil, 0.5); got != 0 {
		t.Fatalf("empty = %.1f, want 0", got)
	}
}
