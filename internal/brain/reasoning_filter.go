package brain

import "strings"

// markupRule names one reasoning-markup convention a provider may emit.
type markupRule struct {
	name  string
	open  string
	close string
}

var reasoningRules = []markupRule{
	{name: "xml-think", open: "<think>", close: "</think>"},
	{name: "xml-thinking", open: "<thinking>", close: "</thinking>"},
	{name: "xml-reasoning", open: "<reasoning>", close: "</reasoning>"},
	{name: "bracket-thinking", open: "[THINKING]", close: "[/THINKING]"},
	{name: "bracket-thinking-lower", open: "[thinking]", close: "[/thinking]"},
	{name: "unicode-think", open: "◁think▷", close: "◁/think▷"},
}

// ReasoningFilter strips reasoning markup from a streamed response
// incrementally. Deltas may split a marker at any byte boundary, so the
// filter holds back a suffix that could still turn into a marker and
// releases it once the ambiguity resolves.
type ReasoningFilter struct {
	buf    string
	active int // index into reasoningRules, -1 when outside markup
}

func NewReasoningFilter() *ReasoningFilter {
	return &ReasoningFilter{active: -1}
}

// Consume feeds one delta and returns the text safe to emit so far.
func (f *ReasoningFilter) Consume(delta string) string {
	f.buf += delta
	var out strings.Builder
	for {
		if f.active >= 0 {
			closing := reasoningRules[f.active].close
			if idx := strings.Index(f.buf, closing); idx >= 0 {
				f.buf = f.buf[idx+len(closing):]
				f.active = -1
				continue
			}
			// Everything buffered is markup interior except a tail that
			// could be the start of the closing marker.
			if keep := len(closing) - 1; len(f.buf) > keep {
				f.buf = f.buf[len(f.buf)-keep:]
			}
			return out.String()
		}

		rule, idx := earliestOpenMarker(f.buf)
		if idx >= 0 {
			out.WriteString(f.buf[:idx])
			f.buf = f.buf[idx+len(reasoningRules[rule].open):]
			f.active = rule
			continue
		}

		hold := longestOpenPrefixSuffix(f.buf)
		out.WriteString(f.buf[:len(f.buf)-hold])
		f.buf = f.buf[len(f.buf)-hold:]
		return out.String()
	}
}

// Finalize flushes held text at end of stream. An unclosed reasoning
// block is dropped rather than leaked to the client.
func (f *ReasoningFilter) Finalize() string {
	if f.active >= 0 {
		f.buf = ""
		f.active = -1
		return ""
	}
	out := f.buf
	f.buf = ""
	return out
}

// StripReasoning removes reasoning markup from a complete string.
func StripReasoning(s string) string {
	f := NewReasoningFilter()
	return f.Consume(s) + f.Finalize()
}

func earliestOpenMarker(s string) (rule, idx int) {
	rule, idx = -1, -1
	for i, r := range reasoningRules {
		if at := strings.Index(s, r.open); at >= 0 && (idx < 0 || at < idx) {
			rule, idx = i, at
		}
	}
	return rule, idx
}

// longestOpenPrefixSuffix reports how many trailing bytes of s form a
// proper prefix of some opening marker.
func longestOpenPrefixSuffix(s string) int {
	best := 0
	for _, r := range reasoningRules {
		max := len(r.open) - 1
		if max > len(s) {
			max = len(s)
		}
		for n := max; n > best; n-- {
			if strings.HasSuffix(s, r.open[:n]) {
				best = n
				break
			}
		}
	}
	return best
}
