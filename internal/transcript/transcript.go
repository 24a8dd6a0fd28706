package transcript

import "strings"

// State accumulates the transcript of one call. Finalized utterances are
// append-only; the partial hypothesis is replaced wholesale on every frame
// and cleared when its utterance finalizes.
type State struct {
	finalized []string
	partial   string
}

// NewState returns an empty transcript
func NewState() *State {
	return &State{}
}

// ApplyPartial replaces the in-flight hypothesis. An empty hypothesis clears
// nothing: a quiet frame between words must not erase visible text.
func (s *State) ApplyPartial(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.partial = text
}

// ApplyFinal closes the current utterance. The in-flight hypothesis is
// promoted into the finalized text first, then the endpoint text is appended
// after it: the hypothesis is speech the caller already said, and an
// utterance boundary must never erase it.
func (s *State) ApplyFinal(text string) {
	if s.partial != "" {
		s.finalized = append(s.finalized, s.partial)
		s.partial = ""
	}
	text = strings.TrimSpace(text)
	if text != "" {
		s.finalized = append(s.finalized, text)
	}
}

// Final returns the finalized utterances joined with single spaces
func (s *State) Final() string {
	return strings.Join(s.finalized, " ")
}

// Partial returns the current in-flight hypothesis
func (s *State) Partial() string {
	return s.partial
}

// Combined returns the full visible transcript: finalized text followed by
// the partial hypothesis. This is the text enrichment and the state sink see.
func (s *State) Combined() string {
	final := s.Final()
	if s.partial == "" {
		return final
	}
	if final == "" {
		return s.partial
	}
	return final + " " + s.partial
}
