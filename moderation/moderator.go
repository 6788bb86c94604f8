// Package moderation hides censored words in chat messages.
//
// Words and messages are folded the same way before matching: leet speak
// digits and signs become letters, punctuation, spaces and symbols are
// dropped, everything is lowercased. "S.c-4.m" therefore matches "scam", and
// the whole original span, separators included, is replaced.
package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

var leet = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

// Match is a censored word found in a message. Start and End are rune
// offsets in the original message, End excluded.
type Match struct {
	Word  string
	Start int
	End   int
}

type Moderator struct {
	log         *slog.Logger
	machine     *goahocorasick.Machine
	replacement rune
	size        int
}

// NewModerator builds the automaton of the folded words. Words folding to
// nothing are skipped: they would match everywhere.
func NewModerator(words []string, replacement rune, log *slog.Logger) (*Moderator, error) {
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		folded, _ := fold(word)
		if len(folded) == 0 {
			log.Debug("Skipping censored word without letters", "word", word)
			continue
		}
		patterns = append(patterns, folded)
	}

	m := &Moderator{log: log, replacement: replacement, size: len(patterns)}
	if len(patterns) == 0 {
		return m, nil
	}
	m.machine = new(goahocorasick.Machine)
	if err := m.machine.Build(patterns); err != nil {
		return nil, err
	}
	return m, nil
}

// Size is the number of words the moderator looks for.
func (m *Moderator) Size() int { return m.size }

// Find lists the censored words of message in order of appearance.
func (m *Moderator) Find(message string) []Match {
	if m.machine == nil {
		return nil
	}
	folded, offsets := fold(message)
	if len(folded) == 0 {
		return nil
	}

	var matches []Match
	for _, term := range m.machine.MultiPatternSearch(folded, false) {
		end := term.Pos + len(term.Word)
		if term.Pos < 0 || end > len(offsets) {
			continue
		}
		matches = append(matches, Match{
			Word:  string(term.Word),
			Start: offsets[term.Pos],
			End:   offsets[end-1] + 1,
		})
	}
	return matches
}

// Censor replaces every censored span of message, keeping its length in
// runes, and returns the words found.
func (m *Moderator) Censor(message string) (string, []string) {
	matches := m.Find(message)
	if len(matches) == 0 {
		return message, nil
	}

	runes := []rune(message)
	words := make([]string, 0, len(matches))
	for _, match := range matches {
		for i := match.Start; i < match.End; i++ {
			runes[i] = m.replacement
		}
		words = append(words, match.Word)
	}
	return string(runes), words
}

// fold returns the matchable letters of s and, for each of them, its rune
// offset in s.
func fold(s string) ([]rune, []int) {
	runes := []rune(s)
	letters := make([]rune, 0, len(runes))
	offsets := make([]int, 0, len(runes))
	for i, r := range runes {
		if l, ok := leet[r]; ok {
			r = l
		}
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		letters = append(letters, unicode.ToLower(r))
		offsets = append(offsets, i)
	}
	return letters, offsets
}
