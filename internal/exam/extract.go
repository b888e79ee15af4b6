package exam

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Marker is the word that introduces the status date on the page.
const Marker = "Prüfungsdatum"

var (
	// datePattern matches DD.MM.YYYY
	datePattern = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`)

	// sentenceEnd matches terminal punctuation followed by whitespace or end
	// of text. Dots inside a date are followed by a digit and never match.
	sentenceEnd = regexp.MustCompile(`[.!?](?:\s+|$)`)

	statusSentence = regexp.MustCompile(`Aktuell wertet das Bundesamt Tests bis Prüfungsdatum (\d{2}\.\d{2}\.\d{4}) aus\.`)
)

// Extractor finds the status date in normalized or raw page text.
type Extractor interface {
	// Extract returns the status date and true, or "" and false on a miss.
	Extract(text string) (string, bool)
}

// FragmentExtractor scans sentences mentioning the marker word for the first
// date that follows it. It tolerates rewording around the date.
type FragmentExtractor struct{}

// Extract implements Extractor.
func (FragmentExtractor) Extract(text string) (string, bool) {
	for _, sentence := range Sentences(text) {
		i := strings.Index(sentence, Marker)
		if i < 0 {
			continue
		}
		if date := datePattern.FindString(sentence[i+len(Marker):]); date != "" {
			return date, true
		}
	}
	return "", false
}

// SentenceExtractor only accepts the exact official sentence.
type SentenceExtractor struct{}

// Extract implements Extractor.
func (SentenceExtractor) Extract(text string) (string, bool) {
	m := statusSentence.FindStringSubmatch(NormalizeText(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// NormalizeText composes Unicode (NFC), turns non-breaking and other Unicode
// spaces into plain spaces, drops zero-width characters and collapses
// whitespace runs.
func NormalizeText(text string) string {
	text = norm.NFC.String(text)
	text = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u00ad', '\ufeff':
			return -1
		case '\u00a0':
			return ' '
		}
		return r
	}, text)
	// Fields splits on every unicode.IsSpace rune, including U+202F and U+2007.
	return strings.Join(strings.Fields(text), " ")
}

// Sentences splits text into sentences. Line breaks always end a sentence;
// within a line the text is normalized and split after terminal punctuation,
// which stays with its sentence.
func Sentences(text string) []string {
	var out []string
	for _, line := range strings.FieldsFunc(text, isLineBreak) {
		out = append(out, lineSentences(NormalizeText(line))...)
	}
	return out
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\u2028', '\u2029':
		return true
	}
	return false
}

func lineSentences(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		// keep the punctuation, drop the trailing whitespace
		s := strings.TrimSpace(text[start : loc[0]+1])
		if s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
