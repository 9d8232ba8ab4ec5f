package normalize

import (
	"strings"

	"github.com/kljensen/snowball"

	"github.com/cognicore/simscore/pkg/simscore/stoplist"
)

// MinTokenLen is the shortest token kept. Shorter tokens carry no signal.
const MinTokenLen = 3

// structuralWords introduce document-structure markers ("page 4",
// "chapter 2", "section 10") that must not contribute to similarity.
var structuralWords = map[string]struct{}{
	"page":    {},
	"chapter": {},
	"section": {},
}

// Options configures a Normalizer
type Options struct {
	// Stem reduces tokens to their Snowball English stem after filtering.
	Stem bool
}

// Normalizer turns extracted text into a canonical token sequence.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	stops *stoplist.List
	stem  bool
}

// New creates a normalizer with the given stop list
func New(stops *stoplist.List, opts Options) *Normalizer {
	if stops == nil {
		stops = stoplist.New("empty", nil)
	}
	return &Normalizer{stops: stops, stem: opts.Stem}
}

// StoplistVersion reports the version of the stop list in use.
func (n *Normalizer) StoplistVersion() string {
	return n.stops.Version()
}

// Normalize lowercases text, replaces everything except ASCII letters,
// digits and whitespace with spaces, strips leading page/chapter/section
// and numbered-list markers from every line, and drops short tokens and
// stop words. Token order is preserved and duplicates are kept.
func (n *Normalizer) Normalize(text string) []string {
	var tokens []string
	for _, line := range strings.FieldsFunc(text, isLineBreak) {
		fields := strings.Fields(cleanLine(line))
		fields = trimStructuralNoise(fields)
		for _, f := range fields {
			if tok, ok := n.processToken(f); ok {
				tokens = append(tokens, tok)
			}
		}
	}
	// Filtering can expose a marker at the head of the stream
	// ("the page 12 ..."); strip it so Normalize is idempotent.
	return trimStructuralNoise(tokens)
}

// Detokenize joins tokens back into text that normalizes to the same tokens.
func Detokenize(tokens []string) string {
	return strings.Join(tokens, " ")
}

// cleanLine lowercases a line and maps every rune that is not an ASCII
// letter, digit or whitespace to a single space.
func cleanLine(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	for _, r := range strings.ToLower(line) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			// Whitespace and punctuation both become separators;
			// strings.Fields collapses the runs.
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// maxListMarkerLen is the longest bare number read as a list marker.
// Longer numbers, such as years, are content.
const maxListMarkerLen = 3

// trimStructuralNoise removes leading "page N", "chapter N", "section N"
// and bare list numbers, repeatedly.
func trimStructuralNoise(fields []string) []string {
	for len(fields) > 0 {
		switch {
		case len(fields[0]) <= maxListMarkerLen && isDigits(fields[0]):
			fields = fields[1:]
		case len(fields) > 1 && isStructural(fields[0]) && isDigits(fields[1]):
			fields = fields[2:]
		default:
			return fields
		}
	}
	return fields
}

// processToken applies length and stopword filtering, then optional stemming.
func (n *Normalizer) processToken(word string) (string, bool) {
	if len(word) < MinTokenLen {
		return "", false
	}
	if n.stops.IsStop(word) {
		return "", false
	}
	if n.stem {
		word = n.stemFixedPoint(word)
	}
	return word, true
}

// maxStemRounds bounds stemFixedPoint. English Snowball settles within
// two or three rounds.
const maxStemRounds = 8

// stemFixedPoint stems word until the stemmer leaves it unchanged, so an
// already stemmed token normalizes to itself ("universities" -> "univers"
// -> "univ").
func (n *Normalizer) stemFixedPoint(word string) string {
	for range maxStemRounds {
		stemmed, err := snowball.Stem(word, "english", false)
		if err != nil || stemmed == word || len(stemmed) < MinTokenLen || n.stops.IsStop(stemmed) {
			return word
		}
		word = stemmed
	}
	return word
}

func isLineBreak(r rune) bool {
	return r == '\n' || r == '\f' || r == '\v' || r == '\u2028'
}

func isStructural(word string) bool {
	_, ok := structuralWords[word]
	return ok
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
