package similarity

import (
	"math"
)

// Vector is a term-frequency vector: token -> occurrence count.
// Vectors are only comparable when built with the same normalization.
type Vector map[string]int

// NewVector counts occurrences per distinct token; order is irrelevant.
func NewVector(tokens []string) Vector {
	v := make(Vector, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		v[t]++
	}
	return v
}

// SquaredMagnitude returns ‖v‖² as an exact integer.
func (v Vector) SquaredMagnitude() int64 {
	var sum int64
	for _, c := range v {
		sum += int64(c) * int64(c)
	}
	return sum
}

// Dot returns the dot product over the shared vocabulary.
func Dot(a, b Vector) int64 {
	// Iterate the smaller map; integer sums are order independent.
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot int64
	for tok, ca := range a {
		if cb, ok := b[tok]; ok {
			dot += int64(ca) * int64(cb)
		}
	}
	return dot
}

// Cosine calculates dot(A,B) / (‖A‖·‖B‖) in [0,1].
//
// A zero-magnitude vector (empty or all-stopword document) yields 0.
func Cosine(a, b Vector) float64 {
	ma := a.SquaredMagnitude()
	mb := b.SquaredMagnitude()
	if ma == 0 || mb == 0 {
		return 0
	}
	cos := float64(Dot(a, b)) / math.Sqrt(float64(ma)*float64(mb))
	if cos > 1 {
		return 1
	}
	return cos
}

// ScoreVectors returns the cosine similarity as an integer percentage.
func ScoreVectors(a, b Vector) int {
	return Percent(Cosine(a, b))
}

// Score builds term-frequency vectors for both token sequences and
// returns their cosine similarity as an integer in [0,100].
// Score(a, b) == Score(b, a) for all inputs.
func Score(a, b []string) int {
	return ScoreVectors(NewVector(a), NewVector(b))
}

// Percent maps a similarity in [0,1] to the nearest integer in [0,100].
func Percent(sim float64) int {
	if math.IsNaN(sim) || sim <= 0 {
		return 0
	}
	p := int(math.Round(sim * 100))
	if p > 100 {
		return 100
	}
	return p
}
