package similarity

import (
	"math"
	"testing"
)

func TestScoreIdentical(t *testing.T) {
	a := []string{"quick", "brown", "fox", "jumps"}
	if got := Score(a, a); got != 100 {
		t.Errorf("Score(A,A) = %d, want 100", got)
	}

	repeated := []string{"alpha", "alpha", "beta", "gamma", "gamma", "gamma"}
	if got := Score(repeated, repeated); got != 100 {
		t.Errorf("Score(A,A) with repeats = %d, want 100", got)
	}
}

func TestScoreDisjoint(t *testing.T) {
	a := []string{"economic", "growth", "depends", "investment"}
	b := []string{"cats", "sleep", "day"}
	if got := Score(a, b); got != 0 {
		t.Errorf("Score(disjoint) = %d, want 0", got)
	}
}

func TestScoreEmpty(t *testing.T) {
	a := []string{"alpha"}
	cases := []struct {
		name string
		x, y []string
	}{
		{"both nil", nil, nil},
		{"left empty", []string{}, a},
		{"right empty", a, nil},
		{"only blanks", []string{"", ""}, a},
	}
	for _, tc := range cases {
		if got := Score(tc.x, tc.y); got != 0 {
			t.Errorf("%s: Score = %d, want 0", tc.name, got)
		}
	}
}

func TestScoreSymmetric(t *testing.T) {
	samples := [][]string{
		{"alpha", "beta", "gamma"},
		{"alpha", "alpha", "delta"},
		{"beta", "gamma", "gamma", "epsilon", "zeta"},
		{"omega"},
		{},
		{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"},
	}
	for i := range samples {
		for j := range samples {
			ab := Score(samples[i], samples[j])
			ba := Score(samples[j], samples[i])
			if ab != ba {
				t.Errorf("Score not symmetric for %v / %v: %d vs %d", samples[i], samples[j], ab, ba)
			}
		}
	}
}

func TestScoreHalfSharedModerate(t *testing.T) {
	// Half of the new document's distinct tokens appear in the prior, which
	// carries extra vocabulary of its own.
	newDoc := []string{"solar", "panels", "convert", "sunlight"}
	prior := []string{"solar", "panels", "roof", "install", "cost", "grid"}

	got := Score(newDoc, prior)
	// 2 / (2 * sqrt(6)) = 0.408
	if got != 41 {
		t.Errorf("Score = %d, want 41", got)
	}
}

func TestScoreEqualSizedHalfOverlap(t *testing.T) {
	// Equal-sized vocabularies sharing half their tokens land exactly on 50.
	got := Score([]string{"aaa", "bbb", "ccc", "ddd"}, []string{"aaa", "bbb", "eee", "fff"})
	if got != 50 {
		t.Errorf("Score = %d, want 50", got)
	}
}

func TestCosineKnownValue(t *testing.T) {
	a := NewVector([]string{"x1", "x1", "x2"})
	b := NewVector([]string{"x1", "x3"})

	// dot = 2, |a|² = 5, |b|² = 2
	want := 2 / math.Sqrt(10)
	if got := Cosine(a, b); math.Abs(got-want) > 1e-12 {
		t.Errorf("Cosine = %f, want %f", got, want)
	}
}

func TestNewVectorCounts(t *testing.T) {
	v := NewVector([]string{"a1", "b1", "a1", "", "a1"})

	if v["a1"] != 3 || v["b1"] != 1 {
		t.Errorf("unexpected counts: %v", v)
	}
	if _, ok := v[""]; ok {
		t.Error("empty token should not be counted")
	}
	if got := v.SquaredMagnitude(); got != 10 {
		t.Errorf("SquaredMagnitude = %d, want 10", got)
	}
}

func TestPercentBounds(t *testing.T) {
	cases := map[float64]int{
		-0.5:       0,
		0:          0,
		0.004:      0,
		0.006:      1,
		0.499:      50,
		0.994:      99,
		1:          100,
		1.2:        100,
		math.NaN(): 0,
	}
	for in, want := range cases {
		if got := Percent(in); got != want {
			t.Errorf("Percent(%v) = %d, want %d", in, got, want)
		}
	}
}
