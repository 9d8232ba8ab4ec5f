package explain

import (
	"encoding/json"
	"strings"
	"testing"
)

func toks(s string) []string {
	return strings.Fields(s)
}

func TestTierFor(t *testing.T) {
	cases := map[int]Tier{
		0:   TierMinor,
		19:  TierMinor,
		20:  TierModerate,
		49:  TierModerate,
		50:  TierHigh,
		100: TierHigh,
	}
	for score, want := range cases {
		if got := TierFor(score); got != want {
			t.Errorf("TierFor(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestBuildNoMatch(t *testing.T) {
	b := New()

	exp := b.Build(toks("economic growth depends investment"), nil, 0, "")
	if exp.SimilarityScore != 0 || exp.Tier != TierMinor {
		t.Errorf("unexpected score/tier: %d %s", exp.SimilarityScore, exp.Tier)
	}
	if exp.MatchedSubmissionID != nil {
		t.Errorf("MatchedSubmissionID = %v, want nil", *exp.MatchedSubmissionID)
	}
	if len(exp.MatchedKeywords) != 0 || len(exp.MatchedPhrases) != 0 || exp.CommonWordCount != 0 {
		t.Errorf("expected empty lists, got %+v", exp)
	}
	if exp.Note != Note || exp.ExplanationText == "" {
		t.Error("note and narrative must always be set")
	}
}

func TestBuildIdenticalDocuments(t *testing.T) {
	b := New()

	tokens := toks("quick brown fox jumps")
	exp := b.Build(tokens, tokens, 100, "sub-1")
	if exp.Tier != TierHigh {
		t.Errorf("Tier = %s, want high", exp.Tier)
	}
	if exp.MatchedSubmissionID == nil || *exp.MatchedSubmissionID != "sub-1" {
		t.Errorf("MatchedSubmissionID = %v", exp.MatchedSubmissionID)
	}
	if exp.CommonWordCount != 4 {
		t.Errorf("CommonWordCount = %d, want 4", exp.CommonWordCount)
	}
	// Four tokens cannot fill a five-token window.
	if len(exp.MatchedPhrases) != 0 {
		t.Errorf("MatchedPhrases = %v, want none", exp.MatchedPhrases)
	}
}

func TestBuildKeywordsByFrequency(t *testing.T) {
	b := New()

	newTokens := toks("alpha beta gamma beta delta gamma beta")
	matched := toks("gamma beta alpha omega")
	exp := b.Build(newTokens, matched, 60, "m")

	want := []string{"beta", "gamma", "alpha"}
	if strings.Join(exp.MatchedKeywords, ",") != strings.Join(want, ",") {
		t.Errorf("MatchedKeywords = %v, want %v", exp.MatchedKeywords, want)
	}
	if exp.CommonWordCount != 3 {
		t.Errorf("CommonWordCount = %d, want 3", exp.CommonWordCount)
	}
}

func TestBuildKeywordCapKeepsFullCount(t *testing.T) {
	b := New()

	var words []string
	for i := 0; i < 15; i++ {
		words = append(words, strings.Repeat(string(rune('a'+i)), 3))
	}
	exp := b.Build(words, words, 100, "m")
	if len(exp.MatchedKeywords) != MaxKeywords {
		t.Errorf("len(MatchedKeywords) = %d, want %d", len(exp.MatchedKeywords), MaxKeywords)
	}
	if exp.CommonWordCount != 15 {
		t.Errorf("CommonWordCount = %d, want 15", exp.CommonWordCount)
	}
	if exp.MatchedKeywords[0] != "aaa" {
		t.Errorf("ties should keep first occurrence, got %v", exp.MatchedKeywords)
	}
}

func TestBuildPhrases(t *testing.T) {
	b := New()

	newTokens := toks("plants convert light energy into chemical energy stored glucose molecules")
	matched := toks("plants convert light energy chemical")
	exp := b.Build(newTokens, matched, 45, "m")

	want := []string{
		"plants convert light energy into",
		"convert light energy into chemical",
		"light energy into chemical energy",
	}
	if strings.Join(exp.MatchedPhrases, "|") != strings.Join(want, "|") {
		t.Errorf("MatchedPhrases = %q, want %q", exp.MatchedPhrases, want)
	}
	if exp.Tier != TierModerate {
		t.Errorf("Tier = %s, want moderate", exp.Tier)
	}
}

func TestBuildPhrasesDedupAndCap(t *testing.T) {
	b := New()

	newTokens := toks(strings.Repeat("one two three four five ", 6) + "six seven eight nine ten eleven")
	exp := b.Build(newTokens, newTokens, 100, "m")
	if len(exp.MatchedPhrases) != MaxPhrases {
		t.Fatalf("len(MatchedPhrases) = %d, want %d", len(exp.MatchedPhrases), MaxPhrases)
	}
	seen := map[string]bool{}
	for _, p := range exp.MatchedPhrases {
		if seen[p] {
			t.Errorf("duplicate phrase %q", p)
		}
		seen[p] = true
	}
}

func TestExplanationJSONFields(t *testing.T) {
	b := New()

	data, err := json.Marshal(b.Build(nil, nil, 0, ""))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(data)
	for _, field := range []string{
		`"similarityScore":0`,
		`"explanationText":`,
		`"commonWordCount":0`,
		`"matchedKeywords":[]`,
		`"matchedPhrases":[]`,
		`"matchedSubmissionId":null`,
		`"note":`,
		`"tier":"minor"`,
	} {
		if !strings.Contains(out, field) {
			t.Errorf("expected %s in %s", field, out)
		}
	}
}
