package stoplist

import (
	"testing"
)

func TestDefaultListBasic(t *testing.T) {
	l := Default()

	for _, w := range []string{"the", "and", "was", "they", "with", "should"} {
		if !l.IsStop(w) {
			t.Errorf("%q should be a stopword", w)
		}
	}

	for _, w := range []string{"economic", "fox", "investment", "cats"} {
		if l.IsStop(w) {
			t.Errorf("%q should not be a stopword", w)
		}
	}

	if l.Version() == "" {
		t.Error("default list should carry a version")
	}
}

func TestDefaultListIndependentInstances(t *testing.T) {
	a := Default()
	b := Default()
	if a == b {
		t.Error("Default should not hand out a shared instance")
	}
	if a.Len() != b.Len() {
		t.Errorf("instances differ in size: %d vs %d", a.Len(), b.Len())
	}
}

func TestNewLowercasesAndTrims(t *testing.T) {
	l := New("test", []string{" THE ", "And", "", "  "})

	if !l.IsStop("the") || !l.IsStop("and") {
		t.Error("terms should be lowercased and trimmed")
	}
	if l.Len() != 2 {
		t.Errorf("Expected 2 stopwords, got %d", l.Len())
	}
}

func TestAllSorted(t *testing.T) {
	l := New("test", []string{"zebra", "apple", "mango", "apple"})

	all := l.All()
	want := []string{"apple", "mango", "zebra"}
	if len(all) != len(want) {
		t.Fatalf("Expected %d stopwords, got %d", len(want), len(all))
	}
	for i := range want {
		if all[i] != want[i] {
			t.Errorf("All()[%d] = %q, want %q", i, all[i], want[i])
		}
	}
}

func TestParseRequiresVersion(t *testing.T) {
	if _, err := Parse([]byte("terms:\n  - the\n")); err == nil {
		t.Error("Parse should reject a list without version")
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := Parse([]byte("terms: [unclosed\n")); err == nil {
		t.Error("Parse should reject malformed YAML")
	}
}

func TestParseValid(t *testing.T) {
	l, err := Parse([]byte("version: \"v1\"\nterms:\n  - the\n  - of\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if l.Version() != "v1" {
		t.Errorf("Version() = %q, want v1", l.Version())
	}
	if !l.IsStop("of") {
		t.Error("'of' should be a stopword")
	}
}
