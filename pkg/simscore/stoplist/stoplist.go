package stoplist

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed english.yaml
var englishYAML []byte

// List is an immutable stop-word set. Two token sequences are only
// comparable when they were normalized with the same list version.
type List struct {
	version string
	stops   map[string]struct{}
}

type listFile struct {
	Version string   `yaml:"version"`
	Terms   []string `yaml:"terms"`
}

// Default returns the English stop list shipped with the module.
func Default() *List {
	l, err := Parse(englishYAML)
	if err != nil {
		panic(fmt.Sprintf("stoplist: embedded list is invalid: %v", err))
	}
	return l
}

// Parse decodes a stop list in the `version`/`terms` YAML layout.
func Parse(data []byte) (*List, error) {
	var f listFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode stop list: %w", err)
	}
	if strings.TrimSpace(f.Version) == "" {
		return nil, fmt.Errorf("stop list version is required")
	}
	return New(f.Version, f.Terms), nil
}

// New builds a list from terms. Terms are lowercased and trimmed.
func New(version string, terms []string) *List {
	stops := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		stops[t] = struct{}{}
	}
	return &List{version: version, stops: stops}
}

// IsStop checks if a token is a stopword
func (l *List) IsStop(token string) bool {
	_, ok := l.stops[token]
	return ok
}

// Version identifies the list contents.
func (l *List) Version() string {
	return l.version
}

// Len returns the number of distinct stop words.
func (l *List) Len() int {
	return len(l.stops)
}

// All returns all stopwords, sorted
func (l *List) All() []string {
	result := make([]string, 0, len(l.stops))
	for s := range l.stops {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}
