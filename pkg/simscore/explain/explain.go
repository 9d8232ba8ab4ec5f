package explain

import (
	"sort"
	"strings"
)

const (
	MaxKeywords   = 10
	MaxPhrases    = 5
	PhraseWindow  = 5
	PhraseMinHits = 4
)

// Tier buckets a similarity score for the narrative.
type Tier string

const (
	TierMinor    Tier = "minor"
	TierModerate Tier = "moderate"
	TierHigh     Tier = "high"
)

// Tier thresholds on the 0..100 score.
const (
	ModerateFrom = 20
	HighFrom     = 50
)

// TierFor maps a score to its tier.
func TierFor(score int) Tier {
	switch {
	case score >= HighFrom:
		return TierHigh
	case score >= ModerateFrom:
		return TierModerate
	default:
		return TierMinor
	}
}

var narratives = map[Tier]string{
	TierMinor:    "Minor overlap detected. Shared words are likely common terminology for this assignment.",
	TierModerate: "Moderate similarity detected. Some phrases and keywords overlap partially with a prior submission.",
	TierHigh:     "High similarity detected. The submission shares substantial structural and vocabulary overlap with a prior submission.",
}

// Note is attached to every explanation.
const Note = "Similarity is computed with a vector-space (cosine) model over word frequencies; " +
	"it is not exact-copy detection and should be reviewed by the instructor."

// Explanation is the human-readable rationale for a similarity score.
type Explanation struct {
	SimilarityScore     int      `json:"similarityScore"`
	Tier                Tier     `json:"tier"`
	ExplanationText     string   `json:"explanationText"`
	CommonWordCount     int      `json:"commonWordCount"`
	MatchedKeywords     []string `json:"matchedKeywords"`
	MatchedPhrases      []string `json:"matchedPhrases"`
	MatchedSubmissionID *string  `json:"matchedSubmissionId"`
	Note                string   `json:"note"`
}

// Builder derives explanations. It is stateless.
type Builder struct{}

// New creates a new explanation builder
func New() *Builder {
	return &Builder{}
}

// Build explains score for the new token sequence against the matched
// submission's tokens. An empty matchedID or matchedTokens means there was
// no prior match.
func (b *Builder) Build(newTokens, matchedTokens []string, score int, matchedID string) Explanation {
	if len(matchedTokens) == 0 {
		score = 0
	}
	tier := TierFor(score)
	exp := Explanation{
		SimilarityScore: score,
		Tier:            tier,
		ExplanationText: narratives[tier],
		MatchedKeywords: []string{},
		MatchedPhrases:  []string{},
		Note:            Note,
	}
	if matchedID != "" && len(matchedTokens) > 0 {
		id := matchedID
		exp.MatchedSubmissionID = &id
	}
	if len(matchedTokens) == 0 {
		return exp
	}

	matched := make(map[string]struct{}, len(matchedTokens))
	for _, t := range matchedTokens {
		matched[t] = struct{}{}
	}

	keywords := sharedByFrequency(newTokens, matched)
	exp.CommonWordCount = len(keywords)
	if len(keywords) > MaxKeywords {
		keywords = keywords[:MaxKeywords]
	}
	exp.MatchedKeywords = keywords
	exp.MatchedPhrases = phrases(newTokens, matched)
	return exp
}

// sharedByFrequency returns the distinct tokens of seq found in matched,
// most frequent in seq first, ties in order of first occurrence.
func sharedByFrequency(seq []string, matched map[string]struct{}) []string {
	counts := make(map[string]int)
	var order []string
	for _, t := range seq {
		if _, ok := matched[t]; !ok {
			continue
		}
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if order == nil {
		return []string{}
	}
	return order
}

// phrases slides a PhraseWindow-token window over seq and keeps windows in
// which at least PhraseMinHits tokens occur in matched.
func phrases(seq []string, matched map[string]struct{}) []string {
	out := []string{}
	if len(seq) < PhraseWindow {
		return out
	}
	seen := make(map[string]struct{})
	for i := 0; i+PhraseWindow <= len(seq) && len(out) < MaxPhrases; i++ {
		window := seq[i : i+PhraseWindow]
		hits := 0
		for _, t := range window {
			if _, ok := matched[t]; ok {
				hits++
			}
		}
		if hits < PhraseMinHits {
			continue
		}
		phrase := strings.Join(window, " ")
		if _, dup := seen[phrase]; dup {
			continue
		}
		seen[phrase] = struct{}{}
		out = append(out, phrase)
	}
	return out
}
