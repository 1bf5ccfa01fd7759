package engine

import (
	"strings"
	"unicode"
)

// SentimentScorer produces a lexical sentiment score in (-1, 1). The
// pipeline does not depend on any particular model; this interface is the
// seam where a trained scorer would plug in.
type SentimentScorer interface {
	Score(text string) float64
}

// LexicalScorer is the deterministic keyword scorer. Crisis vocabulary is
// weighted three times as strongly negative as plain negative vocabulary;
// an input with no matches in any set scores exactly 0.
type LexicalScorer struct {
	positive map[string]bool
	negative map[string]bool
	crisis   map[string]bool
}

// NewLexicalScorer builds the scorer with the fixed keyword sets.
func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{
		positive: wordSet(
			"good", "great", "happy", "hopeful", "better", "wonderful",
			"love", "grateful", "calm", "peaceful", "proud", "excited",
			"joy", "safe", "supported", "improving", "thankful",
		),
		negative: wordSet(
			"sad", "angry", "hopeless", "worthless", "terrible", "awful",
			"hate", "lonely", "miserable", "anxious", "scared", "exhausted",
			"empty", "numb", "guilty", "ashamed", "trapped",
		),
		crisis: wordSet(
			"kill", "suicide", "suicidal", "die", "dying", "death",
			"overdose", "cut", "cutting", "harm", "disappear",
		),
	}
}

const crisisWeight = 3

// Score tokenizes the text and returns the weighted normalized balance of
// positive against negative and crisis vocabulary.
func (s *LexicalScorer) Score(text string) float64 {
	var pos, neg, crisis int
	for _, tok := range tokenize(text) {
		switch {
		case s.crisis[tok]:
			crisis++
		case s.negative[tok]:
			neg++
		case s.positive[tok]:
			pos++
		}
	}

	total := pos + neg + crisisWeight*crisis
	if total == 0 {
		return 0
	}
	weighted := pos - neg - crisisWeight*crisis
	// The +1 keeps the score strictly inside (-1, 1).
	return float64(weighted) / float64(total+1)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
