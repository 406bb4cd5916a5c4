package automaton

import (
	"fmt"
	"sync"

	"github.com/blevesearch/vellum/levenshtein"
	"github.com/blevesearch/vellum/regexp"
)

// MaxEditDistance is the largest distance Levenshtein accepts. Building the
// parametric automaton grows exponentially with the distance.
const MaxEditDistance = 4

// Regex compiles pattern into an acceptor matching whole keys. Zero-width
// assertions, word boundaries and lazy quantifiers are rejected.
func Regex(pattern string) (Automaton, error) {
	re, err := regexp.New(pattern)
	if err != nil {
		return nil, &PatternError{Pattern: pattern, Err: err}
	}
	return re, nil
}

var (
	levMu       sync.Mutex
	levBuilders = make(map[int]*levenshtein.LevenshteinAutomatonBuilder)
)

func levenshteinBuilder(distance int) (*levenshtein.LevenshteinAutomatonBuilder, error) {
	levMu.Lock()
	defer levMu.Unlock()
	if lb, ok := levBuilders[distance]; ok {
		return lb, nil
	}
	lb, err := levenshtein.NewLevenshteinAutomatonBuilder(uint8(distance), false)
	if err != nil {
		return nil, err
	}
	levBuilders[distance] = lb
	return lb, nil
}

// Levenshtein accepts keys within maxDistance insertions, deletions or
// substitutions of text.
func Levenshtein(text string, maxDistance int) (Automaton, error) {
	if maxDistance < 0 || maxDistance > MaxEditDistance {
		return nil, &PatternError{
			Pattern: text,
			Err:     fmt.Errorf("%w: %d (allowed 0..%d)", ErrInvalidDistance, maxDistance, MaxEditDistance),
		}
	}
	lb, err := levenshteinBuilder(maxDistance)
	if err != nil {
		return nil, &PatternError{Pattern: text, Err: fmt.Errorf("building levenshtein automaton: %w", err)}
	}
	dfa, err := lb.BuildDfa(text, uint8(maxDistance))
	if err != nil {
		return nil, &PatternError{Pattern: text, Err: err}
	}
	return dfa, nil
}
