package query

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jcdickinson/rsdocseek/internal/automaton"
)

type cacheKey struct {
	expr, mode string
}

// Compiler memoizes compiled expressions. Compiled automata are safe to
// share between concurrent searches.
type Compiler struct {
	cache *lru.Cache[cacheKey, automaton.Automaton]
}

func NewCompiler(size int) (*Compiler, error) {
	cache, err := lru.New[cacheKey, automaton.Automaton](size)
	if err != nil {
		return nil, fmt.Errorf("creating query cache: %w", err)
	}
	return &Compiler{cache: cache}, nil
}

func (c *Compiler) Compile(expr, defaultMode string) (automaton.Automaton, error) {
	key := cacheKey{expr, defaultMode}
	if a, ok := c.cache.Get(key); ok {
		return a, nil
	}
	a, err := Compile(expr, defaultMode)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, a)
	return a, nil
}

// Len returns the number of cached expressions.
func (c *Compiler) Len() int {
	return c.cache.Len()
}
