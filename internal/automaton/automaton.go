// Package automaton provides byte-level finite state acceptors used to walk
// the sorted key space of a search index.
//
// Every acceptor satisfies Automaton, which has the same method set as
// vellum.Automaton, so the regexp and levenshtein automata of vellum plug in
// directly and the acceptors here can drive a vellum FST.
package automaton

import (
	"errors"
	"fmt"
	"sync"
)

// Automaton is a deterministic acceptor over bytes. A state for which
// CanMatch is false is dead: no extension of the input can match.
type Automaton interface {
	Start() int
	IsMatch(int) bool
	CanMatch(int) bool
	WillAlwaysMatch(int) bool
	Accept(int, byte) int
}

// ErrInvalidDistance is wrapped by the PatternError returned for an edit
// distance outside [0, MaxEditDistance].
var ErrInvalidDistance = errors.New("invalid edit distance")

// PatternError reports acceptor parameters that could not be compiled.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Matches runs a over key and reports whether it ends in a matching state.
func Matches(a Automaton, key string) bool {
	s := a.Start()
	for i := 0; i < len(key); i++ {
		if !a.CanMatch(s) {
			return false
		}
		if a.WillAlwaysMatch(s) {
			return true
		}
		s = a.Accept(s, key[i])
	}
	return a.IsMatch(s)
}

// interner hands out dense int ids for composite states. Combinators share
// it between concurrent searches; lookups of states already seen only take
// the read lock.
type interner[K comparable] struct {
	mu   sync.RWMutex
	ids  map[K]int
	keys []K
}

func (in *interner[K]) id(k K) int {
	in.mu.RLock()
	id, ok := in.ids[k]
	in.mu.RUnlock()
	if ok {
		return id
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.ids[k]; ok {
		return id
	}
	if in.ids == nil {
		in.ids = make(map[K]int)
	}
	id = len(in.keys)
	in.ids[k] = id
	in.keys = append(in.keys, k)
	return id
}

func (in *interner[K]) get(id int) K {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.keys[id]
}
