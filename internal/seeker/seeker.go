// Package seeker builds a searchable index over decoded documentation and
// answers acceptor-driven queries against it.
package seeker

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/blevesearch/vellum"
	"github.com/jcdickinson/rsdocseek/internal/automaton"
	"github.com/jcdickinson/rsdocseek/internal/docs"
)

// Seeker is an immutable index from item names to doc items. It is safe for
// concurrent searches.
type Seeker struct {
	fst    *vellum.FST
	docs   []docs.DocItem
	keys   []string
	groups [][]int // group number (the FST value) -> handles into docs
}

// Build indexes rd by item name. Names are inserted into the FST in byte
// order; items sharing a name keep the DocItem order among themselves.
func Build(rd *docs.RustDoc) (*Seeker, error) {
	items := rd.Items()
	s := &Seeker{docs: items}

	// RustDoc is sorted by name first, so equal keys are adjacent.
	for h, item := range items {
		k := item.Key()
		if n := len(s.keys); n > 0 && s.keys[n-1] == k {
			s.groups[n-1] = append(s.groups[n-1], h)
			continue
		}
		s.keys = append(s.keys, k)
		s.groups = append(s.groups, []int{h})
	}

	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, fmt.Errorf("creating fst builder: %w", err)
	}
	for g, k := range s.keys {
		if err := builder.Insert([]byte(k), uint64(g)); err != nil {
			return nil, fmt.Errorf("inserting key %q: %w", k, err)
		}
	}
	if err := builder.Close(); err != nil {
		return nil, fmt.Errorf("closing fst builder: %w", err)
	}

	s.fst, err = vellum.Load(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("loading fst: %w", err)
	}
	return s, nil
}

// Len returns the number of indexed doc items.
func (s *Seeker) Len() int {
	return len(s.docs)
}

// NumKeys returns the number of distinct names.
func (s *Seeker) NumKeys() int {
	return len(s.keys)
}

// Keys yields the distinct names in byte order.
func (s *Seeker) Keys() iter.Seq[string] {
	return slices.Values(s.keys)
}

// Handles returns the handles stored under key, in DocItem order.
func (s *Seeker) Handles(key string) []int {
	g, ok, err := s.fst.Get([]byte(key))
	if err != nil || !ok {
		return nil
	}
	return slices.Clone(s.groups[g])
}

// Doc returns the item behind a handle.
func (s *Seeker) Doc(handle int) docs.DocItem {
	return s.docs[handle]
}

// Search walks the FST together with a, skipping every branch on which a is
// dead. Matching items are produced lazily, ordered by key and then by
// DocItem order. Stopping the iteration early does no further work.
func (s *Seeker) Search(a automaton.Automaton) iter.Seq[docs.DocItem] {
	return func(yield func(docs.DocItem) bool) {
		if len(s.keys) == 0 {
			return
		}
		it, err := s.fst.Search(a, nil, nil)
		if it != nil {
			defer it.Close()
		}
		for err == nil {
			_, g := it.Current()
			for _, h := range s.groups[g] {
				if !yield(s.Doc(h)) {
					return
				}
			}
			err = it.Next()
		}
		if !errors.Is(err, vellum.ErrIteratorDone) {
			slog.Error("fst search failed", "error", err)
		}
	}
}

// SearchPrefix yields items whose name starts with text.
func (s *Seeker) SearchPrefix(text string) iter.Seq[docs.DocItem] {
	return s.Search(automaton.Prefix(text))
}

// SearchExact yields items named exactly text.
func (s *Seeker) SearchExact(text string) iter.Seq[docs.DocItem] {
	return s.Search(automaton.Exact(text))
}

// SearchSubsequence yields items whose name contains text as a subsequence.
func (s *Seeker) SearchSubsequence(text string) iter.Seq[docs.DocItem] {
	return s.Search(automaton.Subsequence(text))
}

// SearchRegex yields items whose whole name matches pattern.
func (s *Seeker) SearchRegex(pattern string) (iter.Seq[docs.DocItem], error) {
	a, err := automaton.Regex(pattern)
	if err != nil {
		return nil, err
	}
	return s.Search(a), nil
}

// SearchEditDistance yields items whose name is within maxDistance edits of text.
func (s *Seeker) SearchEditDistance(text string, maxDistance int) (iter.Seq[docs.DocItem], error) {
	a, err := automaton.Levenshtein(text, maxDistance)
	if err != nil {
		return nil, err
	}
	return s.Search(a), nil
}
