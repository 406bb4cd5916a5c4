package daemon

import (
	"context"
	"fmt"
	"iter"
	"log"
	"maps"
	"slices"
	"time"

	"github.com/jcdickinson/rsdocseek/internal/automaton"
	"github.com/jcdickinson/rsdocseek/internal/docs"
	md "github.com/jcdickinson/rsdocseek/internal/markdown"
	"github.com/jcdickinson/rsdocseek/internal/rpc"
	"github.com/jcdickinson/rsdocseek/internal/searchindex"
	"github.com/jcdickinson/rsdocseek/internal/seeker"
	"github.com/jcdickinson/rsdocseek/internal/source"
)

// Index is a loaded, searchable search-index payload.
type Index struct {
	Name     string
	Source   string
	Seeker   *seeker.Seeker
	Packages int
	Skipped  []string
	LoadedAt time.Time
}

func (ix *Index) status() rpc.IndexStatus {
	return rpc.IndexStatus{
		Name:     ix.Name,
		Source:   ix.Source,
		Packages: ix.Packages,
		Items:    ix.Seeker.Len(),
		Keys:     ix.Seeker.NumKeys(),
		LoadedAt: ix.LoadedAt.Format(time.RFC3339),
		Cached:   source.IsRemote(ix.Source) && source.HasCache(ix.Source),
	}
}

// LoadOptions control how a payload is read and decoded.
type LoadOptions struct {
	SkipInvalid bool
	Source      source.Options
}

// LoadIndex reads the payload at location and builds a searchable index
// from it. With SkipInvalid, packages that fail to parse or decode are
// recorded in Skipped instead of failing the load.
func LoadIndex(ctx context.Context, name, location string, opts LoadOptions, progress func(string)) (*Index, error) {
	if progress == nil {
		progress = func(string) {}
	}

	progress(fmt.Sprintf("reading %s", location))
	data, err := source.Read(ctx, location, opts.Source)
	if err != nil {
		return nil, err
	}

	progress(fmt.Sprintf("parsing search index for %s (%d bytes)", name, len(data)))
	ix := &Index{Name: name, Source: location}
	var pkgs map[string]docs.SearchIndex
	if opts.SkipInvalid {
		var bad map[string]error
		pkgs, bad, err = searchindex.ParseLenient(data)
		if err != nil {
			return nil, fmt.Errorf("parsing search index: %w", err)
		}
		for _, pkg := range slices.Sorted(maps.Keys(bad)) {
			log.Printf("daemon: %s: skipping package: %v", name, bad[pkg])
			ix.Skipped = append(ix.Skipped, pkg)
		}
	} else if pkgs, err = searchindex.Parse(data); err != nil {
		return nil, fmt.Errorf("parsing search index: %w", err)
	}

	progress(fmt.Sprintf("decoding %d packages", len(pkgs)))
	var rd *docs.RustDoc
	if opts.SkipInvalid {
		rd = docs.DecodeEach(pkgs, func(pkg string, err error) {
			log.Printf("daemon: %s: skipping package: %v", name, err)
			ix.Skipped = append(ix.Skipped, pkg)
		})
		slices.Sort(ix.Skipped)
	} else if rd, err = docs.Decode(pkgs); err != nil {
		return nil, err
	}
	ix.Packages = len(pkgs) - countDecodeSkips(pkgs, ix.Skipped)

	progress(fmt.Sprintf("building index over %d items", rd.Len()))
	if ix.Seeker, err = seeker.Build(rd); err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	ix.LoadedAt = time.Now()
	return ix, nil
}

// countDecodeSkips counts skipped names that made it past parsing.
func countDecodeSkips(pkgs map[string]docs.SearchIndex, skipped []string) int {
	n := 0
	for _, name := range skipped {
		if _, ok := pkgs[name]; ok {
			n++
		}
	}
	return n
}

// KindFilter parses kind names into a set. An empty list matches every kind.
func KindFilter(names []string) (map[docs.EntityKind]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	set := make(map[docs.EntityKind]bool, len(names))
	for _, n := range names {
		k, ok := docs.ParseKind(n)
		if !ok {
			return nil, fmt.Errorf("unknown kind %q", n)
		}
		set[k] = true
	}
	return set, nil
}

// Collect runs a over ix and converts up to limit matches of the given
// kinds into results. It reports whether more matches were available.
func Collect(ix *Index, a automaton.Automaton, kinds map[docs.EntityKind]bool, limit int) ([]rpc.DocResult, bool) {
	return collect(ix.Name, ix.Seeker.Search(a), kinds, limit)
}

func collect(name string, items iter.Seq[docs.DocItem], kinds map[docs.EntityKind]bool, limit int) ([]rpc.DocResult, bool) {
	var out []rpc.DocResult
	for item := range items {
		if kinds != nil && !kinds[item.Name.Kind] {
			continue
		}
		if limit > 0 && len(out) == limit {
			return out, true
		}
		out = append(out, ToResult(name, item))
	}
	return out, false
}

// HasMatch reports whether a matches any item of the given kinds in ix.
func HasMatch(ix *Index, a automaton.Automaton, kinds map[docs.EntityKind]bool) bool {
	for item := range ix.Seeker.Search(a) {
		if kinds == nil || kinds[item.Name.Kind] {
			return true
		}
	}
	return false
}

// ToResult converts a doc item into its wire form.
func ToResult(index string, item docs.DocItem) rpc.DocResult {
	r := rpc.DocResult{
		Index: index,
		Name:  item.Name.Name,
		Kind:  item.Name.Kind.String(),
		Path:  item.Path,
		Desc:  md.PlainText(item.Desc),
		URL:   item.URL(),
	}
	if item.Parent != nil {
		r.Parent = item.Parent.Name
		r.ParentKind = item.Parent.Kind.String()
	}
	return r
}
