package docs

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

// RustDoc is the decoded, deduplicated and ordered set of documentation
// entries. It is immutable once built.
type RustDoc struct {
	items []DocItem
}

// NewRustDoc merges the given item lists into a sorted set.
func NewRustDoc(lists ...[]DocItem) *RustDoc {
	var n int
	for _, l := range lists {
		n += len(l)
	}
	items := make([]DocItem, 0, n)
	for _, l := range lists {
		items = append(items, l...)
	}
	slices.SortFunc(items, DocItem.Compare)
	items = slices.CompactFunc(items, func(a, b DocItem) bool { return a.Compare(b) == 0 })
	return &RustDoc{items: slices.Clip(items)}
}

func (r *RustDoc) Len() int {
	return len(r.items)
}

// Items returns the entries in order. The slice must not be modified.
func (r *RustDoc) Items() []DocItem {
	return r.items
}

func (r *RustDoc) All() iter.Seq[DocItem] {
	return slices.Values(r.items)
}

// DecodePackage expands one package of the search index into doc items.
// Items are processed in their original order since an empty path means the
// item shares the path of the one before it.
func DecodePackage(pkg string, idx SearchIndex) ([]DocItem, error) {
	items := make([]DocItem, 0, len(idx.Items))
	lastPath := ""

	for i, item := range idx.Items {
		if item.Path != "" {
			lastPath = item.Path
		}

		var parent *TypeItem
		if item.ParentIdx != nil {
			p := *item.ParentIdx
			if p < 0 || p >= len(idx.Paths) {
				return nil, &DecodeError{
					Kind:    ParentIndexOutOfRange,
					Package: pkg,
					Item:    i,
					Err:     fmt.Errorf("parent index %d out of range (%d paths)", p, len(idx.Paths)),
				}
			}
			entry := idx.Paths[p]
			t := NewTypeItem(entry.Ty, entry.Name)
			parent = &t
		}

		items = append(items, DocItem{
			Name:   NewTypeItem(item.Ty, item.Name),
			Parent: parent,
			Path:   lastPath,
			Desc:   item.Desc,
		})
	}
	return items, nil
}

// Decode decodes every package and merges the result. If any package fails,
// no RustDoc is returned and the failures are joined in package name order.
func Decode(indices map[string]SearchIndex) (*RustDoc, error) {
	names := slices.Sorted(maps.Keys(indices))
	lists := make([][]DocItem, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			lists[i], errs[i] = DecodePackage(name, indices[name])
			return errs[i]
		})
	}
	// Wait reports only the first failure; errs keeps all of them.
	if err := g.Wait(); err != nil {
		return nil, errors.Join(errs...)
	}
	return NewRustDoc(lists...), nil
}

// DecodeEach is the lenient form of Decode: a package that fails is reported
// to onError and left out, the others are kept.
func DecodeEach(indices map[string]SearchIndex, onError func(pkg string, err error)) *RustDoc {
	var lists [][]DocItem
	for _, name := range slices.Sorted(maps.Keys(indices)) {
		items, err := DecodePackage(name, indices[name])
		if err != nil {
			if onError != nil {
				onError(name, err)
			}
			continue
		}
		lists = append(lists, items)
	}
	return NewRustDoc(lists...)
}
