package docs

import (
	"cmp"
	"strings"
)

// SearchIndex is one package's entry in a rustdoc search index.
type SearchIndex struct {
	Doc   string        `mapstructure:"doc"`
	Items []IndexItem   `mapstructure:"i"`
	Paths []ParentEntry `mapstructure:"p"`
}

// IndexItem is a single item as it appears in the search index. An empty
// Path means "same path as the previous item of this package".
type IndexItem struct {
	Ty         uint32 `mapstructure:"ty"`
	Name       string `mapstructure:"name"`
	Path       string `mapstructure:"path"`
	Desc       string `mapstructure:"desc"`
	ParentIdx  *int   `mapstructure:"parent_idx"` // index into SearchIndex.Paths
	SearchType any    `mapstructure:"search_type"`
}

// ParentEntry is an element of SearchIndex.Paths.
type ParentEntry struct {
	Ty   uint32 `mapstructure:"ty"`
	Name string `mapstructure:"name"`
}

// TypeItem is a name tagged with its kind.
type TypeItem struct {
	Kind EntityKind
	Name string
}

func NewTypeItem(code uint32, name string) TypeItem {
	return TypeItem{Kind: KindFromCode(code), Name: name}
}

// Compare orders by name, then kind.
func (t TypeItem) Compare(o TypeItem) int {
	if c := strings.Compare(t.Name, o.Name); c != 0 {
		return c
	}
	return cmp.Compare(t.Kind, o.Kind)
}

func (t TypeItem) String() string {
	return t.Kind.String() + " " + t.Name
}

// DocItem is one searchable documentation entry.
type DocItem struct {
	Name   TypeItem
	Parent *TypeItem
	Path   string
	Desc   string
}

// Key returns the string the item is indexed under.
func (d DocItem) Key() string {
	return d.Name.Name
}

// Compare orders by (Name, Parent, Path, Desc). An item without a parent
// sorts before any item with one. Two items comparing equal are the same entry.
func (d DocItem) Compare(o DocItem) int {
	if c := d.Name.Compare(o.Name); c != 0 {
		return c
	}
	switch {
	case d.Parent == nil && o.Parent != nil:
		return -1
	case d.Parent != nil && o.Parent == nil:
		return 1
	case d.Parent != nil:
		if c := d.Parent.Compare(*o.Parent); c != 0 {
			return c
		}
	}
	if c := strings.Compare(d.Path, o.Path); c != 0 {
		return c
	}
	return strings.Compare(d.Desc, o.Desc)
}

// String renders the fully qualified path, e.g. "tokio::task::JoinHandle::abort".
func (d DocItem) String() string {
	var b strings.Builder
	b.WriteString(d.Path)
	if d.Parent != nil {
		b.WriteString("::")
		b.WriteString(d.Parent.Name)
	}
	b.WriteString("::")
	b.WriteString(d.Name.Name)
	return b.String()
}

// URL returns the rustdoc page of the item relative to the documentation root.
func (d DocItem) URL() string {
	dir := strings.ReplaceAll(d.Path, "::", "/")
	if d.Parent != nil {
		return dir + "/" + d.Parent.Kind.String() + "." + d.Parent.Name + ".html#" +
			d.Name.Kind.String() + "." + d.Name.Name
	}
	if d.Name.Kind == KindModule {
		return dir + "/" + d.Name.Name + "/index.html"
	}
	return dir + "/" + d.Name.Kind.String() + "." + d.Name.Name + ".html"
}
