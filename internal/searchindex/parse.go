// Package searchindex turns a rustdoc search-index payload into per-package
// docs.SearchIndex values.
package searchindex

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/jcdickinson/rsdocseek/internal/docs"
	"github.com/mitchellh/mapstructure"
)

// Parse decodes every package in data. Any malformed package fails the call;
// the returned error joins one *docs.DecodeError per bad package.
func Parse(data []byte) (map[string]docs.SearchIndex, error) {
	out, bad, err := ParseLenient(data)
	if err != nil {
		return nil, err
	}
	if len(bad) > 0 {
		errs := make([]error, 0, len(bad))
		for _, name := range slices.Sorted(maps.Keys(bad)) {
			errs = append(errs, bad[name])
		}
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// ParseLenient decodes what it can. Packages that fail to decode are
// reported in the second map instead of failing the call. The error is
// non-nil only when the payload as a whole cannot be read.
func ParseLenient(data []byte) (map[string]docs.SearchIndex, map[string]error, error) {
	raw, err := rawPackages(data)
	if err != nil {
		return nil, nil, err
	}
	out := make(map[string]docs.SearchIndex, len(raw))
	bad := make(map[string]error)
	for name, v := range raw {
		idx, err := decodePackage(v)
		if err != nil {
			bad[name] = docs.Malformed(name, err)
			continue
		}
		out[name] = idx
	}
	return out, bad, nil
}

// rawPackages returns the untyped package table from either encoding.
func rawPackages(data []byte) (map[string]any, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	var root any
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		v, err := decodeJSON(trimmed)
		if err != nil {
			return nil, docs.Malformed("", err)
		}
		root = v
	} else {
		env, err := evalScript(data)
		if err != nil {
			return nil, docs.Malformed("", fmt.Errorf("evaluating script: %w", err))
		}
		v, ok := env["searchIndex"]
		if !ok {
			return nil, docs.Malformed("", errors.New("script does not define searchIndex"))
		}
		root = v
	}
	pkgs, ok := root.(map[string]any)
	if !ok {
		return nil, docs.Malformed("", fmt.Errorf("search index is %T, want an object", root))
	}
	return pkgs, nil
}

func decodePackage(v any) (docs.SearchIndex, error) {
	var idx docs.SearchIndex
	if v == nil {
		return idx, errors.New("package entry is null")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  tupleHook,
		ErrorUnset:  true,
		ErrorUnused: false,
		Result:      &idx,
	})
	if err != nil {
		return idx, err
	}
	if err := dec.Decode(v); err != nil {
		return docs.SearchIndex{}, err
	}
	return idx, nil
}

var (
	searchIndexType = reflect.TypeOf(docs.SearchIndex{})
	indexItemType   = reflect.TypeOf(docs.IndexItem{})
	parentEntryType = reflect.TypeOf(docs.ParentEntry{})
)

// tupleHook rewrites the positional array form of items and parents into
// keyed maps, and fills in the keys that may legitimately be absent so that
// ErrorUnset only fires for required fields. mapstructure leaves a field
// untouched when its value is null, so required fields are checked for null
// here, while the whole item is still in view.
func tupleHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	switch to {
	case indexItemType:
		var m map[string]any
		switch d := data.(type) {
		case []any:
			if len(d) < 4 {
				return nil, fmt.Errorf("item tuple has %d fields, want at least 4", len(d))
			}
			m = map[string]any{"ty": d[0], "name": d[1], "path": d[2], "desc": d[3], "parent_idx": nil, "search_type": nil}
			if len(d) > 4 {
				m["parent_idx"] = d[4]
			}
			if len(d) > 5 {
				m["search_type"] = d[5]
			}
		case map[string]any:
			m = withDefaults(d, nil, "parent_idx", "search_type")
		default:
			return data, nil
		}
		return m, notNull(m, "ty", "name", "path", "desc")
	case parentEntryType:
		if d, ok := data.([]any); ok {
			if len(d) < 2 {
				return nil, fmt.Errorf("parent tuple has %d fields, want 2", len(d))
			}
			data = map[string]any{"ty": d[0], "name": d[1]}
		}
		if m, ok := data.(map[string]any); ok {
			return m, notNull(m, "ty", "name")
		}
	case searchIndexType:
		if d, ok := data.(map[string]any); ok {
			m := withDefaults(d, "", "doc")
			if err := notNull(m, "doc", "i", "p"); err != nil {
				return nil, err
			}
			for _, key := range []string{"i", "p"} {
				if list, ok := m[key].([]any); ok {
					if i := slices.IndexFunc(list, func(v any) bool { return v == nil }); i >= 0 {
						return nil, fmt.Errorf("%s[%d] is null", key, i)
					}
				}
			}
			return m, nil
		}
	}
	return data, nil
}

// notNull fails if any of keys is present with a null value. Absent keys are
// left to ErrorUnset.
func notNull(m map[string]any, keys ...string) error {
	for _, k := range keys {
		if v, ok := m[k]; ok && v == nil {
			return fmt.Errorf("field %q is null", k)
		}
	}
	return nil
}

func withDefaults(m map[string]any, def any, keys ...string) map[string]any {
	out := maps.Clone(m)
	for _, k := range keys {
		if _, ok := out[k]; !ok {
			out[k] = def
		}
	}
	return out
}
