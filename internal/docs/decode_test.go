package docs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idx(i int) *int { return &i }

func paths(items []DocItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Path
	}
	return out
}

func TestDecodePackage_PathInheritance(t *testing.T) {
	t.Parallel()
	in := SearchIndex{Items: []IndexItem{
		{Ty: 5, Name: "a", Path: "pkg::a"},
		{Ty: 5, Name: "b"},
		{Ty: 5, Name: "c"},
		{Ty: 5, Name: "d", Path: "pkg::b"},
		{Ty: 5, Name: "e"},
	}}

	items, err := DecodePackage("pkg", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg::a", "pkg::a", "pkg::a", "pkg::b", "pkg::b"}, paths(items))
}

func TestDecode_PathDoesNotLeakAcrossPackages(t *testing.T) {
	t.Parallel()
	rd, err := Decode(map[string]SearchIndex{
		"first":  {Items: []IndexItem{{Ty: 5, Name: "x", Path: "first"}}},
		"second": {Items: []IndexItem{{Ty: 5, Name: "y"}}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, rd.Len())

	for _, it := range rd.Items() {
		if it.Name.Name == "y" {
			assert.Empty(t, it.Path)
		}
	}
}

func TestDecodePackage_Dedup(t *testing.T) {
	t.Parallel()
	dup := IndexItem{Ty: 5, Name: "spawn", Path: "tokio", Desc: "Spawns a task."}
	items, err := DecodePackage("tokio", SearchIndex{Items: []IndexItem{dup, dup}})
	require.NoError(t, err)

	rd := NewRustDoc(items)
	assert.Equal(t, 1, rd.Len())
}

func TestDecodePackage_ParentResolution(t *testing.T) {
	t.Parallel()
	in := SearchIndex{
		Items: []IndexItem{{Ty: 10, Name: "poll", Path: "std::future", ParentIdx: idx(1)}},
		Paths: []ParentEntry{{Ty: 3, Name: "Ready"}, {Ty: 8, Name: "Future"}},
	}

	items, err := DecodePackage("std", in)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Parent)
	assert.Equal(t, TypeItem{Kind: KindTrait, Name: "Future"}, *items[0].Parent)
	assert.Equal(t, KindTyMethod, items[0].Name.Kind)
}

func TestDecodePackage_ParentOutOfRange(t *testing.T) {
	t.Parallel()
	for _, p := range []int{2, 10, -1} {
		in := SearchIndex{
			Items: []IndexItem{{Ty: 5, Name: "ok", Path: "p"}, {Ty: 11, Name: "bad", ParentIdx: idx(p)}},
			Paths: []ParentEntry{{Ty: 3, Name: "A"}, {Ty: 3, Name: "B"}},
		}
		_, err := DecodePackage("broken", in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParentIndexOutOfRange))
		assert.False(t, errors.Is(err, ErrMalformedInput))

		var de *DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "broken", de.Package)
		assert.Equal(t, 1, de.Item)
		assert.Contains(t, err.Error(), `"broken"`)
	}
}

func TestDecodePackage_Empty(t *testing.T) {
	t.Parallel()
	items, err := DecodePackage("empty", SearchIndex{Doc: "nothing here"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDecode_FailsWholeCall(t *testing.T) {
	t.Parallel()
	rd, err := Decode(map[string]SearchIndex{
		"good": {Items: []IndexItem{{Ty: 5, Name: "f", Path: "good"}}},
		"bad":  {Items: []IndexItem{{Ty: 5, Name: "g", Path: "bad", ParentIdx: idx(0)}}},
	})
	require.Error(t, err)
	assert.Nil(t, rd)
	assert.ErrorIs(t, err, ErrParentIndexOutOfRange)
}

func TestDecode_JoinsEveryFailure(t *testing.T) {
	t.Parallel()
	_, err := Decode(map[string]SearchIndex{
		"zeta":  {Items: []IndexItem{{Ty: 5, Name: "g", Path: "zeta", ParentIdx: idx(1)}}},
		"good":  {Items: []IndexItem{{Ty: 5, Name: "f", Path: "good"}}},
		"alpha": {Items: []IndexItem{{Ty: 5, Name: "h", Path: "alpha", ParentIdx: idx(2)}}},
	})
	require.Error(t, err)

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	var pkgs []string
	for _, e := range joined.Unwrap() {
		var de *DecodeError
		require.True(t, errors.As(e, &de))
		pkgs = append(pkgs, de.Package)
	}
	assert.Equal(t, []string{"alpha", "zeta"}, pkgs)
}

func TestDecodeEach_SkipsBadPackage(t *testing.T) {
	t.Parallel()
	var failed []string
	rd := DecodeEach(map[string]SearchIndex{
		"good": {Items: []IndexItem{{Ty: 5, Name: "f", Path: "good"}}},
		"bad":  {Items: []IndexItem{{Ty: 5, Name: "g", Path: "bad", ParentIdx: idx(3)}}},
	}, func(pkg string, err error) {
		failed = append(failed, pkg)
	})

	assert.Equal(t, []string{"bad"}, failed)
	require.Equal(t, 1, rd.Len())
	assert.Equal(t, "f", rd.Items()[0].Key())
}

func TestDecode_AsyncStd(t *testing.T) {
	t.Parallel()
	rd, err := Decode(map[string]SearchIndex{
		"async_std": {
			Doc: "Async version of the Rust standard library",
			Items: []IndexItem{
				{Ty: 23, Name: "main", Path: "async_std", Desc: "Enables an async main function."},
				{Ty: 23, Name: "test", Desc: "Enables an async test function."},
			},
			Paths: []ParentEntry{{Ty: 8, Name: "Future"}, {Ty: 8, Name: "implfuture"}},
		},
	})
	require.NoError(t, err)

	want := []DocItem{
		{Name: TypeItem{Kind: KindAttributeMacro, Name: "main"}, Path: "async_std", Desc: "Enables an async main function."},
		{Name: TypeItem{Kind: KindAttributeMacro, Name: "test"}, Path: "async_std", Desc: "Enables an async test function."},
	}
	assert.Equal(t, want, rd.Items())
}
