package automaton

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefix(t *testing.T) {
	t.Parallel()
	a := Prefix("ma")
	assert.True(t, Matches(a, "ma"))
	assert.True(t, Matches(a, "main"))
	assert.False(t, Matches(a, "m"))
	assert.False(t, Matches(a, "test"))

	all := Prefix("")
	for _, k := range []string{"", "a", "anything"} {
		assert.True(t, Matches(all, k), k)
	}
}

func TestExact(t *testing.T) {
	t.Parallel()
	a := Exact("spawn")
	assert.True(t, Matches(a, "spawn"))
	assert.False(t, Matches(a, "spawns"))
	assert.False(t, Matches(a, "spaw"))
}

func TestSubsequence(t *testing.T) {
	t.Parallel()
	a := Subsequence("try_join")
	assert.True(t, Matches(a, "try_join_all"))
	assert.True(t, Matches(a, "try_maybe_join"))
	assert.False(t, Matches(a, "join"))

	tst := Subsequence("tst")
	assert.True(t, Matches(tst, "test"))
	assert.False(t, Matches(tst, "main"))
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()
	a, err := Levenshtein("spawn", 1)
	require.NoError(t, err)
	assert.True(t, Matches(a, "spawn"))
	assert.True(t, Matches(a, "spawns"))
	assert.True(t, Matches(a, "spwn"))
	assert.True(t, Matches(a, "spawm"))
	assert.False(t, Matches(a, "spawning"))
	assert.False(t, Matches(a, "join"))
}

func TestLevenshtein_InvalidDistance(t *testing.T) {
	t.Parallel()
	for _, d := range []int{-1, MaxEditDistance + 1, 100} {
		_, err := Levenshtein("spawn", d)
		require.Error(t, err)
		var pe *PatternError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "spawn", pe.Pattern)
		assert.ErrorIs(t, err, ErrInvalidDistance)
	}
}

func TestRegex(t *testing.T) {
	t.Parallel()
	a, err := Regex("dedup.*")
	require.NoError(t, err)
	assert.True(t, Matches(a, "dedup"))
	assert.True(t, Matches(a, "dedup_by_key"))
	assert.False(t, Matches(a, "vec_dedup"))

	io, err := Regex(".*io.*")
	require.NoError(t, err)
	assert.True(t, Matches(io, "stdio"))
	assert.False(t, Matches(io, "spawn"))
}

func TestRegex_Invalid(t *testing.T) {
	t.Parallel()
	for _, p := range []string{"(unclosed", "a[", `^anchored`} {
		_, err := Regex(p)
		require.Error(t, err, p)
		var pe *PatternError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, p, pe.Pattern)
	}
}

func TestUnionIntersection(t *testing.T) {
	t.Parallel()
	keys := []string{"main", "map", "test", "try_join", "join", "mat", ""}
	a := Prefix("ma")
	b := Subsequence("t")

	u := Union(a, b)
	x := Intersection(a, b)
	for _, k := range keys {
		assert.Equal(t, Matches(a, k) || Matches(b, k), Matches(u, k), "union %q", k)
		assert.Equal(t, Matches(a, k) && Matches(b, k), Matches(x, k), "intersection %q", k)
	}
	assert.True(t, Matches(x, "mat"))
	assert.False(t, Matches(x, "map"))
}

func TestStartsWith(t *testing.T) {
	t.Parallel()
	lev, err := Levenshtein("spawn", 1)
	require.NoError(t, err)
	a := StartsWith(lev)

	assert.True(t, Matches(a, "spawn"))
	assert.True(t, Matches(a, "spawning"))
	assert.True(t, Matches(a, "spwn_blocking"))
	assert.False(t, Matches(a, "sp"))
	assert.False(t, Matches(a, "join"))
}

func TestComplement(t *testing.T) {
	t.Parallel()
	a := Complement(Prefix("ma"))
	assert.False(t, Matches(a, "main"))
	assert.True(t, Matches(a, "test"))
	assert.True(t, Matches(a, "m"))
}

func TestCombinators_Concurrent(t *testing.T) {
	t.Parallel()
	u := Union(Prefix("sp"), Subsequence("jn"))
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				assert.True(t, Matches(u, "spawn"))
				assert.True(t, Matches(u, "join"))
				assert.False(t, Matches(u, "abort"))
			}
		}()
	}
	wg.Wait()
}

func TestInterner_ConcurrentIDs(t *testing.T) {
	t.Parallel()
	var in interner[string]
	keys := []string{"a", "b", "c", "d"}

	got := make([][]int, 8)
	var wg sync.WaitGroup
	for g := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				ids := make([]int, len(keys))
				for i, k := range keys {
					ids[i] = in.id(k)
				}
				got[g] = ids
			}
		}()
	}
	wg.Wait()

	for _, ids := range got {
		assert.Equal(t, got[0], ids)
	}
	assert.Len(t, in.keys, len(keys))
	for i, k := range keys {
		assert.Equal(t, k, in.get(got[0][i]))
	}
}
