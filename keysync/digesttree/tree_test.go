package digesttree

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-keysync/keysync/types"
)

func checkNode(t *testing.T, tr *Tree, idx nodeIndex, depth int) types.Digest {
	n := tr.np.node(idx)
	if n.leaf() {
		rec := tr.records.entry(n.record)
		require.Equal(t, uint32(1), n.count)
		require.Equal(t, rec.key, n.combined)
		return n.digest()
	}
	require.GreaterOrEqual(t, n.count, uint32(2), "internal node with less than 2 keys")
	d := types.EmptyDigest(tr.keyLen)
	for _, child := range n.children {
		if child == noIndex {
			continue
		}
		cd := checkNode(t, tr, child, depth+1)
		d.Count += cd.Count
		d.Combined.Xor(cd.Combined)
	}
	require.Equal(t, d.Count, n.count)
	require.Equal(t, d.Combined, n.combined)
	return d
}

func checkTree(t *testing.T, tr *Tree) {
	if tr.root == noIndex {
		require.Zero(t, tr.Count())
		return
	}
	d := checkNode(t, tr, tr.root, 0)
	require.Equal(t, uint32(tr.Count()), d.Count)
}

func naiveDigest(keys []types.KeyBytes, p types.Position, keyLen int) types.Digest {
	d := types.EmptyDigest(keyLen)
	for _, k := range keys {
		if p.Contains(k) {
			d.Add(k)
		}
	}
	return d
}

func TestEmptyTree(t *testing.T) {
	tr := New(4)
	require.Zero(t, tr.Count())
	require.Equal(t, types.EmptyDigest(4), tr.Root())
	require.Equal(t, types.EmptyDigest(4), tr.DigestAt(types.RootPosition().Child(true)))
	require.False(t, tr.Has(types.KeyBytes{1, 2, 3, 4}))
	require.Equal(t, "empty tree\n", tr.DumpToString())
	tr.Leaves(types.RootPosition(), func(types.Position, types.KeyBytes, any) bool {
		require.Fail(t, "no leaves expected")
		return true
	})
}

func TestInsert(t *testing.T) {
	tr := New(2)
	k1 := types.MustParseHexKeyBytes("8000")
	k2 := types.MustParseHexKeyBytes("8400")
	k3 := types.MustParseHexKeyBytes("0001")

	added, err := tr.Insert(k1, "k1")
	require.NoError(t, err)
	require.True(t, added)
	require.Equal(t, types.Digest{Count: 1, Combined: k1}, tr.Root())

	added, err = tr.Insert(k1.Clone(), "dup")
	require.NoError(t, err)
	require.False(t, added)
	ctx, found := tr.Context(k1)
	require.True(t, found)
	require.Equal(t, "k1", ctx)

	_, err = tr.Insert(types.KeyBytes{1}, nil)
	require.ErrorIs(t, err, types.ErrBadKeyLength)

	added, err = tr.Insert(k2, "k2")
	require.NoError(t, err)
	require.True(t, added)
	added, err = tr.Insert(k3, "k3")
	require.NoError(t, err)
	require.True(t, added)
	require.Equal(t, 3, tr.Count())
	checkTree(t, tr)

	require.Equal(t,
		types.Digest{Count: 3, Combined: types.MustParseHexKeyBytes("0401")},
		tr.Root())
	require.Equal(t,
		types.Digest{Count: 2, Combined: types.MustParseHexKeyBytes("0400")},
		tr.DigestAt(types.PrefixOf(k1, 1)))
	// below the k3 leaf
	require.Equal(t,
		types.Digest{Count: 1, Combined: k3},
		tr.DigestAt(types.PrefixOf(k3, 9)))
	require.Equal(t,
		types.EmptyDigest(2),
		tr.DigestAt(types.PrefixOf(types.MustParseHexKeyBytes("4000"), 2)))
	// k1 and k2 diverge at bit 5
	require.Equal(t,
		types.Digest{Count: 1, Combined: k2},
		tr.DigestAt(types.PrefixOf(k2, 6)))
	require.Equal(t,
		types.Digest{Count: 2, Combined: types.MustParseHexKeyBytes("0400")},
		tr.DigestAt(types.PrefixOf(k2, 5)))

	require.Equal(t, `node <0> 3:0401
  leaf <1:0> 1:0001
  node <1:1> 2:0400
    node <2:10> 2:0400
      node <3:100> 2:0400
        node <4:1000> 2:0400
          node <5:10000> 2:0400
            leaf <6:100000> 1:8000
            leaf <6:100001> 1:8400
`, tr.DumpToString())
}

func TestLeaves(t *testing.T) {
	tr := New(2)
	keys := []types.KeyBytes{
		types.MustParseHexKeyBytes("8000"),
		types.MustParseHexKeyBytes("8400"),
		types.MustParseHexKeyBytes("0001"),
	}
	for _, k := range keys {
		_, err := tr.Insert(k, k.String())
		require.NoError(t, err)
	}
	type leaf struct {
		Pos string
		Key string
		Ctx any
	}
	collect := func(p types.Position) []leaf {
		var r []leaf
		tr.Leaves(p, func(pos types.Position, k types.KeyBytes, ctx any) bool {
			r = append(r, leaf{Pos: pos.String(), Key: k.String(), Ctx: ctx})
			return true
		})
		return r
	}
	require.Empty(t, cmp.Diff([]leaf{
		{Pos: "<1:0>", Key: "0001", Ctx: "0001"},
		{Pos: "<6:100000>", Key: "8000", Ctx: "8000"},
		{Pos: "<6:100001>", Key: "8400", Ctx: "8400"},
	}, collect(types.RootPosition())))
	require.Empty(t, cmp.Diff([]leaf{
		{Pos: "<3:000>", Key: "0001", Ctx: "0001"},
	}, collect(types.PrefixOf(keys[2], 3))))
	require.Empty(t, collect(types.PrefixOf(types.MustParseHexKeyBytes("2000"), 3)))

	n := 0
	tr.Leaves(types.RootPosition(), func(types.Position, types.KeyBytes, any) bool {
		n++
		return false
	})
	require.Equal(t, 1, n)
}

func TestSlot(t *testing.T) {
	tr := New(2)
	for _, k := range []string{"8000", "8400", "0001"} {
		_, err := tr.Insert(types.MustParseHexKeyBytes(k), nil)
		require.NoError(t, err)
	}
	root := types.RootPosition()
	for _, tc := range []struct {
		key   string
		under int
		slot  string
	}{
		{key: "0001", under: 0, slot: "<1:0>"},
		{key: "7fff", under: 0, slot: "<1:0>"},
		{key: "7fff", under: 4, slot: "<4:0111>"},
		{key: "c000", under: 0, slot: "<2:11>"},
		{key: "8800", under: 0, slot: "<5:10001>"},
		{key: "8200", under: 0, slot: "<6:100000>"},
	} {
		k := types.MustParseHexKeyBytes(tc.key)
		under := root
		if tc.under != 0 {
			under = types.PrefixOf(k, tc.under)
		}
		slot := tr.Slot(k, under)
		require.Equal(t, tc.slot, slot.String(), "key %s", tc.key)
		require.LessOrEqual(t, tr.DigestAt(slot).Count, uint32(1))
	}

	empty := New(2)
	k := types.MustParseHexKeyBytes("8000")
	require.Equal(t, root, empty.Slot(k, root))
}

func TestDigestAlgebra(t *testing.T) {
	const keyLen = 3
	tr := New(keyLen)
	var keys []types.KeyBytes
	for range 300 {
		k := types.RandomKeyBytes(keyLen)
		// make some keys share long prefixes
		if rand.IntN(3) == 0 && len(keys) != 0 {
			copy(k, keys[rand.IntN(len(keys))][:2])
		}
		added, err := tr.Insert(k, nil)
		require.NoError(t, err)
		if added {
			keys = append(keys, k)
		}
		require.True(t, tr.Has(k))
	}
	require.Equal(t, len(keys), tr.Count())
	checkTree(t, tr)
	require.Equal(t, naiveDigest(keys, types.RootPosition(), keyLen), tr.Root())

	for range 1000 {
		k := keys[rand.IntN(len(keys))]
		if rand.IntN(2) == 0 {
			k = types.RandomKeyBytes(keyLen)
		}
		p := types.PrefixOf(k, rand.IntN(keyLen*8+1))
		require.True(t, naiveDigest(keys, p, keyLen).Equal(tr.DigestAt(p)), "digest at %s", p)
	}

	tr.Walk(func(p types.Position, d types.Digest, leaf bool) bool {
		require.Equal(t, naiveDigest(keys, p, keyLen), d)
		return true
	})
}

func TestInsertOrderIndependence(t *testing.T) {
	const keyLen = 4
	keys := make([]types.KeyBytes, 100)
	for n := range keys {
		keys[n] = types.RandomKeyBytes(keyLen)
	}
	tr1 := New(keyLen)
	for _, k := range keys {
		_, err := tr1.Insert(k, nil)
		require.NoError(t, err)
	}
	tr2 := New(keyLen)
	for _, n := range rand.Perm(len(keys)) {
		_, err := tr2.Insert(keys[n], nil)
		require.NoError(t, err)
	}
	require.Equal(t, tr1.Root(), tr2.Root())
	require.Equal(t, tr1.DumpToString(), tr2.DumpToString())
}

func TestRelease(t *testing.T) {
	tr := New(2)
	_, err := tr.Insert(types.KeyBytes{1, 2}, nil)
	require.NoError(t, err)
	tr.Release()
	require.Zero(t, tr.Count())
	require.Equal(t, types.EmptyDigest(2), tr.Root())
}
