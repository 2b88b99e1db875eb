// Package digesttree implements a binary prefix tree over fixed-length keys.
// Each tree node carries a digest of its subtree: the number of keys under it
// and the XOR of all of these keys. Digests of any two trees holding the same
// keys are identical at every position, which makes it possible to find the
// differences between two key sets by comparing digests top-down.
package digesttree

import (
	"fmt"
	"io"
	"strings"

	"github.com/spacemeshos/go-keysync/keysync/types"
)

// Tree is a digest tree.
type Tree struct {
	keyLen  int
	np      nodePool
	records recordPool
	byKey   map[string]recordIndex
	root    nodeIndex
}

// New creates an empty digest tree for keys of keyLen bytes.
func New(keyLen int) *Tree {
	if keyLen <= 0 || keyLen > types.MaxKeyLen {
		panic("BUG: bad key length " + fmt.Sprint(keyLen))
	}
	t := &Tree{
		keyLen: keyLen,
		byKey:  make(map[string]recordIndex),
		root:   noIndex,
	}
	t.np.init(64)
	return t
}

// KeyLen returns the key length in bytes.
func (t *Tree) KeyLen() int {
	return t.keyLen
}

// MaxDepth returns the depth of the positions that correspond to single keys.
func (t *Tree) MaxDepth() int {
	return t.keyLen * 8
}

// Count returns the number of keys in the tree.
func (t *Tree) Count() int {
	return t.records.count()
}

// Insert adds a key with the associated application context to the tree.
// It returns false if the key is already present, in which case the tree is
// not modified.
func (t *Tree) Insert(k types.KeyBytes, ctx any) (bool, error) {
	if err := k.CheckLen(t.keyLen); err != nil {
		return false, err
	}
	if _, found := t.byKey[string(k)]; found {
		return false, nil
	}
	k = k.Clone()
	rec := t.records.add(record{key: k, ctx: ctx})
	t.byKey[string(k)] = rec
	if t.root == noIndex {
		t.root = t.np.addLeaf(k, rec)
		return true, nil
	}

	idx := t.root
	for depth := 0; ; depth++ {
		n := t.np.node(idx)
		if n.leaf() {
			t.pushDown(idx, depth, rec)
			return true, nil
		}
		n.count++
		n.combined.Xor(k)
		d := dir(k.BitFromLeft(depth))
		child := n.children[d]
		if child == noIndex {
			leaf := t.np.addLeaf(k, rec)
			t.np.node(idx).children[d] = leaf
			return true, nil
		}
		idx = child
	}
}

// pushDown replaces the leaf at idx with a chain of internal nodes that ends
// where the old key and the new one diverge, with a leaf for each of them.
func (t *Tree) pushDown(idx nodeIndex, depth int, rec recordIndex) {
	oldRec := t.np.node(idx).record
	oldKey := t.records.entry(oldRec).key
	newKey := t.records.entry(rec).key
	combined := oldKey.Clone()
	combined.Xor(newKey)
	for d := depth; ; d++ {
		if d >= t.MaxDepth() {
			panic("BUG: pushing down a duplicate key")
		}
		n := t.np.node(idx)
		n.count = 2
		n.combined = combined.Clone()
		n.record = noRecord
		oldDir := dir(oldKey.BitFromLeft(d))
		newDir := dir(newKey.BitFromLeft(d))
		if oldDir != newDir {
			oldLeaf := t.np.addLeaf(oldKey, oldRec)
			newLeaf := t.np.addLeaf(newKey, rec)
			n = t.np.node(idx)
			n.children[oldDir] = oldLeaf
			n.children[newDir] = newLeaf
			return
		}
		child := t.np.addInternal(2, combined.Clone())
		t.np.node(idx).children[newDir] = child
		idx = child
	}
}

// Has returns true if the key is present in the tree.
func (t *Tree) Has(k types.KeyBytes) bool {
	_, found := t.byKey[string(k)]
	return found
}

// Context returns the application context of the key, if it's present in
// the tree.
func (t *Tree) Context(k types.KeyBytes) (any, bool) {
	rec, found := t.byKey[string(k)]
	if !found {
		return nil, false
	}
	return t.records.entry(rec).ctx, true
}

// Root returns the digest of the whole tree.
func (t *Tree) Root() types.Digest {
	if t.root == noIndex {
		return types.EmptyDigest(t.keyLen)
	}
	return t.np.node(t.root).digest()
}

// find locates the node that covers the position p.
// If the path to p ends in a leaf above p, the leaf is returned together with
// its depth. If the subtree at p is empty, noIndex is returned.
func (t *Tree) find(p types.Position) (nodeIndex, int) {
	idx := t.root
	depth := 0
	for idx != noIndex && depth < p.Depth() {
		n := t.np.node(idx)
		if n.leaf() {
			if !p.Contains(t.records.entry(n.record).key) {
				return noIndex, depth
			}
			break
		}
		idx = n.children[dir(p.Bit(depth))]
		depth++
	}
	return idx, depth
}

// DigestAt returns the digest of the subtree at the position p.
func (t *Tree) DigestAt(p types.Position) types.Digest {
	if p.Depth() > t.MaxDepth() {
		panic("BUG: position is too deep")
	}
	idx, _ := t.find(p)
	if idx == noIndex {
		return types.EmptyDigest(t.keyLen)
	}
	return t.np.node(idx).digest()
}

// Leaves calls fn for each key under the position p, along with the key's
// disclosure position and application context. The disclosure position is
// the position of the key's leaf node or p, whichever is deeper.
// The iteration stops if fn returns false.
func (t *Tree) Leaves(p types.Position, fn func(pos types.Position, k types.KeyBytes, ctx any) bool) {
	idx, _ := t.find(p)
	if idx == noIndex {
		return
	}
	t.leaves(idx, p, fn)
}

func (t *Tree) leaves(
	idx nodeIndex,
	p types.Position,
	fn func(pos types.Position, k types.KeyBytes, ctx any) bool,
) bool {
	n := t.np.node(idx)
	if n.leaf() {
		rec := t.records.entry(n.record)
		return fn(p, rec.key, rec.ctx)
	}
	children := n.children
	for d, child := range children {
		if child == noIndex {
			continue
		}
		if !t.leaves(child, p.Child(d == 1), fn) {
			return false
		}
	}
	return true
}

// Slot returns the shallowest position along the path of k, not shallower
// than the position under, which covers at most one key in this tree.
// The digest at the slot position tells whether the key is present: it's
// either empty or a single key.
func (t *Tree) Slot(k types.KeyBytes, under types.Position) types.Position {
	if !under.Contains(k) {
		panic("BUG: key is not under the position")
	}
	idx := t.root
	depth := 0
	for idx != noIndex {
		n := t.np.node(idx)
		if n.leaf() {
			break
		}
		idx = n.children[dir(k.BitFromLeft(depth))]
		depth++
	}
	return types.PrefixOf(k, max(depth, under.Depth()))
}

// Walk calls fn for every node of the tree in pre-order, along with the
// node's position and digest. Children of nodes for which fn returns false
// are not visited.
func (t *Tree) Walk(fn func(p types.Position, d types.Digest, leaf bool) bool) {
	if t.root != noIndex {
		t.walk(t.root, types.RootPosition(), fn)
	}
}

func (t *Tree) walk(idx nodeIndex, p types.Position, fn func(p types.Position, d types.Digest, leaf bool) bool) {
	n := t.np.node(idx)
	if !fn(p, n.digest(), n.leaf()) {
		return
	}
	children := n.children
	for d, child := range children {
		if child != noIndex {
			t.walk(child, p.Child(d == 1), fn)
		}
	}
}

// Dump prints the tree structure to w.
func (t *Tree) Dump(w io.Writer) {
	if t.root == noIndex {
		fmt.Fprintln(w, "empty tree")
		return
	}
	t.Walk(func(p types.Position, d types.Digest, leaf bool) bool {
		kind := "node"
		if leaf {
			kind = "leaf"
		}
		fmt.Fprintf(w, "%s%s %s %s\n", strings.Repeat("  ", p.Depth()), kind, p, d)
		return true
	})
}

// DumpToString returns the tree structure as a string.
func (t *Tree) DumpToString() string {
	var sb strings.Builder
	t.Dump(&sb)
	return sb.String()
}

// Release drops all the nodes and records of the tree.
func (t *Tree) Release() {
	t.np.clear()
	t.records.clear()
	t.byKey = nil
	t.root = noIndex
}
