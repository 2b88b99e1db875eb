package digesttree

import (
	"strconv"

	"github.com/spacemeshos/go-keysync/keysync/types"
)

// nodeIndex addresses a node in the nodePool.
type nodeIndex uint32

const noIndex = ^nodeIndex(0)

// recordIndex addresses a key record.
type recordIndex uint32

const noRecord = ^recordIndex(0)

// node is a digest tree node.
// Leaf nodes refer to a single record and have no children.
// Internal nodes always cover at least two keys, but either of their
// children may be absent, which means that the corresponding subtree is empty.
type node struct {
	count    uint32
	combined types.KeyBytes
	children [2]nodeIndex
	record   recordIndex
}

func (n *node) leaf() bool {
	return n.record != noRecord
}

func (n *node) digest() types.Digest {
	return types.Digest{Count: n.count, Combined: n.combined.Clone()}
}

// pool is an arena of items addressed by uint32 indices.
// The zero value is a valid, empty pool.
// Unlike sync.Pool, pool does not shrink, but uint32 indices can be used
// to reference items instead of larger 64-bit pointers.
type pool[T any, I ~uint32] struct {
	entries []T
}

// init pre-allocates the pool with n items.
func (p *pool[T, I]) init(n int) {
	p.entries = make([]T, 0, n)
}

// count returns the number of items in the pool.
func (p *pool[T, I]) count() int {
	return len(p.entries)
}

// entry returns a pointer to the item at the given index.
// The pointer is only valid until the next add.
func (p *pool[T, I]) entry(idx I) *T {
	if int(idx) >= len(p.entries) {
		panic("BUG: referencing a bad pool entry " + strconv.Itoa(int(idx)))
	}
	return &p.entries[idx]
}

// add adds an item to the pool and returns its index.
func (p *pool[T, I]) add(item T) I {
	idx := I(len(p.entries))
	if idx == ^I(0) {
		panic("BUG: pool index overflow")
	}
	p.entries = append(p.entries, item)
	return idx
}

// clear drops all the items.
func (p *pool[T, I]) clear() {
	p.entries = nil
}

type nodePool struct {
	pool[node, nodeIndex]
}

func (np *nodePool) addLeaf(k types.KeyBytes, rec recordIndex) nodeIndex {
	return np.add(node{
		count:    1,
		combined: k,
		children: [2]nodeIndex{noIndex, noIndex},
		record:   rec,
	})
}

func (np *nodePool) addInternal(count uint32, combined types.KeyBytes) nodeIndex {
	return np.add(node{
		count:    count,
		combined: combined,
		children: [2]nodeIndex{noIndex, noIndex},
		record:   noRecord,
	})
}

func (np *nodePool) node(idx nodeIndex) *node {
	return np.entry(idx)
}

type record struct {
	key types.KeyBytes
	ctx any
}

type recordPool struct {
	pool[record, recordIndex]
}

func dir(bit bool) int {
	if bit {
		return 1
	}
	return 0
}
