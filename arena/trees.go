package arena

import "github.com/heapcore/heapcore/internal/rbtree"

// runNode is an availability-tree entry: a free or large run identified
// by its owning chunk and first page index. Its size is read live from
// the chunk's page map rather than cached, so callers must remove a
// node from the tree before mutating the run it describes and reinsert
// after — exactly the discipline SplitRun/DallocRun follow.
//
// A synthetic node (synthetic=true) never sits in the tree; it exists
// only to be handed to rbtree.Ceiling as a search key carrying the
// requested size, playing the role of the original's KEY-tagged
// page-map entry without needing a real chunk.
type runNode struct {
	chunk     *Chunk
	pageIdx   int
	synthetic bool
	keySize   uintptr
}

func searchKey(size uintptr) *runNode { return &runNode{synthetic: true, keySize: size} }

func (n *runNode) addr() uintptr {
	if n.synthetic {
		return 0
	}
	return n.chunk.addr(n.pageIdx)
}

func (n *runNode) size() uintptr {
	if n.synthetic {
		return n.keySize
	}
	return n.chunk.Pages[n.pageIdx].RunOrSize
}

func (n *runNode) isKey() bool { return n.synthetic }

// cmpRunAvail orders by size first, breaking ties by address, with a
// key node sorting as the lowest address at its size — the "KEY sorts
// lowest" rule that makes SearchOrNext-style lookups (rbtree.Ceiling)
// return the best-fit, lowest-address run.
func cmpRunAvail(a, b *runNode) int {
	as, bs := a.size(), b.size()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	aAddr, bAddr := a.addr(), b.addr()
	switch {
	case a.isKey() && !b.isKey():
		return -1
	case b.isKey() && !a.isKey():
		return 1
	case aAddr < bAddr:
		return -1
	case aAddr > bAddr:
		return 1
	default:
		return 0
	}
}

type runAvailTree = rbtree.Tree[*runNode]

func newRunAvailTree() *runAvailTree { return rbtree.New[*runNode](cmpRunAvail) }

func cmpChunkAddr(a, b *Chunk) int {
	switch {
	case a.Base < b.Base:
		return -1
	case a.Base > b.Base:
		return 1
	default:
		return 0
	}
}

type chunkTree = rbtree.Tree[*Chunk]

func newChunkTree() *chunkTree { return rbtree.New[*Chunk](cmpChunkAddr) }

func cmpSmallRunAddr(a, b *smallRun) int {
	aAddr, bAddr := a.chunk.addr(a.pageIdx), b.chunk.addr(b.pageIdx)
	switch {
	case aAddr < bAddr:
		return -1
	case aAddr > bAddr:
		return 1
	default:
		return 0
	}
}

type nonFullTree = rbtree.Tree[*smallRun]
