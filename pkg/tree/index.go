// Package tree implements generalized-index arithmetic over the implicit
// binary merkle tree that backs account state: root at index 1, the left
// child of node n at 2n, the right child at 2n+1, and the parent of n at
// n/2. Indices can run up to 264 bits deep (a tree of height 256 whose
// deepest account fields sit at depth 260 under the root), which is wider
// than a single uint256.Int, so BigIndex pairs a uint256.Int with a 64-bit
// high limb.
//
// The helper names (Parent, Sibling, IsLeft, Depth) follow the usual
// generalized-index helpers of SSZ merkle proofs; this package exists
// because account indices outgrow 256 bits.
package tree

import (
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"
)

// BigIndex is an unsigned 264-bit generalized tree index: a uint256.Int
// low limb plus a uint64 high limb, giving 320 bits of headroom (only the
// bottom 264 are ever meaningful for a height-256 tree).
type BigIndex struct {
	lo uint256.Int
	hi uint64
}

// Root is the generalized index of the tree root.
var Root = FromUint64(1)

// FromUint64 builds a BigIndex from a uint64 value.
func FromUint64(n uint64) BigIndex {
	return BigIndex{lo: *uint256.NewInt(n)}
}

// FromBytes32 builds a BigIndex from a 32-byte big-endian value (e.g. an
// address used directly as a generalized index offset).
func FromBytes32(b [32]byte) BigIndex {
	var lo uint256.Int
	lo.SetBytes(b[:])
	return BigIndex{lo: lo}
}

// Uint64 returns the low 64 bits, truncating silently. Callers should only
// use this once they know the index fits (e.g. after decoding an offset).
func (b BigIndex) Uint64() uint64 {
	return b.lo.Uint64()
}

// IsZero reports whether the index is zero.
func (b BigIndex) IsZero() bool {
	return b.hi == 0 && b.lo.IsZero()
}

// Cmp compares two indices, returning -1, 0, or 1.
func (b BigIndex) Cmp(o BigIndex) int {
	if b.hi != o.hi {
		if b.hi < o.hi {
			return -1
		}
		return 1
	}
	return b.lo.Cmp(&o.lo)
}

// Equal reports whether two indices are identical.
func (b BigIndex) Equal(o BigIndex) bool {
	return b.Cmp(o) == 0
}

// BitLen returns the number of bits needed to represent the index, i.e.
// floor(log2(b))+1. The root (index 1) has BitLen 1.
func (b BigIndex) BitLen() int {
	if b.hi != 0 {
		return 64 + bits.Len64(b.hi)
	}
	return b.lo.BitLen()
}

// Depth returns the depth of this generalized index below the root.
// The root (index 1) is at depth 0.
func (b BigIndex) Depth() int {
	n := b.BitLen()
	if n == 0 {
		return 0
	}
	return n - 1
}

// lsh1 doubles the index (shift left by one bit), propagating the carry
// out of the low limb's top bit into the high limb.
func (b BigIndex) lsh1() BigIndex {
	carry := b.lo[3] >> 63
	var lo uint256.Int
	lo.Lsh(&b.lo, 1)
	return BigIndex{lo: lo, hi: (b.hi << 1) | carry}
}

// rsh1 halves the index (shift right by one bit), propagating the high
// limb's low bit down into the low limb's top bit.
func (b BigIndex) rsh1() BigIndex {
	var lo uint256.Int
	lo.Rsh(&b.lo, 1)
	if b.hi&1 != 0 {
		lo[3] |= uint64(1) << 63
	}
	return BigIndex{lo: lo, hi: b.hi >> 1}
}

// Child returns the generalized index of this node's left or right child.
func (b BigIndex) Child(left bool) BigIndex {
	c := b.lsh1()
	if !left {
		c.lo.Or(&c.lo, uint256.NewInt(1))
	}
	return c
}

// LeftChild is shorthand for Child(true).
func (b BigIndex) LeftChild() BigIndex { return b.Child(true) }

// RightChild is shorthand for Child(false).
func (b BigIndex) RightChild() BigIndex { return b.Child(false) }

// Parent returns the generalized index of this node's parent.
func (b BigIndex) Parent() BigIndex {
	return b.rsh1()
}

// Sibling returns the generalized index of this node's sibling (flips the
// lowest bit, which selects left vs. right at every level).
func (b BigIndex) Sibling() BigIndex {
	var lo uint256.Int
	lo.Xor(&b.lo, uint256.NewInt(1))
	return BigIndex{lo: lo, hi: b.hi}
}

// IsLeft reports whether this index is a left child (even).
func (b BigIndex) IsLeft() bool {
	return b.lo[0]&1 == 0
}

// BitAt reports whether bit i (0 = least significant) is set. Used by the
// composer's bit-alphabetical sort and offset-table encoding to read an
// index's path bits without materializing a byte string.
func (b BigIndex) BitAt(i int) bool {
	if i < 0 {
		return false
	}
	if i >= 256 {
		shift := i - 256
		if shift >= 64 {
			return false
		}
		return (b.hi>>uint(shift))&1 != 0
	}
	return (b.lo[i/64]>>uint(i%64))&1 != 0
}

// Add adds amount to the index, reporting overflow (a carry out of the top
// of the 320-bit lo/hi representation) rather than panicking, matching the wrapping-plus-flag convention
// used throughout this codebase for fixed-width arithmetic.
func (b BigIndex) Add(amount uint64) (BigIndex, bool) {
	var lo uint256.Int
	loOverflow := lo.AddOverflow(&b.lo, uint256.NewInt(amount))
	hi := b.hi
	if loOverflow {
		hi++
	}
	overflow := loOverflow && hi == 0
	return BigIndex{lo: lo, hi: hi}, overflow
}

// String renders the index in hex for logging and error messages.
func (b BigIndex) String() string {
	if b.hi == 0 {
		return b.lo.Hex()
	}
	return fmt.Sprintf("0x%x%064x", b.hi, b.lo.Bytes32())
}

// AncestorAt returns the ancestor of b that sits at the given depth. depth
// must be less than or equal to b.Depth().
func (b BigIndex) AncestorAt(depth int) BigIndex {
	cur := b
	for cur.Depth() > depth {
		cur = cur.Parent()
	}
	return cur
}

// IsAncestorOf reports whether b is an ancestor of (or equal to) other.
func (b BigIndex) IsAncestorOf(other BigIndex) bool {
	if b.Depth() > other.Depth() {
		return false
	}
	return b.Equal(other.AncestorAt(b.Depth()))
}

// PathToRoot returns the chain of generalized indices from gi's parent up
// to and including the root.
func PathToRoot(gi BigIndex) []BigIndex {
	var path []BigIndex
	cur := gi
	for cur.BitLen() > 1 {
		cur = cur.Parent()
		path = append(path, cur)
	}
	return path
}
