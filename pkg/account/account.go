// Package account defines the account schema stored in the leaves of the
// state tree and the generalized-index arithmetic used to locate an
// account's fields (pubkey, nonce, balances) within it.
//
// Every account occupies a small subtree rooted at the account's "base"
// index, which is itself a leaf of the outer address tree:
//
//	base = 2^height + (address mod 2^height)
//
// but that subtree is not a uniform complete tree: the pubkey's two
// 32-byte chunks sit three levels below base, while the nonce, the value
// (or value-group) slot, and the padding slot sit only two levels below
// it:
//
//	                base
//	           /            \
//	       left              right
//	      /     \           /     \
//	 pubkeyPair  nonce   values   pad
//	  /     \
//	pkLo   pkHi
//
// so a single-balance account bottoms out at depth base+2 for everything
// except the pubkey, and an RGB account adds two more levels under the
// value slot for red/green/blue/pad2:
//
//	       values
//	      /      \
//	   left      right
//	  /    \     /    \
//	red  green blue  pad2
package account

import (
	"github.com/quilt/sheth/pkg/tree"
	"github.com/quilt/sheth/pkg/zerohash"
)

// Address identifies an account. It is used directly as the low bits of
// its base generalized index.
type Address [32]byte

// TokenColor selects which balance field of an RGB account to operate on.
type TokenColor int

const (
	Red TokenColor = iota
	Green
	Blue
)

func (c TokenColor) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return "unknown"
	}
}

// Schema selects which account layout is in effect for a State.
type Schema int

const (
	// SchemaSingle is the original one-balance layout: pubkey, nonce, value.
	SchemaSingle Schema = iota
	// SchemaRGB is the three-color layout: pubkey, nonce, red/green/blue.
	SchemaRGB
)

// Account is an in-memory, decoded view of one account. Which balance
// fields are meaningful depends on the Schema it was decoded under.
type Account struct {
	Pubkey [48]byte
	Nonce  uint64

	// Value is used under SchemaSingle.
	Value uint64

	// Red, Green, Blue are used under SchemaRGB.
	Red   uint64
	Green uint64
	Blue  uint64
}

// Zero returns the empty account (all fields zero).
func Zero() Account {
	return Account{}
}

// Balance returns the account's balance for the given color. Under
// SchemaSingle, color is ignored and Value is returned.
func (a Account) Balance(schema Schema, color TokenColor) uint64 {
	if schema == SchemaSingle {
		return a.Value
	}
	switch color {
	case Red:
		return a.Red
	case Green:
		return a.Green
	case Blue:
		return a.Blue
	default:
		return 0
	}
}

// Base returns the generalized index of the root of the account subtree
// for address, within an address space of the given height. Only the low
// `height` bits of the address select a leaf (the tree has 2^height of
// them), so this walks those bits from the most significant down,
// descending left or right from the root at each level.
func Base(address Address, height uint) tree.BigIndex {
	cur := tree.FromUint64(1)
	bytes := [32]byte(address)
	for i := uint(0); i < height; i++ {
		bitIndex := height - 1 - i
		byteIdx := 31 - bitIndex/8
		bit := (bytes[byteIdx] >> (bitIndex % 8)) & 1
		cur = cur.Child(bit == 0)
	}
	return cur
}

// The helpers below walk from an account's base index to one of its
// fields by chaining Child(left) calls, which is just repeated
// shift-and-set-low-bit on the generalized index: Child(true) doubles
// (appends a 0 bit), Child(false) doubles and adds one (appends a 1 bit).

func pubkeyLoFromBase(base tree.BigIndex) tree.BigIndex {
	return base.Child(true).Child(true).Child(true) // base<<3
}

func pubkeyHiFromBase(base tree.BigIndex) tree.BigIndex {
	return base.Child(true).Child(true).Child(false) // (base<<3)+1
}

func nonceFromBase(base tree.BigIndex) tree.BigIndex {
	return base.Child(true).Child(false) // (base<<2)+1
}

func valueGroupFromBase(base tree.BigIndex) tree.BigIndex {
	return base.Child(false).Child(true) // (base<<2)+2
}

func padFromBase(base tree.BigIndex) tree.BigIndex {
	return base.Child(false).Child(false) // (base<<2)+3
}

func redFromBase(valueGroup tree.BigIndex) tree.BigIndex {
	return valueGroup.Child(true).Child(true) // (vg<<2)+0
}

func greenFromBase(valueGroup tree.BigIndex) tree.BigIndex {
	return valueGroup.Child(true).Child(false) // (vg<<2)+1
}

func blueFromBase(valueGroup tree.BigIndex) tree.BigIndex {
	return valueGroup.Child(false).Child(true) // (vg<<2)+2
}

func pad2FromBase(valueGroup tree.BigIndex) tree.BigIndex {
	return valueGroup.Child(false).Child(false) // (vg<<2)+3
}

// ValueIndex returns the generalized index of the given color's balance
// slot for address, within an address space of the given height. Under
// SchemaSingle this is the value slot itself (a leaf); under SchemaRGB it
// descends one further level into the value group.
func ValueIndex(schema Schema, color TokenColor, address Address, height uint) tree.BigIndex {
	vg := valueGroupFromBase(Base(address, height))
	if schema == SchemaSingle {
		return vg
	}
	switch color {
	case Green:
		return greenFromBase(vg)
	case Blue:
		return blueFromBase(vg)
	default:
		return redFromBase(vg)
	}
}

// NonceIndex returns the generalized index of the nonce slot for address.
func NonceIndex(address Address, height uint) tree.BigIndex {
	return nonceFromBase(Base(address, height))
}

// PubkeyIndices returns the generalized indices of the two 32-byte chunks
// that together hold the 48-byte pubkey.
func PubkeyIndices(address Address, height uint) (lo, hi tree.BigIndex) {
	base := Base(address, height)
	return pubkeyLoFromBase(base), pubkeyHiFromBase(base)
}

// PadIndex returns the generalized index of an account's top-level padding
// slot (always zero; present so witnesses can prove it explicitly).
func PadIndex(address Address, height uint) tree.BigIndex {
	return padFromBase(Base(address, height))
}

// AllLeafIndices returns every generalized index that must be present,
// explicitly, in a witness that touches address: both pubkey chunks, the
// nonce, every balance slot the schema defines, and the schema's padding
// slots. This is what the composer expands a touched address into, and
// what a witness decoder must treat as "inside the touched region" at
// every depth down to the true leaves.
func AllLeafIndices(schema Schema, address Address, height uint) []tree.BigIndex {
	base := Base(address, height)
	lo, hi := pubkeyLoFromBase(base), pubkeyHiFromBase(base)
	nonce := nonceFromBase(base)
	pad := padFromBase(base)
	vg := valueGroupFromBase(base)

	if schema == SchemaSingle {
		return []tree.BigIndex{lo, hi, nonce, vg, pad}
	}
	return []tree.BigIndex{
		lo, hi, nonce,
		redFromBase(vg), greenFromBase(vg), blueFromBase(vg), pad2FromBase(vg),
		pad,
	}
}

func chunkUint64(v uint64) [32]byte {
	var out [32]byte
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

func leafOrZero(full map[tree.BigIndex][32]byte, idx tree.BigIndex) [32]byte {
	if v, ok := full[idx]; ok {
		return v
	}
	return [32]byte{}
}

// Hash computes the full hash of one account's subtree from its decoded
// fields, following exactly the irregular shape described in the package
// doc comment. EmptyAccountHash is this function applied to the zero
// account, and is the seed the zero-hash ladder folds upward from for
// every untouched account in the outer address tree.
func Hash(schema Schema, acc Account) [32]byte {
	var loChunk, hiChunk [32]byte
	copy(loChunk[:], acc.Pubkey[0:32])
	copy(hiChunk[:16], acc.Pubkey[32:48])
	pubkeyNode := zerohash.Combine(loChunk, hiChunk)

	left := zerohash.Combine(pubkeyNode, chunkUint64(acc.Nonce))

	var valueNode [32]byte
	if schema == SchemaSingle {
		valueNode = chunkUint64(acc.Value)
	} else {
		valueNode = zerohash.Combine(
			zerohash.Combine(chunkUint64(acc.Red), chunkUint64(acc.Green)),
			zerohash.Combine(chunkUint64(acc.Blue), [32]byte{}),
		)
	}
	right := zerohash.Combine(valueNode, [32]byte{})

	return zerohash.Combine(left, right)
}

// EmptyAccountHash is the hash of a fully zeroed account under schema; it
// is the leaf a schema's zero-hash ladder is built from.
func EmptyAccountHash(schema Schema) [32]byte {
	return Hash(schema, Account{})
}

// SubtreeHash recomputes the real hash of address's account subtree from
// whatever chunks are present in full, treating any missing chunk as
// zero. It is how the composer collapses an untouched-but-possibly-
// nonzero account down to the single witness leaf its sibling needs,
// without ever assuming the subtree has uniform depth.
func SubtreeHash(schema Schema, full map[tree.BigIndex][32]byte, base tree.BigIndex) [32]byte {
	lo := leafOrZero(full, pubkeyLoFromBase(base))
	hi := leafOrZero(full, pubkeyHiFromBase(base))
	pubkeyNode := zerohash.Combine(lo, hi)

	left := zerohash.Combine(pubkeyNode, leafOrZero(full, nonceFromBase(base)))

	vg := valueGroupFromBase(base)
	var valueNode [32]byte
	if schema == SchemaSingle {
		valueNode = leafOrZero(full, vg)
	} else {
		red := leafOrZero(full, redFromBase(vg))
		green := leafOrZero(full, greenFromBase(vg))
		blue := leafOrZero(full, blueFromBase(vg))
		pad2 := leafOrZero(full, pad2FromBase(vg))
		valueNode = zerohash.Combine(zerohash.Combine(red, green), zerohash.Combine(blue, pad2))
	}
	right := zerohash.Combine(valueNode, leafOrZero(full, padFromBase(base)))

	return zerohash.Combine(left, right)
}

// LeafEntry is one explicit chunk a witness carries: a generalized index
// paired with its 32-byte value.
type LeafEntry struct {
	Index tree.BigIndex
	Value [32]byte
}

// LeafEntries returns every leaf of a touched account's subtree, in the
// irregular shape the package doc describes, reading values out of full
// and defaulting any missing slot (almost always the padding slots) to
// zero.
func LeafEntries(schema Schema, full map[tree.BigIndex][32]byte, base tree.BigIndex) []LeafEntry {
	lo, hi := pubkeyLoFromBase(base), pubkeyHiFromBase(base)
	nonce := nonceFromBase(base)
	pad := padFromBase(base)
	vg := valueGroupFromBase(base)

	entries := []LeafEntry{
		{lo, leafOrZero(full, lo)},
		{hi, leafOrZero(full, hi)},
		{nonce, leafOrZero(full, nonce)},
	}
	if schema == SchemaSingle {
		entries = append(entries, LeafEntry{vg, leafOrZero(full, vg)})
	} else {
		red, green, blue, pad2 := redFromBase(vg), greenFromBase(vg), blueFromBase(vg), pad2FromBase(vg)
		entries = append(entries,
			LeafEntry{red, leafOrZero(full, red)},
			LeafEntry{green, leafOrZero(full, green)},
			LeafEntry{blue, leafOrZero(full, blue)},
			LeafEntry{pad2, leafOrZero(full, pad2)},
		)
	}
	return append(entries, LeafEntry{pad, leafOrZero(full, pad)})
}
