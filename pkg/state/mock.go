package state

import (
	"github.com/quilt/sheth/pkg/account"
	"github.com/quilt/sheth/pkg/tree"
	"github.com/quilt/sheth/pkg/zerohash"
)

// MockState is an in-memory State backed by a plain map, keyed by
// generalized index. It never returns ErrStateIncomplete: any index it has
// not seen is treated as the zero value, exactly like an untouched leaf of
// the real tree. It exists for tests and as the full reference tree whose
// leaves the composer reads while it builds a witness for someone else's
// partial one.
type MockState struct {
	height uint
	schema account.Schema
	leaves map[tree.BigIndex][32]byte
}

// NewMockState returns an empty MockState for the given address-space
// height and account schema.
func NewMockState(height uint, schema account.Schema) *MockState {
	return &MockState{
		height: height,
		schema: schema,
		leaves: make(map[tree.BigIndex][32]byte),
	}
}

// Height returns the address-space height this MockState was built with.
func (m *MockState) Height() uint { return m.height }

// Schema returns the account schema this MockState was built with.
func (m *MockState) Schema() account.Schema { return m.schema }

// Leaves exposes the underlying sparse leaf map, for the composer to walk
// when it decides what a block's witness needs to contain.
func (m *MockState) Leaves() map[tree.BigIndex][32]byte { return m.leaves }

func (m *MockState) get(idx tree.BigIndex) [32]byte {
	if v, ok := m.leaves[idx]; ok {
		return v
	}
	return [32]byte{}
}

func (m *MockState) set(idx tree.BigIndex, v [32]byte) {
	m.leaves[idx] = v
}

func chunkUint64(v uint64) [32]byte {
	var out [32]byte
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

func uint64FromChunk(c [32]byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(c[i]) << (8 * i)
	}
	return v
}

func addOverflow(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}

func subOverflow(a, b uint64) (uint64, bool) {
	if b > a {
		return 0, true
	}
	return a - b, false
}

// SetAccount seeds the map with a fully materialized account, for test
// fixtures and for the composer's view of "the world" before it decides
// what a block needs proven.
func (m *MockState) SetAccount(addr account.Address, a account.Account) {
	lo, hi := account.PubkeyIndices(addr, m.height)
	var loChunk, hiChunk [32]byte
	copy(loChunk[:], a.Pubkey[0:32])
	copy(hiChunk[:16], a.Pubkey[32:48])
	m.set(lo, loChunk)
	m.set(hi, hiChunk)
	m.set(account.NonceIndex(addr, m.height), chunkUint64(a.Nonce))
	if m.schema == account.SchemaSingle {
		m.set(account.ValueIndex(m.schema, account.Red, addr, m.height), chunkUint64(a.Value))
		return
	}
	m.set(account.ValueIndex(m.schema, account.Red, addr, m.height), chunkUint64(a.Red))
	m.set(account.ValueIndex(m.schema, account.Green, addr, m.height), chunkUint64(a.Green))
	m.set(account.ValueIndex(m.schema, account.Blue, addr, m.height), chunkUint64(a.Blue))
}

// Account reconstructs the materialized account at addr from the leaf map.
func (m *MockState) Account(addr account.Address) account.Account {
	lo, hi := account.PubkeyIndices(addr, m.height)
	loChunk := m.get(lo)
	hiChunk := m.get(hi)
	var a account.Account
	copy(a.Pubkey[0:32], loChunk[:])
	copy(a.Pubkey[32:48], hiChunk[:16])
	a.Nonce = uint64FromChunk(m.get(account.NonceIndex(addr, m.height)))
	if m.schema == account.SchemaSingle {
		a.Value = uint64FromChunk(m.get(account.ValueIndex(m.schema, account.Red, addr, m.height)))
		return a
	}
	a.Red = uint64FromChunk(m.get(account.ValueIndex(m.schema, account.Red, addr, m.height)))
	a.Green = uint64FromChunk(m.get(account.ValueIndex(m.schema, account.Green, addr, m.height)))
	a.Blue = uint64FromChunk(m.get(account.ValueIndex(m.schema, account.Blue, addr, m.height)))
	return a
}

// Root recomputes the state root by repeatedly folding the deepest
// remaining node with its sibling, the fold of the uncompressed proof step
// (component H); pkg/composer itself walks the tree top-down and reaches
// the same hashes. Folding deepest-first, rather than
// layer by layer, is what lets this handle the account schema's irregular
// depth: a raw leaf like nonce (shallower) and an internal node like the
// pubkey pair (deeper, itself built from two leaves) get folded at
// whatever point they actually become siblings, instead of assuming every
// leaf starts at the same depth.
func (m *MockState) Root() ([32]byte, error) {
	if len(m.leaves) == 0 {
		return zerohash.ZH(account.EmptyAccountHash(m.schema), int(m.height)), nil
	}
	return foldDeepestFirst(m.leaves, m.schema, m.height), nil
}

// foldDeepestFirst combines a sparse node set up to a single root. At each
// step it takes any node at the current deepest depth present, combines it
// with its sibling (materializing the sibling from the zero-hash ladder,
// seeded by the schema's empty-account hash, if it is not present), and
// stores the result at the parent. Processing strictly by descending depth
// guarantees a node's sibling is only ever missing because that whole
// subtree is absent, never because it simply has not been folded yet.
func foldDeepestFirst(leaves map[tree.BigIndex][32]byte, schema account.Schema, height uint) [32]byte {
	cur := make(map[tree.BigIndex][32]byte, len(leaves))
	for k, v := range leaves {
		cur[k] = v
	}
	emptySeed := account.EmptyAccountHash(schema)

	for {
		if len(cur) == 1 {
			if v, ok := cur[tree.Root]; ok {
				return v
			}
		}

		deepest := tree.Root
		found := false
		for idx := range cur {
			if !found || idx.Depth() > deepest.Depth() {
				deepest = idx
				found = true
			}
		}
		if !found {
			return zerohash.ZH(emptySeed, int(height))
		}
		if deepest.Equal(tree.Root) {
			return cur[tree.Root]
		}

		parent := deepest.Parent()
		sib := deepest.Sibling()
		v := cur[deepest]
		sibVal, ok := cur[sib]
		if !ok {
			if sib.Depth() <= int(height) {
				// Sibling is in the outer address tree: an entire
				// account (or sub-tree of accounts) nobody ever
				// populated, so its collapsed value is the zero-hash
				// ladder seeded by an empty account.
				sibVal = zerohash.ZH(emptySeed, int(height)-sib.Depth())
			}
			// Otherwise sib is inside an account's own schema shape.
			// SetAccount always sets both pubkey chunks, the nonce, and
			// every balance slot, so the only position it ever leaves
			// unset is padding, which is a raw leaf that is simply zero
			// — the zero-value [32]byte{} default already holds it.
		}

		var combined [32]byte
		if deepest.IsLeft() {
			combined = zerohash.Combine(v, sibVal)
		} else {
			combined = zerohash.Combine(sibVal, v)
		}

		delete(cur, deepest)
		delete(cur, sib)
		cur[parent] = combined
	}
}

func (m *MockState) Value(color account.TokenColor, addr account.Address) (uint64, error) {
	return uint64FromChunk(m.get(account.ValueIndex(m.schema, color, addr, m.height))), nil
}

func (m *MockState) Nonce(addr account.Address) (uint64, error) {
	return uint64FromChunk(m.get(account.NonceIndex(addr, m.height))), nil
}

func (m *MockState) Pubkey(addr account.Address) ([48]byte, error) {
	lo, hi := account.PubkeyIndices(addr, m.height)
	var pk [48]byte
	loChunk, hiChunk := m.get(lo), m.get(hi)
	copy(pk[0:32], loChunk[:])
	copy(pk[32:48], hiChunk[:16])
	return pk, nil
}

func (m *MockState) AddValue(color account.TokenColor, addr account.Address, amount uint64) (uint64, error) {
	idx := account.ValueIndex(m.schema, color, addr, m.height)
	cur := uint64FromChunk(m.get(idx))
	next, overflow := addOverflow(cur, amount)
	if overflow {
		return 0, ErrOverflow
	}
	m.set(idx, chunkUint64(next))
	return next, nil
}

func (m *MockState) SubValue(color account.TokenColor, addr account.Address, amount uint64) (uint64, error) {
	idx := account.ValueIndex(m.schema, color, addr, m.height)
	cur := uint64FromChunk(m.get(idx))
	next, overflow := subOverflow(cur, amount)
	if overflow {
		return 0, ErrOverflow
	}
	m.set(idx, chunkUint64(next))
	return next, nil
}

func (m *MockState) IncNonce(addr account.Address) (uint64, error) {
	idx := account.NonceIndex(addr, m.height)
	cur := uint64FromChunk(m.get(idx))
	next, overflow := addOverflow(cur, 1)
	if overflow {
		return 0, ErrOverflow
	}
	m.set(idx, chunkUint64(next))
	return next, nil
}
