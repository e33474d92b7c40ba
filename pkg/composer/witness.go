// Package composer builds the witness a stateless executor needs to
// process a block: the minimal set of merkle nodes that let it prove and
// mutate only the account fields a block's transactions actually touch,
// leaving everything else implicit via the zero-hash ladder.
//
// The composer is the one component in this system allowed to see the
// whole account tree (it plays the role of the party that still runs a
// full, stateful node); everything downstream of it — the processor, the
// Imp state backend — only ever sees the compressed witness it produces.
//
// Building a witness is three steps, run in order: collect the
// uncompressed proof (every touched leaf plus one collapsed hash per
// untouched sibling subtree), sort the resulting indices into
// bit-alphabetical order, and fold that sorted order into the offset
// table a decoder can walk without ever seeing an explicit index.
package composer

import (
	"fmt"
	"sort"
	"time"

	"github.com/quilt/sheth/pkg/account"
	"github.com/quilt/sheth/pkg/metrics"
	"github.com/quilt/sheth/pkg/state"
	"github.com/quilt/sheth/pkg/tree"
	"github.com/quilt/sheth/pkg/transaction"
	"github.com/quilt/sheth/pkg/zerohash"
)

// TouchedLeaves returns every generalized index a block of transfers needs
// proven, expanded to the full leaf set of each sender/recipient account
// (both pubkey chunks, the nonce, every balance slot, and the padding
// slots): a witness always carries a touched account's whole subtree, not
// just the fields a transfer happens to mutate.
func TouchedLeaves(height uint, schema account.Schema, transfers []transaction.Transfer) []tree.BigIndex {
	seen := make(map[account.Address]bool)
	var addrs []account.Address
	addAddr := func(addr account.Address) {
		if !seen[addr] {
			seen[addr] = true
			addrs = append(addrs, addr)
		}
	}
	for _, t := range transfers {
		addAddr(t.From)
		addAddr(t.To)
	}

	var out []tree.BigIndex
	for _, addr := range addrs {
		out = append(out, account.AllLeafIndices(schema, addr, height)...)
	}
	return out
}

// touchedUnder reports whether gi is an ancestor of (or equal to) some
// index in touched, i.e. whether gi's subtree contains something the
// witness must carry explicitly.
func touchedUnder(gi tree.BigIndex, touched []tree.BigIndex) bool {
	for _, t := range touched {
		if gi.IsAncestorOf(t) {
			return true
		}
	}
	return false
}

// anyKnownUnder reports whether the reference tree full has any
// materialized chunk under gi, so an untouched subtree with no known data
// can be collapsed straight to the zero-hash ladder instead of being
// walked.
func anyKnownUnder(full map[tree.BigIndex][32]byte, gi tree.BigIndex) bool {
	for k := range full {
		if gi.IsAncestorOf(k) {
			return true
		}
	}
	return false
}

// collectLeaves walks the outer address tree (uniform depth, one level per
// bit of the address) down to the account-base level, then switches to the
// account schema's own irregular shape: a touched base expands to every
// field of the account via account.LeafEntries, an untouched base collapses
// to the single real hash of whatever is there via account.SubtreeHash, an
// untouched, entirely-empty branch above the base level collapses to the
// zero-hash ladder seeded by the schema's empty-account hash, and any other
// untouched branch collapses to the single hash of its whole subtree.
func collectLeaves(full map[tree.BigIndex][32]byte, touched []tree.BigIndex, schema account.Schema, height uint, emptySeed [32]byte, gi tree.BigIndex, depth int) []account.LeafEntry {
	if depth == int(height) {
		if touchedUnder(gi, touched) {
			return account.LeafEntries(schema, full, gi)
		}
		return []account.LeafEntry{{Index: gi, Value: account.SubtreeHash(schema, full, gi)}}
	}

	if !touchedUnder(gi, touched) {
		if !anyKnownUnder(full, gi) {
			return []account.LeafEntry{{Index: gi, Value: zerohash.ZH(emptySeed, int(height)-depth)}}
		}
		// Each untouched child collapses to exactly one entry as well.
		l := collectLeaves(full, touched, schema, height, emptySeed, gi.LeftChild(), depth+1)
		r := collectLeaves(full, touched, schema, height, emptySeed, gi.RightChild(), depth+1)
		return []account.LeafEntry{{Index: gi, Value: zerohash.Combine(l[0].Value, r[0].Value)}}
	}

	left := collectLeaves(full, touched, schema, height, emptySeed, gi.LeftChild(), depth+1)
	right := collectLeaves(full, touched, schema, height, emptySeed, gi.RightChild(), depth+1)
	return append(left, right...)
}

// normalizedBits returns gi's root-to-leaf path bits, right-padded with 1s
// up to maxDepth entries. This is the "normalized" index form component J
// partitions on: two indices at different depths compare as if the
// shallower one's subtree were entirely right-leaning.
func normalizedBits(gi tree.BigIndex, maxDepth int) []bool {
	d := gi.Depth()
	out := make([]bool, maxDepth)
	for k := 0; k < d; k++ {
		out[k] = gi.BitAt(d - 1 - k)
	}
	for k := d; k < maxDepth; k++ {
		out[k] = true
	}
	return out
}

// BitAlphaCompare orders two generalized indices by their left-aligned bit
// pattern: left-shift each so its most significant bit sits at the same
// position, compare numerically, and on a tie prefer the smaller shift
// (the deeper original index). This is the order that matches the tree's
// left-to-right leaf order regardless of differing depths, and it is what
// the offset table's recursive encoding assumes the index list is in.
func BitAlphaCompare(a, b tree.BigIndex) int {
	m := a.BitLen()
	if b.BitLen() > m {
		m = b.BitLen()
	}
	sa, sb := m-a.BitLen(), m-b.BitLen()

	shiftedA, shiftedB := a, b
	for i := a.BitLen(); i < m; i++ {
		shiftedA = shiftedA.LeftChild()
	}
	for i := b.BitLen(); i < m; i++ {
		shiftedB = shiftedB.LeftChild()
	}

	if c := shiftedA.Cmp(shiftedB); c != 0 {
		return c
	}
	if sa == sb {
		return 0
	}
	if sa < sb {
		return -1
	}
	return 1
}

// SortBitAlpha sorts indices in place into bit-alphabetical order.
func SortBitAlpha(indices []tree.BigIndex) {
	sort.Slice(indices, func(i, j int) bool {
		return BitAlphaCompare(indices[i], indices[j]) < 0
	})
}

// buildOffsetRows is the recursive helper of component J: partition rows
// by their leading bit, emit the left partition's size (when nonzero),
// then recurse left then right.
func buildOffsetRows(rows [][]bool) []uint64 {
	if len(rows) <= 1 || len(rows[0]) == 0 {
		return nil
	}
	var left, right [][]bool
	for _, r := range rows {
		if r[0] {
			right = append(right, r[1:])
		} else {
			left = append(left, r[1:])
		}
	}

	var out []uint64
	if len(left) > 0 {
		out = append(out, uint64(len(left)))
	}
	out = append(out, buildOffsetRows(left)...)
	out = append(out, buildOffsetRows(right)...)
	return out
}

// BuildOffsetTable computes the offset table for an already bit-alpha
// sorted index list: offsets[0] is the total leaf count, and offsets[1:]
// gives, for each internal split of the recursive partition, the size of
// its left subtree.
func BuildOffsetTable(sorted []tree.BigIndex, maxDepth int) []uint64 {
	rows := make([][]bool, len(sorted))
	for i, idx := range sorted {
		rows[i] = normalizedBits(idx, maxDepth)
	}
	out := []uint64{uint64(len(sorted))}
	return append(out, buildOffsetRows(rows)...)
}

// maxDepthOf returns the deepest index in indices, which is the only bound
// BuildOffsetTable needs: it right-pads every shallower index's bit vector
// out to this length before partitioning.
func maxDepthOf(indices []tree.BigIndex) int {
	m := 0
	for _, idx := range indices {
		if d := idx.Depth(); d > m {
			m = d
		}
	}
	return m
}

// BuildWitness computes the compressed witness (offsets, values) a
// stateless executor needs to verify and apply the given touched leaves
// against full, the reference account tree.
func BuildWitness(height uint, schema account.Schema, full map[tree.BigIndex][32]byte, touched []tree.BigIndex) ([]uint64, [][32]byte) {
	start := time.Now()
	defer func() {
		metrics.WitnessBuildTime.Observe(float64(time.Since(start).Milliseconds()))
	}()

	if len(touched) == 0 && len(full) == 0 {
		return []uint64{0}, nil
	}

	emptySeed := account.EmptyAccountHash(schema)
	entries := collectLeaves(full, touched, schema, height, emptySeed, tree.Root, 0)

	indices := make([]tree.BigIndex, len(entries))
	values := make(map[tree.BigIndex][32]byte, len(entries))
	for i, e := range entries {
		indices[i] = e.Index
		values[e.Index] = e.Value
	}
	SortBitAlpha(indices)

	sortedValues := make([][32]byte, len(indices))
	for i, idx := range indices {
		sortedValues[i] = values[idx]
	}

	offsets := BuildOffsetTable(indices, maxDepthOf(indices))
	return offsets, sortedValues
}

// BuildWitnessForBlock is BuildWitness specialized to a slice of transfers:
// it derives the touched leaves itself from the transfers' senders and
// recipients.
func BuildWitnessForBlock(height uint, schema account.Schema, full map[tree.BigIndex][32]byte, transfers []transaction.Transfer) ([]uint64, [][32]byte) {
	return BuildWitness(height, schema, full, TouchedLeaves(height, schema, transfers))
}

// FullLeaves extracts the raw leaf map of a MockState so it can be handed
// to BuildWitness as the reference account tree.
func FullLeaves(ref *state.MockState) map[tree.BigIndex][32]byte {
	return ref.Leaves()
}

// ValidateWitness is a cheap sanity check a composer can run on its own
// output before handing it to anyone: the header must match the value
// count, and every offset must be within range of the values it could
// possibly describe.
func ValidateWitness(offsets []uint64, values [][32]byte) error {
	if len(offsets) == 0 {
		return fmt.Errorf("composer: empty offsets, expected at least a header entry")
	}
	if offsets[0] != uint64(len(values)) {
		return fmt.Errorf("composer: header says %d values, got %d", offsets[0], len(values))
	}
	for i, o := range offsets[1:] {
		if o > offsets[0] {
			return fmt.Errorf("composer: offset %d is %d, more than the %d values", i+1, o, offsets[0])
		}
	}
	return nil
}
