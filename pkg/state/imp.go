package state

import (
	"fmt"

	"github.com/quilt/sheth/pkg/account"
	"github.com/quilt/sheth/pkg/tree"
	"github.com/quilt/sheth/pkg/zerohash"
)

// Imp is the production State backend: it holds only the nodes a
// composer's witness actually handed it (every touched account field, plus
// one collapsed hash per untouched sibling subtree, empty or not) and treats
// any generalized index outside that set as out of scope rather than zero.
// Reading or writing such an index returns a *StateIncompleteError, which a
// processor must treat as fatal to the whole block.
//
// The get/update shape mirrors pkg/composer's own witness construction:
// composer.BuildWitness walks the same generalized-index tree, combining
// known sibling pairs up to a root. Imp does the same combination in
// reverse, but keeps every intermediate node around so that later updates
// only need to re-walk the path from the changed leaf to the root instead
// of recombining everything.
type Imp struct {
	height  uint
	schema  account.Schema
	touched []tree.BigIndex
	nodes   map[tree.BigIndex][32]byte
}

func touchedUnder(gi tree.BigIndex, touched []tree.BigIndex) bool {
	for _, t := range touched {
		if gi.IsAncestorOf(t) {
			return true
		}
	}
	return false
}

type witnessDecoder struct {
	offsets   []uint64
	values    [][32]byte
	offPos    int
	valPos    int
	height    int
	emptySeed [32]byte
	touched   []tree.BigIndex
	nodes     map[tree.BigIndex][32]byte
}

// decode walks the offset tree the same way composer.BuildOffsetTable
// built it: a node's budget is the number of witness values that fall
// under it, and budget == 1 always means "this is a leaf", regardless of
// which depth it happens to sit at — the irregular depth of the account
// schema falls out of the offsets themselves, not of any depth arithmetic
// here. Only the untouched branch, which never descends below the
// account-base level, needs depth at all, to pick the right rung of the
// zero-hash ladder.
func (d *witnessDecoder) decode(gi tree.BigIndex, depth int, budget uint64) ([32]byte, error) {
	if !touchedUnder(gi, d.touched) {
		if budget == 0 {
			v := zerohash.ZH(d.emptySeed, d.height-depth)
			d.nodes[gi] = v
			return v, nil
		}
		if budget != 1 {
			return [32]byte{}, fmt.Errorf("state: witness malformed: untouched branch at %s claims %d values", gi, budget)
		}
		v, err := d.nextValue()
		if err != nil {
			return [32]byte{}, err
		}
		d.nodes[gi] = v
		return v, nil
	}

	if budget == 1 {
		v, err := d.nextValue()
		if err != nil {
			return [32]byte{}, err
		}
		d.nodes[gi] = v
		return v, nil
	}

	if d.offPos >= len(d.offsets) {
		return [32]byte{}, &StateIncompleteError{Index: gi}
	}
	leftBudget := d.offsets[d.offPos]
	d.offPos++
	if leftBudget > budget {
		return [32]byte{}, fmt.Errorf("state: witness malformed: left budget %d exceeds node budget %d at %s", leftBudget, budget, gi)
	}
	rightBudget := budget - leftBudget

	leftVal, err := d.decode(gi.LeftChild(), depth+1, leftBudget)
	if err != nil {
		return [32]byte{}, err
	}
	rightVal, err := d.decode(gi.RightChild(), depth+1, rightBudget)
	if err != nil {
		return [32]byte{}, err
	}
	combined := zerohash.Combine(leftVal, rightVal)
	d.nodes[gi] = combined
	return combined, nil
}

func (d *witnessDecoder) nextValue() ([32]byte, error) {
	if d.valPos >= len(d.values) {
		return [32]byte{}, fmt.Errorf("state: witness malformed: ran out of values at offset %d", d.valPos)
	}
	v := d.values[d.valPos]
	d.valPos++
	return v, nil
}

// NewImp decodes a composer-produced witness (offsets, values, as built by
// composer.BuildWitness) into an Imp ready to verify and apply transactions
// against the given touched leaves. touched must be exactly the set of
// generalized indices the witness was built for; a mismatch surfaces as a
// *StateIncompleteError the first time a missing index is requested.
func NewImp(height uint, schema account.Schema, offsets []uint64, values [][32]byte, touched []tree.BigIndex) (*Imp, error) {
	if len(offsets) == 0 {
		return nil, fmt.Errorf("state: empty witness offsets")
	}
	total := offsets[0]
	if total != uint64(len(values)) {
		return nil, fmt.Errorf("state: witness header claims %d values, got %d", total, len(values))
	}

	emptySeed := account.EmptyAccountHash(schema)
	nodes := make(map[tree.BigIndex][32]byte)

	if total == 0 {
		nodes[tree.Root] = zerohash.ZH(emptySeed, int(height))
		return &Imp{height: height, schema: schema, touched: touched, nodes: nodes}, nil
	}

	d := &witnessDecoder{
		offsets:   offsets[1:],
		values:    values,
		height:    int(height),
		emptySeed: emptySeed,
		touched:   touched,
		nodes:     nodes,
	}
	if _, err := d.decode(tree.Root, 0, total); err != nil {
		return nil, err
	}

	return &Imp{height: height, schema: schema, touched: touched, nodes: nodes}, nil
}

func (i *Imp) get(idx tree.BigIndex) ([32]byte, error) {
	v, ok := i.nodes[idx]
	if !ok {
		return [32]byte{}, &StateIncompleteError{Index: idx}
	}
	return v, nil
}

// set writes idx's chunk and recombines every ancestor up to the root,
// failing with *StateIncompleteError if a sibling needed along the way was
// never part of the witness.
func (i *Imp) set(idx tree.BigIndex, chunk [32]byte) error {
	if _, ok := i.nodes[idx]; !ok {
		return &StateIncompleteError{Index: idx}
	}
	i.nodes[idx] = chunk

	cur := idx
	for !cur.Equal(tree.Root) {
		parent := cur.Parent()
		sib := cur.Sibling()
		sibVal, ok := i.nodes[sib]
		if !ok {
			return &StateIncompleteError{Index: sib}
		}

		var combined [32]byte
		if cur.IsLeft() {
			combined = zerohash.Combine(i.nodes[cur], sibVal)
		} else {
			combined = zerohash.Combine(sibVal, i.nodes[cur])
		}
		i.nodes[parent] = combined
		cur = parent
	}
	return nil
}

func (i *Imp) Root() ([32]byte, error) {
	v, ok := i.nodes[tree.Root]
	if !ok {
		return [32]byte{}, &StateIncompleteError{Index: tree.Root}
	}
	return v, nil
}

func (i *Imp) Value(color account.TokenColor, addr account.Address) (uint64, error) {
	chunk, err := i.get(account.ValueIndex(i.schema, color, addr, i.height))
	if err != nil {
		return 0, err
	}
	return uint64FromChunk(chunk), nil
}

func (i *Imp) Nonce(addr account.Address) (uint64, error) {
	chunk, err := i.get(account.NonceIndex(addr, i.height))
	if err != nil {
		return 0, err
	}
	return uint64FromChunk(chunk), nil
}

func (i *Imp) Pubkey(addr account.Address) ([48]byte, error) {
	lo, hi := account.PubkeyIndices(addr, i.height)
	loChunk, err := i.get(lo)
	if err != nil {
		return [48]byte{}, err
	}
	hiChunk, err := i.get(hi)
	if err != nil {
		return [48]byte{}, err
	}
	var pk [48]byte
	copy(pk[0:32], loChunk[:])
	copy(pk[32:48], hiChunk[:16])
	return pk, nil
}

func (i *Imp) AddValue(color account.TokenColor, addr account.Address, amount uint64) (uint64, error) {
	idx := account.ValueIndex(i.schema, color, addr, i.height)
	cur, err := i.get(idx)
	if err != nil {
		return 0, err
	}
	next, overflow := addOverflow(uint64FromChunk(cur), amount)
	if overflow {
		return 0, ErrOverflow
	}
	if err := i.set(idx, chunkUint64(next)); err != nil {
		return 0, err
	}
	return next, nil
}

func (i *Imp) SubValue(color account.TokenColor, addr account.Address, amount uint64) (uint64, error) {
	idx := account.ValueIndex(i.schema, color, addr, i.height)
	cur, err := i.get(idx)
	if err != nil {
		return 0, err
	}
	next, overflow := subOverflow(uint64FromChunk(cur), amount)
	if overflow {
		return 0, ErrOverflow
	}
	if err := i.set(idx, chunkUint64(next)); err != nil {
		return 0, err
	}
	return next, nil
}

func (i *Imp) IncNonce(addr account.Address) (uint64, error) {
	idx := account.NonceIndex(addr, i.height)
	cur, err := i.get(idx)
	if err != nil {
		return 0, err
	}
	next, overflow := addOverflow(uint64FromChunk(cur), 1)
	if overflow {
		return 0, ErrOverflow
	}
	if err := i.set(idx, chunkUint64(next)); err != nil {
		return 0, err
	}
	return next, nil
}
