package state

import (
	"errors"
	"testing"

	"github.com/quilt/sheth/pkg/account"
	"github.com/quilt/sheth/pkg/zerohash"
)

func chunkUint64ForTest(v uint64) [32]byte {
	var out [32]byte
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

// TestImpDecodesTrivialWitness hand-builds the offsets/values a composer
// would emit for the trivial-tree scenario (height 1, a single touched
// account at address 0, pubkey all-1s, nonce 123, value 42) and checks
// that NewImp reconstructs a root matching the schema hashed directly,
// and that every field reads back correctly.
func TestImpDecodesTrivialWitness(t *testing.T) {
	const height = 1
	schema := account.SchemaSingle
	var addr account.Address // address 0

	acc := account.Account{Nonce: 123, Value: 42}
	for i := range acc.Pubkey {
		acc.Pubkey[i] = 1
	}

	var loChunk, hiChunk [32]byte
	copy(loChunk[:], acc.Pubkey[0:32])
	copy(hiChunk[:16], acc.Pubkey[32:48])

	values := [][32]byte{
		loChunk,                           // index 16: pubkeyLo
		hiChunk,                           // index 17: pubkeyHi
		chunkUint64ForTest(acc.Nonce),     // index 9: nonce
		chunkUint64ForTest(acc.Value),     // index 10: value
		{},                                // index 11: pad
		account.EmptyAccountHash(schema),  // index 3: sibling account (address 1), untouched
	}
	offsets := []uint64{6, 5, 3, 2, 1, 1}
	touched := account.AllLeafIndices(schema, addr, height)

	imp, err := NewImp(height, schema, offsets, values, touched)
	if err != nil {
		t.Fatalf("NewImp: %v", err)
	}

	if v, err := imp.Value(account.Red, addr); err != nil || v != acc.Value {
		t.Fatalf("Value = %d, %v, want %d, nil", v, err, acc.Value)
	}
	if n, err := imp.Nonce(addr); err != nil || n != acc.Nonce {
		t.Fatalf("Nonce = %d, %v, want %d, nil", n, err, acc.Nonce)
	}
	if pk, err := imp.Pubkey(addr); err != nil || pk != acc.Pubkey {
		t.Fatalf("Pubkey = %x, %v, want %x, nil", pk, err, acc.Pubkey)
	}

	gotRoot, err := imp.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	wantRoot := zerohash.Combine(account.Hash(schema, acc), account.EmptyAccountHash(schema))
	if gotRoot != wantRoot {
		t.Fatalf("Root = %x, want %x", gotRoot, wantRoot)
	}
}

func TestImpUpdatePropagatesToRoot(t *testing.T) {
	const height = 1
	schema := account.SchemaSingle
	var addr account.Address

	acc := account.Account{Nonce: 0, Value: 100}
	var loChunk, hiChunk [32]byte

	values := [][32]byte{
		loChunk, hiChunk,
		chunkUint64ForTest(acc.Nonce),
		chunkUint64ForTest(acc.Value),
		{},
		account.EmptyAccountHash(schema),
	}
	offsets := []uint64{6, 5, 3, 2, 1, 1}
	touched := account.AllLeafIndices(schema, addr, height)

	imp, err := NewImp(height, schema, offsets, values, touched)
	if err != nil {
		t.Fatalf("NewImp: %v", err)
	}

	rootBefore, _ := imp.Root()

	if _, err := imp.SubValue(account.Red, addr, 30); err != nil {
		t.Fatalf("SubValue: %v", err)
	}
	if v, _ := imp.Value(account.Red, addr); v != 70 {
		t.Fatalf("Value after SubValue = %d, want 70", v)
	}

	rootAfter, err := imp.Root()
	if err != nil {
		t.Fatalf("Root after update: %v", err)
	}
	if rootBefore == rootAfter {
		t.Fatal("updating a balance should change the root")
	}

	wantRoot := zerohash.Combine(account.Hash(schema, account.Account{Nonce: 0, Value: 70}), account.EmptyAccountHash(schema))
	if rootAfter != wantRoot {
		t.Fatalf("Root after update = %x, want %x", rootAfter, wantRoot)
	}
}

func TestImpOverflowIsRejected(t *testing.T) {
	const height = 1
	schema := account.SchemaSingle
	var addr account.Address

	values := [][32]byte{
		{}, {}, {}, chunkUint64ForTest(5), {}, account.EmptyAccountHash(schema),
	}
	offsets := []uint64{6, 5, 3, 2, 1, 1}
	touched := account.AllLeafIndices(schema, addr, height)

	imp, err := NewImp(height, schema, offsets, values, touched)
	if err != nil {
		t.Fatalf("NewImp: %v", err)
	}

	if _, err := imp.SubValue(account.Red, addr, 10); err != ErrOverflow {
		t.Fatalf("SubValue below zero: err = %v, want ErrOverflow", err)
	}
}

// TestImpMissingIndexIsStateIncomplete checks that reading a field outside
// the witness's touched region surfaces a *StateIncompleteError rather than
// silently defaulting to zero, the key difference between Imp and MockState.
func TestImpMissingIndexIsStateIncomplete(t *testing.T) {
	imp, err := NewImp(4, account.SchemaSingle, []uint64{0}, nil, nil)
	if err != nil {
		t.Fatalf("NewImp: %v", err)
	}

	var addr account.Address
	_, err = imp.Nonce(addr)
	var incomplete *StateIncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("Nonce on an un-witnessed account: err = %v, want *StateIncompleteError", err)
	}
	if !errors.Is(err, ErrStateIncomplete) {
		t.Fatal("*StateIncompleteError should unwrap to ErrStateIncomplete")
	}

	root, err := imp.Root()
	if err != nil {
		t.Fatalf("Root should still be readable: %v", err)
	}
	if root != zerohash.ZH(account.EmptyAccountHash(account.SchemaSingle), 4) {
		t.Fatal("an entirely empty witness's root should be the full zero-hash ladder")
	}
}

func TestNewImpRejectsHeaderMismatch(t *testing.T) {
	_, err := NewImp(4, account.SchemaSingle, []uint64{2}, [][32]byte{{}}, nil)
	if err == nil {
		t.Fatal("expected an error when the header's claimed value count disagrees with len(values)")
	}
}

func TestNewImpRejectsEmptyOffsets(t *testing.T) {
	if _, err := NewImp(4, account.SchemaSingle, nil, nil, nil); err == nil {
		t.Fatal("expected an error for empty offsets")
	}
}
