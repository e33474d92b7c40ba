// Package state defines the interface a transaction processor uses to
// read and mutate account balances and nonces, and two implementations
// of it: Imp, backed by a multiproof (the production path, used inside
// the stateless executor), and MockState, an in-memory map used by tests
// and as the reference tree the composer reads while building a block's
// witness.
package state

import (
	"errors"

	"github.com/quilt/sheth/pkg/account"
	"github.com/quilt/sheth/pkg/tree"
)

// Errors returned by State implementations. ErrOverflow and
// ErrStateIncomplete are fatal to whatever block is being processed;
// they are not per-transaction failures.
var (
	// ErrStateIncomplete is returned when a requested generalized index
	// was not included in the witness handed to Imp.
	ErrStateIncomplete = errors.New("state: index not present in witness")

	// ErrOverflow is returned when a balance or nonce update would wrap
	// past its 64-bit range.
	ErrOverflow = errors.New("state: arithmetic overflow")
)

// StateIncompleteError carries the specific missing index, mirroring the
// original Error::StateIncomplete(index) variant so callers can report
// exactly what was missing.
type StateIncompleteError struct {
	Index tree.BigIndex
}

func (e *StateIncompleteError) Error() string {
	return "state: index " + e.Index.String() + " not present in witness"
}

func (e *StateIncompleteError) Unwrap() error { return ErrStateIncomplete }

// State is the interface transaction processing uses to read and update
// account balances and nonces. Single-balance backends ignore the color
// argument.
type State interface {
	// Root returns the current state root, recomputing it from any
	// pending updates.
	Root() ([32]byte, error)

	// Value returns an account's balance for the given color.
	Value(color account.TokenColor, addr account.Address) (uint64, error)

	// Nonce returns an account's nonce.
	Nonce(addr account.Address) (uint64, error)

	// Pubkey returns an account's 48-byte compressed BLS12-381 public key.
	Pubkey(addr account.Address) ([48]byte, error)

	// AddValue increases an account's balance by amount, returning the
	// new balance. Returns ErrOverflow on wraparound.
	AddValue(color account.TokenColor, addr account.Address, amount uint64) (uint64, error)

	// SubValue decreases an account's balance by amount, returning the
	// new balance. Returns ErrOverflow on wraparound (including going
	// negative).
	SubValue(color account.TokenColor, addr account.Address, amount uint64) (uint64, error)

	// IncNonce increments an account's nonce by one, returning the new
	// value. Returns ErrOverflow on wraparound.
	IncNonce(addr account.Address) (uint64, error)
}

var (
	_ State = (*Imp)(nil)
	_ State = (*MockState)(nil)
)
