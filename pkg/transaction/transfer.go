// Package transaction defines the transaction types a block can carry and
// the stateless checks a processor runs against each one before applying
// its effects.
package transaction

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/quilt/sheth/pkg/account"
	"github.com/quilt/sheth/pkg/crypto"
	"github.com/quilt/sheth/pkg/state"
)

// Errors a Transaction's Verify method can return. None of these are fatal
// to the block: the processor skips the offending transaction and moves on
// to the next one.
var (
	ErrSignatureInvalid = errors.New("transaction: signature invalid")
	ErrNonceInvalid     = errors.New("transaction: nonce invalid")
)

// TransferSize is the wire size of an encoded Transfer: to(32) + from(32) +
// nonce(8) + amount(8) + signature(96).
const TransferSize = 32 + 32 + 8 + 8 + 96

// Transfer moves `Amount` of a single token color from From to To, provided
// From's current nonce matches Nonce and Signature verifies against From's
// on-chain pubkey.
type Transfer struct {
	To        account.Address
	From      account.Address
	Nonce     uint64
	Amount    uint64
	Signature [96]byte

	// Color selects which balance to move under an RGB schema. Ignored
	// under the single-balance schema.
	Color account.TokenColor
}

// Transaction is anything a Processor can verify and apply against a
// state.State. Transfer is the only variant implemented today; Withdrawal
// and Deposit are reserved for later block types that move value across a
// shard or L1 boundary and are intentionally left unimplemented.
type Transaction interface {
	// Verify checks the transaction against st without mutating it.
	// ErrSignatureInvalid and ErrNonceInvalid are the only errors that
	// cause just this transaction to be skipped; any other error
	// (state.ErrStateIncomplete, a *state.StateIncompleteError, or
	// state.ErrOverflow) is fatal to the whole block.
	Verify(st state.State) error

	// Apply mutates st to reflect the transaction's effect. Callers must
	// call Verify first; Apply does not re-check the nonce or signature.
	Apply(st state.State) error
}

// EncodeTransfer serializes t into its TransferSize-byte wire form.
func EncodeTransfer(t Transfer) []byte {
	buf := make([]byte, TransferSize)
	copy(buf[0:32], t.To[:])
	copy(buf[32:64], t.From[:])
	binary.LittleEndian.PutUint64(buf[64:72], t.Nonce)
	binary.LittleEndian.PutUint64(buf[72:80], t.Amount)
	copy(buf[80:176], t.Signature[:])
	return buf
}

// DecodeTransfer parses a TransferSize-byte wire form into a Transfer. The
// signature's corresponding color is not encoded on the wire (single-color
// blocks carry it out of band); callers that need a specific color should
// set t.Color after decoding.
func DecodeTransfer(buf []byte) (Transfer, error) {
	if len(buf) != TransferSize {
		return Transfer{}, fmt.Errorf("transaction: transfer must be %d bytes, got %d", TransferSize, len(buf))
	}
	var t Transfer
	copy(t.To[:], buf[0:32])
	copy(t.From[:], buf[32:64])
	t.Nonce = binary.LittleEndian.Uint64(buf[64:72])
	t.Amount = binary.LittleEndian.Uint64(buf[72:80])
	copy(t.Signature[:], buf[80:176])
	return t, nil
}

// SigningMessage returns the bytes a transfer's signature is computed over:
// everything EncodeTransfer carries except the signature itself, plus the
// color, since a signature must commit to which balance a transfer moves.
func SigningMessage(t Transfer) []byte {
	buf := make([]byte, 32+32+8+8+1)
	copy(buf[0:32], t.To[:])
	copy(buf[32:64], t.From[:])
	binary.LittleEndian.PutUint64(buf[64:72], t.Nonce)
	binary.LittleEndian.PutUint64(buf[72:80], t.Amount)
	buf[80] = byte(t.Color)
	return buf
}

// VerifySignature checks a transfer's signature against the sender's
// on-chain pubkey using the active crypto.Backend.
func VerifySignature(t Transfer, pubkey [48]byte) bool {
	return crypto.VerifyTransferSignature(pubkey, SigningMessage(t), t.Signature)
}

// Verify checks t's signature and nonce against st. It does not mutate st.
func (t Transfer) Verify(st state.State) error {
	pubkey, err := st.Pubkey(t.From)
	if err != nil {
		return err
	}
	if !VerifySignature(t, pubkey) {
		return ErrSignatureInvalid
	}
	nonce, err := st.Nonce(t.From)
	if err != nil {
		return err
	}
	if nonce != t.Nonce {
		return ErrNonceInvalid
	}
	return nil
}

// Apply increments From's nonce, then moves Amount from From to To. The
// nonce is incremented before the balance effects take place, matching the
// ordering a replaying validator must reproduce exactly: a transaction that
// fails with ErrOverflow partway through Apply still leaves From's nonce
// incremented.
func (t Transfer) Apply(st state.State) error {
	if _, err := st.IncNonce(t.From); err != nil {
		return err
	}
	if _, err := st.SubValue(t.Color, t.From, t.Amount); err != nil {
		return err
	}
	if _, err := st.AddValue(t.Color, t.To, t.Amount); err != nil {
		return err
	}
	return nil
}

// Withdrawal reserved for a future block type that burns value out of the
// account tree entirely (e.g. an L1 exit). Not implemented.
type Withdrawal struct {
	From   account.Address
	Nonce  uint64
	Amount uint64
}

// Deposit reserved for a future block type that mints value into the
// account tree from outside it (e.g. an L1 deposit). Not implemented.
type Deposit struct {
	To     account.Address
	Amount uint64
}
