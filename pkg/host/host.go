// Package host implements the executor entry point a sandboxed runtime
// (an eWASM-style guest, or any other isolated caller) uses to run one
// block: it is handed a pre-state root and a blob, and must produce the
// post-state root or fail loudly. The four functions below mirror the host
// import surface such a runtime would actually expose to a guest —
// host_pre_state_root, host_blob_size, host_blob_copy, host_post_state_root
// — but here they're plain Go calls over an in-process Host rather than a
// cross-boundary ABI, since there is no actual WASM guest in this repo.
package host

import (
	"fmt"

	"github.com/quilt/sheth/pkg/account"
	"github.com/quilt/sheth/pkg/blob"
	"github.com/quilt/sheth/pkg/composer"
	"github.com/quilt/sheth/pkg/log"
	"github.com/quilt/sheth/pkg/metrics"
	"github.com/quilt/sheth/pkg/node"
	"github.com/quilt/sheth/pkg/process"
	"github.com/quilt/sheth/pkg/state"
	"github.com/quilt/sheth/pkg/transaction"
)

// Host holds the inputs and outputs of one block execution: the blob bytes
// a guest would pull via host_blob_size/host_blob_copy, the pre-state root
// it would read via host_pre_state_root, and the post-state root it writes
// back via host_post_state_root once execution finishes.
type Host struct {
	PreStateRoot [32]byte
	Blob         []byte
	Height       uint
	Schema       account.Schema

	// Events, if set, receives EventBlockExecuted/EventBlockFailed
	// notifications as this host's Execute runs. Nil means no bus is
	// attached and publishing is skipped.
	Events *node.EventBus

	postStateRoot [32]byte
	executed      bool
}

// NewHost constructs a Host for one block.
func NewHost(preStateRoot [32]byte, blobBytes []byte, height uint, schema account.Schema) *Host {
	return &Host{PreStateRoot: preStateRoot, Blob: blobBytes, Height: height, Schema: schema}
}

func (h *Host) publish(eventType node.EventType, data interface{}) {
	if h.Events != nil {
		h.Events.PublishAsync(eventType, data)
	}
}

// HostPreStateRoot returns the root the block's witness was built against.
func (h *Host) HostPreStateRoot() [32]byte {
	return h.PreStateRoot
}

// HostBlobSize returns the length of the raw block blob in bytes.
func (h *Host) HostBlobSize() int {
	return len(h.Blob)
}

// HostBlobCopy copies up to len(dst) bytes of the blob starting at offset
// into dst, returning the number of bytes copied.
func (h *Host) HostBlobCopy(dst []byte, offset int) int {
	if offset < 0 || offset >= len(h.Blob) {
		return 0
	}
	return copy(dst, h.Blob[offset:])
}

// HostPostStateRoot returns the root computed by Execute. It panics if
// called before Execute succeeds, since a guest has no business reading an
// output that was never produced.
func (h *Host) HostPostStateRoot() [32]byte {
	if !h.executed {
		panic("host: HostPostStateRoot called before Execute")
	}
	return h.postStateRoot
}

// Execute decodes the blob, reconstructs an Imp from its witness, verifies
// the witness's own root matches PreStateRoot, runs every transfer through
// process.Run, and records the resulting root for HostPostStateRoot.
// Anything that would make this block invalid (a malformed blob, a witness
// that does not cover what the transfers need, an overflow) is returned as
// an error rather than panicking: a guest is expected to reject the block,
// not crash.
func (h *Host) Execute() (Result, error) {
	metrics.BlocksExecuted.Inc()

	parsed, err := blob.Decode(h.Blob)
	if err != nil {
		metrics.BlocksFailed.Inc()
		h.publish(node.EventBlockFailed, err)
		return Result{}, fmt.Errorf("host: decode blob: %w", err)
	}

	touched := composer.TouchedLeaves(h.Height, h.Schema, parsed.Transfers)
	imp, err := state.NewImp(h.Height, h.Schema, parsed.Offsets, parsed.Values, touched)
	if err != nil {
		metrics.BlocksFailed.Inc()
		h.publish(node.EventBlockFailed, err)
		return Result{}, fmt.Errorf("host: build state from witness: %w", err)
	}
	metrics.WitnessValues.Set(int64(len(parsed.Values)))
	h.publish(node.EventWitnessBuilt, len(parsed.Values))

	preRoot, err := imp.Root()
	if err != nil {
		metrics.BlocksFailed.Inc()
		h.publish(node.EventBlockFailed, err)
		return Result{}, fmt.Errorf("host: read witness root: %w", err)
	}
	if preRoot != h.PreStateRoot {
		metrics.BlocksFailed.Inc()
		err := fmt.Errorf("host: witness root %x does not match claimed pre-state root %x", preRoot, h.PreStateRoot)
		h.publish(node.EventBlockFailed, err)
		return Result{}, err
	}

	txs := make([]transaction.Transaction, len(parsed.Transfers))
	for i, t := range parsed.Transfers {
		txs[i] = t
	}

	log.Debug("executing block", "transfers", len(txs), "witness_values", len(parsed.Values))
	res, err := process.Run(imp, txs)
	if err != nil {
		metrics.BlocksFailed.Inc()
		h.publish(node.EventBlockFailed, err)
		return Result{}, fmt.Errorf("host: process block: %w", err)
	}

	h.postStateRoot = res.Root
	h.executed = true
	h.publish(node.EventBlockExecuted, res)

	return Result{PostStateRoot: res.Root, Applied: res.Applied, Skipped: res.Skipped}, nil
}

// Result summarizes one block's execution.
type Result struct {
	PostStateRoot [32]byte
	Applied       int
	Skipped       int
}
