// Package process runs a block's transactions against a state.State in
// order, the same way a stateless validator does: verify each transaction
// against the current state, skip it silently if verification fails, apply
// it otherwise, and stop the whole block on the first error that is not a
// per-transaction failure.
package process

import (
	"errors"
	"fmt"
	"time"

	"github.com/quilt/sheth/pkg/log"
	"github.com/quilt/sheth/pkg/metrics"
	"github.com/quilt/sheth/pkg/state"
	"github.com/quilt/sheth/pkg/transaction"
)

// Result summarizes the outcome of processing a block of transactions.
type Result struct {
	Applied int
	Skipped int
	Root    [32]byte
}

// Run applies txs to st in order and returns the resulting root. A
// transaction that fails Verify with ErrSignatureInvalid or ErrNonceInvalid
// is counted as skipped and does not affect state; any other error returned
// by Verify or Apply (state.ErrStateIncomplete, a *state.StateIncompleteError,
// or state.ErrOverflow) aborts the whole block.
func Run(st state.State, txs []transaction.Transaction) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.BlockProcessTime.Observe(float64(time.Since(start).Milliseconds()))
	}()

	var res Result
	for i, tx := range txs {
		if err := tx.Verify(st); err != nil {
			if errors.Is(err, transaction.ErrSignatureInvalid) || errors.Is(err, transaction.ErrNonceInvalid) {
				log.Debug("skipping transaction", "index", i, "reason", err)
				res.Skipped++
				metrics.TransfersSkipped.Inc()
				continue
			}
			return res, fmt.Errorf("process: transaction %d: %w", i, err)
		}

		if err := tx.Apply(st); err != nil {
			return res, fmt.Errorf("process: transaction %d: %w", i, err)
		}
		res.Applied++
		metrics.TransfersApplied.Inc()
	}

	root, err := st.Root()
	if err != nil {
		return res, fmt.Errorf("process: final root: %w", err)
	}
	res.Root = root

	return res, nil
}
