package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/quilt/sheth/pkg/account"
	"github.com/quilt/sheth/pkg/blob"
	"github.com/quilt/sheth/pkg/composer"
	"github.com/quilt/sheth/pkg/host"
	logpkg "github.com/quilt/sheth/pkg/log"
	"github.com/quilt/sheth/pkg/metrics"
	"github.com/quilt/sheth/pkg/node"
	"github.com/quilt/sheth/pkg/state"
	"github.com/quilt/sheth/pkg/transaction"
)

// servePrometheusMetrics starts the Prometheus exporter in the background
// when cfg.Metrics is set, logging where it listens. It never blocks the
// caller or fails the command: a metrics-server error is logged, not fatal,
// since it is diagnostic infrastructure around the actual block execution.
func servePrometheusMetrics(cfg node.Config) {
	if !cfg.Metrics {
		return
	}
	exporter := metrics.NewPrometheusExporter(metrics.DefaultRegistry, metrics.DefaultPrometheusConfig())
	const addr = "127.0.0.1:9373"
	logpkg.Info("serving metrics", "addr", addr, "path", "/metrics")
	go func() {
		if err := http.ListenAndServe(addr, exporter.Handler()); err != nil {
			logpkg.Error("metrics server stopped", "error", err)
		}
	}()
}

func schemaFromString(s string) account.Schema {
	if s == "single" {
		return account.SchemaSingle
	}
	return account.SchemaRGB
}

// attachEventLogger gives h an EventBus and drains it to debug-level log
// lines for the lifetime of one Execute call, returning a cleanup func.
func attachEventLogger(h *host.Host) func() {
	bus := node.NewEventBus(4)
	h.Events = bus
	sub := bus.SubscribeMultiple(node.EventWitnessBuilt, node.EventBlockExecuted, node.EventBlockFailed)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub.Chan() {
			logpkg.Debug("host event", "type", ev.Type, "data", ev.Data)
		}
	}()
	return func() {
		sub.Unsubscribe()
		<-done
		bus.Close()
	}
}

// runExecute reads a blob file off disk, decodes it, and runs it against
// the claimed pre-state root, printing the resulting post-state root.
func runExecute(cfg node.Config, blobPath, prerootHex string) int {
	servePrometheusMetrics(cfg)

	raw, err := os.ReadFile(blobPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read blob: %v\n", err)
		return 1
	}

	preroot, err := decodeRoot(prerootHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	h := host.NewHost(preroot, raw, cfg.Height, schemaFromString(cfg.Schema))
	stop := attachEventLogger(h)
	result, err := h.Execute()
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "execute: %v\n", err)
		return 1
	}

	logpkg.Info("block executed", "applied", result.Applied, "skipped", result.Skipped)
	fmt.Printf("%x\n", result.PostStateRoot)
	return 0
}

// runDemo builds a tiny synthetic block in memory (two accounts, one
// transfer between them), composes its witness, and executes it, printing
// the pre- and post-state roots. It exists to give an operator something
// runnable that exercises the whole pipeline without needing a real blob
// on disk.
func runDemo(cfg node.Config) int {
	servePrometheusMetrics(cfg)

	schema := schemaFromString(cfg.Schema)

	var alice, bob account.Address
	alice[31] = 1
	bob[31] = 2

	ref := state.NewMockState(cfg.Height, schema)
	ref.SetAccount(alice, account.Account{Nonce: 0, Value: 100, Red: 100})
	ref.SetAccount(bob, account.Account{Nonce: 0, Red: 0})

	preroot, err := ref.Root()
	if err != nil {
		fmt.Fprintf(os.Stderr, "compute pre-root: %v\n", err)
		return 1
	}

	transfer := transaction.Transfer{To: bob, From: alice, Nonce: 0, Amount: 40, Color: account.Red}
	offsets, values := composer.BuildWitnessForBlock(cfg.Height, schema, ref.Leaves(), []transaction.Transfer{transfer})

	b := blob.Blob{Transfers: []transaction.Transfer{transfer}, Offsets: offsets, Values: values}
	raw := blob.Encode(b)

	h := host.NewHost(preroot, raw, cfg.Height, schema)
	stop := attachEventLogger(h)
	result, err := h.Execute()
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "execute: %v\n", err)
		return 1
	}

	fmt.Printf("pre-state root:  %x\n", preroot)
	fmt.Printf("post-state root: %x\n", result.PostStateRoot)
	fmt.Printf("applied=%d skipped=%d\n", result.Applied, result.Skipped)
	return 0
}
