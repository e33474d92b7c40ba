// Command sheth is the entry point for building and executing stateless
// blocks against the account tree described in pkg/tree, pkg/account and
// pkg/state.
//
// Usage:
//
//	sheth execute --blob <path> --preroot <hex> [flags]
//	sheth demo [flags]
//	sheth health [flags]
//
// Flags:
//
//	--datadir    Data directory path (default: ~/.sheth)
//	--height     Address-space height, 1-256 (default: 256)
//	--schema     Account schema: single, rgb (default: rgb)
//	--verbosity  Log level 0-5 (default: 3)
//	--metrics    Enable metrics collection (default: false)
//	--version    Print version and exit
package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	logpkg "github.com/quilt/sheth/pkg/log"
	"github.com/quilt/sheth/pkg/node"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: sheth <execute|demo|health> [flags]")
		return 2
	}

	sub, rest := args[0], args[1:]

	cfg, blobPath, prerootHex, exit, code := parseFlags(sub, rest)
	if exit {
		return code
	}

	cfg.LogLevel = node.VerbosityToLogLevel(cfg.Verbosity)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logpkg.SetDefault(logpkg.New(level))

	logpkg.Info("sheth starting", "version", version, "subcommand", sub,
		"height", cfg.Height, "schema", cfg.Schema, "verbosity", cfg.Verbosity)

	switch sub {
	case "execute":
		return runExecute(cfg, blobPath, prerootHex)
	case "demo":
		return runDemo(cfg)
	case "health":
		return runHealth(cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", sub)
		return 2
	}
}

// parseFlags parses CLI arguments into a Config plus the execute-only
// positional inputs. Returns whether the caller should exit immediately and
// with what code.
func parseFlags(sub string, args []string) (cfg node.Config, blobPath, prerootHex string, exit bool, code int) {
	cfg = node.DefaultConfig()
	fs := newFlagSet(&cfg)

	fs.StringVar(&blobPath, "blob", "", "path to a block blob (execute only)")
	fs.StringVar(&prerootHex, "preroot", "", "hex-encoded claimed pre-state root (execute only)")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, blobPath, prerootHex, true, 2
	}

	if *showVersion {
		fmt.Printf("sheth %s (commit %s)\n", version, commit)
		return cfg, blobPath, prerootHex, true, 0
	}

	if sub == "execute" && (blobPath == "" || prerootHex == "") {
		fmt.Fprintln(os.Stderr, "execute requires --blob and --preroot")
		return cfg, blobPath, prerootHex, true, 2
	}

	return cfg, blobPath, prerootHex, false, 0
}

// newFlagSet creates a flag.FlagSet that binds all CLI flags to the given
// Config.
func newFlagSet(cfg *node.Config) *flagSet {
	fs := newCustomFlagSet("sheth")
	fs.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "data directory path")
	fs.UintVar(&cfg.Height, "height", cfg.Height, "address-space height, 1-256")
	fs.StringVar(&cfg.Schema, "schema", cfg.Schema, "account schema (single, rgb)")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-5 (0-1=error, 2=warn, 3=info, 4-5=debug)")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "enable metrics collection")
	return fs
}

func decodeRoot(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("invalid hex root: %w", err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("root must be 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
