package metrics

// Pre-defined metrics for the stateless execution engine. All metrics live
// in DefaultRegistry so they are globally accessible without passing a
// registry around.

var (
	// ---- Block execution metrics ----

	// BlocksExecuted counts blocks host.Execute has finished, successfully
	// or not.
	BlocksExecuted = DefaultRegistry.Counter("exec.blocks_executed")
	// BlocksFailed counts blocks that aborted with a fatal error (a
	// malformed blob, an incomplete witness, or an overflow).
	BlocksFailed = DefaultRegistry.Counter("exec.blocks_failed")
	// BlockProcessTime records process.Run's wall-clock duration in
	// milliseconds.
	BlockProcessTime = DefaultRegistry.Histogram("exec.block_process_ms")

	// ---- Transaction metrics ----

	// TransfersApplied counts transfers that passed Verify and were
	// applied to state.
	TransfersApplied = DefaultRegistry.Counter("exec.transfers_applied")
	// TransfersSkipped counts transfers skipped for a bad signature or a
	// stale nonce.
	TransfersSkipped = DefaultRegistry.Counter("exec.transfers_skipped")

	// ---- Witness metrics ----

	// WitnessValues tracks the value count of the most recently decoded
	// witness.
	WitnessValues = DefaultRegistry.Gauge("exec.witness_values")
	// WitnessBuildTime records composer.BuildWitness's duration in
	// milliseconds.
	WitnessBuildTime = DefaultRegistry.Histogram("exec.witness_build_ms")
)
