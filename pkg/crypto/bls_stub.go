//go:build !blst

package crypto

// stubBackend reports every signature as valid. It exists so the engine
// builds and runs without the blst CGO dependency; switch to BlstRealBackend
// with -tags blst for actual signature checks.
type stubBackend struct{}

func (stubBackend) Name() string                        { return "stub" }
func (stubBackend) Verify(pubkey, msg, sig []byte) bool { return true }

func defaultBackend() BLSBackend { return stubBackend{} }
