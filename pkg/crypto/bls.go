// Package crypto wires the account schema's 48-byte pubkey and 96-byte
// signature fields to a real BLS12-381 verifier. The transfer domain never
// touches blst directly; it calls VerifyTransferSignature, which dispatches
// to whichever Backend this build selected.
package crypto

// BLSBackend verifies BLS12-381 signatures in the MinPk scheme (pubkeys in
// G1, signatures in G2). BlstRealBackend (build tag "blst") is the only
// implementation with a real cryptographic check; the default build uses a
// permissive stub so the execution engine runs end to end without CGO.
type BLSBackend interface {
	Name() string
	Verify(pubkey, msg, sig []byte) bool
}

// Backend is the active BLS12-381 signature backend, chosen at build time.
var Backend = defaultBackend()

// VerifyTransferSignature checks a transfer's 96-byte signature against the
// sender's 48-byte compressed pubkey chunk, over msg (the transfer's signed
// byte encoding).
func VerifyTransferSignature(pubkey [48]byte, msg []byte, sig [96]byte) bool {
	return Backend.Verify(pubkey[:], msg, sig[:])
}
