//go:build blst

package crypto

import "testing"

// TestBlstRealBackendRoundTrip exercises real key generation, signing, and
// verification through the blst adapter. Run with: go test -tags blst ./...
func TestBlstRealBackendRoundTrip(t *testing.T) {
	ikm := make([]byte, 32)
	for i := range ikm {
		ikm[i] = byte(i + 1)
	}

	pk, sk := blstGenKeyPair(ikm)
	msg := []byte("transfer: alice -> bob, nonce 0, amount 42")

	sig, err := BlstSign(sk, msg)
	if err != nil {
		t.Fatalf("BlstSign: %v", err)
	}

	backend := &BlstRealBackend{}
	if backend.Name() != "blst-real" {
		t.Fatalf("Name = %q, want blst-real", backend.Name())
	}
	if !backend.Verify(pk, msg, sig) {
		t.Fatal("expected a freshly generated signature to verify")
	}
	if backend.Verify(pk, []byte("tampered message"), sig) {
		t.Fatal("expected verification to fail against a different message")
	}
}

func TestBlstRealBackendRejectsMalformedInput(t *testing.T) {
	backend := &BlstRealBackend{}
	if backend.Verify(nil, []byte("msg"), nil) {
		t.Fatal("expected Verify to reject empty pubkey/signature")
	}
	if backend.Verify([]byte{0x00}, []byte("msg"), make([]byte, 96)) {
		t.Fatal("expected Verify to reject a malformed compressed pubkey")
	}
}

func TestBlstKeyGenRejectsShortIKM(t *testing.T) {
	if _, _, err := BlstKeyGen(make([]byte, 16)); err != ErrBlstInvalidIKM {
		t.Fatalf("err = %v, want ErrBlstInvalidIKM", err)
	}
}

func TestBlstAggregateSigsRejectsEmpty(t *testing.T) {
	if _, err := BlstAggregateSigs(nil); err != ErrBlstNoSignatures {
		t.Fatalf("err = %v, want ErrBlstNoSignatures", err)
	}
}
