// Package zerohash computes the hashes of empty subtrees ("zero hashes")
// used to fill in the parts of a witness that a block touches but does not
// need to prove explicitly, and the combine function used to hash a pair of
// sibling nodes into their parent.
//
// The zero hash of an empty subtree depends on what an "empty leaf" looks
// like at the bottom of it, which in this tree is the hash of a fully
// zeroed account (see account.EmptyAccountHash) rather than 32 zero bytes:
// an all-zero seed would make an empty address-space subtree and an empty
// single account indistinguishable. ZH therefore takes that seed as a
// parameter instead of hardcoding it, so callers stay in control of which
// account schema's empty hash they are folding upward from.
package zerohash

import "crypto/sha256"

// Combine hashes two 32-byte sibling values into their parent, the way
// every internal node of the account tree is computed: sha256(left||right).
func Combine(left, right [32]byte) [32]byte {
	var buf [64]byte
	copy(buf[0:32], left[:])
	copy(buf[32:64], right[:])
	return sha256.Sum256(buf[:])
}

// ZH returns the root hash of a completely empty subtree of the given
// depth rooted at a leaf equal to seed (depth 0 is just seed itself; depth
// k folds the previous value with itself k times).
func ZH(seed [32]byte, depth int) [32]byte {
	v := seed
	for i := 0; i < depth; i++ {
		v = Combine(v, v)
	}
	return v
}
