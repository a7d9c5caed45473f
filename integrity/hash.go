// Package integrity provides optional post-transfer content hashing, the
// content-hash supplement SPEC_FULL.md adds beyond the base spec.
// Grounded on the teacher's ssh_cli key-fingerprinting convention
// (streaming hash over the life of an I/O operation) but re-homed onto
// golang.org/x/crypto/blake2b rather than the teacher's ssh subpackage,
// whose key-exchange/auth machinery this protocol has no use for (the
// Non-goal on transport security rules it out; see DESIGN.md).
package integrity

import (
	"encoding/hex"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Hasher incrementally accumulates a BLAKE2b-256 digest over a
// transfer's chunks as they are observed, so the full content never
// needs to be re-read from disk to verify it.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a ready-to-use Hasher.
func NewHasher() *Hasher {
	h, _ := blake2b.New256(nil)
	return &Hasher{h: h}
}

// Write feeds another chunk into the running digest. It never errors (the
// underlying hash.Hash never does either), satisfying io.Writer.
func (h *Hasher) Write(p []byte) (int, error) { return h.h.Write(p) }

// Sum returns the current digest as lowercase hex.
func (h *Hasher) Sum() string { return hex.EncodeToString(h.h.Sum(nil)) }

// SumFile computes the BLAKE2b-256 digest of everything read from r,
// such as an already-written file; it equals what a Hasher fed the same
// bytes returns.
func SumFile(r io.Reader) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
