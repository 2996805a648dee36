package adapter

import (
	blst "github.com/supranational/blst/bindings/go"

	"github.com/ComposableFi/emulated-light-client-sub001/pkg/ghash"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/validator"
)

// blockSigDST is the domain separation tag guest-chain block signatures are
// verified under. It mirrors the shape of Ethereum's DST
// (BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_, see bls_blst_adapter.go) but
// is scoped to this chain's own signing context so a signature produced for
// one guest chain can never verify against another's block hash.
var blockSigDST = []byte("GUESTCHAIN_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_")

// Verifier checks that sig is a valid signature by pubkey over hash. It is
// the sole capability pkg/chain needs from a signature scheme -- aggregation
// and key generation are host concerns, not part of this interface.
type Verifier interface {
	Verify(hash ghash.Hash, pubkey validator.PubKey, sig validator.Signature) bool
}

// BLSVerifier verifies BLS12-381 signatures (MinPk scheme: 48-byte
// compressed G1 pubkeys, 96-byte compressed G2 signatures) using the blst
// library.
type BLSVerifier struct{}

// NewBLSVerifier returns a ready-to-use BLSVerifier. It carries no state.
func NewBLSVerifier() BLSVerifier { return BLSVerifier{} }

// Verify implements Verifier.
func (BLSVerifier) Verify(hash ghash.Hash, pubkey validator.PubKey, sig validator.Signature) bool {
	pk := new(blst.P1Affine).Uncompress(pubkey.Bytes())
	if pk == nil {
		return false
	}
	s := new(blst.P2Affine).Uncompress(sig.Bytes())
	if s == nil {
		return false
	}
	return s.Verify(true, pk, true, hash[:], blockSigDST)
}

// MockVerifier is a deterministic stand-in for tests that do not exercise
// real cryptography: Accept, when true, makes every signature valid;
// otherwise every signature is rejected. It plays the role the Rust
// signature-verifier crate's mock verifier plays for `guestchain` tests --
// a fixed verdict rather than an actual curve check.
type MockVerifier struct {
	Accept bool
}

// Verify implements Verifier, returning the fixed verdict m.Accept.
func (m MockVerifier) Verify(ghash.Hash, validator.PubKey, validator.Signature) bool {
	return m.Accept
}
