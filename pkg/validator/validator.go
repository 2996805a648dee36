// Package validator implements the guest-chain's validator bookkeeping: the
// Validator record itself, the sorted top-K CandidateSet used to decide who
// enters the next epoch, and the immutable, hash-identified Epoch those
// candidates eventually become. None of this package talks to a trie or a
// host chain -- it is pure accounting over public keys and stakes.
package validator

import (
	"bytes"
	"errors"

	"github.com/holiman/uint256"

	"github.com/ComposableFi/emulated-light-client-sub001/pkg/canon"
)

// PubKeySize and SignatureSize are the BLS12-381 MinPk encoding widths: a
// compressed G1 point for public keys, a compressed G2 point for
// signatures.
const (
	PubKeySize    = 48
	SignatureSize = 96
)

// PubKey is a compressed BLS12-381 G1 public key.
type PubKey [PubKeySize]byte

// Bytes returns the raw encoding of p.
func (p PubKey) Bytes() []byte { return p[:] }

// Compare orders public keys lexicographically by their byte encoding; used
// as the tie-breaker when two candidates have equal stake.
func (p PubKey) Compare(o PubKey) int { return bytes.Compare(p[:], o[:]) }

// Signature is a compressed BLS12-381 G2 signature.
type Signature [SignatureSize]byte

// Bytes returns the raw encoding of s.
func (s Signature) Bytes() []byte { return s[:] }

var (
	// ErrZeroStake is returned when a Validator is constructed with a
	// non-positive stake.
	ErrZeroStake = errors.New("validator: stake must be positive")
	// ErrStakeTooLarge is returned when a stake does not fit in 128 bits.
	ErrStakeTooLarge = errors.New("validator: stake exceeds 128 bits")
)

// checkStake validates that stake is a positive value representable in 128
// bits, the NonZeroU128 invariant carried over from the original.
func checkStake(stake *uint256.Int) error {
	if stake == nil || stake.IsZero() {
		return ErrZeroStake
	}
	if stake.BitLen() > 128 {
		return ErrStakeTooLarge
	}
	return nil
}

// Validator is a (public key, stake) pair identifying a participant in an
// epoch's validator set.
type Validator struct {
	// version supports forward-compatible wire changes; always zero today.
	version byte
	Pubkey  PubKey
	Stake   *uint256.Int
}

// New constructs a Validator, rejecting a zero or over-wide stake.
func New(pubkey PubKey, stake *uint256.Int) (Validator, error) {
	if err := checkStake(stake); err != nil {
		return Validator{}, err
	}
	return Validator{version: canon.VersionZero, Pubkey: pubkey, Stake: new(uint256.Int).Set(stake)}, nil
}

// Encode appends the validator's canonical encoding to e: version byte,
// 48-byte pubkey, 16-byte little-endian stake.
func (v Validator) Encode(e *canon.Encoder) {
	e.Version(v.version)
	e.Raw(v.Pubkey[:])
	e.U128(v.Stake)
}

// DecodeValidator reads a Validator back from d, the inverse of Encode.
func DecodeValidator(d *canon.Decoder) (Validator, error) {
	if err := d.Version(); err != nil {
		return Validator{}, err
	}
	raw, err := d.Raw(PubKeySize)
	if err != nil {
		return Validator{}, err
	}
	stake, err := d.U128()
	if err != nil {
		return Validator{}, err
	}
	var v Validator
	v.version = canon.VersionZero
	copy(v.Pubkey[:], raw)
	v.Stake = stake
	return v, checkStake(stake)
}
