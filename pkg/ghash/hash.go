// Package ghash implements the 32-byte cryptographic digest type shared by
// every guest-chain consensus component: trie node hashes, epoch
// commitments, and block hashes all commit through this package.
package ghash

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"hash"

	"github.com/decred/base58"
	"golang.org/x/crypto/sha3"
)

// Size is the digest length in bytes.
const Size = 32

// ErrWrongLength is returned when decoding a byte slice that is not exactly
// Size bytes long into a Hash.
var ErrWrongLength = errors.New("ghash: wrong length")

// Hash is an opaque 32-byte digest. The all-zero Hash is reserved: it marks
// the empty-trie root and the genesis previous-block hash (spec.md §3.1). No
// honest preimage is assumed to hash to all zeros.
type Hash [Size]byte

// Zero is the reserved all-zero digest.
var Zero Hash

// IsZero reports whether h is the reserved all-zero digest.
func (h Hash) IsZero() bool { return h == Zero }

// Bytes returns a copy of h as a byte slice.
func (h Hash) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, h[:])
	return out
}

// Hex returns the lowercase hex encoding of h.
func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

// Base64 returns the standard base64 encoding of h.
func (h Hash) Base64() string { return base64.StdEncoding.EncodeToString(h[:]) }

// Base58 returns the base58 (Bitcoin alphabet) encoding of h.
func (h Hash) Base58() string { return base58.Encode(h[:]) }

// String implements fmt.Stringer as the hex form, matching the teacher's
// Hash formatting convention.
func (h Hash) String() string { return h.Hex() }

// FromBytes decodes a 32-byte slice into a Hash. It fails if b is not
// exactly Size bytes — unlike the teacher's left-padding BytesToHash, a
// digest of the wrong length here indicates caller error, not a legitimate
// shorter value, so it is rejected rather than silently padded.
func FromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != Size {
		return h, ErrWrongLength
	}
	copy(h[:], b)
	return h, nil
}

// FromHex decodes a hex string into a Hash.
func FromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	return FromBytes(b)
}

// Builder is a streaming digest builder: it accepts incremental byte chunks
// via Write and produces the final Hash via Sum.
type Builder struct {
	h hash.Hash
}

// NewBuilder returns an empty streaming digest builder.
func NewBuilder() *Builder {
	return &Builder{h: sha3.NewLegacyKeccak256()}
}

// Write appends a chunk of bytes to the digest. It never fails.
func (b *Builder) Write(p []byte) (int, error) { return b.h.Write(p) }

// WriteByte appends a single byte, used pervasively by the canonical
// encoders when hashing tag/version bytes.
func (b *Builder) WriteByte(c byte) error {
	_, err := b.h.Write([]byte{c})
	return err
}

// Sum finalizes the builder and returns the digest. The builder may
// continue to be used afterward (Sum does not reset the underlying state),
// matching hash.Hash semantics.
func (b *Builder) Sum() Hash {
	var h Hash
	copy(h[:], b.h.Sum(nil))
	return h
}

// Sum computes the one-shot digest of the concatenation of chunks.
func Sum(chunks ...[]byte) Hash {
	b := NewBuilder()
	for _, c := range chunks {
		b.Write(c)
	}
	return b.Sum()
}
