package chain

import (
	"errors"

	"github.com/ComposableFi/emulated-light-client-sub001/pkg/adapter"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/canon"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/ghash"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/validator"
)

// Block is a single block of the emulated guest chain. Its height and
// timestamp are taken from the host chain -- guest blocks carry no
// timestamp of their own. A block is identified by the hash CalcHash
// returns.
//
// Each block belongs to an epoch, identified by EpochID: the hash of the
// block that introduced it via NextEpoch. A new epoch becomes current
// starting from the block immediately following the one that defines it.
type Block struct {
	version        byte
	PrevBlockHash  ghash.Hash
	BlockHeight    BlockHeight
	HostHeight     HostHeight
	HostTimestamp  uint64
	StateRoot      ghash.Hash
	EpochID        ghash.Hash
	NextEpoch      *validator.Epoch
}

// ErrBadHostHeight is returned by GenerateNext when the proposed host
// height does not strictly exceed the current block's.
var ErrBadHostHeight = errors.New("chain: host height did not increase")

// ErrBadHostTimestamp is returned by GenerateNext when the proposed host
// timestamp does not strictly exceed the current block's.
var ErrBadHostTimestamp = errors.New("chain: host timestamp did not increase")

// IsGenesis reports whether b is a valid genesis block: both PrevBlockHash
// and EpochID are the zero hash.
func (b *Block) IsGenesis() bool {
	return b.PrevBlockHash.IsZero() && b.EpochID.IsZero()
}

// encode appends b's canonical encoding to enc: version byte, previous
// block hash, block height, host height, host timestamp, state root,
// epoch id, and the optional next epoch (tag byte + payload).
func (b *Block) encode(enc *canon.Encoder) {
	enc.Version(b.version)
	enc.Raw(b.PrevBlockHash[:])
	enc.U64(uint64(b.BlockHeight))
	enc.U64(uint64(b.HostHeight))
	enc.U64(b.HostTimestamp)
	enc.Raw(b.StateRoot[:])
	enc.Raw(b.EpochID[:])
	enc.OptionTag(b.NextEpoch != nil)
	if b.NextEpoch != nil {
		enc.Raw(b.NextEpoch.Commitment().Bytes())
	}
}

// CalcHash returns the block's identifying hash: the digest of its
// canonical encoding. This is the message signers sign over.
func (b *Block) CalcHash() ghash.Hash {
	enc := canon.NewEncoder()
	b.encode(enc)
	return ghash.Sum(enc.Bytes())
}

// Signer is the capability interface a host supplies to sign block
// hashes. Like adapter.Verifier, the core never holds or generates private
// key material itself.
type Signer interface {
	Sign(message []byte) validator.Signature
}

// Sign signs b's hash with signer.
func (b *Block) Sign(signer Signer) validator.Signature {
	hash := b.CalcHash()
	return signer.Sign(hash[:])
}

// Verify reports whether signature is a valid signature over b's hash by
// pubkey, using v.
func (b *Block) Verify(v adapter.Verifier, pubkey validator.PubKey, signature validator.Signature) bool {
	return v.Verify(b.CalcHash(), pubkey, signature)
}

// GenerateNext derives the next block from b: prevBlockHash = hash(b),
// block height incremented by one, and epoch id either inherited from b
// (if b did not define a new epoch) or set to hash(b) (if it did, meaning
// the new epoch activates starting with this very block).
func (b *Block) GenerateNext(hostHeight HostHeight, hostTimestamp uint64, stateRoot ghash.Hash, nextEpoch *validator.Epoch) (*Block, error) {
	if hostHeight <= b.HostHeight {
		return nil, ErrBadHostHeight
	}
	if hostTimestamp <= b.HostTimestamp {
		return nil, ErrBadHostTimestamp
	}

	prevBlockHash := b.CalcHash()
	epochID := b.EpochID
	if b.NextEpoch != nil {
		epochID = prevBlockHash
	}
	return &Block{
		version:       canon.VersionZero,
		PrevBlockHash: prevBlockHash,
		BlockHeight:   b.BlockHeight.Next(),
		HostHeight:    hostHeight,
		HostTimestamp: hostTimestamp,
		StateRoot:     stateRoot,
		EpochID:       epochID,
		NextEpoch:     nextEpoch,
	}, nil
}

// GenerateGenesis constructs a new genesis block: one whose previous block
// hash and epoch id are both the zero hash, and whose next epoch is always
// present.
func GenerateGenesis(hostHeight HostHeight, hostTimestamp uint64, stateRoot ghash.Hash, nextEpoch *validator.Epoch) *Block {
	return &Block{
		version:       canon.VersionZero,
		PrevBlockHash: ghash.Hash{},
		BlockHeight:   0,
		HostHeight:    hostHeight,
		HostTimestamp: hostTimestamp,
		StateRoot:     stateRoot,
		EpochID:       ghash.Hash{},
		NextEpoch:     nextEpoch,
	}
}
