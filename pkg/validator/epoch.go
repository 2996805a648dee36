package validator

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/ComposableFi/emulated-light-client-sub001/pkg/canon"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/ghash"
)

// ErrInvalidEpoch is returned by New and NewWith when the supplied
// validators and quorum stake do not form a valid epoch: an empty
// validator list, a stake overflow, or a quorum above the total stake.
var ErrInvalidEpoch = errors.New("validator: invalid epoch")

// Epoch describes the validator set and quorum threshold in force for a
// contiguous range of blocks. An Epoch's identity is the hash of the block
// that introduces it -- Epoch itself only carries the configuration, not
// its own identifier.
type Epoch struct {
	version     byte
	validators  []Validator
	quorumStake *uint256.Int

	// totalStake is never part of the wire encoding: it is always
	// recomputed from validators on construction so that a tampered
	// total_stake field can never be smuggled in through deserialisation.
	totalStake *uint256.Int
}

// New creates an epoch with a fixed quorum stake. Returns ErrInvalidEpoch if
// validators is empty, any stake overflows 128 bits when summed, or
// quorumStake exceeds the total stake.
func New(validators []Validator, quorumStake *uint256.Int) (*Epoch, error) {
	return NewWith(validators, func(*uint256.Int) *uint256.Int { return quorumStake })
}

// NewWith creates an epoch, deriving the quorum stake from the total stake
// via quorumFn. quorumFn must return a positive value no greater than the
// total stake it is given; otherwise the epoch is invalid.
func NewWith(validators []Validator, quorumFn func(total *uint256.Int) *uint256.Int) (*Epoch, error) {
	if len(validators) == 0 {
		return nil, ErrInvalidEpoch
	}
	total := uint256.NewInt(0)
	for _, v := range validators {
		if err := checkStake(v.Stake); err != nil {
			return nil, ErrInvalidEpoch
		}
		total.Add(total, v.Stake)
		if total.BitLen() > 128 {
			return nil, ErrInvalidEpoch
		}
	}
	quorum := quorumFn(total)
	if quorum == nil || quorum.IsZero() || quorum.Cmp(total) > 0 {
		return nil, ErrInvalidEpoch
	}
	out := make([]Validator, len(validators))
	for i, v := range validators {
		out[i] = Validator{version: canon.VersionZero, Pubkey: v.Pubkey, Stake: new(uint256.Int).Set(v.Stake)}
	}
	return &Epoch{
		version:     canon.VersionZero,
		validators:  out,
		quorumStake: new(uint256.Int).Set(quorum),
		totalStake:  total,
	}, nil
}

// Validators returns the epoch's validator set.
func (e *Epoch) Validators() []Validator { return e.validators }

// QuorumStake returns the stake required to finalise a block in this
// epoch.
func (e *Epoch) QuorumStake() *uint256.Int { return new(uint256.Int).Set(e.quorumStake) }

// TotalStake returns the sum of all validator stakes, recomputed at
// construction time.
func (e *Epoch) TotalStake() *uint256.Int { return new(uint256.Int).Set(e.totalStake) }

// Validator looks up a validator by public key.
func (e *Epoch) Validator(pk PubKey) (Validator, bool) {
	for _, v := range e.validators {
		if v.Pubkey == pk {
			return v, true
		}
	}
	return Validator{}, false
}

// encode appends the epoch's canonical, hash-committed encoding to enc:
// version byte, validator count + validators, quorum stake. total_stake is
// deliberately not serialised -- decoders recompute it so a decoded epoch
// can never carry a forged total.
func (e *Epoch) encode(enc *canon.Encoder) {
	enc.Version(e.version)
	enc.SliceLen(len(e.validators))
	for _, v := range e.validators {
		v.Encode(enc)
	}
	enc.U128(e.quorumStake)
}

// Commitment returns the epoch's identifying hash: the digest of its
// canonical encoding. This is the value a Block's NextEpoch field refers
// to.
func (e *Epoch) Commitment() ghash.Hash {
	enc := canon.NewEncoder()
	e.encode(enc)
	return ghash.Sum(enc.Bytes())
}

// DecodeEpoch reads an Epoch back from d and recomputes its total stake,
// validating the same invariants New does.
func DecodeEpoch(d *canon.Decoder) (*Epoch, error) {
	if err := d.Version(); err != nil {
		return nil, err
	}
	n, err := d.SliceLen()
	if err != nil {
		return nil, err
	}
	validators := make([]Validator, n)
	for i := range validators {
		v, err := DecodeValidator(d)
		if err != nil {
			return nil, err
		}
		validators[i] = v
	}
	quorum, err := d.U128()
	if err != nil {
		return nil, err
	}
	return New(validators, quorum)
}
