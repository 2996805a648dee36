package chain

import (
	"errors"
	"math"

	"github.com/holiman/uint256"
)

// MaxBlockAgeDisabled is the max_block_age_ns value that disables the
// age-forced-block feature entirely: a Config with this value never forces
// a block into existence solely because enough wall-clock time has passed.
const MaxBlockAgeDisabled = uint64(math.MaxUint64)

// Config holds the chain policies that govern block and epoch production.
// It is not itself part of any block's canonical encoding -- it only
// matters when a host calls into the manager to generate a new block.
//
// Fields are unexported and reached through accessor methods so that
// Config satisfies validator.CandidateConfig structurally without exposing
// mutable state a caller could alias around Update's validation.
type Config struct {
	minValidators     uint16
	maxValidators     uint16
	minValidatorStake *uint256.Int
	minTotalStake     *uint256.Int
	minQuorumStake    *uint256.Int
	minBlockLength    uint64
	maxBlockAgeNS     uint64
	minEpochLength    uint64
}

var ErrBadConfig = errors.New("chain: config field must be non-zero")

// NewConfig validates and constructs a Config from its external fields.
func NewConfig(minValidators, maxValidators uint16, minValidatorStake, minTotalStake, minQuorumStake *uint256.Int, minBlockLength, maxBlockAgeNS, minEpochLength uint64) (Config, error) {
	c := Config{
		minValidators:     minValidators,
		maxValidators:     maxValidators,
		minValidatorStake: minValidatorStake,
		minTotalStake:     minTotalStake,
		minQuorumStake:    minQuorumStake,
		minBlockLength:    minBlockLength,
		maxBlockAgeNS:     maxBlockAgeNS,
		minEpochLength:    minEpochLength,
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.minValidators == 0 || c.maxValidators == 0 {
		return ErrBadConfig
	}
	if c.minValidatorStake == nil || c.minValidatorStake.IsZero() {
		return ErrBadConfig
	}
	if c.minTotalStake == nil || c.minTotalStake.IsZero() {
		return ErrBadConfig
	}
	if c.minQuorumStake == nil || c.minQuorumStake.IsZero() {
		return ErrBadConfig
	}
	return nil
}

// MinValidators is the lower bound on candidate count.
func (c Config) MinValidators() uint16 { return c.minValidators }

// MaxValidators caps the size of a validator set.
func (c Config) MaxValidators() uint16 { return c.maxValidators }

// MinValidatorStake implements validator.CandidateConfig.
func (c Config) MinValidatorStake() *uint256.Int { return c.minValidatorStake }

// MinTotalStake implements validator.CandidateConfig.
func (c Config) MinTotalStake() *uint256.Int { return c.minTotalStake }

// MinValidatorsCount implements validator.CandidateConfig.
func (c Config) MinValidatorsCount() uint16 { return c.minValidators }

// MinQuorumStake is the floor applied to every epoch's derived quorum.
func (c Config) MinQuorumStake() *uint256.Int { return c.minQuorumStake }

// MinBlockLength is the minimum host-height delta between consecutive
// blocks.
func (c Config) MinBlockLength() uint64 { return c.minBlockLength }

// MaxBlockAgeNS forces a new block after this many nanoseconds even when
// neither the state root nor the validator set has changed.
// MaxBlockAgeDisabled turns the behaviour off.
func (c Config) MaxBlockAgeNS() uint64 { return c.maxBlockAgeNS }

// MinEpochLength is the minimum host-height delta between epoch changes.
func (c Config) MinEpochLength() uint64 { return c.minEpochLength }

var (
	// ErrMinValidatorsHigherThanExisting is returned by Update when the
	// requested min_validators patch exceeds the current validator count.
	ErrMinValidatorsHigherThanExisting = errors.New("chain: min_validators would exceed existing validator count")
	// ErrMinTotalStakeHigherThanExisting is returned by Update when the
	// requested min_total_stake patch exceeds the current head stake.
	ErrMinTotalStakeHigherThanExisting = errors.New("chain: min_total_stake would exceed existing head stake")
	// ErrMinQuorumStakeHigherThanTotalStake is returned by Update when the
	// requested min_quorum_stake patch exceeds the current head stake.
	ErrMinQuorumStakeHigherThanTotalStake = errors.New("chain: min_quorum_stake would exceed existing total stake")
)

// UpdatePatch describes a partial update to a live Config: every field left
// nil is left unchanged.
type UpdatePatch struct {
	MinValidators     *uint16
	MaxValidators     *uint16
	MinValidatorStake *uint256.Int
	MinTotalStake     *uint256.Int
	MinQuorumStake    *uint256.Int
	MinBlockLength    *uint64
	MaxBlockAgeNS     *uint64
	MinEpochLength    *uint64
}

// Update applies patch to c, validating each changed field against the
// chain's current live state: headStake (the current top-validator-set
// stake) and totalValidators (the current candidate count). Returns the
// first violated constraint; c is left unmodified on error.
func (c *Config) Update(headStake *uint256.Int, totalValidators uint16, patch UpdatePatch) error {
	next := *c
	if patch.MinValidators != nil {
		if *patch.MinValidators > totalValidators {
			return ErrMinValidatorsHigherThanExisting
		}
		next.minValidators = *patch.MinValidators
	}
	if patch.MaxValidators != nil {
		next.maxValidators = *patch.MaxValidators
	}
	if patch.MinValidatorStake != nil {
		next.minValidatorStake = patch.MinValidatorStake
	}
	if patch.MinTotalStake != nil {
		if patch.MinTotalStake.Cmp(headStake) > 0 {
			return ErrMinTotalStakeHigherThanExisting
		}
		next.minTotalStake = patch.MinTotalStake
	}
	if patch.MinQuorumStake != nil {
		if patch.MinQuorumStake.Cmp(headStake) > 0 {
			return ErrMinQuorumStakeHigherThanTotalStake
		}
		next.minQuorumStake = patch.MinQuorumStake
	}
	if patch.MinBlockLength != nil {
		next.minBlockLength = *patch.MinBlockLength
	}
	if patch.MaxBlockAgeNS != nil {
		next.maxBlockAgeNS = *patch.MaxBlockAgeNS
	}
	if patch.MinEpochLength != nil {
		next.minEpochLength = *patch.MinEpochLength
	}
	*c = next
	return nil
}
