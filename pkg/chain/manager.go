package chain

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/ComposableFi/emulated-light-client-sub001/pkg/adapter"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/ghash"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/validator"
)

// pendingBlock is a block awaiting quorum signatures before it is promoted
// to the manager's current block.
type pendingBlock struct {
	next         *Block
	hash         ghash.Hash
	signers      map[validator.PubKey]struct{}
	signingStake *uint256.Int
}

// ErrBadGenesis is returned by NewManager when the supplied block is not a
// valid genesis block.
var ErrBadGenesis = errors.New("chain: genesis block is invalid")

var (
	// ErrHasPendingBlock is returned by GenerateNext while an earlier
	// pending block is still awaiting quorum signatures.
	ErrHasPendingBlock = errors.New("chain: a pending block already exists")
	// ErrBlockTooYoung is returned by GenerateNext when fewer than
	// config.MinBlockLength host heights have elapsed since the head block.
	ErrBlockTooYoung = errors.New("chain: not enough host height has elapsed since the last block")
	// ErrUnchangedState is returned by GenerateNext when neither the state
	// root nor the validator set has changed and config.MaxBlockAgeNS has
	// not yet elapsed since the head block.
	ErrUnchangedState = errors.New("chain: state is unchanged and the block is not old enough to force a new one")
)

var (
	// ErrNoPendingBlock is returned by AddSignature when there is no
	// pending block to sign.
	ErrNoPendingBlock = errors.New("chain: no pending block")
	// ErrBadSignature is returned by AddSignature when the signature does
	// not verify against the pending block's hash.
	ErrBadSignature = errors.New("chain: signature does not verify")
	// ErrBadValidator is returned by AddSignature when the signing pubkey
	// is not a member of the epoch governing the pending block.
	ErrBadValidator = errors.New("chain: signer is not a validator of the pending block's epoch")
)

// Manager is the guest chain's block-production and epoch-rotation state
// machine. It performs no I/O and holds no locks: the host is required to
// serialise calls into a single Manager, matching the single-threaded
// cooperative scheduling model the rest of the core assumes.
//
// Every exported method is atomic: on error, no field is mutated. Success
// is delivered by assigning every changed field only after all
// preconditions have passed -- the same late-field-assignment pattern the
// trie follows by publishing its new root only after every node write.
type Manager struct {
	config Config

	// block is the current head: the latest block signed by quorum.
	block *Block

	// nextEpoch is the epoch governing pendingBlock, i.e. either a copy of
	// block.NextEpoch (if block defined a new epoch) or the epoch that
	// already governed block.
	nextEpoch *validator.Epoch

	pending *pendingBlock

	// epochHeight is the host height at which nextEpoch was defined.
	epochHeight HostHeight

	// stateRoot is the state root staged for the next block; distinct from
	// block.StateRoot, the root already committed on-chain.
	stateRoot ghash.Hash

	candidates *validator.CandidateSet

	verifier adapter.Verifier
	events   adapter.EventSink
}

// NewManager constructs a Manager from a validated genesis block. Returns
// ErrBadGenesis if genesis is not a genesis block or does not define an
// initial epoch.
func NewManager(config Config, genesis *Block, verifier adapter.Verifier, events adapter.EventSink) (*Manager, error) {
	if !genesis.IsGenesis() || genesis.NextEpoch == nil {
		return nil, ErrBadGenesis
	}
	if events == nil {
		events = adapter.NewLogSink(nil)
	}
	return &Manager{
		config:      config,
		block:       genesis,
		nextEpoch:   genesis.NextEpoch,
		pending:     nil,
		epochHeight: genesis.HostHeight,
		stateRoot:   genesis.StateRoot,
		candidates:  validator.NewCandidateSet(config.MaxValidators(), genesis.NextEpoch.Validators()),
		verifier:    verifier,
		events:      events,
	}, nil
}

// Head returns the manager's current, quorum-signed block.
func (m *Manager) Head() *Block { return m.block }

// NextEpoch returns the epoch governing the pending block (or, absent a
// pending block, the epoch that will govern the next one generated).
func (m *Manager) NextEpoch() *validator.Epoch { return m.nextEpoch }

// HasPendingBlock reports whether a block is currently awaiting
// signatures.
func (m *Manager) HasPendingBlock() bool { return m.pending != nil }

// UpdateStateRoot stages state_root to be included in the next generated
// block. It does not itself produce a block or touch any existing pending
// block.
func (m *Manager) UpdateStateRoot(stateRoot ghash.Hash) {
	m.stateRoot = stateRoot
}

// maybeGenerateNextEpoch derives a new epoch from the candidate set's
// current head, if the epoch is old enough to rotate and the candidate
// head has changed since it was last read. Returns nil if neither holds.
func (m *Manager) maybeGenerateNextEpoch(hostHeight HostHeight) *validator.Epoch {
	if !hostHeight.CheckDeltaFrom(m.epochHeight, m.config.MinEpochLength()) {
		return nil
	}
	validators, total, ok := m.candidates.MaybeGetHead()
	if !ok {
		return nil
	}
	epoch, err := validator.NewWith(validators, func(total *uint256.Int) *uint256.Int {
		quorum := new(uint256.Int).Rsh(total, 1)
		quorum.Add(quorum, uint256.NewInt(1))
		if quorum.Cmp(m.config.MinQuorumStake()) < 0 {
			quorum = new(uint256.Int).Set(m.config.MinQuorumStake())
		}
		if quorum.Cmp(total) > 0 {
			quorum = new(uint256.Int).Set(total)
		}
		return quorum
	})
	if err != nil {
		// The candidate set admits only non-zero stakes, but it does not
		// check that they fit in 128 bits; NewWith fails when a stake or
		// the total exceeds 128 bits. Treat that as "nothing to rotate to"
		// rather than propagate the error.
		_ = total
		return nil
	}
	return epoch
}

// GenerateNext produces a new pending block, provided no pending block
// already exists, enough host height has elapsed since the current head,
// and both hostHeight and hostTimestamp exceed the head's (else
// ErrBadHostHeight / ErrBadHostTimestamp). If the state is unchanged (same
// state root, no epoch rotation) it returns ErrUnchangedState, unless
// config.MaxBlockAgeNS is not MaxBlockAgeDisabled and the host-timestamp
// gap since the head is at least that many nanoseconds.
func (m *Manager) GenerateNext(hostHeight HostHeight, hostTimestamp uint64) error {
	if m.pending != nil {
		return ErrHasPendingBlock
	}
	if !hostHeight.CheckDeltaFrom(m.block.HostHeight, m.config.MinBlockLength()) {
		return ErrBlockTooYoung
	}
	if hostHeight <= m.block.HostHeight {
		return ErrBadHostHeight
	}
	if hostTimestamp <= m.block.HostTimestamp {
		return ErrBadHostTimestamp
	}

	nextEpoch := m.maybeGenerateNextEpoch(hostHeight)

	stateUnchanged := m.stateRoot == m.block.StateRoot && nextEpoch == nil
	if stateUnchanged {
		age := m.config.MaxBlockAgeNS()
		oldEnough := age != MaxBlockAgeDisabled && hostTimestamp-m.block.HostTimestamp >= age
		if !oldEnough {
			return ErrUnchangedState
		}
	}

	next, err := m.block.GenerateNext(hostHeight, hostTimestamp, m.stateRoot, nextEpoch)
	if err != nil {
		return err
	}
	m.pending = &pendingBlock{
		next:         next,
		hash:         next.CalcHash(),
		signers:      make(map[validator.PubKey]struct{}),
		signingStake: uint256.NewInt(0),
	}
	m.events.Notify(adapter.Event{
		Kind:            adapter.BlockGenerated,
		BlockHash:       m.pending.hash,
		BlockHeight:     uint64(next.BlockHeight),
		HostHeight:      uint64(hostHeight),
		HostTimestampNS: hostTimestamp,
	})
	return nil
}

// AddSignature records a validator's signature over the pending block.
// Returns true once the accumulated signing stake reaches the governing
// epoch's quorum, at which point the pending block is promoted to Head
// and, if it defined a new epoch, NextEpoch rotates to it. A duplicate
// signer is silently ignored (false, nil).
func (m *Manager) AddSignature(pubkey validator.PubKey, signature validator.Signature) (bool, error) {
	if m.pending == nil {
		return false, ErrNoPendingBlock
	}
	if _, seen := m.pending.signers[pubkey]; seen {
		return false, nil
	}
	if !m.verifier.Verify(m.pending.hash, pubkey, signature) {
		return false, ErrBadSignature
	}
	v, ok := m.nextEpoch.Validator(pubkey)
	if !ok {
		return false, ErrBadValidator
	}

	signingStake := new(uint256.Int).Add(m.pending.signingStake, v.Stake)
	signers := m.pending.signers
	signers[pubkey] = struct{}{}
	m.pending.signingStake = signingStake

	m.events.Notify(adapter.Event{
		Kind:            adapter.BlockSigned,
		BlockHash:       m.pending.hash,
		BlockHeight:     uint64(m.pending.next.BlockHeight),
		HostHeight:      uint64(m.pending.next.HostHeight),
		HostTimestampNS: m.pending.next.HostTimestamp,
	})

	if signingStake.Cmp(m.nextEpoch.QuorumStake()) < 0 {
		return false, nil
	}

	finalized := m.pending.next
	finalizedHash := m.pending.hash
	m.block = finalized
	m.pending = nil
	if finalized.NextEpoch != nil {
		m.nextEpoch = finalized.NextEpoch
		m.epochHeight = finalized.HostHeight
	}
	m.events.Notify(adapter.Event{
		Kind:            adapter.BlockFinalised,
		BlockHash:       finalizedHash,
		BlockHeight:     uint64(finalized.BlockHeight),
		HostHeight:      uint64(finalized.HostHeight),
		HostTimestampNS: finalized.HostTimestamp,
	})
	return true, nil
}

// UpdateCandidate adds a new validator candidate or updates an existing
// candidate's stake, delegating to the candidate set under config.
func (m *Manager) UpdateCandidate(pubkey validator.PubKey, stake *uint256.Int) error {
	return m.candidates.Update(m.config, pubkey, stake)
}

// RemoveCandidate removes an existing validator candidate, delegating to
// the candidate set under config. Does nothing if the candidate is not
// present.
func (m *Manager) RemoveCandidate(pubkey validator.PubKey) error {
	return m.candidates.Remove(m.config, pubkey)
}
