package validator

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrNotEnoughValidatorStake is returned by Update when the offered
	// stake is below CandidateConfig.MinValidatorStake.
	ErrNotEnoughValidatorStake = errors.New("validator: candidate stake below minimum")
	// ErrNotEnoughTotalStake is returned by Update or Remove when the
	// resulting head stake would fall below CandidateConfig.MinTotalStake.
	ErrNotEnoughTotalStake = errors.New("validator: head stake would fall below minimum")
	// ErrNotEnoughValidators is returned by Remove when removing the
	// candidate would drop the set below CandidateConfig.MinValidatorsCount.
	ErrNotEnoughValidators = errors.New("validator: too few candidates remain")
)

// CandidateConfig is the narrow slice of chain configuration CandidateSet
// needs. chain.Config satisfies this interface structurally -- pkg/validator
// never imports pkg/chain, keeping the ghash -> canon -> validator ->
// adapter -> trie dependency chain acyclic while chain depends on
// validator, not the other way around.
type CandidateConfig interface {
	MinValidatorStake() *uint256.Int
	MinTotalStake() *uint256.Int
	MinValidatorsCount() uint16
}

// candidate is an unexported, CandidateSet-internal record: a Validator
// without the wire-encoding version byte, since candidates never appear on
// the wire by themselves.
type candidate struct {
	pubkey PubKey
	stake  *uint256.Int
}

// compare orders candidates by (stake descending, pubkey ascending): the
// same order the original blockchain state machine sorts candidates in, so
// that the top of the slice is always the current head set.
func compare(a, b candidate) int {
	if c := a.stake.Cmp(b.stake); c != 0 {
		if c > 0 {
			return -1
		}
		return 1
	}
	return a.pubkey.Compare(b.pubkey)
}

// CandidateSet tracks every public key interested in becoming a validator,
// sorted by stake so the top MaxValidators entries can be read off as the
// head set considered for the next epoch.
type CandidateSet struct {
	maxValidators uint16
	candidates    []candidate
	changed       bool
	headStake     *uint256.Int
}

// NewCandidateSet builds a CandidateSet from an initial validator list
// (typically a genesis validator set). If the list is longer than
// maxValidators, the set starts out marked changed so the first epoch
// rotation trims it down to size.
func NewCandidateSet(maxValidators uint16, validators []Validator) *CandidateSet {
	cs := &CandidateSet{
		maxValidators: maxValidators,
		candidates:    make([]candidate, len(validators)),
	}
	for i, v := range validators {
		cs.candidates[i] = candidate{pubkey: v.Pubkey, stake: new(uint256.Int).Set(v.Stake)}
	}
	sortCandidates(cs.candidates)

	max := int(maxValidators)
	cs.changed = len(cs.candidates) > max
	cs.headStake = sumHead(cs.candidates, max)
	return cs
}

// sortCandidates performs an insertion sort -- candidate lists in practice
// are small (bounded by realistic validator-set sizes) and this avoids
// pulling in sort.Slice's reflection-based comparator for a one-time
// construction step.
func sortCandidates(c []candidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && compare(c[j], c[j-1]) < 0; j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

// sumHead adds up the stakes of the first max entries of c (or all of them,
// if there are fewer than max).
func sumHead(c []candidate, max int) *uint256.Int {
	total := uint256.NewInt(0)
	n := max
	if n > len(c) {
		n = len(c)
	}
	for i := 0; i < n; i++ {
		total.Add(total, c[i].stake)
	}
	return total
}

func (cs *CandidateSet) maxValidatorsInt() int { return int(cs.maxValidators) }

// insertPos returns the position at which candidate c would be inserted to
// keep c (sorted (stake desc, pubkey asc)) in order, via binary search.
func insertPos(c []candidate, nc candidate) int {
	lo, hi := 0, len(c)
	for lo < hi {
		mid := (lo + hi) / 2
		if compare(c[mid], nc) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// MaybeGetHead returns the current top MaxValidators candidates together
// with their combined stake, if the set has changed since the last call.
// Returns ok=false if nothing has changed.
func (cs *CandidateSet) MaybeGetHead() (validators []Validator, total *uint256.Int, ok bool) {
	if !cs.changed {
		return nil, nil, false
	}
	max := cs.maxValidatorsInt()
	head := cs.candidates
	if len(head) > max {
		head = head[:max]
	}
	total = uint256.NewInt(0)
	validators = make([]Validator, len(head))
	for i, c := range head {
		total.Add(total, c.stake)
		validators[i] = Validator{version: 0, Pubkey: c.pubkey, Stake: new(uint256.Int).Set(c.stake)}
	}
	cs.changed = false
	return validators, total, true
}

// Update adds a new candidate or changes an existing candidate's stake.
//
// The candidate set is conceptually rebuilt (stale entry removed, new entry
// inserted at its sorted position) and the resulting head stake is
// recomputed directly from that rebuilt ordering, rather than adjusted
// incrementally. An incremental adjustment needs a reference to "whoever
// currently occupies the head/non-head boundary" -- but when a set has few
// candidates, that boundary position can be the very entry being replaced,
// which an incremental delta cannot account for without first excluding the
// stale entry. Recomputing from the rebuilt slice sidesteps that case
// entirely while staying within the O(n) worst case spec.md allows.
func (cs *CandidateSet) Update(cfg CandidateConfig, pubkey PubKey, stake *uint256.Int) error {
	if stake == nil || stake.IsZero() || stake.Cmp(cfg.MinValidatorStake()) < 0 {
		return ErrNotEnoughValidatorStake
	}

	oldPos := -1
	for i, ex := range cs.candidates {
		if ex.pubkey == pubkey {
			oldPos = i
			break
		}
	}
	if oldPos != -1 && cs.candidates[oldPos].stake.Cmp(stake) == 0 {
		return nil
	}

	max := cs.maxValidatorsInt()
	oldInHead := oldPos != -1 && oldPos < max

	rebuilt := make([]candidate, 0, len(cs.candidates)+1)
	rebuilt = append(rebuilt, cs.candidates...)
	if oldPos != -1 {
		rebuilt = append(rebuilt[:oldPos], rebuilt[oldPos+1:]...)
	}
	nc := candidate{pubkey: pubkey, stake: new(uint256.Int).Set(stake)}
	pos := insertPos(rebuilt, nc)
	rebuilt = append(rebuilt, candidate{})
	copy(rebuilt[pos+1:], rebuilt[pos:len(rebuilt)-1])
	rebuilt[pos] = nc

	newInHead := pos < max
	newHeadStake := sumHead(rebuilt, max)

	if newHeadStake.Cmp(cs.headStake) < 0 && newHeadStake.Cmp(cfg.MinTotalStake()) < 0 {
		return ErrNotEnoughTotalStake
	}

	cs.candidates = rebuilt
	cs.headStake = newHeadStake
	if oldInHead || newInHead {
		cs.changed = true
	}
	return nil
}

// Remove deletes an existing candidate, if present.
func (cs *CandidateSet) Remove(cfg CandidateConfig, pubkey PubKey) error {
	pos := -1
	for i, ex := range cs.candidates {
		if ex.pubkey == pubkey {
			pos = i
			break
		}
	}
	if pos == -1 {
		return nil
	}
	if uint16(len(cs.candidates)) <= cfg.MinValidatorsCount() {
		return ErrNotEnoughValidators
	}

	max := cs.maxValidatorsInt()
	wasInHead := pos < max
	rebuilt := make([]candidate, 0, len(cs.candidates)-1)
	rebuilt = append(rebuilt, cs.candidates[:pos]...)
	rebuilt = append(rebuilt, cs.candidates[pos+1:]...)

	if wasInHead {
		newHeadStake := sumHead(rebuilt, max)
		if newHeadStake.Cmp(cfg.MinTotalStake()) < 0 {
			return ErrNotEnoughTotalStake
		}
		cs.headStake = newHeadStake
		cs.changed = true
	}
	cs.candidates = rebuilt
	return nil
}

// Len reports the total number of tracked candidates (not just the head
// set).
func (cs *CandidateSet) Len() int { return len(cs.candidates) }

// HeadStake returns the current sum of the top MaxValidators stakes.
func (cs *CandidateSet) HeadStake() *uint256.Int { return new(uint256.Int).Set(cs.headStake) }

// Changed reports whether the head set has changed since the last
// MaybeGetHead call.
func (cs *CandidateSet) Changed() bool { return cs.changed }
