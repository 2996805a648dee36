package chain

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/ComposableFi/emulated-light-client-sub001/pkg/adapter"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/ghash"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/validator"
)

func testConfig(t *testing.T, minBlockLength, minEpochLength uint64, maxBlockAgeNS uint64) Config {
	t.Helper()
	cfg, err := NewConfig(1, 10, uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(1), minBlockLength, maxBlockAgeNS, minEpochLength)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	return cfg
}

func pubkeyAt(i byte) validator.PubKey {
	var pk validator.PubKey
	pk[0] = i
	return pk
}

// newGenesisManager builds the S1 scenario's manager: validators
// {(pk0,10),(pk1,10)}, quorum 11, genesis at host_height=42, ts=24.
func newGenesisManager(t *testing.T, accept bool) (*Manager, *Block) {
	t.Helper()
	v0, err := validator.New(pubkeyAt(0), uint256.NewInt(10))
	if err != nil {
		t.Fatalf("validator.New: %v", err)
	}
	v1, err := validator.New(pubkeyAt(1), uint256.NewInt(10))
	if err != nil {
		t.Fatalf("validator.New: %v", err)
	}
	epoch, err := validator.New([]validator.Validator{v0, v1}, uint256.NewInt(11))
	if err != nil {
		t.Fatalf("validator.New(epoch): %v", err)
	}
	genesis := GenerateGenesis(42, 24, ghash.Sum([]byte{66}), epoch)

	cfg := testConfig(t, 0, 0, MaxBlockAgeDisabled)
	m, err := NewManager(cfg, genesis, adapter.MockVerifier{Accept: accept}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, genesis
}

func TestScenarioS1GenesisSigning(t *testing.T) {
	m, genesis := newGenesisManager(t, true)
	if m.Head() != genesis {
		t.Fatalf("Head() must return the genesis block before any signature")
	}
	if m.HasPendingBlock() {
		t.Fatalf("a freshly constructed manager must have no pending block")
	}
}

func TestScenarioS1QuorumPromotesGenesis(t *testing.T) {
	// Genesis itself is the head from construction (NewManager requires a
	// signed genesis, per spec.md's chain-manager `new` contract), so S1's
	// signature flow is exercised on the first GENERATED block instead:
	// generate a pending block, then replay S1's two-signer quorum attempt
	// against it.
	m, _ := newGenesisManager(t, true)
	m.UpdateStateRoot(ghash.Sum([]byte{99}))
	if err := m.GenerateNext(50, 50); err != nil {
		t.Fatalf("GenerateNext: %v", err)
	}

	var sig validator.Signature
	ok, err := m.AddSignature(pubkeyAt(0), sig)
	if err != nil {
		t.Fatalf("AddSignature(pk0): %v", err)
	}
	if ok {
		t.Fatalf("AddSignature(pk0): stake 10 < quorum 11, must not finalise yet")
	}

	ok, err = m.AddSignature(pubkeyAt(1), sig)
	if err != nil {
		t.Fatalf("AddSignature(pk1): %v", err)
	}
	if !ok {
		t.Fatalf("AddSignature(pk1): combined stake 20 >= quorum 11, must finalise")
	}
	if m.HasPendingBlock() {
		t.Fatalf("pending block must be cleared once quorum promotes it")
	}
	if m.Head().BlockHeight != 1 {
		t.Fatalf("Head().BlockHeight = %d, want 1", m.Head().BlockHeight)
	}
}

func TestScenarioS2BlockAdvance(t *testing.T) {
	m, genesis := newGenesisManager(t, true)
	genesisHash := genesis.CalcHash()

	m.UpdateStateRoot(ghash.Sum([]byte{99}))
	if err := m.GenerateNext(50, 50); err != nil {
		t.Fatalf("GenerateNext: %v", err)
	}
	if !m.HasPendingBlock() {
		t.Fatalf("GenerateNext must stage a pending block")
	}

	var sig validator.Signature
	if _, err := m.AddSignature(pubkeyAt(0), sig); err != nil {
		t.Fatalf("AddSignature(pk0): %v", err)
	}
	ok, err := m.AddSignature(pubkeyAt(1), sig)
	if err != nil {
		t.Fatalf("AddSignature(pk1): %v", err)
	}
	if !ok {
		t.Fatalf("expected quorum to be reached")
	}

	head := m.Head()
	if head.BlockHeight != 1 {
		t.Fatalf("block_height = %d, want 1", head.BlockHeight)
	}
	if head.PrevBlockHash != genesisHash {
		t.Fatalf("prev_block_hash does not chain to genesis")
	}
	if head.EpochID != genesisHash {
		t.Fatalf("epoch_id = %s, want genesis hash (genesis defined the epoch)", head.EpochID)
	}
}

func TestScenarioS3RejectsRegressions(t *testing.T) {
	m, _ := newGenesisManager(t, true)

	if err := m.GenerateNext(42, 100); err != ErrBadHostHeight {
		t.Fatalf("GenerateNext(42, 100): got %v, want ErrBadHostHeight", err)
	}
	if err := m.GenerateNext(43, 24); err != ErrBadHostTimestamp {
		t.Fatalf("GenerateNext(43, 24): got %v, want ErrBadHostTimestamp", err)
	}
}

func TestGenerateNextRejectsSecondPendingBlock(t *testing.T) {
	m, _ := newGenesisManager(t, true)
	m.UpdateStateRoot(ghash.Sum([]byte{99}))
	if err := m.GenerateNext(50, 50); err != nil {
		t.Fatalf("GenerateNext: %v", err)
	}
	if err := m.GenerateNext(60, 60); err != ErrHasPendingBlock {
		t.Fatalf("second GenerateNext: got %v, want ErrHasPendingBlock", err)
	}
}

func TestGenerateNextRejectsBlockTooYoung(t *testing.T) {
	v0, _ := validator.New(pubkeyAt(0), uint256.NewInt(10))
	v1, _ := validator.New(pubkeyAt(1), uint256.NewInt(10))
	epoch, _ := validator.New([]validator.Validator{v0, v1}, uint256.NewInt(11))
	genesis := GenerateGenesis(42, 24, ghash.Sum([]byte{66}), epoch)

	cfg := testConfig(t, 100, 0, MaxBlockAgeDisabled)
	m, err := NewManager(cfg, genesis, adapter.MockVerifier{Accept: true}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.GenerateNext(50, 50); err != ErrBlockTooYoung {
		t.Fatalf("GenerateNext: got %v, want ErrBlockTooYoung", err)
	}
}

func TestAddSignatureRejectsBadSignature(t *testing.T) {
	m, _ := newGenesisManager(t, false)
	m.UpdateStateRoot(ghash.Sum([]byte{99}))
	if err := m.GenerateNext(50, 50); err != nil {
		t.Fatalf("GenerateNext: %v", err)
	}
	var sig validator.Signature
	if _, err := m.AddSignature(pubkeyAt(0), sig); err != ErrBadSignature {
		t.Fatalf("AddSignature: got %v, want ErrBadSignature", err)
	}
}

func TestAddSignatureRejectsUnknownValidator(t *testing.T) {
	m, _ := newGenesisManager(t, true)
	m.UpdateStateRoot(ghash.Sum([]byte{99}))
	if err := m.GenerateNext(50, 50); err != nil {
		t.Fatalf("GenerateNext: %v", err)
	}
	var sig validator.Signature
	if _, err := m.AddSignature(pubkeyAt(99), sig); err != ErrBadValidator {
		t.Fatalf("AddSignature(unknown pubkey): got %v, want ErrBadValidator", err)
	}
}

func TestAddSignatureDuplicateSignerIsNoop(t *testing.T) {
	m, _ := newGenesisManager(t, true)
	m.UpdateStateRoot(ghash.Sum([]byte{99}))
	if err := m.GenerateNext(50, 50); err != nil {
		t.Fatalf("GenerateNext: %v", err)
	}
	var sig validator.Signature
	if _, err := m.AddSignature(pubkeyAt(0), sig); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}
	ok, err := m.AddSignature(pubkeyAt(0), sig)
	if err != nil {
		t.Fatalf("AddSignature(duplicate): %v", err)
	}
	if ok {
		t.Fatalf("a duplicate signer must not be counted again")
	}
}

func TestAddSignatureNoPendingBlock(t *testing.T) {
	m, _ := newGenesisManager(t, true)
	var sig validator.Signature
	if _, err := m.AddSignature(pubkeyAt(0), sig); err != ErrNoPendingBlock {
		t.Fatalf("AddSignature: got %v, want ErrNoPendingBlock", err)
	}
}

func TestGenerateNextRejectsUnchangedStateBeforeMaxAge(t *testing.T) {
	v0, _ := validator.New(pubkeyAt(0), uint256.NewInt(10))
	v1, _ := validator.New(pubkeyAt(1), uint256.NewInt(10))
	epoch, _ := validator.New([]validator.Validator{v0, v1}, uint256.NewInt(11))
	genesis := GenerateGenesis(42, 24, ghash.Sum([]byte{66}), epoch)

	cfg := testConfig(t, 0, 1000, 1000)
	m, err := NewManager(cfg, genesis, adapter.MockVerifier{Accept: true}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.GenerateNext(50, 100); err != ErrUnchangedState {
		t.Fatalf("GenerateNext(unchanged state, small timestamp gap): got %v, want ErrUnchangedState", err)
	}
	if err := m.GenerateNext(50, 24+1000); err != nil {
		t.Fatalf("GenerateNext(unchanged state, max age elapsed): %v", err)
	}
}

func TestUpdateCandidateAndRemoveCandidateDelegate(t *testing.T) {
	m, _ := newGenesisManager(t, true)
	if err := m.UpdateCandidate(pubkeyAt(2), uint256.NewInt(5)); err != nil {
		t.Fatalf("UpdateCandidate: %v", err)
	}
	if err := m.RemoveCandidate(pubkeyAt(2)); err != nil {
		t.Fatalf("RemoveCandidate: %v", err)
	}
}

func TestConfigUpdateRejectsMinValidatorsAboveExisting(t *testing.T) {
	cfg := testConfig(t, 0, 0, MaxBlockAgeDisabled)
	tooMany := uint16(20)
	err := cfg.Update(uint256.NewInt(100), 2, UpdatePatch{MinValidators: &tooMany})
	if err != ErrMinValidatorsHigherThanExisting {
		t.Fatalf("Update: got %v, want ErrMinValidatorsHigherThanExisting", err)
	}
}

func TestConfigUpdateRejectsMinTotalStakeAboveHeadStake(t *testing.T) {
	cfg := testConfig(t, 0, 0, MaxBlockAgeDisabled)
	tooHigh := uint256.NewInt(1000)
	err := cfg.Update(uint256.NewInt(100), 2, UpdatePatch{MinTotalStake: tooHigh})
	if err != ErrMinTotalStakeHigherThanExisting {
		t.Fatalf("Update: got %v, want ErrMinTotalStakeHigherThanExisting", err)
	}
}
