package pipeline

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/kysee/zk-sha256/chain"
	"github.com/kysee/zk-sha256/chain/chaintest"
	"github.com/kysee/zk-sha256/metrics"
	prover "github.com/kysee/zk-sha256/provers"
	"github.com/kysee/zk-sha256/store"
	"github.com/kysee/zk-sha256/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeProver returns a well formed proof built from the curve generators.
// The proof does not verify; the ledger accepts it unless told otherwise.
type fakeProver struct {
	calls int
	err   func(call int) error
}

func (f *fakeProver) Prove(ctx context.Context, assignment *types.CircuitAssignment) (*types.Proof, []string, error) {
	f.calls++
	if f.err != nil {
		if err := f.err(f.calls); err != nil {
			return nil, nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	signals := make([]string, len(assignment.PublicBits))
	for i, bit := range assignment.PublicBits {
		signals[i] = strconv.Itoa(int(bit))
	}
	return generatorProof(), signals, nil
}

func generatorProof() *types.Proof {
	_, _, g1, g2 := bn254.Generators()
	return &types.Proof{
		A: []string{g1.X.String(), g1.Y.String(), "1"},
		B: [][]string{
			{g2.X.A0.String(), g2.X.A1.String()},
			{g2.Y.A0.String(), g2.Y.A1.String()},
			{"1", "0"},
		},
		C:        []string{g1.X.String(), g1.Y.String(), "1"},
		Protocol: "groth16",
		Curve:    "bn128",
	}
}

type fixture struct {
	ledger *chaintest.Ledger
	store  store.Store
	orch   *Orchestrator
	reg    *prometheus.Registry
}

func newFixture(t *testing.T, p Prover) *fixture {
	ledger := chaintest.NewLedger(1337)
	client, err := chain.NewClient(context.Background(), ledger, chaintest.NewKey(), chain.Config{
		HashContract:     chaintest.HashContract,
		VerifierContract: chaintest.VerifierContract,
		GasLimitHash:     500_000,
		GasLimitVerify:   3_000_000,
		ConfirmTimeout:   time.Second,
		PollInterval:     5 * time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)

	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	return &fixture{
		ledger: ledger,
		store:  s,
		reg:    reg,
		orch: &Orchestrator{
			Prover:  p,
			Chain:   client,
			Store:   s,
			Network: "hardhat",
			Metrics: metrics.New(reg),
			Logger:  zerolog.Nop(),
		},
	}
}

func requireFailedAt(t *testing.T, run *Run, stage Stage, target error) {
	t.Helper()
	require.Error(t, run.Err)
	require.ErrorIs(t, run.Err, target)
	var stageErr *StageError
	require.ErrorAs(t, run.Err, &stageErr)
	require.Equal(t, stage, stageErr.Stage)
	require.Equal(t, OutcomeFailed, run.Outcome())
}

func TestRunSucceeds(t *testing.T) {
	f := newFixture(t, &fakeProver{})

	run := f.orch.Run(context.Background(), []byte("hello world"))
	require.NoError(t, run.Err)
	require.Equal(t, StageRecorded, run.Stage)
	require.True(t, run.Success)
	require.Equal(t, OutcomeSucceeded, run.Outcome())
	require.Equal(t, "0x28effae679c457da1e5158c063b3dfa78d0ade721b9aa9f1fc3f46dba4c0ea15", run.Digest.Hex())

	// hash then verify, from one account
	require.Len(t, f.ledger.Sent, 2)
	require.Equal(t, chaintest.HashContract, *f.ledger.Sent[0].To())
	require.Equal(t, chaintest.VerifierContract, *f.ledger.Sent[1].To())

	latest, err := f.store.LatestArtifact("hardhat")
	require.NoError(t, err)
	require.Equal(t, run.Artifact.ID, latest.ID)
	require.Equal(t, "hello world", latest.Input)

	record, err := f.store.Verification(run.Verification.ID)
	require.NoError(t, err)
	require.True(t, record.Success)
	require.Equal(t, run.Artifact.ID, record.ArtifactID)
	require.Equal(t, run.Digest, *record.ObservedDigest)
	require.NotEmpty(t, record.HashTx.TxHash)
	require.NotEmpty(t, record.VerifyTx.TxHash)
	require.Empty(t, record.VerifyTx.Error)
}

func TestRunProveOnly(t *testing.T) {
	f := newFixture(t, &fakeProver{})
	f.orch.Chain = nil

	run := f.orch.Run(context.Background(), []byte(""))
	require.NoError(t, run.Err)
	require.Equal(t, StageLocallyVerified, run.Stage)
	require.Equal(t, OutcomeSucceeded, run.Outcome())
	require.Nil(t, run.Verification)
	require.Equal(t, "0x66687aadf862bd776c8fc18b8e9f8e20089714856ee233b3902a591d0d5f2925", run.Digest.Hex())
	require.Empty(t, f.ledger.Sent)

	latest, err := f.store.LatestArtifact("hardhat")
	require.NoError(t, err)
	require.Equal(t, run.Artifact.ID, latest.ID)
	require.Len(t, latest.Calldata.Input, types.BlockBits)
}

func TestRunInputTooLong(t *testing.T) {
	p := &fakeProver{}
	f := newFixture(t, p)

	run := f.orch.Run(context.Background(), []byte(strings.Repeat("a", 33)))
	requireFailedAt(t, run, StageEncoded, types.ErrInputTooLong)
	require.Equal(t, StagePending, run.Stage)
	require.Zero(t, p.calls)
	require.Empty(t, f.ledger.Sent)
}

func TestRunMapsBuilderSteps(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		reached Stage
		failed  Stage
	}{
		{
			name:    "witness",
			err:     &prover.StepError{Step: prover.StepWitness, Err: types.ErrUnsatisfiableAssignment},
			reached: StageHashed,
			failed:  StageWitnessComputed,
		},
		{
			name:    "prove",
			err:     &prover.StepError{Step: prover.StepProve, Err: errors.New("solver failed")},
			reached: StageWitnessComputed,
			failed:  StageProved,
		},
		{
			name:    "verify",
			err:     &prover.StepError{Step: prover.StepVerify, Err: types.ErrProofBuilderInternal},
			reached: StageProved,
			failed:  StageLocallyVerified,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &fakeProver{err: func(int) error { return tt.err }})
			run := f.orch.Run(context.Background(), []byte("hello world"))
			requireFailedAt(t, run, tt.failed, tt.err)
			require.Equal(t, tt.reached, run.Stage)
			require.Nil(t, run.Artifact)
			require.Empty(t, f.ledger.Sent)

			_, err := f.store.LatestArtifact("hardhat")
			require.ErrorIs(t, err, types.ErrNoArtifactFound)
		})
	}
}

func TestRunRecordsFailedVerification(t *testing.T) {
	f := newFixture(t, &fakeProver{})
	f.ledger.RevertVerify = true

	run := f.orch.Run(context.Background(), []byte("hello world"))
	requireFailedAt(t, run, StageProofSubmitted, types.ErrTransactionReverted)
	require.Equal(t, types.CategoryTransport, types.ErrorCategory(run.Err))
	require.Equal(t, StageHashSubmitted, run.Stage)

	// the hash transaction is kept on record
	require.NotNil(t, run.Verification)
	record, err := f.store.Verification(run.Verification.ID)
	require.NoError(t, err)
	require.False(t, record.Success)
	require.NotEmpty(t, record.HashTx.TxHash)
	require.NotEmpty(t, record.VerifyTx.TxHash)
	require.Contains(t, record.VerifyTx.Error, "reverted")
}

func TestRunDigestMismatchStopsBeforeVerification(t *testing.T) {
	f := newFixture(t, &fakeProver{})
	f.ledger.TamperDigest = true

	run := f.orch.Run(context.Background(), []byte("hello world"))
	requireFailedAt(t, run, StageHashSubmitted, types.ErrDigestMismatch)
	require.Equal(t, types.CategoryConsistency, types.ErrorCategory(run.Err))
	require.Len(t, f.ledger.Sent, 1)

	require.NotNil(t, run.Verification)
	require.NotNil(t, run.Verification.ObservedDigest)
	require.NotEqual(t, run.Digest, *run.Verification.ObservedDigest)
	require.Empty(t, run.Verification.VerifyTx.TxHash)
}

func TestRunRejected(t *testing.T) {
	f := newFixture(t, &fakeProver{})
	f.ledger.Verify = func(*types.CalldataBundle) (bool, error) { return false, nil }

	run := f.orch.Run(context.Background(), []byte("hello world"))
	require.NoError(t, run.Err)
	require.Equal(t, StageRecorded, run.Stage)
	require.False(t, run.Success)
	require.Equal(t, OutcomeRejected, run.Outcome())

	record, err := f.store.Verification(run.Verification.ID)
	require.NoError(t, err)
	require.False(t, record.Success)
	require.Empty(t, record.VerifyTx.Error)
}

func TestRunBindsObservedDigest(t *testing.T) {
	f := newFixture(t, &fakeProver{})
	var seen *types.CalldataBundle
	f.ledger.Verify = func(b *types.CalldataBundle) (bool, error) {
		seen = b
		return true, nil
	}

	run := f.orch.Run(context.Background(), []byte("abc"))
	require.NoError(t, run.Err)
	require.NotNil(t, seen)
	for i, v := range types.DigestSignals(run.Digest) {
		require.Zero(t, v.Cmp(seen.Input[i]), "input %d", i)
	}
}

func TestRunNoStore(t *testing.T) {
	f := newFixture(t, &fakeProver{})
	f.orch.Store = nil

	run := f.orch.Run(context.Background(), []byte("hello world"))
	require.NoError(t, run.Err)
	require.NotEmpty(t, run.Artifact.ID)
	require.NotEmpty(t, run.Verification.ID)
}

func TestRunObservesContext(t *testing.T) {
	f := newFixture(t, &fakeProver{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := f.orch.Run(ctx, []byte("hello world"))
	requireFailedAt(t, run, StageEncoded, context.Canceled)
	require.Empty(t, f.ledger.Sent)
}

func TestSubmitStoredArtifact(t *testing.T) {
	f := newFixture(t, &fakeProver{})
	client := f.orch.Chain
	f.orch.Chain = nil

	proved := f.orch.Run(context.Background(), []byte("hello world"))
	require.NoError(t, proved.Err)

	artifact, err := f.store.LatestArtifact("hardhat")
	require.NoError(t, err)

	f.orch.Chain = client
	run := f.orch.Submit(context.Background(), artifact)
	require.NoError(t, run.Err)
	require.Equal(t, StageRecorded, run.Stage)
	require.True(t, run.Success)
	require.Equal(t, []byte("hello world"), run.Input)
	require.Equal(t, artifact.ID, run.Verification.ArtifactID)
	require.Len(t, f.ledger.Sent, 2)
}

func TestSubmitRejectsInconsistentArtifact(t *testing.T) {
	f := newFixture(t, &fakeProver{})
	f.orch.Chain = nil
	proved := f.orch.Run(context.Background(), []byte("hello world"))
	require.NoError(t, proved.Err)

	artifact := *proved.Artifact
	artifact.Digest = types.ComputeDigest([types.BlockSize]byte{})

	f = newFixture(t, &fakeProver{})
	run := f.orch.Submit(context.Background(), &artifact)
	requireFailedAt(t, run, StageHashSubmitted, types.ErrDigestMismatch)
	require.Empty(t, f.ledger.Sent)

	f.orch.Chain = nil
	run = f.orch.Submit(context.Background(), proved.Artifact)
	require.Error(t, run.Err)
}

func TestRunCountsMetrics(t *testing.T) {
	f := newFixture(t, &fakeProver{})
	f.orch.Run(context.Background(), []byte("ok"))
	f.orch.Run(context.Background(), []byte(strings.Repeat("x", 40)))

	families, err := f.reg.Gather()
	require.NoError(t, err)
	runs := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "zksha_pipeline_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			runs[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	require.Equal(t, float64(1), runs[OutcomeSucceeded])
	require.Equal(t, float64(1), runs[OutcomeFailed])
}
