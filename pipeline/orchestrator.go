package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kysee/zk-sha256/chain"
	"github.com/kysee/zk-sha256/metrics"
	prover "github.com/kysee/zk-sha256/provers"
	"github.com/kysee/zk-sha256/store"
	"github.com/kysee/zk-sha256/types"
	"github.com/rs/zerolog"
)

// Prover builds a locally verified proof for an assignment
type Prover interface {
	Prove(ctx context.Context, assignment *types.CircuitAssignment) (*types.Proof, []string, error)
}

// Submitter sends the hash and verification transactions
type Submitter interface {
	SubmitHash(ctx context.Context, padded [types.BlockSize]byte) (*chain.HashReceipt, error)
	SubmitVerification(ctx context.Context, calldata *types.CalldataBundle) (*chain.VerifyReceipt, error)
}

// Run outcomes
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Run is the state of one input moving through the pipeline
type Run struct {
	Input []byte
	// Stage is the last stage reached
	Stage Stage
	// Err is a *StageError naming the stage that could not be reached
	Err error

	Encoded      *types.EncodedInput
	Digest       types.Digest
	Artifact     *types.ProofArtifact
	Verification *types.VerificationRecord
	// Success is true when the verifier contract accepted the proof
	Success bool
}

// Outcome classifies a finished run
func (r *Run) Outcome() string {
	switch {
	case r.Err != nil:
		return OutcomeFailed
	case r.Stage == StageRecorded && !r.Success:
		return OutcomeRejected
	default:
		return OutcomeSucceeded
	}
}

// FailedStage returns the stage a failed run was trying to reach
func (r *Run) FailedStage() (Stage, bool) {
	var stageErr *StageError
	if errors.As(r.Err, &stageErr) {
		return stageErr.Stage, true
	}
	return r.Stage, false
}

// Orchestrator drives inputs through encode, hash, prove, format, submit and record.
// Without a Chain, runs end at StageLocallyVerified.
type Orchestrator struct {
	Prover  Prover
	Chain   Submitter
	Store   store.Store
	Network string
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// Run executes the full pipeline for one input. Failures are reported on the returned Run.
func (o *Orchestrator) Run(ctx context.Context, input []byte) *Run {
	run := &Run{Input: append([]byte(nil), input...)}
	logger := o.Logger.With().Str("network", o.Network).Logger()

	if !o.step(ctx, run, StageEncoded, func() error {
		enc, err := types.Encode(input)
		if err != nil {
			return err
		}
		run.Encoded = enc
		return nil
	}) {
		return o.finish(run, logger)
	}

	if !o.step(ctx, run, StageHashed, func() error {
		run.Digest = types.ComputeDigest(run.Encoded.Padded())
		return nil
	}) {
		return o.finish(run, logger)
	}
	logger = logger.With().Str("digest", run.Digest.Hex()).Logger()

	proof, signals, ok := o.prove(ctx, run)
	if !ok {
		return o.finish(run, logger)
	}

	if !o.step(ctx, run, StageLocallyVerified, func() error {
		calldata, err := prover.FormatCalldata(proof, signals)
		if err != nil {
			return err
		}
		artifact := &types.ProofArtifact{
			ID:            store.NewID(),
			Network:       o.Network,
			Input:         string(input),
			Encoded:       run.Encoded,
			Digest:        run.Digest,
			Proof:         proof,
			PublicSignals: signals,
			Calldata:      calldata,
			CreatedAt:     time.Now().UTC(),
		}
		if o.Store != nil {
			if err := o.Store.SaveArtifact(artifact); err != nil {
				return fmt.Errorf("failed to save artifact: %w", err)
			}
		}
		run.Artifact = artifact
		return nil
	}) {
		return o.finish(run, logger)
	}
	logger.Info().Str("artifact", run.Artifact.ID).Msg("proof generated and verified locally")

	if o.Chain == nil {
		return o.finish(run, logger)
	}
	o.submit(ctx, run, logger)
	return o.finish(run, logger)
}

// Submit sends a stored artifact through hash submission, verification and recording
func (o *Orchestrator) Submit(ctx context.Context, artifact *types.ProofArtifact) *Run {
	logger := o.Logger.With().Str("network", o.Network).Str("artifact", artifact.ID).Logger()
	run := &Run{
		Stage:    StageLocallyVerified,
		Artifact: artifact,
		Encoded:  artifact.Encoded,
		Digest:   artifact.Digest,
	}
	if artifact.Encoded != nil {
		run.Input = artifact.Encoded.Raw()
	}

	switch {
	case o.Chain == nil:
		run.Err = &StageError{Stage: StageHashSubmitted, Err: fmt.Errorf("no chain client configured")}
	case artifact.Encoded == nil || artifact.Calldata == nil:
		run.Err = &StageError{Stage: StageHashSubmitted, Err: fmt.Errorf("%w: artifact %s is incomplete", types.ErrMalformedProof, artifact.ID)}
	case types.ComputeDigest(artifact.Encoded.Padded()) != artifact.Digest:
		run.Err = &StageError{Stage: StageHashSubmitted, Err: fmt.Errorf("%w: artifact %s digest does not match its input", types.ErrDigestMismatch, artifact.ID)}
	default:
		o.submit(ctx, run, logger)
	}
	return o.finish(run, logger)
}

// prove runs the builder and maps its steps onto pipeline stages
func (o *Orchestrator) prove(ctx context.Context, run *Run) (*types.Proof, []string, bool) {
	if err := ctx.Err(); err != nil {
		o.fail(run, StageWitnessComputed, err)
		return nil, nil, false
	}

	start := time.Now()
	proof, signals, err := o.Prover.Prove(ctx, types.NewAssignment(run.Encoded, run.Digest))
	if err != nil {
		stage := StageWitnessComputed
		var stepErr *prover.StepError
		if errors.As(err, &stepErr) {
			switch stepErr.Step {
			case prover.StepWitness:
				stage = StageWitnessComputed
			case prover.StepProve:
				stage = StageProved
			case prover.StepVerify:
				stage = StageLocallyVerified
			}
		}
		// stages before the failing one were reached
		if stage > StageWitnessComputed {
			run.Stage = stage - 1
		}
		o.fail(run, stage, err)
		return nil, nil, false
	}

	run.Stage = StageProved
	o.Metrics.ObserveStage(StageProved.String(), time.Since(start))
	return proof, signals, true
}

// submit performs the on-chain stages. Once any transaction is broadcast a verification record is written.
func (o *Orchestrator) submit(ctx context.Context, run *Run, logger zerolog.Logger) {
	record := &types.VerificationRecord{
		ArtifactID: run.Artifact.ID,
		Network:    o.Network,
		Input:      run.Artifact.Input,
	}

	var hashReceipt *chain.HashReceipt
	hashed := o.step(ctx, run, StageHashSubmitted, func() error {
		var err error
		hashReceipt, err = o.Chain.SubmitHash(ctx, run.Encoded.Padded())
		if hashReceipt != nil {
			record.HashTx = types.TxOutcome{
				TxHash:      hashReceipt.TxHash.Hex(),
				BlockNumber: hashReceipt.BlockNumber,
				GasUsed:     hashReceipt.GasUsed,
			}
			record.ObservedDigest = hashReceipt.ObservedDigest
		}
		if err != nil {
			record.HashTx.Error = err.Error()
		}
		return err
	})
	if !hashed {
		if hashReceipt != nil {
			o.record(run, record, logger)
		}
		return
	}
	logger.Info().Str("tx", record.HashTx.TxHash).Msg("hash submitted")

	calldata := run.Artifact.Calldata.WithDigest(*hashReceipt.ObservedDigest)
	var verifyReceipt *chain.VerifyReceipt
	verified := o.step(ctx, run, StageProofSubmitted, func() error {
		var err error
		verifyReceipt, err = o.Chain.SubmitVerification(ctx, calldata)
		if verifyReceipt != nil {
			record.VerifyTx = types.TxOutcome{
				TxHash:      verifyReceipt.TxHash.Hex(),
				BlockNumber: verifyReceipt.BlockNumber,
				GasUsed:     verifyReceipt.GasUsed,
			}
		}
		if err != nil {
			record.VerifyTx.Error = err.Error()
		}
		return err
	})
	if !verified {
		// the hash transaction is on chain, keep track of it
		o.record(run, record, logger)
		return
	}
	record.Success = verifyReceipt.Success
	run.Success = verifyReceipt.Success

	o.step(ctx, run, StageRecorded, func() error {
		return o.saveVerification(run, record)
	})
}

// record saves the verification record of a failed submission without changing the run's failure
func (o *Orchestrator) record(run *Run, record *types.VerificationRecord, logger zerolog.Logger) {
	if err := o.saveVerification(run, record); err != nil {
		logger.Error().Err(err).Msg("failed to save verification record")
	}
}

func (o *Orchestrator) saveVerification(run *Run, record *types.VerificationRecord) error {
	record.CreatedAt = time.Now().UTC()
	if o.Store != nil {
		if err := o.Store.SaveVerification(record); err != nil {
			return fmt.Errorf("failed to save verification: %w", err)
		}
	} else if record.ID == "" {
		record.ID = store.NewID()
	}
	run.Verification = record
	return nil
}

// step attempts to reach stage. It observes ctx first and records timing and failure.
func (o *Orchestrator) step(ctx context.Context, run *Run, stage Stage, fn func() error) bool {
	if err := ctx.Err(); err != nil {
		o.fail(run, stage, err)
		return false
	}
	start := time.Now()
	if err := fn(); err != nil {
		o.fail(run, stage, err)
		return false
	}
	run.Stage = stage
	o.Metrics.ObserveStage(stage.String(), time.Since(start))
	return true
}

func (o *Orchestrator) fail(run *Run, stage Stage, err error) {
	run.Err = &StageError{Stage: stage, Err: err}
	o.Metrics.StageFailed(stage.String())
}

func (o *Orchestrator) finish(run *Run, logger zerolog.Logger) *Run {
	outcome := run.Outcome()
	o.Metrics.RunFinished(outcome)

	if run.Err == nil {
		event := logger.Info()
		if outcome == OutcomeRejected {
			event = logger.Warn()
		}
		event.Str("stage", run.Stage.String()).Str("outcome", outcome).Msg("run finished")
		return run
	}

	stage, _ := run.FailedStage()
	category := types.ErrorCategory(run.Err)
	event := logger.Warn()
	switch {
	case category == types.CategoryConsistency, category == types.CategoryToolchain:
		event = logger.Error()
	case errors.Is(run.Err, context.Canceled), errors.Is(run.Err, context.DeadlineExceeded):
		event = logger.Info()
	}
	event.Err(run.Err).
		Str("stage", stage.String()).
		Str("category", category.String()).
		Msg("run failed")
	return run
}
