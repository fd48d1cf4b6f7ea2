package prover

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	provertypes "github.com/kysee/zk-sha256/provers/types"
	"github.com/kysee/zk-sha256/types"
	"github.com/rs/zerolog"
)

// Step names a step of proof construction
type Step string

const (
	StepWitness Step = "witness"
	StepProve   Step = "prove"
	StepVerify  Step = "verify"
)

// StepError reports the step at which proof construction stopped
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Builder turns a circuit assignment into a proof that has already passed local verification
type Builder struct {
	backend provertypes.ProvingBackend
	workDir string
	logger  zerolog.Logger
}

// NewBuilder creates a Builder that keeps its intermediate witness files under workDir
func NewBuilder(backend provertypes.ProvingBackend, workDir string, logger zerolog.Logger) *Builder {
	return &Builder{
		backend: backend,
		workDir: workDir,
		logger:  logger.With().Str("component", "builder").Logger(),
	}
}

// Prove computes the witness, generates the proof and verifies it locally.
// The witness file is removed whatever the outcome.
func (b *Builder) Prove(ctx context.Context, assignment *types.CircuitAssignment) (*types.Proof, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, &StepError{Step: StepWitness, Err: err}
	}

	if err := os.MkdirAll(b.workDir, 0755); err != nil {
		return nil, nil, &StepError{Step: StepWitness, Err: fmt.Errorf("failed to create work dir: %w", err)}
	}
	f, err := os.CreateTemp(b.workDir, "witness-*.wtns")
	if err != nil {
		return nil, nil, &StepError{Step: StepWitness, Err: fmt.Errorf("failed to create witness file: %w", err)}
	}
	witnessPath := f.Name()
	_ = f.Close()
	defer func() {
		if err := os.Remove(witnessPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn().Err(err).Str("path", witnessPath).Msg("failed to remove witness file")
		}
	}()

	start := time.Now()
	if err := b.backend.ComputeWitness(assignment, witnessPath); err != nil {
		return nil, nil, &StepError{Step: StepWitness, Err: err}
	}
	b.logger.Debug().Dur("elapsed", time.Since(start)).Msg("witness computed")

	if err := ctx.Err(); err != nil {
		return nil, nil, &StepError{Step: StepProve, Err: err}
	}
	start = time.Now()
	proof, signals, err := b.backend.Prove(witnessPath)
	if err != nil {
		return nil, nil, &StepError{Step: StepProve, Err: err}
	}
	b.logger.Debug().Dur("elapsed", time.Since(start)).Msg("proof generated")

	if err := ctx.Err(); err != nil {
		return nil, nil, &StepError{Step: StepVerify, Err: err}
	}
	if err := checkSignals(signals, assignment.PublicBits); err != nil {
		return nil, nil, &StepError{Step: StepVerify, Err: err}
	}
	ok, err := b.backend.Verify(proof, signals)
	if err != nil {
		return nil, nil, &StepError{Step: StepVerify, Err: fmt.Errorf("%w: %v", types.ErrProofBuilderInternal, err)}
	}
	if !ok {
		return nil, nil, &StepError{Step: StepVerify, Err: types.ErrProofBuilderInternal}
	}
	b.logger.Debug().Msg("proof verified locally")

	return proof, signals, nil
}

// VerifyLocally re-checks a proof, typically one loaded from the store
func (b *Builder) VerifyLocally(proof *types.Proof, publicSignals []string) (bool, error) {
	return b.backend.Verify(proof, publicSignals)
}

// checkSignals makes sure the prover committed to the digest it was asked to prove
func checkSignals(signals []string, publicBits []uint8) error {
	raw, err := types.BitsToBytes(publicBits)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrProofBuilderInternal, err)
	}
	var digest types.Digest
	if len(raw) != len(digest) {
		return fmt.Errorf("%w: %d digest bits", types.ErrProofBuilderInternal, len(publicBits))
	}
	copy(digest[:], raw)

	want := types.DigestSignalStrings(digest)
	if len(signals) != len(want) {
		return fmt.Errorf("%w: %d public signals for %d digest bits", types.ErrProofBuilderInternal, len(signals), len(want))
	}
	for i := range want {
		if signals[i] != want[i] {
			return fmt.Errorf("%w: public signal %d does not match the digest", types.ErrProofBuilderInternal, i)
		}
	}
	return nil
}
