package prover

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/kysee/zk-sha256/circuits"
	provertypes "github.com/kysee/zk-sha256/provers/types"
	"github.com/kysee/zk-sha256/types"
	"github.com/rs/zerolog"
)

var _ provertypes.ProvingBackend = (*Groth16Backend)(nil)

// Groth16Backend proves and verifies the preimage circuit with gnark groth16 over BN254.
// Commitments are hashed to the field with SHA-256 so proofs match the exported Solidity verifier.
type Groth16Backend struct {
	ccs    constraint.ConstraintSystem
	pk     groth16.ProvingKey
	vk     groth16.VerifyingKey
	logger zerolog.Logger
}

// NewGroth16Backend wraps an already compiled circuit and its keys
func NewGroth16Backend(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey, logger zerolog.Logger) *Groth16Backend {
	return &Groth16Backend{
		ccs:    ccs,
		pk:     pk,
		vk:     vk,
		logger: logger.With().Str("component", "groth16").Logger(),
	}
}

// LoadGroth16Backend loads the compiled circuit and keys from the build directory
func LoadGroth16Backend(ccsPath, pkPath, vkPath string, logger zerolog.Logger) (*Groth16Backend, error) {
	ccs := groth16.NewCS(ecc.BN254)
	if err := readFrom(ccsPath, ccs, types.ErrToolchainUnavailable); err != nil {
		return nil, err
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readFrom(pkPath, pk, types.ErrProvingKeyMissing); err != nil {
		return nil, err
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readFrom(vkPath, vk, types.ErrVerifyingKeyMissing); err != nil {
		return nil, err
	}

	b := NewGroth16Backend(ccs, pk, vk, logger)
	b.logger.Info().
		Int("constraints", ccs.GetNbConstraints()).
		Int("public", ccs.GetNbPublicVariables()).
		Msg("circuit loaded")
	return b, nil
}

// LoadVerifyingKey loads only the verifying key, for components that never prove
func LoadVerifyingKey(vkPath string) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readFrom(vkPath, vk, types.ErrVerifyingKeyMissing); err != nil {
		return nil, err
	}
	return vk, nil
}

// VerifyingKey returns the key used by Verify
func (b *Groth16Backend) VerifyingKey() groth16.VerifyingKey {
	return b.vk
}

// ComputeWitness solves the circuit for the assignment and writes the full witness to witnessPath
func (b *Groth16Backend) ComputeWitness(assignment *types.CircuitAssignment, witnessPath string) error {
	assigned, err := circuit.Assign(assignment)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnsatisfiableAssignment, err)
	}

	fullWitness, err := frontend.NewWitness(assigned, ecc.BN254.ScalarField())
	if err != nil {
		return fmt.Errorf("failed to create witness: %w", err)
	}

	if err := b.ccs.IsSolved(fullWitness); err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnsatisfiableAssignment, err)
	}

	f, err := os.Create(witnessPath)
	if err != nil {
		return fmt.Errorf("failed to create witness file: %w", err)
	}
	defer f.Close()
	if _, err := fullWitness.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write witness: %w", err)
	}
	return nil
}

// Prove reads the witness and generates a proof and its public signals
func (b *Groth16Backend) Prove(witnessPath string) (*types.Proof, []string, error) {
	fullWitness, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to allocate witness: %w", err)
	}
	f, err := os.Open(witnessPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open witness file: %w", err)
	}
	_, err = fullWitness.ReadFrom(f)
	_ = f.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read witness: %w", err)
	}

	b.logger.Debug().Msg("generating proof")
	proof, err := groth16.Prove(b.ccs, b.pk, fullWitness,
		backend.WithProverHashToFieldFunction(sha256.New()))
	if err != nil {
		return nil, nil, fmt.Errorf("proof generation failed: %w", err)
	}

	native, ok := proof.(*groth16_bn254.Proof)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected proof type %T", proof)
	}

	publicWitness, err := fullWitness.Public()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract public witness: %w", err)
	}
	vector, ok := publicWitness.Vector().(fr.Vector)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected witness vector type %T", publicWitness.Vector())
	}
	signals := make([]string, len(vector))
	for i := range vector {
		signals[i] = vector[i].String()
	}

	return proofFromNative(native), signals, nil
}

// Verify checks the proof against the public signals.
// A proof that does not verify returns false with a nil error; a proof that cannot be parsed returns an error.
func (b *Groth16Backend) Verify(proof *types.Proof, publicSignals []string) (bool, error) {
	native, err := proofToNative(proof)
	if err != nil {
		return false, err
	}
	inputs, err := parseSignals(publicSignals)
	if err != nil {
		return false, err
	}
	return b.verifyNative(native, inputs)
}

// VerifyNative checks a verifier-native proof, as produced by DecodeCalldata
func (b *Groth16Backend) VerifyNative(proof *groth16_bn254.Proof, inputs fr.Vector) (bool, error) {
	return b.verifyNative(proof, inputs)
}

func (b *Groth16Backend) verifyNative(proof *groth16_bn254.Proof, inputs fr.Vector) (bool, error) {
	// the verifying key also counts the commitment slot, so the circuit's own count is used
	if len(inputs) != types.BlockBits {
		return false, fmt.Errorf("%w: expected %d public signals, got %d", types.ErrMalformedProof, types.BlockBits, len(inputs))
	}
	publicWitness, err := publicWitnessOf(inputs)
	if err != nil {
		return false, err
	}

	err = groth16.Verify(proof, b.vk, publicWitness, backend.WithVerifierHashToFieldFunction(sha256.New()))
	if err != nil {
		b.logger.Debug().Err(err).Msg("proof rejected")
		return false, nil
	}
	return true, nil
}

func publicWitnessOf(inputs fr.Vector) (witness.Witness, error) {
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate public witness: %w", err)
	}
	values := make(chan any, len(inputs))
	for i := range inputs {
		values <- inputs[i]
	}
	close(values)
	if err := w.Fill(len(inputs), 0, values); err != nil {
		return nil, fmt.Errorf("failed to fill public witness: %w", err)
	}
	return w, nil
}

func readFrom(path string, dst io.ReaderFrom, missing error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", missing, path)
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := dst.ReadFrom(f); err != nil {
		return fmt.Errorf("%w: failed to read %s: %v", missing, path, err)
	}
	return nil
}
