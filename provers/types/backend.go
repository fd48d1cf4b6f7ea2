package types

import (
	"github.com/kysee/zk-sha256/types"
)

// ProvingBackend defines the interface of a witness calculator + prover + verifier toolchain
type ProvingBackend interface {
	// ComputeWitness solves the circuit for the assignment and writes the full witness to witnessPath.
	// It fails with types.ErrUnsatisfiableAssignment rather than writing a witness that violates a constraint.
	ComputeWitness(assignment *types.CircuitAssignment, witnessPath string) error
	// Prove reads the witness and returns the proof together with its public signals
	Prove(witnessPath string) (*types.Proof, []string, error)
	// Verify checks a proof against public signals with the verifying key
	Verify(proof *types.Proof, publicSignals []string) (bool, error)
}
