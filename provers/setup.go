package prover

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/solidity"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/kysee/zk-sha256/circuits"
	"github.com/rs/zerolog"
)

// CompileCircuit compiles the preimage circuit over the BN254 scalar field
func CompileCircuit() (constraint.ConstraintSystem, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit.Sha256PreimageCircuit{})
	if err != nil {
		return nil, fmt.Errorf("failed to compile circuit: %w", err)
	}
	return ccs, nil
}

// SetupCircuit compiles the circuit, runs a single-party groth16 setup and saves the results.
// The keys are only suitable for development networks.
func SetupCircuit(ccsPath, pkPath, vkPath string, logger zerolog.Logger) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	logger = logger.With().Str("component", "setup").Logger()

	//
	// Step 1: Compile circuit and save to file
	logger.Info().Msg("compiling Sha256PreimageCircuit")
	ccs, err := CompileCircuit()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := writeTo(ccsPath, ccs); err != nil {
		return nil, nil, nil, err
	}
	logger.Info().
		Str("path", ccsPath).
		Int("constraints", ccs.GetNbConstraints()).
		Int("public", ccs.GetNbPublicVariables()).
		Msg("constraint system saved")

	//
	// Step 2: Setup (generate proving and verifying keys)
	logger.Info().Msg("generating proving and verifying keys")
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("groth16 setup failed: %w", err)
	}
	if err := writeTo(pkPath, pk); err != nil {
		return nil, nil, nil, err
	}
	if err := writeTo(vkPath, vk); err != nil {
		return nil, nil, nil, err
	}
	logger.Info().Str("pk", pkPath).Str("vk", vkPath).Msg("setup complete")

	return ccs, pk, vk, nil
}

// ExportSolidity writes the Solidity verifier for vk to path
func ExportSolidity(vk groth16.VerifyingKey, path string) error {
	var buf bytes.Buffer
	err := vk.ExportSolidity(&buf, solidity.WithHashToFieldFunction(sha256.New()))
	if err != nil {
		return fmt.Errorf("failed to export solidity verifier: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create contracts dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write solidity verifier: %w", err)
	}
	return nil
}

func writeTo(path string, src io.WriterTo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create build dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := src.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
