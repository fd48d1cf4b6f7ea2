package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/consensys/gnark/backend/groth16"
	prover "github.com/kysee/zk-sha256/provers"
	"github.com/spf13/cobra"
)

func newSetupCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Compile the circuit, generate keys and export the Solidity verifier",
		Long: `Compile the SHA-256 preimage circuit, run a single-party Groth16 setup and write the
constraint system and keys to the build directory. The verifier contract is exported to
contracts/Sha256PreimageVerifier.sol. The keys are only suitable for development networks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ccsPath, pkPath, vkPath := a.cfg.CircuitPaths()

			if _, err := os.Stat(ccsPath); err == nil && !force {
				a.logger.Info().Str("path", ccsPath).Msg("circuit already set up, exporting verifier only (use --force to redo setup)")
				vk, err := prover.LoadVerifyingKey(vkPath)
				if err != nil {
					return err
				}
				return a.exportVerifier(cmd, vk)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to stat %s: %w", ccsPath, err)
			}

			_, _, vk, err := prover.SetupCircuit(ccsPath, pkPath, vkPath, a.logger)
			if err != nil {
				return err
			}
			return a.exportVerifier(cmd, vk)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing constraint system and keys")
	return cmd
}

func (a *app) exportVerifier(cmd *cobra.Command, vk groth16.VerifyingKey) error {
	path := a.cfg.SolidityPath()
	if err := prover.ExportSolidity(vk, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "verifier contract written to %s\n", path)
	return nil
}
