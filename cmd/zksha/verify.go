package main

import (
	"errors"
	"fmt"

	"github.com/kysee/zk-sha256/pipeline"
	"github.com/kysee/zk-sha256/types"
	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	var proofID string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Submit a stored proof to the hash and verifier contracts",
		Long: `Submit the latest stored proof of the network, or the one given by --id. The padded
input is sent to the hash contract first; the proof is then bound to the digest the
contract emitted and sent to the verifier contract. The outcome is stored as a
verification record.

A proof stored for another network is refused. When the circuit keys are present the
stored proof is verified locally first, so a bad proof never costs gas.

` + disclosureNote,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			var artifact *types.ProofArtifact
			if proofID != "" {
				artifact, err = s.Artifact(proofID)
			} else {
				artifact, err = s.LatestArtifact(a.cfg.Network)
			}
			if err != nil {
				return fmt.Errorf("%w (run `zksha prove` first)", err)
			}

			var verifier localVerifier
			if builder, err := a.loadBuilder(); err == nil {
				verifier = builder
			} else if !missingKeys(err) {
				return err
			}
			if err := a.checkArtifact(artifact, verifier); err != nil {
				return err
			}

			client, _, closeRPC, err := a.newChainClient(cmd.Context(), s)
			if err != nil {
				return err
			}
			defer closeRPC()

			run := a.orchestrator(nil, client, s, nil).Submit(cmd.Context(), artifact)
			if err := printRun(cmd.OutOrStdout(), run); err != nil {
				return err
			}
			return runError(run)
		},
	}

	cmd.Flags().StringVar(&proofID, "id", "", "Id of the stored proof to submit (default: latest of the network)")
	return cmd
}

// localVerifier re-checks a stored proof with the local verifying key
type localVerifier interface {
	VerifyLocally(proof *types.Proof, publicSignals []string) (bool, error)
}

// checkArtifact refuses a stored proof of another network, or one whose signals or proof
// do not hold up locally. Without a verifier only the network and signals are checked.
func (a *app) checkArtifact(artifact *types.ProofArtifact, verifier localVerifier) error {
	if artifact.Network != a.cfg.Network {
		return fmt.Errorf("%w: proof %s belongs to %s, not %s", types.ErrInvalidNetwork, artifact.ID, artifact.Network, a.cfg.Network)
	}
	want := types.DigestSignalStrings(artifact.Digest)
	if len(artifact.PublicSignals) != len(want) {
		return fmt.Errorf("%w: proof %s has %d public signals", types.ErrMalformedProof, artifact.ID, len(artifact.PublicSignals))
	}
	for i := range want {
		if artifact.PublicSignals[i] != want[i] {
			return fmt.Errorf("%w: proof %s public signals do not match its digest", types.ErrMalformedProof, artifact.ID)
		}
	}

	if verifier == nil {
		a.logger.Warn().Str("artifact", artifact.ID).Msg("circuit keys not found, submitting without a local re-check")
		return nil
	}
	ok, err := verifier.VerifyLocally(artifact.Proof, artifact.PublicSignals)
	if err != nil {
		return fmt.Errorf("proof %s: %w", artifact.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: proof %s does not verify with the local key", types.ErrMalformedProof, artifact.ID)
	}
	return nil
}

func missingKeys(err error) bool {
	return errors.Is(err, types.ErrToolchainUnavailable) ||
		errors.Is(err, types.ErrProvingKeyMissing) ||
		errors.Is(err, types.ErrVerifyingKeyMissing)
}

// runError turns a failed or rejected run into the command's error
func runError(run *pipeline.Run) error {
	if run.Err != nil {
		return run.Err
	}
	if run.Outcome() == pipeline.OutcomeRejected {
		return fmt.Errorf("proof rejected by the verifier contract")
	}
	return nil
}
