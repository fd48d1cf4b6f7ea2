package main

import (
	"github.com/spf13/cobra"
)

func newProveCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "prove <input>",
		Short: "Generate and locally verify a proof for an input of at most 32 bytes",
		Long: `Encode the input into one SHA-256 block, compute its digest, build a Groth16 proof of
the preimage and verify it locally. The proof artifact is stored as the latest proof of
the network. Nothing is sent to the chain; use "zksha verify" to submit it.`,
		Example: `  zksha prove "hello world"
  zksha prove "" --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, err := a.loadBuilder()
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			run := a.orchestrator(builder, nil, s, nil).Run(cmd.Context(), []byte(args[0]))
			if asJSON && run.Artifact != nil {
				if err := printJSON(cmd.OutOrStdout(), run.Artifact); err != nil {
					return err
				}
			} else if err := printRun(cmd.OutOrStdout(), run); err != nil {
				return err
			}
			return run.Err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the proof artifact as JSON")
	return cmd
}
