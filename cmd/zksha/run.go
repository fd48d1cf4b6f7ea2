package main

import (
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Prove an input and verify the proof on chain",
		Long: `Run the whole pipeline for one input: encode, hash, prove, verify locally, submit the
hash transaction, submit the proof and record the outcome.

` + disclosureNote,
		Example: `  zksha run "hello world" --network hardhat`,
		Args:    cobra.ExactArgs(1),
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

			client, _, closeRPC, err := a.newChainClient(cmd.Context(), s)
			if err != nil {
				return err
			}
			defer closeRPC()

			run := a.orchestrator(builder, client, s, nil).Run(cmd.Context(), []byte(args[0]))
			if err := printRun(cmd.OutOrStdout(), run); err != nil {
				return err
			}
			return runError(run)
		},
	}
	return cmd
}
