package main

import (
	"fmt"

	"github.com/kysee/zk-sha256/logging"
	provertypes "github.com/kysee/zk-sha256/provers/types"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// app carries the configuration and logger shared by every command
type app struct {
	cfg    *provertypes.Config
	logger zerolog.Logger
}

const disclosureNote = `Note: the hash transaction sends the padded preimage to the hash contract in
clear, so the input becomes public on chain. Only the proof step keeps it private.`

func newRootCmd() *cobra.Command {
	a := &app{cfg: provertypes.NewConfig(), logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "zksha",
		Short: "SHA-256 preimage commit, prove and verify",
		Long: `Commit a short input by its SHA-256 digest, prove knowledge of the preimage with a
Groth16 proof and check the proof with the on-chain verifier contract.

Configuration is read from the environment and an optional .env file under --root;
flags override both.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.reloadForRoot(cmd.Flags(), cmd.Root().PersistentFlags()); err != nil {
				return err
			}
			a.logger = logging.New(a.cfg.LogLevel, a.cfg.LogFormat, cmd.ErrOrStderr())
			return a.cfg.Validate()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfg.RootDir, "root", a.cfg.RootDir, "Project root that relative paths resolve against (ROOT)")
	flags.StringVarP(&a.cfg.Network, "network", "n", a.cfg.Network, "Network name, hardhat or arc_testnet for the presets (NETWORK)")
	flags.StringVar(&a.cfg.RPCEndpoint, "rpc", a.cfg.RPCEndpoint, "RPC endpoint, overrides the network preset (RPC_ENDPOINT)")
	flags.StringVar(&a.cfg.BuildDir, "build-dir", a.cfg.BuildDir, "Directory of the constraint system and keys (BUILD_DIR)")
	flags.StringVar(&a.cfg.ArtifactsDir, "artifacts-dir", a.cfg.ArtifactsDir, "Directory of proofs, deployments and verifications (ARTIFACTS_DIR)")
	flags.StringVar(&a.cfg.Store, "store", a.cfg.Store, "Record store, file or badger (STORE)")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "Log level (LOG_LEVEL)")
	flags.StringVar(&a.cfg.LogFormat, "log-format", a.cfg.LogFormat, "Log format, text or json (LOG_FORMAT)")
	flags.Uint64Var(&a.cfg.GasLimitHash, "gas-limit-hash", a.cfg.GasLimitHash, "Gas limit of the hash transaction (GAS_LIMIT_HASH)")
	flags.Uint64Var(&a.cfg.GasLimitVerify, "gas-limit-verify", a.cfg.GasLimitVerify, "Gas limit of the verifyProof transaction (GAS_LIMIT_VERIFY)")
	flags.DurationVar(&a.cfg.ConfirmTimeout, "confirm-timeout", a.cfg.ConfirmTimeout, "How long to wait for a transaction receipt (CONFIRM_TIMEOUT)")
	flags.DurationVar(&a.cfg.PollInterval, "poll-interval", a.cfg.PollInterval, "Receipt polling interval (POLL_INTERVAL)")

	rootCmd.AddCommand(
		newSetupCmd(a),
		newProveCmd(a),
		newVerifyCmd(a),
		newRunCmd(a),
		newBatchCmd(a),
		newRegisterCmd(a),
		newVersionCmd(),
	)

	return rootCmd
}

// reloadForRoot rebuilds the configuration from the .env under --root when that flag was
// given, then re-applies the configuration flags set on the command line.
func (a *app) reloadForRoot(flags, configFlags *pflag.FlagSet) error {
	if !flags.Changed("root") {
		return nil
	}
	changed := map[string]string{}
	flags.Visit(func(f *pflag.Flag) {
		if configFlags.Lookup(f.Name) != nil {
			changed[f.Name] = f.Value.String()
		}
	})

	// the flags are bound to the fields of *a.cfg, so it is replaced in place
	*a.cfg = *provertypes.LoadConfig(a.cfg.RootDir)
	for name, value := range changed {
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("failed to re-apply --%s: %w", name, err)
		}
	}
	return nil
}
