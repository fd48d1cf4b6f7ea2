package main

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kysee/zk-sha256/chain"
	"github.com/kysee/zk-sha256/types"
	"github.com/spf13/cobra"
)

func newRegisterCmd(a *app) *cobra.Command {
	var hashAddr, verifierAddr string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Record the deployed hash and verifier contracts for a network",
		Long: `Record the addresses of the deployed hash contract and verifier contract. The chain id
is read from the node and the deployer is the account of PRIVATE_KEY. The record becomes
the latest deployment of the network and is used by verify, run and batch.`,
		Example: `  zksha register --network hardhat \
    --hash-address 0x5FbDB2315678afecb367f032d93F642f64180aa3 \
    --verifier-address 0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, addr := range []string{hashAddr, verifierAddr} {
				if !common.IsHexAddress(addr) {
					return fmt.Errorf("invalid contract address %q", addr)
				}
			}
			if a.cfg.PrivateKey == "" {
				return fmt.Errorf("PRIVATE_KEY is required to identify the deployer")
			}
			key, err := chain.ParsePrivateKey(a.cfg.PrivateKey)
			if err != nil {
				return err
			}

			rpc, err := a.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer rpc.Close()
			chainID, err := a.checkChainID(cmd.Context(), rpc)
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			deployment := &types.DeploymentRecord{
				Network:          a.cfg.Network,
				ChainID:          chainID,
				HashContract:     common.HexToAddress(hashAddr).Hex(),
				VerifierContract: common.HexToAddress(verifierAddr).Hex(),
				Deployer:         crypto.PubkeyToAddress(key.PublicKey).Hex(),
				CreatedAt:        time.Now().UTC(),
			}
			if err := s.SaveDeployment(deployment); err != nil {
				return err
			}
			a.logger.Info().
				Str("id", deployment.ID).
				Str("chainId", chainID).
				Str("hash", deployment.HashContract).
				Str("verifier", deployment.VerifierContract).
				Msg("deployment registered")
			return printJSON(cmd.OutOrStdout(), deployment)
		},
	}

	cmd.Flags().StringVar(&hashAddr, "hash-address", "", "Address of the hash contract")
	cmd.Flags().StringVar(&verifierAddr, "verifier-address", "", "Address of the verifier contract")
	_ = cmd.MarkFlagRequired("hash-address")
	_ = cmd.MarkFlagRequired("verifier-address")
	return cmd
}
