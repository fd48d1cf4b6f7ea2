package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/kysee/zk-sha256/chain"
	"github.com/kysee/zk-sha256/metrics"
	"github.com/kysee/zk-sha256/pipeline"
	prover "github.com/kysee/zk-sha256/provers"
	"github.com/kysee/zk-sha256/store"
	"github.com/kysee/zk-sha256/types"
)

func (a *app) openStore() (store.Store, error) {
	return store.Open(a.cfg.Store, a.cfg.Path(a.cfg.ArtifactsDir), a.logger)
}

// loadBuilder loads the keys written by `zksha setup`
func (a *app) loadBuilder() (*prover.Builder, error) {
	ccsPath, pkPath, vkPath := a.cfg.CircuitPaths()
	backend, err := prover.LoadGroth16Backend(ccsPath, pkPath, vkPath, a.logger)
	if err != nil {
		return nil, fmt.Errorf("%w (run `zksha setup` first)", err)
	}
	return prover.NewBuilder(backend, a.cfg.Path(a.cfg.BuildDir), a.logger), nil
}

func (a *app) dial(ctx context.Context) (*ethclient.Client, error) {
	endpoint := a.cfg.Endpoint()
	rpc, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial %s: %v", types.ErrRPC, endpoint, err)
	}
	return rpc, nil
}

// checkChainID compares the node's chain id with the network preset
func (a *app) checkChainID(ctx context.Context, rpc *ethclient.Client) (string, error) {
	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: failed to get chain id: %v", types.ErrRPC, err)
	}
	if expected := a.cfg.ExpectedChainID(); expected != 0 && (!chainID.IsUint64() || chainID.Uint64() != expected) {
		return "", fmt.Errorf("node at %s reports chain id %s, network %s expects %d", a.cfg.Endpoint(), chainID, a.cfg.Network, expected)
	}
	return chainID.String(), nil
}

// newChainClient connects to the latest deployment of the configured network.
// The returned close func releases the RPC connection.
func (a *app) newChainClient(ctx context.Context, s store.Store) (*chain.Client, *types.DeploymentRecord, func(), error) {
	deployment, err := s.LatestDeployment(a.cfg.Network)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w (run `zksha register` first)", err)
	}
	if !common.IsHexAddress(deployment.HashContract) || !common.IsHexAddress(deployment.VerifierContract) {
		return nil, nil, nil, fmt.Errorf("deployment %s has invalid contract addresses", deployment.ID)
	}
	if a.cfg.PrivateKey == "" {
		return nil, nil, nil, fmt.Errorf("PRIVATE_KEY is required to submit transactions")
	}
	key, err := chain.ParsePrivateKey(a.cfg.PrivateKey)
	if err != nil {
		return nil, nil, nil, err
	}

	rpc, err := a.dial(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	chainID, err := a.checkChainID(ctx, rpc)
	if err != nil {
		rpc.Close()
		return nil, nil, nil, err
	}
	if deployment.ChainID != "" && deployment.ChainID != chainID {
		rpc.Close()
		return nil, nil, nil, fmt.Errorf("deployment %s was registered on chain %s, node reports %s", deployment.ID, deployment.ChainID, chainID)
	}

	client, err := chain.NewClient(ctx, rpc, key, chain.Config{
		HashContract:     common.HexToAddress(deployment.HashContract),
		VerifierContract: common.HexToAddress(deployment.VerifierContract),
		GasLimitHash:     a.cfg.GasLimitHash,
		GasLimitVerify:   a.cfg.GasLimitVerify,
		GasPrice:         a.cfg.GasPrice,
		ConfirmTimeout:   a.cfg.ConfirmTimeout,
		PollInterval:     a.cfg.PollInterval,
	}, a.logger)
	if err != nil {
		rpc.Close()
		return nil, nil, nil, err
	}
	return client, deployment, rpc.Close, nil
}

func (a *app) orchestrator(p pipeline.Prover, client *chain.Client, s store.Store, m *metrics.Metrics) *pipeline.Orchestrator {
	o := &pipeline.Orchestrator{
		Prover:  p,
		Store:   s,
		Network: a.cfg.Network,
		Metrics: m,
		Logger:  a.logger.With().Str("component", "pipeline").Logger(),
	}
	// a nil *chain.Client must not become a non-nil interface
	if client != nil {
		o.Chain = client
	}
	return o
}
