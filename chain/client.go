package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kysee/zk-sha256/types"
	"github.com/rs/zerolog"
)

// Backend is the subset of ethclient.Client the submitter needs
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// Config holds the contract addresses and transaction parameters
type Config struct {
	HashContract     common.Address
	VerifierContract common.Address

	GasLimitHash   uint64
	GasLimitVerify uint64
	// GasPrice in wei; nil asks the node
	GasPrice       *big.Int
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// HashReceipt is the confirmed result of a hash transaction
type HashReceipt struct {
	TxHash         common.Hash
	BlockNumber    uint64
	GasUsed        uint64
	ObservedDigest *types.Digest
}

// VerifyReceipt is the confirmed result of a verifyProof transaction
type VerifyReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	// Success is true iff the verifier emitted ProofVerified
	Success bool
}

// Client submits hash and verification transactions from one account.
// Nonce allocation, broadcast and confirmation are serialised per client.
type Client struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	signer  ethtypes.Signer
	cfg     Config
	logger  zerolog.Logger

	mu    sync.Mutex
	nonce *uint64
}

// ParsePrivateKey parses a hex encoded secp256k1 key, with or without 0x prefix
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

// NewClient creates a client and resolves the chain id from the backend
func NewClient(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, cfg Config, logger zerolog.Logger) (*Client, error) {
	if key == nil {
		return nil, fmt.Errorf("a signing key is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 2 * time.Minute
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get chain id: %v", types.ErrRPC, err)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	return &Client{
		backend: backend,
		key:     key,
		from:    from,
		chainID: chainID,
		signer:  ethtypes.LatestSignerForChainID(chainID),
		cfg:     cfg,
		logger: logger.With().
			Str("component", "chain").
			Str("from", from.Hex()).
			Logger(),
	}, nil
}

// ChainID returns the chain id reported by the node
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// From returns the submitting account
func (c *Client) From() common.Address {
	return c.from
}

// SubmitHash sends the padded block to the hash contract and checks the digest it emits.
// Once the transaction is broadcast the receipt is returned even alongside an error.
func (c *Client) SubmitHash(ctx context.Context, padded [types.BlockSize]byte) (*HashReceipt, error) {
	data, err := HashABI.Pack(MethodHash, padded[:])
	if err != nil {
		return nil, fmt.Errorf("failed to pack hash call: %w", err)
	}

	receipt, txHash, err := c.transact(ctx, c.cfg.HashContract, data, c.cfg.GasLimitHash)
	if err != nil && txHash == (common.Hash{}) {
		return nil, err
	}
	out := receiptToHash(receipt, txHash)
	if err != nil {
		return out, err
	}

	observed, ok := HashComputedDigest(receipt, c.cfg.HashContract)
	if !ok {
		return out, fmt.Errorf("%w: no %s event in tx %s", types.ErrDigestMismatch, EventHashComputed, txHash.Hex())
	}
	out.ObservedDigest = &observed

	if expected := types.ComputeDigest(padded); observed != expected {
		return out, fmt.Errorf("%w: chain %s, local %s", types.ErrDigestMismatch, observed, expected)
	}

	c.logger.Info().
		Str("tx", txHash.Hex()).
		Uint64("block", out.BlockNumber).
		Str("digest", observed.Hex()).
		Msg("hash confirmed")
	return out, nil
}

// SubmitVerification sends the calldata to the verifier contract.
// A confirmed transaction without a ProofVerified event is a rejection, not an error.
// As with SubmitHash the receipt is returned with the error once the transaction is broadcast.
func (c *Client) SubmitVerification(ctx context.Context, calldata *types.CalldataBundle) (*VerifyReceipt, error) {
	data, err := PackVerifyProof(calldata)
	if err != nil {
		return nil, err
	}

	receipt, txHash, err := c.transact(ctx, c.cfg.VerifierContract, data, c.cfg.GasLimitVerify)
	if err != nil && txHash == (common.Hash{}) {
		return nil, err
	}
	out := &VerifyReceipt{TxHash: txHash}
	if receipt != nil {
		out.BlockNumber = blockNumber(receipt)
		out.GasUsed = receipt.GasUsed
	}
	if err != nil {
		return out, err
	}

	out.Success = HasProofVerified(receipt, c.cfg.VerifierContract)
	c.logger.Info().
		Str("tx", txHash.Hex()).
		Uint64("block", out.BlockNumber).
		Uint64("gasUsed", out.GasUsed).
		Bool("success", out.Success).
		Msg("verification confirmed")
	return out, nil
}

// PackVerifyProof encodes a verifyProof call for the bundle
func PackVerifyProof(calldata *types.CalldataBundle) ([]byte, error) {
	if calldata == nil || len(calldata.Input) != types.BlockBits {
		return nil, fmt.Errorf("%w: calldata must carry %d public inputs", types.ErrMalformedProof, types.BlockBits)
	}
	var input [types.BlockBits]*big.Int
	copy(input[:], calldata.Input)

	data, err := VerifierABI.Pack(MethodVerifyProof,
		calldata.A, calldata.B, calldata.C, calldata.Commitments, calldata.CommitmentPok, input)
	if err != nil {
		return nil, fmt.Errorf("failed to pack verifyProof call: %w", err)
	}
	return data, nil
}

// transact signs, broadcasts and waits for one transaction while holding the client lock.
// The transaction hash is returned whenever the transaction was broadcast.
func (c *Client) transact(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*ethtypes.Receipt, common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, common.Hash{}, err
	}

	nonce, err := c.nextNonce(ctx)
	if err != nil {
		return nil, common.Hash{}, err
	}
	gasPrice := c.cfg.GasPrice
	if gasPrice == nil {
		if gasPrice, err = c.backend.SuggestGasPrice(ctx); err != nil {
			return nil, common.Hash{}, fmt.Errorf("%w: failed to get gas price: %v", types.ErrRPC, err)
		}
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    new(big.Int),
		Data:     data,
	})
	signed, err := ethtypes.SignTx(tx, c.signer, c.key)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		// the node may have seen other transactions from this account
		c.nonce = nil
		return nil, common.Hash{}, fmt.Errorf("%w: failed to send transaction: %v", types.ErrRPC, err)
	}
	next := nonce + 1
	c.nonce = &next

	c.logger.Debug().
		Str("tx", signed.Hash().Hex()).
		Str("to", to.Hex()).
		Uint64("nonce", nonce).
		Msg("transaction sent")

	receipt, err := c.waitMined(ctx, signed.Hash())
	return receipt, signed.Hash(), err
}

func (c *Client) nextNonce(ctx context.Context) (uint64, error) {
	if c.nonce != nil {
		return *c.nonce, nil
	}
	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get nonce: %v", types.ErrRPC, err)
	}
	return nonce, nil
}

// waitMined polls for the receipt until it is found, the confirmation timeout passes or ctx is done
func (c *Client) waitMined(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	timeout := time.NewTimer(c.cfg.ConfirmTimeout)
	defer timeout.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == ethtypes.ReceiptStatusFailed {
				return receipt, fmt.Errorf("%w: %s", types.ErrTransactionReverted, txHash.Hex())
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			lastErr = err
			c.logger.Warn().Err(err).Str("tx", txHash.Hex()).Msg("failed to get receipt")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			if lastErr != nil {
				return nil, fmt.Errorf("%w: %s after %s: %v", types.ErrTimeout, txHash.Hex(), c.cfg.ConfirmTimeout, lastErr)
			}
			return nil, fmt.Errorf("%w: %s after %s", types.ErrTimeout, txHash.Hex(), c.cfg.ConfirmTimeout)
		case <-ticker.C:
		}
	}
}

// HashComputedDigest returns the digest of the first HashComputed event emitted by contract
func HashComputedDigest(receipt *ethtypes.Receipt, contract common.Address) (types.Digest, bool) {
	if receipt == nil {
		return types.Digest{}, false
	}
	event := HashABI.Events[EventHashComputed]
	for _, l := range receipt.Logs {
		if l.Address != contract || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		values, err := event.Inputs.Unpack(l.Data)
		if err != nil || len(values) != 2 {
			continue
		}
		digest, ok := values[1].([32]byte)
		if !ok {
			continue
		}
		return types.Digest(digest), true
	}
	return types.Digest{}, false
}

// HasProofVerified reports whether contract emitted ProofVerified in the receipt
func HasProofVerified(receipt *ethtypes.Receipt, contract common.Address) bool {
	if receipt == nil {
		return false
	}
	id := VerifierABI.Events[EventProofVerified].ID
	for _, l := range receipt.Logs {
		if l.Address == contract && len(l.Topics) > 0 && l.Topics[0] == id {
			return true
		}
	}
	return false
}

func receiptToHash(receipt *ethtypes.Receipt, txHash common.Hash) *HashReceipt {
	out := &HashReceipt{TxHash: txHash}
	if receipt != nil {
		out.BlockNumber = blockNumber(receipt)
		out.GasUsed = receipt.GasUsed
	}
	return out
}

func blockNumber(receipt *ethtypes.Receipt) uint64 {
	if receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}
