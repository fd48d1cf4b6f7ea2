// Package chaintest provides an in-process ledger that plays the hash and verifier contracts.
package chaintest

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kysee/zk-sha256/chain"
	"github.com/kysee/zk-sha256/types"
)

// VerifyFunc decides whether the verifier contract accepts a bundle
type VerifyFunc func(*types.CalldataBundle) (bool, error)

var (
	HashContract     = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	VerifierContract = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

// Ledger implements chain.Backend. Transactions are executed when sent and their receipts
// become visible after MineAfterPolls receipt queries.
type Ledger struct {
	mu       sync.Mutex
	chainID  *big.Int
	signer   ethtypes.Signer
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*ethtypes.Receipt
	polls    map[common.Hash]int
	block    uint64

	// Verify is consulted by verifyProof; nil accepts every proof
	Verify VerifyFunc

	// Fault injection
	SendErr        error
	ReceiptErr     error
	RevertHash     bool
	RevertVerify   bool
	TamperDigest   bool
	NeverMine      bool
	MineAfterPolls int

	Sent []*ethtypes.Transaction
}

var _ chain.Backend = (*Ledger)(nil)

// NewLedger creates an empty ledger for chainID
func NewLedger(chainID int64) *Ledger {
	id := big.NewInt(chainID)
	return &Ledger{
		chainID:  id,
		signer:   ethtypes.LatestSignerForChainID(id),
		nonces:   make(map[common.Address]uint64),
		receipts: make(map[common.Hash]*ethtypes.Receipt),
		polls:    make(map[common.Hash]int),
	}
}

// NewKey returns a fresh signing key, panicking on failure
func NewKey() *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return key
}

func (l *Ledger) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(l.chainID), nil
}

func (l *Ledger) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nonces[account], nil
}

func (l *Ledger) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (l *Ledger) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.SendErr != nil {
		return l.SendErr
	}
	from, err := ethtypes.Sender(l.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if expected := l.nonces[from]; tx.Nonce() != expected {
		return fmt.Errorf("invalid nonce: have %d, want %d", tx.Nonce(), expected)
	}
	l.nonces[from]++
	l.Sent = append(l.Sent, tx)

	l.block++
	receipt := &ethtypes.Receipt{
		Type:        tx.Type(),
		Status:      ethtypes.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(l.block),
		GasUsed:     21_000 + uint64(len(tx.Data()))*16,
	}

	var logs []*ethtypes.Log
	switch to := tx.To(); {
	case to != nil && *to == HashContract:
		logs, err = l.execHash(tx.Data())
		if l.RevertHash {
			err = errors.New("reverted")
		}
	case to != nil && *to == VerifierContract:
		logs, err = l.execVerify(from, tx.Data())
		if l.RevertVerify {
			err = errors.New("reverted")
		}
	default:
		err = errors.New("no contract at address")
	}
	if err != nil {
		receipt.Status = ethtypes.ReceiptStatusFailed
		logs = nil
	}
	for i, lg := range logs {
		lg.TxHash = tx.Hash()
		lg.BlockNumber = l.block
		lg.Index = uint(i)
	}
	receipt.Logs = logs

	l.receipts[tx.Hash()] = receipt
	l.polls[tx.Hash()] = l.MineAfterPolls
	return nil
}

func (l *Ledger) TransactionReceipt(_ context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ReceiptErr != nil {
		return nil, l.ReceiptErr
	}
	receipt, ok := l.receipts[txHash]
	if !ok || l.NeverMine {
		return nil, ethereum.NotFound
	}
	if l.polls[txHash] > 0 {
		l.polls[txHash]--
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// Nonce returns the next nonce of account
func (l *Ledger) Nonce(account common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nonces[account]
}

func (l *Ledger) execHash(data []byte) ([]*ethtypes.Log, error) {
	method := chain.HashABI.Methods[chain.MethodHash]
	if len(data) < 4 || string(data[:4]) != string(method.ID) {
		return nil, errors.New("unknown method")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	input := args[0].([]byte)

	digest := sha256.Sum256(input)
	if l.TamperDigest {
		digest[0] ^= 0xff
	}

	event := chain.HashABI.Events[chain.EventHashComputed]
	payload, err := event.Inputs.Pack(input, digest)
	if err != nil {
		return nil, err
	}
	return []*ethtypes.Log{{
		Address: HashContract,
		Topics:  []common.Hash{event.ID},
		Data:    payload,
	}}, nil
}

func (l *Ledger) execVerify(from common.Address, data []byte) ([]*ethtypes.Log, error) {
	method := chain.VerifierABI.Methods[chain.MethodVerifyProof]
	if len(data) < 4 || string(data[:4]) != string(method.ID) {
		return nil, errors.New("unknown method")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	input := args[5].([256]*big.Int)
	bundle := &types.CalldataBundle{
		A:             args[0].([2]*big.Int),
		B:             args[1].([2][2]*big.Int),
		C:             args[2].([2]*big.Int),
		Commitments:   args[3].([2]*big.Int),
		CommitmentPok: args[4].([2]*big.Int),
		Input:         input[:],
	}

	ok := true
	if l.Verify != nil {
		if ok, err = l.Verify(bundle); err != nil {
			// a malformed proof makes the pairing precompile fail
			return nil, err
		}
	}
	if !ok {
		return nil, nil
	}
	return []*ethtypes.Log{{
		Address: VerifierContract,
		Topics:  []common.Hash{chain.VerifierABI.Events[chain.EventProofVerified].ID, common.BytesToHash(from.Bytes())},
	}}, nil
}
