package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const hashContractABI = `[
	{"type":"function","name":"hash","stateMutability":"nonpayable",
	 "inputs":[{"name":"input","type":"bytes"}],
	 "outputs":[{"name":"","type":"bytes32"}]},
	{"type":"event","name":"HashComputed","anonymous":false,
	 "inputs":[{"name":"input","type":"bytes","indexed":false},{"name":"hash","type":"bytes32","indexed":false}]}
]`

const verifierContractABI = `[
	{"type":"function","name":"verifyProof","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"a","type":"uint256[2]"},
		{"name":"b","type":"uint256[2][2]"},
		{"name":"c","type":"uint256[2]"},
		{"name":"commitments","type":"uint256[2]"},
		{"name":"commitmentPok","type":"uint256[2]"},
		{"name":"input","type":"uint256[256]"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"ProofVerified","anonymous":false,
	 "inputs":[{"name":"submitter","type":"address","indexed":true}]}
]`

const (
	MethodHash         = "hash"
	MethodVerifyProof  = "verifyProof"
	EventHashComputed  = "HashComputed"
	EventProofVerified = "ProofVerified"
)

var (
	// HashABI is the interface of the on-chain SHA-256 contract
	HashABI = mustParseABI(hashContractABI)
	// VerifierABI is the interface of the proof verifier contract
	VerifierABI = mustParseABI(verifierContractABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
