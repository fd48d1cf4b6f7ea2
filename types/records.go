package types

import "time"

// DeploymentRecord describes one deployment of the hash and verifier contracts.
type DeploymentRecord struct {
	ID               string    `json:"id"`
	Network          string    `json:"network"`
	ChainID          string    `json:"chainId"`
	HashContract     string    `json:"sha256Address"`
	VerifierContract string    `json:"verifierAddress"`
	Deployer         string    `json:"deployer"`
	CreatedAt        time.Time `json:"timestamp"`
}

// ProofArtifact is everything produced for one input before it touches the chain.
type ProofArtifact struct {
	ID            string          `json:"id"`
	Network       string          `json:"network"`
	Input         string          `json:"input"`
	Encoded       *EncodedInput   `json:"encoded"`
	Digest        Digest          `json:"expectedHash"`
	Proof         *Proof          `json:"proof"`
	PublicSignals []string        `json:"publicSignals"`
	Calldata      *CalldataBundle `json:"calldata"`
	CreatedAt     time.Time       `json:"timestamp"`
}

// TxOutcome is the observable result of one submitted transaction.
type TxOutcome struct {
	TxHash      string `json:"hash,omitempty"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	GasUsed     uint64 `json:"gasUsed,omitempty"`
	Error       string `json:"error,omitempty"`
}

// VerificationRecord is appended after an on-chain round trip.
type VerificationRecord struct {
	ID             string    `json:"id"`
	ArtifactID     string    `json:"proofId"`
	Network        string    `json:"network"`
	Input          string    `json:"input"`
	ObservedDigest *Digest   `json:"hash,omitempty"`
	HashTx         TxOutcome `json:"hashComputation"`
	VerifyTx       TxOutcome `json:"proofVerification"`
	Success        bool      `json:"success"`
	CreatedAt      time.Time `json:"timestamp"`
}
