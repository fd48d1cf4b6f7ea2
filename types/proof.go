package types

import (
	"encoding/binary"
	"fmt"
	"math/big"

	bn254_fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Proof is a Groth16 proof over BN254 in the projective string layout used by snarkjs.
// B holds the extension-field coordinates as [A0, A1] pairs; the third row of each
// point is z.
type Proof struct {
	A             []string   `json:"pi_a"`
	B             [][]string `json:"pi_b"`
	C             []string   `json:"pi_c"`
	Commitments   [][]string `json:"commitments,omitempty"`
	CommitmentPok []string   `json:"commitment_pok,omitempty"`
	Protocol      string     `json:"protocol"`
	Curve         string     `json:"curve"`
}

// CalldataBundle is the argument tuple of the verifier contract's verifyProof.
type CalldataBundle struct {
	A             [2]*big.Int    `json:"a"`
	B             [2][2]*big.Int `json:"b"`
	C             [2]*big.Int    `json:"c"`
	Commitments   [2]*big.Int    `json:"commitments"`
	CommitmentPok [2]*big.Int    `json:"commitmentPok"`
	Input         []*big.Int     `json:"input"`
}

// WithDigest returns a copy of the bundle whose public input is bound to d.
func (cb *CalldataBundle) WithDigest(d Digest) *CalldataBundle {
	out := *cb
	out.Input = DigestSignals(d)
	return &out
}

// DigestSignals maps a digest to its public signal vector, one field element per bit.
func DigestSignals(d Digest) []*big.Int {
	bits := d.Bits()
	signals := make([]*big.Int, len(bits))
	for i, b := range bits {
		signals[i] = big.NewInt(int64(b))
	}
	return signals
}

// DigestSignalStrings is DigestSignals in decimal form.
func DigestSignalStrings(d Digest) []string {
	bits := d.Bits()
	signals := make([]string, len(bits))
	for i, b := range bits {
		if b == 1 {
			signals[i] = "1"
		} else {
			signals[i] = "0"
		}
	}
	return signals
}

// ProofData is the word-sliced form of a gnark MarshalSolidity proof blob.
type ProofData struct {
	Proof         []HexBytes `json:"proof"`
	Commitments   []HexBytes `json:"commitments"`
	CommitmentPok []HexBytes `json:"commitmentPok"`
}

// CreateProofData slices a MarshalSolidity blob:
// Ar | Bs | Krs (8 words), then uint32 commitment count, commitments, and the
// commitment proof of knowledge when commitments are present.
func CreateProofData(proofSolidity []byte) (*ProofData, error) {
	const word = bn254_fr.Bytes
	if len(proofSolidity) < 8*word {
		return nil, fmt.Errorf("%w: solidity proof has %d bytes", ErrMalformedProof, len(proofSolidity))
	}

	proof := make([]HexBytes, 8)
	for i := 0; i < len(proof); i++ {
		proof[i] = proofSolidity[i*word : (i+1)*word]
	}
	data := &ProofData{Proof: proof}
	if len(proofSolidity) == 8*word {
		return data, nil
	}

	rest := proofSolidity[8*word:]
	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: truncated commitment count", ErrMalformedProof)
	}
	nbCommitments := int(binary.BigEndian.Uint32(rest[:4]))
	rest = rest[4:]
	if len(rest) != (2*nbCommitments+2)*word {
		return nil, fmt.Errorf("%w: %d bytes for %d commitments", ErrMalformedProof, len(rest), nbCommitments)
	}
	for i := 0; i < 2*nbCommitments; i++ {
		data.Commitments = append(data.Commitments, rest[i*word:(i+1)*word])
	}
	rest = rest[2*nbCommitments*word:]
	data.CommitmentPok = []HexBytes{rest[:word], rest[word : 2*word]}
	return data, nil
}
