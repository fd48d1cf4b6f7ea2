package prover

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/kysee/zk-sha256/types"
)

// FormatCalldata converts a proof and its public signals into the verifyProof argument tuple.
//
// The words are taken from MarshalSolidity, so the G2 coordinates come imaginary part first,
// which is the order the EVM pairing precompile expects. A proof without commitments gets zero
// commitment words.
func FormatCalldata(proof *types.Proof, publicSignals []string) (*types.CalldataBundle, error) {
	native, err := proofToNative(proof)
	if err != nil {
		return nil, err
	}
	if len(publicSignals) != types.BlockBits {
		return nil, fmt.Errorf("%w: expected %d public signals, got %d", types.ErrMalformedProof, types.BlockBits, len(publicSignals))
	}
	signals, err := parseSignals(publicSignals)
	if err != nil {
		return nil, err
	}

	data, err := types.CreateProofData(native.MarshalSolidity())
	if err != nil {
		return nil, err
	}
	bundle := &types.CalldataBundle{
		A: [2]*big.Int{wordBig(data.Proof[0]), wordBig(data.Proof[1])},
		B: [2][2]*big.Int{
			{wordBig(data.Proof[2]), wordBig(data.Proof[3])},
			{wordBig(data.Proof[4]), wordBig(data.Proof[5])},
		},
		C:             [2]*big.Int{wordBig(data.Proof[6]), wordBig(data.Proof[7])},
		Commitments:   [2]*big.Int{new(big.Int), new(big.Int)},
		CommitmentPok: [2]*big.Int{new(big.Int), new(big.Int)},
		Input:         make([]*big.Int, len(signals)),
	}
	switch len(data.Commitments) {
	case 0:
	case 2:
		bundle.Commitments = [2]*big.Int{wordBig(data.Commitments[0]), wordBig(data.Commitments[1])}
		bundle.CommitmentPok = [2]*big.Int{wordBig(data.CommitmentPok[0]), wordBig(data.CommitmentPok[1])}
	default:
		return nil, fmt.Errorf("%w: %d commitment words", types.ErrMalformedProof, len(data.Commitments))
	}
	for i := range signals {
		bundle.Input[i] = signals[i].BigInt(new(big.Int))
	}
	return bundle, nil
}

// DecodeCalldata reconstructs the verifier-native proof and public input vector from a bundle.
func DecodeCalldata(bundle *types.CalldataBundle) (*groth16_bn254.Proof, fr.Vector, error) {
	if bundle == nil {
		return nil, nil, fmt.Errorf("%w: nil calldata", types.ErrMalformedProof)
	}
	native := &groth16_bn254.Proof{}
	var err error
	if native.Ar, err = g1FromBig(bundle.A); err != nil {
		return nil, nil, fmt.Errorf("%w: a: %v", types.ErrMalformedProof, err)
	}
	if native.Bs, err = g2FromBig(bundle.B); err != nil {
		return nil, nil, fmt.Errorf("%w: b: %v", types.ErrMalformedProof, err)
	}
	if native.Krs, err = g1FromBig(bundle.C); err != nil {
		return nil, nil, fmt.Errorf("%w: c: %v", types.ErrMalformedProof, err)
	}
	if !isZeroPair(bundle.Commitments) {
		cmt, err := g1FromBig(bundle.Commitments)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: commitment: %v", types.ErrMalformedProof, err)
		}
		native.Commitments = []bn254.G1Affine{cmt}
		if native.CommitmentPok, err = g1FromBig(bundle.CommitmentPok); err != nil {
			return nil, nil, fmt.Errorf("%w: commitment pok: %v", types.ErrMalformedProof, err)
		}
	}

	if len(bundle.Input) != types.BlockBits {
		return nil, nil, fmt.Errorf("%w: expected %d inputs, got %d", types.ErrMalformedProof, types.BlockBits, len(bundle.Input))
	}
	inputs := make(fr.Vector, len(bundle.Input))
	for i, v := range bundle.Input {
		if v == nil || v.Sign() < 0 || v.Cmp(fr.Modulus()) >= 0 {
			return nil, nil, fmt.Errorf("%w: input %d is not a canonical field element", types.ErrMalformedProof, i)
		}
		inputs[i].SetBigInt(v)
	}
	return native, inputs, nil
}

func wordBig(w types.HexBytes) *big.Int {
	return new(big.Int).SetBytes(w)
}

func isZeroPair(p [2]*big.Int) bool {
	return (p[0] == nil || p[0].Sign() == 0) && (p[1] == nil || p[1].Sign() == 0)
}

func g1FromBig(xy [2]*big.Int) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	var err error
	if p.X, err = fpFromBig(xy[0]); err != nil {
		return p, err
	}
	if p.Y, err = fpFromBig(xy[1]); err != nil {
		return p, err
	}
	return p, checkG1(&p)
}

// g2FromBig takes the calldata (A1, A0) ordering
func g2FromBig(b [2][2]*big.Int) (bn254.G2Affine, error) {
	var p bn254.G2Affine
	var err error
	if p.X.A1, err = fpFromBig(b[0][0]); err != nil {
		return p, err
	}
	if p.X.A0, err = fpFromBig(b[0][1]); err != nil {
		return p, err
	}
	if p.Y.A1, err = fpFromBig(b[1][0]); err != nil {
		return p, err
	}
	if p.Y.A0, err = fpFromBig(b[1][1]); err != nil {
		return p, err
	}
	return p, checkG2(&p)
}
