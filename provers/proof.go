package prover

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/kysee/zk-sha256/types"
)

const (
	protocolGroth16 = "groth16"
	curveBN254      = "bn128"
)

// proofFromNative converts a gnark bn254 proof into the projective decimal layout
func proofFromNative(p *groth16_bn254.Proof) *types.Proof {
	out := &types.Proof{
		A: []string{fpString(&p.Ar.X), fpString(&p.Ar.Y), "1"},
		B: [][]string{
			{fpString(&p.Bs.X.A0), fpString(&p.Bs.X.A1)},
			{fpString(&p.Bs.Y.A0), fpString(&p.Bs.Y.A1)},
			{"1", "0"},
		},
		C:        []string{fpString(&p.Krs.X), fpString(&p.Krs.Y), "1"},
		Protocol: protocolGroth16,
		Curve:    curveBN254,
	}
	for i := range p.Commitments {
		out.Commitments = append(out.Commitments, []string{fpString(&p.Commitments[i].X), fpString(&p.Commitments[i].Y)})
	}
	if len(p.Commitments) > 0 {
		out.CommitmentPok = []string{fpString(&p.CommitmentPok.X), fpString(&p.CommitmentPok.Y)}
	}
	return out
}

// proofToNative parses the decimal layout back into curve points.
// Every coordinate must be canonical and every point on the curve and in the prime subgroup.
func proofToNative(p *types.Proof) (*groth16_bn254.Proof, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil proof", types.ErrMalformedProof)
	}
	if len(p.A) != 3 || len(p.C) != 3 || len(p.B) != 3 {
		return nil, fmt.Errorf("%w: expected 3 rows for a, b and c", types.ErrMalformedProof)
	}
	for _, row := range p.B {
		if len(row) != 2 {
			return nil, fmt.Errorf("%w: b rows must have 2 coordinates", types.ErrMalformedProof)
		}
	}
	if p.A[2] != "1" || p.C[2] != "1" || p.B[2][0] != "1" || p.B[2][1] != "0" {
		return nil, fmt.Errorf("%w: projective z must be 1", types.ErrMalformedProof)
	}
	if len(p.Commitments) > 1 {
		return nil, fmt.Errorf("%w: %d commitments, at most 1 supported", types.ErrMalformedProof, len(p.Commitments))
	}
	if len(p.Commitments) == 1 && len(p.CommitmentPok) != 2 {
		return nil, fmt.Errorf("%w: commitment proof of knowledge missing", types.ErrMalformedProof)
	}

	native := &groth16_bn254.Proof{}
	var err error
	if native.Ar, err = g1FromStrings(p.A[0], p.A[1]); err != nil {
		return nil, fmt.Errorf("%w: a: %v", types.ErrMalformedProof, err)
	}
	if native.Bs, err = g2FromStrings(p.B[0][0], p.B[0][1], p.B[1][0], p.B[1][1]); err != nil {
		return nil, fmt.Errorf("%w: b: %v", types.ErrMalformedProof, err)
	}
	if native.Krs, err = g1FromStrings(p.C[0], p.C[1]); err != nil {
		return nil, fmt.Errorf("%w: c: %v", types.ErrMalformedProof, err)
	}
	for _, cmt := range p.Commitments {
		if len(cmt) != 2 {
			return nil, fmt.Errorf("%w: commitment must have 2 coordinates", types.ErrMalformedProof)
		}
		point, err := g1FromStrings(cmt[0], cmt[1])
		if err != nil {
			return nil, fmt.Errorf("%w: commitment: %v", types.ErrMalformedProof, err)
		}
		native.Commitments = append(native.Commitments, point)
	}
	if len(p.Commitments) == 1 {
		if native.CommitmentPok, err = g1FromStrings(p.CommitmentPok[0], p.CommitmentPok[1]); err != nil {
			return nil, fmt.Errorf("%w: commitment pok: %v", types.ErrMalformedProof, err)
		}
	}
	return native, nil
}

// parseSignals parses decimal public signals into scalar field elements
func parseSignals(signals []string) (fr.Vector, error) {
	out := make(fr.Vector, len(signals))
	for i, s := range signals {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok || v.Sign() < 0 || v.Cmp(fr.Modulus()) >= 0 {
			return nil, fmt.Errorf("%w: public signal %d is not a canonical field element", types.ErrMalformedProof, i)
		}
		out[i].SetBigInt(v)
	}
	return out, nil
}

func fpString(e *fp.Element) string {
	return e.BigInt(new(big.Int)).String()
}

func fpFromBig(v *big.Int) (fp.Element, error) {
	var e fp.Element
	if v == nil || v.Sign() < 0 || v.Cmp(fp.Modulus()) >= 0 {
		return e, fmt.Errorf("coordinate is not a canonical base field element")
	}
	e.SetBigInt(v)
	return e, nil
}

func fpFromString(s string) (fp.Element, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fp.Element{}, fmt.Errorf("coordinate %q is not a decimal integer", s)
	}
	return fpFromBig(v)
}

func g1FromStrings(x, y string) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	var err error
	if p.X, err = fpFromString(x); err != nil {
		return p, err
	}
	if p.Y, err = fpFromString(y); err != nil {
		return p, err
	}
	return p, checkG1(&p)
}

// g2FromStrings takes the coordinates in (A0, A1) order
func g2FromStrings(xA0, xA1, yA0, yA1 string) (bn254.G2Affine, error) {
	var p bn254.G2Affine
	var err error
	if p.X.A0, err = fpFromString(xA0); err != nil {
		return p, err
	}
	if p.X.A1, err = fpFromString(xA1); err != nil {
		return p, err
	}
	if p.Y.A0, err = fpFromString(yA0); err != nil {
		return p, err
	}
	if p.Y.A1, err = fpFromString(yA1); err != nil {
		return p, err
	}
	return p, checkG2(&p)
}

func checkG1(p *bn254.G1Affine) error {
	if !p.IsOnCurve() || !p.IsInSubGroup() {
		return fmt.Errorf("point is not in G1")
	}
	return nil
}

func checkG2(p *bn254.G2Affine) error {
	if !p.IsOnCurve() || !p.IsInSubGroup() {
		return fmt.Errorf("point is not in G2")
	}
	return nil
}
