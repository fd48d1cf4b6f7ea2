package prover

import (
	"context"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/kysee/zk-sha256/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// syntheticProof builds a well-formed but invalid proof from multiples of the generators
func syntheticProof(withCommitment bool) *groth16_bn254.Proof {
	_, _, g1, g2 := bn254.Generators()
	var a, c, cmt, pok bn254.G1Affine
	var b bn254.G2Affine
	a.ScalarMultiplication(&g1, big.NewInt(3))
	c.ScalarMultiplication(&g1, big.NewInt(5))
	b.ScalarMultiplication(&g2, big.NewInt(7))
	p := &groth16_bn254.Proof{Ar: a, Bs: b, Krs: c}
	if withCommitment {
		cmt.ScalarMultiplication(&g1, big.NewInt(11))
		pok.ScalarMultiplication(&g1, big.NewInt(13))
		p.Commitments = []bn254.G1Affine{cmt}
		p.CommitmentPok = pok
	}
	return p
}

func helloSignals(t testing.TB) []string {
	_, digest := helloAssignment(t)
	return types.DigestSignalStrings(digest)
}

func TestFormatCalldataRoundTrip(t *testing.T) {
	for _, withCommitment := range []bool{false, true} {
		native := syntheticProof(withCommitment)
		signals := helloSignals(t)

		bundle, err := FormatCalldata(proofFromNative(native), signals)
		require.NoError(t, err)
		require.Len(t, bundle.Input, types.BlockBits)

		// b is imaginary part first
		require.Equal(t, native.Bs.X.A1.BigInt(new(big.Int)), bundle.B[0][0])
		require.Equal(t, native.Bs.X.A0.BigInt(new(big.Int)), bundle.B[0][1])

		decoded, inputs, err := DecodeCalldata(bundle)
		require.NoError(t, err)
		require.True(t, decoded.Ar.Equal(&native.Ar))
		require.True(t, decoded.Bs.Equal(&native.Bs))
		require.True(t, decoded.Krs.Equal(&native.Krs))
		require.Equal(t, len(native.Commitments), len(decoded.Commitments))
		if withCommitment {
			require.True(t, decoded.Commitments[0].Equal(&native.Commitments[0]))
			require.True(t, decoded.CommitmentPok.Equal(&native.CommitmentPok))
		}
		for i := range inputs {
			require.Equal(t, signals[i], inputs[i].String())
		}
	}
}

func TestFormatCalldataMatchesMarshalSolidity(t *testing.T) {
	native := syntheticProof(true)
	bundle, err := FormatCalldata(proofFromNative(native), helloSignals(t))
	require.NoError(t, err)

	data, err := types.CreateProofData(native.MarshalSolidity())
	require.NoError(t, err)

	words := []*big.Int{
		bundle.A[0], bundle.A[1],
		bundle.B[0][0], bundle.B[0][1], bundle.B[1][0], bundle.B[1][1],
		bundle.C[0], bundle.C[1],
	}
	for i, w := range words {
		require.Equal(t, w, new(big.Int).SetBytes(data.Proof[i]), "word %d", i)
	}
	require.Equal(t, bundle.Commitments[0], new(big.Int).SetBytes(data.Commitments[0]))
	require.Equal(t, bundle.Commitments[1], new(big.Int).SetBytes(data.Commitments[1]))
	require.Equal(t, bundle.CommitmentPok[0], new(big.Int).SetBytes(data.CommitmentPok[0]))
	require.Equal(t, bundle.CommitmentPok[1], new(big.Int).SetBytes(data.CommitmentPok[1]))
}

func TestFormatCalldataRejectsMalformed(t *testing.T) {
	signals := helloSignals(t)
	valid := func() *types.Proof { return proofFromNative(syntheticProof(true)) }

	cases := map[string]func() (*types.Proof, []string){
		"short a": func() (*types.Proof, []string) {
			p := valid()
			p.A = p.A[:2]
			return p, signals
		},
		"b row": func() (*types.Proof, []string) {
			p := valid()
			p.B[1] = p.B[1][:1]
			return p, signals
		},
		"z not one": func() (*types.Proof, []string) {
			p := valid()
			p.C[2] = "2"
			return p, signals
		},
		"b z not one": func() (*types.Proof, []string) {
			p := valid()
			p.B[2] = []string{"0", "1"}
			return p, signals
		},
		"non canonical": func() (*types.Proof, []string) {
			p := valid()
			p.A[0] = new(big.Int).Add(fp.Modulus(), big.NewInt(1)).String()
			return p, signals
		},
		"not decimal": func() (*types.Proof, []string) {
			p := valid()
			p.A[1] = "0xzz"
			return p, signals
		},
		"off curve": func() (*types.Proof, []string) {
			p := valid()
			p.A[1] = "12345"
			return p, signals
		},
		"two commitments": func() (*types.Proof, []string) {
			p := valid()
			p.Commitments = append(p.Commitments, p.Commitments[0])
			return p, signals
		},
		"missing pok": func() (*types.Proof, []string) {
			p := valid()
			p.CommitmentPok = nil
			return p, signals
		},
		"few signals": func() (*types.Proof, []string) {
			return valid(), signals[:255]
		},
		"signal out of field": func() (*types.Proof, []string) {
			bad := append([]string(nil), signals...)
			bad[3] = fr.Modulus().String()
			return valid(), bad
		},
		"nil proof": func() (*types.Proof, []string) {
			return nil, signals
		},
	}

	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			p, s := build()
			_, err := FormatCalldata(p, s)
			require.ErrorIs(t, err, types.ErrMalformedProof)
		})
	}
}

func TestDecodeCalldataRejectsMalformed(t *testing.T) {
	bundle, err := FormatCalldata(proofFromNative(syntheticProof(false)), helloSignals(t))
	require.NoError(t, err)

	short := *bundle
	short.Input = short.Input[:10]
	_, _, err = DecodeCalldata(&short)
	require.ErrorIs(t, err, types.ErrMalformedProof)

	offCurve := *bundle
	offCurve.C = [2]*big.Int{big.NewInt(1), big.NewInt(3)}
	_, _, err = DecodeCalldata(&offCurve)
	require.ErrorIs(t, err, types.ErrMalformedProof)

	_, _, err = DecodeCalldata(nil)
	require.ErrorIs(t, err, types.ErrMalformedProof)
}

func TestGroth16CalldataVerifiesNatively(t *testing.T) {
	backend := onceSetupCircuit(t)
	assignment, digest := helloAssignment(t)

	proof, signals, err := NewBuilder(backend, t.TempDir(), zerolog.Nop()).Prove(context.Background(), assignment)
	require.NoError(t, err)

	bundle, err := FormatCalldata(proof, signals)
	require.NoError(t, err)
	native, inputs, err := DecodeCalldata(bundle)
	require.NoError(t, err)

	ok, err := backend.VerifyNative(native, inputs)
	require.NoError(t, err)
	require.True(t, ok)

	// the solidity encoding of the decoded proof is the one the verifier contract receives
	data, err := types.CreateProofData(native.MarshalSolidity())
	require.NoError(t, err)
	require.Equal(t, bundle.A[0], new(big.Int).SetBytes(data.Proof[0]))

	// soundness: same proof, another digest
	other := bundle.WithDigest(types.ComputeDigest([types.BlockSize]byte{}))
	native, inputs, err = DecodeCalldata(other)
	require.NoError(t, err)
	ok, err = backend.VerifyNative(native, inputs)
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, digest.Bits()[0], uint8(bundle.Input[0].Uint64()))
}
