package circuit

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/logger"
	gnark_test "github.com/consensys/gnark/test"
	"github.com/kysee/zk-sha256/types"
	"github.com/stretchr/testify/require"
)

// Compiled once and shared by the proving tests
var (
	preimageCCS constraint.ConstraintSystem
	preimagePK  groth16.ProvingKey
	preimageVK  groth16.VerifyingKey
	setupOnce   sync.Once
	setupErr    error
)

func assignmentFor(t testing.TB, input []byte) (*types.CircuitAssignment, types.Digest) {
	enc, err := types.Encode(input)
	require.NoError(t, err)
	digest := enc.Digest()
	return types.NewAssignment(enc, digest), digest
}

func TestSha256PreimageCircuit_IsSolved(t *testing.T) {
	for _, input := range []string{"hello world", "", "final test 1", "0123456789abcdef0123456789abcdef"} {
		assignment, _ := assignmentFor(t, []byte(input))
		witness, err := Assign(assignment)
		require.NoError(t, err)

		err = gnark_test.IsSolved(&Sha256PreimageCircuit{}, witness, ecc.BN254.ScalarField())
		require.NoError(t, err, "constraints should be satisfied for %q", input)
	}
}

func TestSha256PreimageCircuit_WrongHash(t *testing.T) {
	assignment, _ := assignmentFor(t, []byte("hello world"))
	// flip the last digest bit
	assignment.PublicBits[types.BlockBits-1] ^= 1

	witness, err := Assign(assignment)
	require.NoError(t, err)
	err = gnark_test.IsSolved(&Sha256PreimageCircuit{}, witness, ecc.BN254.ScalarField())
	require.Error(t, err)
}

func TestSha256PreimageCircuit_UnpaddedDigestRejected(t *testing.T) {
	// the digest of the bare string is not the digest of the padded block
	assignment, _ := assignmentFor(t, []byte("hello world"))
	bare := sha256.Sum256([]byte("hello world"))
	assignment.PublicBits = types.BytesToBits(bare[:])

	witness, err := Assign(assignment)
	require.NoError(t, err)
	err = gnark_test.IsSolved(&Sha256PreimageCircuit{}, witness, ecc.BN254.ScalarField())
	require.Error(t, err)
}

func TestSha256PreimageCircuit_NonBooleanBit(t *testing.T) {
	assignment, _ := assignmentFor(t, nil)
	witness, err := Assign(assignment)
	require.NoError(t, err)
	witness.Preimage[0] = 2

	err = gnark_test.IsSolved(&Sha256PreimageCircuit{}, witness, ecc.BN254.ScalarField())
	require.Error(t, err)
}

// assignPublic builds a public-only assignment from the digest bits
func assignPublic(publicBits []uint8) (*Sha256PreimageCircuit, error) {
	if len(publicBits) != types.BlockBits {
		return nil, fmt.Errorf("public input must have %d bits, got %d", types.BlockBits, len(publicBits))
	}
	witness := &Sha256PreimageCircuit{}
	for i := 0; i < types.BlockBits; i++ {
		witness.Preimage[i] = 0
		witness.ClaimedHash[i] = int(publicBits[i])
	}
	return witness, nil
}

func TestAssignRejectsShortVectors(t *testing.T) {
	_, err := Assign(&types.CircuitAssignment{PrivateBits: make([]uint8, 8), PublicBits: make([]uint8, types.BlockBits)})
	require.Error(t, err)
	_, err = Assign(&types.CircuitAssignment{PrivateBits: make([]uint8, types.BlockBits), PublicBits: make([]uint8, 255)})
	require.Error(t, err)
	_, err = assignPublic(make([]uint8, 3))
	require.Error(t, err)
}

func TestSha256PreimageCircuit(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	onceSetupCircuit(t)

	assignment, digest := assignmentFor(t, []byte("hello world"))
	witness, err := Assign(assignment)
	require.NoError(t, err)

	fullWitness, err := frontend.NewWitness(witness, ecc.BN254.ScalarField())
	require.NoError(t, err, "Failed to create witness")

	proof, err := groth16.Prove(preimageCCS, preimagePK, fullWitness, backend.WithProverHashToFieldFunction(sha256.New()))
	require.NoError(t, err, "Proof generation failed")

	public, err := assignPublic(types.BytesToBits(digest[:]))
	require.NoError(t, err)
	publicWitness, err := frontend.NewWitness(public, ecc.BN254.ScalarField(), frontend.PublicOnly())
	require.NoError(t, err, "Failed to create public witness")

	err = groth16.Verify(proof, preimageVK, publicWitness, backend.WithVerifierHashToFieldFunction(sha256.New()))
	require.NoError(t, err, "Proof verification failed")

	// the same proof must not verify against another digest
	other := types.ComputeDigest([types.BlockSize]byte{})
	public, err = assignPublic(types.BytesToBits(other[:]))
	require.NoError(t, err)
	otherWitness, err := frontend.NewWitness(public, ecc.BN254.ScalarField(), frontend.PublicOnly())
	require.NoError(t, err)
	err = groth16.Verify(proof, preimageVK, otherWitness, backend.WithVerifierHashToFieldFunction(sha256.New()))
	require.Error(t, err)
}

func TestSha256PreimageCircuit_PublicInputCount(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	onceSetupCircuit(t)

	// one wire for the constant plus one per digest bit
	require.Equal(t, types.BlockBits+1, preimageCCS.GetNbPublicVariables())
}

// onceSetupCircuit compiles the circuit and performs setup once for all tests
func onceSetupCircuit(t testing.TB) {
	setupOnce.Do(func() {
		logger.Disable()
		preimageCCS, setupErr = frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &Sha256PreimageCircuit{})
		if setupErr != nil {
			return
		}
		preimagePK, preimageVK, setupErr = groth16.Setup(preimageCCS)
	})
	require.NoError(t, setupErr)
}
