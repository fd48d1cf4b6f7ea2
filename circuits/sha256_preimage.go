package circuit

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/sha2"
	"github.com/consensys/gnark/std/math/uints"
	"github.com/kysee/zk-sha256/types"
)

// Sha256PreimageCircuit proves knowledge of a 32-byte block whose SHA-256 digest is ClaimedHash.
//
// Both vectors are bit vectors, MSB first within each byte. The preimage stays private;
// only the 256 digest bits are public inputs.
type Sha256PreimageCircuit struct {
	Preimage    [types.BlockBits]frontend.Variable
	ClaimedHash [types.BlockBits]frontend.Variable `gnark:",public"`
}

// Define implements the circuit constraints
func (c *Sha256PreimageCircuit) Define(api frontend.API) error {
	hasher, err := sha2.New(api)
	if err != nil {
		return fmt.Errorf("failed to create SHA2 hasher: %w", err)
	}

	preimage := make([]uints.U8, types.BlockSize)
	for i := 0; i < types.BlockSize; i++ {
		preimage[i] = uints.U8{Val: packByteMSB(api, c.Preimage[i*8:(i+1)*8])}
	}
	hasher.Write(preimage)

	// Returns []uints.U8 of length 32
	hashResult := hasher.Sum()
	if len(hashResult) != types.BlockSize {
		return fmt.Errorf("unexpected digest length %d", len(hashResult))
	}

	for i := 0; i < types.BlockSize; i++ {
		claimed := packByteMSB(api, c.ClaimedHash[i*8:(i+1)*8])
		api.AssertIsEqual(hashResult[i].Val, claimed)
	}

	return nil
}

// packByteMSB constrains 8 boolean variables and packs them into a byte, first bit most significant.
func packByteMSB(api frontend.API, bits []frontend.Variable) frontend.Variable {
	var byteValue frontend.Variable = 0
	for bitIdx, bit := range bits {
		api.AssertIsBoolean(bit)
		power := 1 << (7 - bitIdx)
		byteValue = api.Add(byteValue, api.Mul(bit, power))
	}
	return byteValue
}

// Assign converts a circuit assignment into a full witness assignment.
func Assign(assignment *types.CircuitAssignment) (*Sha256PreimageCircuit, error) {
	if len(assignment.PrivateBits) != types.BlockBits {
		return nil, fmt.Errorf("private input must have %d bits, got %d", types.BlockBits, len(assignment.PrivateBits))
	}
	if len(assignment.PublicBits) != types.BlockBits {
		return nil, fmt.Errorf("public input must have %d bits, got %d", types.BlockBits, len(assignment.PublicBits))
	}

	witness := &Sha256PreimageCircuit{}
	for i := 0; i < types.BlockBits; i++ {
		witness.Preimage[i] = int(assignment.PrivateBits[i])
		witness.ClaimedHash[i] = int(assignment.PublicBits[i])
	}
	return witness, nil
}
