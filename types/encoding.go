package types

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

const (
	// BlockSize is the fixed preimage width of the circuit in bytes.
	BlockSize = 32
	// BlockBits is BlockSize in bits.
	BlockBits = BlockSize * 8
)

// EncodedInput is a preimage zero-padded to the circuit width.
// The bit order is MSB first within each byte, bytes in input order; the circuit
// is compiled against exactly this order.
type EncodedInput struct {
	raw    []byte
	padded [BlockSize]byte
}

// Encode pads input to BlockSize bytes. Any byte values are accepted, including none.
func Encode(input []byte) (*EncodedInput, error) {
	if len(input) > BlockSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInputTooLong, len(input))
	}
	enc := &EncodedInput{raw: append([]byte{}, input...)}
	copy(enc.padded[:], input)
	return enc, nil
}

// Raw returns a copy of the unpadded input.
func (e *EncodedInput) Raw() []byte {
	return append([]byte{}, e.raw...)
}

// Padded returns the 32-byte block.
func (e *EncodedInput) Padded() [BlockSize]byte {
	return e.padded
}

// Bits returns the 256 bits of the padded block.
func (e *EncodedInput) Bits() []uint8 {
	return BytesToBits(e.padded[:])
}

// Digest hashes the padded block.
func (e *EncodedInput) Digest() Digest {
	return ComputeDigest(e.padded)
}

type encodedInputJSON struct {
	Raw    HexBytes `json:"raw"`
	Padded HexBytes `json:"padded"`
}

func (e EncodedInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodedInputJSON{Raw: e.raw, Padded: e.padded[:]})
}

func (e *EncodedInput) UnmarshalJSON(data []byte) error {
	var v encodedInputJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	enc, err := Encode(v.Raw)
	if err != nil {
		return err
	}
	if len(v.Padded) != 0 && string(v.Padded) != string(enc.padded[:]) {
		return fmt.Errorf("padded block does not match raw input")
	}
	*e = *enc
	return nil
}

// BytesToBits expands b into bits, MSB first per byte.
func BytesToBits(b []byte) []uint8 {
	bits := make([]uint8, 0, len(b)*8)
	for _, by := range b {
		for j := 7; j >= 0; j-- {
			bits = append(bits, (by>>j)&1)
		}
	}
	return bits
}

// BitsToBytes packs MSB-first bits back into bytes.
func BitsToBytes(bits []uint8) ([]byte, error) {
	if len(bits)%8 != 0 {
		return nil, fmt.Errorf("bit count %d is not a multiple of 8", len(bits))
	}
	out := make([]byte, len(bits)/8)
	for i, bit := range bits {
		if bit > 1 {
			return nil, fmt.Errorf("bit %d has value %d", i, bit)
		}
		out[i/8] |= bit << (7 - i%8)
	}
	return out, nil
}

// Digest is a SHA-256 output.
type Digest [sha256.Size]byte

// ComputeDigest hashes the padded block, never the raw input.
func ComputeDigest(block [BlockSize]byte) Digest {
	return Digest(sha256.Sum256(block[:]))
}

// DigestFromHex parses a 0x-prefixed or bare 64 char hex digest.
func DigestFromHex(s string) (Digest, error) {
	var d Digest
	bz, err := HexToBytes(s)
	if err != nil {
		return d, err
	}
	if len(bz) != len(d) {
		return d, fmt.Errorf("digest must be %d bytes, got %d", len(d), len(bz))
	}
	copy(d[:], bz)
	return d, nil
}

// Bits returns the digest bits in the same order as EncodedInput.Bits.
func (d Digest) Bits() []uint8 {
	return BytesToBits(d[:])
}

func (d Digest) Hex() string {
	return HexBytes(d[:]).String()
}

func (d Digest) String() string {
	return d.Hex()
}

func (d Digest) MarshalJSON() ([]byte, error) {
	return HexBytes(d[:]).MarshalJSON()
}

func (d *Digest) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid digest: %w", err)
	}
	parsed, err := DigestFromHex(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// CircuitAssignment is the full input of the witness calculator.
type CircuitAssignment struct {
	PrivateBits []uint8
	PublicBits  []uint8
}

// NewAssignment pairs an encoded input with its digest.
func NewAssignment(enc *EncodedInput, digest Digest) *CircuitAssignment {
	return &CircuitAssignment{
		PrivateBits: enc.Bits(),
		PublicBits:  digest.Bits(),
	}
}
