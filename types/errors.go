package types

import "errors"

var (
	// input errors
	ErrInputTooLong = errors.New("input exceeds 32 bytes, shorten the preimage")

	// toolchain errors, identical for every item of a batch
	ErrToolchainUnavailable = errors.New("proving toolchain unavailable")
	ErrProvingKeyMissing    = errors.New("proving key missing")
	ErrVerifyingKeyMissing  = errors.New("verifying key missing")

	// internal consistency errors
	ErrUnsatisfiableAssignment = errors.New("circuit assignment is not satisfiable")
	ErrProofBuilderInternal    = errors.New("freshly built proof failed local verification")
	ErrMalformedProof          = errors.New("malformed proof")
	ErrDigestMismatch          = errors.New("on-chain digest does not match local digest")

	// transport and ledger errors
	ErrRPC                 = errors.New("rpc error")
	ErrTimeout             = errors.New("timed out waiting for confirmation")
	ErrTransactionReverted = errors.New("transaction reverted")

	// store preconditions
	ErrNoArtifactFound   = errors.New("no proof artifact found")
	ErrNoDeploymentFound = errors.New("no deployment found")
	ErrInvalidNetwork    = errors.New("invalid network name")
)

// Category groups errors by how a caller should react to them.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryInput
	CategoryToolchain
	CategoryConsistency
	CategoryTransport
	CategoryPrecondition
)

func (c Category) String() string {
	switch c {
	case CategoryInput:
		return "input"
	case CategoryToolchain:
		return "toolchain"
	case CategoryConsistency:
		return "consistency"
	case CategoryTransport:
		return "transport"
	case CategoryPrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// ErrorCategory classifies err against the sentinel errors of this package.
func ErrorCategory(err error) Category {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, ErrInputTooLong):
		return CategoryInput
	case errors.Is(err, ErrToolchainUnavailable),
		errors.Is(err, ErrProvingKeyMissing),
		errors.Is(err, ErrVerifyingKeyMissing):
		return CategoryToolchain
	case errors.Is(err, ErrUnsatisfiableAssignment),
		errors.Is(err, ErrProofBuilderInternal),
		errors.Is(err, ErrMalformedProof),
		errors.Is(err, ErrDigestMismatch):
		return CategoryConsistency
	case errors.Is(err, ErrRPC),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrTransactionReverted):
		return CategoryTransport
	case errors.Is(err, ErrNoArtifactFound),
		errors.Is(err, ErrNoDeploymentFound),
		errors.Is(err, ErrInvalidNetwork):
		return CategoryPrecondition
	default:
		return CategoryUnknown
	}
}

// IsBatchFatal reports whether err makes every further item of a batch fail the same way.
func IsBatchFatal(err error) bool {
	return ErrorCategory(err) == CategoryToolchain || errors.Is(err, ErrProofBuilderInternal)
}
