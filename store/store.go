package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	provertypes "github.com/kysee/zk-sha256/provers/types"
	"github.com/kysee/zk-sha256/types"
	"github.com/rs/zerolog"
)

// Store persists proof artifacts, deployments and verification records keyed by network
type Store interface {
	SaveArtifact(a *types.ProofArtifact) error
	Artifact(id string) (*types.ProofArtifact, error)
	LatestArtifact(network string) (*types.ProofArtifact, error)

	SaveDeployment(d *types.DeploymentRecord) error
	LatestDeployment(network string) (*types.DeploymentRecord, error)

	SaveVerification(v *types.VerificationRecord) error
	Verification(id string) (*types.VerificationRecord, error)

	Close() error
}

// ErrNoVerificationFound is returned for unknown verification record ids
var ErrNoVerificationFound = errors.New("no verification record found")

var networkPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidateNetwork rejects network names that cannot be used as a key or file name
func ValidateNetwork(network string) error {
	if !networkPattern.MatchString(network) {
		return fmt.Errorf("%w: %q", types.ErrInvalidNetwork, network)
	}
	return nil
}

// NewID returns a time ordered record id
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Open opens the store kind configured for the process under dir.
// The badger database lives in dir/badger.
func Open(kind, dir string, logger zerolog.Logger) (Store, error) {
	switch kind {
	case provertypes.StoreFile:
		return NewFileStore(dir)
	case provertypes.StoreBadger:
		return OpenBadger(filepath.Join(dir, "badger"), false, logger)
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid record id %q: %w", id, err)
	}
	return nil
}

func ensureID(id *string) error {
	if *id == "" {
		*id = NewID()
		return nil
	}
	return validID(*id)
}

// supersedes reports whether id should replace current as a network's latest record.
// NewID ids are UUIDv7, so their canonical text sorts in creation order.
func supersedes(id, current string) bool {
	return current == "" || strings.ToLower(id) > strings.ToLower(current)
}
