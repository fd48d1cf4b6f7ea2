package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kysee/zk-sha256/types"
)

const (
	deploymentsDir   = "deployments"
	proofsDir        = "proofs"
	verificationsDir = "verifications"
)

// FileStore keeps one JSON document per record under a root directory.
//
//	deployments/<network>-<id>.json, deployments/<network>-latest.json
//	proofs/proof_<id>.json, proofs/<network>-latest.json
//	verifications/verification_<id>.json
//
// Every file is written to a temporary file and renamed into place.
type FileStore struct {
	root string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the directory layout under root
func NewFileStore(root string) (*FileStore, error) {
	for _, dir := range []string{deploymentsDir, proofsDir, verificationsDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s dir: %w", dir, err)
		}
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) SaveArtifact(a *types.ProofArtifact) error {
	if err := ValidateNetwork(a.Network); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ensureID(&a.ID); err != nil {
		return err
	}
	if err := s.writeJSON(filepath.Join(proofsDir, "proof_"+a.ID+".json"), a); err != nil {
		return err
	}
	return s.moveLatest(filepath.Join(proofsDir, a.Network+"-latest.json"), a.ID, a)
}

func (s *FileStore) Artifact(id string) (*types.ProofArtifact, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	var a types.ProofArtifact
	if err := s.readJSON(filepath.Join(proofsDir, "proof_"+id+".json"), &a, types.ErrNoArtifactFound); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *FileStore) LatestArtifact(network string) (*types.ProofArtifact, error) {
	if err := ValidateNetwork(network); err != nil {
		return nil, err
	}
	var a types.ProofArtifact
	if err := s.readJSON(filepath.Join(proofsDir, network+"-latest.json"), &a, types.ErrNoArtifactFound); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *FileStore) SaveDeployment(d *types.DeploymentRecord) error {
	if err := ValidateNetwork(d.Network); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ensureID(&d.ID); err != nil {
		return err
	}
	if err := s.writeJSON(filepath.Join(deploymentsDir, d.Network+"-"+d.ID+".json"), d); err != nil {
		return err
	}
	return s.moveLatest(filepath.Join(deploymentsDir, d.Network+"-latest.json"), d.ID, d)
}

func (s *FileStore) LatestDeployment(network string) (*types.DeploymentRecord, error) {
	if err := ValidateNetwork(network); err != nil {
		return nil, err
	}
	var d types.DeploymentRecord
	if err := s.readJSON(filepath.Join(deploymentsDir, network+"-latest.json"), &d, types.ErrNoDeploymentFound); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *FileStore) SaveVerification(v *types.VerificationRecord) error {
	if err := ValidateNetwork(v.Network); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ensureID(&v.ID); err != nil {
		return err
	}
	return s.writeJSON(filepath.Join(verificationsDir, "verification_"+v.ID+".json"), v)
}

func (s *FileStore) Verification(id string) (*types.VerificationRecord, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	var v types.VerificationRecord
	if err := s.readJSON(filepath.Join(verificationsDir, "verification_"+id+".json"), &v, ErrNoVerificationFound); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *FileStore) Close() error {
	return nil
}

// moveLatest copies record to the latest file unless that already holds a newer id.
// Callers hold s.mu.
func (s *FileStore) moveLatest(rel, id string, record any) error {
	var current struct {
		ID string `json:"id"`
	}
	err := s.readJSON(rel, &current, os.ErrNotExist)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if !supersedes(id, current.ID) {
		return nil
	}
	return s.writeJSON(rel, record)
}

// writeJSON replaces rel atomically for readers
func (s *FileStore) writeJSON(rel string, v any) error {
	blob, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", rel, err)
	}

	path := filepath.Join(s.root, rel)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", rel, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", rel, err)
	}
	return nil
}

func (s *FileStore) readJSON(rel string, v any, missing error) error {
	blob, err := os.ReadFile(filepath.Join(s.root, rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", missing, rel)
		}
		return fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if err := json.Unmarshal(blob, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", rel, err)
	}
	return nil
}
