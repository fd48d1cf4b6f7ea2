package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/kysee/zk-sha256/types"
	"github.com/rs/zerolog"
)

const maxConflictRetries = 8

// BadgerStore keeps the records in a badger database.
//
//	artifact/<id>                -> ProofArtifact
//	artifact-latest/<network>    -> artifact id
//	deployment/<network>/<id>    -> DeploymentRecord
//	deployment-latest/<network>  -> DeploymentRecord id
//	verification/<id>            -> VerificationRecord
type BadgerStore struct {
	db *badgerdb.DB
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens or creates a database under dir; inMemory ignores dir
func OpenBadger(dir string, inMemory bool, logger zerolog.Logger) (*BadgerStore, error) {
	var opts badgerdb.Options
	if inMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create badger dir: %w", err)
		}
		opts = badgerdb.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger: logger.With().Str("component", "badger").Logger()}
	// the records are small, keep the value log modest
	opts.ValueLogFileSize = 64 << 20
	opts.NumCompactors = 2

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func artifactKey(id string) []byte { return []byte("artifact/" + id) }
func artifactLatestKey(network string) []byte { return []byte("artifact-latest/" + network) }
func deploymentKey(network, id string) []byte { return []byte("deployment/" + network + "/" + id) }
func deploymentLatestKey(network string) []byte { return []byte("deployment-latest/" + network) }
func verificationKey(id string) []byte { return []byte("verification/" + id) }

func (s *BadgerStore) SaveArtifact(a *types.ProofArtifact) error {
	if err := ValidateNetwork(a.Network); err != nil {
		return err
	}
	if err := ensureID(&a.ID); err != nil {
		return err
	}
	blob, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	return s.update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(artifactKey(a.ID), blob); err != nil {
			return err
		}
		return moveLatest(txn, artifactLatestKey(a.Network), a.ID)
	})
}

func (s *BadgerStore) Artifact(id string) (*types.ProofArtifact, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	var a types.ProofArtifact
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return getJSON(txn, artifactKey(id), &a, types.ErrNoArtifactFound)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *BadgerStore) LatestArtifact(network string) (*types.ProofArtifact, error) {
	if err := ValidateNetwork(network); err != nil {
		return nil, err
	}
	var a types.ProofArtifact
	err := s.db.View(func(txn *badgerdb.Txn) error {
		id, err := getValue(txn, artifactLatestKey(network), types.ErrNoArtifactFound)
		if err != nil {
			return err
		}
		return getJSON(txn, artifactKey(string(id)), &a, types.ErrNoArtifactFound)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *BadgerStore) SaveDeployment(d *types.DeploymentRecord) error {
	if err := ValidateNetwork(d.Network); err != nil {
		return err
	}
	if err := ensureID(&d.ID); err != nil {
		return err
	}
	blob, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal deployment: %w", err)
	}
	return s.update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(deploymentKey(d.Network, d.ID), blob); err != nil {
			return err
		}
		return moveLatest(txn, deploymentLatestKey(d.Network), d.ID)
	})
}

func (s *BadgerStore) LatestDeployment(network string) (*types.DeploymentRecord, error) {
	if err := ValidateNetwork(network); err != nil {
		return nil, err
	}
	var d types.DeploymentRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		id, err := getValue(txn, deploymentLatestKey(network), types.ErrNoDeploymentFound)
		if err != nil {
			return err
		}
		return getJSON(txn, deploymentKey(network, string(id)), &d, types.ErrNoDeploymentFound)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *BadgerStore) SaveVerification(v *types.VerificationRecord) error {
	if err := ValidateNetwork(v.Network); err != nil {
		return err
	}
	if err := ensureID(&v.ID); err != nil {
		return err
	}
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal verification: %w", err)
	}
	return s.update(func(txn *badgerdb.Txn) error {
		return txn.Set(verificationKey(v.ID), blob)
	})
}

func (s *BadgerStore) Verification(id string) (*types.VerificationRecord, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	var v types.VerificationRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return getJSON(txn, verificationKey(id), &v, ErrNoVerificationFound)
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// update retries fn when a concurrent writer touched the same keys
func (s *BadgerStore) update(fn func(txn *badgerdb.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = s.db.Update(fn); !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("badger update: %w", err)
}

// moveLatest points key at id unless it already names a newer record.
// The read makes concurrent saves to the same network conflict at commit.
func moveLatest(txn *badgerdb.Txn, key []byte, id string) error {
	current, err := getValue(txn, key, badgerdb.ErrKeyNotFound)
	if err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
		return err
	}
	if !supersedes(id, string(current)) {
		return nil
	}
	return txn.Set(key, []byte(id))
}

func getValue(txn *badgerdb.Txn, key []byte, missing error) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", missing, key)
		}
		return nil, fmt.Errorf("badger get %s: %w", key, err)
	}
	return item.ValueCopy(nil)
}

func getJSON(txn *badgerdb.Txn, key []byte, v any, missing error) error {
	blob, err := getValue(txn, key, missing)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(blob, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

// badgerLogger routes badger's internal logging into zerolog
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(format, args...)
}
