package config

import (
	"os"
	"time"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"github.com/chainkit/statenode/log"
)

// LocalNodeConfig is the operator-supplied configuration of one node
// process: scheduling width, storage paths, and the garbage-collection
// retention horizon (spec.md §4.2's "numberOfCommits tag").
type LocalNodeConfig struct {
	// Workers sizes the bounded worker pool behind post/add (spec.md §5).
	Workers int `yaml:"workers"`

	// DataDir holds the bbolt-backed key/value store.
	DataDir string `yaml:"dataDir"`

	// RetentionHorizon is loaded and carried as configuration only: no
	// code in this repository reads it, there is no reclamation pass, and
	// trie nodes are never deleted whatever its value.
	RetentionHorizon uint64 `yaml:"retentionHorizon"`

	// AddTimeout bounds how long Node.Add waits for a response before
	// returning a timeout error to the caller (spec.md §5: the request
	// may still commit after the caller gives up).
	AddTimeout time.Duration `yaml:"addTimeout"`

	Log log.Config `yaml:"-"`
}

// DefaultLocalNodeConfig returns the configuration a freshly initialized
// node starts from absent an override file.
func DefaultLocalNodeConfig() LocalNodeConfig {
	return LocalNodeConfig{
		Workers:          4,
		DataDir:          "./data",
		RetentionHorizon: 0,
		AddTimeout:       30 * time.Second,
	}
}

// LoadLocalNodeConfig reads a LocalNodeConfig from a YAML file, keeping
// DefaultLocalNodeConfig's value for any field the file does not set; a
// field the file sets explicitly, even to zero, overrides the default.
func LoadLocalNodeConfig(path string) (LocalNodeConfig, error) {
	cfg := DefaultLocalNodeConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, xerrors.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, xerrors.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConsensusSnapshot reads the genesis ConsensusSnapshot a node starts
// a fresh store from. In production this is supplied by the consensus
// collaborator (spec.md §6); for local and test nodes it is a file next
// to LocalNodeConfig.
func LoadConsensusSnapshot(path string) (ConsensusSnapshot, error) {
	var snap ConsensusSnapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, xerrors.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return snap, xerrors.Errorf("config: parsing %s: %w", path, err)
	}
	return snap, nil
}
