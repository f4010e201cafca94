package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGasCostModelRoundTrip(t *testing.T) {
	m := GasCostModel{
		CPUUnitCost:     1,
		RAMCellCost:     2,
		StorageByteCost: 3,
		BaseCost:        map[byte]uint64{1: 100, 5: 500, 2: 200},
	}
	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf))
	var got GasCostModel
	require.NoError(t, got.Read(&buf))
	assert.Equal(t, m.CPUUnitCost, got.CPUUnitCost)
	assert.Equal(t, m.BaseCost, got.BaseCost)
}

func TestConsensusSnapshotRoundTrip(t *testing.T) {
	snap := ConsensusSnapshot{
		ChainID:            "test-chain",
		HasherName:         "blake2b-256",
		SignatureAlgorithm: "ed25519",
		GasCostModel: GasCostModel{
			CPUUnitCost: 1,
			BaseCost:    map[byte]uint64{},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, snap.Write(&buf))
	var got ConsensusSnapshot
	require.NoError(t, got.Read(&buf))
	assert.Equal(t, snap.ChainID, got.ChainID)
	assert.Equal(t, snap.SignatureAlgorithm, got.SignatureAlgorithm)
}

func TestLoadLocalNodeConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 8\n"), 0o644))

	cfg, err := LoadLocalNodeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "./data", cfg.DataDir, "unset fields keep their default")
}

func TestLoadConsensusSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "consensus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chainId: demo\nhasher: blake2b-256\n"), 0o644))

	snap, err := LoadConsensusSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", snap.ChainID)
}
