// Package config holds the node's two configuration surfaces: the
// operator-supplied LocalNodeConfig (thread count, data paths, retention)
// and the consensus-supplied ConsensusSnapshot (gas pricing, chain identity,
// pluggable algorithm names), both loadable from YAML.
package config

import (
	"io"
	"sort"

	"github.com/chainkit/statenode/common"
)

// GasCostModel prices the three metered buckets of spec.md §4.5 plus a
// per-request-kind base cost, consumed by the Check/Deliver/Post stages.
type GasCostModel struct {
	CPUUnitCost     uint64            `yaml:"cpuUnitCost"`
	RAMCellCost     uint64            `yaml:"ramCellCost"`
	StorageByteCost uint64            `yaml:"storageByteCost"`
	BaseCost        map[byte]uint64   `yaml:"baseCost"`
}

// BaseCostFor returns the configured base cost for a request selector, or
// zero if unconfigured.
func (m GasCostModel) BaseCostFor(requestSelector byte) uint64 {
	return m.BaseCost[requestSelector]
}

func (m GasCostModel) Write(w io.Writer) error {
	if err := common.WriteUint64(w, m.CPUUnitCost); err != nil {
		return err
	}
	if err := common.WriteUint64(w, m.RAMCellCost); err != nil {
		return err
	}
	if err := common.WriteUint64(w, m.StorageByteCost); err != nil {
		return err
	}
	keys := make([]byte, 0, len(m.BaseCost))
	for k := range m.BaseCost {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	if err := common.WriteCompactUint(w, uint64(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := common.WriteByte(w, k); err != nil {
			return err
		}
		if err := common.WriteUint64(w, m.BaseCost[k]); err != nil {
			return err
		}
	}
	return nil
}

func (m *GasCostModel) Read(r io.Reader) (err error) {
	if err = common.ReadUint64(r, &m.CPUUnitCost); err != nil {
		return err
	}
	if err = common.ReadUint64(r, &m.RAMCellCost); err != nil {
		return err
	}
	if err = common.ReadUint64(r, &m.StorageByteCost); err != nil {
		return err
	}
	n, err := common.ReadCompactUint(r)
	if err != nil {
		return err
	}
	m.BaseCost = make(map[byte]uint64, n)
	for i := uint64(0); i < n; i++ {
		k, err := common.ReadByte(r)
		if err != nil {
			return err
		}
		var v uint64
		if err := common.ReadUint64(r, &v); err != nil {
			return err
		}
		m.BaseCost[k] = v
	}
	return nil
}

// ConsensusSnapshot is the consensus parameter set persisted verbatim in
// the store's info trie (spec.md §4.3): chain identity, the pluggable
// hasher/signature algorithm names, and the gas cost model in effect.
type ConsensusSnapshot struct {
	ChainID            string       `yaml:"chainId"`
	HasherName         string       `yaml:"hasher"`
	SignatureAlgorithm string       `yaml:"signatureAlgorithm"`
	GasCostModel       GasCostModel `yaml:"gasCostModel"`
}

func (c ConsensusSnapshot) Write(w io.Writer) error {
	if err := common.WriteString(w, c.ChainID); err != nil {
		return err
	}
	if err := common.WriteString(w, c.HasherName); err != nil {
		return err
	}
	if err := common.WriteString(w, c.SignatureAlgorithm); err != nil {
		return err
	}
	return c.GasCostModel.Write(w)
}

func (c *ConsensusSnapshot) Read(r io.Reader) (err error) {
	if c.ChainID, err = common.ReadString(r); err != nil {
		return err
	}
	if c.HasherName, err = common.ReadString(r); err != nil {
		return err
	}
	if c.SignatureAlgorithm, err = common.ReadString(r); err != nil {
		return err
	}
	return c.GasCostModel.Read(r)
}

func (c ConsensusSnapshot) Bytes() []byte { return common.MustBytes(c) }
