package pipeline

import (
	"golang.org/x/xerrors"

	"github.com/chainkit/statenode/config"
	"github.com/chainkit/statenode/responses"
)

// ErrOutOfGas is returned by a GasMeter charge that would push consumption
// past the request's gas limit.
var ErrOutOfGas = xerrors.New("pipeline: gas limit exceeded")

// GasMeter tracks CPU/RAM/storage consumption against one request's gas
// limit, converting raw units into cost via the active GasCostModel
// (spec.md §4.5 step 3).
type GasMeter struct {
	model             config.GasCostModel
	limit             uint64
	cpu, ram, storage uint64
}

// NewGasMeter opens a meter pre-charged with the request kind's base cost.
func NewGasMeter(model config.GasCostModel, limit uint64, requestSelector byte) (*GasMeter, error) {
	m := &GasMeter{model: model, limit: limit}
	if err := m.chargeCPU(model.BaseCostFor(requestSelector)); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *GasMeter) charge(bucket *uint64, cost uint64) error {
	if m.Consumed()+cost > m.limit {
		return ErrOutOfGas
	}
	*bucket += cost
	return nil
}

func (m *GasMeter) chargeCPU(cost uint64) error { return m.charge(&m.cpu, cost) }

// ChargeCPU bills units of CPU work at the model's per-unit cost.
func (m *GasMeter) ChargeCPU(units uint64) error { return m.charge(&m.cpu, units*m.model.CPUUnitCost) }

// ChargeRAM bills cells of allocated RAM at the model's per-cell cost.
func (m *GasMeter) ChargeRAM(cells uint64) error { return m.charge(&m.ram, cells*m.model.RAMCellCost) }

// ChargeStorage bills bytes of storage written at the model's per-byte cost.
func (m *GasMeter) ChargeStorage(bytes uint64) error {
	return m.charge(&m.storage, bytes*m.model.StorageByteCost)
}

// Consumed is the sum of all three buckets billed so far.
func (m *GasMeter) Consumed() uint64 { return m.cpu + m.ram + m.storage }

// Remaining is the budget left before ErrOutOfGas.
func (m *GasMeter) Remaining() uint64 { return m.limit - m.Consumed() }

// Result packages the three buckets into the wire Gas the response carries.
func (m *GasMeter) Result() responses.Gas {
	return responses.Gas{CPU: m.cpu, RAM: m.ram, Storage: m.storage}
}
