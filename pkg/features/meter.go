package features

import (
	"fmt"
	"math"

	"unipi-control/pkg/modbusx"
)

// Meter is a read-only RTU feature decoded from two consecutive input
// registers as a big-endian IEEE-754 float (§4.4).
type Meter struct {
	base
	valReg            uint16
	unit              uint8
	stateClass        string
	unitOfMeasurement string
	cache             *modbusx.RegisterCache
	savedFloat        float64
	savedFloatSet     bool
}

// StateClass is the Home Assistant state_class for this meter's sensor discovery.
func (m *Meter) StateClass() string { return m.stateClass }

// UnitOfMeasurement is the Home Assistant unit_of_measurement for discovery.
func (m *Meter) UnitOfMeasurement() string { return m.unitOfMeasurement }

func decodeFloat32BE(hi, lo uint16) float64 {
	bits := uint32(hi)<<16 | uint32(lo)
	f := math.Float32frombits(bits)
	return math.Round(float64(f)*100) / 100
}

func (m *Meter) currentValue() (float64, bool) {
	regs := m.cache.GetRegisters(m.unit, m.valReg, 2)
	if len(regs) < 2 {
		return 0, false
	}
	return decodeFloat32BE(regs[0], regs[1]), true
}

// Changed reports whether the decoded value differs from the last read.
func (m *Meter) Changed() bool {
	v, ok := m.currentValue()
	if !ok {
		return false
	}
	changed := !m.savedFloatSet || v != m.savedFloat
	m.savedFloat = v
	m.savedFloatSet = true
	return changed
}

// Payload formats the decoded value as the MQTT payload string.
func (m *Meter) Payload() (string, bool) {
	v, ok := m.currentValue()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%.2f", v), true
}
