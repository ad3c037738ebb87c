// Package features holds the typed feature objects (Digital Input, Digital
// Output, Relay, LED, Meter) that derive their value from the register
// cache and expose change detection to the MQTT engine.
package features

import (
	"fmt"

	"unipi-control/pkg/config"
	"unipi-control/pkg/modbusx"
)

const unsetValue = -1 // saved_value sentinel: distinct from any valid {0,1}

// Feature is the common contract every feature type satisfies.
type Feature interface {
	FeatureID() string
	FeatureType() string
	ObjectID() string
	FriendlyName() string
	SuggestedArea() string
	Icon() string
	DeviceClass() string
	InvertState() bool
	Topic() string
	SWVersion() string
	// Changed reports whether value differs from the last-read saved_value,
	// and marks the current value as saved as a side effect.
	Changed() bool
	// Payload returns the current MQTT payload string for this feature's
	// /get topic ("ON"/"OFF" for binary features, the decoded number for
	// a meter). ok is false when the backing registers are absent.
	Payload() (string, bool)
}

// Writable is implemented by features whose output can be driven (DO, RO, LED).
type Writable interface {
	Feature
	SetState(on bool) error
}

// base carries the fields shared by every feature type (I1-I3 in the data model).
type base struct {
	featureID     string
	featureType   string
	objectID      string
	friendlyName  string
	suggestedArea string
	icon          string
	deviceClass   string
	invertState   bool
	topic         string
	swVersion     string
	savedValue    int // -1 == unset
}

func (b *base) FeatureID() string     { return b.featureID }
func (b *base) FeatureType() string   { return b.featureType }
func (b *base) ObjectID() string      { return b.objectID }
func (b *base) FriendlyName() string  { return b.friendlyName }
func (b *base) SuggestedArea() string { return b.suggestedArea }
func (b *base) Icon() string          { return b.icon }
func (b *base) DeviceClass() string   { return b.deviceClass }
func (b *base) InvertState() bool     { return b.invertState }
func (b *base) Topic() string         { return b.topic }
func (b *base) SWVersion() string     { return b.swVersion }

func applyOverride(b *base, featureID string, overrides map[string]config.FeatureConfig) {
	b.featureID = featureID
	b.savedValue = unsetValue
	o, ok := overrides[featureID]
	if !ok {
		return
	}
	b.objectID = o.ObjectID
	b.friendlyName = o.FriendlyName
	b.suggestedArea = o.SuggestedArea
	b.icon = o.Icon
	if o.DeviceClass != "" {
		b.deviceClass = o.DeviceClass
	}
	b.invertState = o.InvertState
}

// bitFeature is the shared implementation for DI/DO/RO/LED: value is a
// single bit selected from one register.
type bitFeature struct {
	base
	valReg  uint16
	valCoil *uint16 // nil for read-only features (DI)
	mask    uint16
	unit    uint8
	lane    modbusx.Lane
	cache   *modbusx.RegisterCache
	facade  *modbusx.Facade
}

func (f *bitFeature) currentBit() (int, bool) {
	regs := f.cache.GetRegisters(f.unit, f.valReg, 1)
	if len(regs) == 0 {
		return 0, false
	}
	if regs[0]&f.mask != 0 {
		return 1, true
	}
	return 0, true
}

func (f *bitFeature) Changed() bool {
	v, ok := f.currentBit()
	if !ok {
		return false
	}
	changed := v != f.savedValue
	f.savedValue = v
	return changed
}

func (f *bitFeature) Payload() (string, bool) {
	v, ok := f.currentBit()
	if !ok {
		return "", false
	}
	if v == 1 {
		return "ON", true
	}
	return "OFF", true
}

// SetState writes the coil backing this feature. Rejected for read-only
// features (I1).
func (f *bitFeature) SetState(on bool) error {
	if f.valCoil == nil {
		return fmt.Errorf("feature %s is read-only", f.featureID)
	}
	return f.facade.WriteCoil(f.lane, *f.valCoil, on, f.unit)
}

// DigitalInput is a read-only PLC input feature.
type DigitalInput struct{ bitFeature }

// DigitalOutput is a writable PLC output feature.
type DigitalOutput struct{ bitFeature }

// Relay is a writable PLC relay output feature.
type Relay struct{ bitFeature }

// LED is a writable PLC LED output feature.
type LED struct{ bitFeature }
