package features

import (
	"math"
	"testing"

	"unipi-control/pkg/modbusx"
)

func newBitFeature(cache *modbusx.RegisterCache, unit uint8, reg, mask uint16, coil *uint16) *bitFeature {
	bf := &bitFeature{valReg: reg, valCoil: coil, mask: mask, unit: unit, cache: cache}
	bf.featureID = "do_1_01"
	bf.featureType = "DO"
	bf.savedValue = unsetValue
	return bf
}

func TestBitFeaturePayloadReflectsMask(t *testing.T) {
	cache := modbusx.NewRegisterCache()
	cache.SetRegisters(1, 0, []uint16{0b0000_0010})
	bf := newBitFeature(cache, 1, 0, 1<<1, nil)

	payload, ok := bf.Payload()
	if !ok {
		t.Fatal("expected ok=true once the register is present")
	}
	if payload != "ON" {
		t.Errorf("payload = %q, want ON", payload)
	}
}

func TestBitFeaturePayloadIgnoresInvertState(t *testing.T) {
	cache := modbusx.NewRegisterCache()
	cache.SetRegisters(1, 0, []uint16{0b0000_0010})
	bf := newBitFeature(cache, 1, 0, 1<<1, nil)
	bf.invertState = true

	payload, _ := bf.Payload()
	if payload != "ON" {
		t.Errorf("payload = %q, want ON: invert_state only swaps discovery payload_on/payload_off, never the raw /get payload", payload)
	}
}

func TestBitFeaturePayloadMissingRegister(t *testing.T) {
	cache := modbusx.NewRegisterCache()
	bf := newBitFeature(cache, 1, 0, 1, nil)

	if _, ok := bf.Payload(); ok {
		t.Error("expected ok=false for a register absent from the cache")
	}
}

func TestBitFeatureChangedDetectsTransition(t *testing.T) {
	cache := modbusx.NewRegisterCache()
	cache.SetRegisters(1, 0, []uint16{0})
	bf := newBitFeature(cache, 1, 0, 1, nil)
	bf.Changed() // consume the initial unset->0 transition

	if bf.Changed() {
		t.Error("Changed should be false when nothing changed since the last read")
	}

	cache.SetRegisters(1, 0, []uint16{1})
	if !bf.Changed() {
		t.Error("Changed should be true once the bit flips")
	}
	if bf.Changed() {
		t.Error("Changed should settle back to false immediately after reporting the transition")
	}
}

func TestBitFeatureSetStateRejectsReadOnly(t *testing.T) {
	cache := modbusx.NewRegisterCache()
	bf := newBitFeature(cache, 1, 0, 1, nil)

	if err := bf.SetState(true); err == nil {
		t.Error("expected an error writing a coil-less (read-only) feature")
	}
}

func TestDecodeFloat32BE(t *testing.T) {
	// 230.50 as IEEE-754 big-endian split across two 16-bit registers.
	bits := math.Float32bits(230.5)
	hi := uint16(bits >> 16)
	lo := uint16(bits)

	got := decodeFloat32BE(hi, lo)
	if got != 230.5 {
		t.Errorf("decodeFloat32BE = %v, want 230.5", got)
	}
}

func TestMeterPayloadAndChanged(t *testing.T) {
	cache := modbusx.NewRegisterCache()
	bits := math.Float32bits(12.34)
	cache.SetRegisters(5, 100, []uint16{uint16(bits >> 16), uint16(bits)})

	m := &Meter{valReg: 100, unit: 5, cache: cache}

	payload, ok := m.Payload()
	if !ok || payload != "12.34" {
		t.Errorf("payload = %q, ok=%v, want 12.34/true", payload, ok)
	}
	if !m.Changed() {
		t.Error("expected Changed to report true on the first read")
	}
	if m.Changed() {
		t.Error("expected Changed to settle false once the value is unchanged")
	}
}

func TestFeatureMapRegisterRejectsDuplicateID(t *testing.T) {
	fm := NewFeatureMap()
	cache := modbusx.NewRegisterCache()
	f1 := &DigitalInput{*newBitFeature(cache, 1, 0, 1, nil)}
	f2 := &DigitalInput{*newBitFeature(cache, 1, 0, 2, nil)}

	if err := fm.Register(f1); err != nil {
		t.Fatalf("unexpected error registering first feature: %v", err)
	}
	if err := fm.Register(f2); err == nil {
		t.Error("expected a duplicate feature_id registration to fail")
	}
}

func TestFeatureMapByFeatureTypesPreservesOrder(t *testing.T) {
	fm := NewFeatureMap()
	cache := modbusx.NewRegisterCache()

	for i, id := range []string{"do_1_01", "do_1_02", "do_1_03"} {
		bf := newBitFeature(cache, 1, 0, uint16(1<<i), nil)
		bf.featureID = id
		if err := fm.Register(&DigitalOutput{*bf}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	got := fm.ByFeatureTypes([]string{"DO"})
	if len(got) != 3 {
		t.Fatalf("len(got) = %d, want 3", len(got))
	}
	for i, want := range []string{"do_1_01", "do_1_02", "do_1_03"} {
		if got[i].FeatureID() != want {
			t.Errorf("got[%d].FeatureID() = %q, want %q", i, got[i].FeatureID(), want)
		}
	}
}

func TestFeatureMapByFeatureIDRestrictedToType(t *testing.T) {
	fm := NewFeatureMap()
	cache := modbusx.NewRegisterCache()
	bf := newBitFeature(cache, 1, 0, 1, nil)
	bf.featureID = "do_1_01"
	if err := fm.Register(&DigitalOutput{*bf}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := fm.ByFeatureID("do_1_01", "RO"); err == nil {
		t.Error("expected lookup restricted to RO to reject a DO feature")
	}
	if _, err := fm.ByFeatureID("do_1_01", "DO"); err != nil {
		t.Errorf("expected lookup restricted to DO to succeed: %v", err)
	}
}

func TestFormatMeterVersion(t *testing.T) {
	cases := []struct {
		r0, r1 uint16
		want   string
	}{
		{0x01, 0x23, "1.23"},
		{0x00, 0x05, "0.05"},
	}
	for _, c := range cases {
		got := formatMeterVersion(c.r0, c.r1)
		if got != c.want {
			t.Errorf("formatMeterVersion(%x,%x) = %q, want %q", c.r0, c.r1, got, c.want)
		}
	}
}

func TestFeatureTopicByType(t *testing.T) {
	cases := []struct {
		featureType string
		featureID   string
		want        string
	}{
		{"DI", "di_1_01", "dev/input/di_1_01"},
		{"DO", "do_1_01", "dev/relay/do_1_01"},
		{"RO", "ro_1_01", "dev/relay/ro_1_01"},
		{"LED", "led_1_01", "dev/led/led_1_01"},
		{"METER", "meter_1", "dev/meter/meter_1"},
	}
	for _, c := range cases {
		if got := featureTopic("dev", c.featureType, c.featureID); got != c.want {
			t.Errorf("featureTopic(%q) = %q, want %q", c.featureType, got, c.want)
		}
	}
}
