package config

import (
	"strings"
	"testing"
)

func validYAML() string {
	return `
device_info:
  name: "Living Room PLC"
  manufacturer: "Unipi"
mqtt:
  host: localhost
  port: 1883
modbus:
  baud_rate: 9600
  parity: "N"
homeassistant:
  enabled: true
  discovery_prefix: homeassistant
covers:
  - object_id: blind_1
    friendly_name: "Living room blind"
    suggested_area: "Living Room"
    device_class: blind
    cover_up: ro_2_01
    cover_down: ro_2_02
`
}

func TestLoadConfigFromString_Valid(t *testing.T) {
	cfg, err := LoadConfigFromString(validYAML())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DeviceInfo.Name != "Living Room PLC" {
		t.Errorf("device_info.name = %q", cfg.DeviceInfo.Name)
	}
	if cfg.SysBus != "/sys/bus/i2c/devices" {
		t.Errorf("SysBus default = %q, want /sys/bus/i2c/devices", cfg.SysBus)
	}
}

func TestValidate_RejectsBadDeviceName(t *testing.T) {
	yamlDoc := validYAML()
	yamlDoc = strings.Replace(yamlDoc, `name: "Living Room PLC"`, `name: "Bad;Name"`, 1)
	if _, err := LoadConfigFromString(yamlDoc); err == nil {
		t.Fatal("expected validation error for invalid device_info.name")
	}
}

func TestValidate_RejectsUnsupportedBaudRate(t *testing.T) {
	yamlDoc := strings.Replace(validYAML(), "baud_rate: 9600", "baud_rate: 1200", 1)
	if _, err := LoadConfigFromString(yamlDoc); err == nil {
		t.Fatal("expected validation error for unsupported baud rate")
	}
}

func TestValidate_RejectsUnsupportedParity(t *testing.T) {
	yamlDoc := strings.Replace(validYAML(), `parity: "N"`, `parity: "X"`, 1)
	if _, err := LoadConfigFromString(yamlDoc); err == nil {
		t.Fatal("expected validation error for unsupported parity")
	}
}

func TestValidate_RejectsDuplicateCoverCircuit(t *testing.T) {
	yamlDoc := validYAML() + `
  - object_id: blind_2
    friendly_name: "Second blind"
    suggested_area: "Living Room"
    device_class: blind
    cover_up: ro_2_01
    cover_down: ro_2_03
`
	if _, err := LoadConfigFromString(yamlDoc); err == nil {
		t.Fatal("expected validation error for cover_up circuit reused by two covers")
	}
}

func TestValidate_RejectsMissingCoverField(t *testing.T) {
	yamlDoc := `
device_info:
  name: "PLC"
  manufacturer: "Unipi"
mqtt:
  host: localhost
  port: 1883
modbus:
  baud_rate: 9600
  parity: "N"
covers:
  - object_id: blind_1
    device_class: blind
    cover_up: ro_2_01
    cover_down: ro_2_02
`
	if _, err := LoadConfigFromString(yamlDoc); err == nil {
		t.Fatal("expected validation error for missing friendly_name")
	}
}

func TestCoverDrivesCircuit(t *testing.T) {
	cfg, err := LoadConfigFromString(validYAML())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.CoverDrivesCircuit("ro_2_01") {
		t.Error("expected ro_2_01 to be reported as cover-driven")
	}
	if cfg.CoverDrivesCircuit("ro_2_99") {
		t.Error("did not expect ro_2_99 to be cover-driven")
	}
}
