package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"unipi-control/pkg/bridgeerrors"
	"unipi-control/pkg/logger"
)

// ModbusBaudRates enumerates the baud rates the RTU façade accepts.
var ModbusBaudRates = map[int]bool{
	2400: true, 4800: true, 9600: true, 19200: true,
	38400: true, 57600: true, 115200: true,
}

// ModbusParity enumerates the parity settings the RTU façade accepts.
var ModbusParity = map[string]bool{"E": true, "O": true, "N": true}

var (
	nameRe     = regexp.MustCompile(`^[A-Za-z0-9 _-]*$`)
	idRe       = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)
	coverClass = map[string]bool{"blind": true, "roller_shutter": true, "garage_door": true}
)

// DeviceInfo identifies the physical host the bridge runs on.
type DeviceInfo struct {
	Name         string `yaml:"name"`
	Manufacturer string `yaml:"manufacturer"`
}

// MqttConfig configures the single MQTT session.
type MqttConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	KeepAlive         int    `yaml:"keepalive"`
	RetryLimit        int    `yaml:"retry_limit"`
	ReconnectInterval int    `yaml:"reconnect_interval"` // seconds
}

// ModbusUnitConfig describes one RTU slave device (an extension meter).
type ModbusUnitConfig struct {
	Unit       uint8  `yaml:"unit"`
	Identifier string `yaml:"identifier"` // matches a hardware/extensions/<identifier>.yaml stem
	DeviceName string `yaml:"device_name"`
}

// ModbusConfig configures the dual-lane Modbus façade.
type ModbusConfig struct {
	BaudRate int                `yaml:"baud_rate"`
	Parity   string             `yaml:"parity"`
	Device   string             `yaml:"device"` // RTU serial device path, e.g. /dev/ttyUSB0
	Units    []ModbusUnitConfig `yaml:"units"`
}

// HomeAssistantConfig configures the discovery publisher.
type HomeAssistantConfig struct {
	Enabled         bool   `yaml:"enabled"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

// FeatureConfig carries per-feature_id overrides of derived attributes.
type FeatureConfig struct {
	ObjectID      string `yaml:"object_id"`
	FriendlyName  string `yaml:"friendly_name"`
	SuggestedArea string `yaml:"suggested_area"`
	Icon          string `yaml:"icon"`
	DeviceClass   string `yaml:"device_class"`
	InvertState   bool   `yaml:"invert_state"`
}

// CoverConfig describes one cover entity and the two outputs that drive it.
type CoverConfig struct {
	ObjectID       string  `yaml:"object_id"`
	FriendlyName   string  `yaml:"friendly_name"`
	SuggestedArea  string  `yaml:"suggested_area"`
	DeviceClass    string  `yaml:"device_class"` // blind | roller_shutter | garage_door
	CoverUp        string  `yaml:"cover_up"`     // feature_id of the up-direction output
	CoverDown      string  `yaml:"cover_down"`   // feature_id of the down-direction output
	CoverRunTime   float64 `yaml:"cover_run_time"`
	TiltChangeTime float64 `yaml:"tilt_change_time"`
}

// Config is the parsed contents of <config_base>/control.yaml.
type Config struct {
	DeviceInfo    DeviceInfo                `yaml:"device_info"`
	Mqtt          MqttConfig                `yaml:"mqtt"`
	Modbus        ModbusConfig              `yaml:"modbus"`
	HomeAssistant HomeAssistantConfig       `yaml:"homeassistant"`
	Features      map[string]FeatureConfig  `yaml:"features"`
	Covers        []CoverConfig             `yaml:"covers"`
	Logging       logger.LoggingConfig      `yaml:"logging"`

	// SysBus is the sysfs root the EEPROM-based PLC model probe reads from.
	// Defaults to /sys/bus/i2c/devices; overridable for tests and emulated rigs.
	SysBus string `yaml:"sys_bus"`

	// ConfigBase is the directory control.yaml was loaded from; hardware
	// definitions are resolved relative to it. Not part of the YAML document.
	ConfigBase string `yaml:"-"`
}

// LoadConfig reads and validates <configBase>/control.yaml.
func LoadConfig(configBase string) (*Config, error) {
	path := configBase + "/control.yaml"
	// #nosec G304 - configBase is an operator-supplied startup flag, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bridgeerrors.NewConfigError("load", err, "control.yaml")
	}

	cfg, err := LoadConfigFromString(string(data))
	if err != nil {
		return nil, err
	}
	cfg.ConfigBase = configBase

	logger.LogInfo("✅ Configuration loaded from %s", path)
	return cfg, nil
}

// LoadConfigFromString parses and validates a control.yaml document already
// read into memory (used by tests and by LoadConfig).
func LoadConfigFromString(yamlContent string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(yamlContent), &cfg); err != nil {
		return nil, bridgeerrors.NewConfigError("parse", err, "control.yaml")
	}

	if cfg.SysBus == "" {
		cfg.SysBus = "/sys/bus/i2c/devices"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate implements the validation contract of the configuration format:
// fails fast with a ConfigError on the first violation found.
func (c *Config) Validate() error {
	if !nameRe.MatchString(c.DeviceInfo.Name) {
		return bridgeerrors.NewConfigError("validate", fmt.Errorf("invalid characters"), "device_info.name")
	}

	if c.HomeAssistant.Enabled && !idRe.MatchString(c.HomeAssistant.DiscoveryPrefix) {
		return bridgeerrors.NewConfigError("validate", fmt.Errorf("invalid characters"), "homeassistant.discovery_prefix")
	}

	if !ModbusBaudRates[c.Modbus.BaudRate] {
		return bridgeerrors.NewConfigError("validate", fmt.Errorf("unsupported baud rate %d", c.Modbus.BaudRate), "modbus.baud_rate")
	}
	if !ModbusParity[c.Modbus.Parity] {
		return bridgeerrors.NewConfigError("validate", fmt.Errorf("unsupported parity %q", c.Modbus.Parity), "modbus.parity")
	}

	seenUnits := make(map[uint8]bool)
	for _, u := range c.Modbus.Units {
		if seenUnits[u.Unit] {
			return bridgeerrors.NewConfigError("validate", fmt.Errorf("duplicate RTU unit %d", u.Unit), "modbus.units")
		}
		seenUnits[u.Unit] = true
		if u.DeviceName == "" {
			return bridgeerrors.NewConfigError("validate", fmt.Errorf("unit %d missing device_name", u.Unit), "modbus.units")
		}
	}

	usedObjectIDs := make(map[string]bool)
	for featureID, fc := range c.Features {
		if !idRe.MatchString(fc.ObjectID) {
			return bridgeerrors.NewConfigError("validate", fmt.Errorf("invalid characters"), "features["+featureID+"].object_id")
		}
		if fc.ObjectID != "" {
			if usedObjectIDs[fc.ObjectID] {
				return bridgeerrors.NewConfigError("validate", fmt.Errorf("duplicate object_id %q", fc.ObjectID), "features["+featureID+"].object_id")
			}
			usedObjectIDs[fc.ObjectID] = true
		}
	}

	usedCircuits := make(map[string]string) // feature_id -> owning cover object_id
	for _, cv := range c.Covers {
		if cv.ObjectID == "" || cv.FriendlyName == "" || cv.DeviceClass == "" || cv.CoverUp == "" || cv.CoverDown == "" {
			return bridgeerrors.NewConfigError("validate", fmt.Errorf("missing required field"), "covers")
		}
		if !idRe.MatchString(cv.ObjectID) {
			return bridgeerrors.NewConfigError("validate", fmt.Errorf("invalid characters"), "covers["+cv.ObjectID+"].object_id")
		}
		if !coverClass[cv.DeviceClass] {
			return bridgeerrors.NewConfigError("validate", fmt.Errorf("unknown device_class %q", cv.DeviceClass), "covers["+cv.ObjectID+"].device_class")
		}
		if usedObjectIDs[cv.ObjectID] {
			return bridgeerrors.NewConfigError("validate", fmt.Errorf("duplicate object_id %q", cv.ObjectID), "covers["+cv.ObjectID+"].object_id")
		}
		usedObjectIDs[cv.ObjectID] = true

		for _, circuit := range []string{cv.CoverUp, cv.CoverDown} {
			if owner, ok := usedCircuits[circuit]; ok {
				return bridgeerrors.NewConfigError("validate", fmt.Errorf("circuit %q already driven by cover %q", circuit, owner), "covers["+cv.ObjectID+"]")
			}
			usedCircuits[circuit] = cv.ObjectID
		}
	}

	return nil
}

// CoverDrivesCircuit reports whether featureID is used as a cover_up or
// cover_down output by any configured cover - such features are excluded
// from switch discovery (spec §4.7).
func (c *Config) CoverDrivesCircuit(featureID string) bool {
	for _, cv := range c.Covers {
		if cv.CoverUp == featureID || cv.CoverDown == featureID {
			return true
		}
	}
	return false
}
