// Package hardware resolves the static YAML hardware definitions (board
// register blocks and feature layouts) into a HardwareMap keyed by unit.
package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"unipi-control/pkg/bridgeerrors"
	"unipi-control/pkg/config"
)

// HardwareType distinguishes the on-board PLC from an RTU extension.
type HardwareType int

const (
	HardwareTypePLC HardwareType = iota
	HardwareTypeExtension
)

// RegisterBlock is one contiguous input-register range to poll.
type RegisterBlock struct {
	StartRegister uint16 `yaml:"start_reg"`
	Count         uint16 `yaml:"count"`
	Unit          uint8  `yaml:"unit"`
}

// ModbusFeatureDef describes one feature backed by the register map.
type ModbusFeatureDef struct {
	FeatureType       string `yaml:"feature_type"` // DI | DO | RO | LED | METER
	Count             int    `yaml:"count"`
	MajorGroup        int    `yaml:"major_group"`
	ValReg            uint16 `yaml:"val_reg"`
	ValCoil           *uint16 `yaml:"val_coil,omitempty"`
	FriendlyName      string `yaml:"friendly_name,omitempty"`
	DeviceClass       string `yaml:"device_class,omitempty"`
	StateClass        string `yaml:"state_class,omitempty"`
	UnitOfMeasurement string `yaml:"unit_of_measurement,omitempty"`
}

// rawHardwareFile is the on-disk shape of one hardware definition document.
type rawHardwareFile struct {
	RegisterBlocks []RegisterBlock    `yaml:"modbus_register_blocks"`
	Features       []ModbusFeatureDef `yaml:"modbus_features"`
}

// HardwareDefinition is one per PLC board or RTU unit. Immutable after load.
type HardwareDefinition struct {
	Unit           uint8
	Type           HardwareType
	DeviceName     string
	SuggestedArea  string
	Manufacturer   string
	Model          string
	RegisterBlocks []RegisterBlock
	Features       []ModbusFeatureDef
}

// Key returns the HardwareMap key this definition is stored under.
func (d HardwareDefinition) Key() string {
	if d.Type == HardwareTypePLC {
		return "PLC"
	}
	return fmt.Sprintf("Extension_%d", d.Unit)
}

// HardwareMap is the set of resolved hardware definitions, keyed by "PLC" or
// "Extension_<unit>".
type HardwareMap map[string]*HardwareDefinition

// IdentifierSource is the external collaborator that resolves the PLC model
// string (normally read from an on-board EEPROM). It is treated as an
// injectable interface so the hardware map loader never touches hardware
// directly.
type IdentifierSource interface {
	PLCModel() (string, error)
}

// Load builds the HardwareMap for the PLC (resolved via identifiers) and for
// each configured RTU unit (resolved via filename stem match).
func Load(cfg *config.Config, identifiers IdentifierSource) (HardwareMap, error) {
	hwMap := make(HardwareMap)

	model, err := identifiers.PLCModel()
	if err != nil {
		return nil, bridgeerrors.NewHardwareError("identify", err, "")
	}

	plcPath := filepath.Join(cfg.ConfigBase, "hardware", "neuron", model+".yaml")
	// #nosec G304 - path is built from a fixed base dir and the resolved PLC model
	data, err := os.ReadFile(plcPath)
	if err != nil {
		return nil, bridgeerrors.NewHardwareError("load PLC definition", err, model)
	}

	var plcRaw rawHardwareFile
	if err := yaml.Unmarshal(data, &plcRaw); err != nil {
		return nil, bridgeerrors.NewHardwareError("parse PLC definition", err, model)
	}

	plcDef := &HardwareDefinition{
		Unit:           0,
		Type:           HardwareTypePLC,
		DeviceName:     cfg.DeviceInfo.Name,
		Manufacturer:   cfg.DeviceInfo.Manufacturer,
		Model:          model,
		RegisterBlocks: plcRaw.RegisterBlocks,
		Features:       plcRaw.Features,
	}
	hwMap[plcDef.Key()] = plcDef

	extDir := filepath.Join(cfg.ConfigBase, "hardware", "extensions")
	entries, err := os.ReadDir(extDir)
	if err != nil {
		// No extensions directory at all is fine when no RTU units are configured.
		if len(cfg.Modbus.Units) == 0 {
			return hwMap, nil
		}
		return nil, bridgeerrors.NewHardwareError("list extension definitions", err, "")
	}

	stems := make(map[string]string) // stem -> file path
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ".yaml")
		stems[stem] = filepath.Join(extDir, entry.Name())
	}

	for _, unitCfg := range cfg.Modbus.Units {
		path, ok := stems[unitCfg.Identifier]
		if !ok {
			return nil, bridgeerrors.NewHardwareError("resolve extension definition", fmt.Errorf("no definition for identifier %q", unitCfg.Identifier), unitCfg.Identifier)
		}

		// #nosec G304 - path comes from a directory listing matched against configured identifiers
		extData, err := os.ReadFile(path)
		if err != nil {
			return nil, bridgeerrors.NewHardwareError("load extension definition", err, unitCfg.Identifier)
		}

		var extRaw rawHardwareFile
		if err := yaml.Unmarshal(extData, &extRaw); err != nil {
			return nil, bridgeerrors.NewHardwareError("parse extension definition", err, unitCfg.Identifier)
		}

		extDef := &HardwareDefinition{
			Unit:           unitCfg.Unit,
			Type:           HardwareTypeExtension,
			DeviceName:     unitCfg.DeviceName,
			RegisterBlocks: extRaw.RegisterBlocks,
			Features:       extRaw.Features,
		}
		hwMap[extDef.Key()] = extDef
	}

	return hwMap, nil
}
