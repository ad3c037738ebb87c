package features

import (
	"fmt"
	"strings"
	"time"

	"unipi-control/pkg/bridgeerrors"
	"unipi-control/pkg/config"
	"unipi-control/pkg/hardware"
	"unipi-control/pkg/logger"
	"unipi-control/pkg/modbusx"
	"unipi-control/pkg/slug"
)

const (
	firmwareRegister     = 1000
	meterFirmwareReg     = 64514
	meterFirmwareRetries = 5
)

// Build constructs the FeatureMap from the resolved hardware map, applying
// user overrides from cfg and reading PLC/meter firmware versions once.
func Build(cfg *config.Config, hwMap hardware.HardwareMap, facade *modbusx.Facade, cache *modbusx.RegisterCache) (*FeatureMap, error) {
	fm := NewFeatureMap()

	firmwares := readBoardFirmwares(facade)

	if plc, ok := hwMap["PLC"]; ok {
		if err := buildFromDefinition(fm, plc, cfg, facade, cache, firmwares); err != nil {
			return nil, err
		}
	}

	for key, def := range hwMap {
		if key == "PLC" {
			continue
		}
		if err := buildFromDefinition(fm, def, cfg, facade, cache, firmwares); err != nil {
			return nil, err
		}
		readMeterFirmwares(facade, fm, def.Unit)
	}

	return fm, nil
}

// readBoardFirmwares reads register 1000 on TCP unit ids 1..3; absence of a
// response means that board is unpopulated and is silently skipped (§4.4).
func readBoardFirmwares(facade *modbusx.Facade) map[int]string {
	firmwares := make(map[int]string)
	for board := 1; board <= 3; board++ {
		regs, err := facade.ReadInputRegisters(modbusx.LaneTCP, firmwareRegister, 1, uint8(board))
		if err != nil || len(regs) == 0 {
			logger.LogDebug("[FEATURE] board %d not populated, skipping firmware read", board)
			continue
		}
		reg := regs[0]
		firmwares[board] = fmt.Sprintf("%d.%d", (reg>>8)&0xff, reg&0xff)
	}
	return firmwares
}

// readMeterFirmwares reads the software version from a meter's holding
// registers. The intended retry budget is 5 attempts with a 1s backoff;
// the first success short-circuits the loop (preserved as specified, §9).
func readMeterFirmwares(facade *modbusx.Facade, fm *FeatureMap, unit uint8) string {
	var version string
	for attempt := 0; attempt < meterFirmwareRetries; attempt++ {
		regs, err := facade.ReadHoldingRegisters(modbusx.LaneRTU, meterFirmwareReg, 2, unit)
		if err == nil && len(regs) == 2 {
			version = formatMeterVersion(regs[0], regs[1])
			break
		}
		time.Sleep(time.Second)
	}
	if version == "" {
		return ""
	}
	for _, f := range fm.ByFeatureTypes([]string{"METER"}) {
		if mf, ok := f.(*Meter); ok && mf.unit == unit {
			mf.swVersion = version
		}
	}
	return version
}

// formatMeterVersion concatenates the hex digits of both registers and
// reformats them as "xxx.yy" (§4.4).
func formatMeterVersion(r0, r1 uint16) string {
	hex := fmt.Sprintf("%x%x", r0, r1)
	if len(hex) <= 2 {
		return "0." + hex
	}
	return hex[:len(hex)-2] + "." + hex[len(hex)-2:]
}

func buildFromDefinition(fm *FeatureMap, def *hardware.HardwareDefinition, cfg *config.Config, facade *modbusx.Facade, cache *modbusx.RegisterCache, firmwares map[int]string) error {
	lane := modbusx.LaneTCP
	if def.Type == hardware.HardwareTypeExtension {
		lane = modbusx.LaneRTU
	}

	indexByKey := make(map[string]int) // "type_majorGroup" -> next index

	for _, fd := range def.Features {
		switch strings.ToUpper(fd.FeatureType) {
		case "DI", "DO", "RO", "LED":
			key := fmt.Sprintf("%s_%d", fd.FeatureType, fd.MajorGroup)
			for i := 0; i < fd.Count; i++ {
				idx := indexByKey[key]
				indexByKey[key] = idx + 1

				featureID := fmt.Sprintf("%s_%d_%02d", strings.ToLower(fd.FeatureType), fd.MajorGroup, idx+1)

				var coilAddr *uint16
				if fd.ValCoil != nil {
					a := *fd.ValCoil + uint16(idx)
					coilAddr = &a
				}

				bf := bitFeature{
					valReg:  fd.ValReg + uint16(idx/16),
					valCoil: coilAddr,
					mask:    1 << (uint16(idx) % 16),
					unit:    def.Unit,
					lane:    lane,
					cache:   cache,
					facade:  facade,
				}
				bf.featureType = strings.ToUpper(fd.FeatureType)
				bf.objectID = featureID
				bf.friendlyName = featureID
				bf.topic = featureTopic(cfg.DeviceInfo.Name, bf.featureType, featureID)
				if fw, ok := firmwares[fd.MajorGroup]; ok {
					bf.swVersion = fw
				}
				applyOverride(&bf.base, featureID, cfg.Features)

				var feat Feature
				switch bf.featureType {
				case "DI":
					feat = &DigitalInput{bf}
				case "DO":
					feat = &DigitalOutput{bf}
				case "RO":
					feat = &Relay{bf}
				case "LED":
					feat = &LED{bf}
				}
				if err := fm.Register(feat); err != nil {
					return err
				}
			}
		case "METER":
			featureID := fmt.Sprintf("%s_%d", slug.Slugify(fd.FriendlyName), def.Unit)
			m := &Meter{
				valReg:            fd.ValReg,
				unit:              def.Unit,
				stateClass:        fd.StateClass,
				unitOfMeasurement: fd.UnitOfMeasurement,
				cache:             cache,
			}
			m.featureType = "METER"
			m.friendlyName = fd.FriendlyName
			m.deviceClass = fd.DeviceClass
			m.objectID = featureID
			m.topic = featureTopic(cfg.DeviceInfo.Name, "METER", featureID)
			applyOverride(&m.base, featureID, cfg.Features)
			if err := fm.Register(m); err != nil {
				return err
			}
		default:
			return bridgeerrors.NewHardwareError("build feature", fmt.Errorf("unknown feature_type %q", fd.FeatureType), fd.FeatureType)
		}
	}

	return nil
}

// featureTopic builds the {dev}/<kind>/{fid} topic stem (§4.6).
func featureTopic(deviceName, featureType, featureID string) string {
	dev := slug.Slugify(deviceName)
	switch featureType {
	case "DI":
		return fmt.Sprintf("%s/input/%s", dev, featureID)
	case "DO", "RO":
		return fmt.Sprintf("%s/relay/%s", dev, featureID)
	case "LED":
		return fmt.Sprintf("%s/led/%s", dev, featureID)
	case "METER":
		return fmt.Sprintf("%s/meter/%s", dev, featureID)
	default:
		return fmt.Sprintf("%s/%s/%s", dev, strings.ToLower(featureType), featureID)
	}
}
