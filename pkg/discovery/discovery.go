// Package discovery builds Home Assistant MQTT Discovery payloads for every
// feature and cover the bridge exposes (§4.7).
package discovery

import (
	"encoding/json"
	"fmt"

	"unipi-control/pkg/config"
	"unipi-control/pkg/covers"
	"unipi-control/pkg/features"
	"unipi-control/pkg/slug"
)

// Device is the Home Assistant "device" block shared by every entity's
// discovery payload, so HA groups them under one device card.
type Device struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
	SuggestedArea string  `json:"suggested_area,omitempty"`
}

// SwitchConfig is the discovery payload for a switch entity (DO/RO driving
// a plain circuit, not a cover output).
type SwitchConfig struct {
	Name                string `json:"name"`
	UniqueID            string `json:"unique_id"`
	StateTopic          string `json:"state_topic"`
	CommandTopic        string `json:"command_topic"`
	PayloadOn           string `json:"payload_on"`
	PayloadOff          string `json:"payload_off"`
	DeviceClass         string `json:"device_class,omitempty"`
	Icon                string `json:"icon,omitempty"`
	AvailabilityTopic   string `json:"availability_topic"`
	Device              Device `json:"device"`
}

// BinarySensorConfig is the discovery payload for a read-only DI entity.
type BinarySensorConfig struct {
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	StateTopic        string `json:"state_topic"`
	PayloadOn         string `json:"payload_on"`
	PayloadOff        string `json:"payload_off"`
	DeviceClass       string `json:"device_class,omitempty"`
	Icon              string `json:"icon,omitempty"`
	AvailabilityTopic string `json:"availability_topic"`
	Device            Device `json:"device"`
}

// SensorConfig is the discovery payload for a METER entity or the bridge's
// own diagnostic sensor.
type SensorConfig struct {
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	StateTopic        string `json:"state_topic"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`
	StateClass        string `json:"state_class,omitempty"`
	EntityCategory    string `json:"entity_category,omitempty"`
	AvailabilityTopic string `json:"availability_topic"`
	Device            Device `json:"device"`
}

// CoverConfig is the discovery payload for a cover entity.
type CoverConfig struct {
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	StateTopic        string `json:"state_topic"`
	CommandTopic      string `json:"command_topic"`
	PositionTopic     string `json:"position_topic,omitempty"`
	SetPositionTopic  string `json:"set_position_topic,omitempty"`
	TiltStatusTopic   string `json:"tilt_status_topic,omitempty"`
	TiltCommandTopic  string `json:"tilt_command_topic,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`
	AvailabilityTopic string `json:"availability_topic"`
	Device            Device `json:"device"`
}

func device(cfg *config.Config) Device {
	return Device{
		Name:         cfg.DeviceInfo.Name,
		Identifiers:  []string{slug.Slugify(cfg.DeviceInfo.Name)},
		Manufacturer: cfg.DeviceInfo.Manufacturer,
	}
}

func uniqueID(cfg *config.Config, objectID string) string {
	return fmt.Sprintf("%s_%s", slug.Slugify(cfg.DeviceInfo.Name), objectID)
}

// payloadOnOff returns the discovery payload_on/payload_off pair, swapped
// when the feature's invert_state override is set (§4.7). The raw /get
// state published by the feature itself is never inverted; only this
// discovery-side mapping is.
func payloadOnOff(invert bool) (on, off string) {
	if invert {
		return "OFF", "ON"
	}
	return "ON", "OFF"
}

// DiscoveryTopic builds the "<prefix>/<component>/<node_id>/<object_id>/config" topic (§4.7).
func DiscoveryTopic(cfg *config.Config, component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", cfg.HomeAssistant.DiscoveryPrefix, component, slug.Slugify(cfg.DeviceInfo.Name), objectID)
}

// BuildFeature returns (component, topic, JSON payload) for one feature, or
// ok=false when the feature should not be published (a cover's own output
// circuit, per §4.7's exclusion rule).
func BuildFeature(cfg *config.Config, f features.Feature) (component, topic string, payload []byte, ok bool) {
	availability := fmt.Sprintf("%s/status", slug.Slugify(cfg.DeviceInfo.Name))

	switch f.FeatureType() {
	case "METER":
		m, _ := f.(*features.Meter)
		cfgPayload := SensorConfig{
			Name:              f.FriendlyName(),
			UniqueID:          uniqueID(cfg, f.ObjectID()),
			StateTopic:        f.Topic() + "/get",
			DeviceClass:       f.DeviceClass(),
			AvailabilityTopic: availability,
			Device:            device(cfg),
		}
		if m != nil {
			cfgPayload.UnitOfMeasurement = m.UnitOfMeasurement()
			cfgPayload.StateClass = m.StateClass()
		}
		b, _ := json.Marshal(cfgPayload)
		return "sensor", DiscoveryTopic(cfg, "sensor", f.ObjectID()), b, true

	case "DI":
		on, off := payloadOnOff(f.InvertState())
		cfgPayload := BinarySensorConfig{
			Name:              f.FriendlyName(),
			UniqueID:          uniqueID(cfg, f.ObjectID()),
			StateTopic:        f.Topic() + "/get",
			PayloadOn:         on,
			PayloadOff:        off,
			DeviceClass:       f.DeviceClass(),
			Icon:              f.Icon(),
			AvailabilityTopic: availability,
			Device:            device(cfg),
		}
		b, _ := json.Marshal(cfgPayload)
		return "binary_sensor", DiscoveryTopic(cfg, "binary_sensor", f.ObjectID()), b, true

	case "DO", "RO", "LED":
		if cfg.CoverDrivesCircuit(f.FeatureID()) {
			return "", "", nil, false
		}
		on, off := payloadOnOff(f.InvertState())
		cfgPayload := SwitchConfig{
			Name:              f.FriendlyName(),
			UniqueID:          uniqueID(cfg, f.ObjectID()),
			StateTopic:        f.Topic() + "/get",
			CommandTopic:      f.Topic() + "/set",
			PayloadOn:         on,
			PayloadOff:        off,
			DeviceClass:       f.DeviceClass(),
			Icon:              f.Icon(),
			AvailabilityTopic: availability,
			Device:            device(cfg),
		}
		b, _ := json.Marshal(cfgPayload)
		return "switch", DiscoveryTopic(cfg, "switch", f.ObjectID()), b, true
	}

	return "", "", nil, false
}

// BuildCover returns the component, topic and JSON payload for one cover.
func BuildCover(cfg *config.Config, c *covers.Cover) (component, topic string, payload []byte) {
	availability := fmt.Sprintf("%s/status", slug.Slugify(cfg.DeviceInfo.Name))
	stem := c.Topic(cfg.DeviceInfo.Name)

	cfgPayload := CoverConfig{
		Name:              c.FriendlyName(),
		UniqueID:          uniqueID(cfg, c.ObjectID()),
		StateTopic:        stem + "/state",
		CommandTopic:      stem + "/set",
		DeviceClass:       c.DeviceClass(),
		AvailabilityTopic: availability,
		Device:            device(cfg),
	}
	if c.SupportsPosition() {
		cfgPayload.PositionTopic = stem + "/position"
		cfgPayload.SetPositionTopic = stem + "/position/set"
	}
	if c.SupportsTilt() {
		cfgPayload.TiltStatusTopic = stem + "/tilt"
		cfgPayload.TiltCommandTopic = stem + "/tilt/set"
	}

	b, _ := json.Marshal(cfgPayload)
	return "cover", DiscoveryTopic(cfg, "cover", c.ObjectID()), b
}

// BuildDiagnostic returns the discovery payload for the bridge's own
// health/diagnostic sensor (supplemented feature, SPEC_FULL.md §5).
func BuildDiagnostic(cfg *config.Config, stateTopic string) (topic string, payload []byte) {
	availability := fmt.Sprintf("%s/status", slug.Slugify(cfg.DeviceInfo.Name))
	cfgPayload := SensorConfig{
		Name:              "Bridge diagnostics",
		UniqueID:          uniqueID(cfg, "diagnostics"),
		StateTopic:        stateTopic,
		EntityCategory:    "diagnostic",
		AvailabilityTopic: availability,
		Device:            device(cfg),
	}
	b, _ := json.Marshal(cfgPayload)
	return DiscoveryTopic(cfg, "sensor", "diagnostics"), b
}
