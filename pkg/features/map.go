package features

import (
	"fmt"

	"unipi-control/pkg/bridgeerrors"
)

// FeatureMap is the registry of every built feature, keyed by insertion
// order within type buckets and by feature_id (I2, I5).
type FeatureMap struct {
	byType map[string][]Feature
	byID   map[string]Feature
	order  []string // feature types in registration order, for stable iteration
}

// NewFeatureMap returns an empty map.
func NewFeatureMap() *FeatureMap {
	return &FeatureMap{
		byType: make(map[string][]Feature),
		byID:   make(map[string]Feature),
	}
}

// Register adds a feature to the map. Returns a ConfigError if feature_id
// is already registered (I2).
func (m *FeatureMap) Register(f Feature) error {
	if _, exists := m.byID[f.FeatureID()]; exists {
		return bridgeerrors.NewConfigError("register feature", fmt.Errorf("duplicate feature_id %q", f.FeatureID()), f.FeatureID())
	}
	if _, ok := m.byType[f.FeatureType()]; !ok {
		m.order = append(m.order, f.FeatureType())
	}
	m.byType[f.FeatureType()] = append(m.byType[f.FeatureType()], f)
	m.byID[f.FeatureID()] = f
	return nil
}

// ByFeatureID returns the single feature with this ID, optionally
// restricted to one of the given types.
func (m *FeatureMap) ByFeatureID(id string, types ...string) (Feature, error) {
	f, ok := m.byID[id]
	if !ok {
		return nil, bridgeerrors.NewConfigError("lookup feature", fmt.Errorf("unknown feature_id %q", id), id)
	}
	if len(types) == 0 {
		return f, nil
	}
	for _, t := range types {
		if f.FeatureType() == t {
			return f, nil
		}
	}
	return nil, bridgeerrors.NewConfigError("lookup feature", fmt.Errorf("feature_id %q is not one of %v", id, types), id)
}

// ByFeatureTypes returns every registered feature of the given types, in
// insertion order.
func (m *FeatureMap) ByFeatureTypes(types []string) []Feature {
	var out []Feature
	for _, t := range types {
		out = append(out, m.byType[t]...)
	}
	return out
}

// All returns every registered feature across all types, type by type in
// first-registration order.
func (m *FeatureMap) All() []Feature {
	var out []Feature
	for _, t := range m.order {
		out = append(out, m.byType[t]...)
	}
	return out
}
