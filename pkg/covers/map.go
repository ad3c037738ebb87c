package covers

import (
	"os"

	"unipi-control/pkg/bridgeerrors"
	"unipi-control/pkg/config"
	"unipi-control/pkg/features"
	"unipi-control/pkg/slug"
)

// CoverMap holds every configured cover, keyed by object_id.
type CoverMap struct {
	byObjectID map[string]*Cover
	order      []string
}

// Build constructs one Cover per cfg.Covers entry, resolving cover_up and
// cover_down against the already-built feature map. deviceSlug/tempDir
// locate the persisted position files (§3 Lifecycle).
func Build(cfg *config.Config, fm *features.FeatureMap, tempDir string) (*CoverMap, error) {
	cm := &CoverMap{byObjectID: make(map[string]*Cover)}
	deviceSlug := slug.Slugify(cfg.DeviceInfo.Name)

	if tempDir == "" {
		tempDir = os.TempDir()
	}

	for _, cc := range cfg.Covers {
		upFeat, err := fm.ByFeatureID(cc.CoverUp)
		if err != nil {
			return nil, bridgeerrors.NewConfigError("resolve cover_up", err, "covers["+cc.ObjectID+"].cover_up")
		}
		up, ok := upFeat.(features.Writable)
		if !ok {
			return nil, bridgeerrors.NewConfigError("resolve cover_up", bridgeerrors.ErrNotWritable, "covers["+cc.ObjectID+"].cover_up")
		}

		downFeat, err := fm.ByFeatureID(cc.CoverDown)
		if err != nil {
			return nil, bridgeerrors.NewConfigError("resolve cover_down", err, "covers["+cc.ObjectID+"].cover_down")
		}
		down, ok := downFeat.(features.Writable)
		if !ok {
			return nil, bridgeerrors.NewConfigError("resolve cover_down", bridgeerrors.ErrNotWritable, "covers["+cc.ObjectID+"].cover_down")
		}

		cover := New(cc, up, down, deviceSlug, tempDir)
		cm.byObjectID[cc.ObjectID] = cover
		cm.order = append(cm.order, cc.ObjectID)
	}

	return cm, nil
}

// ByObjectID looks up one cover by its configured object_id.
func (cm *CoverMap) ByObjectID(id string) (*Cover, bool) {
	c, ok := cm.byObjectID[id]
	return c, ok
}

// All returns every cover in configuration order.
func (cm *CoverMap) All() []*Cover {
	out := make([]*Cover, 0, len(cm.order))
	for _, id := range cm.order {
		out = append(out, cm.byObjectID[id])
	}
	return out
}

// Close stops every cover's background worker.
func (cm *CoverMap) Close() {
	for _, c := range cm.byObjectID {
		c.Close()
	}
}
