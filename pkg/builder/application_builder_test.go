package builder

import (
	"os"
	"path/filepath"
	"testing"

	"unipi-control/pkg/config"
)

type fakeIdentifier struct {
	model string
	err   error
}

func (f *fakeIdentifier) PLCModel() (string, error) { return f.model, f.err }

const plcDefinitionYAML = `
modbus_register_blocks:
  - start_reg: 0
    count: 4
    unit: 1
modbus_features:
  - feature_type: DI
    count: 4
    major_group: 1
    val_reg: 0
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestConfig(base string) *config.Config {
	cfg := &config.Config{ConfigBase: base}
	cfg.DeviceInfo.Name = "Living Room PLC"
	return cfg
}

func TestBuildRejectsNilConfig(t *testing.T) {
	if _, err := NewApplicationBuilder(nil).Build(); err == nil {
		t.Fatal("expected an error for a nil config")
	}
}

func TestBuildWiresApplicationFromHardwareMap(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "hardware", "neuron", "M503.yaml"), plcDefinitionYAML)
	cfg := newTestConfig(base)

	app, err := NewApplicationBuilder(cfg).
		WithIdentifierSource(&fakeIdentifier{model: "M503"}).
		WithTempDir(t.TempDir()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if app.GetConfig() != cfg {
		t.Error("expected GetConfig to return the same config instance")
	}
	if app.GetMonitor() == nil {
		t.Error("expected a non-nil health monitor")
	}
	if app.GetFeatureMap() == nil {
		t.Fatal("expected a non-nil feature map")
	}
	if len(app.GetFeatureMap().ByFeatureTypes([]string{"DI"})) != 4 {
		t.Errorf("expected 4 DI features from the PLC definition, got %d",
			len(app.GetFeatureMap().ByFeatureTypes([]string{"DI"})))
	}
	if app.GetCoverMap() == nil {
		t.Error("expected a non-nil cover map")
	}
}

func TestBuildPropagatesHardwareLoadError(t *testing.T) {
	cfg := newTestConfig(t.TempDir())
	_, err := NewApplicationBuilder(cfg).
		WithIdentifierSource(&fakeIdentifier{model: "UNKNOWN"}).
		Build()
	if err == nil {
		t.Fatal("expected an error when no hardware definition matches the identified model")
	}
}

func TestBuildPropagatesIdentifierError(t *testing.T) {
	cfg := newTestConfig(t.TempDir())
	_, err := NewApplicationBuilder(cfg).
		WithIdentifierSource(&fakeIdentifier{err: os.ErrNotExist}).
		Build()
	if err == nil {
		t.Fatal("expected an error when the identifier source fails")
	}
}
