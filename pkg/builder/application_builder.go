// Package builder wires the bridge's components together: config and
// hardware map, the Modbus façade and register cache, the feature and
// cover models, the MQTT engine, the scan-lane scheduler and the
// diagnostics reporter. It is the dependency-injection root the teacher's
// own pkg/builder plays for its USR-DR164 gateway stack, adapted here to
// the dual-lane Modbus façade (§4.8).
package builder

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"unipi-control/pkg/config"
	"unipi-control/pkg/covers"
	"unipi-control/pkg/diagnostics"
	"unipi-control/pkg/features"
	"unipi-control/pkg/hardware"
	"unipi-control/pkg/health"
	"unipi-control/pkg/logger"
	"unipi-control/pkg/metrics"
	"unipi-control/pkg/modbusx"
	"unipi-control/pkg/mqttengine"
	"unipi-control/pkg/scheduler"
	"unipi-control/pkg/slug"
)

const diagnosticsInterval = 30 * time.Second

// ApplicationBuilder provides a fluent interface for constructing an
// Application. Following the teacher's Builder pattern enables swapping
// the identifier source in tests without touching sysfs.
type ApplicationBuilder struct {
	config     *config.Config
	identifier hardware.IdentifierSource
	tempDir    string
}

// NewApplicationBuilder creates a new builder for cfg.
func NewApplicationBuilder(cfg *config.Config) *ApplicationBuilder {
	return &ApplicationBuilder{config: cfg}
}

// WithIdentifierSource overrides the PLC model identifier (used by tests;
// defaults to reading the board EEPROM under cfg.SysBus).
func (b *ApplicationBuilder) WithIdentifierSource(src hardware.IdentifierSource) *ApplicationBuilder {
	b.identifier = src
	return b
}

// WithTempDir overrides the directory cover position files are persisted
// under (defaults to os.TempDir()).
func (b *ApplicationBuilder) WithTempDir(dir string) *ApplicationBuilder {
	b.tempDir = dir
	return b
}

// Build resolves the hardware map and wires every component into an
// Application, ready for Run.
func (b *ApplicationBuilder) Build() (*Application, error) {
	if b.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	identifier := b.identifier
	if identifier == nil {
		identifier = hardware.NewEEPROMIdentifier(b.config.SysBus)
	}

	hwMap, err := hardware.Load(b.config, identifier)
	if err != nil {
		return nil, fmt.Errorf("error loading hardware map: %w", err)
	}

	tempDir := b.tempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	monitor := health.NewMonitor()
	collector := metrics.NewNullMetrics()

	facade := modbusx.NewFacade(b.config)
	facade.SetHealthHook(func(lane modbusx.Lane, err error) {
		if lane == modbusx.LaneTCP {
			if err != nil {
				monitor.RecordTCPError(err)
			} else {
				monitor.RecordTCPSuccess()
			}
			return
		}
		if err != nil {
			monitor.RecordRTUError(err)
		} else {
			monitor.RecordRTUSuccess()
		}
	})

	cache := modbusx.NewRegisterCache()

	fm, err := features.Build(b.config, hwMap, facade, cache)
	if err != nil {
		return nil, fmt.Errorf("error building feature map: %w", err)
	}

	cm, err := covers.Build(b.config, fm, tempDir)
	if err != nil {
		return nil, fmt.Errorf("error building cover map: %w", err)
	}

	engine := mqttengine.New(b.config, fm, cm, collector)

	laneScheduler := scheduler.New(facade, cache, hwMap, collector)

	diagnosticsTopic := slug.Slugify(b.config.DeviceInfo.Name) + "/diagnostics"
	reporter := diagnostics.NewReporter(monitor, engine, diagnosticsTopic, diagnosticsInterval)

	app := &Application{
		config:    b.config,
		hwMap:     hwMap,
		facade:    facade,
		cache:     cache,
		fm:        fm,
		cm:        cm,
		engine:    engine,
		scheduler: laneScheduler,
		monitor:   monitor,
		reporter:  reporter,
		stopCh:    make(chan struct{}),
	}

	return app, nil
}

// Application owns every long-lived component and the background loops
// that drive them, replacing the teacher's MQTT-gateway-centric
// Application with one built around the dual-lane Modbus façade.
type Application struct {
	config    *config.Config
	hwMap     hardware.HardwareMap
	facade    *modbusx.Facade
	cache     *modbusx.RegisterCache
	fm        *features.FeatureMap
	cm        *covers.CoverMap
	engine    *mqttengine.Engine
	scheduler *scheduler.LaneScheduler
	monitor   *health.Monitor
	reporter  *diagnostics.Reporter
	stopCh    chan struct{}
}

// GetConfig returns the application configuration.
func (app *Application) GetConfig() *config.Config {
	return app.config
}

// GetMonitor returns the link-health monitor.
func (app *Application) GetMonitor() *health.Monitor {
	return app.monitor
}

// GetFeatureMap returns the resolved feature model.
func (app *Application) GetFeatureMap() *features.FeatureMap {
	return app.fm
}

// GetCoverMap returns the resolved cover model.
func (app *Application) GetCoverMap() *covers.CoverMap {
	return app.cm
}

// Run connects the MQTT engine then blocks, supervising the scan-lane
// scheduler, the MQTT publish/command loop and the diagnostics reporter
// until ctx is cancelled. Once connected, it always disconnects the MQTT
// session and stops the cover workers before returning, even on error; if
// the initial connect fails it returns at once without that cleanup.
func (app *Application) Run(ctx context.Context) error {
	if err := app.engine.Connect(ctx); err != nil {
		return fmt.Errorf("error connecting MQTT engine: %w", err)
	}
	defer app.engine.Disconnect()
	defer app.cm.Close()
	defer app.facade.Close()

	go app.reporter.Run(app.stopCh)
	defer close(app.stopCh)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.scheduler.Run(gctx) })
	g.Go(func() error { return app.engine.Run(gctx) })

	logger.LogInfo("✅ Unipi Control bridge running")
	return g.Wait()
}
