// Package scheduler runs the two Modbus scan lanes (on-board TCP boards,
// RTU extension units) as independent, errgroup-supervised loops feeding a
// shared register cache (§4.2, §4.3).
package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"unipi-control/pkg/hardware"
	"unipi-control/pkg/logger"
	"unipi-control/pkg/metrics"
	"unipi-control/pkg/modbusx"
)

// DefaultTCPScanInterval is the on-board PLC poll rate (§4.3).
const DefaultTCPScanInterval = 20 * time.Millisecond

// LaneScheduler drives one register block scan per configured interval, one
// goroutine for the TCP lane and one per RTU extension unit, each running
// independently (the façade serialises RTU requests). RTU scanning has no fixed
// interval: it runs back-to-back, naturally paced by the façade's T3.5
// enforcement, so its "interval" is effectively zero.
type LaneScheduler struct {
	facade      *modbusx.Facade
	cache       *modbusx.RegisterCache
	hwMap       hardware.HardwareMap
	tcpInterval time.Duration
	metrics     metrics.MetricsCollector
}

// New builds a scheduler over the resolved hardware map. collector may be
// nil, in which case scan reads are counted by a NullMetrics instance.
func New(facade *modbusx.Facade, cache *modbusx.RegisterCache, hwMap hardware.HardwareMap, collector metrics.MetricsCollector) *LaneScheduler {
	if collector == nil {
		collector = metrics.NewNullMetrics()
	}
	return &LaneScheduler{
		facade:      facade,
		cache:       cache,
		hwMap:       hwMap,
		tcpInterval: DefaultTCPScanInterval,
		metrics:     collector,
	}
}

// Run starts both lanes and blocks until ctx is cancelled or a lane returns
// a fatal error, per the errgroup "first error cancels the rest" contract.
func (s *LaneScheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if plc, ok := s.hwMap["PLC"]; ok {
		blocks := plc.RegisterBlocks
		g.Go(func() error { return s.runTCPLane(ctx, blocks) })
	}

	for key, def := range s.hwMap {
		if key == "PLC" {
			continue
		}
		def := def
		g.Go(func() error { return s.runRTULane(ctx, def) })
	}

	return g.Wait()
}

// runTCPLane polls every configured PLC register block on a fixed tick.
// Board unit ids on the TCP lane are 1-indexed per register block (§4.4).
func (s *LaneScheduler) runTCPLane(ctx context.Context, blocks []hardware.RegisterBlock) error {
	ticker := time.NewTicker(s.tcpInterval)
	defer ticker.Stop()

	logger.LogInfo("📅 TCP scan lane started (%d blocks, interval %v)", len(blocks), s.tcpInterval)

	for {
		select {
		case <-ctx.Done():
			logger.LogDebug("🔄 TCP scan lane stopped")
			return nil
		case <-ticker.C:
			for _, b := range blocks {
				start := time.Now()
				regs, err := s.facade.ReadInputRegisters(modbusx.LaneTCP, b.StartRegister, b.Count, b.Unit)
				s.metrics.ObserveModbusReadDuration(time.Since(start))
				if err != nil {
					s.metrics.IncrementModbusErrors()
					logger.LogError("❌ TCP scan block (unit %d, reg %d): %v", b.Unit, b.StartRegister, err)
					continue
				}
				s.metrics.IncrementModbusReads()
				s.cache.SetRegisters(b.Unit, b.StartRegister, regs)
			}
		}
	}
}

// runRTULane polls an extension unit's register blocks back-to-back; the
// façade's own T3.5 pacing is the only throttle on this lane (§4.3).
func (s *LaneScheduler) runRTULane(ctx context.Context, def *hardware.HardwareDefinition) error {
	logger.LogInfo("📅 RTU scan lane started for unit %d (%d blocks)", def.Unit, len(def.RegisterBlocks))

	for {
		select {
		case <-ctx.Done():
			logger.LogDebug("🔄 RTU scan lane stopped for unit %d", def.Unit)
			return nil
		default:
		}

		for _, b := range def.RegisterBlocks {
			start := time.Now()
			regs, err := s.facade.ReadInputRegisters(modbusx.LaneRTU, b.StartRegister, b.Count, def.Unit)
			s.metrics.ObserveModbusReadDuration(time.Since(start))
			if err != nil {
				s.metrics.IncrementModbusErrors()
				logger.LogError("❌ RTU scan block (unit %d, reg %d): %v", def.Unit, b.StartRegister, err)
				continue
			}
			s.metrics.IncrementModbusReads()
			s.cache.SetRegisters(def.Unit, b.StartRegister, regs)
		}
	}
}
