// Package modbusx is the Modbus driver façade: one TCP client to the
// on-board PLC and one RTU client to the extension bus, exposed behind a
// transport-agnostic request contract (§4.2).
package modbusx

import (
	"errors"
	"sync"
	"time"

	goburrow "github.com/goburrow/modbus"

	"unipi-control/pkg/bridgeerrors"
	"unipi-control/pkg/config"
	"unipi-control/pkg/recovery"
)

const (
	defaultTCPTimeout = 500 * time.Millisecond
	defaultRTUTimeout = time.Second
)

// Lane selects which physical transport a request travels over. The
// on-board PLC boards are addressed as distinct Modbus unit ids on the
// *same* TCP connection (e.g. the firmware probe below), so lane selection
// cannot be inferred from the unit id alone - callers state it explicitly.
type Lane int

const (
	LaneTCP Lane = iota
	LaneRTU
)

var errNoRTU = errors.New("no RTU transport configured")

// Facade is the uniform entry point for register reads/writes used by the
// scanners, the feature model's write path and the cover state machine.
type Facade struct {
	tcpMu      sync.Mutex
	tcpHandler *goburrow.TCPClientHandler
	tcpClient  goburrow.Client

	rtuMu       sync.Mutex
	rtuHandler  *goburrow.RTUClientHandler
	rtuClient   goburrow.Client
	rtuSleep    time.Duration
	rtuLastCall time.Time
	hasRTU      bool
	rtuBreaker  *recovery.CircuitBreaker

	// healthHook, when set, is called after every request with the lane and
	// the resulting error (nil on success) so pkg/health can track link
	// state without the façade depending on it directly.
	healthHook func(lane Lane, err error)
}

// SetHealthHook installs the link-health observer.
func (f *Facade) SetHealthHook(hook func(lane Lane, err error)) {
	f.healthHook = hook
}

// NewFacade builds the façade. Connect is attempted lazily before every
// request per the reconnect-on-disconnect contract, never eagerly here.
func NewFacade(cfg *config.Config) *Facade {
	f := &Facade{}

	tcpHandler := goburrow.NewTCPClientHandler("localhost:502")
	tcpHandler.Timeout = defaultTCPTimeout
	f.tcpHandler = tcpHandler
	f.tcpClient = goburrow.NewClient(tcpHandler)

	if cfg.Modbus.Device != "" {
		rtuHandler := goburrow.NewRTUClientHandler(cfg.Modbus.Device)
		rtuHandler.BaudRate = cfg.Modbus.BaudRate
		rtuHandler.DataBits = 8
		rtuHandler.Parity = cfg.Modbus.Parity
		rtuHandler.StopBits = 1
		rtuHandler.Timeout = defaultRTUTimeout
		f.rtuHandler = rtuHandler
		f.rtuClient = goburrow.NewClient(rtuHandler)
		f.hasRTU = true
		f.rtuBreaker = recovery.NewCircuitBreaker(recovery.CircuitBreakerConfig{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		})
		// T3.5 silent interval: 3.5 character times at the configured baud
		// rate, 11 bits per character (start + 8 data + parity + stop).
		f.rtuSleep = time.Duration(3.5 * 11 / float64(cfg.Modbus.BaudRate) * float64(time.Second))
	}

	return f
}

// pace enforces the T3.5 inter-request silent interval on the RTU line.
// Must be called with rtuMu held.
func (f *Facade) pace() {
	if f.rtuSleep <= 0 {
		return
	}
	elapsed := time.Since(f.rtuLastCall)
	if elapsed < f.rtuSleep {
		time.Sleep(f.rtuSleep - elapsed)
	}
	f.rtuLastCall = time.Now()
}

func (f *Facade) withLane(lane Lane, unit uint8, fn func(client goburrow.Client) ([]byte, error)) ([]byte, error) {
	if lane == LaneTCP {
		f.tcpMu.Lock()
		defer f.tcpMu.Unlock()

		f.tcpHandler.SlaveId = unit
		if err := f.tcpHandler.Connect(); err != nil {
			wrapped := bridgeerrors.NewModbusError("connect", err, "tcp", 0)
			f.reportHealth(lane, wrapped)
			return nil, wrapped
		}
		b, err := fn(f.tcpClient)
		if err != nil {
			wrapped := bridgeerrors.NewModbusError("request", err, "tcp", 0)
			f.reportHealth(lane, wrapped)
			return nil, wrapped
		}
		f.reportHealth(lane, nil)
		return b, nil
	}

	if !f.hasRTU {
		return nil, bridgeerrors.NewModbusError("select lane", errNoRTU, "rtu", 0)
	}

	f.rtuMu.Lock()
	defer f.rtuMu.Unlock()

	var result []byte
	cbErr := f.rtuBreaker.Call(func() error {
		f.rtuHandler.SlaveId = unit
		if err := f.rtuHandler.Connect(); err != nil {
			return err
		}
		f.pace()

		b, err := fn(f.rtuClient)
		if err != nil {
			return err
		}
		result = b
		return nil
	})
	if cbErr != nil {
		wrapped := bridgeerrors.NewModbusError("request", cbErr, "rtu", 0)
		f.reportHealth(lane, wrapped)
		return nil, wrapped
	}
	f.reportHealth(lane, nil)
	return result, nil
}

func (f *Facade) reportHealth(lane Lane, err error) {
	if f.healthHook != nil {
		f.healthHook(lane, err)
	}
}

// ReadInputRegisters reads count input registers starting at address on
// unit, over the given lane.
func (f *Facade) ReadInputRegisters(lane Lane, address, count uint16, unit uint8) ([]uint16, error) {
	raw, err := f.withLane(lane, unit, func(c goburrow.Client) ([]byte, error) {
		return c.ReadInputRegisters(address, count)
	})
	if err != nil {
		return nil, err
	}
	return bytesToRegisters(raw), nil
}

// ReadHoldingRegisters reads count holding registers starting at address on
// unit, over the given lane.
func (f *Facade) ReadHoldingRegisters(lane Lane, address, count uint16, unit uint8) ([]uint16, error) {
	raw, err := f.withLane(lane, unit, func(c goburrow.Client) ([]byte, error) {
		return c.ReadHoldingRegisters(address, count)
	})
	if err != nil {
		return nil, err
	}
	return bytesToRegisters(raw), nil
}

// WriteCoil writes a single coil on unit, over the given lane.
func (f *Facade) WriteCoil(lane Lane, address uint16, value bool, unit uint8) error {
	coilValue := uint16(0x0000)
	if value {
		coilValue = 0xFF00
	}
	_, err := f.withLane(lane, unit, func(c goburrow.Client) ([]byte, error) {
		return c.WriteSingleCoil(address, coilValue)
	})
	return err
}

// WriteRegister writes a single holding register on unit, over the given lane.
func (f *Facade) WriteRegister(lane Lane, address, value uint16, unit uint8) error {
	_, err := f.withLane(lane, unit, func(c goburrow.Client) ([]byte, error) {
		return c.WriteSingleRegister(address, value)
	})
	return err
}

func bytesToRegisters(raw []byte) []uint16 {
	regs := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		regs = append(regs, uint16(raw[i])<<8|uint16(raw[i+1]))
	}
	return regs
}

// Close releases both transports.
func (f *Facade) Close() {
	f.tcpMu.Lock()
	_ = f.tcpHandler.Close()
	f.tcpMu.Unlock()

	if f.hasRTU {
		f.rtuMu.Lock()
		_ = f.rtuHandler.Close()
		f.rtuMu.Unlock()
	}
}
