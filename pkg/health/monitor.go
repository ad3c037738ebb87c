// Package health tracks link state for the two Modbus lanes and the MQTT
// session, feeding the bridge's own diagnostic sensor (SPEC_FULL.md §5).
package health

import (
	"sync"
	"time"
)

// linkState is one monitored link's online/offline bookkeeping.
type linkState struct {
	online            bool
	consecutiveErrors int
	lastError         string
	lastErrorTime     time.Time
}

// Monitor tracks the TCP lane, the RTU lane and the MQTT session
// independently. Adapted from the teacher's GatewayHealthMonitor
// (online/consecutive-errors/last-error-time bookkeeping), simplified to a
// plain counter since this bridge's error recovery lives in the circuit
// breaker wrapping the RTU transport, not in a separate recovery manager.
type Monitor struct {
	mu   sync.RWMutex
	tcp  linkState
	rtu  linkState
	mqtt linkState
}

// NewMonitor returns a Monitor with every link initially online.
func NewMonitor() *Monitor {
	return &Monitor{
		tcp:  linkState{online: true},
		rtu:  linkState{online: true},
		mqtt: linkState{online: true},
	}
}

func (m *Monitor) recordSuccess(s *linkState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.online = true
	s.consecutiveErrors = 0
}

func (m *Monitor) recordError(s *linkState, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.consecutiveErrors++
	s.lastError = err.Error()
	s.lastErrorTime = time.Now()
	if s.consecutiveErrors >= 3 {
		s.online = false
	}
}

func (m *Monitor) RecordTCPSuccess()        { m.recordSuccess(&m.tcp) }
func (m *Monitor) RecordTCPError(err error) { m.recordError(&m.tcp, err) }
func (m *Monitor) RecordRTUSuccess()        { m.recordSuccess(&m.rtu) }
func (m *Monitor) RecordRTUError(err error) { m.recordError(&m.rtu, err) }
func (m *Monitor) RecordMQTTSuccess()       { m.recordSuccess(&m.mqtt) }
func (m *Monitor) RecordMQTTError(err error) { m.recordError(&m.mqtt, err) }

// Snapshot is a point-in-time view of every link's health.
type Snapshot struct {
	TCPOnline  bool
	RTUOnline  bool
	MQTTOnline bool
	TCPErrors  int
	RTUErrors  int
	MQTTErrors int
	LastError  string
}

// Snapshot returns the current state of all three links.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lastErr := m.tcp.lastError
	lastTime := m.tcp.lastErrorTime
	if m.rtu.lastErrorTime.After(lastTime) {
		lastErr = m.rtu.lastError
		lastTime = m.rtu.lastErrorTime
	}
	if m.mqtt.lastErrorTime.After(lastTime) {
		lastErr = m.mqtt.lastError
	}

	return Snapshot{
		TCPOnline:  m.tcp.online,
		RTUOnline:  m.rtu.online,
		MQTTOnline: m.mqtt.online,
		TCPErrors:  m.tcp.consecutiveErrors,
		RTUErrors:  m.rtu.consecutiveErrors,
		MQTTErrors: m.mqtt.consecutiveErrors,
		LastError:  lastErr,
	}
}
