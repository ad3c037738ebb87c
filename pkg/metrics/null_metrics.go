package metrics

import "time"

// NullMetrics is a no-op implementation of MetricsCollector. It is the
// collector the scheduler and the MQTT engine use; no other implementation
// exists here.
//
// All methods are no-ops.
type NullMetrics struct{}

// NewNullMetrics creates a new NullMetrics instance
func NewNullMetrics() *NullMetrics {
	return &NullMetrics{}
}

// IncrementModbusReads is a no-op
func (nm *NullMetrics) IncrementModbusReads() {}

// IncrementModbusErrors is a no-op
func (nm *NullMetrics) IncrementModbusErrors() {}

// IncrementMQTTPublishes is a no-op
func (nm *NullMetrics) IncrementMQTTPublishes() {}

// IncrementMQTTErrors is a no-op
func (nm *NullMetrics) IncrementMQTTErrors() {}

// SetGatewayStatus is a no-op
func (nm *NullMetrics) SetGatewayStatus(online bool) {}

// ObserveModbusReadDuration is a no-op
func (nm *NullMetrics) ObserveModbusReadDuration(duration time.Duration) {}

// StartMetricsServer is a no-op (always returns nil)
func (nm *NullMetrics) StartMetricsServer(port int) error {
	return nil
}

// Compile-time verification that NullMetrics implements MetricsCollector
var _ MetricsCollector = (*NullMetrics)(nil)
