// Package diagnostics publishes the bridge's own health as one retained
// Home Assistant sensor, a supplemented feature not present in the
// original Python daemon (SPEC_FULL.md §5).
package diagnostics

import (
	"encoding/json"
	"time"

	"unipi-control/pkg/health"
	"unipi-control/pkg/logger"
)

// Publisher is the minimal MQTT capability the reporter needs; satisfied by
// *mqttengine.Engine without diagnostics importing mqttengine back.
type Publisher interface {
	PublishRetained(topic, payload string)
}

// state is the JSON document published on the diagnostics topic.
type state struct {
	TCPOnline  bool   `json:"tcp_online"`
	RTUOnline  bool   `json:"rtu_online"`
	MQTTOnline bool   `json:"mqtt_online"`
	TCPErrors  int    `json:"tcp_errors"`
	RTUErrors  int    `json:"rtu_errors"`
	MQTTErrors int    `json:"mqtt_errors"`
	LastError  string `json:"last_error,omitempty"`
}

// Reporter periodically publishes a Monitor snapshot.
type Reporter struct {
	monitor  *health.Monitor
	pub      Publisher
	topic    string
	interval time.Duration
}

// NewReporter builds a Reporter that publishes to topic every interval.
func NewReporter(monitor *health.Monitor, pub Publisher, topic string, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reporter{monitor: monitor, pub: pub, topic: topic, interval: interval}
}

// Run publishes a snapshot immediately, then on every tick until stop is
// closed.
func (r *Reporter) Run(stop <-chan struct{}) {
	r.publishOnce()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.publishOnce()
		}
	}
}

func (r *Reporter) publishOnce() {
	snap := r.monitor.Snapshot()
	payload, err := json.Marshal(state{
		TCPOnline:  snap.TCPOnline,
		RTUOnline:  snap.RTUOnline,
		MQTTOnline: snap.MQTTOnline,
		TCPErrors:  snap.TCPErrors,
		RTUErrors:  snap.RTUErrors,
		MQTTErrors: snap.MQTTErrors,
		LastError:  snap.LastError,
	})
	if err != nil {
		logger.LogWarn("⚠️ failed to marshal diagnostics snapshot: %v", err)
		return
	}
	r.pub.PublishRetained(r.topic, string(payload))
}
