// Package mqttengine owns the single MQTT session: connect/reconnect,
// Home Assistant discovery publication, the fast/slow state publishers and
// command routing (§4.6).
package mqttengine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"unipi-control/pkg/bridgeerrors"
	"unipi-control/pkg/config"
	"unipi-control/pkg/covers"
	"unipi-control/pkg/discovery"
	"unipi-control/pkg/features"
	"unipi-control/pkg/logger"
	"unipi-control/pkg/metrics"
	"unipi-control/pkg/slug"
)

const (
	fastPublishInterval = 20 * time.Millisecond
	slowPublishInterval = 20 * time.Second
)

// Engine owns the MQTT client and drives publishing/command handling.
type Engine struct {
	cfg         *config.Config
	client      paho.Client
	fm          *features.FeatureMap
	cm          *covers.CoverMap
	metrics     metrics.MetricsCollector
	statusTopic string
	slugName    string
}

// New builds an Engine but does not connect. collector may be nil, in
// which case publishes are counted by a NullMetrics instance.
func New(cfg *config.Config, fm *features.FeatureMap, cm *covers.CoverMap, collector metrics.MetricsCollector) *Engine {
	if collector == nil {
		collector = metrics.NewNullMetrics()
	}
	e := &Engine{cfg: cfg, fm: fm, cm: cm, metrics: collector}
	e.slugName = slug.Slugify(cfg.DeviceInfo.Name)
	e.statusTopic = e.slugName + "/status"

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Mqtt.Host, cfg.Mqtt.Port))
	opts.SetClientID(e.slugName + "_unipi_control")
	opts.SetUsername(cfg.Mqtt.Username)
	opts.SetPassword(cfg.Mqtt.Password)
	opts.SetAutoReconnect(true)

	keepAlive := cfg.Mqtt.KeepAlive
	if keepAlive == 0 {
		keepAlive = 60
	}
	opts.SetKeepAlive(time.Duration(keepAlive) * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetWill(e.statusTopic, "offline", 1, true)

	opts.SetOnConnectHandler(func(c paho.Client) {
		e.metrics.SetGatewayStatus(true)
		logger.LogInfo("✅ MQTT connected to %s:%d", cfg.Mqtt.Host, cfg.Mqtt.Port)
		if token := c.Publish(e.statusTopic, 1, true, "online"); token.Wait() && token.Error() != nil {
			logger.LogWarn("⚠️ failed to publish online status: %v", token.Error())
		}
		e.subscribeCommands()
		if cfg.HomeAssistant.Enabled {
			e.publishDiscovery()
		}
	})
	opts.SetConnectionLostHandler(func(c paho.Client, err error) {
		e.metrics.SetGatewayStatus(false)
		logger.LogError("❌ MQTT connection lost: %v", err)
	})

	e.client = paho.NewClient(opts)
	return e
}

// Connect blocks, retrying up to cfg.Mqtt.RetryLimit times (0 = infinite)
// with cfg.Mqtt.ReconnectInterval seconds between attempts.
func (e *Engine) Connect(ctx context.Context) error {
	interval := time.Duration(e.cfg.Mqtt.ReconnectInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	attempt := 0
	for {
		attempt++
		if token := e.client.Connect(); token.Wait() && token.Error() != nil {
			logger.LogError("❌ MQTT connect attempt %d failed: %v", attempt, token.Error())
			if e.cfg.Mqtt.RetryLimit > 0 && attempt > e.cfg.Mqtt.RetryLimit {
				return bridgeerrors.NewMqttError("connect", token.Error(), e.cfg.Mqtt.Host)
			}
			select {
			case <-ctx.Done():
				return bridgeerrors.NewMqttError("connect", ctx.Err(), e.cfg.Mqtt.Host)
			case <-time.After(interval):
				continue
			}
		}
		return nil
	}
}

// Disconnect publishes offline status and closes the session.
func (e *Engine) Disconnect() {
	if e.client.IsConnected() {
		if token := e.client.Publish(e.statusTopic, 1, true, "offline"); token.Wait() && token.Error() != nil {
			logger.LogWarn("⚠️ failed to publish offline status: %v", token.Error())
		}
		e.client.Disconnect(250)
	}
}

// Run drives one publisher loop until ctx is cancelled: features and
// covers on the fast tick, meters on the slow tick.
func (e *Engine) Run(ctx context.Context) error {
	fastTicker := time.NewTicker(fastPublishInterval)
	slowTicker := time.NewTicker(slowPublishInterval)
	defer fastTicker.Stop()
	defer slowTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fastTicker.C:
			e.publishFast()
			e.publishCovers()
		case <-slowTicker.C:
			e.publishSlow()
		}
	}
}

func (e *Engine) publishFast() {
	for _, f := range e.fm.ByFeatureTypes([]string{"DI", "DO", "RO", "LED"}) {
		if !f.Changed() {
			continue
		}
		payload, ok := f.Payload()
		if !ok {
			continue
		}
		e.publish(f.Topic()+"/get", payload, false)
	}
}

func (e *Engine) publishSlow() {
	for _, f := range e.fm.ByFeatureTypes([]string{"METER"}) {
		if !f.Changed() {
			continue
		}
		payload, ok := f.Payload()
		if !ok {
			continue
		}
		e.publish(f.Topic()+"/get", payload, false)
	}
}

func (e *Engine) publishCovers() {
	if e.cm == nil {
		return
	}
	for _, c := range e.cm.All() {
		if err := c.Calibrate(); err != nil {
			logger.LogWarn("⚠️ calibrate %s: %v", c.ObjectID(), err)
		}
		stem := c.Topic(e.cfg.DeviceInfo.Name)
		if c.StateChanged() {
			e.publish(stem+"/state", string(c.State()), true)
		}
		if c.SupportsPosition() && c.PositionChanged() {
			e.publish(stem+"/position", strconv.Itoa(int(c.Position())), true)
		}
		if c.SupportsTilt() && c.TiltChanged() {
			e.publish(stem+"/tilt", strconv.Itoa(int(c.Tilt())), true)
		}
	}
}

func (e *Engine) publish(topic, payload string, retain bool) {
	if token := e.client.Publish(topic, 0, retain, payload); token.Wait() && token.Error() != nil {
		e.metrics.IncrementMQTTErrors()
		logger.LogWarn("⚠️ publish %s failed: %v", topic, token.Error())
		return
	}
	e.metrics.IncrementMQTTPublishes()
}

// PublishRetained publishes a retained message; satisfies diagnostics.Publisher.
func (e *Engine) PublishRetained(topic, payload string) {
	e.publish(topic, payload, true)
}

func (e *Engine) publishDiscovery() {
	for _, f := range e.fm.All() {
		_, topic, payload, ok := discovery.BuildFeature(e.cfg, f)
		if !ok {
			continue
		}
		e.publish(topic, string(payload), true)
		time.Sleep(20 * time.Millisecond)
	}
	if e.cm != nil {
		for _, c := range e.cm.All() {
			_, topic, payload := discovery.BuildCover(e.cfg, c)
			e.publish(topic, string(payload), true)
			time.Sleep(20 * time.Millisecond)
		}
	}
	topic, payload := discovery.BuildDiagnostic(e.cfg, e.slugName+"/diagnostics")
	e.publish(topic, string(payload), true)
}

// subscribeCommands subscribes to the whole device namespace and routes
// each message by topic suffix (§4.6 command grammar).
func (e *Engine) subscribeCommands() {
	topic := e.slugName + "/#"
	if token := e.client.Subscribe(topic, 0, e.handleMessage); token.Wait() && token.Error() != nil {
		logger.LogError("❌ failed to subscribe to %s: %v", topic, token.Error())
	}
}

func (e *Engine) handleMessage(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	payload := strings.TrimSpace(string(msg.Payload()))

	switch {
	case strings.HasSuffix(topic, "/set") && strings.HasSuffix(strings.TrimSuffix(topic, "/set"), "/position"):
		e.handleCoverPositionCommand(strings.TrimSuffix(topic, "/position/set"), payload)
	case strings.HasSuffix(topic, "/set") && strings.HasSuffix(strings.TrimSuffix(topic, "/set"), "/tilt"):
		e.handleCoverTiltCommand(strings.TrimSuffix(topic, "/tilt/set"), payload)
	case strings.HasSuffix(topic, "/set"):
		e.handleSetCommand(strings.TrimSuffix(topic, "/set"), payload)
	}
}

func (e *Engine) handleSetCommand(stem, payload string) {
	if c := e.coverByStem(stem); c != nil {
		switch strings.ToUpper(payload) {
		case "OPEN":
			if err := c.OpenCover(); err != nil {
				logger.LogWarn("⚠️ open_cover %s: %v", c.ObjectID(), err)
			}
		case "CLOSE":
			if err := c.CloseCover(); err != nil {
				logger.LogWarn("⚠️ close_cover %s: %v", c.ObjectID(), err)
			}
		case "STOP":
			if err := c.StopCover(); err != nil {
				logger.LogWarn("⚠️ stop_cover %s: %v", c.ObjectID(), err)
			}
		}
		return
	}

	featureID := featureIDFromTopic(stem)
	f, err := e.fm.ByFeatureID(featureID)
	if err != nil {
		logger.LogWarn("⚠️ command for unknown feature topic %s", stem)
		return
	}
	w, ok := f.(features.Writable)
	if !ok {
		logger.LogWarn("⚠️ command for read-only feature %s", featureID)
		return
	}
	var on bool
	switch {
	case strings.EqualFold(payload, "ON"):
		on = true
	case strings.EqualFold(payload, "OFF"):
		on = false
	default:
		logger.LogWarn("⚠️ unrecognized command payload %q for %s", payload, featureID)
		return
	}
	if err := w.SetState(on); err != nil {
		logger.LogWarn("⚠️ set_state %s: %v", featureID, err)
	}
}

func (e *Engine) handleCoverPositionCommand(stem, payload string) {
	c := e.coverByStem(stem)
	if c == nil {
		return
	}
	v, err := strconv.Atoi(payload)
	if err != nil {
		logger.LogWarn("⚠️ invalid position payload %q for %s", payload, stem)
		return
	}
	c.SetPosition(v)
}

func (e *Engine) handleCoverTiltCommand(stem, payload string) {
	c := e.coverByStem(stem)
	if c == nil {
		return
	}
	v, err := strconv.Atoi(payload)
	if err != nil {
		logger.LogWarn("⚠️ invalid tilt payload %q for %s", payload, stem)
		return
	}
	c.SetTilt(v)
}

func (e *Engine) coverByStem(stem string) *covers.Cover {
	if e.cm == nil {
		return nil
	}
	for _, c := range e.cm.All() {
		if c.Topic(e.cfg.DeviceInfo.Name) == stem {
			return c
		}
	}
	return nil
}

// featureIDFromTopic recovers the feature_id from a "{dev}/<kind>/{fid}"
// topic stem.
func featureIDFromTopic(stem string) string {
	parts := strings.Split(stem, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
