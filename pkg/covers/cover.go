// Package covers implements the per-cover state machine: position/tilt
// tracking, a serialized command queue, timed stops, calibration and
// position persistence across restarts (§4.5, §3 Cover).
package covers

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"unipi-control/pkg/config"
	"unipi-control/pkg/features"
	"unipi-control/pkg/logger"
	"unipi-control/pkg/slug"
)

// State is the cover's coarse movement state.
type State string

const (
	StateOpen    State = "open"
	StateOpening State = "opening"
	StateClosing State = "closing"
	StateClosed  State = "closed"
	StateStopped State = "stopped"
)

// DeviceState is which physical output is currently energised.
type DeviceState string

const (
	DeviceIdle  DeviceState = "idle"
	DeviceOpen  DeviceState = "open"
	DeviceClose DeviceState = "close"
)

const unknownPosition = -1

// capabilities are derived from device_class (§3 Capability flags).
type capabilities struct {
	setTilt     bool
	setPosition bool
}

func capabilitiesFor(deviceClass string) capabilities {
	switch deviceClass {
	case "blind":
		return capabilities{setTilt: true, setPosition: true}
	case "garage_door":
		return capabilities{setTilt: false, setPosition: true}
	default: // roller_shutter
		return capabilities{setTilt: false, setPosition: false}
	}
}

// calibration tracks the calibration sub-state machine (§4.5 calibrate()).
type calibration struct {
	mode    bool
	started bool
}

// command is one queued set_position/set_tilt request; OPEN/CLOSE/STOP
// bypass the queue entirely (§4.5 "Per-cover command queue").
type command struct {
	kind     string // "position" | "tilt"
	value    int
	done     chan struct{}
}

// Cover is one motorised window covering driven by two opposite-direction
// output features.
type Cover struct {
	objectID       string
	friendlyName   string
	suggestedArea  string
	deviceClass    string
	coverRunTime   float64
	tiltChangeTime float64
	caps           capabilities

	up   features.Writable
	down features.Writable

	mu          sync.Mutex
	state       State
	deviceState DeviceState
	position    float64
	tilt        float64
	calib       calibration

	timerStart        time.Time
	stopTimer         *time.Timer
	timerActive       bool
	moveStartPosition float64
	moveTarget        float64
	activeDrive       features.Writable

	stateChanged    bool
	positionChanged bool
	tiltChanged     bool

	positionFile string

	queue      chan command
	queueMu    sync.Mutex
	queueItems []command
	stopCh     chan struct{}
}

// New builds one cover from its config entry and the two feature objects it
// drives. It attempts to read the persisted position file; a missing or
// invalid file forces calibration mode (§3 Lifecycle).
func New(cfg config.CoverConfig, up, down features.Writable, deviceSlug, tempDir string) *Cover {
	c := &Cover{
		objectID:       cfg.ObjectID,
		friendlyName:   cfg.FriendlyName,
		suggestedArea:  cfg.SuggestedArea,
		deviceClass:    cfg.DeviceClass,
		coverRunTime:   cfg.CoverRunTime,
		tiltChangeTime: cfg.TiltChangeTime,
		caps:           capabilitiesFor(cfg.DeviceClass),
		up:             up,
		down:           down,
		deviceState:    DeviceIdle,
		position:       unknownPosition,
		tilt:           unknownPosition,
		stopCh:         make(chan struct{}),
		queue:          make(chan command, 64),
	}
	c.positionFile = filepath.Join(tempDir, fmt.Sprintf("%s__%s__cover__%s", deviceSlug, cfg.ObjectID, cfg.DeviceClass))

	if !c.readPosition() {
		c.calib.mode = true
	}

	go c.worker()
	return c
}

// ObjectID, FriendlyName, SuggestedArea, DeviceClass, CoverRunTime,
// TiltChangeTime expose the cover's static identity to the discovery
// publisher and MQTT topic builder.
func (c *Cover) ObjectID() string        { return c.objectID }
func (c *Cover) FriendlyName() string    { return c.friendlyName }
func (c *Cover) SuggestedArea() string   { return c.suggestedArea }
func (c *Cover) DeviceClass() string     { return c.deviceClass }
func (c *Cover) SupportsPosition() bool  { return c.caps.setPosition }
func (c *Cover) SupportsTilt() bool      { return c.caps.setTilt }

// Topic returns the {dev}/{object_id}/cover/{device_class} topic stem.
func (c *Cover) Topic(deviceName string) string {
	return fmt.Sprintf("%s/%s/cover/%s", slug.Slugify(deviceName), c.objectID, c.deviceClass)
}

func (c *Cover) readPosition() bool {
	// #nosec G304 - path is built entirely from the cover's own config-derived name
	data, err := os.ReadFile(c.positionFile)
	if err != nil {
		return false
	}
	parts := strings.SplitN(strings.TrimSpace(string(data)), "/", 2)
	if len(parts) != 2 {
		return false
	}
	pos, err1 := strconv.ParseFloat(parts[0], 64)
	tilt, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return false
	}
	c.position = pos
	c.tilt = tilt
	return true
}

func (c *Cover) writePosition() {
	content := fmt.Sprintf("%g/%g", c.position, c.tilt)
	if err := os.WriteFile(c.positionFile, []byte(content), 0o644); err != nil {
		logger.LogWarn("[COVER] failed to persist position for %s: %v", c.objectID, err)
	}
}

func (c *Cover) deletePosition() {
	_ = os.Remove(c.positionFile)
}

// State, Position, Tilt, DeviceState return a snapshot of the current
// values, safe for concurrent reads from the MQTT publisher loop.
func (c *Cover) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Cover) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *Cover) Tilt() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tilt
}

func (c *Cover) DeviceState() DeviceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceState
}

// StateChanged, PositionChanged, TiltChanged each return true at most once
// per physical transition; reading clears the flag (P4). Position/tilt
// only report true while device_state is idle, i.e. on the final value of
// a move, not intermediate extrapolated values (§4.5).
func (c *Cover) StateChanged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.stateChanged
	c.stateChanged = false
	return v
}

func (c *Cover) PositionChanged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deviceState != DeviceIdle {
		return false
	}
	v := c.positionChanged
	c.positionChanged = false
	return v
}

func (c *Cover) TiltChanged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deviceState != DeviceIdle {
		return false
	}
	v := c.tiltChanged
	c.tiltChanged = false
	return v
}
