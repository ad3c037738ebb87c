package covers

import (
	"fmt"
	"time"

	"unipi-control/pkg/features"
	"unipi-control/pkg/logger"
)

// worker drains the position/tilt command queue one at a time. OPEN/CLOSE/
// STOP are issued directly against the cover (bypassing this queue) and
// drain it first, so only set_position/set_tilt requests ever arrive here.
func (c *Cover) worker() {
	for {
		select {
		case <-c.stopCh:
			return
		case cmd := <-c.queue:
			switch cmd.kind {
			case "position":
				c.runSetPosition(cmd.value)
			case "tilt":
				c.runSetTilt(cmd.value)
			}
			close(cmd.done)
		}
	}
}

// Close stops the cover's background worker. Used during shutdown.
func (c *Cover) Close() {
	close(c.stopCh)
}

func (c *Cover) drainQueue() {
	for {
		select {
		case cmd := <-c.queue:
			close(cmd.done)
		default:
			return
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OpenCover drives the cover fully open (§4.5 open_cover). A no-op while
// calibration.mode is set, since calibration owns the drive outputs until
// it finalizes (§4.5 common precondition).
func (c *Cover) OpenCover() error {
	return c.openCover(false)
}

// openCover is the shared implementation behind OpenCover and Calibrate.
// bypassCalibGuard lets Calibrate issue its own open_cover(100) while
// calibration.mode is set, which every other caller is blocked from doing.
func (c *Cover) openCover(bypassCalibGuard bool) error {
	c.mu.Lock()
	if c.calib.mode && !bypassCalibGuard {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	c.drainQueue()
	return c.move(DeviceOpen, StateOpening, StateOpen, 100, c.up, c.down)
}

// CloseCover drives the cover fully closed. There is exactly one
// implementation of this operation; the spec's duplicated description in
// §4.5 describes a single behaviour, implemented once here (Open Question
// decision, see DESIGN.md). A no-op while calibration.mode is set.
func (c *Cover) CloseCover() error {
	c.mu.Lock()
	if c.calib.mode {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	c.drainQueue()
	return c.move(DeviceClose, StateClosing, StateClosed, 0, c.down, c.up)
}

// move is the shared open/close driver: de-energise `other` first (I4 -
// never both outputs live at once), energise `drive`, transition through
// the moving state, and land on `targetPos` after coverRunTime elapses.
func (c *Cover) move(devState DeviceState, moving, landed State, targetPos float64, drive, other features.Writable) error {
	c.mu.Lock()
	if c.deviceState != DeviceIdle {
		c.mu.Unlock()
		return fmt.Errorf("cover %s: already moving", c.objectID)
	}

	if c.position < 0 {
		if devState == DeviceOpen {
			c.position = 0
		} else {
			c.position = 100
		}
	}

	c.moveStartPosition = c.position
	c.moveTarget = targetPos
	c.activeDrive = drive
	c.deviceState = devState
	c.state = moving
	c.stateChanged = true
	c.timerStart = time.Now()
	c.mu.Unlock()

	if err := other.SetState(false); err != nil {
		logger.LogWarn("[COVER] %s: failed to de-energise opposite output: %v", c.objectID, err)
	}
	if err := drive.SetState(true); err != nil {
		c.mu.Lock()
		c.deviceState = DeviceIdle
		c.mu.Unlock()
		return err
	}

	duration := time.Duration(c.coverRunTime * float64(time.Second))
	c.mu.Lock()
	calibrating := c.calib.mode
	if calibrating {
		// A calibration run always finalizes through StopCover's
		// calibration branch, never finishMove, even when the timer
		// elapses without an explicit stop_cover call (§4.5 calibrate()).
		c.stopTimer = time.AfterFunc(duration, func() { _ = c.StopCover() })
	} else {
		c.stopTimer = time.AfterFunc(duration, func() { c.finishMove(landed, targetPos) })
	}
	c.timerActive = true
	c.mu.Unlock()
	return nil
}

// finishMove lands the cover on its target after a full, uninterrupted run.
func (c *Cover) finishMove(landed State, targetPos float64) {
	c.mu.Lock()
	drive := c.activeDrive
	c.activeDrive = nil
	c.deviceState = DeviceIdle
	c.state = landed
	c.stateChanged = true
	c.position = targetPos
	c.positionChanged = true
	if c.caps.setTilt {
		if landed == StateOpen {
			c.tilt = 100
		} else if landed == StateClosed {
			c.tilt = 0
		}
		c.tiltChanged = true
	}
	c.timerActive = false
	c.writePosition()
	c.mu.Unlock()

	if drive != nil {
		if err := drive.SetState(false); err != nil {
			logger.LogWarn("[COVER] %s: failed to de-energise drive output at end of run: %v", c.objectID, err)
		}
	}
}

// StopCover halts a move in progress, extrapolating the current position
// from elapsed time and the configured run time (§4.5 stop_cover).
//
// While in calibration mode, this only finalizes calibration once the
// extrapolated position reached 100; otherwise it forces position back to
// 0 and leaves calibration.mode set, so the next publisher tick's
// Calibrate call retries the run (§4.5 calibrate() / stop_cover()).
//
// Like OpenCover and CloseCover, it first discards any queued
// set_position/set_tilt commands.
func (c *Cover) StopCover() error {
	c.drainQueue()
	return c.stopCover()
}

// stopCover is the stop logic behind StopCover; set_position runs call it
// directly so the command queue is left untouched.
func (c *Cover) stopCover() error {
	c.mu.Lock()
	if c.deviceState == DeviceIdle {
		c.mu.Unlock()
		return nil
	}

	drive := c.activeDrive
	c.activeDrive = nil
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.timerActive = false
	}
	elapsed := time.Since(c.timerStart)
	wasCalibrating := c.calib.mode

	// A full 0-100 travel takes coverRunTime; a move never passes its target.
	travel := 100.0
	if c.coverRunTime > 0 {
		travel = elapsed.Seconds() / c.coverRunTime * 100
	}
	newPos := c.moveTarget
	if travel < absF(c.moveTarget-c.moveStartPosition) {
		if c.moveTarget > c.moveStartPosition {
			newPos = c.moveStartPosition + travel
		} else {
			newPos = c.moveStartPosition - travel
		}
	}
	newPos = clamp(newPos, 0, 100)

	if wasCalibrating {
		if newPos >= 100 {
			newPos = 100
			c.calib.mode = false
			c.calib.started = false
		} else {
			newPos = 0
			c.calib.started = false
		}
	}

	c.position = newPos
	c.positionChanged = true
	switch {
	case newPos <= 0:
		c.state = StateClosed
	case newPos >= 100:
		c.state = StateOpen
	default:
		c.state = StateStopped
	}
	c.stateChanged = true
	c.deviceState = DeviceIdle
	c.writePosition()
	c.mu.Unlock()

	if drive != nil {
		if err := drive.SetState(false); err != nil {
			logger.LogWarn("[COVER] %s: failed to de-energise drive output on stop: %v", c.objectID, err)
		}
	}
	return nil
}

// runSetPosition drives the cover toward an absolute 0-100 position,
// stopping the move once the estimated run time has elapsed. Not
// available on roller_shutter covers (§3 Capability flags).
func (c *Cover) runSetPosition(target int) {
	if !c.caps.setPosition {
		logger.LogWarn("[COVER] %s: set_position unsupported for device_class %s", c.objectID, c.deviceClass)
		return
	}
	c.mu.Lock()
	calibrating := c.calib.mode
	c.mu.Unlock()
	if calibrating {
		return
	}
	cur := c.Position()
	if cur < 0 {
		cur = 0
	}
	diff := float64(target) - cur
	if diff == 0 {
		return
	}

	if diff > 0 {
		if err := c.move(DeviceOpen, StateOpening, StateOpen, float64(target), c.up, c.down); err != nil {
			logger.LogWarn("[COVER] %s: set_position failed: %v", c.objectID, err)
			return
		}
	} else {
		if err := c.move(DeviceClose, StateClosing, StateClosed, float64(target), c.down, c.up); err != nil {
			logger.LogWarn("[COVER] %s: set_position failed: %v", c.objectID, err)
			return
		}
	}

	runSeconds := c.coverRunTime * (absF(diff) / 100)
	time.Sleep(time.Duration(runSeconds * float64(time.Second)))
	_ = c.stopCover()
}

// runSetTilt drives the tilt mechanism only, for blind covers. Tilt moves
// are assumed much shorter than a full run (tiltChangeTime) and do not
// change the reported open/close position.
func (c *Cover) runSetTilt(target int) {
	if !c.caps.setTilt {
		logger.LogWarn("[COVER] %s: set_tilt unsupported for device_class %s", c.objectID, c.deviceClass)
		return
	}
	c.mu.Lock()
	calibrating := c.calib.mode
	c.mu.Unlock()
	if calibrating {
		return
	}
	cur := c.Tilt()
	if cur < 0 {
		cur = 0
	}
	diff := float64(target) - cur
	if diff == 0 {
		return
	}

	var drive, other features.Writable
	if diff > 0 {
		drive, other = c.up, c.down
	} else {
		drive, other = c.down, c.up
	}

	if err := other.SetState(false); err != nil {
		logger.LogWarn("[COVER] %s: failed to de-energise opposite output: %v", c.objectID, err)
	}
	if err := drive.SetState(true); err != nil {
		logger.LogWarn("[COVER] %s: set_tilt failed: %v", c.objectID, err)
		return
	}

	runSeconds := c.tiltChangeTime * (absF(diff) / 100)
	time.Sleep(time.Duration(runSeconds * float64(time.Second)))

	if err := drive.SetState(false); err != nil {
		logger.LogWarn("[COVER] %s: failed to de-energise drive output after tilt: %v", c.objectID, err)
	}

	c.mu.Lock()
	c.tilt = clamp(float64(target), 0, 100)
	c.tiltChanged = true
	c.mu.Unlock()
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// SetPosition enqueues an absolute position command, executed serially by
// the cover's worker goroutine.
func (c *Cover) SetPosition(target int) {
	cmd := command{kind: "position", value: target, done: make(chan struct{})}
	c.queue <- cmd
}

// SetTilt enqueues an absolute tilt command.
func (c *Cover) SetTilt(target int) {
	cmd := command{kind: "tilt", value: target, done: make(chan struct{})}
	c.queue <- cmd
}

// Calibrate drives the cover fully open to (re-)establish a known
// reference position, bypassing the calibration no-op guard that blocks
// every other command while calibration.mode is set. It is a no-op once
// calibration isn't pending or a run has already started; the covers
// publisher calls it every tick, and the already-scheduled stop timer
// eventually lands on StopCover to finalize it (§4.5 calibrate()).
//
// Triggered automatically on first use when no position file could be
// read (§3 Lifecycle), and can be re-triggered on demand by setting
// calibration.mode again.
func (c *Cover) Calibrate() error {
	c.mu.Lock()
	if !c.calib.mode || c.calib.started {
		c.mu.Unlock()
		return nil
	}
	c.calib.started = true
	c.mu.Unlock()

	return c.openCover(true)
}
