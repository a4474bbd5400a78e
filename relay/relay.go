// Package relay implements the protection relay's state machine: a
// cooldown-gated SetState, a cooldown-bypassing EmergencyCutoff, and
// fail-safe-to-OFF semantics, grounded on original_source/relay_control.c.
package relay

import (
	"time"

	"ampshield.dev/amperr"
	"ampshield.dev/anomaly"
	"ampshield.dev/config"
	"ampshield.dev/internal/clock"
)

// State is one of the relay's three states.
type State int

const (
	StateOff State = iota
	StateOn
	StateTripped
)

func (s State) String() string {
	switch s {
	case StateOn:
		return "ON"
	case StateTripped:
		return "TRIPPED"
	default:
		return "OFF"
	}
}

// Actuator is the minimal contract relay needs from the GPIO driver:
// one boolean level to energize or de-energize the coil.
// driver/relaygpio.Relay satisfies it.
type Actuator interface {
	SetLevel(on bool) error
}

// Context holds the relay's live state, mirroring relay_context_t. All
// access goes through Controller, which serializes it with a timed
// mutex.
type Context struct {
	State           State
	LastToggleMS    int64
	AutoResetEnabled bool
	TripCount       uint32
	LastTripReason  anomaly.Kind
}

// Controller owns one relay's Context and its GPIO actuator. Exclusive
// access is mediated by a 1-buffered channel used as a timed mutex,
// the same idiom buffer.SampleBuffer uses, grounded on
// mjolnir.Engrave's writeMut pattern.
type Controller struct {
	sem      chan struct{}
	actuator Actuator
	cooldown time.Duration
	lockWait time.Duration
	ctx      Context
}

// New creates a Controller, driving the relay to its fail-safe OFF
// state immediately. actuator must already be initialized (its own
// Open call already drove the inactive level); New additionally
// records that as the Context's starting state.
func New(cfg config.Config, actuator Actuator) (*Controller, error) {
	c := &Controller{
		sem:      make(chan struct{}, 1),
		actuator: actuator,
		cooldown: cfg.RelayCooldown,
		lockWait: cfg.RelayLockTimeout,
	}
	c.sem <- struct{}{}

	if err := actuator.SetLevel(false); err != nil {
		return nil, err
	}
	c.ctx.State = StateOff
	c.ctx.LastToggleMS = clock.NowMillis()
	c.ctx.AutoResetEnabled = cfg.AutoResetEnabled
	return c, nil
}

func (c *Controller) acquire() bool {
	select {
	case <-c.sem:
		return true
	case <-time.After(c.lockWait):
		return false
	}
}

func (c *Controller) release() {
	c.sem <- struct{}{}
}

// CanToggle reports whether the cooldown period has elapsed since the
// last state change. Must be called with the lock held by the caller
// in canToggleLocked; this exported form acquires it itself.
func (c *Controller) CanToggle() bool {
	if !c.acquire() {
		// Mirrors the reference's "can't get mutex" fallback: report
		// the more conservative answer rather than block the caller.
		return false
	}
	defer c.release()
	return c.canToggleLocked()
}

func (c *Controller) canToggleLocked() bool {
	elapsed := clock.NowMillis() - c.ctx.LastToggleMS
	return elapsed >= c.cooldown.Milliseconds()
}

// SetState requests a transition to newState, refused with
// amperr.ErrTimeout if the lock cannot be acquired within
// RelayLockTimeout, and refused with amperr.ErrInvalidArgument if the
// cooldown has not elapsed and neither the current nor the requested
// state is StateTripped.
func (c *Controller) SetState(newState State) error {
	if !c.acquire() {
		return amperr.ErrTimeout
	}
	defer c.release()

	if c.ctx.State != StateTripped && newState != StateTripped {
		if !c.canToggleLocked() {
			return amperr.ErrInvalidArgument
		}
	}

	if err := c.actuator.SetLevel(newState == StateOn); err != nil {
		return err
	}
	c.ctx.State = newState
	c.ctx.LastToggleMS = clock.NowMillis()
	return nil
}

// EmergencyCutoff immediately de-energizes the relay and transitions
// to StateTripped, bypassing the cooldown check entirely, per
// relay_emergency_cutoff.
func (c *Controller) EmergencyCutoff(reason anomaly.Kind) error {
	if !c.acquire() {
		return amperr.ErrTimeout
	}
	defer c.release()

	if err := c.actuator.SetLevel(false); err != nil {
		return err
	}
	c.ctx.State = StateTripped
	c.ctx.LastToggleMS = clock.NowMillis()
	c.ctx.TripCount++
	c.ctx.LastTripReason = reason
	return nil
}

// GetState returns the current relay state. If the lock cannot be
// acquired within RelayLockTimeout it returns the last-read state
// rather than blocking or erroring, matching relay_get_state's
// fallback behavior; callers cannot distinguish this from a
// successful read, which is intentional: a stale-but-recent state is
// preferable to blocking the caller on a contended relay.
func (c *Controller) GetState() State {
	if !c.acquire() {
		return c.ctx.State
	}
	defer c.release()
	return c.ctx.State
}

// GetTripCount returns the number of times EmergencyCutoff has fired.
func (c *Controller) GetTripCount() uint32 {
	if !c.acquire() {
		return c.ctx.TripCount
	}
	defer c.release()
	return c.ctx.TripCount
}

// ResetTripCount zeroes the trip counter, an administrative operation.
func (c *Controller) ResetTripCount() error {
	if !c.acquire() {
		return amperr.ErrTimeout
	}
	defer c.release()
	c.ctx.TripCount = 0
	return nil
}

// LastTripReason returns the anomaly.Kind that caused the most recent
// EmergencyCutoff.
func (c *Controller) LastTripReason() anomaly.Kind {
	if !c.acquire() {
		return c.ctx.LastTripReason
	}
	defer c.release()
	return c.ctx.LastTripReason
}
