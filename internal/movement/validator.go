package movement

import (
	"time"

	"github.com/l1jgo/gridmove/internal/grid"
)

// RejectReason says why a client-reported position was refused.
type RejectReason uint8

const (
	ReasonNone RejectReason = iota
	ReasonUnwalkableTile
	ReasonSpeedHack
	ReasonTeleportDetected
)

func (r RejectReason) String() string {
	switch r {
	case ReasonUnwalkableTile:
		return "UnwalkableTile"
	case ReasonSpeedHack:
		return "SpeedHack"
	case ReasonTeleportDetected:
		return "TeleportDetected"
	}
	return "None"
}

// Tolerances are the anti-cheat knobs, all configuration driven.
type Tolerances struct {
	SpeedMultiplier   float64       // allowed overspeed factor
	GracePeriod       time.Duration // scheduling jitter window
	TeleportThreshold time.Duration // multi-tile jumps faster than this are teleports
}

func DefaultTolerances() Tolerances {
	return Tolerances{
		SpeedMultiplier:   1.5,
		GracePeriod:       100 * time.Millisecond,
		TeleportThreshold: 500 * time.Millisecond,
	}
}

// Verdict is the outcome of Validate. Distance and Allowed are filled in for
// logging regardless of the outcome.
type Verdict struct {
	Accepted bool
	Reason   RejectReason
	Distance int32
	Allowed  float64 // tiles permitted by the speed rule
}

// Validator judges claimed displacements in client-reported mode.
// Stateless apart from its configuration.
type Validator struct {
	oracle grid.Oracle
	tol    Tolerances
}

func NewValidator(oracle grid.Oracle, tol Tolerances) *Validator {
	return &Validator{oracle: oracle, tol: tol}
}

func (v *Validator) Tolerances() Tolerances { return v.tol }

// Validate applies, in order: walkability, speed, teleport. The first
// failing rule wins.
//
// Speed rule: allowed = speed × multiplier × elapsed. Inside the grace
// window the allowance never drops below one tile, so a single step that
// arrives early because of jitter passes while a multi-tile burst does not.
func (v *Validator) Validate(prior State, claimed grid.Cell, elapsedSeconds float64) Verdict {
	dist := grid.Manhattan(prior.Current, claimed)
	allowed := prior.Speed * v.tol.SpeedMultiplier * elapsedSeconds
	if elapsedSeconds <= v.tol.GracePeriod.Seconds() && allowed < 1 {
		allowed = 1
	}
	verdict := Verdict{Distance: dist, Allowed: allowed}

	switch {
	case !v.oracle.IsWalkable(claimed):
		verdict.Reason = ReasonUnwalkableTile
	case float64(dist) > allowed:
		verdict.Reason = ReasonSpeedHack
	case dist > 1 && elapsedSeconds < v.tol.TeleportThreshold.Seconds():
		verdict.Reason = ReasonTeleportDetected
	default:
		verdict.Accepted = true
	}
	return verdict
}
