package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput    Phase = iota // 0: session lifecycle from the gateway
	PhaseMovement              // 1: advance queued paths, emit move commands
	PhaseEvents                // 2: deliver last tick's events
	PhaseAI                    // 3: patrol controller
	PhasePersist               // 4: violation log flush
	PhaseCleanup               // 5: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseMovement:
		return "movement"
	case PhaseEvents:
		return "events"
	case PhaseAI:
		return "ai"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every scheduled system implements.
// dt is the measured wall time since the previous tick.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
