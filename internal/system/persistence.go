package system

import (
	"context"
	"time"

	coresys "github.com/l1jgo/gridmove/internal/core/system"
	"github.com/l1jgo/gridmove/internal/persist"
	"go.uber.org/zap"
)

// ViolationWriter persists a batch of rejected positions.
// *persist.ViolationRepo satisfies it.
type ViolationWriter interface {
	WriteBatch(ctx context.Context, entries []persist.Violation) error
}

// ViolationLogSystem periodically drains the violation buffer into the
// database. A failed batch is put back and retried next interval.
// Phase 4 (Persist).
type ViolationLogSystem struct {
	buf      *persist.ViolationBuffer
	repo     ViolationWriter
	log      *zap.Logger
	interval time.Duration
	acc      time.Duration
	dropped  uint64 // last reported overflow count
}

func NewViolationLogSystem(buf *persist.ViolationBuffer, repo ViolationWriter, interval time.Duration, log *zap.Logger) *ViolationLogSystem {
	return &ViolationLogSystem{buf: buf, repo: repo, log: log, interval: interval}
}

func (s *ViolationLogSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *ViolationLogSystem) Update(dt time.Duration) {
	s.acc += dt
	if s.acc < s.interval {
		return
	}
	s.acc = 0
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.Flush(ctx)
}

// Flush writes everything buffered right now. Called on shutdown as well.
func (s *ViolationLogSystem) Flush(ctx context.Context) int {
	batch := s.buf.Drain()
	if len(batch) == 0 {
		return 0
	}
	if err := s.repo.WriteBatch(ctx, batch); err != nil {
		s.buf.Requeue(batch)
		s.log.Error("違規紀錄寫入失敗", zap.Int("count", len(batch)), zap.Error(err))
		return 0
	}
	if dropped := s.buf.Dropped(); dropped > s.dropped {
		s.log.Warn("違規紀錄緩衝區溢出", zap.Uint64("dropped", dropped-s.dropped))
		s.dropped = dropped
	}
	s.log.Debug("違規紀錄已寫入", zap.Int("count", len(batch)))
	return len(batch)
}
