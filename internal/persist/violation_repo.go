package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Violation is one validator rejection, kept for anti-cheat review.
type Violation struct {
	EntityID     uint64
	SessionID    uint64
	Reason       string
	PriorX       int32
	PriorY       int32
	ClaimedX     int32
	ClaimedY     int32
	Distance     int32
	Allowed      float64
	Elapsed      float64
	Action       string
	ServerUptime float64
}

type ViolationRepo struct {
	db *DB
}

func NewViolationRepo(db *DB) *ViolationRepo {
	return &ViolationRepo{db: db}
}

// WriteBatch inserts a batch of violations in a single transaction.
func (r *ViolationRepo) WriteBatch(ctx context.Context, entries []Violation) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("violation begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, v := range entries {
		batch.Queue(
			`INSERT INTO movement_violations
			   (entity_id, session_id, reason, prior_x, prior_y, claimed_x, claimed_y,
			    distance, allowed, elapsed, action, server_uptime)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			int64(v.EntityID), int64(v.SessionID), v.Reason, v.PriorX, v.PriorY, v.ClaimedX, v.ClaimedY,
			v.Distance, v.Allowed, v.Elapsed, v.Action, v.ServerUptime,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("violation insert: %w", err)
	}

	return tx.Commit(ctx)
}

// CountSince returns how many violations an entity has on record since t.
func (r *ViolationRepo) CountSince(ctx context.Context, entityID uint64, t time.Time) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM movement_violations WHERE entity_id = $1 AND created_at >= $2`,
		int64(entityID), t,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("violation count: %w", err)
	}
	return n, nil
}

// PruneBefore deletes audit rows older than t.
func (r *ViolationRepo) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM movement_violations WHERE created_at < $1`, t)
	if err != nil {
		return 0, fmt.Errorf("violation prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ViolationBuffer collects rejections from connection goroutines until the
// log system flushes them. Bounded: once full the oldest entries are dropped.
type ViolationBuffer struct {
	mu      sync.Mutex
	entries []Violation
	limit   int
	dropped uint64
}

func NewViolationBuffer(limit int) *ViolationBuffer {
	if limit <= 0 {
		limit = 4096
	}
	return &ViolationBuffer{limit: limit}
}

func (b *ViolationBuffer) Add(v Violation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) >= b.limit {
		n := len(b.entries) - b.limit + 1
		b.entries = append(b.entries[:0], b.entries[n:]...)
		b.dropped += uint64(n)
	}
	b.entries = append(b.entries, v)
}

// Drain takes everything buffered so far.
func (b *ViolationBuffer) Drain() []Violation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.entries
	b.entries = nil
	return out
}

// Requeue puts a failed batch back in front of anything added since.
func (b *ViolationBuffer) Requeue(batch []Violation) {
	if len(batch) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	merged := make([]Violation, 0, len(batch)+len(b.entries))
	merged = append(append(merged, batch...), b.entries...)
	if n := len(merged) - b.limit; n > 0 {
		merged = merged[n:]
		b.dropped += uint64(n)
	}
	b.entries = merged
}

func (b *ViolationBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Dropped returns how many entries were discarded because the buffer was full.
func (b *ViolationBuffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
