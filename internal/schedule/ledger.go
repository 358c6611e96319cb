package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger records which (routine, lead) pairs already fired on a given day so
// that consecutive scans inside the tolerance window do not notify twice.
type Ledger interface {
	// Claim returns true when the caller is the first to fire the pair for day.
	Claim(ctx context.Context, routineID int64, lead int, day time.Time) (bool, error)
}

const ledgerTTL = 26 * time.Hour

func ledgerKey(routineID int64, lead int, day time.Time) string {
	return fmt.Sprintf("notify:fired:%s:%d:%d", day.Format(time.DateOnly), routineID, lead)
}

// RedisLedger shares claims across every process scanning the same routines.
type RedisLedger struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisLedger(rdb redis.Cmdable) *RedisLedger {
	return &RedisLedger{rdb: rdb, ttl: ledgerTTL}
}

func (l *RedisLedger) Claim(ctx context.Context, routineID int64, lead int, day time.Time) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, ledgerKey(routineID, lead, day), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ledger claim: %w", err)
	}
	return ok, nil
}

// MemoryLedger is the single-process fallback used when Redis is not configured.
// Claims are forgotten when the calendar day changes.
type MemoryLedger struct {
	mu      sync.Mutex
	day     string
	claimed map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{claimed: make(map[string]struct{})}
}

func (l *MemoryLedger) Claim(_ context.Context, routineID int64, lead int, day time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if d := day.Format(time.DateOnly); d != l.day {
		l.day = d
		l.claimed = make(map[string]struct{})
	}
	key := ledgerKey(routineID, lead, day)
	if _, ok := l.claimed[key]; ok {
		return false, nil
	}
	l.claimed[key] = struct{}{}
	return true, nil
}
