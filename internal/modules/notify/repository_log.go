package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
)

var logColumns = []string{"id", "routine_id", "type", "recipient", "subject", "body", "status", "error", "sent_at", "created_at"}

// CreateLog inserts l, always as pending.
func (r *repository) CreateLog(ctx context.Context, l *Log) error {
	l.Status = LogStatusPending
	l.CreatedAt = r.now()

	query, args, err := r.psql.Insert(tableLogs).
		Columns("routine_id", "type", "recipient", "subject", "body", "status", "created_at").
		Values(l.RoutineID, string(l.Type), l.Recipient, l.Subject, l.Body, string(l.Status), l.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&l.ID); err != nil {
		return fmt.Errorf("create notification log: %w", err)
	}
	return nil
}

// finish moves a pending log to its terminal status. Logs that already left
// pending are not touched.
func (r *repository) finish(ctx context.Context, id int64, set map[string]any) error {
	query, args, err := r.psql.Update(tableLogs).
		SetMap(set).
		Where(squirrel.Eq{"id": id, "status": string(LogStatusPending)}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update notification log %d: %w", id, err)
	}
	return nil
}

func (r *repository) MarkLogSent(ctx context.Context, id int64, at time.Time) error {
	return r.finish(ctx, id, map[string]any{"status": string(LogStatusSent), "sent_at": at})
}

func (r *repository) MarkLogFailed(ctx context.Context, id int64, reason string) error {
	return r.finish(ctx, id, map[string]any{"status": string(LogStatusFailed), "error": reason})
}

// ListLogs returns the newest logs first.
func (r *repository) ListLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}

	q := r.psql.Select(logColumns...).From(tableLogs)
	if filter.RoutineID != nil {
		q = q.Where(squirrel.Eq{"routine_id": *filter.RoutineID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": string(*filter.Status)})
	}
	query, args, err := q.OrderBy("created_at DESC", "id DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, err
	}

	var out []Log
	if err := pgxscan.Select(ctx, r.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list notification logs: %w", err)
	}
	return out, nil
}
