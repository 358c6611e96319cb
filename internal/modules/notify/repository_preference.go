package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/delordemm1/routine-notifier/internal/notification"
)

var preferenceColumns = []string{"id", "routine_id", "type", "recipient", "template_id", "enabled", "created_at", "updated_at"}

func preferenceWriteError(err error) error {
	code, constraint := pgCode(err)
	if code != pgForeignKeyViolation {
		return err
	}
	if strings.Contains(constraint, "template") {
		return ErrTemplateNotFound.WithCause(err)
	}
	return ErrRoutineNotFound.WithCause(err)
}

// UpsertPreference inserts p or replaces the existing row for the same
// routine and type, filling p.ID and timestamps from the stored row.
func (r *repository) UpsertPreference(ctx context.Context, p *Preference) error {
	now := r.now()
	query, args, err := r.psql.Insert(tablePreferences).
		Columns("routine_id", "type", "recipient", "template_id", "enabled", "created_at", "updated_at").
		Values(p.RoutineID, string(p.Type), p.Recipient, p.TemplateID, p.Enabled, now, now).
		Suffix(`ON CONFLICT (routine_id, type) DO UPDATE SET
			recipient = EXCLUDED.recipient,
			template_id = EXCLUDED.template_id,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`).
		ToSql()
	if err != nil {
		return err
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return preferenceWriteError(err)
	}
	return nil
}

// FindPreference returns ErrPreferenceNotFound when the routine has no
// preference for typ.
func (r *repository) FindPreference(ctx context.Context, routineID int64, typ notification.Channel) (*Preference, error) {
	query, args, err := r.psql.Select(preferenceColumns...).
		From(tablePreferences).
		Where(squirrel.Eq{"routine_id": routineID, "type": string(typ)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var p Preference
	if err := pgxscan.Get(ctx, r.db, &p, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPreferenceNotFound.WithCause(err)
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListPreferences(ctx context.Context, filter PreferenceFilter) ([]Preference, error) {
	q := r.psql.Select(preferenceColumns...).From(tablePreferences)
	if filter.RoutineID != nil {
		q = q.Where(squirrel.Eq{"routine_id": *filter.RoutineID})
	}
	if filter.EnabledOnly {
		q = q.Where(squirrel.Eq{"enabled": true})
	}
	query, args, err := q.OrderBy("routine_id ASC", "type ASC").ToSql()
	if err != nil {
		return nil, err
	}

	var out []Preference
	if err := pgxscan.Select(ctx, r.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return out, nil
}

// TogglePreference flips the enabled flag and returns the updated row.
func (r *repository) TogglePreference(ctx context.Context, routineID int64, typ notification.Channel) (*Preference, error) {
	query, args, err := r.psql.Update(tablePreferences).
		Set("enabled", squirrel.Expr("NOT enabled")).
		Set("updated_at", r.now()).
		Where(squirrel.Eq{"routine_id": routineID, "type": string(typ)}).
		Suffix("RETURNING " + strings.Join(preferenceColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}

	var p Preference
	if err := pgxscan.Get(ctx, r.db, &p, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPreferenceNotFound.WithCause(err)
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) DeletePreference(ctx context.Context, routineID int64, typ notification.Channel) error {
	query, args, err := r.psql.Delete(tablePreferences).
		Where(squirrel.Eq{"routine_id": routineID, "type": string(typ)}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPreferenceNotFound
	}
	return nil
}
