package routine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/delordemm1/routine-notifier/internal/database"
)

// Repository reads routines. Routine editing lives outside this service.
type Repository interface {
	List(ctx context.Context) ([]Routine, error)
	FindByID(ctx context.Context, id int64) (*Routine, error)
	FindByIDs(ctx context.Context, ids []int64) ([]Routine, error)
}

type repository struct {
	db   database.DBTX
	psql squirrel.StatementBuilderType
}

// NewRepository creates a new routine repository with the given database connection.
func NewRepository(db database.DBTX) Repository {
	return &repository{
		db:   db,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var columns = []string{"id", "name", "start_time", "end_time", "strict", "notify_before", "created_at", "updated_at"}

// List returns every routine ordered by start time.
func (r *repository) List(ctx context.Context) ([]Routine, error) {
	query, args, err := r.psql.Select(columns...).
		From("routines").
		OrderBy("start_time ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	var out []Routine
	if err := pgxscan.Select(ctx, r.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	return out, nil
}

// FindByID returns ErrNotFound if no routine has id.
func (r *repository) FindByID(ctx context.Context, id int64) (*Routine, error) {
	query, args, err := r.psql.Select(columns...).
		From("routines").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rt Routine
	if err := pgxscan.Get(ctx, r.db, &rt, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find routine %d: %w", id, err)
	}
	return &rt, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []int64) ([]Routine, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := r.psql.Select(columns...).
		From("routines").
		Where(squirrel.Eq{"id": ids}).
		OrderBy("start_time ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	var out []Routine
	if err := pgxscan.Select(ctx, r.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("find routines: %w", err)
	}
	return out, nil
}
