package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/db"
)

var activityColumns = []string{
	"a.id", "a.user_id", "a.action", "a.entity_type", "a.entity_id", "a.metadata",
	"a.ip_address", "a.user_agent", "a.created_at", "COALESCE(u.first_name || ' ' || u.last_name, '')",
}

// ActivityRepository appends to and queries activity_logs.
type ActivityRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

func NewActivityRepository(conn db.DBTX) *ActivityRepository {
	return &ActivityRepository{db: conn, sb: psql}
}

// Create appends an entry.
func (r *ActivityRepository) Create(ctx context.Context, a *models.ActivityLog) error {
	meta := a.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode activity metadata: %w", err)
	}
	sql, args, err := r.sb.Insert("activity_logs").
		Columns("user_id", "action", "entity_type", "entity_id", "metadata", "ip_address", "user_agent").
		Values(a.UserID, a.Action, a.EntityType, a.EntityID, string(raw), a.IPAddress, a.UserAgent).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create activity query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("error creating activity log: %w", err)
	}
	return nil
}

// ApplyActivityFilter adds the WHERE clauses for f. Free-text search matches
// action and entity type case-insensitively.
func ApplyActivityFilter(q squirrel.SelectBuilder, f models.ActivityFilter) squirrel.SelectBuilder {
	if f.UserID != nil {
		q = q.Where(squirrel.Eq{"a.user_id": *f.UserID})
	}
	if f.Action != "" {
		q = q.Where(squirrel.Eq{"a.action": f.Action})
	}
	if f.EntityType != "" {
		q = q.Where(squirrel.Eq{"a.entity_type": f.EntityType})
	}
	if f.EntityID != nil {
		q = q.Where(squirrel.Eq{"a.entity_id": *f.EntityID})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"a.created_at": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.Lt{"a.created_at": *f.To})
	}
	if f.Search != "" {
		pattern := "%" + likeEscaper.Replace(f.Search) + "%"
		q = q.Where(`(a.action ILIKE ? ESCAPE '\' OR a.entity_type ILIKE ? ESCAPE '\')`, pattern, pattern)
	}
	return q
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// BuildListQuery returns the page query for f, newest first.
func (r *ActivityRepository) BuildListQuery(f models.ActivityFilter, offset, limit uint64) squirrel.SelectBuilder {
	q := r.sb.Select(activityColumns...).
		From("activity_logs a").
		LeftJoin("users u ON u.id = a.user_id")
	q = ApplyActivityFilter(q, f).OrderBy("a.created_at DESC", "a.id DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	return q
}

// List returns one page of matching entries and the total count.
func (r *ActivityRepository) List(ctx context.Context, f models.ActivityFilter, offset, limit uint64) ([]models.ActivityLog, int64, error) {
	countSQL, countArgs, err := ApplyActivityFilter(r.sb.Select("COUNT(*)").From("activity_logs a"), f).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count activity query: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting activity logs: %w", err)
	}

	logs, err := r.query(ctx, r.BuildListQuery(f, offset, limit))
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// Recent returns the newest entries.
func (r *ActivityRepository) Recent(ctx context.Context, limit uint64) ([]models.ActivityLog, error) {
	return r.query(ctx, r.BuildListQuery(models.ActivityFilter{}, 0, limit))
}

// ByEntity returns the history of one entity, newest first.
func (r *ActivityRepository) ByEntity(ctx context.Context, entityType string, entityID int64, limit uint64) ([]models.ActivityLog, error) {
	return r.query(ctx, r.BuildListQuery(models.ActivityFilter{EntityType: entityType, EntityID: &entityID}, 0, limit))
}

func (r *ActivityRepository) query(ctx context.Context, q squirrel.SelectBuilder) ([]models.ActivityLog, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build activity query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying activity logs: %w", err)
	}
	defer rows.Close()

	out := make([]models.ActivityLog, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning activity log: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanActivity(row pgx.Row) (*models.ActivityLog, error) {
	a := &models.ActivityLog{}
	var meta []byte
	if err := row.Scan(&a.ID, &a.UserID, &a.Action, &a.EntityType, &a.EntityID, &meta,
		&a.IPAddress, &a.UserAgent, &a.CreatedAt, &a.UserName); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return nil, fmt.Errorf("malformed activity metadata: %w", err)
		}
	}
	return a, nil
}

// CountByAction counts entries per action since the given time, most
// frequent first.
func (r *ActivityRepository) CountByAction(ctx context.Context, since time.Time, limit uint64) ([]models.ActionCount, error) {
	sql, args, err := r.sb.Select("action", "COUNT(*)").
		From("activity_logs").
		Where(squirrel.GtOrEq{"created_at": since}).
		GroupBy("action").
		OrderBy("COUNT(*) DESC", "action").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build activity summary query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error summarising activity: %w", err)
	}
	defer rows.Close()

	out := make([]models.ActionCount, 0)
	for rows.Next() {
		var c models.ActionCount
		if err := rows.Scan(&c.Action, &c.Count); err != nil {
			return nil, fmt.Errorf("error scanning activity summary: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes entries created before cutoff.
func (r *ActivityRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM activity_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error pruning activity logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
