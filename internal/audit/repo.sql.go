package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLRepository reads audit records from PostgreSQL.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs SQLRepository.
func NewRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// ListRecords returns filtered records ordered newest first. A zero limit
// disables paging.
func (r *SQLRepository) ListRecords(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Record, error) {
	var (
		clauses = []string{"tenant_id = $1"}
		args    = []any{filters.TenantID}
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at <= $%d", filters.To)
	}
	if strings.TrimSpace(filters.EntityType) != "" {
		add("entity_type = $%d", strings.TrimSpace(filters.EntityType))
	}
	if strings.TrimSpace(filters.Action) != "" {
		add("action = $%d", strings.TrimSpace(filters.Action))
	}
	if filters.ActorID != 0 {
		add("actor_id = $%d", filters.ActorID)
	}

	query := `SELECT id, tenant_id, entity_type, entity_id, action, actor_id, before, after, occurred_at
FROM audit_records WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY occurred_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			rec        Record
			beforeJSON []byte
			afterJSON  []byte
		)
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.EntityType, &rec.EntityID, &rec.Action, &rec.ActorID, &beforeJSON, &afterJSON, &rec.At); err != nil {
			return nil, err
		}
		if len(beforeJSON) > 0 {
			_ = json.Unmarshal(beforeJSON, &rec.Before)
		}
		if len(afterJSON) > 0 {
			_ = json.Unmarshal(afterJSON, &rec.After)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
