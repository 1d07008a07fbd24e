package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

// InsertRecordTx appends a record on an open transaction. Every mutating
// module calls this inside the same transaction as the change it describes,
// so an audit row commits if and only if the mutation does. There is no
// update or delete counterpart.
func InsertRecordTx(ctx context.Context, tx pgx.Tx, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	beforeJSON, err := json.Marshal(rec.Before)
	if err != nil {
		return err
	}
	afterJSON, err := json.Marshal(rec.After)
	if err != nil {
		return err
	}
	var occurredAt any
	if !rec.At.IsZero() {
		occurredAt = rec.At
	}
	_, err = tx.Exec(ctx, `INSERT INTO audit_records (tenant_id, entity_type, entity_id, action, actor_id, before, after, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,COALESCE($8, NOW()))`,
		rec.TenantID, rec.EntityType, rec.EntityID, rec.Action, rec.ActorID, beforeJSON, afterJSON, occurredAt)
	return err
}
