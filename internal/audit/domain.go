package audit

import (
	"errors"
	"strings"
	"time"
)

// Action enumerates audited mutation kinds.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	// ActionSystem marks scheduler-originated mutations with no human actor.
	ActionSystem Action = "SYSTEM"
)

// Record is one append-only audit trail row. Records are written in the same
// transaction as the mutation they describe and are never updated or deleted.
type Record struct {
	ID         int64
	TenantID   int64
	EntityType string
	EntityID   string
	Action     Action
	ActorID    *int64
	Before     map[string]any
	After      map[string]any
	At         time.Time
}

// ErrInvalidRecord indicates a record missing mandatory fields.
var ErrInvalidRecord = errors.New("audit: record requires tenant, entity type, entity id, and action")

// Validate ensures mandatory fields are present before the insert.
func (r Record) Validate() error {
	if r.TenantID == 0 || strings.TrimSpace(r.EntityType) == "" || strings.TrimSpace(r.EntityID) == "" || r.Action == "" {
		return ErrInvalidRecord
	}
	switch r.Action {
	case ActionCreate, ActionUpdate, ActionDelete, ActionSystem:
	default:
		return ErrInvalidRecord
	}
	return nil
}
