package consumer

import "context"

// DebeziumUserRecord is the part of a users row this service reads.
type DebeziumUserRecord struct {
	ID        string  `json:"id"`
	DeletedAt *string `json:"deleted_at"` // nil = active, non-nil = soft-deleted
}

// DebeziumPayload is the payload field of a Debezium CDC message.
type DebeziumPayload struct {
	Before *DebeziumUserRecord `json:"before"`
	After  *DebeziumUserRecord `json:"after"`
	Op     string              `json:"op"` // "c"=create, "u"=update, "d"=delete, "r"=snapshot
	TsMs   int64               `json:"ts_ms"`
}

// DebeziumMessage is the top-level Debezium CDC message envelope.
type DebeziumMessage struct {
	Payload DebeziumPayload `json:"payload"`
}

// RemovedUserID returns the id of the account this event deletes, if any.
// A hard delete and the update that first sets deleted_at both count.
func (m *DebeziumMessage) RemovedUserID() (string, bool) {
	p := m.Payload
	switch p.Op {
	case "d":
		if p.Before != nil && p.Before.ID != "" {
			return p.Before.ID, true
		}
	case "u":
		if p.After == nil || p.After.ID == "" || p.After.DeletedAt == nil {
			return "", false
		}
		if p.Before == nil || p.Before.DeletedAt == nil {
			return p.After.ID, true
		}
	}
	return "", false
}

// ActorRemovalHandler applies an account deletion.
type ActorRemovalHandler interface {
	HandleActorRemoved(ctx context.Context, userID string) error
}

// UserEventConsumer manages the Kafka consumer lifecycle.
type UserEventConsumer interface {
	Start(ctx context.Context) error
	Close() error
}
