package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/feastline/relay-backend/pkg/enums"
	"github.com/feastline/relay-backend/pkg/types"
)

// WebhookLog is the append-only audit record of one webhook exchange, inbound
// or outbound. Rows are never mutated after creation.
type WebhookLog struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntegrationID   uuid.UUID              `gorm:"column:integration_id;type:uuid;not null"`
	EventType       string                 `gorm:"column:event_type;not null"`
	Direction       enums.WebhookDirection `gorm:"column:direction;type:webhook_direction;not null"`
	RequestPayload  types.JSONMap          `gorm:"column:request_payload;type:jsonb;serializer:json"`
	ResponsePayload types.JSONMap          `gorm:"column:response_payload;type:jsonb;serializer:json"`
	StatusCode      int                    `gorm:"column:status_code;not null"`
	DurationMS      int64                  `gorm:"column:duration_ms;not null"`
	Error           *string                `gorm:"column:error"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
}
