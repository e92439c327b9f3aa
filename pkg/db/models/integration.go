package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/feastline/relay-backend/pkg/enums"
)

// Integration is a tenant-scoped credential bundle for one external provider.
// Secret material never leaves the service unredacted.
type Integration struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      uuid.UUID             `gorm:"column:tenant_id;type:uuid;not null"`
	Provider      string                `gorm:"column:provider;not null"`
	Type          enums.IntegrationType `gorm:"column:type;type:integration_type;not null"`
	Environment   enums.Environment     `gorm:"column:environment;type:integration_environment;not null;default:'sandbox'"`
	APIKey        string                `gorm:"column:api_key;not null"`
	APISecret     string                `gorm:"column:api_secret;not null"`
	WebhookURL    *string               `gorm:"column:webhook_url"`
	WebhookSecret string                `gorm:"column:webhook_secret;not null"`
	Active        bool                  `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
