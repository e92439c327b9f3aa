package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/feastline/relay-backend/pkg/enums"
	"github.com/feastline/relay-backend/pkg/types"
)

// Delivery is the provider-side shipment created for an order. An order has at
// most one non-canceled delivery at a time (enforced by a partial unique
// index); re-dispatch after cancellation creates a new row.
type Delivery struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	IntegrationID      uuid.UUID            `gorm:"column:integration_id;type:uuid;not null"`
	Provider           enums.Provider       `gorm:"column:provider;type:text;not null"`
	ProviderDeliveryID string               `gorm:"column:provider_delivery_id;not null"`
	Status             enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'created'"`
	Pickup             types.Waypoint       `gorm:"column:pickup;type:jsonb;serializer:json"`
	Dropoff            types.Waypoint       `gorm:"column:dropoff;type:jsonb;serializer:json"`
	TrackingURL        string               `gorm:"column:tracking_url;not null"`
	FeeCents           int                  `gorm:"column:fee_cents;not null"`
	Currency           enums.Currency       `gorm:"column:currency;type:text;not null;default:'USD'"`
	CanceledAt         *time.Time           `gorm:"column:canceled_at"`
	DeliveredAt        *time.Time           `gorm:"column:delivered_at"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
