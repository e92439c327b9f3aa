package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/feastline/relay-backend/pkg/enums"
)

// Order is the canonical, platform-agnostic order created from an inbound
// e-commerce webhook. Orders are never deleted; cancellation is a status.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID        uuid.UUID         `gorm:"column:tenant_id;type:uuid;not null"`
	Platform        enums.Platform    `gorm:"column:platform;type:text;not null"`
	ExternalOrderID string            `gorm:"column:external_order_id;not null"`
	CustomerName    string            `gorm:"column:customer_name;not null"`
	CustomerEmail   *string           `gorm:"column:customer_email"`
	CustomerPhone   *string           `gorm:"column:customer_phone"`
	CustomerAddress string            `gorm:"column:customer_address;not null"`
	SubtotalCents   int               `gorm:"column:subtotal_cents;not null"`
	TotalCents      int               `gorm:"column:total_cents;not null"`
	Currency        enums.Currency    `gorm:"column:currency;type:text;not null;default:'USD'"`
	Notes           *string           `gorm:"column:notes"`
	Status          enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'received'"`
	Items           []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Deliveries      []Delivery        `gorm:"foreignKey:OrderID"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
