package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feastline/relay-backend/pkg/db/models"
	"github.com/feastline/relay-backend/pkg/enums"
)

var forUpdateClause = clause.Locking{Strength: "UPDATE"}

// Repository exposes delivery persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindByProviderRef(ctx context.Context, provider enums.Provider, providerDeliveryID string) (*models.Delivery, error)
	FindByProviderRefForUpdate(ctx context.Context, provider enums.Provider, providerDeliveryID string) (*models.Delivery, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Delivery, error)
	ListActive(ctx context.Context, limit int) ([]models.Delivery, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DeliveryStatus, trackingURL string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a deliveries repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	if err := r.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Clauses(forUpdateClause).
		Where("id = ?", id).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindByProviderRef(ctx context.Context, provider enums.Provider, providerDeliveryID string) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_delivery_id = ?", provider, providerDeliveryID).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// FindByProviderRefForUpdate locks the delivery row so concurrent status
// updates from the same provider serialize.
func (r *repository) FindByProviderRefForUpdate(ctx context.Context, provider enums.Provider, providerDeliveryID string) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Clauses(forUpdateClause).
		Where("provider = ? AND provider_delivery_id = ?", provider, providerDeliveryID).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// FindActiveByOrder returns the order's current non-canceled delivery.
func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status <> ?", orderID, enums.DeliveryStatusCanceled).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Delivery, error) {
	var list []models.Delivery
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListActive returns deliveries that have not reached a terminal state,
// newest first. Backs the dashboard map view.
func (r *repository) ListActive(ctx context.Context, limit int) ([]models.Delivery, error) {
	var list []models.Delivery
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []enums.DeliveryStatus{enums.DeliveryStatusDelivered, enums.DeliveryStatusCanceled}).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DeliveryStatus, trackingURL string) error {
	updates := map[string]any{"status": status}
	if trackingURL != "" {
		updates["tracking_url"] = trackingURL
	}
	now := time.Now().UTC()
	switch status {
	case enums.DeliveryStatusDelivered:
		updates["delivered_at"] = &now
	case enums.DeliveryStatusCanceled:
		updates["canceled_at"] = &now
	}
	return r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ?", id).
		Updates(updates).Error
}
