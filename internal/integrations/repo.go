package integrations

import (
	"context"

	"github.com/feastline/relay-backend/pkg/db/models"
	"github.com/feastline/relay-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes integration persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, integration *models.Integration) (*models.Integration, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Integration, error)
	FindActive(ctx context.Context, tenantID uuid.UUID, typ enums.IntegrationType, provider string) (*models.Integration, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Integration, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an integrations repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, integration *models.Integration) (*models.Integration, error) {
	if err := r.db.WithContext(ctx).Create(integration).Error; err != nil {
		return nil, err
	}
	return integration, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Integration, error) {
	var integration models.Integration
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&integration).Error
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *repository) FindActive(ctx context.Context, tenantID uuid.UUID, typ enums.IntegrationType, provider string) (*models.Integration, error) {
	var integration models.Integration
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND type = ? AND provider = ? AND active", tenantID, typ, provider).
		Order("created_at DESC").
		First(&integration).Error
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Integration, error) {
	var list []models.Integration
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Integration{}).
		Where("id = ?", id).
		Update("active", active).Error
}
