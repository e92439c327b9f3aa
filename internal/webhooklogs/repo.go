package webhooklogs

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/feastline/relay-backend/pkg/db/models"
	"github.com/feastline/relay-backend/pkg/pagination"
)

// Repository exposes append-only webhook log persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, record *models.WebhookLog) (*models.WebhookLog, error)
	ListByIntegration(ctx context.Context, integrationID uuid.UUID, params pagination.Params) ([]models.WebhookLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a webhook log repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, record *models.WebhookLog) (*models.WebhookLog, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// ListByIntegration pages through logs newest-first. The returned slice may
// contain one extra row past the requested limit for next-page detection.
func (r *repository) ListByIntegration(ctx context.Context, integrationID uuid.UUID, params pagination.Params) ([]models.WebhookLog, error) {
	query := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var list []models.WebhookLog
	if err := query.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
