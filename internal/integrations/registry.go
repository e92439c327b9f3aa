package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/feastline/relay-backend/pkg/db/models"
	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
	"github.com/feastline/relay-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// cacheStore is the minimal Redis surface the registry reads through.
type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IntegrationCacheKey(id string) string
}

// Registry resolves tenant credentials for dispatch. Reads go through a short
// lived Redis cache so every webhook does not hit Postgres.
type Registry struct {
	repo     Repository
	cache    cacheStore
	cacheTTL time.Duration
	logg     *logger.Logger
}

// RegistryParams carries the registry dependencies.
type RegistryParams struct {
	Repo     Repository
	Cache    cacheStore
	CacheTTL time.Duration
	Logger   *logger.Logger
}

// NewRegistry builds the credential registry.
func NewRegistry(params RegistryParams) (*Registry, error) {
	if params.Repo == nil {
		return nil, errors.New("integrations repository required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Registry{
		repo:     params.Repo,
		cache:    params.Cache,
		cacheTTL: ttl,
		logg:     params.Logger,
	}, nil
}

// ResolveByID returns the active integration with the given id.
func (r *Registry) ResolveByID(ctx context.Context, id uuid.UUID) (*models.Integration, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "integration id required")
	}

	if cached := r.fromCache(ctx, id); cached != nil {
		return r.checkActive(cached)
	}

	integration, err := r.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeIntegrationNotFound, "integration not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load integration")
	}

	r.toCache(ctx, integration)
	return r.checkActive(integration)
}

// Resolve returns the newest active integration matching tenant, type, and provider.
func (r *Registry) Resolve(ctx context.Context, tenantID uuid.UUID, typ enums.IntegrationType, provider string) (*models.Integration, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if !typ.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "integration type invalid")
	}

	integration, err := r.repo.FindActive(ctx, tenantID, typ, provider)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeIntegrationNotFound, "no active integration for tenant")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load integration")
	}

	r.toCache(ctx, integration)
	return integration, nil
}

// Invalidate drops an integration from the cache after rotation or deactivation.
func (r *Registry) Invalidate(ctx context.Context, id uuid.UUID) {
	if r.cache == nil || id == uuid.Nil {
		return
	}
	if err := r.cache.Del(ctx, r.cache.IntegrationCacheKey(id.String())); err != nil && r.logg != nil {
		r.logg.Warn(ctx, "integration cache invalidation failed")
	}
}

func (r *Registry) checkActive(integration *models.Integration) (*models.Integration, error) {
	if !integration.Active {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrationInactive, "integration is deactivated")
	}
	return integration, nil
}

func (r *Registry) fromCache(ctx context.Context, id uuid.UUID) *models.Integration {
	if r.cache == nil {
		return nil
	}
	raw, err := r.cache.Get(ctx, r.cache.IntegrationCacheKey(id.String()))
	if err != nil || raw == "" {
		return nil
	}
	var integration models.Integration
	if err := json.Unmarshal([]byte(raw), &integration); err != nil {
		return nil
	}
	return &integration
}

func (r *Registry) toCache(ctx context.Context, integration *models.Integration) {
	if r.cache == nil || integration == nil {
		return
	}
	raw, err := json.Marshal(integration)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, r.cache.IntegrationCacheKey(integration.ID.String()), string(raw), r.cacheTTL); err != nil && r.logg != nil {
		r.logg.Warn(ctx, "integration cache write failed")
	}
}
