package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/feastline/relay-backend/api/responses"
	"github.com/feastline/relay-backend/api/validators"
	"github.com/feastline/relay-backend/internal/integrations"
	"github.com/feastline/relay-backend/pkg/db"
	"github.com/feastline/relay-backend/pkg/db/models"
	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
	"github.com/feastline/relay-backend/pkg/logger"
)

type createIntegrationRequest struct {
	TenantID      string  `json:"tenant_id" validate:"required,uuid"`
	Provider      string  `json:"provider" validate:"required"`
	Type          string  `json:"type" validate:"required,oneof=delivery ecommerce pos"`
	Environment   string  `json:"environment" validate:"required,oneof=sandbox live"`
	APIKey        string  `json:"api_key" validate:"required"`
	APISecret     string  `json:"api_secret" validate:"required"`
	WebhookURL    *string `json:"webhook_url"`
	WebhookSecret string  `json:"webhook_secret" validate:"required"`
}

// IntegrationCreate registers a tenant's credential bundle for one provider.
// Responses never echo secret material back.
func IntegrationCreate(repo integrations.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body createIntegrationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		typ, err := enums.ParseIntegrationType(body.Type)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid integration type"))
			return
		}
		environment, err := enums.ParseEnvironment(body.Environment)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid environment"))
			return
		}
		if typ == enums.IntegrationTypeDelivery {
			if _, err := enums.ParseProvider(body.Provider); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unsupported delivery provider"))
				return
			}
		}

		integration := &models.Integration{
			TenantID:      uuid.MustParse(body.TenantID),
			Provider:      body.Provider,
			Type:          typ,
			Environment:   environment,
			APIKey:        body.APIKey,
			APISecret:     body.APISecret,
			WebhookURL:    body.WebhookURL,
			WebhookSecret: body.WebhookSecret,
			Active:        true,
		}
		if _, err := repo.Create(ctx, integration); err != nil {
			if db.IsUniqueViolation(err, "") {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "integration already exists"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist integration"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, integrations.ToPublicView(integration))
	}
}

// IntegrationList returns the tenant's integrations without secrets.
func IntegrationList(repo integrations.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tenantID, err := uuid.Parse(r.URL.Query().Get("tenant_id"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "tenant_id query parameter required").
				WithDetails(map[string]any{"field": "tenant_id"}))
			return
		}

		list, err := repo.ListByTenant(ctx, tenantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list integrations"))
			return
		}
		views := make([]integrations.PublicView, 0, len(list))
		for i := range list {
			views = append(views, integrations.ToPublicView(&list[i]))
		}
		responses.WriteSuccess(w, views)
	}
}

// IntegrationSetActive toggles the active flag and drops the registry cache.
func IntegrationSetActive(repo integrations.Repository, registry *integrations.Registry, active bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		integrationID, err := validators.ParseUUIDParam(r, "integrationId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := repo.SetActive(ctx, integrationID, active); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update integration"))
			return
		}
		registry.Invalidate(ctx, integrationID)
		responses.WriteSuccess(w, map[string]any{"id": integrationID.String(), "active": active})
	}
}
