package controllers

import (
	"net/http"

	"github.com/feastline/relay-backend/api/responses"
	"github.com/feastline/relay-backend/api/validators"
	"github.com/feastline/relay-backend/internal/webhooklogs"
	"github.com/feastline/relay-backend/pkg/logger"
	"github.com/feastline/relay-backend/pkg/pagination"
)

// WebhookLogList pages through an integration's webhook audit trail, newest
// first.
func WebhookLogList(svc *webhooklogs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		integrationID, err := validators.ParseUUIDParam(r, "integrationId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.List(ctx, integrationID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"logs":        page.Logs,
			"next_cursor": page.NextCursor,
		})
	}
}
