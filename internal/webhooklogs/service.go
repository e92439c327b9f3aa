package webhooklogs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/feastline/relay-backend/internal/integrations"
	"github.com/feastline/relay-backend/pkg/db/models"
	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
	"github.com/feastline/relay-backend/pkg/logger"
	"github.com/feastline/relay-backend/pkg/pagination"
	"github.com/feastline/relay-backend/pkg/types"
)

const recordTimeout = 5 * time.Second

// Entry is one webhook exchange to record.
type Entry struct {
	IntegrationID   uuid.UUID
	EventType       string
	Direction       enums.WebhookDirection
	RequestPayload  types.JSONMap
	ResponsePayload types.JSONMap
	StatusCode      int
	Duration        time.Duration
	Err             error
}

// Page is one page of webhook logs with the cursor for the next one.
type Page struct {
	Logs       []models.WebhookLog
	NextCursor string
}

// Service records and reads webhook logs. Writes never fail the caller: the
// triggering operation's outcome must not depend on audit persistence.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// Params carries the service dependencies.
type Params struct {
	Repo   Repository
	Logger *logger.Logger
}

// NewService validates dependencies and builds the webhook log service.
func NewService(params Params) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhooklogs: repo is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhooklogs: logger is required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// Record appends one audit row. The write runs on a detached context so a
// canceled request cannot abort it, and failures are logged rather than
// returned.
func (s *Service) Record(ctx context.Context, entry Entry) {
	record := &models.WebhookLog{
		IntegrationID:   entry.IntegrationID,
		EventType:       entry.EventType,
		Direction:       entry.Direction,
		RequestPayload:  integrations.RedactPayload(entry.RequestPayload),
		ResponsePayload: integrations.RedactPayload(entry.ResponsePayload),
		StatusCode:      entry.StatusCode,
		DurationMS:      entry.Duration.Milliseconds(),
	}
	if entry.Err != nil {
		message := entry.Err.Error()
		record.Error = &message
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if _, err := s.repo.Insert(writeCtx, record); err != nil {
		s.logg.Error(writeCtx, "webhook log write failed", err)
	}
}

// List returns logs for an integration, newest first.
func (s *Service) List(ctx context.Context, integrationID uuid.UUID, params pagination.Params) (*Page, error) {
	rows, err := s.repo.ListByIntegration(ctx, integrationID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list webhook logs")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	page := &Page{Logs: rows}
	if len(rows) > limit {
		page.Logs = rows[:limit]
		last := page.Logs[limit-1]
		page.NextCursor = pagination.EncodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}
