package reporttable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

type Controller struct {
	observations ports.ObservationRepository
	plans        ports.ActionPlanRepository
	links        ports.CategoryLinkRepository
	events       ports.EventPublisher
	pageSize     int
}

func NewController(
	observations ports.ObservationRepository,
	plans ports.ActionPlanRepository,
	links ports.CategoryLinkRepository,
	events ports.EventPublisher,
	pageSize int,
) *Controller {
	if events == nil {
		events = ports.NoopPublisher{}
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Controller{
		observations: observations,
		plans:        plans,
		links:        links,
		events:       events,
		pageSize:     pageSize,
	}
}

func (c *Controller) NewTable() *Table { return NewTable(c.pageSize) }

// Load reads the table's current page. When the page no longer exists it
// clamps to the last page and reads again.
func (c *Controller) Load(ctx context.Context, t *Table) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	rows, total, err := c.observations.QueryObservations(ctx, t.Query())
	if err != nil {
		return err
	}
	t.Rows, t.Total = rows, total

	if last := max(1, t.TotalPages()); t.page > last {
		t.page = last
		rows, total, err = c.observations.QueryObservations(ctx, t.Query())
		if err != nil {
			return err
		}
		t.Rows, t.Total = rows, total
	}
	return nil
}

// DeletePrompt is what the user confirms before an observation is removed.
type DeletePrompt struct {
	ObservationID uint64 `json:"observation_id"`
	Summary       string `json:"summary"`
	ActionPlans   int    `json:"action_plans"`
	Categories    int    `json:"categories"`
}

func (c *Controller) PrepareDelete(ctx context.Context, id uint64) (DeletePrompt, error) {
	obs, err := c.observations.GetObservation(ctx, id)
	if err != nil {
		return DeletePrompt{}, err
	}
	plans, err := c.plans.ListActionPlans(ctx, id)
	if err != nil {
		return DeletePrompt{}, errs.Wrap(err, "list action plans")
	}
	categories, err := c.links.ListCategoryIDs(ctx, id)
	if err != nil {
		return DeletePrompt{}, errs.Wrap(err, "list category links")
	}
	return DeletePrompt{
		ObservationID: id,
		Summary:       fmt.Sprintf("Delete observation #%d (%s, %s) reported by %s?", obs.ID, obs.Date, obs.Location, obs.SubmitterName),
		ActionPlans:   len(plans),
		Categories:    len(categories),
	}, nil
}

// ConfirmDelete removes the observation's action plans, then its category
// links, then the observation. The steps are not one transaction; a failure
// leaves the earlier steps applied.
func (c *Controller) ConfirmDelete(ctx context.Context, prompt DeletePrompt) error {
	if prompt.ObservationID == 0 {
		return report.ErrConfirmationRequired
	}
	id := prompt.ObservationID
	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.reporttable"), slog.Uint64("observation_id", id))

	plans, err := c.plans.DeleteActionPlansByObservation(ctx, id)
	if err != nil {
		return errs.Wrap(err, "delete action plans")
	}
	if err := c.links.DeleteCategoryLinks(ctx, id); err != nil {
		return errs.Wrap(err, "delete category links")
	}
	if err := c.observations.DeleteObservation(ctx, id); err != nil {
		return errs.Wrap(err, "delete observation")
	}

	logging.Info(logCtx, "observation deleted", slog.Int64("action_plans", plans))
	if raw, err := json.Marshal(map[string]any{"id": id}); err == nil {
		if err := c.events.Publish(logCtx, ports.EventObservationDeleted, raw); err != nil {
			logging.Warn(logCtx, "publish event failed", slog.Any("err", errs.Loggable(err)))
		}
	}
	return nil
}
