package pdfexport

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

// Exporter loads an observation with its names, categories and plans and
// renders it.
type Exporter struct {
	observations ports.ObservationRepository
	plans        ports.ActionPlanRepository
	links        ports.CategoryLinkRepository
	refs         ports.ReferenceRepository
	renderer     *Renderer
}

func NewExporter(
	observations ports.ObservationRepository,
	plans ports.ActionPlanRepository,
	links ports.CategoryLinkRepository,
	refs ports.ReferenceRepository,
	renderer *Renderer,
) *Exporter {
	return &Exporter{observations: observations, plans: plans, links: links, refs: refs, renderer: renderer}
}

// LoadDetail reads everything the document shows for one observation.
func (e *Exporter) LoadDetail(ctx context.Context, id uint64) (report.Detail, error) {
	if ctx == nil {
		return report.Detail{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return report.Detail{}, errs.Wrap(err, "check context")
	}

	var detail report.Detail
	var categoryIDs []uint64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detail.Observation, err = e.observations.GetObservation(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		detail.ActionPlans, err = e.plans.ListActionPlans(gctx, id)
		return errs.Wrap(err, "list action plans")
	})
	g.Go(func() error {
		var err error
		categoryIDs, err = e.links.ListCategoryIDs(gctx, id)
		return errs.Wrap(err, "list category links")
	})
	if err := g.Wait(); err != nil {
		return report.Detail{}, err
	}

	detail.Observation.CategoryIDs = categoryIDs
	if len(categoryIDs) > 0 {
		categories, err := e.refs.CategoriesByIDs(ctx, categoryIDs)
		if err != nil {
			return report.Detail{}, errs.Wrap(err, "load categories")
		}
		detail.Categories = categories
	}
	return detail, nil
}

// Export writes the PDF for observation id to w.
func (e *Exporter) Export(ctx context.Context, id uint64, w io.Writer) error {
	detail, err := e.LoadDetail(ctx, id)
	if err != nil {
		return err
	}
	return e.renderer.Render(ctx, detail, w)
}
