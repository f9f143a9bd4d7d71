package reportedit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
	"safetyportal/internal/usecase/reportform"
)

// Changes is an edit of an observation's scalar fields, categories and image.
type Changes struct {
	Observation reportform.ObservationDraft `json:"observation"`
	Categories  []uint64                    `json:"categories"`
	Image       *reportform.Upload          `json:"-"`
	RemoveImage bool                        `json:"remove_image"`
}

type Service struct {
	observations ports.ObservationRepository
	plans        ports.ActionPlanRepository
	links        ports.CategoryLinkRepository
	uow          ports.UnitOfWork
	storage      ports.ObjectStorage
	events       ports.EventPublisher
	buckets      ports.Buckets

	now    func() time.Time
	newKey func(prefix string, upload *reportform.Upload) string
}

func NewService(
	observations ports.ObservationRepository,
	plans ports.ActionPlanRepository,
	links ports.CategoryLinkRepository,
	uow ports.UnitOfWork,
	storage ports.ObjectStorage,
	events ports.EventPublisher,
	buckets ports.Buckets,
) *Service {
	if events == nil {
		events = ports.NoopPublisher{}
	}
	return &Service{
		observations: observations,
		plans:        plans,
		links:        links,
		uow:          uow,
		storage:      storage,
		events:       events,
		buckets:      buckets,
		now:          func() time.Time { return time.Now().UTC() },
		newKey:       reportform.NewObjectKey,
	}
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	return errs.Wrap(ctx.Err(), "check context")
}

// Load reads the observation, its action plans and its category ids
// concurrently.
func (s *Service) Load(ctx context.Context, id uint64) (*Session, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var (
		obs        report.Observation
		plans      []report.ActionPlan
		categories []uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		obs, err = s.observations.GetObservation(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		plans, err = s.plans.ListActionPlans(gctx, id)
		return errs.Wrap(err, "list action plans")
	})
	g.Go(func() error {
		var err error
		categories, err = s.links.ListCategoryIDs(gctx, id)
		return errs.Wrap(err, "list category links")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return newSession(obs, plans, categories), nil
}

// Update writes the edited fields back. Categories are replaced wholesale and
// closing the observation closes every action plan, all in one transaction.
func (s *Service) Update(ctx context.Context, id uint64, changes Changes) (report.Observation, error) {
	if err := checkContext(ctx); err != nil {
		return report.Observation{}, err
	}

	// Unlike submission, an edit may leave the observation without categories.
	fields := reportform.ValidateObservation(changes.Observation)
	if changes.Image != nil {
		if msg := reportform.CheckUpload(changes.Image); msg != "" {
			fields.Add("image", msg)
		}
	}
	if err := fields.Err(); err != nil {
		return report.Observation{}, err
	}

	next, err := changes.Observation.ToObservation()
	if err != nil {
		return report.Observation{}, err
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.reportedit"), slog.Uint64("observation_id", id))

	var uploaded string
	if changes.Image != nil {
		uploaded, err = s.upload(ctx, s.buckets.Observation, reportform.ObservationKeyPrefix, changes.Image)
		if err != nil {
			return report.Observation{}, err
		}
	}

	var (
		prev   report.Observation
		closed int64
	)
	err = ports.InTx(ctx, s.uow, func(ctx context.Context) error {
		var err error
		prev, err = s.observations.GetObservation(ctx, id)
		if err != nil {
			return err
		}

		next.ID = id
		next.CreatedBy = prev.CreatedBy
		switch {
		case uploaded != "":
			next.ImageKey = uploaded
		case changes.RemoveImage:
			next.ImageKey = ""
		default:
			next.ImageKey = prev.ImageKey
		}
		if err := s.observations.UpdateObservation(ctx, next); err != nil {
			return err
		}

		if err := s.links.DeleteCategoryLinks(ctx, id); err != nil {
			return errs.Wrap(err, "clear category links")
		}
		if err := s.links.LinkCategories(ctx, id, changes.Categories); err != nil {
			return errs.Wrap(err, "link categories")
		}

		if report.ClosesChildren(prev.Status, next.Status) {
			closed, err = s.plans.CloseActionPlansByObservation(ctx, id, s.now())
			if err != nil {
				return errs.Wrap(err, "close action plans")
			}
		}
		return nil
	})
	if err != nil {
		if uploaded != "" {
			s.discard(logCtx, s.buckets.Observation, uploaded)
		}
		return report.Observation{}, errs.Wrap(err, "update observation")
	}

	if prev.ImageKey != "" && prev.ImageKey != next.ImageKey {
		s.discard(logCtx, s.buckets.Observation, prev.ImageKey)
	}
	if report.ClosesChildren(prev.Status, next.Status) {
		logging.Info(logCtx, "observation closed", slog.Int64("closed_action_plans", closed))
		s.publish(logCtx, ports.EventObservationClosed, map[string]any{
			"id":                  id,
			"closed_action_plans": closed,
		})
	}

	updated, err := s.observations.GetObservation(ctx, id)
	if err != nil {
		return report.Observation{}, err
	}
	updated.CategoryIDs = append([]uint64(nil), changes.Categories...)
	return updated, nil
}

// AddActionPlan attaches a new plan to an existing observation and marks the
// observation as having one.
func (s *Service) AddActionPlan(ctx context.Context, observationID uint64, draft reportform.ActionPlanDraft) (report.ActionPlan, error) {
	if err := checkContext(ctx); err != nil {
		return report.ActionPlan{}, err
	}
	if err := reportform.ValidateActionPlan(draft).Err(); err != nil {
		return report.ActionPlan{}, err
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.reportedit"), slog.Uint64("observation_id", observationID))

	if draft.Image != nil {
		key, err := s.upload(ctx, s.buckets.ActionPlan, reportform.ActionPlanKeyPrefix, draft.Image)
		if err != nil {
			return report.ActionPlan{}, err
		}
		draft.ImageKey = key
	}

	var created report.ActionPlan
	err := ports.InTx(ctx, s.uow, func(ctx context.Context) error {
		obs, err := s.observations.GetObservation(ctx, observationID)
		if err != nil {
			return err
		}
		plan, err := draft.ToActionPlan(observationID)
		if err != nil {
			return err
		}
		if created, err = s.plans.CreateActionPlan(ctx, plan); err != nil {
			return errs.Wrap(err, "insert action plan")
		}
		if !obs.HasActionPlan {
			obs.HasActionPlan = true
			return s.observations.UpdateObservation(ctx, obs)
		}
		return nil
	})
	if err != nil {
		if draft.Image != nil {
			s.discard(logCtx, s.buckets.ActionPlan, draft.ImageKey)
		}
		return report.ActionPlan{}, err
	}
	logging.Info(logCtx, "action plan added", slog.Uint64("action_plan_id", created.ID))
	return created, nil
}

// EditActionPlan rewrites one plan. A new image replaces the stored one.
func (s *Service) EditActionPlan(ctx context.Context, observationID, planID uint64, draft reportform.ActionPlanDraft) (report.ActionPlan, error) {
	if err := checkContext(ctx); err != nil {
		return report.ActionPlan{}, err
	}
	if err := reportform.ValidateActionPlan(draft).Err(); err != nil {
		return report.ActionPlan{}, err
	}

	current, err := s.ownedPlan(ctx, observationID, planID)
	if err != nil {
		return report.ActionPlan{}, err
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.reportedit"), slog.Uint64("action_plan_id", planID))

	draft.ImageKey = current.ImageKey
	if draft.Image != nil {
		key, err := s.upload(ctx, s.buckets.ActionPlan, reportform.ActionPlanKeyPrefix, draft.Image)
		if err != nil {
			return report.ActionPlan{}, err
		}
		draft.ImageKey = key
	}
	if draft.Status == "" {
		draft.Status = string(current.Status)
	}

	plan, err := draft.ToActionPlan(observationID)
	if err != nil {
		return report.ActionPlan{}, err
	}
	plan.ID = planID
	plan.CreatedAt = current.CreatedAt
	if err := s.plans.UpdateActionPlan(ctx, plan); err != nil {
		if draft.Image != nil {
			s.discard(logCtx, s.buckets.ActionPlan, draft.ImageKey)
		}
		return report.ActionPlan{}, errs.Wrap(err, "update action plan")
	}
	if draft.Image != nil && current.ImageKey != "" {
		s.discard(logCtx, s.buckets.ActionPlan, current.ImageKey)
	}
	return plan, nil
}

// DeleteActionPlan removes one plan. It refuses unless confirmed.
func (s *Service) DeleteActionPlan(ctx context.Context, observationID, planID uint64, confirmed bool) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	plan, err := s.ownedPlan(ctx, observationID, planID)
	if err != nil {
		return err
	}
	if !confirmed {
		return report.ErrConfirmationRequired
	}
	if err := s.plans.DeleteActionPlan(ctx, planID); err != nil {
		return errs.Wrap(err, "delete action plan")
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.reportedit"), slog.Uint64("action_plan_id", planID))
	if plan.ImageKey != "" {
		s.discard(logCtx, s.buckets.ActionPlan, plan.ImageKey)
	}
	logging.Info(logCtx, "action plan deleted")
	return nil
}

func (s *Service) ownedPlan(ctx context.Context, observationID, planID uint64) (report.ActionPlan, error) {
	plan, err := s.plans.GetActionPlan(ctx, planID)
	if err != nil {
		return report.ActionPlan{}, err
	}
	if plan.ObservationID != observationID {
		return report.ActionPlan{}, report.ErrActionPlanNotFound
	}
	return plan, nil
}

func (s *Service) upload(ctx context.Context, bucket, prefix string, upload *reportform.Upload) (string, error) {
	key := s.newKey(prefix, upload)
	stored, err := s.storage.Upload(ctx, bucket, key, bytes.NewReader(upload.Data), upload.ContentType)
	if err != nil {
		return "", errs.Wrapf(err, "upload %s", key)
	}
	return stored, nil
}

// discard removes an object that is no longer referenced. Failures only log.
func (s *Service) discard(ctx context.Context, bucket, key string) {
	if key == "" || report.ClassifyImageRef(key) != report.ImageKindStorageKey {
		return
	}
	if err := s.storage.Delete(context.WithoutCancel(ctx), bucket, key); err != nil && !errors.Is(err, ports.ErrObjectNotFound) {
		logging.Warn(ctx, "remove stale object failed", slog.String("bucket", bucket), slog.String("key", key), slog.Any("err", errs.Loggable(err)))
	}
}

func (s *Service) publish(ctx context.Context, subject string, payload any) {
	raw, err := json.Marshal(payload)
	if err == nil {
		err = s.events.Publish(ctx, subject, raw)
	}
	if err != nil {
		logging.Warn(ctx, "publish event failed", slog.String("subject", subject), slog.Any("err", errs.Loggable(err)))
	}
}
