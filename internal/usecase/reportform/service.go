package reportform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
	"safetyportal/internal/usecase/saga"
)

const (
	StepUploadImage       = "upload_image"
	StepCreateObservation = "create_observation"
	StepLinkCategories    = "link_categories"
)

// StepOutcome reports one write of a submission.
type StepOutcome struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type SubmitResult struct {
	ObservationID uint64        `json:"observation_id"`
	Steps         []StepOutcome `json:"steps"`
	Partial       bool          `json:"partial"`
}

type Service struct {
	observations ports.ObservationRepository
	plans        ports.ActionPlanRepository
	links        ports.CategoryLinkRepository
	storage      ports.ObjectStorage
	auth         ports.Authenticator
	events       ports.EventPublisher
	metrics      ports.Metrics
	buckets      ports.Buckets
	newKey       func(prefix string, upload *Upload) string
}

func NewService(
	observations ports.ObservationRepository,
	plans ports.ActionPlanRepository,
	links ports.CategoryLinkRepository,
	storage ports.ObjectStorage,
	auth ports.Authenticator,
	events ports.EventPublisher,
	metrics ports.Metrics,
	buckets ports.Buckets,
) *Service {
	if events == nil {
		events = ports.NoopPublisher{}
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &Service{
		observations: observations,
		plans:        plans,
		links:        links,
		storage:      storage,
		auth:         auth,
		events:       events,
		metrics:      metrics,
		buckets:      buckets,
		newKey:       NewObjectKey,
	}
}

// Submit validates the form and writes it: image, observation, category links,
// then each staged action plan. A failure before the observation exists aborts
// with nothing persisted. Later failures are recorded in the result and the
// observation stays in place.
func (s *Service) Submit(ctx context.Context, form *Form) (SubmitResult, error) {
	if ctx == nil {
		return SubmitResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return SubmitResult{}, errs.Wrap(err, "check context")
	}
	if form == nil {
		return SubmitResult{}, errors.New("form is required")
	}
	if err := form.Validate(); err != nil {
		s.metrics.SubmissionFinished(ports.OutcomeRejected)
		return SubmitResult{}, err
	}

	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		s.metrics.SubmissionFinished(ports.OutcomeRejected)
		return SubmitResult{}, err
	}

	obs, err := form.Observation.ToObservation()
	if err != nil {
		return SubmitResult{}, err
	}
	obs.CreatedBy = user.Email
	obs.HasActionPlan = obs.HasActionPlan || len(form.StagedPlans) > 0

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.reportform"))
	var created report.Observation

	steps := make([]saga.Step, 0, 3+len(form.StagedPlans))
	if form.Image != nil {
		image := form.Image
		steps = append(steps, saga.Step{
			Name:     StepUploadImage,
			Critical: true,
			Action: func(ctx context.Context) error {
				key, err := s.upload(ctx, s.buckets.Observation, s.newKey(ObservationKeyPrefix, image), image)
				if err != nil {
					return err
				}
				obs.ImageKey = key
				return nil
			},
		})
	}
	steps = append(steps, saga.Step{
		Name:     StepCreateObservation,
		Critical: true,
		Action: func(ctx context.Context) error {
			var err error
			created, err = s.observations.CreateObservation(ctx, obs)
			return err
		},
	})
	if len(form.Categories) > 0 {
		categories := append([]uint64(nil), form.Categories...)
		steps = append(steps, saga.Step{
			Name: StepLinkCategories,
			Action: func(ctx context.Context) error {
				return s.links.LinkCategories(ctx, created.ID, categories)
			},
		})
	}
	for i, draft := range form.StagedPlans {
		steps = append(steps, saga.Step{
			Name: fmt.Sprintf("action_plan_%d", i+1),
			Action: func(ctx context.Context) error {
				return s.writeStagedPlan(ctx, created.ID, draft)
			},
		})
	}

	run := saga.Run(logCtx, steps)
	result := SubmitResult{ObservationID: created.ID, Steps: toStepOutcomes(run)}
	for _, failed := range run.Failed() {
		s.metrics.SagaStepFailed(stepMetricName(failed.Name))
	}

	if run.Aborted {
		s.metrics.SubmissionFinished(ports.OutcomeFailed)
		return result, errs.Wrap(run.Err(), "submit observation")
	}

	result.Partial = len(run.Failed()) > 0
	if result.Partial {
		s.metrics.SubmissionFinished(ports.OutcomePartial)
		logging.Warn(logCtx, "observation submitted with failed dependents",
			slog.Uint64("observation_id", created.ID),
			slog.Any("err", errs.Loggable(run.Err())),
		)
	} else {
		s.metrics.SubmissionFinished(ports.OutcomeComplete)
		logging.Info(logCtx, "observation submitted", slog.Uint64("observation_id", created.ID))
	}

	s.publish(logCtx, ports.EventObservationCreated, map[string]any{
		"id":         created.ID,
		"created_by": created.CreatedBy,
		"partial":    result.Partial,
	})
	return result, nil
}

func (s *Service) writeStagedPlan(ctx context.Context, observationID uint64, draft ActionPlanDraft) error {
	if draft.Image != nil {
		key, err := s.upload(ctx, s.buckets.ActionPlan, s.newKey(ActionPlanKeyPrefix, draft.Image), draft.Image)
		if err != nil {
			return err
		}
		draft.ImageKey = key
	}
	plan, err := draft.ToActionPlan(observationID)
	if err != nil {
		return err
	}
	_, err = s.plans.CreateActionPlan(ctx, plan)
	return err
}

func (s *Service) upload(ctx context.Context, bucket string, key string, upload *Upload) (string, error) {
	stored, err := s.storage.Upload(ctx, bucket, key, bytes.NewReader(upload.Data), upload.ContentType)
	if err != nil {
		return "", errs.Wrapf(err, "upload %s", key)
	}
	return stored, nil
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

func toStepOutcomes(run saga.Result) []StepOutcome {
	out := make([]StepOutcome, 0, len(run.Outcomes))
	for _, o := range run.Outcomes {
		step := StepOutcome{Name: o.Name, Status: "ok"}
		switch {
		case o.Skipped:
			step.Status = "skipped"
		case o.Err != nil:
			step.Status = "failed"
			step.Error = o.Err.Error()
		}
		out = append(out, step)
	}
	return out
}

// stepMetricName folds per-plan step names into one label value.
func stepMetricName(name string) string {
	if strings.HasPrefix(name, "action_plan_") {
		return "action_plan"
	}
	return name
}
