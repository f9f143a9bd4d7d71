package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
	"safetyportal/internal/infrastructure/persistence/relational/model"
	"safetyportal/internal/ports"
)

type ActionPlanRepository struct {
	conn
}

var _ ports.ActionPlanRepository = (*ActionPlanRepository)(nil)

func NewActionPlanRepository(db *gorm.DB) *ActionPlanRepository {
	return &ActionPlanRepository{conn{db: db}}
}

func (r *ActionPlanRepository) CreateActionPlan(ctx context.Context, plan report.ActionPlan) (report.ActionPlan, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return report.ActionPlan{}, err
	}

	row := toActionPlanModel(plan)
	row.ID = 0
	if err := db.Omit(clause.Associations).Create(&row).Error; err != nil {
		return report.ActionPlan{}, errs.Wrapf(err, "insert action plan for observation %d", plan.ObservationID)
	}
	return toActionPlanDomain(row), nil
}

func (r *ActionPlanRepository) GetActionPlan(ctx context.Context, id uint64) (report.ActionPlan, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return report.ActionPlan{}, err
	}

	var row model.ActionPlan
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return report.ActionPlan{}, report.ErrActionPlanNotFound
		}
		return report.ActionPlan{}, errs.Wrap(err, "query action plan")
	}
	return toActionPlanDomain(row), nil
}

func (r *ActionPlanRepository) UpdateActionPlan(ctx context.Context, plan report.ActionPlan) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.ActionPlan{}).
		Where("id = ?", plan.ID).
		Updates(map[string]any{
			"action":             plan.Action,
			"due_date":           plan.DueDate,
			"responsible_person": plan.ResponsiblePerson,
			"follow_up_contact":  plan.FollowUpContact,
			"status":             string(plan.Status),
			"image_key":          optionalString(plan.ImageKey),
			"updated_at":         nowUTC(),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update action plan")
	}
	if result.RowsAffected == 0 {
		return report.ErrActionPlanNotFound
	}
	return nil
}

func (r *ActionPlanRepository) DeleteActionPlan(ctx context.Context, id uint64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Where("id = ?", id).Delete(&model.ActionPlan{})
	if result.Error != nil {
		return errs.Wrap(result.Error, "delete action plan")
	}
	if result.RowsAffected == 0 {
		return report.ErrActionPlanNotFound
	}
	return nil
}

func (r *ActionPlanRepository) ListActionPlans(ctx context.Context, observationID uint64) ([]report.ActionPlan, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ActionPlan
	if err := db.Where("observation_id = ?", observationID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "list action plans")
	}

	out := make([]report.ActionPlan, 0, len(rows))
	for _, row := range rows {
		out = append(out, toActionPlanDomain(row))
	}
	return out, nil
}

func (r *ActionPlanRepository) DeleteActionPlansByObservation(ctx context.Context, observationID uint64) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Where("observation_id = ?", observationID).Delete(&model.ActionPlan{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "delete action plans by observation")
	}
	return result.RowsAffected, nil
}

// CloseActionPlansByObservation closes every open plan of the observation and
// returns how many changed.
func (r *ActionPlanRepository) CloseActionPlansByObservation(ctx context.Context, observationID uint64, at time.Time) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Model(&model.ActionPlan{}).
		Where("observation_id = ? AND status = ?", observationID, string(report.StatusOpen)).
		Updates(map[string]any{
			"status":     string(report.StatusClosed),
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "close action plans")
	}
	return result.RowsAffected, nil
}

func toActionPlanModel(plan report.ActionPlan) model.ActionPlan {
	status := plan.Status
	if status == "" {
		status = report.StatusOpen
	}
	return model.ActionPlan{
		ID:                plan.ID,
		ObservationID:     plan.ObservationID,
		Action:            plan.Action,
		DueDate:           plan.DueDate,
		ResponsiblePerson: plan.ResponsiblePerson,
		FollowUpContact:   plan.FollowUpContact,
		Status:            string(status),
		ImageKey:          optionalString(plan.ImageKey),
	}
}

func toActionPlanDomain(row model.ActionPlan) report.ActionPlan {
	return report.ActionPlan{
		ID:                row.ID,
		ObservationID:     row.ObservationID,
		Action:            row.Action,
		DueDate:           row.DueDate,
		ResponsiblePerson: row.ResponsiblePerson,
		FollowUpContact:   row.FollowUpContact,
		Status:            report.Status(row.Status),
		ImageKey:          derefString(row.ImageKey),
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}
