package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"safetyportal/internal/errs"
	"safetyportal/internal/infrastructure/persistence/relational/model"
	"safetyportal/internal/ports"
)

type CategoryLinkRepository struct {
	conn
}

var _ ports.CategoryLinkRepository = (*CategoryLinkRepository)(nil)

func NewCategoryLinkRepository(db *gorm.DB) *CategoryLinkRepository {
	return &CategoryLinkRepository{conn{db: db}}
}

// LinkCategories inserts one link row per distinct id. Existing links are kept.
func (r *CategoryLinkRepository) LinkCategories(ctx context.Context, observationID uint64, categoryIDs []uint64) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	seen := make(map[uint64]struct{}, len(categoryIDs))
	rows := make([]model.ObservationCategory, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, model.ObservationCategory{ObservationID: observationID, CategoryID: id})
	}

	err = db.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return errs.Wrapf(err, "link categories to observation %d", observationID)
	}
	return nil
}

func (r *CategoryLinkRepository) ListCategoryIDs(ctx context.Context, observationID uint64) ([]uint64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var ids []uint64
	err = db.Model(&model.ObservationCategory{}).
		Where("observation_id = ?", observationID).
		Order("category_id ASC").
		Pluck("category_id", &ids).Error
	if err != nil {
		return nil, errs.Wrap(err, "list category links")
	}
	return ids, nil
}

func (r *CategoryLinkRepository) DeleteCategoryLinks(ctx context.Context, observationID uint64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Where("observation_id = ?", observationID).Delete(&model.ObservationCategory{}).Error; err != nil {
		return errs.Wrap(err, "delete category links")
	}
	return nil
}
