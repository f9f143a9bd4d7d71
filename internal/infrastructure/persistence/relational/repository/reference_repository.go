package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
	"safetyportal/internal/infrastructure/persistence/relational/model"
	"safetyportal/internal/ports"
)

// ReferenceRepository serves projects, companies and safety categories.
type ReferenceRepository struct {
	conn
}

var _ ports.ReferenceRepository = (*ReferenceRepository)(nil)

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{conn{db: db}}
}

func (r *ReferenceRepository) ListProjects(ctx context.Context) ([]report.Project, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Project
	if err := db.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "list projects")
	}
	out := make([]report.Project, 0, len(rows))
	for _, row := range rows {
		out = append(out, report.Project{ID: row.ID, Name: row.Name})
	}
	return out, nil
}

func (r *ReferenceRepository) ListCompanies(ctx context.Context) ([]report.Company, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Company
	if err := db.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "list companies")
	}
	out := make([]report.Company, 0, len(rows))
	for _, row := range rows {
		out = append(out, report.Company{ID: row.ID, Name: row.Name})
	}
	return out, nil
}

func (r *ReferenceRepository) ListCategories(ctx context.Context) ([]report.Category, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.SafetyCategory
	if err := db.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "list categories")
	}
	return toCategories(rows), nil
}

func (r *ReferenceRepository) CategoriesByIDs(ctx context.Context, ids []uint64) ([]report.Category, error) {
	if len(ids) == 0 {
		return []report.Category{}, nil
	}
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.SafetyCategory
	if err := db.Where("id IN ?", ids).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query categories by ids")
	}
	return toCategories(rows), nil
}

func (r *ReferenceRepository) SaveProject(ctx context.Context, project report.Project) (report.Project, error) {
	row := model.Project{ID: project.ID, Name: strings.TrimSpace(project.Name)}
	if err := r.save(ctx, &row, row.ID, map[string]any{"name": row.Name}); err != nil {
		return report.Project{}, errs.Wrap(err, "save project")
	}
	return report.Project{ID: row.ID, Name: row.Name}, nil
}

func (r *ReferenceRepository) DeleteProject(ctx context.Context, id uint64) error {
	return errs.Wrap(r.delete(ctx, &model.Project{}, id), "delete project")
}

func (r *ReferenceRepository) SaveCompany(ctx context.Context, company report.Company) (report.Company, error) {
	row := model.Company{ID: company.ID, Name: strings.TrimSpace(company.Name)}
	if err := r.save(ctx, &row, row.ID, map[string]any{"name": row.Name}); err != nil {
		return report.Company{}, errs.Wrap(err, "save company")
	}
	return report.Company{ID: row.ID, Name: row.Name}, nil
}

func (r *ReferenceRepository) DeleteCompany(ctx context.Context, id uint64) error {
	return errs.Wrap(r.delete(ctx, &model.Company{}, id), "delete company")
}

func (r *ReferenceRepository) SaveCategory(ctx context.Context, category report.Category) (report.Category, error) {
	row := model.SafetyCategory{ID: category.ID, Name: strings.TrimSpace(category.Name), Icon: category.Icon}
	if err := r.save(ctx, &row, row.ID, map[string]any{"name": row.Name, "icon": row.Icon}); err != nil {
		return report.Category{}, errs.Wrap(err, "save category")
	}
	return report.Category{ID: row.ID, Name: row.Name, Icon: row.Icon}, nil
}

func (r *ReferenceRepository) DeleteCategory(ctx context.Context, id uint64) error {
	return errs.Wrap(r.delete(ctx, &model.SafetyCategory{}, id), "delete category")
}

func (r *ReferenceRepository) UpsertProjectByName(ctx context.Context, name string) (report.Project, error) {
	row := model.Project{Name: strings.TrimSpace(name)}
	if err := r.upsertByName(ctx, &row, row.Name, nil); err != nil {
		return report.Project{}, errs.Wrapf(err, "upsert project %q", name)
	}
	return report.Project{ID: row.ID, Name: row.Name}, nil
}

func (r *ReferenceRepository) UpsertCompanyByName(ctx context.Context, name string) (report.Company, error) {
	row := model.Company{Name: strings.TrimSpace(name)}
	if err := r.upsertByName(ctx, &row, row.Name, nil); err != nil {
		return report.Company{}, errs.Wrapf(err, "upsert company %q", name)
	}
	return report.Company{ID: row.ID, Name: row.Name}, nil
}

func (r *ReferenceRepository) UpsertCategoryByName(ctx context.Context, name string, icon string) (report.Category, error) {
	row := model.SafetyCategory{Name: strings.TrimSpace(name), Icon: icon}
	if err := r.upsertByName(ctx, &row, row.Name, map[string]any{"icon": icon}); err != nil {
		return report.Category{}, errs.Wrapf(err, "upsert category %q", name)
	}
	return report.Category{ID: row.ID, Name: row.Name, Icon: row.Icon}, nil
}

// save inserts row when id is zero, otherwise applies updates to the existing row.
func (r *ReferenceRepository) save(ctx context.Context, row any, id uint64, updates map[string]any) error {
	return r.inTx(ctx, func(db *gorm.DB) error {
		if id == 0 {
			return db.Create(row).Error
		}
		result := db.Model(row).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return report.ErrReferenceNotFound
		}
		return db.Where("id = ?", id).Take(row).Error
	})
}

func (r *ReferenceRepository) delete(ctx context.Context, row any, id uint64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}
	result := db.Where("id = ?", id).Delete(row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return report.ErrReferenceNotFound
	}
	return nil
}

// upsertByName loads the row with the given name into row, creating it when
// absent. A non-empty updates map is applied to an existing row.
func (r *ReferenceRepository) upsertByName(ctx context.Context, row any, name string, updates map[string]any) error {
	if name == "" {
		return errors.New("name is required")
	}
	return r.inTx(ctx, func(db *gorm.DB) error {
		err := db.Where("name = ?", name).Take(row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return db.Create(row).Error
		}
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := db.Model(row).Updates(updates).Error; err != nil {
			return err
		}
		return nil
	})
}

func toCategories(rows []model.SafetyCategory) []report.Category {
	out := make([]report.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, report.Category{ID: row.ID, Name: row.Name, Icon: row.Icon})
	}
	return out
}
