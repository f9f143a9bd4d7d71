package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
	"safetyportal/internal/infrastructure/persistence/relational/model"
	"safetyportal/internal/ports"
)

type ObservationRepository struct {
	conn
}

var _ ports.ObservationRepository = (*ObservationRepository)(nil)

func NewObservationRepository(db *gorm.DB) *ObservationRepository {
	return &ObservationRepository{conn{db: db}}
}

// joinedObservation is an observation row with its project and company names.
type joinedObservation struct {
	ID            uint64
	ProjectID     uint64
	ProjectName   *string
	CompanyID     uint64
	CompanyName   *string
	SubmitterName string
	ReportDate    string
	ReportTime    string
	Location      string
	Description   string
	Subject       string
	ReportGroup   string
	Consequences  string
	Likelihood    string
	Status        string
	HasActionPlan bool
	ImageKey      *string
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (row joinedObservation) toDomain() report.Observation {
	return report.Observation{
		ID:            row.ID,
		ProjectID:     row.ProjectID,
		ProjectName:   derefString(row.ProjectName),
		CompanyID:     row.CompanyID,
		CompanyName:   derefString(row.CompanyName),
		SubmitterName: row.SubmitterName,
		Date:          row.ReportDate,
		Time:          row.ReportTime,
		Location:      row.Location,
		Description:   row.Description,
		Subject:       report.Subject(row.Subject),
		ReportGroup:   row.ReportGroup,
		Consequence:   report.Consequence(row.Consequences),
		Likelihood:    report.Likelihood(row.Likelihood),
		Status:        report.Status(row.Status),
		HasActionPlan: row.HasActionPlan,
		ImageKey:      derefString(row.ImageKey),
		CreatedBy:     row.CreatedBy,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

const observationSelect = "o.id, o.project_id, p.name AS project_name, o.company_id, c.name AS company_name, " +
	"o.submitter_name, o.report_date, o.report_time, o.location, o.description, o.subject, o.report_group, " +
	"o.consequences, o.likelihood, o.status, o.has_action_plan, o.image_key, o.created_by, o.created_at, o.updated_at"

// sortExpressions whitelists the sortable table columns. Ordinal levels sort by
// rank rather than alphabetically.
var sortExpressions = map[string]string{
	"date":         "o.report_date %[1]s, o.report_time %[1]s",
	"created_at":   "o.created_at %[1]s",
	"submitter":    "o.submitter_name %[1]s",
	"consequences": "CASE o.consequences WHEN 'minor' THEN 1 WHEN 'moderate' THEN 2 WHEN 'major' THEN 3 WHEN 'severe' THEN 4 ELSE 0 END %[1]s",
	"likelihood":   "CASE o.likelihood WHEN 'unlikely' THEN 1 WHEN 'possible' THEN 2 WHEN 'likely' THEN 3 WHEN 'very-likely' THEN 4 ELSE 0 END %[1]s",
	"status":       "o.status %[1]s",
	"project":      "p.name %[1]s",
	"company":      "c.name %[1]s",
}

func (r *ObservationRepository) CreateObservation(ctx context.Context, obs report.Observation) (report.Observation, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return report.Observation{}, err
	}

	row := toObservationModel(obs)
	row.ID = 0
	if err := db.Omit(clause.Associations).Create(&row).Error; err != nil {
		return report.Observation{}, errs.Wrap(err, "insert observation")
	}

	created := obs
	created.ID = row.ID
	created.CreatedAt = row.CreatedAt
	created.UpdatedAt = row.UpdatedAt
	return created, nil
}

func (r *ObservationRepository) GetObservation(ctx context.Context, id uint64) (report.Observation, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return report.Observation{}, err
	}

	var rows []joinedObservation
	if err := joinedObservationQuery(db).Where("o.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return report.Observation{}, errs.Wrap(err, "query observation")
	}
	if len(rows) == 0 {
		return report.Observation{}, report.ErrObservationNotFound
	}
	return rows[0].toDomain(), nil
}

func (r *ObservationRepository) UpdateObservation(ctx context.Context, obs report.Observation) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.Observation{}).
		Where("id = ?", obs.ID).
		Updates(map[string]any{
			"project_id":      obs.ProjectID,
			"company_id":      obs.CompanyID,
			"submitter_name":  obs.SubmitterName,
			"report_date":     obs.Date,
			"report_time":     obs.Time,
			"location":        obs.Location,
			"description":     obs.Description,
			"subject":         string(obs.Subject),
			"report_group":    obs.ReportGroup,
			"consequences":    string(obs.Consequence),
			"likelihood":      string(obs.Likelihood),
			"status":          string(obs.Status),
			"has_action_plan": obs.HasActionPlan,
			"image_key":       optionalString(obs.ImageKey),
			"updated_at":      nowUTC(),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update observation")
	}
	if result.RowsAffected == 0 {
		return report.ErrObservationNotFound
	}
	return nil
}

func (r *ObservationRepository) DeleteObservation(ctx context.Context, id uint64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Where("id = ?", id).Delete(&model.Observation{})
	if result.Error != nil {
		return errs.Wrap(result.Error, "delete observation")
	}
	if result.RowsAffected == 0 {
		return report.ErrObservationNotFound
	}
	return nil
}

func (r *ObservationRepository) QueryObservations(ctx context.Context, q ports.ObservationQuery) ([]report.Observation, int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}

	orderBy, err := orderClause(q.Sort)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := applyObservationFilter(db.Table("observations AS o"), q.Filter).Count(&total).Error; err != nil {
		return nil, 0, errs.Wrap(err, "count observations")
	}

	query := applyObservationFilter(joinedObservationQuery(db), q.Filter).Order(orderBy)
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []joinedObservation
	if err := query.Scan(&rows).Error; err != nil {
		return nil, 0, errs.Wrap(err, "query observations")
	}

	items := make([]report.Observation, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return items, total, nil
}

func joinedObservationQuery(db *gorm.DB) *gorm.DB {
	return db.Table("observations AS o").
		Select(observationSelect).
		Joins("LEFT JOIN projects p ON p.id = o.project_id").
		Joins("LEFT JOIN companies c ON c.id = o.company_id")
}

func applyObservationFilter(query *gorm.DB, filter ports.ObservationFilter) *gorm.DB {
	if from := strings.TrimSpace(filter.DateFrom); from != "" {
		query = query.Where("o.report_date >= ?", from)
	}
	if to := strings.TrimSpace(filter.DateTo); to != "" {
		query = query.Where("o.report_date <= ?", to)
	}
	if filter.Status != "" {
		query = query.Where("o.status = ?", string(filter.Status))
	}
	if filter.Severity != "" {
		query = query.Where("o.consequences = ?", string(filter.Severity))
	}
	return query
}

func orderClause(sort ports.SortSpec) (string, error) {
	column := strings.TrimSpace(sort.Column)
	if column == "" {
		// Unsorted tables open newest first.
		return fmt.Sprintf(sortExpressions["created_at"], "DESC") + ", o.id DESC", nil
	}
	direction := "ASC"
	switch sort.Direction {
	case ports.SortDesc:
		direction = "DESC"
	case ports.SortAsc, "":
	default:
		return "", fmt.Errorf("%w: direction %q", report.ErrInvalidSort, sort.Direction)
	}

	expr, ok := sortExpressions[column]
	if !ok {
		return "", fmt.Errorf("%w: %q", report.ErrInvalidSort, column)
	}
	// The id tie-break keeps page windows stable when sort keys collide.
	return fmt.Sprintf(expr, direction) + ", o.id ASC", nil
}

func toObservationModel(obs report.Observation) model.Observation {
	status := obs.Status
	if status == "" {
		status = report.StatusOpen
	}
	return model.Observation{
		ID:            obs.ID,
		ProjectID:     obs.ProjectID,
		CompanyID:     obs.CompanyID,
		SubmitterName: obs.SubmitterName,
		ReportDate:    obs.Date,
		ReportTime:    obs.Time,
		Location:      obs.Location,
		Description:   obs.Description,
		Subject:       string(obs.Subject),
		ReportGroup:   obs.ReportGroup,
		Consequences:  string(obs.Consequence),
		Likelihood:    string(obs.Likelihood),
		Status:        string(status),
		HasActionPlan: obs.HasActionPlan,
		ImageKey:      optionalString(obs.ImageKey),
		CreatedBy:     obs.CreatedBy,
	}
}
