package ports

import (
	"context"
	"time"

	"safetyportal/internal/domain/report"
)

// ObservationFilter narrows a table query. Empty fields do not filter.
type ObservationFilter struct {
	DateFrom string
	DateTo   string
	Status   report.Status
	Severity report.Consequence
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

type SortSpec struct {
	Column    string
	Direction SortDirection
}

// ObservationQuery describes one table page read.
type ObservationQuery struct {
	Filter ObservationFilter
	Sort   SortSpec
	Offset int
	Limit  int
}

type ObservationRepository interface {
	CreateObservation(ctx context.Context, obs report.Observation) (report.Observation, error)
	GetObservation(ctx context.Context, id uint64) (report.Observation, error)
	UpdateObservation(ctx context.Context, obs report.Observation) error
	DeleteObservation(ctx context.Context, id uint64) error
	QueryObservations(ctx context.Context, q ObservationQuery) ([]report.Observation, int64, error)
}

type ActionPlanRepository interface {
	CreateActionPlan(ctx context.Context, plan report.ActionPlan) (report.ActionPlan, error)
	GetActionPlan(ctx context.Context, id uint64) (report.ActionPlan, error)
	UpdateActionPlan(ctx context.Context, plan report.ActionPlan) error
	DeleteActionPlan(ctx context.Context, id uint64) error
	ListActionPlans(ctx context.Context, observationID uint64) ([]report.ActionPlan, error)
	DeleteActionPlansByObservation(ctx context.Context, observationID uint64) (int64, error)
	CloseActionPlansByObservation(ctx context.Context, observationID uint64, at time.Time) (int64, error)
}

type CategoryLinkRepository interface {
	LinkCategories(ctx context.Context, observationID uint64, categoryIDs []uint64) error
	ListCategoryIDs(ctx context.Context, observationID uint64) ([]uint64, error)
	DeleteCategoryLinks(ctx context.Context, observationID uint64) error
}

type ReferenceRepository interface {
	ListProjects(ctx context.Context) ([]report.Project, error)
	ListCompanies(ctx context.Context) ([]report.Company, error)
	ListCategories(ctx context.Context) ([]report.Category, error)
	CategoriesByIDs(ctx context.Context, ids []uint64) ([]report.Category, error)

	SaveProject(ctx context.Context, project report.Project) (report.Project, error)
	DeleteProject(ctx context.Context, id uint64) error
	SaveCompany(ctx context.Context, company report.Company) (report.Company, error)
	DeleteCompany(ctx context.Context, id uint64) error
	SaveCategory(ctx context.Context, category report.Category) (report.Category, error)
	DeleteCategory(ctx context.Context, id uint64) error

	UpsertProjectByName(ctx context.Context, name string) (report.Project, error)
	UpsertCompanyByName(ctx context.Context, name string) (report.Company, error)
	UpsertCategoryByName(ctx context.Context, name string, icon string) (report.Category, error)
}

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (report.User, error)
	ListUsers(ctx context.Context) ([]report.User, error)
	SaveUser(ctx context.Context, user report.User) (report.User, error)
	DeleteUser(ctx context.Context, id uint64) error
	UpsertUserByEmail(ctx context.Context, user report.User) (report.User, error)
}
