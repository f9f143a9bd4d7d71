// Package refdata loads and administers projects, companies, safety
// categories and users.
package refdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/sync/errgroup"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

// Lookups are the option lists of the report form.
type Lookups struct {
	Projects   []report.Project  `json:"projects"`
	Companies  []report.Company  `json:"companies"`
	Categories []report.Category `json:"categories"`
}

type Service struct {
	refs  ports.ReferenceRepository
	users ports.UserRepository
	uow   ports.UnitOfWork
	auth  ports.Authenticator
}

func NewService(refs ports.ReferenceRepository, users ports.UserRepository, uow ports.UnitOfWork, auth ports.Authenticator) *Service {
	return &Service{refs: refs, users: users, uow: uow, auth: auth}
}

// LoadLookups reads the three lists concurrently, each ordered by name.
func (s *Service) LoadLookups(ctx context.Context) (Lookups, error) {
	if ctx == nil {
		return Lookups{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Lookups{}, errs.Wrap(err, "check context")
	}

	var out Lookups
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Projects, err = s.refs.ListProjects(gctx)
		return errs.Wrap(err, "list projects")
	})
	g.Go(func() error {
		var err error
		out.Companies, err = s.refs.ListCompanies(gctx)
		return errs.Wrap(err, "list companies")
	})
	g.Go(func() error {
		var err error
		out.Categories, err = s.refs.ListCategories(gctx)
		return errs.Wrap(err, "list categories")
	})
	if err := g.Wait(); err != nil {
		return Lookups{}, err
	}
	return out, nil
}

func (s *Service) requireAdmin(ctx context.Context) (report.User, error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return report.User{}, err
	}
	if !user.IsAdmin() {
		return report.User{}, fmt.Errorf("%w: %s is not an admin", report.ErrForbidden, user.Email)
	}
	return user, nil
}

func requireName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		fields := report.FieldErrors{}
		fields.Add("name", "is required")
		return "", fields
	}
	return name, nil
}

func (s *Service) audit(ctx context.Context, admin report.User, action string, attrs ...slog.Attr) {
	args := []slog.Attr{slog.String("admin", admin.Email), slog.String("action", action)}
	for _, a := range attrs {
		args = append(args, a)
	}
	logging.Info(logging.WithAttrs(ctx, slog.String("component", "usecase.refdata")), "reference data changed", args...)
}

func (s *Service) SaveProject(ctx context.Context, project report.Project) (report.Project, error) {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return report.Project{}, err
	}
	if project.Name, err = requireName(project.Name); err != nil {
		return report.Project{}, err
	}
	saved, err := s.refs.SaveProject(ctx, project)
	if err != nil {
		return report.Project{}, err
	}
	s.audit(ctx, admin, "save_project", slog.Uint64("id", saved.ID))
	return saved, nil
}

func (s *Service) DeleteProject(ctx context.Context, id uint64) error {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return err
	}
	if err := s.refs.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, admin, "delete_project", slog.Uint64("id", id))
	return nil
}

func (s *Service) SaveCompany(ctx context.Context, company report.Company) (report.Company, error) {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return report.Company{}, err
	}
	if company.Name, err = requireName(company.Name); err != nil {
		return report.Company{}, err
	}
	saved, err := s.refs.SaveCompany(ctx, company)
	if err != nil {
		return report.Company{}, err
	}
	s.audit(ctx, admin, "save_company", slog.Uint64("id", saved.ID))
	return saved, nil
}

func (s *Service) DeleteCompany(ctx context.Context, id uint64) error {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return err
	}
	if err := s.refs.DeleteCompany(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, admin, "delete_company", slog.Uint64("id", id))
	return nil
}

func (s *Service) SaveCategory(ctx context.Context, category report.Category) (report.Category, error) {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return report.Category{}, err
	}
	if category.Name, err = requireName(category.Name); err != nil {
		return report.Category{}, err
	}
	category.Icon = strings.TrimSpace(category.Icon)
	saved, err := s.refs.SaveCategory(ctx, category)
	if err != nil {
		return report.Category{}, err
	}
	s.audit(ctx, admin, "save_category", slog.Uint64("id", saved.ID))
	return saved, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id uint64) error {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return err
	}
	if err := s.refs.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, admin, "delete_category", slog.Uint64("id", id))
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]report.User, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.users.ListUsers(ctx)
}

func (s *Service) SaveUser(ctx context.Context, user report.User) (report.User, error) {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return report.User{}, err
	}
	if user, err = normalizeUser(user); err != nil {
		return report.User{}, err
	}
	saved, err := s.users.SaveUser(ctx, user)
	if err != nil {
		return report.User{}, err
	}
	s.audit(ctx, admin, "save_user", slog.Uint64("id", saved.ID), slog.String("role", string(saved.Role)))
	return saved, nil
}

func (s *Service) DeleteUser(ctx context.Context, id uint64) error {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return err
	}
	if admin.ID == id {
		fields := report.FieldErrors{}
		fields.Add("id", "admins cannot delete themselves")
		return fields
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, admin, "delete_user", slog.Uint64("id", id))
	return nil
}

func normalizeUser(user report.User) (report.User, error) {
	fields := report.FieldErrors{}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Name = strings.TrimSpace(user.Name)
	if user.Email == "" {
		fields.Add("email", "is required")
	} else if addr, err := mail.ParseAddress(user.Email); err != nil || addr.Address != user.Email {
		fields.Add("email", "has an invalid format")
	}
	switch user.Role {
	case "":
		user.Role = report.RoleUser
	case report.RoleUser, report.RoleAdmin:
	default:
		fields.Add("role", "must be admin or user")
	}
	return user, fields.Err()
}
