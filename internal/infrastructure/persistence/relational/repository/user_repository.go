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

type UserRepository struct {
	conn
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{conn{db: db}}
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (report.User, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return report.User{}, err
	}

	var row model.User
	if err := db.Where("email = ?", normalizeEmail(email)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return report.User{}, report.ErrUserNotFound
		}
		return report.User{}, errs.Wrap(err, "query user")
	}
	return toUserDomain(row), nil
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]report.User, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.User
	if err := db.Order("email ASC").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "list users")
	}
	out := make([]report.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, toUserDomain(row))
	}
	return out, nil
}

func (r *UserRepository) SaveUser(ctx context.Context, user report.User) (report.User, error) {
	row := toUserModel(user)
	err := r.inTx(ctx, func(db *gorm.DB) error {
		if row.ID == 0 {
			return db.Create(&row).Error
		}
		result := db.Model(&model.User{}).Where("id = ?", row.ID).Updates(map[string]any{
			"email":      row.Email,
			"name":       row.Name,
			"role":       row.Role,
			"updated_at": nowUTC(),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return report.ErrUserNotFound
		}
		return db.Where("id = ?", row.ID).Take(&row).Error
	})
	if err != nil {
		return report.User{}, errs.Wrap(err, "save user")
	}
	return toUserDomain(row), nil
}

func (r *UserRepository) DeleteUser(ctx context.Context, id uint64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Where("id = ?", id).Delete(&model.User{})
	if result.Error != nil {
		return errs.Wrap(result.Error, "delete user")
	}
	if result.RowsAffected == 0 {
		return report.ErrUserNotFound
	}
	return nil
}

// UpsertUserByEmail creates the user or refreshes name and role of an existing one.
func (r *UserRepository) UpsertUserByEmail(ctx context.Context, user report.User) (report.User, error) {
	row := toUserModel(user)
	if row.Email == "" {
		return report.User{}, errors.New("user email is required")
	}
	err := r.inTx(ctx, func(db *gorm.DB) error {
		var existing model.User
		err := db.Where("email = ?", row.Email).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row.ID = 0
			return db.Create(&row).Error
		}
		if err != nil {
			return err
		}
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		return db.Model(&existing).Updates(map[string]any{
			"name":       row.Name,
			"role":       row.Role,
			"updated_at": nowUTC(),
		}).Error
	})
	if err != nil {
		return report.User{}, errs.Wrapf(err, "upsert user %q", user.Email)
	}
	return toUserDomain(row), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserModel(user report.User) model.User {
	role := user.Role
	if role == "" {
		role = report.RoleUser
	}
	return model.User{
		ID:    user.ID,
		Email: normalizeEmail(user.Email),
		Name:  strings.TrimSpace(user.Name),
		Role:  string(role),
	}
}

func toUserDomain(row model.User) report.User {
	return report.User{
		ID:    row.ID,
		Email: row.Email,
		Name:  row.Name,
		Role:  report.Role(row.Role),
	}
}
