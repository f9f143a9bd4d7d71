package refdata

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

type seedFile struct {
	Projects   []seedNamed    `toml:"projects"`
	Companies  []seedNamed    `toml:"companies"`
	Categories []seedCategory `toml:"categories"`
	Users      []seedUser     `toml:"users"`
}

type seedNamed struct {
	Name string `toml:"name"`
}

type seedCategory struct {
	Name string `toml:"name"`
	Icon string `toml:"icon"`
}

type seedUser struct {
	Email string `toml:"email"`
	Name  string `toml:"name"`
	Role  string `toml:"role"`
}

// SeedSummary counts the records an import touched.
type SeedSummary struct {
	Projects   int
	Companies  int
	Categories int
	Users      int
}

// ImportSeed upserts every record of a TOML seed file in one transaction.
// Projects, companies and categories match by name, users by email.
func (s *Service) ImportSeed(ctx context.Context, path string) (SeedSummary, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return SeedSummary{}, errors.New("seed file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return SeedSummary{}, errs.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := toml.Unmarshal(raw, &seed); err != nil {
		return SeedSummary{}, errs.Wrapf(err, "parse seed file %s", path)
	}
	if err := seed.validate(); err != nil {
		return SeedSummary{}, err
	}

	var summary SeedSummary
	err = ports.InTx(ctx, s.uow, func(ctx context.Context) error {
		for _, p := range seed.Projects {
			if _, err := s.refs.UpsertProjectByName(ctx, strings.TrimSpace(p.Name)); err != nil {
				return errs.Wrapf(err, "upsert project %q", p.Name)
			}
			summary.Projects++
		}
		for _, c := range seed.Companies {
			if _, err := s.refs.UpsertCompanyByName(ctx, strings.TrimSpace(c.Name)); err != nil {
				return errs.Wrapf(err, "upsert company %q", c.Name)
			}
			summary.Companies++
		}
		for _, c := range seed.Categories {
			if _, err := s.refs.UpsertCategoryByName(ctx, strings.TrimSpace(c.Name), strings.TrimSpace(c.Icon)); err != nil {
				return errs.Wrapf(err, "upsert category %q", c.Name)
			}
			summary.Categories++
		}
		for _, u := range seed.Users {
			user, err := normalizeUser(report.User{Email: u.Email, Name: u.Name, Role: report.Role(strings.ToLower(strings.TrimSpace(u.Role)))})
			if err != nil {
				return errs.Wrapf(err, "user %q", u.Email)
			}
			if _, err := s.users.UpsertUserByEmail(ctx, user); err != nil {
				return errs.Wrapf(err, "upsert user %q", u.Email)
			}
			summary.Users++
		}
		return nil
	})
	if err != nil {
		return SeedSummary{}, err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.refdata")),
		"seed imported",
		slog.String("path", path),
		slog.Int("projects", summary.Projects),
		slog.Int("companies", summary.Companies),
		slog.Int("categories", summary.Categories),
		slog.Int("users", summary.Users),
	)
	return summary, nil
}

func (f seedFile) validate() error {
	fields := report.FieldErrors{}
	for i, p := range f.Projects {
		if strings.TrimSpace(p.Name) == "" {
			fields.Add("projects."+strconv.Itoa(i)+".name", "is required")
		}
	}
	for i, c := range f.Companies {
		if strings.TrimSpace(c.Name) == "" {
			fields.Add("companies."+strconv.Itoa(i)+".name", "is required")
		}
	}
	for i, c := range f.Categories {
		if strings.TrimSpace(c.Name) == "" {
			fields.Add("categories."+strconv.Itoa(i)+".name", "is required")
		}
	}
	return fields.Err()
}

// WatchSeed imports path once and again after every change, until ctx ends.
// The parent directory is watched so editors that replace the file are seen.
func (s *Service) WatchSeed(ctx context.Context, path string, debounce time.Duration) error {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.refdata"), slog.String("path", path))
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create seed watcher")
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return errs.Wrap(err, "resolve seed path")
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return errs.Wrap(err, "watch seed directory")
	}

	reimport := func() {
		if _, err := s.ImportSeed(ctx, abs); err != nil {
			logging.Error(logCtx, "seed import failed", slog.Any("err", errs.Loggable(err)))
		}
	}
	reimport()

	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "seed watcher error", slog.Any("err", errs.Loggable(err)))
		case <-timer.C:
			reimport()
		}
	}
}
