package refdata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/infrastructure/persistence/relational/repository"
	"safetyportal/internal/infrastructure/persistence/relational/uow"
	"safetyportal/internal/testutil/dbtest"
	"safetyportal/internal/testutil/fakes"
)

type refFixture struct {
	svc   *Service
	refs  *repository.ReferenceRepository
	users *repository.UserRepository
}

func setupRefdata(t *testing.T, actor report.User) refFixture {
	t.Helper()
	db := dbtest.Open(t)
	f := refFixture{
		refs:  repository.NewReferenceRepository(db),
		users: repository.NewUserRepository(db),
	}
	f.svc = NewService(f.refs, f.users, uow.NewUnitOfWork(db), fakes.Auth{User: actor})
	return f
}

var (
	admin  = report.User{ID: 1, Email: "admin@example.com", Role: report.RoleAdmin}
	worker = report.User{ID: 2, Email: "worker@example.com", Role: report.RoleUser}
)

func TestLoadLookupsOrderedByName(t *testing.T) {
	f := setupRefdata(t, worker)
	ctx := context.Background()
	for _, name := range []string{"Zeta Yard", "Alpha Plant", "Mid Site"} {
		if _, err := f.refs.UpsertProjectByName(ctx, name); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	_, _ = f.refs.UpsertCompanyByName(ctx, "Acme Builders")
	_, _ = f.refs.UpsertCategoryByName(ctx, "Working at height", "ladder")
	_, _ = f.refs.UpsertCategoryByName(ctx, "Electrical", "bolt")

	lookups, err := f.svc.LoadLookups(ctx)
	if err != nil {
		t.Fatalf("LoadLookups() error = %v", err)
	}
	if len(lookups.Projects) != 3 || lookups.Projects[0].Name != "Alpha Plant" || lookups.Projects[2].Name != "Zeta Yard" {
		t.Fatalf("projects = %+v", lookups.Projects)
	}
	if len(lookups.Companies) != 1 || len(lookups.Categories) != 2 || lookups.Categories[0].Name != "Electrical" {
		t.Fatalf("lookups = %+v", lookups)
	}
}

func TestAdminMutationsRequireAdmin(t *testing.T) {
	f := setupRefdata(t, worker)
	ctx := context.Background()

	checks := map[string]error{}
	_, checks["SaveProject"] = f.svc.SaveProject(ctx, report.Project{Name: "x"})
	checks["DeleteProject"] = f.svc.DeleteProject(ctx, 1)
	_, checks["SaveCompany"] = f.svc.SaveCompany(ctx, report.Company{Name: "x"})
	checks["DeleteCompany"] = f.svc.DeleteCompany(ctx, 1)
	_, checks["SaveCategory"] = f.svc.SaveCategory(ctx, report.Category{Name: "x"})
	checks["DeleteCategory"] = f.svc.DeleteCategory(ctx, 1)
	_, checks["ListUsers"] = f.svc.ListUsers(ctx)
	_, checks["SaveUser"] = f.svc.SaveUser(ctx, report.User{Email: "a@example.com"})
	checks["DeleteUser"] = f.svc.DeleteUser(ctx, 3)

	for name, err := range checks {
		if !errors.Is(err, report.ErrForbidden) {
			t.Fatalf("%s as user error = %v, want ErrForbidden", name, err)
		}
	}

	anonymous := NewService(f.refs, f.users, nil, fakes.Auth{})
	if _, err := anonymous.SaveProject(ctx, report.Project{Name: "x"}); !errors.Is(err, report.ErrUnauthenticated) {
		t.Fatalf("SaveProject anonymous error = %v", err)
	}
}

func TestAdminCRUD(t *testing.T) {
	f := setupRefdata(t, admin)
	ctx := context.Background()

	project, err := f.svc.SaveProject(ctx, report.Project{Name: "  North Tower "})
	if err != nil || project.ID == 0 || project.Name != "North Tower" {
		t.Fatalf("SaveProject() = %+v, %v", project, err)
	}
	project.Name = "North Tower B"
	if _, err := f.svc.SaveProject(ctx, project); err != nil {
		t.Fatalf("SaveProject(update) error = %v", err)
	}
	if _, err := f.svc.SaveProject(ctx, report.Project{Name: " "}); !errors.Is(err, report.ErrValidation) {
		t.Fatalf("SaveProject(blank) error = %v", err)
	}

	category, err := f.svc.SaveCategory(ctx, report.Category{Name: "Falls", Icon: "fall"})
	if err != nil {
		t.Fatalf("SaveCategory() error = %v", err)
	}
	if err := f.svc.DeleteCategory(ctx, category.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	if err := f.svc.DeleteCategory(ctx, category.ID); !errors.Is(err, report.ErrReferenceNotFound) {
		t.Fatalf("DeleteCategory(again) error = %v", err)
	}

	user, err := f.svc.SaveUser(ctx, report.User{Email: " Sam@Example.com ", Name: "Sam"})
	if err != nil {
		t.Fatalf("SaveUser() error = %v", err)
	}
	if user.Email != "sam@example.com" || user.Role != report.RoleUser {
		t.Fatalf("SaveUser() = %+v", user)
	}
	if _, err := f.svc.SaveUser(ctx, report.User{Email: "not-an-email", Role: "owner"}); !errors.Is(err, report.ErrValidation) {
		t.Fatalf("SaveUser(invalid) error = %v", err)
	}
	if err := f.svc.DeleteUser(ctx, admin.ID); !errors.Is(err, report.ErrValidation) {
		t.Fatalf("DeleteUser(self) error = %v", err)
	}
	users, err := f.svc.ListUsers(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("ListUsers() = %+v, %v", users, err)
	}
}

const seedV1 = `
[[projects]]
name = "North Tower"

[[companies]]
name = "Acme Builders"

[[categories]]
name = "Falls"
icon = "fall"

[[users]]
email = "Admin@Example.com"
name = "Ada"
role = "admin"
`

func writeSeed(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
}

func TestImportSeedIsIdempotent(t *testing.T) {
	f := setupRefdata(t, admin)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "refdata.toml")
	writeSeed(t, path, seedV1)

	for i := 0; i < 2; i++ {
		summary, err := f.svc.ImportSeed(ctx, path)
		if err != nil {
			t.Fatalf("ImportSeed() run %d error = %v", i, err)
		}
		if summary != (SeedSummary{Projects: 1, Companies: 1, Categories: 1, Users: 1}) {
			t.Fatalf("summary = %+v", summary)
		}
	}

	projects, _ := f.refs.ListProjects(ctx)
	if len(projects) != 1 {
		t.Fatalf("projects = %+v, want one after two imports", projects)
	}
	user, err := f.users.GetUserByEmail(ctx, "admin@example.com")
	if err != nil || !user.IsAdmin() {
		t.Fatalf("seeded user = %+v, %v", user, err)
	}
}

func TestImportSeedRejectsBadFiles(t *testing.T) {
	f := setupRefdata(t, admin)
	ctx := context.Background()
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.toml")
	writeSeed(t, broken, "[[projects]\nname = ")
	if _, err := f.svc.ImportSeed(ctx, broken); err == nil {
		t.Fatalf("ImportSeed(broken) error = nil")
	}

	blank := filepath.Join(dir, "blank.toml")
	writeSeed(t, blank, "[[projects]]\nname = \"\"\n")
	if _, err := f.svc.ImportSeed(ctx, blank); !errors.Is(err, report.ErrValidation) {
		t.Fatalf("ImportSeed(blank name) error = %v", err)
	}

	badUser := filepath.Join(dir, "user.toml")
	writeSeed(t, badUser, "[[projects]]\nname = \"Kept Out\"\n[[users]]\nemail = \"x\"\n")
	if _, err := f.svc.ImportSeed(ctx, badUser); err == nil {
		t.Fatalf("ImportSeed(bad user) error = nil")
	}
	if projects, _ := f.refs.ListProjects(ctx); len(projects) != 0 {
		t.Fatalf("projects = %+v, want rollback", projects)
	}
}

func TestWatchSeedReimportsOnChange(t *testing.T) {
	f := setupRefdata(t, admin)
	path := filepath.Join(t.TempDir(), "refdata.toml")
	writeSeed(t, path, seedV1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.WatchSeed(ctx, path, 20*time.Millisecond) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Fatalf("WatchSeed() error = %v", err)
		}
	}()

	waitForProjects(t, f, 1)
	writeSeed(t, path, seedV1+"\n[[projects]]\nname = \"South Annex\"\n")
	waitForProjects(t, f, 2)
}

func waitForProjects(t *testing.T, f refFixture, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		projects, err := f.refs.ListProjects(context.Background())
		if err == nil && len(projects) == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("projects never reached %d", want)
}
