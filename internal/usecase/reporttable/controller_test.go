package reporttable

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/xuri/excelize/v2"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/infrastructure/persistence/relational/repository"
	"safetyportal/internal/ports"
	"safetyportal/internal/testutil/dbtest"
	"safetyportal/internal/testutil/fakes"
)

type tableFixture struct {
	ctrl   *Controller
	obs    *repository.ObservationRepository
	plans  *repository.ActionPlanRepository
	links  *repository.CategoryLinkRepository
	events *fakes.Publisher
	ids    []uint64
}

var severities = []report.Consequence{
	report.ConsequenceMinor, report.ConsequenceModerate, report.ConsequenceMajor, report.ConsequenceSevere,
}

// setupTable stores n observations dated 2024-01-01 onward, severities
// cycling, every third one closed.
func setupTable(t *testing.T, n int) tableFixture {
	t.Helper()
	db := dbtest.Open(t)
	ctx := context.Background()

	refs := repository.NewReferenceRepository(db)
	f := tableFixture{
		obs:    repository.NewObservationRepository(db),
		plans:  repository.NewActionPlanRepository(db),
		links:  repository.NewCategoryLinkRepository(db),
		events: &fakes.Publisher{},
	}
	f.ctrl = NewController(f.obs, f.plans, f.links, f.events, 10)

	project, _ := refs.UpsertProjectByName(ctx, "North Tower")
	company, _ := refs.UpsertCompanyByName(ctx, "Acme Builders")
	category, _ := refs.UpsertCategoryByName(ctx, "Falls", "fall")

	for i := 0; i < n; i++ {
		status := report.StatusOpen
		if i%3 == 2 {
			status = report.StatusClosed
		}
		created, err := f.obs.CreateObservation(ctx, report.Observation{
			ProjectID: project.ID, CompanyID: company.ID,
			SubmitterName: fmt.Sprintf("Submitter %02d", i),
			Date:          fmt.Sprintf("2024-01-%02d", i+1),
			Time:          "08:00", Location: "Gate", Description: "d",
			Subject: report.SubjectNearMiss, ReportGroup: "Site",
			Consequence: severities[i%len(severities)], Likelihood: report.LikelihoodPossible,
			Status: status,
		})
		if err != nil {
			t.Fatalf("create observation %d: %v", i, err)
		}
		if err := f.links.LinkCategories(ctx, created.ID, []uint64{category.ID}); err != nil {
			t.Fatalf("link: %v", err)
		}
		f.ids = append(f.ids, created.ID)
	}
	return f
}

func TestLoadPaginates(t *testing.T) {
	f := setupTable(t, 23)
	ctx := context.Background()
	table := f.ctrl.NewTable()

	if err := f.ctrl.Load(ctx, table); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.Total != 23 || table.TotalPages() != 3 || len(table.Rows) != 10 {
		t.Fatalf("page 1: total=%d pages=%d rows=%d", table.Total, table.TotalPages(), len(table.Rows))
	}
	if table.Rows[0].ProjectName != "North Tower" {
		t.Fatalf("joined project name = %q", table.Rows[0].ProjectName)
	}

	table.SetPage(3)
	if err := f.ctrl.Load(ctx, table); err != nil {
		t.Fatalf("Load(page 3) error = %v", err)
	}
	if len(table.Rows) != 3 || table.Rows[0].ID != f.ids[2] {
		t.Fatalf("page 3 rows = %d first=%d", len(table.Rows), table.Rows[0].ID)
	}
}

func TestLoadClampsWhenRowsDisappear(t *testing.T) {
	f := setupTable(t, 23)
	ctx := context.Background()
	table := f.ctrl.NewTable()
	table.Total = 23
	table.SetPage(3)

	filter, _ := NewFilter("", "", "closed", "")
	table.filter = filter // keep page 3 to simulate a stale view
	if err := f.ctrl.Load(ctx, table); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.Total != 7 || table.Page() != 1 || len(table.Rows) != 7 {
		t.Fatalf("clamped load: total=%d page=%d rows=%d", table.Total, table.Page(), len(table.Rows))
	}
	for _, row := range table.Rows {
		if row.Status != report.StatusClosed {
			t.Fatalf("filter leaked status %s", row.Status)
		}
	}
}

func TestRequestedPageBeyondEndLoadsLastPage(t *testing.T) {
	f := setupTable(t, 23)
	table := f.ctrl.NewTable()
	table.RequestPage(9)
	if err := f.ctrl.Load(context.Background(), table); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.Page() != 3 || len(table.Rows) != 3 {
		t.Fatalf("page=%d rows=%d, want last page with 3 rows", table.Page(), len(table.Rows))
	}
}

func TestLoadSortsBySeverityRank(t *testing.T) {
	f := setupTable(t, 8)
	ctx := context.Background()
	table := f.ctrl.NewTable()

	if err := table.ToggleSort("consequences"); err != nil {
		t.Fatalf("ToggleSort() error = %v", err)
	}
	if err := table.ToggleSort("consequences"); err != nil {
		t.Fatalf("ToggleSort() error = %v", err)
	}
	if err := f.ctrl.Load(ctx, table); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for i := 1; i < len(table.Rows); i++ {
		if table.Rows[i-1].Consequence.Rank() < table.Rows[i].Consequence.Rank() {
			t.Fatalf("rows not in descending severity: %s before %s", table.Rows[i-1].Consequence, table.Rows[i].Consequence)
		}
	}
	if table.Rows[0].Consequence != report.ConsequenceSevere {
		t.Fatalf("first row = %s", table.Rows[0].Consequence)
	}
}

func TestDeleteRemovesPlansFirst(t *testing.T) {
	f := setupTable(t, 2)
	ctx := context.Background()
	id := f.ids[0]

	for i := 0; i < 3; i++ {
		if _, err := f.plans.CreateActionPlan(ctx, report.ActionPlan{
			ObservationID: id, Action: "Fix", DueDate: "2024-02-01", ResponsiblePerson: "Sam", FollowUpContact: "Lee",
			Status: report.StatusOpen,
		}); err != nil {
			t.Fatalf("create plan: %v", err)
		}
	}

	prompt, err := f.ctrl.PrepareDelete(ctx, id)
	if err != nil {
		t.Fatalf("PrepareDelete() error = %v", err)
	}
	if prompt.ActionPlans != 3 || prompt.Categories != 1 || prompt.Summary == "" {
		t.Fatalf("prompt = %+v", prompt)
	}
	if err := f.ctrl.ConfirmDelete(ctx, DeletePrompt{}); !errors.Is(err, report.ErrConfirmationRequired) {
		t.Fatalf("ConfirmDelete(empty prompt) error = %v", err)
	}

	if err := f.ctrl.ConfirmDelete(ctx, prompt); err != nil {
		t.Fatalf("ConfirmDelete() error = %v", err)
	}
	if _, err := f.obs.GetObservation(ctx, id); !errors.Is(err, report.ErrObservationNotFound) {
		t.Fatalf("GetObservation(deleted) error = %v", err)
	}
	left, _ := f.plans.ListActionPlans(ctx, id)
	if len(left) != 0 {
		t.Fatalf("action plans left = %d", len(left))
	}
	if ids, _ := f.links.ListCategoryIDs(ctx, id); len(ids) != 0 {
		t.Fatalf("category links left = %v", ids)
	}
	if _, err := f.obs.GetObservation(ctx, f.ids[1]); err != nil {
		t.Fatalf("neighbour observation removed: %v", err)
	}
	if subjects := f.events.Subjects(); len(subjects) != 1 || subjects[0] != ports.EventObservationDeleted {
		t.Fatalf("events = %v", subjects)
	}
}

func TestConfirmDeleteOrderWithFakes(t *testing.T) {
	store := fakes.NewStore()
	ctx := context.Background()
	obs, _ := store.CreateObservation(ctx, report.Observation{Status: report.StatusOpen})
	_, _ = store.CreateActionPlan(ctx, report.ActionPlan{ObservationID: obs.ID, Status: report.StatusOpen})
	store.Calls = nil

	ctrl := NewController(store, store, store, nil, 0)
	if err := ctrl.ConfirmDelete(ctx, DeletePrompt{ObservationID: obs.ID}); err != nil {
		t.Fatalf("ConfirmDelete() error = %v", err)
	}
	want := []string{"delete_action_plans obs=1", "delete_category_links obs=1", "delete_observation 1"}
	if fmt.Sprint(store.Calls) != fmt.Sprint(want) {
		t.Fatalf("calls = %v, want %v", store.Calls, want)
	}
}

func TestExportsMatchSourceFields(t *testing.T) {
	f := setupTable(t, 12)
	ctx := context.Background()
	table := f.ctrl.NewTable()
	if err := f.ctrl.Load(ctx, table); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	severityCol, statusCol := indexOf(ExportColumns, "Severity"), indexOf(ExportColumns, "Status")

	var csvBuf bytes.Buffer
	if err := table.ExportCSV(&csvBuf); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}
	records, err := csv.NewReader(&csvBuf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	checkExport(t, "csv", records, table.Rows, severityCol, statusCol)

	var xlsxBuf bytes.Buffer
	if err := table.ExportXLSX(&xlsxBuf); err != nil {
		t.Fatalf("ExportXLSX() error = %v", err)
	}
	book, err := excelize.OpenReader(&xlsxBuf)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer func() { _ = book.Close() }()
	rows, err := book.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("read xlsx rows: %v", err)
	}
	checkExport(t, "xlsx", rows, table.Rows, severityCol, statusCol)
}

func checkExport(t *testing.T, kind string, records [][]string, source []report.Observation, severityCol, statusCol int) {
	t.Helper()
	// Only the loaded page is exported.
	if len(records) != len(source)+1 {
		t.Fatalf("%s rows = %d, want header + %d", kind, len(records), len(source))
	}
	if fmt.Sprint(records[0]) != fmt.Sprint(ExportColumns) {
		t.Fatalf("%s header = %v", kind, records[0])
	}
	for i, obs := range source {
		row := records[i+1]
		if row[0] != strconv.FormatUint(obs.ID, 10) {
			t.Fatalf("%s row %d id = %s, want %d", kind, i, row[0], obs.ID)
		}
		if row[severityCol] != string(obs.Consequence) || row[statusCol] != string(obs.Status) {
			t.Fatalf("%s row %d severity/status = %s/%s, want %s/%s", kind, i, row[severityCol], row[statusCol], obs.Consequence, obs.Status)
		}
	}
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}
