package reportsconsole

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/ports"
	"safetyportal/internal/testutil/fakes"
	"safetyportal/internal/usecase/reporttable"
)

func newTestModel(t *testing.T, n int) (*reportsModel, *fakes.Store) {
	t.Helper()
	store := fakes.NewStore()
	store.Projects = []report.Project{{ID: 1, Name: "North Tower"}}
	ctx := context.Background()
	for i := 0; i < n; i++ {
		status := report.StatusOpen
		if i%2 == 1 {
			status = report.StatusClosed
		}
		if _, err := store.CreateObservation(ctx, report.Observation{
			ProjectID: 1, SubmitterName: "Dana", Date: "2024-03-01", Time: "09:30", Location: "Gate",
			Consequence: report.ConsequenceMajor, Likelihood: report.LikelihoodLikely, Status: status,
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	ctrl := reporttable.NewController(store, store, store, nil, 3)
	model := NewReportsModel(ctx, ctrl, Options{ExportDir: t.TempDir()}).(*reportsModel)
	return model, store
}

// drive feeds a message and then runs the returned command chain until it
// yields nothing the model reacts to.
func drive(t *testing.T, m *reportsModel, msg tea.Msg) {
	t.Helper()
	for i := 0; msg != nil && i < 5; i++ {
		_, cmd := m.Update(msg)
		if cmd == nil {
			return
		}
		msg = cmd()
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestReportsModelLoadsAndPages(t *testing.T) {
	m, _ := newTestModel(t, 7)
	drive(t, m, m.loadCmd()())

	if len(m.table.Rows) != 3 || m.table.Total != 7 || m.table.TotalPages() != 3 {
		t.Fatalf("rows=%d total=%d pages=%d", len(m.table.Rows), m.table.Total, m.table.TotalPages())
	}
	if !strings.Contains(m.View(), "North Tower") {
		t.Fatalf("View() missing project name:\n%s", m.View())
	}

	drive(t, m, key("right"))
	drive(t, m, key("right"))
	drive(t, m, key("right"))
	if m.table.Page() != 3 || len(m.table.Rows) != 1 {
		t.Fatalf("after paging page=%d rows=%d", m.table.Page(), len(m.table.Rows))
	}
}

func TestReportsModelSortAndFilterResetPage(t *testing.T) {
	m, _ := newTestModel(t, 7)
	drive(t, m, m.loadCmd()())
	drive(t, m, key("right"))

	drive(t, m, key("1"))
	if m.table.Page() != 1 || m.table.Sort() != (ports.SortSpec{Column: "date", Direction: ports.SortAsc}) {
		t.Fatalf("after sort page=%d sort=%+v", m.table.Page(), m.table.Sort())
	}
	drive(t, m, key("1"))
	if m.table.Sort().Direction != ports.SortDesc {
		t.Fatalf("second press sort = %+v", m.table.Sort())
	}

	drive(t, m, key("f"))
	if m.table.Filter().Status != report.StatusOpen || m.table.Total != 4 {
		t.Fatalf("status filter = %q total=%d", m.table.Filter().Status, m.table.Total)
	}
	drive(t, m, key("f"))
	drive(t, m, key("f"))
	if m.table.Filter().Status != "" || m.table.Total != 7 {
		t.Fatalf("filter did not cycle back: %q total=%d", m.table.Filter().Status, m.table.Total)
	}
}

func TestReportsModelDeleteNeedsConfirmation(t *testing.T) {
	m, store := newTestModel(t, 2)
	drive(t, m, m.loadCmd()())
	drive(t, m, key("down"))

	drive(t, m, key("x"))
	if m.pending == nil || m.pending.ObservationID != 1 {
		t.Fatalf("pending prompt = %+v", m.pending)
	}
	drive(t, m, key("n"))
	if m.pending != nil || store.ObservationCount() != 2 {
		t.Fatalf("cancel deleted or kept prompt: pending=%v count=%d", m.pending, store.ObservationCount())
	}

	drive(t, m, key("x"))
	drive(t, m, key("y"))
	if store.ObservationCount() != 1 {
		t.Fatalf("observations = %d after confirm", store.ObservationCount())
	}
	if len(m.table.Rows) != 1 || len(m.activity) != 1 {
		t.Fatalf("rows=%d activity=%v", len(m.table.Rows), m.activity)
	}
}

func TestReportsModelExportsCurrentPage(t *testing.T) {
	m, _ := newTestModel(t, 4)
	drive(t, m, m.loadCmd()())

	drive(t, m, key("c"))
	raw, err := os.ReadFile(filepath.Join(m.exportDir, "observations-page1.csv"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if lines := strings.Count(strings.TrimSpace(string(raw)), "\n"); lines != 3 {
		t.Fatalf("csv data rows = %d, want 3 (one page)", lines)
	}
}

func TestNextInCycle(t *testing.T) {
	if got := nextInCycle(statusCycle, report.StatusClosed); got != "" {
		t.Fatalf("nextInCycle(closed) = %q", got)
	}
	if got := nextInCycle(severityCycle, report.Consequence("bogus")); got != "" {
		t.Fatalf("nextInCycle(unknown) = %q", got)
	}
}
