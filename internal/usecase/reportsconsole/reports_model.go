// Package reportsconsole is the interactive terminal view of the reports table.
package reportsconsole

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/ports"
	"safetyportal/internal/usecase/reporttable"
)

const maxActivityLines = 6

type Options struct {
	ExportDir       string
	RefreshInterval time.Duration
}

// sortKeys binds a key to a sortable column.
var sortKeys = map[string]string{
	"1": "date",
	"2": "created_at",
	"3": "submitter",
	"4": "consequences",
	"5": "likelihood",
	"6": "status",
	"7": "project",
	"8": "company",
}

var statusCycle = []report.Status{"", report.StatusOpen, report.StatusClosed}

var severityCycle = []report.Consequence{
	"", report.ConsequenceMinor, report.ConsequenceModerate, report.ConsequenceMajor, report.ConsequenceSevere,
}

type reportsModel struct {
	ctx             context.Context
	controller      *reporttable.Controller
	exportDir       string
	refreshInterval time.Duration

	table         *reporttable.Table
	selectedIndex int
	pending       *reporttable.DeletePrompt
	status        string
	activity      []string
}

type pageLoadedMsg struct {
	table reporttable.Table
	err   error
}

type deletePreparedMsg struct {
	prompt reporttable.DeletePrompt
	err    error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action string
	result string
	err    error
}

func NewReportsModel(ctx context.Context, controller *reporttable.Controller, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	exportDir := strings.TrimSpace(options.ExportDir)
	if exportDir == "" {
		exportDir = "."
	}
	return &reportsModel{
		ctx:             ctx,
		controller:      controller,
		exportDir:       exportDir,
		refreshInterval: interval,
		table:           controller.NewTable(),
		status:          "loading",
	}
}

func (m *reportsModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.tickCmd())
}

func (m *reportsModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadCmd(), m.tickCmd())
	case pageLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		table := msg.table
		m.table = &table
		m.selectedIndex = min(max(m.selectedIndex, 0), max(len(m.table.Rows)-1, 0))
		m.status = fmt.Sprintf("page %d/%d, %d observations", m.table.Page(), max(1, m.table.TotalPages()), m.table.Total)
		return m, nil
	case deletePreparedMsg:
		if msg.err != nil {
			m.status = "delete failed: " + msg.err.Error()
			return m, nil
		}
		prompt := msg.prompt
		m.pending = &prompt
		m.status = fmt.Sprintf("%s (%d action plans) y to confirm, any other key cancels", prompt.Summary, prompt.ActionPlans)
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.appendActivity(msg.action + " failed: " + msg.err.Error())
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
			m.appendActivity(msg.action + " " + msg.result)
		}
		return m, m.loadCmd()
	case tea.KeyMsg:
		return m.handleKey(msg.String())
	}
	return m, nil
}

func (m *reportsModel) handleKey(key string) (tea.Model, tea.Cmd) {
	if m.pending != nil {
		prompt := *m.pending
		m.pending = nil
		if key == "y" {
			m.status = "deleting..."
			return m, m.deleteCmd(prompt)
		}
		m.status = "delete cancelled"
		return m, nil
	}

	if column, ok := sortKeys[key]; ok {
		if err := m.table.ToggleSort(column); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.selectedIndex = 0
		return m, m.loadCmd()
	}

	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "g":
		m.status = "refreshing"
		return m, m.loadCmd()
	case "up", "k":
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}
		return m, nil
	case "down", "j":
		if m.selectedIndex < len(m.table.Rows)-1 {
			m.selectedIndex++
		}
		return m, nil
	case "right", "l", "]":
		m.table.NextPage()
		m.selectedIndex = 0
		return m, m.loadCmd()
	case "left", "h", "[":
		m.table.PrevPage()
		m.selectedIndex = 0
		return m, m.loadCmd()
	case "f":
		return m, m.cycleFilter(func(f *ports.ObservationFilter) {
			f.Status = nextInCycle(statusCycle, f.Status)
		})
	case "v":
		return m, m.cycleFilter(func(f *ports.ObservationFilter) {
			f.Severity = nextInCycle(severityCycle, f.Severity)
		})
	case "x":
		return m, m.prepareDeleteCmd()
	case "e":
		return m, m.exportCmd("xlsx")
	case "c":
		return m, m.exportCmd("csv")
	}
	return m, nil
}

func (m *reportsModel) cycleFilter(change func(*ports.ObservationFilter)) tea.Cmd {
	filter := m.table.Filter()
	change(&filter)
	if err := m.table.SetFilter(filter); err != nil {
		m.status = err.Error()
		return nil
	}
	m.selectedIndex = 0
	return m.loadCmd()
}

func nextInCycle[T comparable](cycle []T, current T) T {
	for i, v := range cycle {
		if v == current {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}

func (m *reportsModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	riskStyles := map[report.RiskBand]lipgloss.Style{
		report.RiskLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		report.RiskMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		report.RiskHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}

	filter := m.table.Filter()
	sort := m.table.Sort()

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Safety Observations"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"page=%d/%d total=%d status=%s severity=%s sort=%s %s refresh=%s",
		m.table.Page(),
		max(1, m.table.TotalPages()),
		m.table.Total,
		firstNonEmpty(string(filter.Status), "all"),
		firstNonEmpty(string(filter.Severity), "all"),
		firstNonEmpty(sort.Column, "created_at"),
		firstNonEmpty(string(sort.Direction), "asc"),
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Reports"))
	builder.WriteString("\n")
	if len(m.table.Rows) == 0 {
		builder.WriteString(dimStyle.Render("- no observations"))
		builder.WriteString("\n\n")
	} else {
		for index, obs := range m.table.Rows {
			line := fmt.Sprintf(
				"#%-5d %s %s %-12s %-10s %-8s %-11s %-6s %s",
				obs.ID,
				obs.Date,
				obs.Time,
				truncate(obs.ProjectName, 12),
				truncate(obs.SubmitterName, 10),
				obs.Consequence,
				obs.Likelihood,
				obs.Status,
				truncate(obs.Location, 24),
			)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString(" ")
			builder.WriteString(riskStyles[obs.RiskBand()].Render(string(obs.RiskBand())))
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Activity"))
	builder.WriteString("\n")
	if len(m.activity) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.activity {
			builder.WriteString("- " + line + "\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  ←/→ page  1-8 sort  f status  v severity  x delete  e xlsx  c csv  g refresh  q quit"))
	return builder.String()
}

func (m *reportsModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// loadCmd reads into a copy so the view never sees a half-loaded table.
func (m *reportsModel) loadCmd() tea.Cmd {
	snapshot := *m.table
	return func() tea.Msg {
		err := m.controller.Load(m.ctx, &snapshot)
		return pageLoadedMsg{table: snapshot, err: err}
	}
}

func (m *reportsModel) selected() (report.Observation, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.table.Rows) {
		return report.Observation{}, false
	}
	return m.table.Rows[m.selectedIndex], true
}

func (m *reportsModel) prepareDeleteCmd() tea.Cmd {
	obs, ok := m.selected()
	if !ok {
		m.status = "nothing selected"
		return nil
	}
	return func() tea.Msg {
		prompt, err := m.controller.PrepareDelete(m.ctx, obs.ID)
		return deletePreparedMsg{prompt: prompt, err: err}
	}
}

func (m *reportsModel) deleteCmd(prompt reporttable.DeletePrompt) tea.Cmd {
	return func() tea.Msg {
		err := m.controller.ConfirmDelete(m.ctx, prompt)
		return actionDoneMsg{action: "delete", result: fmt.Sprintf("#%d", prompt.ObservationID), err: err}
	}
}

func (m *reportsModel) exportCmd(format string) tea.Cmd {
	snapshot := *m.table
	name := filepath.Join(m.exportDir, fmt.Sprintf("observations-page%d.%s", snapshot.Page(), format))
	return func() tea.Msg {
		file, err := os.Create(name)
		if err != nil {
			return actionDoneMsg{action: "export", err: err}
		}
		if format == "csv" {
			err = snapshot.ExportCSV(file)
		} else {
			err = snapshot.ExportXLSX(file)
		}
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		return actionDoneMsg{action: "export", result: name, err: err}
	}
}

func (m *reportsModel) appendActivity(line string) {
	m.activity = append(m.activity, time.Now().Format("15:04:05")+" "+line)
	if len(m.activity) > maxActivityLines {
		m.activity = m.activity[len(m.activity)-maxActivityLines:]
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
