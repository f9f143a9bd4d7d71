// Package reporttable drives the paginated, filterable, sortable list of
// observations and its delete and export actions.
package reporttable

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/ports"
)

const DefaultPageSize = 10

// SortableColumns lists the columns a table can be ordered by.
var SortableColumns = []string{"date", "created_at", "submitter", "consequences", "likelihood", "status", "project", "company"}

// Table is the view state of one list plus the page last loaded for it.
type Table struct {
	page     int
	pageSize int
	filter   ports.ObservationFilter
	sort     ports.SortSpec

	Rows  []report.Observation
	Total int64
}

func NewTable(pageSize int) *Table {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Table{page: 1, pageSize: pageSize}
}

func (t *Table) Page() int                       { return t.page }
func (t *Table) PageSize() int                   { return t.pageSize }
func (t *Table) Filter() ports.ObservationFilter { return t.filter }
func (t *Table) Sort() ports.SortSpec            { return t.sort }

// TotalPages is ceil(Total/PageSize).
func (t *Table) TotalPages() int {
	if t.Total <= 0 {
		return 0
	}
	size := int64(t.pageSize)
	return int((t.Total + size - 1) / size)
}

// SetPage moves to page n, clamped to [1, max(1, TotalPages)].
func (t *Table) SetPage(n int) {
	t.page = min(max(n, 1), max(1, t.TotalPages()))
}

// RequestPage asks for page n before the total is known. Load clamps it to
// the last page.
func (t *Table) RequestPage(n int) {
	t.page = max(n, 1)
}

func (t *Table) NextPage() { t.SetPage(t.page + 1) }
func (t *Table) PrevPage() { t.SetPage(t.page - 1) }

// SetFilter replaces the filters and returns to the first page.
func (t *Table) SetFilter(filter ports.ObservationFilter) error {
	if err := CheckFilter(filter); err != nil {
		return err
	}
	t.filter = filter
	t.page = 1
	return nil
}

// ToggleSort orders by column: the same column flips asc and desc, a new
// column starts ascending. The page returns to 1.
func (t *Table) ToggleSort(column string) error {
	column = strings.TrimSpace(column)
	if !slices.Contains(SortableColumns, column) {
		return fmt.Errorf("%w: %q", report.ErrInvalidSort, column)
	}
	if t.sort.Column == column && t.sort.Direction == ports.SortAsc {
		t.sort.Direction = ports.SortDesc
	} else {
		t.sort = ports.SortSpec{Column: column, Direction: ports.SortAsc}
	}
	t.page = 1
	return nil
}

// SetSort orders by column and direction directly, for stateless callers.
func (t *Table) SetSort(column string, direction ports.SortDirection) error {
	if column == "" {
		t.sort = ports.SortSpec{}
		return nil
	}
	if !slices.Contains(SortableColumns, column) {
		return fmt.Errorf("%w: %q", report.ErrInvalidSort, column)
	}
	switch direction {
	case "":
		direction = ports.SortAsc
	case ports.SortAsc, ports.SortDesc:
	default:
		return fmt.Errorf("%w: direction %q", report.ErrInvalidSort, direction)
	}
	t.sort = ports.SortSpec{Column: column, Direction: direction}
	t.page = 1
	return nil
}

// Query is the repository read for the current state.
func (t *Table) Query() ports.ObservationQuery {
	return ports.ObservationQuery{
		Filter: t.filter,
		Sort:   t.sort,
		Offset: (t.page - 1) * t.pageSize,
		Limit:  t.pageSize,
	}
}

// NewFilter builds a filter from raw query values. Empty values do not filter.
func NewFilter(from, to, status, severity string) (ports.ObservationFilter, error) {
	filter := ports.ObservationFilter{
		DateFrom: strings.TrimSpace(from),
		DateTo:   strings.TrimSpace(to),
	}
	if s := strings.TrimSpace(status); s != "" {
		parsed, err := report.ParseStatus(s)
		if err != nil {
			return ports.ObservationFilter{}, fmt.Errorf("%w: %w", report.ErrInvalidFilter, err)
		}
		filter.Status = parsed
	}
	if s := strings.TrimSpace(severity); s != "" {
		parsed, err := report.ParseConsequence(s)
		if err != nil {
			return ports.ObservationFilter{}, fmt.Errorf("%w: %w", report.ErrInvalidFilter, err)
		}
		filter.Severity = parsed
	}
	return filter, CheckFilter(filter)
}

func CheckFilter(filter ports.ObservationFilter) error {
	for _, date := range []string{filter.DateFrom, filter.DateTo} {
		if date == "" {
			continue
		}
		if _, err := time.Parse(report.DateLayout, date); err != nil {
			return fmt.Errorf("%w: date %q", report.ErrInvalidFilter, date)
		}
	}
	if filter.DateFrom != "" && filter.DateTo != "" && filter.DateFrom > filter.DateTo {
		return fmt.Errorf("%w: from %s is after to %s", report.ErrInvalidFilter, filter.DateFrom, filter.DateTo)
	}
	if filter.Status != "" {
		if _, err := report.ParseStatus(string(filter.Status)); err != nil {
			return fmt.Errorf("%w: %w", report.ErrInvalidFilter, err)
		}
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		return fmt.Errorf("%w: severity %q", report.ErrInvalidFilter, filter.Severity)
	}
	return nil
}
