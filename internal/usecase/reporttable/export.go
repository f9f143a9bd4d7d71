package reporttable

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
)

// ExportColumns is the header row of every export.
var ExportColumns = []string{
	"ID", "Date", "Time", "Project", "Company", "Submitter", "Location", "Subject",
	"Report Group", "Severity", "Likelihood", "Risk", "Status", "Has Action Plan", "Created At",
}

const exportSheet = "Observations"

func exportRow(obs report.Observation) []string {
	hasPlan := "No"
	if obs.HasActionPlan {
		hasPlan = "Yes"
	}
	created := ""
	if !obs.CreatedAt.IsZero() {
		created = obs.CreatedAt.UTC().Format(report.DateLayout)
	}
	return []string{
		strconv.FormatUint(obs.ID, 10),
		obs.Date,
		obs.Time,
		obs.ProjectName,
		obs.CompanyName,
		obs.SubmitterName,
		obs.Location,
		string(obs.Subject),
		obs.ReportGroup,
		string(obs.Consequence),
		string(obs.Likelihood),
		strconv.Itoa(obs.RiskScore()) + " " + string(obs.RiskBand()),
		string(obs.Status),
		hasPlan,
		created,
	}
}

// ExportCSV writes the loaded page as CSV.
func (t *Table) ExportCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return errs.Wrap(err, "write csv header")
	}
	for _, obs := range t.Rows {
		if err := cw.Write(exportRow(obs)); err != nil {
			return errs.Wrapf(err, "write csv row %d", obs.ID)
		}
	}
	cw.Flush()
	return errs.Wrap(cw.Error(), "flush csv")
}

// ExportXLSX writes the loaded page as a single-sheet workbook.
func (t *Table) ExportXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return errs.Wrap(err, "name sheet")
	}

	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return errs.Wrap(err, "open sheet writer")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errs.Wrap(err, "header style")
	}

	header := make([]any, len(ExportColumns))
	for i, col := range ExportColumns {
		header[i] = excelize.Cell{StyleID: bold, Value: col}
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{}); err != nil {
		return errs.Wrap(err, "write header")
	}

	for i, obs := range t.Rows {
		values := exportRow(obs)
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		row[0] = obs.ID
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errs.Wrap(err, "cell name")
		}
		if err := sw.SetRow(cell, row); err != nil {
			return errs.Wrapf(err, "write row %d", obs.ID)
		}
	}
	if err := sw.Flush(); err != nil {
		return errs.Wrap(err, "flush sheet")
	}

	_, err = f.WriteTo(w)
	return errs.Wrap(err, "write workbook")
}
