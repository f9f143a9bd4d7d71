package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"safetyportal/internal/bootstrap"
	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
	"safetyportal/internal/usecase/reporttable"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List, inspect, export and delete observations",
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print one page of observations",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		table, err := tableFromFlags(cmd, app)
		if err != nil {
			return err
		}

		out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(out, "ID\tDATE\tPROJECT\tCOMPANY\tSUBMITTER\tSEVERITY\tLIKELIHOOD\tRISK\tSTATUS")
		for _, obs := range table.Rows {
			fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%d %s\t%s\n",
				obs.ID, obs.Date, obs.ProjectName, obs.CompanyName, obs.SubmitterName,
				obs.Consequence, obs.Likelihood, obs.RiskScore(), obs.RiskBand(), obs.Status)
		}
		fmt.Fprintf(out, "\npage %d/%d, %d observations\n", table.Page(), max(1, table.TotalPages()), table.Total)
		return errs.Wrap(out.Flush(), "write report list")
	}),
}

var reportShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one observation with its categories and action plans",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		id, err := parseObservationID(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		detail, err := app.PDF.LoadDetail(cmd.Context(), id)
		if err != nil {
			return err
		}
		return errs.Wrap(printDetail(cmd.OutOrStdout(), detail), "write report detail")
	}),
}

var reportDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an observation with its action plans and category links",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		id, err := parseObservationID(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		prompt, err := app.Table.PrepareDelete(ctx, id)
		if err != nil {
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n(%d action plans, %d categories) rerun with --yes to delete\n",
				prompt.Summary, prompt.ActionPlans, prompt.Categories)
			return report.ErrConfirmationRequired
		}
		if err := app.Table.ConfirmDelete(ctx, prompt); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted observation #%d\n", id)
		return nil
	}),
}

var reportExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the selected page to a spreadsheet",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")

		table, err := tableFromFlags(cmd, app)
		if err != nil {
			return err
		}

		var export func(io.Writer) error
		switch strings.ToLower(format) {
		case "xlsx":
			export = table.ExportXLSX
		case "csv":
			export = table.ExportCSV
		default:
			return fmt.Errorf("unsupported export format %q", format)
		}
		if outPath == "" {
			outPath = fmt.Sprintf("observations-page-%d.%s", table.Page(), strings.ToLower(format))
		}
		if err := writeFile(outPath, export); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(table.Rows), outPath)
		return nil
	}),
}

var reportPDFCmd = &cobra.Command{
	Use:   "pdf <id>",
	Short: "Render one observation to a PDF file",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		id, err := parseObservationID(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		outPath, _ := cmd.Flags().GetString("out")
		if outPath == "" {
			outPath = fmt.Sprintf("observation-%d.pdf", id)
		}
		if err := writeFile(outPath, func(w io.Writer) error { return app.PDF.Export(ctx, id, w) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outPath)
		return nil
	}),
}

func tableFromFlags(cmd *cobra.Command, app *bootstrap.App) (*reporttable.Table, error) {
	flags := cmd.Flags()
	from, _ := flags.GetString("from")
	to, _ := flags.GetString("to")
	status, _ := flags.GetString("status")
	severity, _ := flags.GetString("severity")
	sortBy, _ := flags.GetString("sort")
	dir, _ := flags.GetString("dir")
	page, _ := flags.GetInt("page")

	table := app.Table.NewTable()
	filter, err := reporttable.NewFilter(from, to, status, severity)
	if err != nil {
		return nil, err
	}
	if err := table.SetFilter(filter); err != nil {
		return nil, err
	}
	if err := table.SetSort(strings.TrimSpace(sortBy), ports.SortDirection(strings.ToLower(dir))); err != nil {
		return nil, err
	}
	table.RequestPage(page)
	if err := app.Table.Load(cmd.Context(), table); err != nil {
		return nil, err
	}
	return table, nil
}

func parseObservationID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid observation id %q", raw)
	}
	return id, nil
}

// writeFile creates path and removes it again when write fails.
func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrapf(err, "create directory %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return errs.Wrapf(f.Close(), "close %s", path)
}

func printDetail(w io.Writer, d report.Detail) error {
	obs := d.Observation
	out := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(out, "Observation\t#%d\n", obs.ID)
	fmt.Fprintf(out, "Project\t%s\n", obs.ProjectName)
	fmt.Fprintf(out, "Company\t%s\n", obs.CompanyName)
	fmt.Fprintf(out, "Submitter\t%s\n", obs.SubmitterName)
	fmt.Fprintf(out, "When\t%s %s\n", obs.Date, obs.Time)
	fmt.Fprintf(out, "Location\t%s\n", obs.Location)
	fmt.Fprintf(out, "Subject\t%s\n", obs.Subject)
	fmt.Fprintf(out, "Risk\t%s x %s = %d (%s)\n", obs.Consequence, obs.Likelihood, obs.RiskScore(), obs.RiskBand())
	fmt.Fprintf(out, "Status\t%s\n", obs.Status)
	names := make([]string, 0, len(d.Categories))
	for _, c := range d.Categories {
		names = append(names, c.Name)
	}
	fmt.Fprintf(out, "Categories\t%s\n", strings.Join(names, ", "))
	fmt.Fprintf(out, "Description\t%s\n", obs.Description)
	if err := out.Flush(); err != nil {
		return err
	}

	if len(d.ActionPlans) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	plans := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(plans, "PLAN\tACTION\tDUE\tRESPONSIBLE\tSTATUS")
	for _, p := range d.ActionPlans {
		fmt.Fprintf(plans, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Action, p.DueDate, p.ResponsiblePerson, p.Status)
	}
	return plans.Flush()
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportListCmd, reportShowCmd, reportDeleteCmd, reportExportCmd, reportPDFCmd)

	for _, c := range []*cobra.Command{reportListCmd, reportExportCmd} {
		c.Flags().Int("page", 1, "Page number")
		c.Flags().String("from", "", "Earliest date, YYYY-MM-DD")
		c.Flags().String("to", "", "Latest date, YYYY-MM-DD")
		c.Flags().String("status", "", "Filter by status (open, closed)")
		c.Flags().String("severity", "", "Filter by consequence level")
		c.Flags().String("sort", "", "Sort column")
		c.Flags().String("dir", "asc", "Sort direction (asc, desc)")
	}
	reportDeleteCmd.Flags().Bool("yes", false, "Delete without asking")
	reportExportCmd.Flags().String("format", "xlsx", "Export format (xlsx, csv)")
	reportExportCmd.Flags().String("out", "", "Output file")
	reportPDFCmd.Flags().String("out", "", "Output file")
}
