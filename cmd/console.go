package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"safetyportal/internal/bootstrap"
	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/errs"
	"safetyportal/internal/usecase/reportsconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Terminal console commands",
}

var consoleReportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Browse, sort, filter, export and delete observations",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		exportDir, _ := cmd.Flags().GetString("export-dir")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 10 * time.Second
		}

		model := reportsconsole.NewReportsModel(ctx, app.Table, reportsconsole.Options{
			ExportDir:       exportDir,
			RefreshInterval: refreshInterval,
		})
		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run reports console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.AddCommand(consoleReportsCmd)
	consoleReportsCmd.Flags().String("export-dir", ".", "Directory spreadsheet exports are written to")
	consoleReportsCmd.Flags().Duration("refresh-interval", 10*time.Second, "Auto refresh interval")
}
