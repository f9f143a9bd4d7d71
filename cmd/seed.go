package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"safetyportal/internal/bootstrap"
	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/errs"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.toml>",
	Short: "Import projects, companies, categories and users from a TOML seed file",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		path := cmd.Flags().Arg(0)

		summary, err := app.Refdata.ImportSeed(ctx, path)
		if err != nil {
			return errs.Wrapf(err, "import seed %s", path)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "seeded projects=%d companies=%d categories=%d users=%d\n",
			summary.Projects, summary.Companies, summary.Categories, summary.Users); err != nil {
			return errs.Wrap(err, "write seed output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
