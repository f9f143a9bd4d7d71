package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"safetyportal/internal/bootstrap"
	"safetyportal/internal/errs"
)

var tokenCmd = &cobra.Command{
	Use:   "token <email>",
	Short: "Mint a bearer token for an existing user",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		if app.Tokens == nil {
			return errors.New("auth.jwt_secret is required to mint tokens")
		}
		user, err := app.Users.GetUserByEmail(cmd.Context(), cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "find user")
		}
		token, expiresAt, err := app.Tokens.Mint(user)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\n# %s (%s) expires %s\n",
			token, user.Email, user.Role, expiresAt.Format(time.RFC3339)); err != nil {
			return errs.Wrap(err, "write token output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
