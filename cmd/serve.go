package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"safetyportal/internal/bootstrap"
	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/errs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the portal API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		if app.Tokens == nil {
			return errors.New("auth.jwt_secret is required to serve the API")
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}
		seedFile, _ := cmd.Flags().GetString("watch-seed")

		server := &http.Server{
			Addr:              addr,
			Handler:           app.HTTP.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext: func(_ net.Listener) context.Context {
				return ctx
			},
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logging.Info(ctx, "http server listening", slog.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errs.Wrap(err, "listen and serve")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			logging.Info(ctx, "http server shutting down")
			return errs.Wrap(server.Shutdown(shutdownCtx), "shutdown http server")
		})
		if seedFile != "" {
			g.Go(func() error {
				return app.Refdata.WatchSeed(gctx, seedFile, 500*time.Millisecond)
			})
		}
		return g.Wait()
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (defaults to http.addr)")
	serveCmd.Flags().String("watch-seed", "", "Re-import this TOML seed file whenever it changes")
}
