package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"safetyportal/internal/bootstrap/config"
	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/errs"
	"safetyportal/internal/infrastructure/auth"
	"safetyportal/internal/infrastructure/persistence/relational/model"
	"safetyportal/internal/interfaces/httpapi"
	"safetyportal/internal/ports"
	"safetyportal/internal/usecase/pdfexport"
	"safetyportal/internal/usecase/refdata"
	"safetyportal/internal/usecase/reportedit"
	"safetyportal/internal/usecase/reportform"
	"safetyportal/internal/usecase/reporttable"
)

// App is everything a command needs once the container has started.
type App struct {
	Config config.Config
	DB     *gorm.DB

	Users   ports.UserRepository
	Tokens  *auth.TokenService
	Submit  *reportform.Service
	Edit    *reportedit.Service
	Table   *reporttable.Controller
	Refdata *refdata.Service
	PDF     *pdfexport.Exporter
	HTTP    *httpapi.Server
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}
