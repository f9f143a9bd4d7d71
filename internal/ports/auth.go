package ports

import (
	"context"

	"safetyportal/internal/domain/report"
)

// Authenticator resolves the acting user, or report.ErrUnauthenticated.
type Authenticator interface {
	CurrentUser(ctx context.Context) (report.User, error)
}

type userKey struct{}

func WithUser(ctx context.Context, user report.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func UserFromContext(ctx context.Context) (report.User, bool) {
	if ctx == nil {
		return report.User{}, false
	}
	user, ok := ctx.Value(userKey{}).(report.User)
	return user, ok && user.Email != ""
}

// ContextAuthenticator reads the user placed in the context by the transport.
type ContextAuthenticator struct{}

func (ContextAuthenticator) CurrentUser(ctx context.Context) (report.User, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return report.User{}, report.ErrUnauthenticated
	}
	return user, nil
}
