package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/domain/report"
	"safetyportal/internal/infrastructure/auth"
	"safetyportal/internal/ports"
)

// authenticate verifies the bearer token and resolves its subject against the
// users table. Unknown users are rejected like bad tokens.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r)
		if token == "" || s.deps.Tokens == nil {
			writeError(w, r, report.ErrUnauthenticated)
			return
		}
		email, err := s.deps.Tokens.Verify(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		user, err := s.deps.Users.GetUserByEmail(r.Context(), email)
		if errors.Is(err, report.ErrUserNotFound) {
			writeError(w, r, report.ErrUnauthenticated)
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := ports.WithUser(r.Context(), user)
		ctx = logging.WithRequest(ctx, middleware.GetReqID(ctx), user.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type userView struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func toUserView(u report.User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role)}
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user, ok := ports.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, report.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}
