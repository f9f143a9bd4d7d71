package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/usecase/refdata"
)

type lookupsResponse struct {
	Projects   []referenceView `json:"projects"`
	Companies  []referenceView `json:"companies"`
	Categories []referenceView `json:"categories"`
	Subjects   []string        `json:"subjects"`
}

func (s *Server) lookups(w http.ResponseWriter, r *http.Request) {
	lookups, err := s.deps.Refdata.LoadLookups(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := lookupsResponse{
		Projects:   make([]referenceView, 0, len(lookups.Projects)),
		Companies:  make([]referenceView, 0, len(lookups.Companies)),
		Categories: make([]referenceView, 0, len(lookups.Categories)),
	}
	for _, p := range lookups.Projects {
		resp.Projects = append(resp.Projects, referenceView{ID: p.ID, Name: p.Name})
	}
	for _, c := range lookups.Companies {
		resp.Companies = append(resp.Companies, referenceView{ID: c.ID, Name: c.Name})
	}
	for _, c := range lookups.Categories {
		resp.Categories = append(resp.Categories, referenceView{ID: c.ID, Name: c.Name, Icon: c.Icon})
	}
	for _, subject := range report.Subjects() {
		resp.Subjects = append(resp.Subjects, string(subject))
	}
	writeJSON(w, http.StatusOK, resp)
}

// refKind binds one reference table to its admin routes.
type refKind struct {
	path   string
	save   func(svc *refdata.Service, ctx context.Context, ref referenceView) (referenceView, error)
	delete func(svc *refdata.Service, ctx context.Context, id uint64) error
}

var refKinds = []refKind{
	{
		path: "projects",
		save: func(svc *refdata.Service, ctx context.Context, ref referenceView) (referenceView, error) {
			saved, err := svc.SaveProject(ctx, report.Project{ID: ref.ID, Name: ref.Name})
			return referenceView{ID: saved.ID, Name: saved.Name}, err
		},
		delete: (*refdata.Service).DeleteProject,
	},
	{
		path: "companies",
		save: func(svc *refdata.Service, ctx context.Context, ref referenceView) (referenceView, error) {
			saved, err := svc.SaveCompany(ctx, report.Company{ID: ref.ID, Name: ref.Name})
			return referenceView{ID: saved.ID, Name: saved.Name}, err
		},
		delete: (*refdata.Service).DeleteCompany,
	},
	{
		path: "categories",
		save: func(svc *refdata.Service, ctx context.Context, ref referenceView) (referenceView, error) {
			saved, err := svc.SaveCategory(ctx, report.Category{ID: ref.ID, Name: ref.Name, Icon: ref.Icon})
			return referenceView{ID: saved.ID, Name: saved.Name, Icon: saved.Icon}, err
		},
		delete: (*refdata.Service).DeleteCategory,
	},
}

// pathID returns the {id} route parameter, or 0 on create routes.
func pathID(r *http.Request) (uint64, error) {
	if chi.URLParam(r, "id") == "" {
		return 0, nil
	}
	return idParam(r, "id")
}

func createdOrOK(id uint64) int {
	if id == 0 {
		return http.StatusCreated
	}
	return http.StatusOK
}

func (s *Server) saveReference(kind refKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var ref referenceView
		if _, err := s.readPayload(w, r, &ref); err != nil {
			writeError(w, r, err)
			return
		}
		ref.ID = id
		saved, err := kind.save(s.deps.Refdata, r.Context(), ref)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, createdOrOK(id), saved)
	}
}

func (s *Server) deleteReference(kind refKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := kind.delete(s.deps.Refdata, r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Refdata.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, toUserView(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) saveUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in userView
	if _, err := s.readPayload(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.deps.Refdata.SaveUser(r.Context(), report.User{ID: id, Email: in.Email, Name: in.Name, Role: report.Role(in.Role)})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, createdOrOK(id), toUserView(saved))
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Refdata.DeleteUser(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
