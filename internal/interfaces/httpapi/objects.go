package httpapi

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"safetyportal/internal/errs"
)

// publicObject streams a stored object at its public URL. Only the two image
// buckets are served.
func (s *Server) publicObject(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	if bucket != s.deps.Buckets.Observation && bucket != s.deps.Buckets.ActionPlan {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown bucket"})
		return
	}
	if key == "" {
		writeError(w, r, errs.Wrap(errMalformed, "object key is required"))
		return
	}

	body, contentType, err := s.deps.Storage.Open(r.Context(), bucket, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer body.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}
