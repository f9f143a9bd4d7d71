package httpapi

import (
	"net/http"

	"safetyportal/internal/usecase/reportform"
)

// readPlanDraft decodes an action plan document with its optional "image"
// file.
func (s *Server) readPlanDraft(w http.ResponseWriter, r *http.Request) (reportform.ActionPlanDraft, error) {
	var draft reportform.ActionPlanDraft
	form, err := s.readPayload(w, r, &draft)
	if err != nil {
		return reportform.ActionPlanDraft{}, err
	}
	// Stored keys only come from uploads.
	draft.ImageKey = ""
	if draft.Image, err = uploadFrom(form, "image"); err != nil {
		return reportform.ActionPlanDraft{}, err
	}
	return draft, nil
}

func (s *Server) addActionPlan(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	draft, err := s.readPlanDraft(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := s.deps.Edit.AddActionPlan(r.Context(), id, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.actionPlanView(plan))
}

func (s *Server) editActionPlan(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	planID, err := idParam(r, "planID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	draft, err := s.readPlanDraft(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := s.deps.Edit.EditActionPlan(r.Context(), id, planID, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.actionPlanView(plan))
}

func (s *Server) deleteActionPlan(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	planID, err := idParam(r, "planID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Edit.DeleteActionPlan(r.Context(), id, planID, confirmed(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
