package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
	"safetyportal/internal/usecase/reportedit"
	"safetyportal/internal/usecase/reportform"
	"safetyportal/internal/usecase/reporttable"
)

// submitRequest is the "report" document of a new observation. Image files
// travel as "image" and "action_plan_image_<n>", n indexing action_plans
// from 0.
type submitRequest struct {
	Observation        reportform.ObservationDraft  `json:"observation"`
	Categories         []uint64                     `json:"categories"`
	ActionPlans        []reportform.ActionPlanDraft `json:"action_plans"`
	ActionPlanRequired bool                         `json:"action_plan_required"`
}

func (s *Server) submitObservation(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	form, err := s.readPayload(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	submission := &reportform.Form{
		Observation:        req.Observation,
		Categories:         req.Categories,
		StagedPlans:        req.ActionPlans,
		ActionPlanRequired: req.ActionPlanRequired || req.Observation.HasActionPlan,
	}
	if submission.Image, err = uploadFrom(form, "image"); err != nil {
		writeError(w, r, err)
		return
	}
	for i := range submission.StagedPlans {
		submission.StagedPlans[i].ImageKey = ""
		if submission.StagedPlans[i].Image, err = uploadFrom(form, "action_plan_image_"+strconv.Itoa(i)); err != nil {
			writeError(w, r, err)
			return
		}
	}

	result, err := s.deps.Submit.Submit(r.Context(), submission)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type listResponse struct {
	Rows       []observationView `json:"rows"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
	Sort       string            `json:"sort,omitempty"`
	Dir        string            `json:"dir,omitempty"`
}

// loadTable reads the page described by the query string: page, status,
// severity, from, to, sort and dir.
func (s *Server) loadTable(r *http.Request) (*reporttable.Table, error) {
	q := r.URL.Query()
	table := s.deps.Table.NewTable()

	filter, err := reporttable.NewFilter(q.Get("from"), q.Get("to"), q.Get("status"), q.Get("severity"))
	if err != nil {
		return nil, err
	}
	if err := table.SetFilter(filter); err != nil {
		return nil, err
	}
	if err := table.SetSort(q.Get("sort"), ports.SortDirection(q.Get("dir"))); err != nil {
		return nil, err
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errs.Wrapf(errMalformed, "invalid page %q", raw)
		}
		table.RequestPage(page)
	}
	if err := s.deps.Table.Load(r.Context(), table); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *Server) listObservations(w http.ResponseWriter, r *http.Request) {
	table, err := s.loadTable(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows := make([]observationView, 0, len(table.Rows))
	for _, obs := range table.Rows {
		rows = append(rows, s.observationView(obs))
	}
	writeJSON(w, http.StatusOK, listResponse{
		Rows:       rows,
		Total:      table.Total,
		Page:       table.Page(),
		PageSize:   table.PageSize(),
		TotalPages: table.TotalPages(),
		Sort:       table.Sort().Column,
		Dir:        string(table.Sort().Direction),
	})
}

func (s *Server) exportXLSX(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", (*reporttable.Table).ExportXLSX)
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "csv", "text/csv; charset=utf-8", (*reporttable.Table).ExportCSV)
}

// export renders the loaded page into a buffer first so a failure can still
// be reported as JSON.
func (s *Server) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(*reporttable.Table, io.Writer) error) {
	table, err := s.loadTable(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := write(table, &buf); err != nil {
		writeError(w, r, errs.Wrap(err, "export observations"))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("observations-page-%d.%s", table.Page(), ext)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type sessionResponse struct {
	Observation observationView             `json:"observation"`
	Draft       reportform.ObservationDraft `json:"draft"`
	Categories  []uint64                    `json:"categories"`
	ActionPlans []actionPlanView            `json:"action_plans"`
}

func (s *Server) getObservation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	session, err := s.deps.Edit.Load(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Observation: s.observationView(session.Observation),
		Draft:       session.Draft,
		Categories:  session.Categories,
		ActionPlans: s.actionPlanViews(session.ActionPlans),
	})
}

func (s *Server) updateObservation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var changes reportedit.Changes
	form, err := s.readPayload(w, r, &changes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if changes.Image, err = uploadFrom(form, "image"); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.deps.Edit.Update(r.Context(), id, changes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.observationView(updated))
}

// deleteObservation answers 409 with the confirmation prompt unless
// confirm=true is passed.
func (s *Server) deleteObservation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	prompt, err := s.deps.Table.PrepareDelete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !confirmed(r) {
		writeJSON(w, http.StatusConflict, errorBody{Error: "confirm=true is required", Prompt: prompt})
		return
	}
	if err := s.deps.Table.ConfirmDelete(r.Context(), prompt); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) observationPDF(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := s.deps.PDF.Export(r.Context(), id, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", fmt.Sprintf("observation-%d.pdf", id)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
