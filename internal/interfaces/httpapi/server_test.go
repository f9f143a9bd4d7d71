package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/infrastructure/auth"
	"safetyportal/internal/infrastructure/cache"
	"safetyportal/internal/infrastructure/metrics"
	"safetyportal/internal/infrastructure/persistence/relational/repository"
	"safetyportal/internal/infrastructure/persistence/relational/uow"
	"safetyportal/internal/infrastructure/storage"
	"safetyportal/internal/ports"
	"safetyportal/internal/testutil/dbtest"
	"safetyportal/internal/testutil/fakes"
	"safetyportal/internal/usecase/pdfexport"
	"safetyportal/internal/usecase/refdata"
	"safetyportal/internal/usecase/reportedit"
	"safetyportal/internal/usecase/reportform"
	"safetyportal/internal/usecase/reporttable"
)

var buckets = ports.Buckets{Observation: "observation-images", ActionPlan: "action-plan-images"}

type apiFixture struct {
	srv      *httptest.Server
	objects  *storage.MemoryStore
	events   *fakes.Publisher
	plans    *repository.ActionPlanRepository
	admin    string
	worker   string
	project  report.Project
	company  report.Company
	category report.Category
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	db := dbtest.Open(t)
	ctx := context.Background()

	observations := repository.NewObservationRepository(db)
	plans := repository.NewActionPlanRepository(db)
	links := repository.NewCategoryLinkRepository(db)
	refs := repository.NewReferenceRepository(db)
	users := repository.NewUserRepository(db)
	unit := uow.NewUnitOfWork(db)

	f := &apiFixture{
		objects: storage.NewMemoryStore("http://portal.test"),
		events:  &fakes.Publisher{},
		plans:   plans,
	}

	tokens, err := auth.NewTokenService("test-secret", "safetyportal", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	for _, u := range []report.User{
		{Email: "admin@example.com", Name: "Ada", Role: report.RoleAdmin},
		{Email: "worker@example.com", Name: "Wes", Role: report.RoleUser},
	} {
		stored, err := users.UpsertUserByEmail(ctx, u)
		if err != nil {
			t.Fatalf("upsert user: %v", err)
		}
		token, _, err := tokens.Mint(stored)
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		if stored.IsAdmin() {
			f.admin = token
		} else {
			f.worker = token
		}
	}
	f.project, _ = refs.UpsertProjectByName(ctx, "North Tower")
	f.company, _ = refs.UpsertCompanyByName(ctx, "Acme Builders")
	f.category, _ = refs.UpsertCategoryByName(ctx, "Falls", "fall")

	prom := metrics.NewPrometheus()
	authn := ports.ContextAuthenticator{}
	resolver := pdfexport.NewResolver(f.objects, nil, pdfexport.NewImageCache(cache.NewMemoryCache(), prom), 0)

	server := NewServer(Deps{
		Users:   users,
		Tokens:  tokens,
		Storage: f.objects,
		Buckets: buckets,
		Metrics: prom,
		Submit:  reportform.NewService(observations, plans, links, f.objects, authn, f.events, prom, buckets),
		Edit:    reportedit.NewService(observations, plans, links, unit, f.objects, f.events, buckets),
		Table:   reporttable.NewController(observations, plans, links, f.events, 10),
		Refdata: refdata.NewService(refs, users, unit, authn),
		PDF:     pdfexport.NewExporter(observations, plans, links, refs, pdfexport.NewRenderer(resolver, buckets)),

		AllowedOrigins: []string{"http://localhost:5173"},
	})
	f.srv = httptest.NewServer(server.Routes())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *apiFixture) doJSON(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	return f.do(t, method, path, token, body, "application/json")
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status = %d, want %d; body %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, raw)
	}
}

func (f *apiFixture) draft() reportform.ObservationDraft {
	return reportform.ObservationDraft{
		ProjectID:     f.project.ID,
		CompanyID:     f.company.ID,
		SubmitterName: "Dana",
		Date:          "2024-03-01",
		Time:          "09:30",
		Location:      "Level 3",
		Description:   "Open edge without guardrail",
		ReportGroup:   "Site",
		Consequence:   "major",
		Likelihood:    "likely",
		Subject:       "unsafe-condition",
	}
}

func (f *apiFixture) submit(t *testing.T, req submitRequest) reportform.SubmitResult {
	t.Helper()
	resp := f.doJSON(t, http.MethodPost, "/api/observations", f.worker, req)
	expectStatus(t, resp, http.StatusCreated)
	var result reportform.SubmitResult
	decode(t, resp, &result)
	return result
}

func plan(action string) reportform.ActionPlanDraft {
	return reportform.ActionPlanDraft{Action: action, DueDate: "2024-04-01", ResponsiblePerson: "Sam", FollowUpContact: "Lee"}
}

func TestHealthAndAuthentication(t *testing.T) {
	f := setupAPI(t)

	expectStatus(t, f.do(t, http.MethodGet, "/healthz", "", nil, ""), http.StatusOK)
	expectStatus(t, f.do(t, http.MethodGet, "/api/me", "", nil, ""), http.StatusUnauthorized)
	expectStatus(t, f.do(t, http.MethodGet, "/api/me", "not-a-token", nil, ""), http.StatusUnauthorized)

	resp := f.do(t, http.MethodGet, "/api/me", f.worker, nil, "")
	expectStatus(t, resp, http.StatusOK)
	var me userView
	decode(t, resp, &me)
	if me.Email != "worker@example.com" || me.Role != "user" {
		t.Fatalf("me = %+v", me)
	}
}

func TestSubmitListAndLoad(t *testing.T) {
	f := setupAPI(t)
	result := f.submit(t, submitRequest{
		Observation: f.draft(),
		Categories:  []uint64{f.category.ID},
		ActionPlans: []reportform.ActionPlanDraft{plan("Fit guardrail")},
	})
	if result.ObservationID == 0 || result.Partial {
		t.Fatalf("submit result = %+v", result)
	}

	resp := f.do(t, http.MethodGet, "/api/observations?status=open", f.worker, nil, "")
	expectStatus(t, resp, http.StatusOK)
	var list listResponse
	decode(t, resp, &list)
	if list.Total != 1 || len(list.Rows) != 1 || list.TotalPages != 1 {
		t.Fatalf("list = %+v", list)
	}
	row := list.Rows[0]
	if row.ProjectName != "North Tower" || row.RiskScore != 9 || row.RiskBand != "high" || !row.HasActionPlan {
		t.Fatalf("row = %+v", row)
	}

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/observations/%d", result.ObservationID), f.worker, nil, "")
	expectStatus(t, resp, http.StatusOK)
	var session sessionResponse
	decode(t, resp, &session)
	if len(session.ActionPlans) != 1 || session.ActionPlans[0].ObservationID != result.ObservationID {
		t.Fatalf("action plans = %+v", session.ActionPlans)
	}
	if len(session.Categories) != 1 || session.Categories[0] != f.category.ID {
		t.Fatalf("categories = %v", session.Categories)
	}
	if session.Draft.Location != "Level 3" || session.Draft.Consequence != "major" {
		t.Fatalf("draft = %+v", session.Draft)
	}

	if len(f.events.Subjects()) != 1 || f.events.Subjects()[0] != ports.EventObservationCreated {
		t.Fatalf("events = %v", f.events.Subjects())
	}
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	f := setupAPI(t)
	draft := f.draft()
	draft.Location = ""
	resp := f.doJSON(t, http.MethodPost, "/api/observations", f.worker, submitRequest{Observation: draft})
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	var body errorBody
	decode(t, resp, &body)
	if body.Fields["location"] == "" || body.Fields["categories"] == "" {
		t.Fatalf("fields = %v", body.Fields)
	}
}

func TestSubmitMalformedBody(t *testing.T) {
	f := setupAPI(t)
	resp := f.do(t, http.MethodPost, "/api/observations", f.worker, strings.NewReader("{"), "application/json")
	expectStatus(t, resp, http.StatusBadRequest)
}

func imagePart(t *testing.T, mw *multipart.Writer, field, name, contentType string, data []byte) {
	t.Helper()
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
}

func TestMultipartSubmitStoresImagesAndServesThem(t *testing.T) {
	f := setupAPI(t)

	doc, _ := json.Marshal(submitRequest{
		Observation: f.draft(),
		Categories:  []uint64{f.category.ID},
		ActionPlans: []reportform.ActionPlanDraft{plan("Fit guardrail")},
	})
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField(payloadField, string(doc)); err != nil {
		t.Fatalf("write field: %v", err)
	}
	imagePart(t, mw, "image", "edge.png", "image/png", []byte("observation-png"))
	imagePart(t, mw, "action_plan_image_0", "rail.jpg", "image/jpeg", []byte("plan-jpg"))
	_ = mw.Close()

	resp := f.do(t, http.MethodPost, "/api/observations", f.worker, &body, mw.FormDataContentType())
	expectStatus(t, resp, http.StatusCreated)
	var result reportform.SubmitResult
	decode(t, resp, &result)

	keys := f.objects.Keys()
	if len(keys) != 2 {
		t.Fatalf("stored objects = %v", keys)
	}

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/observations/%d", result.ObservationID), f.worker, nil, "")
	var session sessionResponse
	decode(t, resp, &session)
	prefix := "http://portal.test/storage/v1/object/public/"
	if !strings.HasPrefix(session.Observation.ImageURL, prefix+"observation-images/") {
		t.Fatalf("observation image url = %q", session.Observation.ImageURL)
	}
	if !strings.HasPrefix(session.ActionPlans[0].ImageURL, prefix+"action-plan-images/") {
		t.Fatalf("plan image url = %q", session.ActionPlans[0].ImageURL)
	}

	path := strings.TrimPrefix(session.Observation.ImageURL, "http://portal.test")
	resp = f.do(t, http.MethodGet, path, "", nil, "")
	expectStatus(t, resp, http.StatusOK)
	raw, _ := io.ReadAll(resp.Body)
	if string(raw) != "observation-png" || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("object = %q (%s)", raw, resp.Header.Get("Content-Type"))
	}

	expectStatus(t, f.do(t, http.MethodGet, "/storage/v1/object/public/private/x.png", "", nil, ""), http.StatusNotFound)
	expectStatus(t, f.do(t, http.MethodGet, "/storage/v1/object/public/observation-images/missing.png", "", nil, ""), http.StatusNotFound)
}

func TestUpdateClosingCascadesToPlans(t *testing.T) {
	f := setupAPI(t)
	result := f.submit(t, submitRequest{
		Observation: f.draft(),
		Categories:  []uint64{f.category.ID},
		ActionPlans: []reportform.ActionPlanDraft{plan("Fit guardrail"), plan("Brief crew")},
	})

	draft := f.draft()
	draft.Status = "closed"
	resp := f.doJSON(t, http.MethodPut, fmt.Sprintf("/api/observations/%d", result.ObservationID), f.worker,
		reportedit.Changes{Observation: draft, Categories: []uint64{f.category.ID}})
	expectStatus(t, resp, http.StatusOK)
	var updated observationView
	decode(t, resp, &updated)
	if updated.Status != "closed" {
		t.Fatalf("status = %s", updated.Status)
	}

	plans, err := f.plans.ListActionPlans(context.Background(), result.ObservationID)
	if err != nil {
		t.Fatalf("ListActionPlans() error = %v", err)
	}
	for _, p := range plans {
		if p.Status != report.StatusClosed {
			t.Fatalf("plan %d status = %s, want closed", p.ID, p.Status)
		}
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	f := setupAPI(t)
	result := f.submit(t, submitRequest{
		Observation: f.draft(),
		Categories:  []uint64{f.category.ID},
		ActionPlans: []reportform.ActionPlanDraft{plan("Fit guardrail")},
	})
	path := fmt.Sprintf("/api/observations/%d", result.ObservationID)

	resp := f.do(t, http.MethodDelete, path, f.worker, nil, "")
	expectStatus(t, resp, http.StatusConflict)
	var body struct {
		Prompt reporttable.DeletePrompt `json:"prompt"`
	}
	decode(t, resp, &body)
	if body.Prompt.ObservationID != result.ObservationID || body.Prompt.ActionPlans != 1 || body.Prompt.Categories != 1 {
		t.Fatalf("prompt = %+v", body.Prompt)
	}
	expectStatus(t, f.do(t, http.MethodGet, path, f.worker, nil, ""), http.StatusOK)

	expectStatus(t, f.do(t, http.MethodDelete, path+"?confirm=true", f.worker, nil, ""), http.StatusNoContent)
	expectStatus(t, f.do(t, http.MethodGet, path, f.worker, nil, ""), http.StatusNotFound)
	plans, _ := f.plans.ListActionPlans(context.Background(), result.ObservationID)
	if len(plans) != 0 {
		t.Fatalf("plans left after delete: %d", len(plans))
	}
}

func TestActionPlanRoutes(t *testing.T) {
	f := setupAPI(t)
	result := f.submit(t, submitRequest{Observation: f.draft(), Categories: []uint64{f.category.ID}})
	base := fmt.Sprintf("/api/observations/%d/action-plans", result.ObservationID)

	resp := f.doJSON(t, http.MethodPost, base, f.worker, plan("Fit guardrail"))
	expectStatus(t, resp, http.StatusCreated)
	var created actionPlanView
	decode(t, resp, &created)

	edit := plan("Fit guardrail and toe board")
	resp = f.doJSON(t, http.MethodPut, fmt.Sprintf("%s/%d", base, created.ID), f.worker, edit)
	expectStatus(t, resp, http.StatusOK)
	var edited actionPlanView
	decode(t, resp, &edited)
	if edited.Action != "Fit guardrail and toe board" || edited.Status != "open" {
		t.Fatalf("edited = %+v", edited)
	}

	expectStatus(t, f.doJSON(t, http.MethodPost, base, f.worker, reportform.ActionPlanDraft{Action: "x"}), http.StatusUnprocessableEntity)
	expectStatus(t, f.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", base, created.ID), f.worker, nil, ""), http.StatusConflict)
	expectStatus(t, f.do(t, http.MethodDelete, fmt.Sprintf("%s/%d?confirm=1", base, created.ID), f.worker, nil, ""), http.StatusNoContent)
	expectStatus(t, f.do(t, http.MethodDelete, fmt.Sprintf("%s/%d?confirm=1", base, created.ID), f.worker, nil, ""), http.StatusNotFound)
}

func TestListRejectsBadQuery(t *testing.T) {
	f := setupAPI(t)
	for _, query := range []string{"severity=catastrophic", "sort=password", "sort=date&dir=sideways", "from=2024-05-01&to=2024-01-01", "page=two"} {
		resp := f.do(t, http.MethodGet, "/api/observations?"+query, f.worker, nil, "")
		if resp.StatusCode != http.StatusUnprocessableEntity && resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("query %q status = %d", query, resp.StatusCode)
		}
	}
}

func TestExportAndPDF(t *testing.T) {
	f := setupAPI(t)
	result := f.submit(t, submitRequest{
		Observation: f.draft(),
		Categories:  []uint64{f.category.ID},
		ActionPlans: []reportform.ActionPlanDraft{plan("Fit guardrail")},
	})

	resp := f.do(t, http.MethodGet, "/api/observations/export.csv", f.worker, nil, "")
	expectStatus(t, resp, http.StatusOK)
	raw, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "ID,") || !strings.Contains(lines[1], "major") {
		t.Fatalf("csv = %q", raw)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "observations-page-1.csv") {
		t.Fatalf("disposition = %q", resp.Header.Get("Content-Disposition"))
	}

	resp = f.do(t, http.MethodGet, "/api/observations/export.xlsx", f.worker, nil, "")
	expectStatus(t, resp, http.StatusOK)
	raw, _ = io.ReadAll(resp.Body)
	if !bytes.HasPrefix(raw, []byte("PK")) {
		t.Fatalf("xlsx is not a zip archive")
	}

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/observations/%d/pdf", result.ObservationID), f.worker, nil, "")
	expectStatus(t, resp, http.StatusOK)
	raw, _ = io.ReadAll(resp.Body)
	if resp.Header.Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(raw, []byte("%PDF")) {
		t.Fatalf("pdf content type %q, prefix %q", resp.Header.Get("Content-Type"), raw[:min(len(raw), 8)])
	}

	expectStatus(t, f.do(t, http.MethodGet, "/api/observations/999/pdf", f.worker, nil, ""), http.StatusNotFound)
}

func TestAdminRoutes(t *testing.T) {
	f := setupAPI(t)

	expectStatus(t, f.doJSON(t, http.MethodPost, "/api/admin/projects", f.worker, referenceView{Name: "South Yard"}), http.StatusForbidden)

	resp := f.doJSON(t, http.MethodPost, "/api/admin/projects", f.admin, referenceView{Name: "South Yard"})
	expectStatus(t, resp, http.StatusCreated)
	var created referenceView
	decode(t, resp, &created)

	resp = f.doJSON(t, http.MethodPut, fmt.Sprintf("/api/admin/projects/%d", created.ID), f.admin, referenceView{Name: "South Yard 2"})
	expectStatus(t, resp, http.StatusOK)

	resp = f.do(t, http.MethodGet, "/api/lookups", f.worker, nil, "")
	expectStatus(t, resp, http.StatusOK)
	var lookups lookupsResponse
	decode(t, resp, &lookups)
	if len(lookups.Projects) != 2 || lookups.Projects[1].Name != "South Yard 2" || len(lookups.Subjects) != 4 {
		t.Fatalf("lookups = %+v", lookups)
	}

	expectStatus(t, f.doJSON(t, http.MethodPost, "/api/admin/categories", f.admin, referenceView{Name: " "}), http.StatusUnprocessableEntity)
	expectStatus(t, f.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/projects/%d", created.ID), f.admin, nil, ""), http.StatusNoContent)

	resp = f.doJSON(t, http.MethodPost, "/api/admin/users", f.admin, userView{Email: "New@Example.com", Role: "admin"})
	expectStatus(t, resp, http.StatusCreated)
	var user userView
	decode(t, resp, &user)
	if user.Email != "new@example.com" || user.Role != "admin" {
		t.Fatalf("user = %+v", user)
	}
	expectStatus(t, f.do(t, http.MethodGet, "/api/admin/users", f.worker, nil, ""), http.StatusForbidden)
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	f := setupAPI(t)
	expectStatus(t, f.do(t, http.MethodGet, "/healthz", "", nil, ""), http.StatusOK)

	resp := f.do(t, http.MethodGet, "/metrics", "", nil, "")
	expectStatus(t, resp, http.StatusOK)
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), `safetyportal_http_requests_total{method="GET",route="/healthz",status="200"} 1`) {
		t.Fatalf("metrics output missing healthz counter:\n%s", raw)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{report.ErrObservationNotFound, http.StatusNotFound},
		{report.ErrConfirmationRequired, http.StatusConflict},
		{report.ErrEditInProgress, http.StatusConflict},
		{report.ErrForbidden, http.StatusForbidden},
		{report.ErrUnauthenticated, http.StatusUnauthorized},
		{report.ErrInvalidFilter, http.StatusUnprocessableEntity},
		{report.FieldErrors{"x": "y"}, http.StatusUnprocessableEntity},
		{ports.ErrObjectNotFound, http.StatusNotFound},
		{errMalformed, http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(fmt.Errorf("wrapped: %w", tc.err)); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
