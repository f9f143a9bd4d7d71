package httpapi

import (
	"time"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/ports"
)

type observationView struct {
	ID            uint64    `json:"id"`
	ProjectID     uint64    `json:"project_id"`
	ProjectName   string    `json:"project_name"`
	CompanyID     uint64    `json:"company_id"`
	CompanyName   string    `json:"company_name"`
	SubmitterName string    `json:"submitter_name"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Location      string    `json:"location"`
	Description   string    `json:"description"`
	Subject       string    `json:"subject"`
	ReportGroup   string    `json:"report_group"`
	Consequences  string    `json:"consequences"`
	Likelihood    string    `json:"likelihood"`
	RiskScore     int       `json:"risk_score"`
	RiskBand      string    `json:"risk_band"`
	Status        string    `json:"status"`
	HasActionPlan bool      `json:"has_action_plan"`
	ImageURL      string    `json:"image_url,omitempty"`
	Categories    []uint64  `json:"categories,omitempty"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type actionPlanView struct {
	ID                uint64    `json:"id"`
	ObservationID     uint64    `json:"observation_id"`
	Action            string    `json:"action"`
	DueDate           string    `json:"due_date"`
	ResponsiblePerson string    `json:"responsible_person"`
	FollowUpContact   string    `json:"follow_up_contact"`
	Status            string    `json:"status"`
	ImageURL          string    `json:"image_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type referenceView struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// imageURL renders a stored image reference the way clients load it.
func imageURL(storage ports.ObjectStorage, bucket, ref string) string {
	if report.ClassifyImageRef(ref) == report.ImageKindStorageKey {
		return storage.PublicURL(bucket, ref)
	}
	return ref
}

func (s *Server) observationView(obs report.Observation) observationView {
	return observationView{
		ID:            obs.ID,
		ProjectID:     obs.ProjectID,
		ProjectName:   obs.ProjectName,
		CompanyID:     obs.CompanyID,
		CompanyName:   obs.CompanyName,
		SubmitterName: obs.SubmitterName,
		Date:          obs.Date,
		Time:          obs.Time,
		Location:      obs.Location,
		Description:   obs.Description,
		Subject:       string(obs.Subject),
		ReportGroup:   obs.ReportGroup,
		Consequences:  string(obs.Consequence),
		Likelihood:    string(obs.Likelihood),
		RiskScore:     obs.RiskScore(),
		RiskBand:      string(obs.RiskBand()),
		Status:        string(obs.Status),
		HasActionPlan: obs.HasActionPlan,
		ImageURL:      imageURL(s.deps.Storage, s.deps.Buckets.Observation, obs.ImageKey),
		Categories:    obs.CategoryIDs,
		CreatedBy:     obs.CreatedBy,
		CreatedAt:     obs.CreatedAt,
		UpdatedAt:     obs.UpdatedAt,
	}
}

func (s *Server) actionPlanView(plan report.ActionPlan) actionPlanView {
	return actionPlanView{
		ID:                plan.ID,
		ObservationID:     plan.ObservationID,
		Action:            plan.Action,
		DueDate:           plan.DueDate,
		ResponsiblePerson: plan.ResponsiblePerson,
		FollowUpContact:   plan.FollowUpContact,
		Status:            string(plan.Status),
		ImageURL:          imageURL(s.deps.Storage, s.deps.Buckets.ActionPlan, plan.ImageKey),
		CreatedAt:         plan.CreatedAt,
		UpdatedAt:         plan.UpdatedAt,
	}
}

func (s *Server) actionPlanViews(plans []report.ActionPlan) []actionPlanView {
	out := make([]actionPlanView, 0, len(plans))
	for _, plan := range plans {
		out = append(out, s.actionPlanView(plan))
	}
	return out
}
