package reportform

import (
	"fmt"
	"strings"

	"safetyportal/internal/domain/report"
)

// Upload is an image chosen by the user that is not stored yet.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// ObservationDraft holds the editable scalar fields of an observation.
type ObservationDraft struct {
	ProjectID     uint64 `json:"project_id" validate:"required"`
	CompanyID     uint64 `json:"company_id" validate:"required"`
	SubmitterName string `json:"submitter_name" validate:"required"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	Time          string `json:"time" validate:"required,datetime=15:04"`
	Location      string `json:"location" validate:"required"`
	Description   string `json:"description" validate:"required"`
	ReportGroup   string `json:"report_group" validate:"required"`
	Consequence   string `json:"consequences" validate:"required"`
	Likelihood    string `json:"likelihood" validate:"required"`
	Subject       string `json:"subject" validate:"required"`
	Status        string `json:"status,omitempty"`
	HasActionPlan bool   `json:"has_action_plan"`
}

// ActionPlanDraft is a corrective action before it is written. ImageKey keeps
// the stored image of an existing plan; Image replaces it.
type ActionPlanDraft struct {
	Action            string  `json:"action" validate:"required"`
	DueDate           string  `json:"due_date" validate:"required"`
	ResponsiblePerson string  `json:"responsible_person" validate:"required"`
	FollowUpContact   string  `json:"follow_up_contact" validate:"required"`
	Status            string  `json:"status,omitempty"`
	ImageKey          string  `json:"image_key,omitempty"`
	Image             *Upload `json:"-"`
}

// Form is the state of the new-report form.
type Form struct {
	Observation        ObservationDraft
	PendingPlan        ActionPlanDraft
	StagedPlans        []ActionPlanDraft
	Categories         []uint64
	Image              *Upload
	ActionPlanRequired bool
	ActionPlanFormOpen bool
	Errors             report.FieldErrors
}

const actionPlanErrorPrefix = "action_plan."

// Validate checks the whole form and stores the violations in f.Errors.
func (f *Form) Validate() error {
	f.Observation = f.Observation.normalized()

	errs := ValidateObservation(f.Observation)
	if len(f.Categories) == 0 {
		errs.Add("categories", "select at least one safety category")
	}
	if f.ActionPlanRequired && len(f.StagedPlans) == 0 {
		errs.Add("action_plans", "add at least one action plan")
	}
	if f.Image != nil {
		if msg := CheckUpload(f.Image); msg != "" {
			errs.Add("image", msg)
		}
	}
	for i := range f.StagedPlans {
		if f.StagedPlans[i].Image == nil {
			continue
		}
		if msg := CheckUpload(f.StagedPlans[i].Image); msg != "" {
			errs.Add(fmt.Sprintf("action_plans.%d.image", i), msg)
		}
	}

	f.Errors = errs
	return errs.Err()
}

// ValidateObservation checks presence of every required scalar and that the
// enumerated fields hold known values.
func ValidateObservation(draft ObservationDraft) report.FieldErrors {
	draft = draft.normalized()
	errs := structErrors(draft)

	if draft.Consequence != "" {
		if _, err := report.ParseConsequence(draft.Consequence); err != nil {
			errs.Add("consequences", "unknown consequence level")
		}
	}
	if draft.Likelihood != "" {
		if _, err := report.ParseLikelihood(draft.Likelihood); err != nil {
			errs.Add("likelihood", "unknown likelihood level")
		}
	}
	if draft.Subject != "" {
		if _, err := report.ParseSubject(draft.Subject); err != nil {
			errs.Add("subject", "unknown subject")
		}
	}
	if draft.Status != "" {
		if _, err := report.ParseStatus(draft.Status); err != nil {
			errs.Add("status", "unknown status")
		}
	}
	return errs
}

// ValidateActionPlan checks the four required action plan fields.
func ValidateActionPlan(draft ActionPlanDraft) report.FieldErrors {
	draft = draft.normalized()
	errs := structErrors(draft)
	if draft.Status != "" {
		if _, err := report.ParseStatus(draft.Status); err != nil {
			errs.Add("status", "unknown status")
		}
	}
	if draft.Image != nil {
		if msg := CheckUpload(draft.Image); msg != "" {
			errs.Add("image", msg)
		}
	}
	return errs
}

// OpenActionPlanForm shows the action plan sub-form with an empty draft.
func (f *Form) OpenActionPlanForm() {
	f.PendingPlan = ActionPlanDraft{}
	f.ActionPlanFormOpen = true
}

// SaveActionPlanDraft stages the pending plan. With addAnother the sub-form
// stays open for the next plan.
func (f *Form) SaveActionPlanDraft(addAnother bool) error {
	f.clearErrors(actionPlanErrorPrefix)

	draft := f.PendingPlan.normalized()
	planErrs := ValidateActionPlan(draft)
	if len(planErrs) > 0 {
		if f.Errors == nil {
			f.Errors = report.FieldErrors{}
		}
		for field, msg := range planErrs {
			f.Errors.Add(actionPlanErrorPrefix+field, msg)
		}
		return planErrs
	}

	f.StagedPlans = append(f.StagedPlans, draft)
	f.PendingPlan = ActionPlanDraft{}
	f.ActionPlanFormOpen = addAnother
	delete(f.Errors, "action_plans")
	return nil
}

// RemoveStagedActionPlan drops the staged plan at index i.
func (f *Form) RemoveStagedActionPlan(i int) error {
	if i < 0 || i >= len(f.StagedPlans) {
		return fmt.Errorf("staged action plan %d out of range [0,%d)", i, len(f.StagedPlans))
	}
	f.StagedPlans = append(f.StagedPlans[:i], f.StagedPlans[i+1:]...)
	return nil
}

func (f *Form) clearErrors(prefix string) {
	for field := range f.Errors {
		if strings.HasPrefix(field, prefix) {
			delete(f.Errors, field)
		}
	}
}

func (d ObservationDraft) normalized() ObservationDraft {
	d.SubmitterName = strings.TrimSpace(d.SubmitterName)
	d.Date = strings.TrimSpace(d.Date)
	d.Time = strings.TrimSpace(d.Time)
	d.Location = strings.TrimSpace(d.Location)
	d.Description = strings.TrimSpace(d.Description)
	d.ReportGroup = strings.TrimSpace(d.ReportGroup)
	d.Consequence = strings.TrimSpace(d.Consequence)
	d.Likelihood = strings.TrimSpace(d.Likelihood)
	d.Subject = strings.TrimSpace(d.Subject)
	d.Status = strings.TrimSpace(d.Status)
	return d
}

func (d ActionPlanDraft) normalized() ActionPlanDraft {
	d.Action = strings.TrimSpace(d.Action)
	d.DueDate = strings.TrimSpace(d.DueDate)
	d.ResponsiblePerson = strings.TrimSpace(d.ResponsiblePerson)
	d.FollowUpContact = strings.TrimSpace(d.FollowUpContact)
	d.Status = strings.TrimSpace(d.Status)
	return d
}

// ToObservation converts a validated draft into the domain value.
func (d ObservationDraft) ToObservation() (report.Observation, error) {
	d = d.normalized()
	consequence, err := report.ParseConsequence(d.Consequence)
	if err != nil {
		return report.Observation{}, err
	}
	likelihood, err := report.ParseLikelihood(d.Likelihood)
	if err != nil {
		return report.Observation{}, err
	}
	subject, err := report.ParseSubject(d.Subject)
	if err != nil {
		return report.Observation{}, err
	}
	status := report.StatusOpen
	if d.Status != "" {
		if status, err = report.ParseStatus(d.Status); err != nil {
			return report.Observation{}, err
		}
	}
	return report.Observation{
		ProjectID:     d.ProjectID,
		CompanyID:     d.CompanyID,
		SubmitterName: d.SubmitterName,
		Date:          d.Date,
		Time:          d.Time,
		Location:      d.Location,
		Description:   d.Description,
		Subject:       subject,
		ReportGroup:   d.ReportGroup,
		Consequence:   consequence,
		Likelihood:    likelihood,
		Status:        status,
		HasActionPlan: d.HasActionPlan,
	}, nil
}

// DraftFromObservation fills a draft with stored values for the edit flow.
func DraftFromObservation(obs report.Observation) ObservationDraft {
	return ObservationDraft{
		ProjectID:     obs.ProjectID,
		CompanyID:     obs.CompanyID,
		SubmitterName: obs.SubmitterName,
		Date:          obs.Date,
		Time:          obs.Time,
		Location:      obs.Location,
		Description:   obs.Description,
		ReportGroup:   obs.ReportGroup,
		Consequence:   string(obs.Consequence),
		Likelihood:    string(obs.Likelihood),
		Subject:       string(obs.Subject),
		Status:        string(obs.Status),
		HasActionPlan: obs.HasActionPlan,
	}
}

// ToActionPlan converts a validated draft for the given observation.
func (d ActionPlanDraft) ToActionPlan(observationID uint64) (report.ActionPlan, error) {
	d = d.normalized()
	status := report.StatusOpen
	if d.Status != "" {
		var err error
		if status, err = report.ParseStatus(d.Status); err != nil {
			return report.ActionPlan{}, err
		}
	}
	return report.ActionPlan{
		ObservationID:     observationID,
		Action:            d.Action,
		DueDate:           d.DueDate,
		ResponsiblePerson: d.ResponsiblePerson,
		FollowUpContact:   d.FollowUpContact,
		Status:            status,
		ImageKey:          d.ImageKey,
	}, nil
}

// CheckUpload returns a message when the upload cannot be stored, or "".
func CheckUpload(u *Upload) string {
	if len(u.Data) == 0 {
		return "image is empty"
	}
	if !report.IsSupportedImageType(u.ContentType) {
		return fmt.Sprintf("unsupported image type %q", u.ContentType)
	}
	return ""
}
