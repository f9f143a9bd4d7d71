package reportedit

import (
	"fmt"
	"sync"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/usecase/reportform"
)

// Session is a loaded observation under edit. At most one action plan row is
// in edit mode at a time.
type Session struct {
	Observation report.Observation
	Draft       reportform.ObservationDraft
	Categories  []uint64
	ActionPlans []report.ActionPlan

	mu      sync.Mutex
	editing uint64
}

func newSession(obs report.Observation, plans []report.ActionPlan, categories []uint64) *Session {
	obs.CategoryIDs = categories
	return &Session{
		Observation: obs,
		Draft:       reportform.DraftFromObservation(obs),
		Categories:  categories,
		ActionPlans: plans,
	}
}

// BeginEdit puts planID in edit mode. Re-entering the same row is allowed.
func (s *Session) BeginEdit(planID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editing != 0 && s.editing != planID {
		return fmt.Errorf("%w: action plan %d", report.ErrEditInProgress, s.editing)
	}
	if !s.hasPlan(planID) {
		return report.ErrActionPlanNotFound
	}
	s.editing = planID
	return nil
}

func (s *Session) EndEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing = 0
}

// Editing returns the plan in edit mode, if any.
func (s *Session) Editing() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing, s.editing != 0
}

// PlanDraft returns an editable copy of one of the session's plans.
func (s *Session) PlanDraft(planID uint64) (reportform.ActionPlanDraft, error) {
	for _, plan := range s.ActionPlans {
		if plan.ID == planID {
			return reportform.ActionPlanDraft{
				Action:            plan.Action,
				DueDate:           plan.DueDate,
				ResponsiblePerson: plan.ResponsiblePerson,
				FollowUpContact:   plan.FollowUpContact,
				Status:            string(plan.Status),
				ImageKey:          plan.ImageKey,
			}, nil
		}
	}
	return reportform.ActionPlanDraft{}, report.ErrActionPlanNotFound
}

func (s *Session) hasPlan(planID uint64) bool {
	for _, plan := range s.ActionPlans {
		if plan.ID == planID {
			return true
		}
	}
	return false
}
