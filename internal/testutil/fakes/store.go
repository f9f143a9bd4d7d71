// Package fakes provides in-memory port implementations for usecase tests.
package fakes

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/ports"
)

// Store is an in-memory relational store. Calls records every write in order,
// and the Fail* fields inject errors.
type Store struct {
	mu sync.Mutex

	nextObservationID uint64
	nextPlanID        uint64
	observations      map[uint64]report.Observation
	plans             map[uint64]report.ActionPlan
	links             map[uint64][]uint64

	Projects   []report.Project
	Companies  []report.Company
	Categories []report.Category

	Calls []string

	FailCreateObservation error
	FailLinkCategories    error
	// FailCreatePlan fails the n-th (1-based) CreateActionPlan call.
	FailCreatePlan map[int]error
	createPlanCall int
}

var (
	_ ports.ObservationRepository  = (*Store)(nil)
	_ ports.ActionPlanRepository   = (*Store)(nil)
	_ ports.CategoryLinkRepository = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		observations: make(map[uint64]report.Observation),
		plans:        make(map[uint64]report.ActionPlan),
		links:        make(map[uint64][]uint64),
	}
}

func (s *Store) record(format string, args ...any) {
	s.Calls = append(s.Calls, fmt.Sprintf(format, args...))
}

func (s *Store) CreateObservation(_ context.Context, obs report.Observation) (report.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("create_observation")
	if s.FailCreateObservation != nil {
		return report.Observation{}, s.FailCreateObservation
	}
	s.nextObservationID++
	obs.ID = s.nextObservationID
	obs.CreatedAt = time.Now().UTC()
	obs.UpdatedAt = obs.CreatedAt
	s.observations[obs.ID] = obs
	return obs, nil
}

func (s *Store) GetObservation(_ context.Context, id uint64) (report.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs, ok := s.observations[id]
	if !ok {
		return report.Observation{}, report.ErrObservationNotFound
	}
	return s.withNames(obs), nil
}

func (s *Store) withNames(obs report.Observation) report.Observation {
	for _, p := range s.Projects {
		if p.ID == obs.ProjectID {
			obs.ProjectName = p.Name
		}
	}
	for _, c := range s.Companies {
		if c.ID == obs.CompanyID {
			obs.CompanyName = c.Name
		}
	}
	return obs
}

func (s *Store) UpdateObservation(_ context.Context, obs report.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("update_observation %d", obs.ID)
	existing, ok := s.observations[obs.ID]
	if !ok {
		return report.ErrObservationNotFound
	}
	obs.CreatedAt = existing.CreatedAt
	obs.CreatedBy = existing.CreatedBy
	obs.UpdatedAt = time.Now().UTC()
	s.observations[obs.ID] = obs
	return nil
}

func (s *Store) DeleteObservation(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("delete_observation %d", id)
	if _, ok := s.observations[id]; !ok {
		return report.ErrObservationNotFound
	}
	for _, plan := range s.plans {
		if plan.ObservationID == id {
			return fmt.Errorf("observation %d still has action plans", id)
		}
	}
	delete(s.observations, id)
	delete(s.links, id)
	return nil
}

func (s *Store) QueryObservations(_ context.Context, q ports.ObservationQuery) ([]report.Observation, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []report.Observation
	for _, obs := range s.observations {
		f := q.Filter
		if f.DateFrom != "" && obs.Date < f.DateFrom {
			continue
		}
		if f.DateTo != "" && obs.Date > f.DateTo {
			continue
		}
		if f.Status != "" && obs.Status != f.Status {
			continue
		}
		if f.Severity != "" && obs.Consequence != f.Severity {
			continue
		}
		matched = append(matched, s.withNames(obs))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	// No sort column means newest first, like the gorm repository.
	if q.Sort.Direction == ports.SortDesc || q.Sort.Column == "" {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	total := int64(len(matched))
	start := min(q.Offset, len(matched))
	end := len(matched)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(matched))
	}
	return matched[start:end], total, nil
}

func (s *Store) CreateActionPlan(_ context.Context, plan report.ActionPlan) (report.ActionPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createPlanCall++
	s.record("create_action_plan obs=%d", plan.ObservationID)
	if err := s.FailCreatePlan[s.createPlanCall]; err != nil {
		return report.ActionPlan{}, err
	}
	if _, ok := s.observations[plan.ObservationID]; !ok {
		return report.ActionPlan{}, fmt.Errorf("foreign key: observation %d does not exist", plan.ObservationID)
	}
	s.nextPlanID++
	plan.ID = s.nextPlanID
	plan.CreatedAt = time.Now().UTC()
	plan.UpdatedAt = plan.CreatedAt
	s.plans[plan.ID] = plan
	return plan, nil
}

func (s *Store) GetActionPlan(_ context.Context, id uint64) (report.ActionPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return report.ActionPlan{}, report.ErrActionPlanNotFound
	}
	return plan, nil
}

func (s *Store) UpdateActionPlan(_ context.Context, plan report.ActionPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("update_action_plan %d", plan.ID)
	existing, ok := s.plans[plan.ID]
	if !ok {
		return report.ErrActionPlanNotFound
	}
	plan.ObservationID = existing.ObservationID
	plan.CreatedAt = existing.CreatedAt
	s.plans[plan.ID] = plan
	return nil
}

func (s *Store) DeleteActionPlan(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("delete_action_plan %d", id)
	if _, ok := s.plans[id]; !ok {
		return report.ErrActionPlanNotFound
	}
	delete(s.plans, id)
	return nil
}

func (s *Store) ListActionPlans(_ context.Context, observationID uint64) ([]report.ActionPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []report.ActionPlan
	for _, plan := range s.plans {
		if plan.ObservationID == observationID {
			out = append(out, plan)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteActionPlansByObservation(_ context.Context, observationID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("delete_action_plans obs=%d", observationID)
	var n int64
	for id, plan := range s.plans {
		if plan.ObservationID == observationID {
			delete(s.plans, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) CloseActionPlansByObservation(_ context.Context, observationID uint64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("close_action_plans obs=%d", observationID)
	var n int64
	for id, plan := range s.plans {
		if plan.ObservationID == observationID && plan.Status == report.StatusOpen {
			plan.Status = report.StatusClosed
			plan.UpdatedAt = at
			s.plans[id] = plan
			n++
		}
	}
	return n, nil
}

func (s *Store) LinkCategories(_ context.Context, observationID uint64, categoryIDs []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("link_categories obs=%d", observationID)
	if s.FailLinkCategories != nil {
		return s.FailLinkCategories
	}
	if _, ok := s.observations[observationID]; !ok {
		return fmt.Errorf("foreign key: observation %d does not exist", observationID)
	}
	existing := s.links[observationID]
	for _, id := range categoryIDs {
		dup := false
		for _, have := range existing {
			if have == id {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, id)
		}
	}
	sort.Slice(existing, func(i, j int) bool { return existing[i] < existing[j] })
	s.links[observationID] = existing
	return nil
}

func (s *Store) ListCategoryIDs(_ context.Context, observationID uint64) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.links[observationID]...), nil
}

func (s *Store) DeleteCategoryLinks(_ context.Context, observationID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("delete_category_links obs=%d", observationID)
	delete(s.links, observationID)
	return nil
}

// ObservationCount reports how many observations are stored.
func (s *Store) ObservationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observations)
}
