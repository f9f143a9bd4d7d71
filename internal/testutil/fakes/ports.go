package fakes

import (
	"context"
	"sync"

	"safetyportal/internal/domain/report"
	"safetyportal/internal/ports"
)

// Auth returns a fixed user, or ErrUnauthenticated when User.Email is empty.
type Auth struct {
	User report.User
}

func (a Auth) CurrentUser(context.Context) (report.User, error) {
	if a.User.Email == "" {
		return report.User{}, report.ErrUnauthenticated
	}
	return a.User, nil
}

type Event struct {
	Subject string
	Payload []byte
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	Events []Event
}

var _ ports.EventPublisher = (*Publisher)(nil)

func (p *Publisher) Publish(_ context.Context, subject string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, Event{Subject: subject, Payload: payload})
	return nil
}

func (p *Publisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, e.Subject)
	}
	return out
}

// Metrics counts calls per label.
type Metrics struct {
	mu          sync.Mutex
	Submissions map[string]int
	StepFailed  map[string]int
	CacheHits   int
	CacheMisses int
}

var _ ports.Metrics = (*Metrics)(nil)

func NewMetrics() *Metrics {
	return &Metrics{Submissions: map[string]int{}, StepFailed: map[string]int{}}
}

func (m *Metrics) SubmissionFinished(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Submissions[outcome]++
}

func (m *Metrics) SagaStepFailed(step string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StepFailed[step]++
}

func (m *Metrics) ImageCacheLookup(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.CacheHits++
	} else {
		m.CacheMisses++
	}
}
