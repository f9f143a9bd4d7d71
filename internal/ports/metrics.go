package ports

// Metrics receives business counters from usecases. Implementations must be
// safe for concurrent use.
type Metrics interface {
	SubmissionFinished(outcome string)
	SagaStepFailed(step string)
	ImageCacheLookup(hit bool)
}

const (
	OutcomeComplete = "complete"
	OutcomePartial  = "partial"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type NoopMetrics struct{}

func (NoopMetrics) SubmissionFinished(string) {}
func (NoopMetrics) SagaStepFailed(string)     {}
func (NoopMetrics) ImageCacheLookup(bool)     {}
