package report

import (
	"fmt"
	"strings"
)

// Consequence is ordered: minor < moderate < major < severe.
type Consequence string

const (
	ConsequenceMinor    Consequence = "minor"
	ConsequenceModerate Consequence = "moderate"
	ConsequenceMajor    Consequence = "major"
	ConsequenceSevere   Consequence = "severe"
)

var consequenceRank = map[Consequence]int{
	ConsequenceMinor:    1,
	ConsequenceModerate: 2,
	ConsequenceMajor:    3,
	ConsequenceSevere:   4,
}

func ParseConsequence(raw string) (Consequence, error) {
	c := Consequence(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := consequenceRank[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidConsequence, raw)
	}
	return c, nil
}

// Rank is 1..4, or 0 for an unknown level.
func (c Consequence) Rank() int { return consequenceRank[c] }
func (c Consequence) Valid() bool {
	_, ok := consequenceRank[c]
	return ok
}

// Likelihood is ordered: unlikely < possible < likely < very-likely.
type Likelihood string

const (
	LikelihoodUnlikely   Likelihood = "unlikely"
	LikelihoodPossible   Likelihood = "possible"
	LikelihoodLikely     Likelihood = "likely"
	LikelihoodVeryLikely Likelihood = "very-likely"
)

var likelihoodRank = map[Likelihood]int{
	LikelihoodUnlikely:   1,
	LikelihoodPossible:   2,
	LikelihoodLikely:     3,
	LikelihoodVeryLikely: 4,
}

func ParseLikelihood(raw string) (Likelihood, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	l := Likelihood(normalized)
	if _, ok := likelihoodRank[l]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidLikelihood, raw)
	}
	return l, nil
}

func (l Likelihood) Rank() int { return likelihoodRank[l] }
func (l Likelihood) Valid() bool {
	_, ok := likelihoodRank[l]
	return ok
}

type RiskBand string

const (
	RiskLow    RiskBand = "low"
	RiskMedium RiskBand = "medium"
	RiskHigh   RiskBand = "high"
)

// RiskScore multiplies the two ranks (1..16); zero when either level is unknown.
func RiskScore(c Consequence, l Likelihood) int {
	return c.Rank() * l.Rank()
}

func RiskBandFor(score int) RiskBand {
	switch {
	case score <= 4:
		return RiskLow
	case score <= 8:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Subject is the fixed report type of an observation.
type Subject string

const (
	SubjectUnsafeAct       Subject = "unsafe-act"
	SubjectUnsafeCondition Subject = "unsafe-condition"
	SubjectNearMiss        Subject = "near-miss"
	SubjectGoodPractice    Subject = "good-practice"
)

var subjects = []Subject{SubjectUnsafeAct, SubjectUnsafeCondition, SubjectNearMiss, SubjectGoodPractice}

func Subjects() []Subject {
	out := make([]Subject, len(subjects))
	copy(out, subjects)
	return out
}

func ParseSubject(raw string) (Subject, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "-")
	for _, s := range subjects {
		if string(s) == normalized {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSubject, raw)
}

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusOpen:
		return StatusOpen, nil
	case StatusClosed:
		return StatusClosed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// ClosesChildren reports whether moving from prev to next cascades a close to
// every action plan. Reopening never cascades.
func ClosesChildren(prev, next Status) bool {
	return prev != StatusClosed && next == StatusClosed
}
