package report

import (
	"errors"
	"testing"
)

func TestConsequenceAndLikelihoodOrdering(t *testing.T) {
	order := []Consequence{ConsequenceMinor, ConsequenceModerate, ConsequenceMajor, ConsequenceSevere}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Fatalf("%s should rank below %s", order[i-1], order[i])
		}
	}

	lorder := []Likelihood{LikelihoodUnlikely, LikelihoodPossible, LikelihoodLikely, LikelihoodVeryLikely}
	for i := 1; i < len(lorder); i++ {
		if lorder[i-1].Rank() >= lorder[i].Rank() {
			t.Fatalf("%s should rank below %s", lorder[i-1], lorder[i])
		}
	}
}

func TestParseLevels(t *testing.T) {
	c, err := ParseConsequence(" Major ")
	if err != nil || c != ConsequenceMajor {
		t.Fatalf("ParseConsequence() = %q, %v", c, err)
	}
	if _, err := ParseConsequence("catastrophic"); !errors.Is(err, ErrInvalidConsequence) {
		t.Fatalf("ParseConsequence(catastrophic) error = %v", err)
	}

	l, err := ParseLikelihood("Very Likely")
	if err != nil || l != LikelihoodVeryLikely {
		t.Fatalf("ParseLikelihood() = %q, %v", l, err)
	}
	if _, err := ParseLikelihood("rare"); !errors.Is(err, ErrInvalidLikelihood) {
		t.Fatalf("ParseLikelihood(rare) error = %v", err)
	}

	s, err := ParseSubject("Near Miss")
	if err != nil || s != SubjectNearMiss {
		t.Fatalf("ParseSubject() = %q, %v", s, err)
	}
	if _, err := ParseStatus("pending"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("ParseStatus(pending) error = %v", err)
	}
}

func TestRiskBand(t *testing.T) {
	testCases := []struct {
		c    Consequence
		l    Likelihood
		want RiskBand
	}{
		{ConsequenceMinor, LikelihoodUnlikely, RiskLow},
		{ConsequenceModerate, LikelihoodLikely, RiskMedium},
		{ConsequenceSevere, LikelihoodVeryLikely, RiskHigh},
	}
	for _, tc := range testCases {
		if got := RiskBandFor(RiskScore(tc.c, tc.l)); got != tc.want {
			t.Fatalf("RiskBandFor(%s,%s) = %s, want %s", tc.c, tc.l, got, tc.want)
		}
	}
}

func TestClosesChildren(t *testing.T) {
	if !ClosesChildren(StatusOpen, StatusClosed) {
		t.Fatal("open -> closed should cascade")
	}
	if ClosesChildren(StatusClosed, StatusOpen) {
		t.Fatal("closed -> open must not cascade")
	}
	if ClosesChildren(StatusClosed, StatusClosed) {
		t.Fatal("closed -> closed is not a transition")
	}
}

func TestClassifyImageRef(t *testing.T) {
	testCases := map[string]ImageKind{
		"":                              ImageKindNone,
		"data:image/png;base64,AAAA":    ImageKindDataURI,
		"https://cdn.example.com/a.png": ImageKindURL,
		"HTTP://cdn.example.com/a.png":  ImageKindURL,
		"observations/5b1f.png":         ImageKindStorageKey,
	}
	for ref, want := range testCases {
		if got := ClassifyImageRef(ref); got != want {
			t.Fatalf("ClassifyImageRef(%q) = %s, want %s", ref, got, want)
		}
	}
}

func TestPublicObjectURL(t *testing.T) {
	got := PublicObjectURL("http://localhost:8080/", "observation-images", "/observations/a.png")
	want := "http://localhost:8080/storage/v1/object/public/observation-images/observations/a.png"
	if got != want {
		t.Fatalf("PublicObjectURL() = %q, want %q", got, want)
	}
}

func TestFieldErrorsIsValidation(t *testing.T) {
	fields := FieldErrors{}
	if fields.Err() != nil {
		t.Fatal("empty FieldErrors should yield nil")
	}
	fields.Add("location", "is required")
	fields.Add("location", "ignored")
	err := fields.Err()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("errors.Is(ErrValidation) = false for %v", err)
	}
	if fields["location"] != "is required" {
		t.Fatalf("first message should win, got %q", fields["location"])
	}
}
