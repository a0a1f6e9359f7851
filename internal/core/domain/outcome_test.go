package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestReconcileSummaryAdd(t *testing.T) {
	var summary ReconcileSummary
	for _, outcome := range []ReconcileOutcome{
		{Kind: OutcomeRelocated},
		{Kind: OutcomeRelocated, InspectionErrors: 1},
		{Kind: OutcomePending},
		{Kind: OutcomeAlreadyHandled},
		{Kind: OutcomeSkipped},
		{Kind: OutcomeFailed},
	} {
		summary.Add(outcome)
	}

	want := ReconcileSummary{Moved: 2, Errors: 2, Pending: 1, AlreadyHandled: 1, Skipped: 1, Total: 6}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}
}

func TestOutcomeSucceeded(t *testing.T) {
	if !(ReconcileOutcome{Kind: OutcomeAlreadyHandled}).Succeeded() {
		t.Fatal("already handled should count as success")
	}
	if (ReconcileOutcome{Kind: OutcomePending}).Succeeded() {
		t.Fatal("pending is not a success")
	}
}

func TestWrapErrorKeepsKindAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(ErrStorageIO, "write bundle", cause)

	if !IsKind(err, ErrStorageIO) || !errors.Is(err, cause) {
		t.Fatalf("expected kind and cause in chain: %v", err)
	}
	if KindOf(err) != ErrStorageIO {
		t.Fatalf("KindOf() = %v", KindOf(err))
	}
	if err.Error() != "write bundle: storage io failure: disk full" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if WrapError(ErrStorageIO, "noop", nil) != nil {
		t.Fatal("nil cause must stay nil")
	}
	if KindOf(fmt.Errorf("plain")) != nil {
		t.Fatal("unexpected kind for plain error")
	}
}

func TestRecognizedTextBetter(t *testing.T) {
	base := RecognizedText{WordCount: 100, Confidence: 70}

	cases := []struct {
		name      string
		candidate RecognizedText
		want      bool
	}{
		{"many more words", RecognizedText{WordCount: 110, Confidence: 40}, true},
		{"many fewer words", RecognizedText{WordCount: 90, Confidence: 99}, false},
		{"close count higher confidence", RecognizedText{WordCount: 98, Confidence: 80}, true},
		{"close count lower confidence", RecognizedText{WordCount: 103, Confidence: 60}, false},
		{"identical", base, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.candidate.Better(base); got != tc.want {
				t.Fatalf("Better() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFactureValidate(t *testing.T) {
	trip := FactureTrip{BusinessName: "Acme", Code: "04512"}
	if err := trip.Validate(); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected missing recibes_trip, got %v", err)
	}

	weekend := FactureWeekend{IssuerRFC: "AAA010101AAA", TaxFolio: "F", ReceiverName: "Acme"}
	if err := weekend.Validate(); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected missing datetime_emisor, got %v", err)
	}

	if kind, ok := ParseInvoiceType(" facture_trip "); !ok || kind != InvoiceTrip {
		t.Fatalf("ParseInvoiceType() = %v, %v", kind, ok)
	}
	if _, ok := ParseInvoiceType("receipt"); ok {
		t.Fatal("unexpected invoice type")
	}
}
