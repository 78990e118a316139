package models

import "testing"

func TestDocumentType_Valid(t *testing.T) {
	tests := []struct {
		in   DocumentType
		want bool
	}{
		{"", true},
		{DocumentTypeContract, true},
		{DocumentTypeRiskAssessment, true},
		{"invoice", false},
	}
	for _, tt := range tests {
		if got := tt.in.Valid(); got != tt.want {
			t.Errorf("DocumentType(%q).Valid() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestProcessingStatus_Terminal(t *testing.T) {
	if StatusPending.Terminal() || StatusProcessing.Terminal() {
		t.Error("pending and processing must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
}

func TestProcessingResult_CountReviewQueue(t *testing.T) {
	r := &ProcessingResult{
		Risks: []ExtractedRisk{{RequiresReview: true}, {RequiresReview: false}},
		Clauses: []*ExtractedClause{
			{RequiresReview: true},
			{RequiresReview: true},
			{RequiresReview: false},
		},
	}
	if got := r.CountReviewQueue(); got != 3 {
		t.Errorf("CountReviewQueue() = %d, want 3", got)
	}
}
