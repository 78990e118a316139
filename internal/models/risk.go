package models

// ExtractedRisk is a risk candidate synthesized from one sentence. It lives only
// for the duration of a processing run.
type ExtractedRisk struct {
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	Threat            string  `json:"threat"`
	Vulnerability     string  `json:"vulnerability"`
	ImpactDescription string  `json:"impact_description"`
	Category          string  `json:"category"`
	Likelihood        int     `json:"likelihood"`
	Impact            int     `json:"impact"`
	SourceClause      string  `json:"source_clause"`
	Confidence        float64 `json:"confidence"`
	RequiresReview    bool    `json:"requires_review"`
}

// ProcessingResult summarizes one processing run of a document.
type ProcessingResult struct {
	Document         *Document               `json:"document"`
	Risks            []ExtractedRisk         `json:"extracted_risks"`
	Clauses          []*ExtractedClause      `json:"extracted_clauses"`
	Obligations      []*ComplianceObligation `json:"obligations"`
	CreatedRiskIDs   []string                `json:"created_risk_ids"`
	PromotionErrors  []string                `json:"promotion_errors,omitempty"`
	ReviewQueueCount int                     `json:"review_queue_count"`
}

// CountReviewQueue returns the number of risks plus clauses that require review.
func (r *ProcessingResult) CountReviewQueue() int {
	n := 0
	for _, risk := range r.Risks {
		if risk.RequiresReview {
			n++
		}
	}
	for _, c := range r.Clauses {
		if c.RequiresReview {
			n++
		}
	}
	return n
}
