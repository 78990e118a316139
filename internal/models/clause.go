package models

import "time"

// ClauseType is the semantic category assigned to a clause.
type ClauseType string

const (
	ClauseObligation  ClauseType = "obligation"
	ClauseProhibition ClauseType = "prohibition"
	ClausePenalty     ClauseType = "penalty"
	ClauseCondition   ClauseType = "condition"
	ClauseRight       ClauseType = "right"
	ClauseDefinition  ClauseType = "definition"
	ClauseOther       ClauseType = "other"
)

// ClauseTypes lists every clause type in classification priority order.
var ClauseTypes = []ClauseType{
	ClauseProhibition, ClauseObligation, ClausePenalty,
	ClauseCondition, ClauseRight, ClauseDefinition, ClauseOther,
}

// ReviewStatus is set by the external review workflow. The pipeline only ever writes pending.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
	ReviewModified ReviewStatus = "modified"
)

// Actor is a responsible party and what the clause requires of it.
type Actor struct {
	Actor  string `json:"actor"`
	Role   string `json:"role,omitempty"`
	Action string `json:"action"`
}

// Deadline is an explicit or relative time reference. Date is nil when the
// reference cannot be resolved to a calendar date (e.g. "quarterly").
type Deadline struct {
	Text     string     `json:"text"`
	Date     *time.Time `json:"date,omitempty"`
	Relative string     `json:"relative,omitempty"`
}

// Dependency is a cross-reference to another obligation, section or condition.
type Dependency struct {
	DependsOn string `json:"depends_on"`
	Condition string `json:"condition"`
}

// Ambiguity groups the vague terms found in one clause.
type Ambiguity struct {
	VagueTerms     []string `json:"vague_terms"`
	Recommendation string   `json:"recommendation"`
}

// ExtractedClause is one classified sentence of a document.
type ExtractedClause struct {
	ID              string       `json:"id"`
	DocumentID      string       `json:"document_id"`
	ClauseText      string       `json:"clause_text"`
	ClauseNumber    int          `json:"clause_number"`
	ClauseType      ClauseType   `json:"clause_type,omitempty"`
	ConfidenceScore float64      `json:"confidence_score"`
	RequiresReview  bool         `json:"requires_review"`
	ReviewedBy      string       `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time   `json:"reviewed_at,omitempty"`
	ReviewStatus    ReviewStatus `json:"review_status"`
	CreatedAt       time.Time    `json:"created_at"`

	// Enrichment from the current run; not persisted.
	Actors       []Actor      `json:"actors,omitempty"`
	Deadlines    []Deadline   `json:"deadlines,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
	Ambiguities  []Ambiguity  `json:"ambiguities,omitempty"`
}

// ObligationStatusPending is the status every obligation is created with.
const ObligationStatusPending = "pending"

// ComplianceObligation is created for obligation clauses with at least one actor.
type ComplianceObligation struct {
	ID               string     `json:"id"`
	DocumentID       string     `json:"document_id"`
	ClauseID         string     `json:"clause_id"`
	ObligationText   string     `json:"obligation_text"`
	ExtractedAction  string     `json:"extracted_action"`
	DeadlineDate     *time.Time `json:"deadline_date,omitempty"`
	OwnerRole        string     `json:"owner_role"`
	Status           string     `json:"status"`
	EvidenceRequired bool       `json:"evidence_required"`
	CreatedAt        time.Time  `json:"created_at"`
}
