// Package cli renders pipeline results for the erm command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/blockgoats/erm-sub000/internal/models"
	"github.com/blockgoats/erm-sub000/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

const clausePreview = 120

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteResult writes the outcome of processing one document.
func WriteResult(w io.Writer, result *models.ProcessingResult, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, result)
	}
	doc := result.Document
	if doc != nil {
		WriteDocument(w, doc)
	}
	fmt.Fprintf(w, "\n%d clause(s), %d obligation(s), %d risk candidate(s), %d promoted, %d awaiting review\n",
		len(result.Clauses), len(result.Obligations), len(result.Risks), len(result.CreatedRiskIDs), result.ReviewQueueCount)

	if len(result.Clauses) > 0 {
		fmt.Fprintln(w, "\n--- Clauses ---")
		for _, c := range result.Clauses {
			writeClause(w, c)
		}
	}
	if len(result.Obligations) > 0 {
		fmt.Fprintln(w, "\n--- Obligations ---")
		for _, o := range result.Obligations {
			due := "no deadline"
			if o.DeadlineDate != nil {
				due = "due " + o.DeadlineDate.Format("2006-01-02")
			}
			fmt.Fprintf(w, "[%s] %s (%s)\n", o.OwnerRole, utils.Truncate(o.ExtractedAction, clausePreview), due)
		}
	}
	if len(result.Risks) > 0 {
		fmt.Fprintln(w, "\n--- Risk candidates ---")
		for _, r := range result.Risks {
			flag := ""
			if r.RequiresReview {
				flag = " REVIEW"
			}
			fmt.Fprintf(w, "[%s] L%d x I%d conf %.2f%s\n  %s\n",
				r.Category, r.Likelihood, r.Impact, r.Confidence, flag, utils.Truncate(r.Title, clausePreview))
		}
	}
	for _, e := range result.PromotionErrors {
		fmt.Fprintf(w, "promotion failed: %s\n", e)
	}
	return nil
}

// WriteDocument writes a one-block summary of a document.
func WriteDocument(w io.Writer, doc *models.Document) {
	fmt.Fprintf(w, "Document %s (%s) v%d: %s\n", doc.ID, doc.FileName, doc.VersionNumber, doc.ProcessingStatus)
	if doc.ParentDocumentID != "" {
		fmt.Fprintf(w, "  previous version: %s\n", doc.ParentDocumentID)
	}
	if doc.ProcessingError != "" {
		fmt.Fprintf(w, "  error: %s\n", doc.ProcessingError)
	}
}

func writeClause(w io.Writer, c *models.ExtractedClause) {
	mark := " "
	if c.RequiresReview {
		mark = "?"
	}
	fmt.Fprintf(w, "%s %3d %-11s %.2f  %s\n", mark, c.ClauseNumber, c.ClauseType, c.ConfidenceScore,
		utils.Truncate(c.ClauseText, clausePreview))
}

// WriteReviewQueue writes the clauses awaiting review for an organization.
func WriteReviewQueue(w io.Writer, organizationID string, clauses []*models.ExtractedClause, format OutputFormat) error {
	if format == OutputJSON {
		if clauses == nil {
			clauses = []*models.ExtractedClause{}
		}
		return WriteJSON(w, map[string]interface{}{
			"organization_id": organizationID,
			"count":           len(clauses),
			"clauses":         clauses,
		})
	}
	fmt.Fprintf(w, "%d clause(s) awaiting review for %s\n", len(clauses), organizationID)
	for _, c := range clauses {
		fmt.Fprintf(w, "%s  document %s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.DocumentID)
		writeClause(w, c)
	}
	return nil
}

// WriteStatus writes store counts and the active policy.
func WriteStatus(w io.Writer, status *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, status)
	}
	fmt.Fprintf(w, "documents:          %d\n", status.Documents)
	fmt.Fprintf(w, "clauses:            %d\n", status.Clauses)
	keys := make([]string, 0, len(status.ByStatus))
	for k := range status.ByStatus {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-16s  %d\n", k+":", status.ByStatus[k])
	}
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + stored uploads\n", *status.DiskUsageBytes)
	}
	for _, d := range status.WatchedDirectories {
		fmt.Fprintf(w, "watching:           %s\n", d)
	}
	if c := status.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "database_path:       %s\n", c.DatabasePath)
		fmt.Fprintf(w, "content_dir:         %s\n", c.ContentDir)
		fmt.Fprintf(w, "promotion_threshold: %.2f\n", c.PromotionThreshold)
		fmt.Fprintf(w, "review_threshold:    %.2f\n", c.ReviewThreshold)
		fmt.Fprintf(w, "workers:             %d\n", c.Workers)
		if c.RiskRegister != "" {
			fmt.Fprintf(w, "risk_register:       %s\n", c.RiskRegister)
		}
	}
	return nil
}
