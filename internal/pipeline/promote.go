package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/blockgoats/erm-sub000/internal/models"
	"github.com/blockgoats/erm-sub000/internal/register"
)

// ShouldPromote reports whether a risk candidate qualifies for automatic creation.
func ShouldPromote(r models.ExtractedRisk, threshold float64) bool {
	return r.Confidence >= threshold && !r.RequiresReview
}

// promoteAll creates a canonical risk for every qualifying candidate. A failed
// promotion is logged and recorded but does not stop the others.
func (p *Processor) promoteAll(ctx context.Context, doc *models.Document, risks []models.ExtractedRisk) ([]string, []string) {
	created := make([]string, 0)
	var failures []string
	for _, r := range risks {
		if !ShouldPromote(r, p.opts.PromotionThreshold) {
			continue
		}
		id, err := p.promote(ctx, doc, r)
		if err != nil {
			p.logger.Warn("risk promotion failed",
				zap.String("document_id", doc.ID),
				zap.String("title", r.Title),
				zap.Error(err))
			failures = append(failures, err.Error())
			continue
		}
		created = append(created, id)
	}
	return created, failures
}

func (p *Processor) promote(ctx context.Context, doc *models.Document, r models.ExtractedRisk) (string, error) {
	payload := register.PayloadFor(r, p.opts.RiskOwnerRole)
	id, err := callWithTimeout(ctx, p.opts.PromotionTimeout, func(ctx context.Context) (string, error) {
		return p.register.CreateRisk(ctx, doc.OrganizationID, doc.UploadedBy, payload)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrPromotionFailed, r.Title, err)
	}
	p.logger.Info("risk promoted",
		zap.String("document_id", doc.ID),
		zap.String("risk_id", id),
		zap.String("category", string(payload.Category)))
	return id, nil
}
