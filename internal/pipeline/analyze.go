// Package pipeline turns uploaded documents into classified clauses, compliance
// obligations and promoted risks.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blockgoats/erm-sub000/internal/classify"
	"github.com/blockgoats/erm-sub000/internal/confidence"
	"github.com/blockgoats/erm-sub000/internal/models"
	"github.com/blockgoats/erm-sub000/internal/riskmatch"
	"github.com/blockgoats/erm-sub000/internal/segment"
	"github.com/blockgoats/erm-sub000/internal/signals"
)

// ClauseFinding is one classified clause before it is persisted.
type ClauseFinding struct {
	Number         int
	Text           string
	Classification classify.Classification
	Signals        signals.Set
	Score          confidence.Score
}

// Analysis is the outcome of analyzing one document's text.
type Analysis struct {
	Clauses []ClauseFinding
	Risks   []models.ExtractedRisk
}

// Analyzer is the side-effect free core of the pipeline: text in, findings out.
type Analyzer struct {
	segmenter *segment.Segmenter
	policy    confidence.Policy
	matcher   *riskmatch.Matcher
	workers   int
	now       func() time.Time
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithWorkers analyzes up to n sentences concurrently. n <= 1 is sequential.
func WithWorkers(n int) AnalyzerOption {
	return func(a *Analyzer) { a.workers = n }
}

// WithClock sets the time source used to resolve relative deadlines.
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer returns an analyzer built from its three policy components.
func NewAnalyzer(seg *segment.Segmenter, policy confidence.Policy, matcher *riskmatch.Matcher, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		segmenter: seg,
		policy:    policy,
		matcher:   matcher,
		workers:   1,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type unitResult struct {
	clause *ClauseFinding
	risk   *models.ExtractedRisk
}

// Analyze segments text and classifies, enriches and scores every clause unit; every
// unit is independently matched against the risk patterns. Output order follows the
// order of sentences in text regardless of the number of workers.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	units := a.segmenter.Segment(text)
	results := make([]unitResult, len(units))
	now := a.now()

	if a.workers <= 1 {
		for i, u := range units {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = a.analyzeUnit(u, now)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.workers)
		for i, u := range units {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = a.analyzeUnit(u, now)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := &Analysis{}
	for _, r := range results {
		if r.clause != nil {
			r.clause.Number = len(out.Clauses) + 1
			out.Clauses = append(out.Clauses, *r.clause)
		}
		if r.risk != nil {
			out.Risks = append(out.Risks, *r.risk)
		}
	}
	return out, nil
}

func (a *Analyzer) analyzeUnit(u segment.Unit, now time.Time) unitResult {
	var res unitResult
	if risk, ok := a.matcher.Match(u.Text); ok {
		res.risk = &risk
	}
	if !u.Clause {
		return res
	}
	c := classify.Classify(u.Text)
	if !c.Actionable() {
		return res
	}
	s := signals.Extract(u.Text, now)
	res.clause = &ClauseFinding{
		Text:           u.Text,
		Classification: c,
		Signals:        s,
		Score:          a.policy.Fuse(c, s),
	}
	return res
}
