package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blockgoats/erm-sub000/internal/fileid"
	"github.com/blockgoats/erm-sub000/internal/models"
	"github.com/blockgoats/erm-sub000/internal/register"
	"github.com/blockgoats/erm-sub000/internal/storage"
	"github.com/blockgoats/erm-sub000/pkg/utils"
)

// TextExtractor converts a stored document into plain text.
type TextExtractor interface {
	ExtractFile(ctx context.Context, path string) (string, error)
}

// ContentStore persists uploaded bytes. Put must never leave a partially written
// file at the returned path.
type ContentStore interface {
	Put(name string, data []byte) (string, error)
	Remove(path string) error
}

// Options holds the processing policy.
type Options struct {
	ExtractionTimeout   time.Duration
	AnalysisTimeout     time.Duration
	PromotionTimeout    time.Duration
	PromotionThreshold  float64
	ClauseTextMaxLength int
	// ObligationOwnerRole is used when the obligation's actor has no known role.
	ObligationOwnerRole string
	RiskOwnerRole       string
}

// DefaultOptions returns the standard processing policy.
func DefaultOptions() Options {
	return Options{
		ExtractionTimeout:   2 * time.Minute,
		AnalysisTimeout:     time.Minute,
		PromotionTimeout:    30 * time.Second,
		PromotionThreshold:  0.7,
		ClauseTextMaxLength: 2000,
		ObligationOwnerRole: "Compliance Officer",
		RiskOwnerRole:       register.DefaultOwnerRole,
	}
}

// IngestInput describes one upload.
type IngestInput struct {
	OrganizationID string
	UploadedBy     string
	FileName       string
	Content        []byte
	// FileType defaults to the file name's extension.
	FileType     string
	DocumentType models.DocumentType
}

// Processor runs the document lifecycle: ingest, extract, analyze, persist, promote.
type Processor struct {
	store     storage.Storage
	content   ContentStore
	extractor TextExtractor
	analyzer  *Analyzer
	register  register.Register
	opts      Options
	locks     *keyedLocker
	logger    *zap.Logger
	newID     func() string
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// WithIDGenerator replaces the UUID generator for documents, clauses and obligations.
func WithIDGenerator(fn func() string) Option {
	return func(p *Processor) { p.newID = fn }
}

// NewProcessor wires the pipeline. Zero-valued fields of opts take their defaults.
func NewProcessor(
	store storage.Storage,
	content ContentStore,
	extractor TextExtractor,
	analyzer *Analyzer,
	reg register.Register,
	opts Options,
	options ...Option,
) *Processor {
	def := DefaultOptions()
	if opts.ExtractionTimeout <= 0 {
		opts.ExtractionTimeout = def.ExtractionTimeout
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = def.AnalysisTimeout
	}
	if opts.PromotionTimeout <= 0 {
		opts.PromotionTimeout = def.PromotionTimeout
	}
	if opts.PromotionThreshold == 0 {
		opts.PromotionThreshold = def.PromotionThreshold
	}
	if opts.ClauseTextMaxLength <= 0 {
		opts.ClauseTextMaxLength = def.ClauseTextMaxLength
	}
	if opts.ObligationOwnerRole == "" {
		opts.ObligationOwnerRole = def.ObligationOwnerRole
	}
	if opts.RiskOwnerRole == "" {
		opts.RiskOwnerRole = def.RiskOwnerRole
	}
	p := &Processor{
		store:     store,
		content:   content,
		extractor: extractor,
		analyzer:  analyzer,
		register:  reg,
		opts:      opts,
		locks:     newKeyedLocker(),
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Ingest stores the uploaded bytes and records a pending document. Bytes whose hash
// matches an earlier document of the same organization become its next version.
func (p *Processor) Ingest(ctx context.Context, in IngestInput) (*models.Document, error) {
	if in.OrganizationID == "" || in.UploadedBy == "" || in.FileName == "" {
		return nil, fmt.Errorf("%w: organization, uploader and file name are required", ErrInvalidInput)
	}
	if len(in.Content) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	if !in.DocumentType.Valid() {
		return nil, fmt.Errorf("%w: unknown document type %q", ErrInvalidInput, in.DocumentType)
	}
	fileType := strings.ToLower(in.FileType)
	if fileType != "" && !fileid.ValidFileType(fileType) {
		return nil, fmt.Errorf("%w: invalid file type %q", ErrInvalidInput, in.FileType)
	}

	hash := fileid.ContentHash(in.Content)
	unlock := p.locks.Lock("ingest:" + in.OrganizationID + ":" + hash)
	defer unlock()

	doc := &models.Document{
		ID:               p.newID(),
		OrganizationID:   in.OrganizationID,
		FileName:         in.FileName,
		FileHash:         hash,
		FileType:         fileType,
		DocumentType:     in.DocumentType,
		VersionNumber:    1,
		ProcessingStatus: models.StatusPending,
		UploadedBy:       in.UploadedBy,
	}
	if doc.FileType == "" {
		doc.FileType = fileid.FileType(in.FileName)
	}

	prev, err := p.store.LatestDocumentByHash(ctx, in.OrganizationID, hash)
	switch {
	case err == nil:
		doc.ParentDocumentID = prev.ID
		doc.VersionNumber = prev.VersionNumber + 1
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("look up previous version: %w", err)
	}

	path, err := p.content.Put(fileid.StoredName(doc.ID, doc.FileType), in.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContentPersistenceFailed, err)
	}
	doc.FilePath = path

	if err := p.store.CreateDocument(ctx, doc); err != nil {
		if rmErr := p.content.Remove(path); rmErr != nil {
			p.logger.Warn("failed to remove orphaned content", zap.String("path", path), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("create document: %w", err)
	}

	p.logger.Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.String("organization_id", doc.OrganizationID),
		zap.String("file_name", doc.FileName),
		zap.Int("version", doc.VersionNumber),
		zap.String("parent_document_id", doc.ParentDocumentID))
	return doc, nil
}

// Process runs the full pipeline for a stored document. The document moves to
// processing before any work starts and ends completed or failed; on failure the
// error message is recorded on the document and returned. Concurrent calls for the
// same document run one after the other. Previously extracted clauses and
// obligations of the document are replaced.
func (p *Processor) Process(ctx context.Context, documentID string) (*models.ProcessingResult, error) {
	unlock := p.locks.Lock(documentID)
	defer unlock()

	doc, err := p.store.GetDocument(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	if err := p.setStatus(ctx, doc, models.StatusProcessing, ""); err != nil {
		return nil, err
	}
	log := p.logger.With(zap.String("document_id", doc.ID), zap.String("organization_id", doc.OrganizationID))
	log.Info("processing document", zap.String("file_name", doc.FileName))

	result, err := p.run(ctx, doc)
	if err == nil {
		err = p.setStatus(ctx, doc, models.StatusCompleted, "")
	}
	if err != nil {
		log.Error("document processing failed", zap.Error(err))
		if serr := p.setStatus(context.WithoutCancel(ctx), doc, models.StatusFailed, err.Error()); serr != nil {
			log.Error("failed to record processing failure", zap.Error(serr))
		}
		return nil, err
	}

	result.Document = doc
	log.Info("document processed",
		zap.Int("clauses", len(result.Clauses)),
		zap.Int("obligations", len(result.Obligations)),
		zap.Int("risks", len(result.Risks)),
		zap.Int("promoted", len(result.CreatedRiskIDs)),
		zap.Int("review_queue", result.ReviewQueueCount))
	return result, nil
}

// Upload ingests and processes a document. When processing fails the returned
// document reflects its failed state alongside the error.
func (p *Processor) Upload(ctx context.Context, in IngestInput) (*models.Document, *models.ProcessingResult, error) {
	doc, err := p.Ingest(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	result, err := p.Process(ctx, doc.ID)
	if err != nil {
		if latest, gerr := p.store.GetDocument(context.WithoutCancel(ctx), doc.ID); gerr == nil {
			doc = latest
		}
		return doc, nil, err
	}
	return result.Document, result, nil
}

// ListPendingReview returns the organization's clauses awaiting review, newest first.
func (p *Processor) ListPendingReview(ctx context.Context, organizationID string) ([]*models.ExtractedClause, error) {
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization is required", ErrInvalidInput)
	}
	return p.store.ListPendingReview(ctx, organizationID)
}

func (p *Processor) setStatus(ctx context.Context, doc *models.Document, status models.ProcessingStatus, msg string) error {
	if err := p.store.UpdateProcessingStatus(ctx, doc.ID, status, msg); err != nil {
		return fmt.Errorf("set status %s: %w", status, err)
	}
	doc.ProcessingStatus = status
	doc.ProcessingError = msg
	return nil
}

func (p *Processor) run(ctx context.Context, doc *models.Document) (*models.ProcessingResult, error) {
	text, err := callWithTimeout(ctx, p.opts.ExtractionTimeout, func(ctx context.Context) (string, error) {
		return p.extractor.ExtractFile(ctx, doc.FilePath)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTextExtractionFailed, err)
	}

	analysis, err := callWithTimeout(ctx, p.opts.AnalysisTimeout, func(ctx context.Context) (*Analysis, error) {
		return p.analyzer.Analyze(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	clauses, obligations := p.records(analysis)
	if err := p.store.ReplaceExtraction(ctx, doc.ID, clauses, obligations); err != nil {
		return nil, fmt.Errorf("persist clauses: %w", err)
	}

	created, failures := p.promoteAll(ctx, doc, analysis.Risks)
	result := &models.ProcessingResult{
		Risks:           analysis.Risks,
		Clauses:         clauses,
		Obligations:     obligations,
		CreatedRiskIDs:  created,
		PromotionErrors: failures,
	}
	if result.Risks == nil {
		result.Risks = []models.ExtractedRisk{}
	}
	result.ReviewQueueCount = result.CountReviewQueue()
	return result, nil
}

// records converts findings into clause and obligation rows. An obligation is
// created for every obligation clause that names at least one actor.
func (p *Processor) records(a *Analysis) ([]*models.ExtractedClause, []*models.ComplianceObligation) {
	clauses := make([]*models.ExtractedClause, 0, len(a.Clauses))
	obligations := make([]*models.ComplianceObligation, 0)
	for _, f := range a.Clauses {
		c := &models.ExtractedClause{
			ID:              p.newID(),
			ClauseText:      utils.TruncateRunes(f.Text, p.opts.ClauseTextMaxLength),
			ClauseNumber:    f.Number,
			ClauseType:      f.Classification.Type,
			ConfidenceScore: f.Score.Value,
			RequiresReview:  f.Score.RequiresReview,
			ReviewStatus:    models.ReviewPending,
			Actors:          f.Signals.Actors,
			Deadlines:       f.Signals.Deadlines,
			Dependencies:    f.Signals.Dependencies,
			Ambiguities:     f.Signals.Ambiguities,
		}
		clauses = append(clauses, c)

		if f.Classification.Type != models.ClauseObligation || !f.Signals.HasActors() {
			continue
		}
		actor := f.Signals.Actors[0]
		owner := actor.Role
		if owner == "" {
			owner = p.opts.ObligationOwnerRole
		}
		obligations = append(obligations, &models.ComplianceObligation{
			ID:               p.newID(),
			ClauseID:         c.ID,
			ObligationText:   c.ClauseText,
			ExtractedAction:  actor.Action,
			DeadlineDate:     firstDate(f.Signals.Deadlines),
			OwnerRole:        owner,
			Status:           models.ObligationStatusPending,
			EvidenceRequired: false,
		})
	}
	return clauses, obligations
}

func firstDate(deadlines []models.Deadline) *time.Time {
	for _, d := range deadlines {
		if d.Date != nil {
			t := *d.Date
			return &t
		}
	}
	return nil
}

// callWithTimeout runs fn bounded by d. It returns as soon as the deadline passes
// even if fn ignores its context; a panic in fn is returned as an error.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				ch <- outcome{zero, fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- outcome{v, err}
	}()

	select {
	case o := <-ch:
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
