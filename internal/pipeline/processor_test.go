package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/blockgoats/erm-sub000/internal/models"
	"github.com/blockgoats/erm-sub000/internal/register"
	"github.com/blockgoats/erm-sub000/internal/riskmatch"
)

func TestUpload_scenario(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	ctx := context.Background()

	doc, result, err := h.proc.Upload(ctx, upload(scenarioText))
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, doc.ProcessingStatus)
	assert.Equal(t, 1, doc.VersionNumber)
	assert.Empty(t, doc.ParentDocumentID)

	require.Len(t, result.Clauses, 1)
	c := result.Clauses[0]
	assert.Equal(t, models.ClauseObligation, c.ClauseType)
	assert.Equal(t, 1, c.ClauseNumber)
	assert.Equal(t, 0.9, c.ConfidenceScore)
	assert.False(t, c.RequiresReview)
	assert.Equal(t, doc.ID, c.DocumentID)

	require.Len(t, result.Risks, 1)
	risk := result.Risks[0]
	assert.Equal(t, riskmatch.CategorySecurity, risk.Category)
	assert.Equal(t, 5, risk.Impact)
	assert.Equal(t, 0.6, risk.Confidence)
	assert.True(t, risk.RequiresReview)

	assert.Empty(t, result.CreatedRiskIDs)
	assert.Empty(t, h.register.created())
	assert.Equal(t, 1, result.ReviewQueueCount)

	require.Len(t, result.Obligations, 1)
	o := result.Obligations[0]
	assert.Equal(t, c.ID, o.ClauseID)
	assert.Equal(t, "vendor", o.OwnerRole)
	assert.Equal(t, models.ObligationStatusPending, o.Status)
	assert.False(t, o.EvidenceRequired)
	assert.NotEmpty(t, o.ExtractedAction)
	require.NotNil(t, o.DeadlineDate)
	assert.True(t, o.DeadlineDate.Equal(fixedNow.AddDate(0, 0, 30)))

	stored, err := h.store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.ProcessingStatus)
	assert.Empty(t, stored.ProcessingError)

	clauses, err := h.store.GetClausesByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, clauses, 1)
	obligations, err := h.store.GetObligationsByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, obligations, 1)
}

func TestUpload_storesContentAtomically(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	doc, _, err := h.proc.Upload(context.Background(), upload(scenarioText))
	require.NoError(t, err)

	data, err := os.ReadFile(doc.FilePath)
	require.NoError(t, err)
	assert.Equal(t, scenarioText, string(data))

	entries, err := os.ReadDir(h.content.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
	assert.Equal(t, "txt", doc.FileType)
}

func TestUpload_declaredFileTypeWithoutExtension(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Customer personal data is processed in the EU region only."))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	h := newHarness(t, harnessConfig{})
	in := upload("")
	in.FileName = "controls"
	in.FileType = "XLSX"
	in.Content = buf.Bytes()

	doc, result, err := h.proc.Upload(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.ProcessingStatus)
	assert.Equal(t, "xlsx", doc.FileType)
	assert.Equal(t, ".xlsx", filepath.Ext(doc.FilePath))

	require.Len(t, result.Risks, 1)
	assert.Equal(t, riskmatch.CategoryPrivacy, result.Risks[0].Category)
	assert.Equal(t, "Customer personal data is processed in the EU region only.", result.Risks[0].Description)
}

func TestUpload_mixedDocument(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	_, result, err := h.proc.Upload(context.Background(), upload(mixedText))
	require.NoError(t, err)

	require.Len(t, result.Risks, 3)
	assert.Equal(t, riskmatch.CategorySecurity, result.Risks[0].Category)
	assert.Equal(t, riskmatch.CategoryAvailability, result.Risks[1].Category)
	assert.Equal(t, riskmatch.CategoryPrivacy, result.Risks[2].Category)
	for _, r := range result.Risks {
		assert.True(t, r.RequiresReview, r.Category)
	}

	require.Len(t, result.Clauses, 2)
	assert.Equal(t, 1, result.Clauses[0].ClauseNumber)
	assert.Equal(t, 2, result.Clauses[1].ClauseNumber)
	assert.Len(t, result.Obligations, 2)
	assert.Equal(t, 3, result.ReviewQueueCount)
	assert.Empty(t, result.CreatedRiskIDs)
}

func TestProcess_promotesQualifyingRisks(t *testing.T) {
	h := newHarness(t, harnessConfig{risks: riskmatch.Config{Availability: 0.9, Privacy: 0.85}})
	_, result, err := h.proc.Upload(context.Background(), upload(mixedText))
	require.NoError(t, err)

	assert.Len(t, result.CreatedRiskIDs, 2)
	assert.Empty(t, result.PromotionErrors)

	created := h.register.created()
	require.Len(t, created, 2)
	assert.Equal(t, register.CategoryAvailability, created[0].Category)
	assert.Equal(t, register.CategoryConfidentiality, created[1].Category)
	for _, p := range created {
		assert.Equal(t, register.DefaultImpactType, p.ImpactType)
		assert.Equal(t, register.DefaultOwnerRole, p.OwnerRole)
		assert.Equal(t, register.DefaultResponseType, p.ResponseType)
	}
	// only the security candidate still needs review
	assert.Equal(t, 1, result.ReviewQueueCount)
}

func TestProcess_promotionFailureIsIsolated(t *testing.T) {
	h := newHarness(t, harnessConfig{risks: riskmatch.Config{Availability: 0.9, Privacy: 0.85}})
	h.register.fail = func(p register.Payload) error {
		if p.Category == register.CategoryAvailability {
			return errors.New("register unavailable")
		}
		return nil
	}

	doc, result, err := h.proc.Upload(context.Background(), upload(mixedText))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.ProcessingStatus)
	assert.Len(t, result.CreatedRiskIDs, 1)
	require.Len(t, result.PromotionErrors, 1)
	assert.Contains(t, result.PromotionErrors[0], "register unavailable")
	assert.Contains(t, result.PromotionErrors[0], ErrPromotionFailed.Error())
}

func TestProcess_promotionPanicIsIsolated(t *testing.T) {
	h := newHarness(t, harnessConfig{risks: riskmatch.Config{Availability: 0.9, Privacy: 0.85}})
	h.register.fail = func(p register.Payload) error {
		if p.Category == register.CategoryConfidentiality {
			panic("boom")
		}
		return nil
	}

	_, result, err := h.proc.Upload(context.Background(), upload(mixedText))
	require.NoError(t, err)
	assert.Len(t, result.CreatedRiskIDs, 1)
	require.Len(t, result.PromotionErrors, 1)
	assert.Contains(t, result.PromotionErrors[0], "boom")
}

func TestProcess_promotionTimeout(t *testing.T) {
	h := newHarness(t, harnessConfig{
		risks: riskmatch.Config{Availability: 0.9},
		opts:  Options{PromotionTimeout: 20 * time.Millisecond},
	})
	h.register.delay = time.Second

	doc, result, err := h.proc.Upload(context.Background(), upload(mixedText))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.ProcessingStatus)
	assert.Empty(t, result.CreatedRiskIDs)
	assert.Len(t, result.PromotionErrors, 1)
}

func TestIngest_versionChain(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	ctx := context.Background()

	first, err := h.proc.Ingest(ctx, upload(scenarioText))
	require.NoError(t, err)
	second, err := h.proc.Ingest(ctx, upload(scenarioText))
	require.NoError(t, err)
	third, err := h.proc.Ingest(ctx, upload(scenarioText))
	require.NoError(t, err)

	assert.Equal(t, 1, first.VersionNumber)
	assert.Equal(t, 2, second.VersionNumber)
	assert.Equal(t, first.ID, second.ParentDocumentID)
	assert.Equal(t, 3, third.VersionNumber)
	assert.Equal(t, second.ID, third.ParentDocumentID)
	assert.NotEqual(t, first.FilePath, second.FilePath)

	other := upload(scenarioText)
	other.OrganizationID = "org-2"
	fresh, err := h.proc.Ingest(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.VersionNumber)
	assert.Empty(t, fresh.ParentDocumentID)

	changed, err := h.proc.Ingest(ctx, upload(scenarioText+" Updated."))
	require.NoError(t, err)
	assert.Equal(t, 1, changed.VersionNumber)
}

func TestIngest_concurrentSameContent(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	const n = 5
	var wg sync.WaitGroup
	versions := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := h.proc.Ingest(context.Background(), upload(scenarioText))
			if assert.NoError(t, err) {
				versions[i] = doc.VersionNumber
			}
		}(i)
	}
	wg.Wait()
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, versions)
}

func TestIngest_invalidInput(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	tests := []struct {
		name   string
		mutate func(*IngestInput)
	}{
		{"empty content", func(in *IngestInput) { in.Content = nil }},
		{"missing organization", func(in *IngestInput) { in.OrganizationID = "" }},
		{"missing uploader", func(in *IngestInput) { in.UploadedBy = "" }},
		{"missing file name", func(in *IngestInput) { in.FileName = "" }},
		{"unknown document type", func(in *IngestInput) { in.DocumentType = "memo" }},
		{"file type with path separator", func(in *IngestInput) { in.FileType = "../pdf" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := upload(scenarioText)
			tt.mutate(&in)
			_, err := h.proc.Ingest(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	n, err := h.store.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngest_contentPersistenceFailure(t *testing.T) {
	h := newHarness(t, harnessConfig{content: failingContent{}})
	_, err := h.proc.Ingest(context.Background(), upload(scenarioText))
	require.ErrorIs(t, err, ErrContentPersistenceFailed)

	n, err := h.store.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "no document row without stored content")
}

func TestProcess_extractionFailure(t *testing.T) {
	h := newHarness(t, harnessConfig{extractor: extractorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("corrupt file")
	})})
	ctx := context.Background()

	doc, result, err := h.proc.Upload(ctx, upload(scenarioText))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTextExtractionFailed)
	assert.Nil(t, result)
	require.NotNil(t, doc)
	assert.Equal(t, models.StatusFailed, doc.ProcessingStatus)
	assert.Contains(t, doc.ProcessingError, "corrupt file")

	stored, err := h.store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.ProcessingStatus)

	clauses, err := h.store.GetClausesByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, clauses)
}

func TestProcess_extractionTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	h := newHarness(t, harnessConfig{
		extractor: extractorFunc(func(context.Context, string) (string, error) {
			<-release
			return scenarioText, nil
		}),
		opts: Options{ExtractionTimeout: 20 * time.Millisecond},
	})

	doc, _, err := h.proc.Upload(context.Background(), upload(scenarioText))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTextExtractionFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.StatusFailed, doc.ProcessingStatus)
}

func TestProcess_analysisTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	h := newHarness(t, harnessConfig{
		clock: func() time.Time {
			<-release
			return fixedNow
		},
		opts: Options{AnalysisTimeout: 20 * time.Millisecond},
	})

	doc, _, err := h.proc.Upload(context.Background(), upload(scenarioText))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.StatusFailed, doc.ProcessingStatus)

	stored, err := h.store.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.ProcessingStatus)
	assert.Contains(t, stored.ProcessingError, "analyze")
}

func TestProcess_hugeRelativeDeadline(t *testing.T) {
	h := newHarness(t, harnessConfig{opts: Options{AnalysisTimeout: 5 * time.Second}})
	text := "Vendor shall respond within 99999999999 business days of notice."

	doc, result, err := h.proc.Upload(context.Background(), upload(text))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.ProcessingStatus)
	require.Len(t, result.Obligations, 1)
	assert.Nil(t, result.Obligations[0].DeadlineDate)
}

func TestProcess_recordsFailureAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, harnessConfig{extractor: extractorFunc(func(context.Context, string) (string, error) {
		cancel()
		return "", context.Canceled
	})})

	doc, err := h.proc.Ingest(context.Background(), upload(scenarioText))
	require.NoError(t, err)
	_, err = h.proc.Process(ctx, doc.ID)
	require.Error(t, err)

	stored, err := h.store.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.ProcessingStatus)
}

func TestProcess_documentNotFound(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	_, err := h.proc.Process(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestProcess_reprocessReplacesClauses(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	ctx := context.Background()

	doc, first, err := h.proc.Upload(ctx, upload(mixedText))
	require.NoError(t, err)
	second, err := h.proc.Process(ctx, doc.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.Clauses[0].ID, second.Clauses[0].ID)

	clauses, err := h.store.GetClausesByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, clauses, 2)
	obligations, err := h.store.GetObligationsByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, obligations, 2)
}

func TestProcess_serializesPerDocument(t *testing.T) {
	var inFlight, maxInFlight int32
	h := newHarness(t, harnessConfig{extractor: extractorFunc(func(context.Context, string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return scenarioText, nil
	})})

	doc, err := h.proc.Ingest(context.Background(), upload(scenarioText))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.proc.Process(context.Background(), doc.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	assert.Zero(t, h.proc.locks.size())
	clauses, err := h.store.GetClausesByDocumentID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Len(t, clauses, 1)
}

func TestListPendingReview(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	ctx := context.Background()

	_, err := h.proc.ListPendingReview(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	text := scenarioText + "\n\nThe customer may terminate this agreement upon written notice."
	_, result, err := h.proc.Upload(ctx, upload(text))
	require.NoError(t, err)
	require.Len(t, result.Clauses, 2)
	assert.Equal(t, models.ClauseRight, result.Clauses[1].ClauseType)
	assert.True(t, result.Clauses[1].RequiresReview)

	pending, err := h.proc.ListPendingReview(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, result.Clauses[1].ID, pending[0].ID)

	other, err := h.proc.ListPendingReview(ctx, "org-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestProcess_clauseTextTruncated(t *testing.T) {
	h := newHarness(t, harnessConfig{opts: Options{ClauseTextMaxLength: 40}})
	_, result, err := h.proc.Upload(context.Background(), upload(scenarioText))
	require.NoError(t, err)
	require.Len(t, result.Clauses, 1)
	assert.LessOrEqual(t, len([]rune(result.Clauses[0].ClauseText)), 40)
	assert.Equal(t, result.Clauses[0].ClauseText, result.Obligations[0].ObligationText)
}

func TestNewProcessor_defaults(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil, nil, Options{})
	assert.Equal(t, DefaultOptions(), p.opts)
}

func TestShouldPromote(t *testing.T) {
	tests := []struct {
		name   string
		risk   models.ExtractedRisk
		expect bool
	}{
		{"high confidence", models.ExtractedRisk{Confidence: 0.9}, true},
		{"at threshold", models.ExtractedRisk{Confidence: 0.7}, true},
		{"below threshold", models.ExtractedRisk{Confidence: 0.69}, false},
		{"needs review", models.ExtractedRisk{Confidence: 0.9, RequiresReview: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, ShouldPromote(tt.risk, 0.7))
		})
	}
}
