package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockgoats/erm-sub000/internal/confidence"
	"github.com/blockgoats/erm-sub000/internal/extract"
	"github.com/blockgoats/erm-sub000/internal/models"
	"github.com/blockgoats/erm-sub000/internal/register"
	"github.com/blockgoats/erm-sub000/internal/riskmatch"
	"github.com/blockgoats/erm-sub000/internal/segment"
	"github.com/blockgoats/erm-sub000/internal/storage"
)

var fixedNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

const scenarioText = "Vendor shall remediate critical vulnerabilities within 30 days or incur a penalty."

// mixedText yields one security, one availability and one privacy candidate.
const mixedText = scenarioText + "\n\n" +
	"The hosting provider must maintain 99.9% uptime for the platform.\n\n" +
	"Customer personal data is processed in the EU region only."

type fakeRegister struct {
	mu       sync.Mutex
	payloads []register.Payload
	fail     func(register.Payload) error
	delay    time.Duration
}

func (f *fakeRegister) CreateRisk(ctx context.Context, orgID, userID string, p register.Payload) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(p); err != nil {
			return "", err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return fmt.Sprintf("risk-%d", len(f.payloads)), nil
}

func (f *fakeRegister) created() []register.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]register.Payload(nil), f.payloads...)
}

type extractorFunc func(ctx context.Context, path string) (string, error)

func (f extractorFunc) ExtractFile(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

type failingContent struct{}

func (failingContent) Put(string, []byte) (string, error) { return "", errors.New("disk full") }
func (failingContent) Remove(string) error                { return nil }

type harness struct {
	store    *storage.SQLiteStorage
	content  *storage.ContentStore
	register *fakeRegister
	proc     *Processor
}

type harnessConfig struct {
	extractor TextExtractor
	content   ContentStore
	risks     riskmatch.Config
	clock     func() time.Time
	opts      Options
}

func newHarness(t *testing.T, hc harnessConfig) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "erm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	content, err := storage.NewContentStore(filepath.Join(dir, "content"))
	require.NoError(t, err)

	h := &harness{store: store, content: content, register: &fakeRegister{}}
	var cs ContentStore = content
	if hc.content != nil {
		cs = hc.content
	}
	var ex TextExtractor = extract.NewExtractor()
	if hc.extractor != nil {
		ex = hc.extractor
	}
	clock := func() time.Time { return fixedNow }
	if hc.clock != nil {
		clock = hc.clock
	}
	analyzer := NewAnalyzer(segment.New(20, 30), confidence.DefaultPolicy(), riskmatch.NewMatcher(hc.risks, confidence.DefaultPolicy().ReviewGate), WithClock(clock))
	h.proc = NewProcessor(store, cs, ex, analyzer, h.register, hc.opts)
	return h
}

func upload(text string) IngestInput {
	return IngestInput{
		OrganizationID: "org-1",
		UploadedBy:     "user-1",
		FileName:       "contract.txt",
		Content:        []byte(text),
		DocumentType:   models.DocumentTypeContract,
	}
}
