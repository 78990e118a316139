package watcher

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/blockgoats/erm-sub000/internal/models"
	"github.com/blockgoats/erm-sub000/internal/pipeline"
)

// Uploader ingests and processes one document.
type Uploader interface {
	Upload(ctx context.Context, in pipeline.IngestInput) (*models.Document, *models.ProcessingResult, error)
}

// UploadFunc returns an onFile callback that uploads each settled file on behalf of
// organizationID and uploadedBy. Failures are logged; the failed document record
// stays in the store.
func UploadFunc(ctx context.Context, up Uploader, organizationID, uploadedBy string, logger *zap.Logger) func(path string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(path string) {
		content, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("inbox read failed", zap.String("path", path), zap.Error(err))
			return
		}
		doc, result, err := up.Upload(ctx, pipeline.IngestInput{
			OrganizationID: organizationID,
			UploadedBy:     uploadedBy,
			FileName:       filepath.Base(path),
			Content:        content,
		})
		if err != nil {
			fields := []zap.Field{zap.String("path", path), zap.Error(err)}
			if doc != nil {
				fields = append(fields, zap.String("document_id", doc.ID))
			}
			logger.Warn("inbox upload failed", fields...)
			return
		}
		logger.Info("inbox file processed",
			zap.String("path", path),
			zap.String("document_id", doc.ID),
			zap.Int("version", doc.VersionNumber),
			zap.Int("review_queue", result.ReviewQueueCount))
	}
}
