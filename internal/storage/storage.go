// Package storage defines the persistence interface for documents, clauses and obligations.
package storage

import (
	"context"
	"errors"

	"github.com/blockgoats/erm-sub000/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines document, clause and obligation persistence operations.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	LatestDocumentByHash(ctx context.Context, organizationID, fileHash string) (*models.Document, error)
	UpdateProcessingStatus(ctx context.Context, id string, status models.ProcessingStatus, processingError string) error

	// ReplaceExtraction deletes the clauses and obligations previously stored for
	// documentID and inserts the given ones in a single transaction.
	ReplaceExtraction(ctx context.Context, documentID string, clauses []*models.ExtractedClause, obligations []*models.ComplianceObligation) error
	GetClausesByDocumentID(ctx context.Context, documentID string) ([]*models.ExtractedClause, error)
	GetObligationsByDocumentID(ctx context.Context, documentID string) ([]*models.ComplianceObligation, error)

	// ListPendingReview returns the organization's clauses awaiting review, newest first.
	ListPendingReview(ctx context.Context, organizationID string) ([]*models.ExtractedClause, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountClauses(ctx context.Context) (int64, error)
	CountDocumentsByStatus(ctx context.Context) (map[models.ProcessingStatus]int64, error)

	Close() error
}
