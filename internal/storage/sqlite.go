package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/blockgoats/erm-sub000/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_hash TEXT NOT NULL,
		file_type TEXT NOT NULL,
		document_type TEXT,
		version_number INTEGER NOT NULL DEFAULT 1,
		parent_document_id TEXT REFERENCES documents(id),
		processing_status TEXT NOT NULL DEFAULT 'pending',
		processing_error TEXT,
		uploaded_by TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_org_hash ON documents(organization_id, file_hash, created_at);

	CREATE TABLE IF NOT EXISTS extracted_clauses (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		clause_text TEXT NOT NULL,
		clause_number INTEGER NOT NULL,
		clause_type TEXT,
		confidence_score REAL NOT NULL,
		requires_review INTEGER NOT NULL,
		reviewed_by TEXT,
		reviewed_at TIMESTAMP,
		review_status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_clauses_document ON extracted_clauses(document_id, clause_number);
	CREATE INDEX IF NOT EXISTS idx_clauses_review ON extracted_clauses(requires_review, review_status, created_at);

	CREATE TABLE IF NOT EXISTS compliance_obligations (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		clause_id TEXT NOT NULL,
		obligation_text TEXT NOT NULL,
		extracted_action TEXT,
		deadline_date TIMESTAMP,
		owner_role TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		evidence_required INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
		FOREIGN KEY (clause_id) REFERENCES extracted_clauses(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_obligations_document ON compliance_obligations(document_id);
	`
	_, err := db.Exec(schema)
	return err
}

const documentColumns = `id, organization_id, file_name, file_path, file_hash, file_type, document_type,
	version_number, parent_document_id, processing_status, processing_error, uploaded_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var docType, parentID, procErr sql.NullString
	var status string
	err := row.Scan(&doc.ID, &doc.OrganizationID, &doc.FileName, &doc.FilePath, &doc.FileHash, &doc.FileType,
		&docType, &doc.VersionNumber, &parentID, &status, &procErr, &doc.UploadedBy, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.DocumentType = models.DocumentType(docType.String)
	doc.ParentDocumentID = parentID.String
	doc.ProcessingStatus = models.ProcessingStatus(status)
	doc.ProcessingError = procErr.String
	return &doc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// CreateDocument inserts a document. Status defaults to pending and timestamps are set.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := s.now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.ProcessingStatus == "" {
		doc.ProcessingStatus = models.StatusPending
	}
	if doc.VersionNumber < 1 {
		doc.VersionNumber = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.OrganizationID, doc.FileName, doc.FilePath, doc.FileHash, doc.FileType,
		nullString(string(doc.DocumentType)), doc.VersionNumber, nullString(doc.ParentDocumentID),
		string(doc.ProcessingStatus), nullString(doc.ProcessingError), doc.UploadedBy, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument returns a document by ID, or ErrNotFound.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LatestDocumentByHash returns the most recent document of the organization with the
// given content hash, or ErrNotFound when the hash has not been seen.
func (s *SQLiteStorage) LatestDocumentByHash(ctx context.Context, organizationID, fileHash string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE organization_id = ? AND file_hash = ?
		 ORDER BY version_number DESC, created_at DESC LIMIT 1`,
		organizationID, fileHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateProcessingStatus sets the status and error message of a document.
// An empty processingError clears any previous error.
func (s *SQLiteStorage) UpdateProcessingStatus(ctx context.Context, id string, status models.ProcessingStatus, processingError string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET processing_status = ?, processing_error = ?, updated_at = ? WHERE id = ?`,
		string(status), nullString(processingError), s.now(), id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// ReplaceExtraction replaces all clauses and obligations of a document in one transaction.
func (s *SQLiteStorage) ReplaceExtraction(ctx context.Context, documentID string, clauses []*models.ExtractedClause, obligations []*models.ComplianceObligation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM compliance_obligations WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("delete obligations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM extracted_clauses WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("delete clauses: %w", err)
	}

	now := s.now()
	clauseStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO extracted_clauses (id, document_id, clause_text, clause_number, clause_type,
			confidence_score, requires_review, reviewed_by, reviewed_at, review_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer clauseStmt.Close()
	for _, c := range clauses {
		c.DocumentID = documentID
		c.CreatedAt = now
		if c.ReviewStatus == "" {
			c.ReviewStatus = models.ReviewPending
		}
		if _, err := clauseStmt.ExecContext(ctx, c.ID, documentID, c.ClauseText, c.ClauseNumber,
			nullString(string(c.ClauseType)), c.ConfidenceScore, c.RequiresReview,
			nullString(c.ReviewedBy), nullTime(c.ReviewedAt), string(c.ReviewStatus), c.CreatedAt); err != nil {
			return fmt.Errorf("insert clause %d: %w", c.ClauseNumber, err)
		}
	}

	obligationStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO compliance_obligations (id, document_id, clause_id, obligation_text, extracted_action,
			deadline_date, owner_role, status, evidence_required, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer obligationStmt.Close()
	for _, o := range obligations {
		o.DocumentID = documentID
		o.CreatedAt = now
		if _, err := obligationStmt.ExecContext(ctx, o.ID, documentID, o.ClauseID, o.ObligationText,
			nullString(o.ExtractedAction), nullTime(o.DeadlineDate), o.OwnerRole, o.Status,
			o.EvidenceRequired, o.CreatedAt); err != nil {
			return fmt.Errorf("insert obligation for clause %s: %w", o.ClauseID, err)
		}
	}
	return tx.Commit()
}

const clauseColumns = `c.id, c.document_id, c.clause_text, c.clause_number, c.clause_type, c.confidence_score,
	c.requires_review, c.reviewed_by, c.reviewed_at, c.review_status, c.created_at`

func (s *SQLiteStorage) queryClauses(ctx context.Context, query string, args ...any) ([]*models.ExtractedClause, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clauses []*models.ExtractedClause
	for rows.Next() {
		var c models.ExtractedClause
		var clauseType, reviewedBy sql.NullString
		var reviewedAt sql.NullTime
		var status string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ClauseText, &c.ClauseNumber, &clauseType, &c.ConfidenceScore,
			&c.RequiresReview, &reviewedBy, &reviewedAt, &status, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ClauseType = models.ClauseType(clauseType.String)
		c.ReviewedBy = reviewedBy.String
		if reviewedAt.Valid {
			t := reviewedAt.Time
			c.ReviewedAt = &t
		}
		c.ReviewStatus = models.ReviewStatus(status)
		clauses = append(clauses, &c)
	}
	return clauses, rows.Err()
}

// GetClausesByDocumentID returns all clauses of a document ordered by clause number.
func (s *SQLiteStorage) GetClausesByDocumentID(ctx context.Context, documentID string) ([]*models.ExtractedClause, error) {
	return s.queryClauses(ctx,
		`SELECT `+clauseColumns+` FROM extracted_clauses c WHERE c.document_id = ? ORDER BY c.clause_number`,
		documentID)
}

// ListPendingReview returns clauses of the organization that require review and have
// not been reviewed yet, newest first.
func (s *SQLiteStorage) ListPendingReview(ctx context.Context, organizationID string) ([]*models.ExtractedClause, error) {
	return s.queryClauses(ctx,
		`SELECT `+clauseColumns+` FROM extracted_clauses c
		 JOIN documents d ON d.id = c.document_id
		 WHERE d.organization_id = ? AND c.requires_review = 1 AND c.review_status = ?
		 ORDER BY c.created_at DESC, c.document_id, c.clause_number`,
		organizationID, string(models.ReviewPending))
}

// GetObligationsByDocumentID returns the obligations of a document.
func (s *SQLiteStorage) GetObligationsByDocumentID(ctx context.Context, documentID string) ([]*models.ComplianceObligation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.document_id, o.clause_id, o.obligation_text, o.extracted_action, o.deadline_date,
			o.owner_role, o.status, o.evidence_required, o.created_at
		 FROM compliance_obligations o
		 JOIN extracted_clauses c ON c.id = o.clause_id
		 WHERE o.document_id = ? ORDER BY c.clause_number`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ComplianceObligation
	for rows.Next() {
		var o models.ComplianceObligation
		var action sql.NullString
		var deadline sql.NullTime
		if err := rows.Scan(&o.ID, &o.DocumentID, &o.ClauseID, &o.ObligationText, &action, &deadline,
			&o.OwnerRole, &o.Status, &o.EvidenceRequired, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.ExtractedAction = action.String
		if deadline.Valid {
			t := deadline.Time
			o.DeadlineDate = &t
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountClauses returns the total number of extracted clauses.
func (s *SQLiteStorage) CountClauses(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM extracted_clauses`).Scan(&count)
	return count, err
}

// CountDocumentsByStatus returns the number of documents per processing status.
func (s *SQLiteStorage) CountDocumentsByStatus(ctx context.Context) (map[models.ProcessingStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT processing_status, COUNT(*) FROM documents GROUP BY processing_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.ProcessingStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.ProcessingStatus(status)] = n
	}
	return counts, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
