// Package models defines the documents, clauses, obligations and risk candidates
// produced by the document intelligence pipeline.
package models

import "time"

// DocumentType classifies what kind of artifact was uploaded.
type DocumentType string

const (
	DocumentTypeComplianceReport DocumentType = "compliance_report"
	DocumentTypeAuditFinding     DocumentType = "audit_finding"
	DocumentTypeContract         DocumentType = "contract"
	DocumentTypePolicy           DocumentType = "policy"
	DocumentTypeRiskAssessment   DocumentType = "risk_assessment"
	DocumentTypeOther            DocumentType = "other"
)

// Valid reports whether t is unset or one of the known document types.
func (t DocumentType) Valid() bool {
	switch t {
	case "", DocumentTypeComplianceReport, DocumentTypeAuditFinding, DocumentTypeContract,
		DocumentTypePolicy, DocumentTypeRiskAssessment, DocumentTypeOther:
		return true
	}
	return false
}

// ProcessingStatus is the lifecycle state of a document.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Terminal reports whether s is completed or failed.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is one uploaded artifact. Uploads whose content hash matches an earlier
// document of the same organization chain to it through ParentDocumentID.
type Document struct {
	ID               string           `json:"id"`
	OrganizationID   string           `json:"organization_id"`
	FileName         string           `json:"file_name"`
	FilePath         string           `json:"file_path"`
	FileHash         string           `json:"file_hash"`
	FileType         string           `json:"file_type"`
	DocumentType     DocumentType     `json:"document_type,omitempty"`
	VersionNumber    int              `json:"version_number"`
	ParentDocumentID string           `json:"parent_document_id,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	ProcessingError  string           `json:"processing_error,omitempty"`
	UploadedBy       string           `json:"uploaded_by"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
