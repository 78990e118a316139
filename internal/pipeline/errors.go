package pipeline

import "errors"

var (
	// ErrInvalidInput is returned for uploads missing required fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDocumentNotFound is returned when processing is requested for an unknown id.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrContentPersistenceFailed is returned when uploaded bytes could not be stored.
	ErrContentPersistenceFailed = errors.New("content persistence failed")
	// ErrTextExtractionFailed wraps any error raised while extracting text.
	ErrTextExtractionFailed = errors.New("text extraction failed")
	// ErrPromotionFailed marks a single risk candidate that could not be promoted.
	ErrPromotionFailed = errors.New("promotion failed")
)
