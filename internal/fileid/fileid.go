// Package fileid derives content digests and storage names for uploaded documents.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
)

var fileTypePattern = regexp.MustCompile(`^[a-z0-9]{1,16}$`)

// ContentHash returns the lowercase hex SHA-256 digest of content.
// Identical bytes always yield the same hash regardless of file name.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// StoredName returns the name under which the bytes of document id are stored:
// the id followed by the file type as extension. The extractor picks its parser
// from that extension, so the declared type wins over the original file name.
func StoredName(id, fileType string) string {
	if !ValidFileType(fileType) {
		return id
	}
	return id + "." + fileType
}

// ValidFileType reports whether fileType is a bare lower-case extension such as "pdf".
func ValidFileType(fileType string) bool {
	return fileTypePattern.MatchString(fileType)
}

// Extension returns the lower-cased extension of fileName including the dot.
func Extension(fileName string) string {
	return strings.ToLower(filepath.Ext(filepath.Base(fileName)))
}

// FileType returns the extension of fileName without the dot, e.g. "pdf".
func FileType(fileName string) string {
	return strings.TrimPrefix(Extension(fileName), ".")
}
