package extract

import (
	"fmt"
	"regexp"
)

const openDocumentContent = "content.xml"

var (
	// text:p and text:h in document order; spans inside are flattened by the run pattern.
	odfParagraph = regexp.MustCompile(`(?s)<text:(?:p|h)[ >].*?</text:(?:p|h)>`)
	odfRun       = regexp.MustCompile(`>([^<]+)<`)
)

// extractOpenDocument handles .odt, .odp and .ods, which all keep their body in content.xml.
func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content, "OpenDocument")
	if err != nil {
		return "", err
	}
	xml, err := readZipEntry(zr, openDocumentContent)
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}
	if xml == nil {
		return "", fmt.Errorf("extract OpenDocument: %s not found", openDocumentContent)
	}
	return joinParagraphs(paragraphs(string(xml), odfParagraph, odfRun)), nil
}
