package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	contentTypesPath    = "[Content_Types].xml"
	docxDefaultDocument = "word/document.xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// Override elements list PartName and ContentType in either order.
	overridePartFirst = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	overrideTypeFirst = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

	wordParagraph  = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	wordText       = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	drawParagraph  = regexp.MustCompile(`(?s)<a:p[ >].*?</a:p>`)
	drawText       = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)
	slideEntryName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// docxMainDocument resolves the main document part from [Content_Types].xml,
// falling back to word/document.xml.
func docxMainDocument(zr *zip.Reader) string {
	ct, err := readZipEntry(zr, contentTypesPath)
	if err != nil || ct == nil {
		return docxDefaultDocument
	}
	for _, re := range []*regexp.Regexp{overridePartFirst, overrideTypeFirst} {
		if m := re.FindSubmatch(ct); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return docxDefaultDocument
}

// extractDOCX returns the paragraphs of the main document part of a .docx file.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	docPath := docxMainDocument(zr)
	xml, err := readZipEntry(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if xml == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	return joinParagraphs(paragraphs(string(xml), wordParagraph, wordText)), nil
}

// extractPPTX returns the paragraphs of every slide in slide-number order.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideEntryName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var paras []string
	for _, s := range slides {
		xml, err := readZipEntry(zr, s.name)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		paras = append(paras, paragraphs(string(xml), drawParagraph, drawText)...)
	}
	return joinParagraphs(paras), nil
}
