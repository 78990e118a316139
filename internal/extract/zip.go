package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readZipEntry returns the contents of the named entry, or nil when it does not exist.
func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, nil
}

var anyTag = regexp.MustCompile(`<[^>]*>`)

// paragraphs returns the text of every paragraph matched by paraRe. Within a paragraph,
// the text of runs matched by runRe is concatenated; runs split words arbitrarily.
func paragraphs(xml string, paraRe, runRe *regexp.Regexp) []string {
	var out []string
	for _, p := range paraRe.FindAllString(xml, -1) {
		var b strings.Builder
		for _, run := range runRe.FindAllStringSubmatch(p, -1) {
			b.WriteString(run[1])
		}
		text := strings.TrimSpace(html.UnescapeString(b.String()))
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

func joinParagraphs(paras []string) string {
	return strings.Join(paras, "\n\n")
}
