package fileid

import (
	"testing"
)

func TestContentHash(t *testing.T) {
	h1 := ContentHash([]byte("Vendor shall comply."))
	h2 := ContentHash([]byte("Vendor shall comply."))
	if h1 != h2 {
		t.Errorf("same bytes should give same hash: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
	if h1 != ContentHash([]byte("Vendor shall comply.")) {
		t.Error("hash must be stable")
	}
}

func TestContentHash_differentContent(t *testing.T) {
	if ContentHash([]byte("a")) == ContentHash([]byte("b")) {
		t.Error("different content should give different hashes")
	}
}

func TestContentHash_empty(t *testing.T) {
	// sha256 of the empty input
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := ContentHash(nil); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStoredName(t *testing.T) {
	tests := []struct {
		id, fileType, want string
	}{
		{"abc", "pdf", "abc.pdf"},
		{"abc", FileType("/uploads/policy.docx"), "abc.docx"},
		{"abc", FileType("README"), "abc"},
		{"abc", FileType("archive.tar.gz"), "abc.gz"},
		{"abc", "../etc", "abc"},
		{"abc", "PDF", "abc"},
	}
	for _, tt := range tests {
		if got := StoredName(tt.id, tt.fileType); got != tt.want {
			t.Errorf("StoredName(%q, %q) = %q, want %q", tt.id, tt.fileType, got, tt.want)
		}
	}
}

func TestValidFileType(t *testing.T) {
	for _, ft := range []string{"pdf", "xlsx", "mp4"} {
		if !ValidFileType(ft) {
			t.Errorf("%q should be valid", ft)
		}
	}
	for _, ft := range []string{"", ".pdf", "x/y", "tar.gz", "Pdf"} {
		if ValidFileType(ft) {
			t.Errorf("%q should be invalid", ft)
		}
	}
}

func TestFileType(t *testing.T) {
	if got := FileType("report.XLSX"); got != "xlsx" {
		t.Errorf("got %q", got)
	}
	if got := FileType("notes"); got != "" {
		t.Errorf("got %q", got)
	}
}
