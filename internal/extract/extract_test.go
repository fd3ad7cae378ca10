package extract

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestTextPlain(t *testing.T) {
	path := writeFile(t, "note.txt", []byte("The sky is blue.\n"))
	text, err := Text(path, TypePlain)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "The sky is blue.\n" {
		t.Errorf("text = %q", text)
	}
}

func TestTextUnsupportedType(t *testing.T) {
	path := writeFile(t, "pic.png", []byte{0x89, 'P', 'N', 'G'})
	_, err := Text(path, "image/png")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestTextEmptyContent(t *testing.T) {
	path := writeFile(t, "blank.txt", []byte("   \n\t  \n"))
	_, err := Text(path, TypePlain)
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
}

func TestTextMissingFile(t *testing.T) {
	_, err := Text(filepath.Join(t.TempDir(), "gone.txt"), TypePlain)
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}

func TestTextCorruptPDF(t *testing.T) {
	path := writeFile(t, "bad.pdf", []byte("not a pdf at all"))
	_, err := Text(path, TypePDF)
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}

func TestTextCorruptDOCX(t *testing.T) {
	path := writeFile(t, "bad.docx", []byte("not a zip"))
	_, err := Text(path, TypeDOCX)
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}

func TestTextDOCXParagraphs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	const documentXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file close: %v", err)
	}

	text, err := Text(path, TypeDOCX)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.Contains(text, "First paragraph.\nSecond paragraph.") {
		t.Errorf("text = %q, want newline-joined paragraphs", text)
	}
}

func TestTextDOCXEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("word/document.xml")
	w.Write([]byte(`<w:document xmlns:w="x"><w:body><w:p></w:p></w:body></w:document>`))
	zw.Close()
	f.Close()

	_, err = Text(path, TypeDOCX)
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
}

func TestSupported(t *testing.T) {
	for _, ct := range []string{TypePDF, TypeDOCX, TypeDOC, TypePlain} {
		if !Supported(ct) {
			t.Errorf("Supported(%q) = false", ct)
		}
	}
	if Supported("image/png") {
		t.Error("Supported(image/png) = true")
	}
}
