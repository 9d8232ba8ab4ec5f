package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	e := New(nil)

	got := e.Extract([]byte("The quick brown fox jumps"), "text/plain")
	if got.Text != "The quick brown fox jumps" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Format != FormatPlainText {
		t.Errorf("Format = %v, want text", got.Format)
	}
	if got.FellBack {
		t.Error("plain text should not be a fallback")
	}
}

func TestExtractEmptyIsNotAnError(t *testing.T) {
	e := New(nil)

	for _, hint := range []string{"", "application/pdf", ".docx", "text/html"} {
		got := e.Extract(nil, hint)
		if !got.Empty() {
			t.Errorf("hint %q: expected empty extraction, got %q", hint, got.Text)
		}
	}
}

func TestExtractCorruptPDFFallsBackToText(t *testing.T) {
	e := New(nil)

	data := []byte("%PDF-1.4 this is not really a pdf but it has words")
	got := e.Extract(data, "application/pdf")

	if !got.FellBack {
		t.Error("corrupt PDF should fall back to raw text")
	}
	if got.Format != FormatPDF {
		t.Errorf("Format = %v, want pdf", got.Format)
	}
	if !strings.Contains(got.Text, "has words") {
		t.Errorf("fallback text should contain the raw bytes, got %q", got.Text)
	}
}

func TestExtractWrongHintFallsBack(t *testing.T) {
	e := New(nil)

	got := e.Extract([]byte("Plain essay text declared as a PDF"), "essay.pdf")
	if got.Text != "Plain essay text declared as a PDF" {
		t.Errorf("Text = %q", got.Text)
	}
	if !got.FellBack {
		t.Error("expected fallback for mismatched hint")
	}
}

func TestExtractInvalidUTF8(t *testing.T) {
	e := New(nil)

	got := e.Extract([]byte("caf\xff\xfe essay"), "")
	if strings.ContainsRune(got.Text, '�') {
		t.Errorf("invalid bytes should be replaced by spaces, got %q", got.Text)
	}
	if !strings.Contains(got.Text, "essay") {
		t.Errorf("valid text should survive, got %q", got.Text)
	}
}

func TestExtractHTML(t *testing.T) {
	e := New(nil)

	data := []byte(`<html><head><style>body{color:red}</style><script>var x = "hidden";</script></head>
<body><h1>Essay</h1><p>Photosynthesis converts light.</p><p>Plants grow.</p></body></html>`)
	got := e.Extract(data, "text/html")

	if got.FellBack {
		t.Error("valid HTML should not fall back")
	}
	if strings.Contains(got.Text, "hidden") || strings.Contains(got.Text, "color") {
		t.Errorf("script/style content should be dropped, got %q", got.Text)
	}
	for _, want := range []string{"Essay", "Photosynthesis converts light.", "Plants grow."} {
		if !strings.Contains(got.Text, want) {
			t.Errorf("expected %q in %q", want, got.Text)
		}
	}
}

func TestExtractDOCX(t *testing.T) {
	e := New(nil)

	data := buildDOCX(t, []string{"First paragraph here.", "Second paragraph."})
	got := e.Extract(data, "")

	if got.Format != FormatDOCX {
		t.Errorf("Format = %v, want docx (sniffed)", got.Format)
	}
	if got.FellBack {
		t.Error("valid DOCX should not fall back")
	}
	want := "First paragraph here.\nSecond paragraph."
	if got.Text != want {
		t.Errorf("Text = %q, want %q", got.Text, want)
	}
}

func TestExtractDOCXMissingDocument(t *testing.T) {
	e := New(nil)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("other.xml")
	w.Write([]byte("<x/>"))
	zw.Close()

	got := e.Extract(buf.Bytes(), ".docx")
	if !got.FellBack {
		t.Error("DOCX without document.xml should fall back")
	}
}

func TestParseHint(t *testing.T) {
	cases := map[string]Format{
		"application/pdf":           FormatPDF,
		"APPLICATION/PDF":           FormatPDF,
		"text/plain; charset=utf-8": FormatPlainText,
		"text/html":                 FormatHTML,
		".pdf":                      FormatPDF,
		"pdf":                       FormatPDF,
		"Essay.PDF":                 FormatPDF,
		"notes.txt":                 FormatPlainText,
		"report.docx":               FormatDOCX,
		"image/png":                 FormatUnknown,
		"":                          FormatUnknown,
		"archive.tar":               FormatUnknown,
	}
	for hint, want := range cases {
		if got := ParseHint(hint); got != want {
			t.Errorf("ParseHint(%q) = %v, want %v", hint, got, want)
		}
	}
}

func TestDetectFormatSniffs(t *testing.T) {
	if got := DetectFormat("", []byte("%PDF-1.7\n...")); got != FormatPDF {
		t.Errorf("expected pdf, got %v", got)
	}
	if got := DetectFormat("", []byte("  <!DOCTYPE html><html></html>")); got != FormatHTML {
		t.Errorf("expected html, got %v", got)
	}
	if got := DetectFormat("", []byte("just words")); got != FormatUnknown {
		t.Errorf("expected unknown, got %v", got)
	}
	// A recognised hint wins over sniffing.
	if got := DetectFormat("text/plain", []byte("%PDF-1.7")); got != FormatPlainText {
		t.Errorf("expected hint to win, got %v", got)
	}
}

func buildDOCX(t *testing.T, paragraphs []string) []byte {
	t.Helper()

	var doc strings.Builder
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		doc.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	doc.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(doc.String())); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
