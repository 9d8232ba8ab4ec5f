package extract

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"
)

// Format is the document format resolved once per extraction.
type Format int

const (
	FormatUnknown Format = iota
	FormatPlainText
	FormatPDF
	FormatDOCX
	FormatHTML
)

func (f Format) String() string {
	switch f {
	case FormatPlainText:
		return "text"
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	case FormatHTML:
		return "html"
	default:
		return "unknown"
	}
}

var mimeFormats = map[string]Format{
	"application/pdf":       FormatPDF,
	"application/x-pdf":     FormatPDF,
	"text/plain":            FormatPlainText,
	"text/markdown":         FormatPlainText,
	"text/html":             FormatHTML,
	"application/xhtml+xml": FormatHTML,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDOCX,
}

var extFormats = map[string]Format{
	".pdf":  FormatPDF,
	".txt":  FormatPlainText,
	".text": FormatPlainText,
	".md":   FormatPlainText,
	".htm":  FormatHTML,
	".html": FormatHTML,
	".docx": FormatDOCX,
}

// ParseHint resolves a declared format. The hint may be a MIME type
// ("application/pdf"), an extension (".pdf" or "pdf") or a file name
// ("essay.pdf"). Anything else resolves to FormatUnknown.
func ParseHint(hint string) Format {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return FormatUnknown
	}
	if strings.Contains(hint, "/") {
		if mt, _, err := mime.ParseMediaType(hint); err == nil {
			if f, ok := mimeFormats[mt]; ok {
				return f
			}
		}
		return FormatUnknown
	}
	ext := filepath.Ext(hint)
	if ext == "" {
		ext = "." + hint
	}
	if f, ok := extFormats[ext]; ok {
		return f
	}
	return FormatUnknown
}

// DetectFormat resolves the declared hint and falls back to sniffing the
// leading bytes when the hint is missing or unrecognised.
func DetectFormat(hint string, data []byte) Format {
	if f := ParseHint(hint); f != FormatUnknown {
		return f
	}
	return sniff(data)
}

func sniff(data []byte) Format {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n\ufeff")
	switch {
	case bytes.HasPrefix(trimmed, []byte("%PDF-")):
		return FormatPDF
	case bytes.HasPrefix(head, []byte("PK\x03\x04")) && bytes.Contains(data, []byte("word/document.xml")):
		return FormatDOCX
	}
	lower := bytes.ToLower(trimmed)
	if bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html")) {
		return FormatHTML
	}
	return FormatUnknown
}
