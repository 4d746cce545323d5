// Package export renders the sentence list as a downloadable file.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatText Format = "txt"
	FormatPDF  Format = "pdf"
)

// Request contains parameters for an export operation
type Request struct {
	Format Format
	Title  string
	Group  string // informational, the caller has already filtered
}

// Sentence is the part of a sentence that ends up in an export
type Sentence struct {
	Text      string
	Group     string
	Difficult bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrUnsupportedFormat is returned for formats other than txt and pdf.
	ErrUnsupportedFormat = errors.New("export format unsupported")
)
