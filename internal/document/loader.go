// Package document extracts page-level text from the source PDF.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrNotFound indicates the source document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrNotPDF indicates the file is not a PDF.
	ErrNotPDF = errors.New("document is not a PDF")
	// ErrEmptyDocument indicates no text could be extracted from any page.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)

// Page is the extracted text of a single document page. Numbers are 1-based.
type Page struct {
	Number int
	Text   string
}

// Loader reads PDF files into ordered page text.
type Loader struct{}

// NewLoader creates a PDF loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load extracts per-page plain text from the PDF at path. Pages that yield
// no text are kept out of the result; an entirely empty document is an error.
func (l *Loader) Load(path string) ([]Page, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".pdf" {
		return nil, fmt.Errorf("%w: %s", ErrNotPDF, path)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("parse PDF: %w", err)
	}

	var pages []Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, path)
	}
	return pages, nil
}

// Fingerprint returns a stable SHA-256 hex digest of the file contents,
// used to detect a changed source document between builds.
func Fingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("read document: %w", err)
	}
	return hashBytes(data), nil
}
