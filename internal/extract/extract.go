// Package extract converts raw source documents into plain-text units.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/askdocs/askdocs/internal/store"
)

// ErrExtraction marks a document that could not be read as a valid
// PDF. Extraction failures are isolated per document: one bad file
// never aborts a batch.
var ErrExtraction = errors.New("document extraction failed")

// Extractor converts one stored raw document into a TextUnit.
type Extractor interface {
	Extract(name string) (store.TextUnit, error)
}

// PDFExtractor extracts text from PDF documents page by page,
// joining pages with a newline.
type PDFExtractor struct {
	store *store.Store
}

// NewPDF creates a PDFExtractor reading from the given store.
func NewPDF(s *store.Store) *PDFExtractor {
	return &PDFExtractor{store: s}
}

func (e *PDFExtractor) Extract(name string) (unit store.TextUnit, err error) {
	f, size, err := e.store.OpenRaw(name)
	if err != nil {
		return store.TextUnit{}, err
	}
	defer f.Close()

	// The pdf package panics on some malformed inputs; treat that the
	// same as a parse error so the batch keeps going.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrExtraction, name, r)
		}
	}()

	reader, err := pdf.NewReader(f, size)
	if err != nil {
		return store.TextUnit{}, fmt.Errorf("%w: %s: %v", ErrExtraction, name, err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return store.TextUnit{}, fmt.Errorf("%w: %s page %d: %v", ErrExtraction, name, i, err)
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}

	return store.TextUnit{
		Name:   store.TextName(name),
		Source: name,
		Text:   b.String(),
	}, nil
}
