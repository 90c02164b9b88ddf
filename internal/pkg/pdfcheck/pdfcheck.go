package pdfcheck

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrNotPDF = errors.New("not a PDF file")

var magic = []byte("%PDF-")

// HasPDFExtension reports whether name ends in .pdf, ignoring case.
func HasPDFExtension(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// Validate checks that content is a PDF named name. In strict mode the document
// structure must also open and contain at least one page.
func Validate(name string, content []byte, strict bool) error {
	if !HasPDFExtension(name) {
		return fmt.Errorf("%w: %q does not have a .pdf extension", ErrNotPDF, name)
	}
	if !bytes.HasPrefix(content, magic) {
		return fmt.Errorf("%w: missing %%PDF- header", ErrNotPDF)
	}
	if !strict {
		return nil
	}
	return checkStructure(content)
}

func checkStructure(content []byte) (err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: malformed document: %v", ErrNotPDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if reader.NumPage() == 0 {
		return fmt.Errorf("%w: document has no pages", ErrNotPDF)
	}
	return nil
}
