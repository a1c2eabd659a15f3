package render

import (
	"bytes"
	"fmt"
	"log"

	ltpdf "github.com/ledongthuc/pdf"
)

// TemplateInfo describes an accepted template.
type TemplateInfo struct {
	PageCount int
}

// Inspector validates uploaded template bytes before a session is
// created, so a corrupt upload is rejected up front instead of after the
// user has answered every question.
type Inspector struct {
	maxSize int64
}

// NewInspector creates an inspector enforcing the given size limit.
func NewInspector(maxSize int64) *Inspector {
	return &Inspector{maxSize: maxSize}
}

// Inspect checks that doc is a parseable PDF within the size limit.
// pdfcpu is authoritative; a second, stricter parser cross-checks the
// page count and logs disagreement without failing the upload.
func (i *Inspector) Inspect(doc []byte) (*TemplateInfo, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrCorruptTemplate)
	}
	if i.maxSize > 0 && int64(len(doc)) > i.maxSize {
		return nil, fmt.Errorf("template too large: %d bytes (max: %d bytes)", len(doc), i.maxSize)
	}

	ctx, err := readContext(doc)
	if err != nil {
		return nil, err
	}
	info := &TemplateInfo{PageCount: ctx.PageCount}

	if reader, err := ltpdf.NewReader(bytes.NewReader(doc), int64(len(doc))); err != nil {
		log.Printf("secondary template parse failed (continuing): %v", err)
	} else if n := reader.NumPage(); n != info.PageCount {
		log.Printf("template page count disagreement: pdfcpu=%d secondary=%d", info.PageCount, n)
	}

	return info, nil
}
