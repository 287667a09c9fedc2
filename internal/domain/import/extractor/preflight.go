package extractor

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFCPUPreflight validates the document structure with pdfcpu and reports its
// page count. Validation is relaxed since bank-generated PDFs are rarely strict.
type PDFCPUPreflight struct {
	conf *model.Configuration
}

// NewPDFCPUPreflight builds a preflight with relaxed validation.
func NewPDFCPUPreflight() *PDFCPUPreflight {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPUPreflight{conf: conf}
}

// PageCount returns the number of pages pdfcpu sees in data.
func (p *PDFCPUPreflight) PageCount(data []byte) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			n = 0
			err = fmt.Errorf("pdfcpu panic: %v", rec)
		}
	}()

	n, err = api.PageCount(bytes.NewReader(data), p.conf)
	if err != nil {
		return 0, fmt.Errorf("pdf preflight: %w", err)
	}
	return n, nil
}
