// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package preprocessors

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var pdfMagic = []byte("%PDF-")

var disableConfigDir sync.Once

// PDFPreprocessor extracts page text from PDF documents held in memory.
type PDFPreprocessor struct {
	// MaxPages bounds extraction for very large documents; 0 means no limit.
	MaxPages int

	pdfConfig *model.Configuration
}

// NewPDFPreprocessor creates a PDF preprocessor. pdfcpu is configured not
// to create its configuration directory.
func NewPDFPreprocessor() *PDFPreprocessor {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFPreprocessor{
		MaxPages:  500,
		pdfConfig: model.NewDefaultConfiguration(),
	}
}

// GetName returns the name of this preprocessor
func (pp *PDFPreprocessor) GetName() string {
	return "PDF Text Preprocessor"
}

// CanProcess accepts .pdf files and anything starting with the PDF header.
func (pp *PDFPreprocessor) CanProcess(filename string, data []byte) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf") || bytes.HasPrefix(data, pdfMagic)
}

// Process validates the document and joins the text of every page with a
// newline. A document without text yields ErrNoText.
func (pp *PDFPreprocessor) Process(filename string, data []byte) (*ProcessedContent, error) {
	if err := api.Validate(bytes.NewReader(data), pp.pdfConfig); err != nil {
		return nil, fmt.Errorf("invalid PDF file: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("error opening PDF: %w", err)
	}

	pageCount := r.NumPage()
	truncated := false
	if pp.MaxPages > 0 && pageCount > pp.MaxPages {
		pageCount = pp.MaxPages
		truncated = true
	}

	var buf strings.Builder
	for i := 1; i <= pageCount; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("error extracting page %d: %w", i, err)
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	content, err := newContent(filename, "pdf", pp.GetName(), strings.TrimSpace(buf.String()), pageCount)
	if err != nil {
		return nil, err
	}
	content.Truncated = truncated
	return content, nil
}
