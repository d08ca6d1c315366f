// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package preprocessors turns uploaded or local documents into plain text
// for the redaction engine. Documents are processed in memory; nothing is
// written to disk.
package preprocessors

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"clearclause/internal/observability"
	"clearclause/internal/security"
)

var (
	// ErrNoText is returned when a document contains no extractable text.
	ErrNoText = errors.New("no text found in document")

	// ErrUnsupported is returned when no preprocessor accepts the document.
	ErrUnsupported = errors.New("unsupported document type")

	// ErrTooLarge is returned when input exceeds the configured limit.
	ErrTooLarge = errors.New("document exceeds size limit")
)

// ProcessedContent represents content that has been processed by a preprocessor
type ProcessedContent struct {
	Filename string

	// Extracted content. Callers clear it once the text has been redacted.
	Text *security.SecureString

	// Content metadata
	Format    string
	PageCount int
	CharCount int
	LineCount int

	// Truncated is set when pages past a preprocessor's limit were skipped.
	Truncated bool

	// Processing information
	ProcessorType string
}

// String returns the extracted text.
func (pc *ProcessedContent) String() string {
	if pc == nil {
		return ""
	}
	return pc.Text.String()
}

// Clear wipes the extracted text.
func (pc *ProcessedContent) Clear() {
	if pc != nil {
		pc.Text.Clear()
	}
}

// Preprocessor interface defines methods for preprocessing documents
type Preprocessor interface {
	// GetName returns the name of the preprocessor
	GetName() string

	// CanProcess checks if this preprocessor can handle the given document
	CanProcess(filename string, data []byte) bool

	// Process extracts text from the document
	Process(filename string, data []byte) (*ProcessedContent, error)
}

// Chain tries preprocessors in order and uses the first that accepts a
// document.
type Chain struct {
	preprocessors []Preprocessor
	observer      *observability.StandardObserver
}

// NewChain returns the default chain: PDF first, then plain text.
func NewChain() *Chain {
	return &Chain{preprocessors: []Preprocessor{NewPDFPreprocessor(), NewPlainTextPreprocessor()}}
}

// SetObserver sets the observability component
func (c *Chain) SetObserver(observer *observability.StandardObserver) {
	c.observer = observer
}

// Process extracts text from data.
func (c *Chain) Process(filename string, data []byte) (*ProcessedContent, error) {
	var finishTiming func(bool, map[string]interface{})
	if c.observer != nil {
		finishTiming = c.observer.StartTiming("preprocessor_chain", "process", filepath.Base(filename))
	}

	for _, p := range c.preprocessors {
		if !p.CanProcess(filename, data) {
			continue
		}
		content, err := safeProcess(p, filename, data)
		if finishTiming != nil {
			meta := map[string]interface{}{"processor": p.GetName(), "bytes": len(data)}
			if content != nil {
				meta["pages"] = content.PageCount
				meta["chars"] = content.CharCount
				meta["truncated"] = content.Truncated
			}
			finishTiming(err == nil, meta)
		}
		return content, err
	}

	if finishTiming != nil {
		finishTiming(false, map[string]interface{}{"bytes": len(data)})
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(filename))
}

// safeProcess turns a preprocessor panic into an error. Third-party
// parsers can panic on malformed input.
func safeProcess(p Preprocessor, filename string, data []byte) (content *ProcessedContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			content = nil
			err = fmt.Errorf("preprocessor panic in %s: %v", p.GetName(), r)
		}
	}()
	return p.Process(filename, data)
}

// ReadLimited reads r fully, failing with ErrTooLarge past maxBytes.
// maxBytes <= 0 disables the limit.
func ReadLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)
	}
	return data, nil
}

func newContent(filename, format, processor, text string, pages int) (*ProcessedContent, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}
	return &ProcessedContent{
		Filename:      filepath.Base(filename),
		Text:          security.NewSecureString(text),
		Format:        format,
		PageCount:     pages,
		CharCount:     utf8.RuneCountInString(text),
		LineCount:     strings.Count(text, "\n") + 1,
		ProcessorType: processor,
	}, nil
}
