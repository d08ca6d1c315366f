// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package preprocessors

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// PlainTextPreprocessor passes text documents through unchanged.
type PlainTextPreprocessor struct{}

// NewPlainTextPreprocessor creates a new plain text preprocessor
func NewPlainTextPreprocessor() *PlainTextPreprocessor {
	return &PlainTextPreprocessor{}
}

// GetName returns the name of this preprocessor
func (ptp *PlainTextPreprocessor) GetName() string {
	return "Plain Text Preprocessor"
}

// GetSupportedExtensions returns the file extensions this preprocessor supports
func (ptp *PlainTextPreprocessor) GetSupportedExtensions() []string {
	return []string{".txt", ".text", ".md", ".markdown", ".rst", ".csv", ".tsv", ".log", ".eml"}
}

// CanProcess accepts known text extensions, and anything else whose leading
// bytes look like text.
func (ptp *PlainTextPreprocessor) CanProcess(filename string, data []byte) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, supportedExt := range ptp.GetSupportedExtensions() {
		if ext == supportedExt {
			return true
		}
	}
	return isText(data)
}

// Process returns the document text. Invalid UTF-8 sequences are dropped.
func (ptp *PlainTextPreprocessor) Process(filename string, data []byte) (*ProcessedContent, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	return newContent(filename, "text", ptp.GetName(), text, 1)
}

// isText performs a quick check on the first 512 bytes for binary content.
func isText(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}

	// A multi-byte rune may be cut at the boundary.
	for i := 0; i < utf8.UTFMax && len(head) > 0 && !utf8.Valid(head); i++ {
		head = head[:len(head)-1]
	}
	return utf8.Valid(head)
}
