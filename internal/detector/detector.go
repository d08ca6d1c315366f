// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import (
	"fmt"
	"unicode/utf8"

	"clearclause/internal/security"
)

// Category labels a detection. The four recognizer categories share the
// recognizer's label vocabulary; PHONE only comes from the phone detector.
type Category string

const (
	CategoryPerson Category = "PERSON"
	CategoryOrg    Category = "ORG"
	CategoryDate   Category = "DATE"
	CategoryGPE    Category = "GPE"
	CategoryPhone  Category = "PHONE"
)

// redactableLabels is the allow-list applied to recognizer output.
var redactableLabels = func() map[string]bool {
	labels := make(map[string]bool)
	for _, c := range RedactableCategories() {
		labels[string(c)] = true
	}
	return labels
}()

// IsRedactable reports whether a recognizer label is in the allow-list.
func IsRedactable(label string) bool {
	return redactableLabels[label]
}

// RedactableCategories returns the allow-listed recognizer categories in a
// stable order.
func RedactableCategories() []Category {
	return []Category{CategoryPerson, CategoryOrg, CategoryDate, CategoryGPE}
}

// Span is a half-open [Start, End) interval of character (rune) offsets.
type Span struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Overlaps reports whether two spans share at least one character.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// ValidFor reports whether the span fits a text of n characters.
func (s Span) ValidFor(n int) bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= n
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// Match represents a single detection in a text, used for entity listings.
type Match struct {
	Text       string                 `json:"text,omitempty" yaml:"text,omitempty"`
	SecureText *security.SecureString `json:"-" yaml:"-"`
	Label      Category               `json:"label" yaml:"label"`
	Start      int                    `json:"start" yaml:"start"`
	End        int                    `json:"end" yaml:"end"`
}

// Clear wipes the matched text.
func (m *Match) Clear() {
	m.Text = ""
	if m.SecureText != nil {
		m.SecureText.Clear()
		m.SecureText = nil
	}
}

// OffsetIndex converts byte offsets produced by the regexp package into
// character offsets.
type OffsetIndex struct {
	text  string
	ascii bool
}

// NewOffsetIndex builds an index over text.
func NewOffsetIndex(text string) *OffsetIndex {
	ascii := true
	for i := 0; i < len(text); i++ {
		if text[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	return &OffsetIndex{text: text, ascii: ascii}
}

// Rune returns the character offset for a byte offset.
func (idx *OffsetIndex) Rune(byteOffset int) int {
	if idx.ascii {
		return byteOffset
	}
	return utf8.RuneCountInString(idx.text[:byteOffset])
}

// Span converts a [start, end) byte range into a character span.
func (idx *OffsetIndex) Span(byteStart, byteEnd int) Span {
	start := idx.Rune(byteStart)
	if idx.ascii {
		return Span{Start: start, End: byteEnd}
	}
	return Span{Start: start, End: start + utf8.RuneCountInString(idx.text[byteStart:byteEnd])}
}
