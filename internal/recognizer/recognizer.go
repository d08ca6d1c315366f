// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package recognizer provides named-entity recognizers consumed by the
// redaction engine. A recognizer labels substrings of a text with categories
// such as PERSON, ORG, DATE or GPE and reports character offsets.
//
// The production recognizer is expensive to build and is shared by the whole
// process through Shared. Tests inject Static or Func values instead.
package recognizer

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"clearclause/internal/detector"
)

var (
	// ErrModelUnavailable is returned when the model artifact can neither be
	// read locally nor fetched.
	ErrModelUnavailable = errors.New("recognizer model unavailable")

	// ErrRecognizerUnavailable is returned when a remote recognizer fails its
	// startup health check.
	ErrRecognizerUnavailable = errors.New("recognizer unavailable")

	// ErrInvalidEntity is returned when a recognizer reports offsets outside
	// the text it was given.
	ErrInvalidEntity = errors.New("recognizer returned invalid entity offsets")
)

// Entity is a single recognizer hit. Start and End are character (rune)
// offsets into the analysed text, End exclusive.
type Entity struct {
	Label string `json:"label" yaml:"label"`
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
}

// Span returns the entity's offsets.
func (e Entity) Span() detector.Span {
	return detector.Span{Start: e.Start, End: e.End}
}

// Recognizer detects named entities in text. Implementations must be safe
// for concurrent use once constructed.
type Recognizer interface {
	Detect(text string) ([]Entity, error)
}

// Func adapts a function to the Recognizer interface.
type Func func(text string) ([]Entity, error)

// Detect calls f.
func (f Func) Detect(text string) ([]Entity, error) {
	return f(text)
}

// Static returns the same entities for every text. Entities that do not fit
// the analysed text are dropped so one fixture can serve several inputs.
type Static []Entity

// Detect returns a copy of the entities that fit text.
func (s Static) Detect(text string) ([]Entity, error) {
	n := utf8.RuneCountInString(text)
	out := make([]Entity, 0, len(s))
	for _, e := range s {
		if e.Span().ValidFor(n) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Validate checks that every entity lies within a text of n characters.
func Validate(entities []Entity, n int) error {
	for _, e := range entities {
		if !e.Span().ValidFor(n) {
			return fmt.Errorf("%w: %s [%d,%d) for text of %d characters", ErrInvalidEntity, e.Label, e.Start, e.End, n)
		}
	}
	return nil
}
