// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package phone

import (
	"regexp"

	"clearclause/internal/detector"
	"clearclause/internal/observability"
)

// Pattern matches North-American style numbers: an optional +1 or 1 country
// prefix, a 3-digit area code that may be parenthesized, a 3-digit exchange
// and a 4-digit subscriber number, separated by '-', '.', whitespace or
// nothing. A leading '(' or '+' is consumed as part of the match so the
// whole number is covered.
const Pattern = `(?:\+1[-.\s]?\(?|\b1[-.\s]?\(?|\(|\b)[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`

var phoneRegex = regexp.MustCompile(Pattern)

// Validator finds phone numbers in text. It holds no per-call state and is
// safe for concurrent use.
type Validator struct {
	regex *regexp.Regexp

	observer *observability.StandardObserver
}

// NewValidator creates a phone validator using the package pattern.
func NewValidator() *Validator {
	return &Validator{regex: phoneRegex}
}

// SetObserver sets the observability component
func (v *Validator) SetObserver(observer *observability.StandardObserver) {
	v.observer = observer
}

// FindSpans returns one character span per non-overlapping match, scanning
// left to right.
func (v *Validator) FindSpans(text string) []detector.Span {
	var finishTiming func(bool, map[string]interface{})
	if v.observer != nil {
		finishTiming = v.observer.StartTiming("phone_validator", "find_spans", "")
	}

	locs := v.regex.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		if finishTiming != nil {
			finishTiming(true, map[string]interface{}{"match_count": 0})
		}
		return nil
	}

	idx := detector.NewOffsetIndex(text)
	spans := make([]detector.Span, 0, len(locs))
	for _, loc := range locs {
		spans = append(spans, idx.Span(loc[0], loc[1]))
	}

	if finishTiming != nil {
		finishTiming(true, map[string]interface{}{"match_count": len(spans)})
	}
	return spans
}

// FindMatches returns every phone number with its text and character offsets.
func (v *Validator) FindMatches(text string) []detector.Match {
	locs := v.regex.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	idx := detector.NewOffsetIndex(text)
	matches := make([]detector.Match, 0, len(locs))
	for _, loc := range locs {
		span := idx.Span(loc[0], loc[1])
		matches = append(matches, detector.Match{
			Text:  text[loc[0]:loc[1]],
			Label: detector.CategoryPhone,
			Start: span.Start,
			End:   span.End,
		})
	}
	return matches
}

// Count returns the number of phone numbers in text.
func (v *Validator) Count(text string) int {
	return len(v.regex.FindAllStringIndex(text, -1))
}
