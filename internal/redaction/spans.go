// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redaction

import (
	"fmt"
	"sort"
	"strings"

	"clearclause/internal/detector"
)

// Marker replaces every redacted span.
const Marker = "[REDACTED]"

var markerRunes = []rune(Marker)

// OverlapMode controls how Resolve treats overlapping spans.
type OverlapMode string

const (
	// OverlapSequential applies every distinct span on its own, right to
	// left. Overlapping spans may clobber part of an earlier marker.
	OverlapSequential OverlapMode = "sequential"

	// OverlapMerge coalesces overlapping spans before they are applied.
	OverlapMerge OverlapMode = "merge"
)

// ParseOverlapMode converts a configuration value. Empty selects
// OverlapSequential.
func ParseOverlapMode(s string) (OverlapMode, error) {
	switch OverlapMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverlapSequential:
		return OverlapSequential, nil
	case OverlapMerge:
		return OverlapMerge, nil
	default:
		return "", fmt.Errorf("unknown overlap mode %q (expected %q or %q)", s, OverlapSequential, OverlapMerge)
	}
}

// Resolve deduplicates spans on (Start, End) and orders them for
// replacement: descending Start, ties broken by descending End. In merge
// mode overlapping spans are first coalesced; spans that only touch are
// kept apart.
func Resolve(spans []detector.Span, mode OverlapMode) []detector.Span {
	if len(spans) == 0 {
		return nil
	}

	seen := make(map[detector.Span]struct{}, len(spans))
	unique := make([]detector.Span, 0, len(spans))
	for _, s := range spans {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		unique = append(unique, s)
	}

	if mode == OverlapMerge {
		unique = merge(unique)
	}

	sort.Slice(unique, func(i, j int) bool {
		if unique[i].Start != unique[j].Start {
			return unique[i].Start > unique[j].Start
		}
		return unique[i].End > unique[j].End
	})
	return unique
}

func merge(spans []detector.Span) []detector.Span {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})

	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.Overlaps(*last) {
			last.End = max(last.End, s.End)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// Apply replaces each span with Marker, in the order given. Offsets are
// character offsets into the working text at the time the span is applied;
// bounds past the end are clamped to the current length, so a span that
// falls entirely outside still inserts a marker at the end.
func Apply(text string, spans []detector.Span) string {
	if len(spans) == 0 {
		return text
	}

	result := []rune(text)
	for _, s := range spans {
		start := clamp(s.Start, len(result))
		end := clamp(s.End, len(result))
		if end < start {
			end = start
		}

		next := make([]rune, 0, start+len(markerRunes)+len(result)-end)
		next = append(next, result[:start]...)
		next = append(next, markerRunes...)
		next = append(next, result[end:]...)
		result = next
	}
	return string(result)
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// CountMarkers counts non-overlapping occurrences of Marker in text.
func CountMarkers(text string) int {
	return strings.Count(text, Marker)
}
