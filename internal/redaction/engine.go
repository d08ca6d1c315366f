// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package redaction replaces personally identifiable information in free
// text with a fixed marker.
//
// Spans come from two independent detectors: a named-entity recognizer,
// filtered to the PERSON, ORG, DATE and GPE labels, and a phone number
// pattern. The spans are deduplicated, ordered right to left and replaced
// with Marker. A summary can be computed afterwards by counting markers in
// the result and re-running detection on the original text.
//
// An Engine holds no per-call state and is safe for concurrent use as long
// as its recognizer is.
package redaction

import (
	"unicode/utf8"

	"clearclause/internal/detector"
	"clearclause/internal/observability"
	"clearclause/internal/recognizer"
	"clearclause/internal/validators/phone"
)

// Summary reports what a redaction removed.
type Summary struct {
	// TotalRedactions is the number of markers in the redacted text.
	TotalRedactions int `json:"total_redactions" yaml:"total_redactions"`

	// EntityBreakdown counts raw detections in the original text per
	// category. PHONE is present only when at least one phone number was
	// found.
	EntityBreakdown map[string]int `json:"entity_breakdown" yaml:"entity_breakdown"`
}

// EntityReport lists every detection in a text. Entity text is original
// PII and must be cleared or withheld by callers that do not need it.
type EntityReport struct {
	Entities      []detector.Match `json:"entities" yaml:"entities"`
	TotalEntities int              `json:"total_entities" yaml:"total_entities"`
}

// Clear wipes the matched text of every entity.
func (r *EntityReport) Clear() {
	if r == nil {
		return
	}
	for i := range r.Entities {
		r.Entities[i].Clear()
	}
}

// Options configures an Engine.
type Options struct {
	OverlapMode OverlapMode

	// DisablePhoneDetection turns off the phone detector entirely.
	DisablePhoneDetection bool

	Observer *observability.StandardObserver
}

// Engine redacts text using a recognizer and a phone validator.
type Engine struct {
	collector *Collector
	mode      OverlapMode
	observer  *observability.StandardObserver
}

// NewEngine creates an engine. A nil phone validator selects the default
// pattern.
func NewEngine(rec recognizer.Recognizer, phoneValidator *phone.Validator, opts Options) (*Engine, error) {
	if rec == nil {
		return nil, NewRedactionError(ErrorConfiguration, "new_engine", "a recognizer is required", nil)
	}

	mode, err := ParseOverlapMode(string(opts.OverlapMode))
	if err != nil {
		return nil, NewRedactionError(ErrorConfiguration, "new_engine", "invalid overlap mode", err)
	}

	if opts.DisablePhoneDetection {
		phoneValidator = nil
	} else if phoneValidator == nil {
		phoneValidator = phone.NewValidator()
	}
	if phoneValidator != nil && opts.Observer != nil {
		phoneValidator.SetObserver(opts.Observer)
	}

	return &Engine{
		collector: NewCollector(rec, phoneValidator),
		mode:      mode,
		observer:  opts.Observer,
	}, nil
}

// Observer returns the engine's observer, which may be nil.
func (e *Engine) Observer() *observability.StandardObserver {
	return e.observer
}

// OverlapMode returns the resolver mode the engine uses.
func (e *Engine) OverlapMode() OverlapMode {
	return e.mode
}

// Redact returns text with every detected span replaced by Marker. Empty
// input is returned as is without running any detector. Recognizer
// failures are returned, never treated as "nothing found". Invalid UTF-8
// is replaced byte by byte with U+FFFD before detection, whether or not
// anything is redacted.
func (e *Engine) Redact(text string) (string, error) {
	if text == "" {
		return text, nil
	}
	text = normalizeText(text)

	var finishTiming func(bool, map[string]interface{})
	if e.observer != nil {
		finishTiming = e.observer.StartTiming("redaction_engine", "redact", "")
	}

	spans, err := e.collector.Collect(text)
	if err != nil {
		if finishTiming != nil {
			finishTiming(false, map[string]interface{}{"text_length": utf8.RuneCountInString(text)})
		}
		return "", err
	}

	resolved := Resolve(spans, e.mode)
	redacted := Apply(text, resolved)

	if finishTiming != nil {
		finishTiming(true, map[string]interface{}{
			"text_length":    utf8.RuneCountInString(text),
			"raw_spans":      len(spans),
			"resolved_spans": len(resolved),
			"overlap_mode":   string(e.mode),
		})
	}
	return redacted, nil
}

// Summarize counts markers in redacted and re-runs detection on original to
// break detections down by category. The breakdown counts every detection,
// so it can differ from the marker count when spans overlap.
func (e *Engine) Summarize(original, redacted string) (*Summary, error) {
	summary := &Summary{EntityBreakdown: map[string]int{}}
	if original == "" {
		return summary, nil
	}
	original = normalizeText(original)

	var finishTiming func(bool, map[string]interface{})
	if e.observer != nil {
		finishTiming = e.observer.StartTiming("redaction_engine", "summarize", "")
	}

	summary.TotalRedactions = CountMarkers(redacted)

	entities, err := e.collector.entities(original)
	if err != nil {
		if finishTiming != nil {
			finishTiming(false, nil)
		}
		return nil, err
	}
	for _, ent := range entities {
		summary.EntityBreakdown[ent.Label]++
	}

	if e.collector.phone != nil {
		if n := e.collector.phone.Count(original); n > 0 {
			summary.EntityBreakdown[string(detector.CategoryPhone)] = n
		}
	}

	if finishTiming != nil {
		finishTiming(true, map[string]interface{}{
			"total_redactions": summary.TotalRedactions,
			"categories":       len(summary.EntityBreakdown),
		})
	}
	return summary, nil
}

// EntityDetails lists every allow-listed recognizer entity followed by
// every phone match, with the matched text.
func (e *Engine) EntityDetails(text string) (*EntityReport, error) {
	report := &EntityReport{Entities: []detector.Match{}}
	if text == "" {
		return report, nil
	}
	text = normalizeText(text)

	entities, err := e.collector.entities(text)
	if err != nil {
		return nil, err
	}

	runes := []rune(text)
	for _, ent := range entities {
		report.Entities = append(report.Entities, detector.Match{
			Text:  string(runes[ent.Start:ent.End]),
			Label: detector.Category(ent.Label),
			Start: ent.Start,
			End:   ent.End,
		})
	}
	if e.collector.phone != nil {
		report.Entities = append(report.Entities, e.collector.phone.FindMatches(text)...)
	}

	report.TotalEntities = len(report.Entities)
	return report, nil
}

// Collector gathers candidate spans from the recognizer and the phone
// validator. The two sources run independently and their spans may overlap.
type Collector struct {
	recognizer recognizer.Recognizer
	phone      *phone.Validator
}

// NewCollector creates a collector. A nil phone validator disables phone
// detection.
func NewCollector(rec recognizer.Recognizer, phoneValidator *phone.Validator) *Collector {
	return &Collector{recognizer: rec, phone: phoneValidator}
}

// Collect returns the raw spans for text, recognizer spans first.
func (c *Collector) Collect(text string) ([]detector.Span, error) {
	entities, err := c.entities(text)
	if err != nil {
		return nil, err
	}

	spans := make([]detector.Span, 0, len(entities))
	for _, ent := range entities {
		spans = append(spans, ent.Span())
	}
	if c.phone != nil {
		spans = append(spans, c.phone.FindSpans(text)...)
	}
	return spans, nil
}

// entities runs the recognizer and keeps allow-listed labels. Offsets are
// validated before anything uses them to index the text.
func (c *Collector) entities(text string) ([]recognizer.Entity, error) {
	all, err := c.recognizer.Detect(text)
	if err != nil {
		return nil, NewRedactionError(ErrorRecognition, "detect", "entity recognition failed", err)
	}

	kept := make([]recognizer.Entity, 0, len(all))
	for _, ent := range all {
		if detector.IsRedactable(ent.Label) {
			kept = append(kept, ent)
		}
	}

	if err := recognizer.Validate(kept, utf8.RuneCountInString(text)); err != nil {
		return nil, NewRedactionError(ErrorValidation, "detect", "recognizer returned unusable offsets", err)
	}
	return kept, nil
}

// normalizeText maps each invalid UTF-8 byte to U+FFFD so that rune offsets
// from every detector agree with the text that is redacted.
func normalizeText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return string([]rune(text))
}
