// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package formatters

import (
	"fmt"
	"sort"
	"strings"

	"clearclause/internal/detector"
	"clearclause/internal/redaction"
)

// Report is the result of redacting one document.
type Report struct {
	Source       string                  `json:"source,omitempty" yaml:"source,omitempty"`
	RedactedText string                  `json:"redacted_text,omitempty" yaml:"redacted_text,omitempty"`
	Summary      *redaction.Summary      `json:"summary,omitempty" yaml:"summary,omitempty"`
	Entities     *redaction.EntityReport `json:"entities,omitempty" yaml:"entities,omitempty"`
}

// FormatterOptions defines configuration options for formatters
type FormatterOptions struct {
	NoColor      bool // Whether to disable colored output
	ShowEntities bool // Whether entity listings include the original matched text
	SummaryOnly  bool // Whether to omit the redacted text
}

// Formatter interface defines methods that all output formatters must implement
type Formatter interface {
	// Format renders the report according to the formatter's specific output format
	Format(report *Report, options FormatterOptions) (string, error)

	// Name returns the name of the formatter (e.g., "json", "text", "yaml")
	Name() string

	// Description returns a brief description of what this formatter outputs
	Description() string

	// FileExtension returns the recommended file extension for this format (e.g., ".json", ".txt")
	FileExtension() string
}

// Prepare returns a copy of report shaped by options. Entity text is
// withheld unless options.ShowEntities is set; the input is not modified.
func Prepare(report *Report, options FormatterOptions) *Report {
	if report == nil {
		return &Report{}
	}
	out := *report
	if options.SummaryOnly {
		out.RedactedText = ""
	}
	if report.Entities != nil {
		entities := make([]detector.Match, len(report.Entities.Entities))
		for i, m := range report.Entities.Entities {
			entities[i] = detector.Match{Label: m.Label, Start: m.Start, End: m.End}
			if options.ShowEntities {
				entities[i].Text = m.Text
			}
		}
		out.Entities = &redaction.EntityReport{Entities: entities, TotalEntities: report.Entities.TotalEntities}
	}
	return &out
}

// Registry holds all registered formatters
type Registry struct {
	formatters map[string]Formatter
}

// NewRegistry creates a new formatter registry
func NewRegistry() *Registry {
	return &Registry{
		formatters: make(map[string]Formatter),
	}
}

// Register adds a formatter to the registry
func (r *Registry) Register(formatter Formatter) {
	r.formatters[formatter.Name()] = formatter
}

// Get retrieves a formatter by name
func (r *Registry) Get(name string) (Formatter, bool) {
	formatter, exists := r.formatters[name]
	return formatter, exists
}

// List returns all registered formatter names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatInfo provides metadata about a formatter for HTTP responses
type FormatInfo struct {
	Name        string
	Description string
	Extension   string
	MimeType    string
}

// DefaultRegistry is the global formatter registry
var DefaultRegistry = NewRegistry()

// Register is a convenience function to register a formatter with the default registry
func Register(formatter Formatter) {
	DefaultRegistry.Register(formatter)
}

// Get is a convenience function to get a formatter from the default registry
func Get(name string) (Formatter, bool) {
	return DefaultRegistry.Get(name)
}

// List is a convenience function to list all formatters in the default registry
func List() []string {
	return DefaultRegistry.List()
}

// Export is a service-level function that provides unified formatting for both CLI and web
func Export(format string, report *Report, options FormatterOptions) (string, error) {
	formatter, exists := Get(format)
	if !exists {
		return "", fmt.Errorf("unsupported format '%s'. Available formats: %s", format, strings.Join(List(), ", "))
	}
	return formatter.Format(report, options)
}

// ExportForWeb provides web-friendly export with a MIME type and download filename
func ExportForWeb(format string, report *Report, options FormatterOptions) (content string, mimeType string, filename string, err error) {
	options.NoColor = true
	content, err = Export(format, report, options)
	if err != nil {
		return "", "", "", err
	}

	info := GetFormatInfo(format)
	return content, info.MimeType, "clearclause-report" + info.Extension, nil
}

// GetFormatInfo returns metadata about a specific formatter
func GetFormatInfo(name string) FormatInfo {
	formatter, exists := Get(name)
	if !exists {
		return FormatInfo{}
	}

	info := FormatInfo{
		Name:        formatter.Name(),
		Description: formatter.Description(),
		Extension:   formatter.FileExtension(),
	}

	switch name {
	case "json":
		info.MimeType = "application/json"
	case "yaml":
		info.MimeType = "application/x-yaml"
	case "text":
		info.MimeType = "text/plain; charset=utf-8"
	default:
		info.MimeType = "application/octet-stream"
	}

	return info
}
