// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package text

import (
	"fmt"
	"sort"
	"strings"

	"clearclause/internal/detector"
	"clearclause/internal/formatters"

	"github.com/fatih/color"
)

// Formatter implements text-based output formatting
type Formatter struct{}

// NewFormatter creates a new text formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "text"
}

func (f *Formatter) Description() string {
	return "Human-readable text output with colors"
}

func (f *Formatter) FileExtension() string {
	return ".txt"
}

// palette returns fresh colors so that disabling them does not affect
// other callers of the color package.
func palette(noColor bool) map[string]*color.Color {
	colors := map[string]*color.Color{
		"green":   color.New(color.FgGreen),
		"yellow":  color.New(color.FgYellow),
		"red":     color.New(color.FgRed),
		"cyan":    color.New(color.FgCyan),
		"magenta": color.New(color.FgMagenta),
		"blue":    color.New(color.FgBlue),
		"white":   color.New(color.FgWhite, color.Bold),
	}
	if noColor {
		for _, c := range colors {
			c.DisableColor()
		}
	}
	return colors
}

func labelColor(colors map[string]*color.Color, label detector.Category) *color.Color {
	switch label {
	case detector.CategoryPerson:
		return colors["red"]
	case detector.CategoryOrg:
		return colors["magenta"]
	case detector.CategoryGPE:
		return colors["blue"]
	case detector.CategoryDate:
		return colors["cyan"]
	case detector.CategoryPhone:
		return colors["yellow"]
	default:
		return colors["white"]
	}
}

func (f *Formatter) Format(report *formatters.Report, options formatters.FormatterOptions) (string, error) {
	r := formatters.Prepare(report, options)
	colors := palette(options.NoColor)

	var sb strings.Builder

	if !options.SummaryOnly {
		sb.WriteString(r.RedactedText)
		if !strings.HasSuffix(r.RedactedText, "\n") {
			sb.WriteString("\n")
		}
	}

	if r.Summary != nil {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		title := "REDACTION SUMMARY"
		if r.Source != "" {
			title += " (" + r.Source + ")"
		}
		sb.WriteString(colors["white"].Sprintln(title))
		if r.Summary.TotalRedactions == 0 {
			sb.WriteString(colors["green"].Sprintln("No personal information found."))
		} else {
			sb.WriteString(fmt.Sprintf("Total redactions: %s\n", colors["white"].Sprint(r.Summary.TotalRedactions)))
		}

		labels := make([]string, 0, len(r.Summary.EntityBreakdown))
		for label := range r.Summary.EntityBreakdown {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			c := labelColor(colors, detector.Category(label))
			sb.WriteString(fmt.Sprintf("  %-8s %d\n", c.Sprint(label), r.Summary.EntityBreakdown[label]))
		}
	}

	if r.Entities != nil {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(colors["white"].Sprintf("ENTITIES (%d)\n", r.Entities.TotalEntities))
		for _, m := range r.Entities.Entities {
			c := labelColor(colors, m.Label)
			line := fmt.Sprintf("  %-8s [%d, %d)", c.Sprint(string(m.Label)), m.Start, m.End)
			if m.Text != "" {
				line += fmt.Sprintf(" %q", m.Text)
			}
			sb.WriteString(line + "\n")
		}
	}

	return sb.String(), nil
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
