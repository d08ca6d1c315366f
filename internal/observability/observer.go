// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

import (
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"
)

// StandardObserver records per-operation timing for engine components.
// Metadata must only carry counts, lengths and labels, never document text.
type StandardObserver struct {
	level  ObservabilityLevel
	logger hclog.Logger
}

type ObservabilityLevel int

const (
	ObservabilityOff     ObservabilityLevel = 0
	ObservabilityMetrics ObservabilityLevel = 1
	ObservabilityDebug   ObservabilityLevel = 2
)

// NewStandardObserver creates an observer. A nil logger discards output.
func NewStandardObserver(level ObservabilityLevel, logger hclog.Logger) *StandardObserver {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &StandardObserver{
		level:  level,
		logger: logger.Named("observer"),
	}
}

// StartTiming returns a function to complete timing
func (o *StandardObserver) StartTiming(component, operation, source string) func(success bool, metadata map[string]interface{}) {
	start := time.Now()

	return func(success bool, metadata map[string]interface{}) {
		o.LogOperation(StandardObservabilityData{
			Component:  component,
			Operation:  operation,
			Source:     source,
			DurationMs: time.Since(start).Milliseconds(),
			Success:    success,
			Metadata:   metadata,
		})
	}
}

// LogOperation logs operation data
func (o *StandardObserver) LogOperation(data StandardObservabilityData) {
	if o == nil || o.level == ObservabilityOff {
		return
	}

	args := []interface{}{
		"component", data.Component,
		"source", data.Source,
		"duration_ms", data.DurationMs,
		"success", data.Success,
	}
	if data.Error != "" {
		args = append(args, "error", data.Error)
	}
	keys := make([]string, 0, len(data.Metadata))
	for k := range data.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, data.Metadata[k])
	}

	if o.level == ObservabilityDebug {
		o.logger.Debug(data.Operation, args...)
		return
	}
	o.logger.Trace(data.Operation, args...)
}

// StandardObservabilityData for all components
type StandardObservabilityData struct {
	Component  string                 `json:"component"`
	Operation  string                 `json:"operation"`
	Source     string                 `json:"source,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
