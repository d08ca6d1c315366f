// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

import (
	"bytes"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

func newBufferLogger(buf *bytes.Buffer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "test",
		Level:  hclog.Trace,
		Output: buf,
	})
}

func TestStartTiming_DebugLevelLogsMetadata(t *testing.T) {
	var buf bytes.Buffer
	o := NewStandardObserver(ObservabilityDebug, newBufferLogger(&buf))

	finish := o.StartTiming("redaction_engine", "redact", "stdin")
	finish(true, map[string]interface{}{"span_count": 3})

	out := buf.String()
	assert.Contains(t, out, "redact")
	assert.Contains(t, out, "component=redaction_engine")
	assert.Contains(t, out, "span_count=3")
}

func TestLogOperation_OffIsSilent(t *testing.T) {
	var buf bytes.Buffer
	o := NewStandardObserver(ObservabilityOff, newBufferLogger(&buf))
	o.LogOperation(StandardObservabilityData{Component: "c", Operation: "op"})
	assert.Empty(t, buf.String())
}

func TestNilObserverIsSafe(t *testing.T) {
	var o *StandardObserver
	o.LogOperation(StandardObservabilityData{Component: "c", Operation: "op"})
}
