// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clearclause/internal/config"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = "John Smith works at Acme Corp. Call (555) 867-5309."

// isolate runs the test in an empty directory with no user configuration.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("LOG_LEVEL", "")
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(testContext(t), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Stdin(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runCLI(t, sampleText)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "[REDACTED] works at [REDACTED]. Call [REDACTED].\n", stdout)
}

func TestRun_JSONSummary(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runCLI(t, sampleText, "-format", "json", "-summary")
	require.Equal(t, exitOK, code, stderr)

	var report struct {
		Source       string `json:"source"`
		RedactedText string `json:"redacted_text"`
		Summary      struct {
			TotalRedactions int            `json:"total_redactions"`
			EntityBreakdown map[string]int `json:"entity_breakdown"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "stdin", report.Source)
	assert.Equal(t, 3, report.Summary.TotalRedactions)
	assert.Equal(t, map[string]int{"PERSON": 1, "ORG": 1, "PHONE": 1}, report.Summary.EntityBreakdown)
}

func TestRun_FileAndOutput(t *testing.T) {
	dir := isolate(t)
	input := filepath.Join(dir, "memo.txt")
	output := filepath.Join(dir, "memo.redacted.yaml")
	require.NoError(t, os.WriteFile(input, []byte(sampleText), 0o600))

	code, stdout, stderr := runCLI(t, "", "-file", input, "-format", "yaml", "-entities", "-output", output)
	require.Equal(t, exitOK, code, stderr)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "redacted_text: '[REDACTED] works at [REDACTED]. Call [REDACTED].'")
	assert.Contains(t, string(data), "total_entities: 3")
	assert.NotContains(t, string(data), "John Smith")
}

func TestRun_ShowEntities(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runCLI(t, sampleText, "-format", "json", "-show-entities")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, `"text": "John Smith"`)
}

func TestRun_OverlapModeAndProfile(t *testing.T) {
	dir := isolate(t)
	cfg := `
redaction:
  phone_detection: false
profiles:
  quiet:
    description: Summary only
    format: json
`
	path := filepath.Join(dir, "clearclause.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	code, stdout, stderr := runCLI(t, sampleText, "-profile", "quiet")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, `"redacted_text": "[REDACTED] works at [REDACTED]. Call (555) 867-5309."`)

	code, stdout, _ = runCLI(t, "", "-list-profiles")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "quiet: Summary only")
	assert.Contains(t, stdout, "strict")

	code, _, stderr = runCLI(t, sampleText, "-profile", "missing")
	assert.Equal(t, exitUsageError, code)
	assert.Contains(t, stderr, "missing")
}

func TestRun_EmptyInput(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runCLI(t, "", "-format", "json", "-summary")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, `"total_redactions": 0`)
}

func TestRun_UsageErrors(t *testing.T) {
	isolate(t)

	code, _, _ := runCLI(t, "", "-no-such-flag")
	assert.Equal(t, exitUsageError, code)

	code, _, stderr := runCLI(t, "", "-overlap-mode", "shuffle")
	assert.Equal(t, exitUsageError, code)
	assert.Contains(t, stderr, "shuffle")

	code, _, _ = runCLI(t, "", "-format", "csv")
	assert.Equal(t, exitUsageError, code)

	code, _, _ = runCLI(t, "", "a.txt", "b.txt")
	assert.Equal(t, exitUsageError, code)
}

func TestRun_ExplicitConfigErrors(t *testing.T) {
	dir := isolate(t)
	cfg := `
recognizer:
  backend: http
  endpoint: http://127.0.0.1:1
redaction:
  overlap_mode: merg
`
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	code, stdout, stderr := runCLI(t, sampleText, "-config", path)
	assert.Equal(t, exitUsageError, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "broken.yaml")
	assert.Contains(t, stderr, `"merg"`)

	code, _, stderr = runCLI(t, sampleText, "-config", filepath.Join(dir, "absent.yaml"))
	assert.Equal(t, exitUsageError, code)
	assert.Contains(t, stderr, "absent.yaml")
}

func TestRun_MissingFile(t *testing.T) {
	dir := isolate(t)

	code, _, stderr := runCLI(t, "", "-file", filepath.Join(dir, "missing.txt"))
	assert.Equal(t, exitRuntimeError, code)
	assert.Contains(t, stderr, "missing.txt")
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "", "-version")
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(stdout, "clearclause "))
}

func TestNewObserver(t *testing.T) {
	cfg := config.Default()
	assert.Nil(t, newObserver(cfg, hclog.New(&hclog.LoggerOptions{Level: hclog.Warn})))

	var logs bytes.Buffer
	trace := hclog.New(&hclog.LoggerOptions{Output: &logs, Level: hclog.Trace})
	observer := newObserver(cfg, trace)
	require.NotNil(t, observer)
	observer.StartTiming("redaction_engine", "redact", "")(true, nil)
	assert.Contains(t, logs.String(), "[TRACE]")

	cfg.Defaults.Debug = true
	logs.Reset()
	observer = newObserver(cfg, trace)
	require.NotNil(t, observer)
	observer.StartTiming("redaction_engine", "redact", "")(true, nil)
	assert.Contains(t, logs.String(), "[DEBUG]")
}
