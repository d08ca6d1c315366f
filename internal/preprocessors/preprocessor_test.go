// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package preprocessors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"clearclause/internal/observability"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF assembles a minimal PDF with one Helvetica text line per page.
// An empty string produces a page without a text operator.
func buildPDF(pages ...string) []byte {
	var objects []string

	n := len(pages)
	fontObj := 3
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		content := ""
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontObj, 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestChain_PlainText(t *testing.T) {
	c := NewChain()
	content, err := c.Process("note.txt", []byte("John Smith works at Acme Corp.\nCall (555) 867-5309.\n"))
	require.NoError(t, err)

	assert.Equal(t, "John Smith works at Acme Corp.\nCall (555) 867-5309.\n", content.String())
	assert.Equal(t, "text", content.Format)
	assert.Equal(t, "note.txt", content.Filename)
	assert.Equal(t, 3, content.LineCount)

	content.Clear()
	assert.Empty(t, content.String())
}

func TestChain_TextWithoutExtension(t *testing.T) {
	c := NewChain()
	content, err := c.Process("-", []byte("Zoë met Åsa"))
	require.NoError(t, err)
	assert.Equal(t, 11, content.CharCount)
}

func TestChain_RejectsBinary(t *testing.T) {
	c := NewChain()
	_, err := c.Process("blob.bin", []byte{0x89, 'P', 'N', 'G', 0x00, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestChain_EmptyText(t *testing.T) {
	c := NewChain()
	_, err := c.Process("empty.txt", []byte("  \n\t "))
	assert.ErrorIs(t, err, ErrNoText)
}

func TestPDFPreprocessor_ExtractsPages(t *testing.T) {
	data := buildPDF("Agreement between John Smith and Acme Corp", "Call 555-867-5309")

	c := NewChain()
	content, err := c.Process("contract.pdf", data)
	require.NoError(t, err)

	assert.Equal(t, "pdf", content.Format)
	assert.Equal(t, 2, content.PageCount)
	text := content.String()
	assert.Contains(t, text, "John Smith")
	assert.Contains(t, text, "555-867-5309")
	assert.Equal(t, strings.TrimSpace(text), text)
}

func TestPDFPreprocessor_DetectsByHeader(t *testing.T) {
	p := NewPDFPreprocessor()
	assert.True(t, p.CanProcess("upload", buildPDF("x")))
	assert.True(t, p.CanProcess("SCAN.PDF", nil))
	assert.False(t, p.CanProcess("notes.txt", []byte("hello")))
}

func TestPDFPreprocessor_NoText(t *testing.T) {
	_, err := NewPDFPreprocessor().Process("blank.pdf", buildPDF(""))
	assert.ErrorIs(t, err, ErrNoText)
}

func TestPDFPreprocessor_Invalid(t *testing.T) {
	_, err := NewPDFPreprocessor().Process("broken.pdf", []byte("%PDF-1.4\nthis is not a pdf"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoText)
}

type panickyPreprocessor struct{}

func (panickyPreprocessor) GetName() string                 { return "panicky" }
func (panickyPreprocessor) CanProcess(string, []byte) bool { return true }
func (panickyPreprocessor) Process(string, []byte) (*ProcessedContent, error) {
	panic("malformed stream")
}

func TestChain_RecoversPanics(t *testing.T) {
	c := &Chain{preprocessors: []Preprocessor{panickyPreprocessor{}}}

	var content *ProcessedContent
	var err error
	require.NotPanics(t, func() {
		content, err = c.Process("broken.pdf", []byte("%PDF-1.4"))
	})
	assert.Nil(t, content)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicky")
	assert.Contains(t, err.Error(), "malformed stream")
}

func TestPDFPreprocessor_Truncated(t *testing.T) {
	p := NewPDFPreprocessor()
	p.MaxPages = 1

	content, err := p.Process("long.pdf", buildPDF("Page one text", "Page two text"))
	require.NoError(t, err)
	assert.True(t, content.Truncated)
	assert.Equal(t, 1, content.PageCount)
	assert.Contains(t, content.String(), "Page one")
	assert.NotContains(t, content.String(), "Page two")

	content, err = NewPDFPreprocessor().Process("short.pdf", buildPDF("Page one text"))
	require.NoError(t, err)
	assert.False(t, content.Truncated)
}

func TestChain_Observer(t *testing.T) {
	var logs bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &logs, Level: hclog.Debug})

	c := NewChain()
	c.SetObserver(observability.NewStandardObserver(observability.ObservabilityDebug, logger))
	_, err := c.Process("memo.txt", []byte("Dear Jane Doe,"))
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, "preprocessor_chain")
	assert.Contains(t, out, "chars=14")
	assert.NotContains(t, out, "Jane")
}

func TestReadLimited(t *testing.T) {
	data, err := ReadLimited(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))

	_, err = ReadLimited(strings.NewReader("123456"), 5)
	assert.ErrorIs(t, err, ErrTooLarge)

	data, err = ReadLimited(strings.NewReader("unbounded"), 0)
	require.NoError(t, err)
	assert.Equal(t, "unbounded", string(data))
}
