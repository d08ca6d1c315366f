// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package recognizer

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuiltin(t *testing.T) *Builtin {
	t.Helper()
	m, err := DefaultModel()
	require.NoError(t, err)
	b, err := NewBuiltin(m)
	require.NoError(t, err)
	return b
}

func labelled(text string, entities []Entity) map[string]string {
	runes := []rune(text)
	out := make(map[string]string, len(entities))
	for _, e := range entities {
		out[string(runes[e.Start:e.End])] = e.Label
	}
	return out
}

func TestBuiltin_PersonAndOrg(t *testing.T) {
	b := newTestBuiltin(t)
	text := "John Smith works at Acme Corp. Call (555) 867-5309."

	entities, err := b.Detect(text)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	assert.Equal(t, Entity{Label: "PERSON", Start: 0, End: 10}, entities[0])
	assert.Equal(t, Entity{Label: "ORG", Start: 20, End: 29}, entities[1])
}

func TestBuiltin_Categories(t *testing.T) {
	b := newTestBuiltin(t)

	tests := []struct {
		name  string
		text  string
		value string
		label string
	}{
		{"title", "Signed by Dr. Priya Natarajan today", "Priya Natarajan", "PERSON"},
		{"known last name", "Contact Mei Nguyen for details", "Mei Nguyen", "PERSON"},
		{"org with leading article", "The Globex Holdings board met", "Globex Holdings", "ORG"},
		{"multi word place", "She moved to New York City last year", "New York City", "GPE"},
		{"single place", "offices in Seattle and elsewhere", "Seattle", "GPE"},
		{"month date", "effective March 5, 2024 onward", "March 5, 2024", "DATE"},
		{"day first date", "signed 12 Jan 2023 in the morning", "12 Jan 2023", "DATE"},
		{"numeric date", "due on 04/15/2024 at noon", "04/15/2024", "DATE"},
		{"iso date", "timestamp 2024-01-31 recorded", "2024-01-31", "DATE"},
		{"money", "a fee of $1,250.00 applies", "$1,250.00", LabelMoney},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entities, err := b.Detect(tt.text)
			require.NoError(t, err)
			got := labelled(tt.text, entities)
			assert.Equal(t, tt.label, got[tt.value], "entities: %v", got)
		})
	}
}

func TestBuiltin_PersonBeatsPlace(t *testing.T) {
	b := newTestBuiltin(t)
	text := "A letter from George Washington arrived"

	entities, err := b.Detect(text)
	require.NoError(t, err)
	got := labelled(text, entities)

	assert.Equal(t, "PERSON", got["George Washington"])
	_, hasPlace := got["Washington"]
	assert.False(t, hasPlace)
}

func TestBuiltin_EntitiesDoNotOverlapAndAreOrdered(t *testing.T) {
	b := newTestBuiltin(t)
	text := "Mary Johnson of Initech Corporation met Dr. Alan Turing in London on May 3, 2021."

	entities, err := b.Detect(text)
	require.NoError(t, err)
	require.NotEmpty(t, entities)

	n := utf8.RuneCountInString(text)
	require.NoError(t, Validate(entities, n))
	for i := 1; i < len(entities); i++ {
		assert.LessOrEqual(t, entities[i-1].End, entities[i].Start)
	}
}

func TestBuiltin_RuneOffsets(t *testing.T) {
	b := newTestBuiltin(t)
	text := "Café owner Jane Doe lives in Paris"

	entities, err := b.Detect(text)
	require.NoError(t, err)
	got := labelled(text, entities)

	assert.Equal(t, "PERSON", got["Jane Doe"])
	assert.Equal(t, "GPE", got["Paris"])
}

func TestBuiltin_NothingToFind(t *testing.T) {
	b := newTestBuiltin(t)

	entities, err := b.Detect("")
	require.NoError(t, err)
	assert.Empty(t, entities)

	entities, err = b.Detect("nothing capitalized or numeric here")
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestBuiltin_CustomModel(t *testing.T) {
	m, err := ParseModel([]byte(`
first_names: [zorblat]
org_suffixes: [guild]
places: [Gallifrey]
months: [Smarch]
`))
	require.NoError(t, err)
	b, err := NewBuiltin(m)
	require.NoError(t, err)

	text := "Zorblat Quux of Tinker Guild visited Gallifrey"
	entities, err := b.Detect(text)
	require.NoError(t, err)
	got := labelled(text, entities)

	assert.Equal(t, "PERSON", got["Zorblat Quux"])
	assert.Equal(t, "ORG", got["Tinker Guild"])
	assert.Equal(t, "GPE", got["Gallifrey"])
}
