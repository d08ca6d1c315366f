// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package recognizer

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"clearclause/internal/detector"
)

// Labels emitted by the builtin recognizer that are not part of the
// redaction allow-list.
const (
	LabelMoney = "MONEY"
)

var (
	capitalizedWord = regexp.MustCompile(`\p{Lu}[\p{L}'’-]*`)
	moneyPattern    = regexp.MustCompile(`\$\s?[0-9][0-9,]*(?:\.[0-9]{2})?`)
	numericDates    = []*regexp.Regexp{
		regexp.MustCompile(`\b[0-9]{1,2}/[0-9]{1,2}/(?:[0-9]{4}|[0-9]{2})\b`),
		regexp.MustCompile(`\b[0-9]{4}-[0-9]{2}-[0-9]{2}\b`),
	}
)

// Builtin is a rule and gazetteer based recognizer. It emits
// non-overlapping entities in text order, with ORG taking precedence over
// PERSON, then GPE, DATE and MONEY.
type Builtin struct {
	titles      map[string]bool
	commonWords map[string]bool
	firstNames  map[string]bool
	lastNames   map[string]bool
	orgSuffixes map[string]bool

	placePattern *regexp.Regexp
	datePatterns []*regexp.Regexp
}

// NewBuiltin compiles a recognizer from model.
func NewBuiltin(model *Model) (*Builtin, error) {
	b := &Builtin{
		titles:      lowerSet(model.Titles),
		commonWords: lowerSet(model.CommonWords),
		firstNames:  lowerSet(model.FirstNames),
		lastNames:   lowerSet(model.LastNames),
		orgSuffixes: lowerSet(model.OrgSuffixes),
	}

	var err error
	b.placePattern, err = regexp.Compile(`\b(?:` + alternation(model.Places) + `)\b`)
	if err != nil {
		return nil, err
	}

	months := alternation(model.Months)
	monthFirst, err := regexp.Compile(`\b(?:` + months + `)\.?\s+[0-9]{1,2}(?:st|nd|rd|th)?(?:,?\s+[0-9]{4})?\b`)
	if err != nil {
		return nil, err
	}
	dayFirst, err := regexp.Compile(`\b[0-9]{1,2}(?:st|nd|rd|th)?\s+(?:` + months + `)\.?(?:,?\s+[0-9]{4})?\b`)
	if err != nil {
		return nil, err
	}
	monthYear, err := regexp.Compile(`\b(?:` + months + `)\.?\s+[0-9]{4}\b`)
	if err != nil {
		return nil, err
	}
	b.datePatterns = append([]*regexp.Regexp{monthFirst, dayFirst, monthYear}, numericDates...)

	return b, nil
}

type byteRange struct {
	start, end int
	label      string
}

// Detect implements Recognizer.
func (b *Builtin) Detect(text string) ([]Entity, error) {
	if text == "" {
		return nil, nil
	}

	var accepted []byteRange
	add := func(candidates []byteRange) {
		for _, c := range candidates {
			overlaps := false
			for _, a := range accepted {
				if c.start < a.end && a.start < c.end {
					overlaps = true
					break
				}
			}
			if !overlaps {
				accepted = append(accepted, c)
			}
		}
	}

	orgs, persons := b.findNames(text)
	add(orgs)
	add(persons)
	add(findAll(b.placePattern, text, string(detector.CategoryGPE)))
	for _, re := range b.datePatterns {
		add(findAll(re, text, string(detector.CategoryDate)))
	}
	add(findAll(moneyPattern, text, LabelMoney))

	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].start < accepted[j].start
	})

	idx := detector.NewOffsetIndex(text)
	entities := make([]Entity, 0, len(accepted))
	for _, r := range accepted {
		span := idx.Span(r.start, r.end)
		entities = append(entities, Entity{Label: r.label, Start: span.Start, End: span.End})
	}
	return entities, nil
}

type token struct {
	start, end int
	word       string // lower-cased, trailing period removed
}

// findNames groups runs of capitalized words and classifies them as
// organizations (run ends in a company suffix) or people (run starts at a
// title or a known first name, or pairs a word with a known last name).
func (b *Builtin) findNames(text string) (orgs, persons []byteRange) {
	for _, group := range b.capitalizedRuns(text) {
		rest := group
		for len(rest) > 0 {
			suffix := -1
			for i := 1; i < len(rest); i++ {
				if b.orgSuffixes[rest[i].word] {
					suffix = i
					break
				}
			}
			if suffix < 0 {
				persons = append(persons, b.personsIn(rest)...)
				break
			}

			start := 0
			for start < suffix && (b.commonWords[rest[start].word] || b.titles[rest[start].word]) {
				start++
			}
			if start < suffix {
				persons = append(persons, b.personsIn(rest[:start])...)
				orgs = append(orgs, byteRange{start: rest[start].start, end: rest[suffix].end, label: string(detector.CategoryOrg)})
			} else {
				persons = append(persons, b.personsIn(rest[:suffix+1])...)
			}
			rest = rest[suffix+1:]
		}
	}
	return orgs, persons
}

func (b *Builtin) personsIn(group []token) []byteRange {
	var out []byteRange
	for i := 0; i < len(group); i++ {
		w := group[i].word
		switch {
		case b.titles[w] && i+1 < len(group):
			end := min(len(group), i+4)
			out = append(out, byteRange{start: group[i+1].start, end: group[end-1].end, label: string(detector.CategoryPerson)})
			i = end - 1
		case b.firstNames[w] && i+1 < len(group) && !b.commonWords[group[i+1].word]:
			end := min(len(group), i+3)
			out = append(out, byteRange{start: group[i].start, end: group[end-1].end, label: string(detector.CategoryPerson)})
			i = end - 1
		case i+1 < len(group) && b.lastNames[group[i+1].word] && !b.commonWords[w] && !b.titles[w]:
			out = append(out, byteRange{start: group[i].start, end: group[i+1].end, label: string(detector.CategoryPerson)})
			i++
		}
	}
	return out
}

// capitalizedRuns returns runs of capitalized words separated only by
// spaces or tabs. A title may be followed by a period inside a run.
func (b *Builtin) capitalizedRuns(text string) [][]token {
	var runs [][]token
	var current []token

	for _, loc := range capitalizedWord.FindAllStringIndex(text, -1) {
		if loc[0] > 0 {
			prev, _ := utf8.DecodeLastRuneInString(text[:loc[0]])
			if unicode.IsLetter(prev) || unicode.IsDigit(prev) {
				continue
			}
		}
		tok := token{start: loc[0], end: loc[1], word: strings.ToLower(text[loc[0]:loc[1]])}

		if len(current) > 0 {
			last := current[len(current)-1]
			gap := text[last.end:tok.start]
			if b.titles[last.word] {
				gap = strings.TrimPrefix(gap, ".")
			}
			if gap == "" || strings.Trim(gap, " \t") != "" {
				runs = append(runs, current)
				current = nil
			}
		}
		current = append(current, tok)
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}
	return runs
}

func findAll(re *regexp.Regexp, text, label string) []byteRange {
	locs := re.FindAllStringIndex(text, -1)
	out := make([]byteRange, 0, len(locs))
	for _, loc := range locs {
		out = append(out, byteRange{start: loc[0], end: loc[1], label: label})
	}
	return out
}

func lowerSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = true
	}
	return set
}

// alternation builds a regexp alternation with longer entries first so that
// "New York City" wins over "New York".
func alternation(words []string) string {
	sorted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			sorted = append(sorted, w)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})
	quoted := make([]string, len(sorted))
	for i, w := range sorted {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}
