// Package pii swaps personal data for opaque placeholders before text leaves the
// process and restores it afterwards.
package pii

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Category groups placeholder numbering.
type Category string

const (
	Person  Category = "PESSOA"
	CPF     Category = "CPF"
	RG      Category = "RG"
	Date    Category = "DATA"
	Address Category = "ENDERECO"
	Phone   Category = "TELEFONE"
	Email   Category = "EMAIL"
	Account Category = "CONTA"
)

// MinValueLength is the shortest value (in runes) worth replacing.
const MinValueLength = 3

var sentinels = map[string]struct{}{
	"não informado": {},
	"nao informado": {},
	"não informada": {},
	"nao informada": {},
	"não se aplica": {},
	"nao se aplica": {},
	"desconhecido":  {},
	"desconhecida":  {},
	"n/a":           {},
	"null":          {},
	"none":          {},
	"undefined":     {},
	"sem":           {},
	"não":           {},
	"nao":           {},
	"sim":           {},
	"pendente":      {},
	"[pending]":     {},
	"---":           {},
}

var reCPFShape = regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`)

// Entry is one placeholder and the values it stands for. Value is the canonical form restored by Desanitize.
type Entry struct {
	Placeholder string
	Category    Category
	Value       string
	Variants    []string
}

// Builder collects sensitive values for one request.
type Builder struct {
	entries  []*Entry
	byValue  map[string]*Entry
	counters map[Category]int
}

func NewBuilder() *Builder {
	return &Builder{
		byValue:  make(map[string]*Entry),
		counters: make(map[Category]int),
	}
}

// Add registers value (plus optional spellings of the same datum) under cat.
// Short values and sentinel answers are ignored.
func (b *Builder) Add(cat Category, value string, variants ...string) *Builder {
	value = strings.TrimSpace(value)
	if !eligible(value) {
		return b
	}
	key := strings.ToLower(value)
	e, ok := b.byValue[key]
	if !ok {
		b.counters[cat]++
		e = &Entry{
			Placeholder: fmt.Sprintf("[[%s_%d]]", cat, b.counters[cat]),
			Category:    cat,
			Value:       value,
		}
		b.entries = append(b.entries, e)
		b.byValue[key] = e
	}
	for _, v := range variants {
		v = strings.TrimSpace(v)
		vk := strings.ToLower(v)
		if !eligible(v) {
			continue
		}
		if _, taken := b.byValue[vk]; taken {
			continue
		}
		e.Variants = append(e.Variants, v)
		b.byValue[vk] = e
	}
	return b
}

// ScanCPFs registers every CPF-shaped number found in free text.
func (b *Builder) ScanCPFs(text string) *Builder {
	for _, m := range reCPFShape.FindAllString(text, -1) {
		b.Add(CPF, m, digitsOnly(m))
	}
	return b
}

func eligible(v string) bool {
	if utf8.RuneCountInString(v) < MinValueLength {
		return false
	}
	if _, ok := sentinels[strings.ToLower(v)]; ok {
		return false
	}
	return strings.IndexFunc(v, func(r rune) bool {
		return r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 127
	}) >= 0
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Build freezes the collected values into a Map.
func (b *Builder) Build() *Map {
	m := &Map{byPlaceholder: make(map[string]*Entry, len(b.entries))}
	type alt struct {
		text  string
		entry *Entry
	}
	var alts []alt
	for _, e := range b.entries {
		cp := *e
		m.entries = append(m.entries, &cp)
		m.byPlaceholder[strings.ToUpper(cp.Placeholder)] = &cp
		alts = append(alts, alt{cp.Value, &cp})
		for _, v := range cp.Variants {
			alts = append(alts, alt{v, &cp})
		}
	}
	if len(alts) == 0 {
		return m
	}
	// longest first so a full name wins over any shorter value it contains
	sort.SliceStable(alts, func(i, j int) bool {
		return utf8.RuneCountInString(alts[i].text) > utf8.RuneCountInString(alts[j].text)
	})
	parts := make([]string, len(alts))
	m.byValue = make(map[string]*Entry, len(alts))
	for i, a := range alts {
		parts[i] = regexp.QuoteMeta(a.text)
		m.byValue[strings.ToLower(a.text)] = a.entry
	}
	m.valueRe = regexp.MustCompile(`(?i)(?:` + strings.Join(parts, "|") + `)`)
	return m
}

var rePlaceholder = regexp.MustCompile(`(?i)\[\[\s*([A-Z]+)_(\d+)\s*\]\]`)

// Map is an immutable value↔placeholder table, safe for concurrent use.
type Map struct {
	entries       []*Entry
	byPlaceholder map[string]*Entry
	byValue       map[string]*Entry
	valueRe       *regexp.Regexp
}

// Len returns the number of placeholders.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of the table.
func (m *Map) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	for i, e := range m.entries {
		out[i] = *e
	}
	return out
}

// Sanitize replaces every occurrence of every value, case-insensitively, in one pass.
func (m *Map) Sanitize(text string) string {
	if m == nil || m.valueRe == nil || text == "" {
		return text
	}
	return m.valueRe.ReplaceAllStringFunc(text, func(match string) string {
		if e, ok := m.byValue[strings.ToLower(match)]; ok {
			return e.Placeholder
		}
		return match
	})
}

// Desanitize restores the canonical value of every known placeholder.
func (m *Map) Desanitize(text string) string {
	if m == nil || len(m.byPlaceholder) == 0 || text == "" {
		return text
	}
	return rePlaceholder.ReplaceAllStringFunc(text, func(match string) string {
		sub := rePlaceholder.FindStringSubmatch(match)
		key := fmt.Sprintf("[[%s_%s]]", strings.ToUpper(sub[1]), sub[2])
		if e, ok := m.byPlaceholder[key]; ok {
			return e.Value
		}
		return match
	})
}

// Leaks reports which known values still appear in text.
func (m *Map) Leaks(text string) []string {
	if m == nil || m.valueRe == nil {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, match := range m.valueRe.FindAllString(text, -1) {
		e := m.byValue[strings.ToLower(match)]
		if e != nil && !seen[e.Placeholder] {
			seen[e.Placeholder] = true
			out = append(out, e.Placeholder)
		}
	}
	return out
}

// HasPlaceholders reports whether text still carries any placeholder token.
func HasPlaceholders(text string) bool {
	return rePlaceholder.MatchString(text)
}
