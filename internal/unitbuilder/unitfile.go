// Package unitbuilder synthesizes systemd unit files from a pod, a
// container, and a resolved PodContext. The type shapes follow the same
// discipline used elsewhere for template-context construction: small pure
// value types, nothing held that wasn't passed in, deterministic output for
// identical input.
package unitbuilder

import (
	"sort"
	"strings"
)

// UnitFile is an ordered set of sections. Sections always render in the
// fixed order they were added in Build (Unit, Service, Install); within a
// section, keys render in lexicographic order. This is what makes
// ReconcileOnStart's byte-for-byte comparison possible.
type UnitFile struct {
	Sections []Section
}

// Section is one [Name] block of a unit file. A key may repeat (Build
// itself adds each key once, writing every Environment pair into a single
// entry); entries may be Add-ed in
// any order — String sorts them by key before rendering, stably, so
// repeated keys keep their relative order.
type Section struct {
	Name    string
	Entries []Entry
}

// Entry is one key=value (or bare key=value-list) line.
type Entry struct {
	Key   string
	Value string
}

// NewSection creates an empty, named section.
func NewSection(name string) Section {
	return Section{Name: name}
}

// Add appends an entry to the section.
func (s *Section) Add(key, value string) {
	s.Entries = append(s.Entries, Entry{Key: key, Value: value})
}

// String renders the unit file in the systemd ini-like grammar. Within each
// section, entries are sorted by key (stably, so repeated keys keep their
// relative order) before rendering, so output is byte-reproducible
// regardless of the order Add was called in.
func (u UnitFile) String() string {
	var b strings.Builder
	for i, section := range u.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("[")
		b.WriteString(section.Name)
		b.WriteString("]\n")

		entries := make([]Entry, len(section.Entries))
		copy(entries, section.Entries)
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

		for _, e := range entries {
			b.WriteString(e.Key)
			b.WriteString("=")
			b.WriteString(e.Value)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Bytes renders the unit file as bytes, suitable for writing to disk.
func (u UnitFile) Bytes() []byte {
	return []byte(u.String())
}
