// Package meta renders guest build metadata as version links.
package meta

import (
	celfmtui "github.com/wippyai/celfmt-ui"
)

// Slot identifies a version link location on a surface.
type Slot string

const (
	SlotCelfmt Slot = "celfmt-version-link"
	SlotMito   Slot = "mito-version-link"
	SlotCELGo  Slot = "cel-go-version-link"
	SlotGo     Slot = "go-version-link"
)

// commitLen is the number of commit hash characters shown.
const commitLen = 7

// Link is a rendered version link.
type Link struct {
	Slot Slot
	Text string
	Href string
}

type template struct {
	key    string
	slot   Slot
	prefix string
	short  bool
}

// Slot order is the order links are rendered in.
var templates = []template{
	{key: celfmtui.KeyCommit, slot: SlotCelfmt, prefix: "https://github.com/elastic/celfmt/commits/", short: true},
	{key: celfmtui.KeyMito, slot: SlotMito, prefix: "https://pkg.go.dev/github.com/elastic/mito@"},
	{key: celfmtui.KeyCELGo, slot: SlotCELGo, prefix: "https://pkg.go.dev/github.com/google/cel-go@"},
	{key: celfmtui.KeyGo, slot: SlotGo, prefix: "https://pkg.go.dev/std@go"},
}

// Slots returns every known slot in render order.
func Slots() []Slot {
	slots := make([]Slot, len(templates))
	for i, t := range templates {
		slots[i] = t.slot
	}
	return slots
}

// Links returns a link for each known key present in md.
// Absent or empty keys produce no link.
func Links(md celfmtui.BuildMetadata) []Link {
	var links []Link
	for _, t := range templates {
		v, ok := md.Lookup(t.key)
		if !ok {
			continue
		}
		text := v
		if t.short {
			text = truncate(text, commitLen)
		}
		links = append(links, Link{Slot: t.slot, Text: text, Href: t.prefix + v})
	}
	return links
}

// truncate returns the first n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
