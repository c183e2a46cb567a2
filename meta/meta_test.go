package meta

import (
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	celfmtui "github.com/wippyai/celfmt-ui"
)

func TestLinks_AllPresent(t *testing.T) {
	md := celfmtui.BuildMetadata{
		"commit": "0123456789abcdef0123456789abcdef01234567",
		"mito":   "v1.15.0",
		"cel-go": "v0.22.1",
		"go":     "1.23.4",
	}

	want := []Link{
		{Slot: SlotCelfmt, Text: "0123456", Href: "https://github.com/elastic/celfmt/commits/0123456789abcdef0123456789abcdef01234567"},
		{Slot: SlotMito, Text: "v1.15.0", Href: "https://pkg.go.dev/github.com/elastic/mito@v1.15.0"},
		{Slot: SlotCELGo, Text: "v0.22.1", Href: "https://pkg.go.dev/github.com/google/cel-go@v0.22.1"},
		{Slot: SlotGo, Text: "1.23.4", Href: "https://pkg.go.dev/std@go1.23.4"},
	}

	if diff := cmp.Diff(want, Links(md)); diff != "" {
		t.Errorf("Links mismatch (-want +got):\n%s", diff)
	}
}

func TestLinks_Absent(t *testing.T) {
	tests := []struct {
		md   celfmtui.BuildMetadata
		name string
	}{
		{nil, "nil"},
		{celfmtui.BuildMetadata{}, "empty"},
		{celfmtui.BuildMetadata{"commit": "", "go": ""}, "empty values"},
		{celfmtui.BuildMetadata{"unknown": "v1"}, "unknown key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if links := Links(tt.md); len(links) != 0 {
				t.Errorf("expected no links, got %v", links)
			}
		})
	}
}

func TestLinks_Partial(t *testing.T) {
	links := Links(celfmtui.BuildMetadata{"commit": "abc", "go": "1.25.4"})

	want := []Link{
		{Slot: SlotCelfmt, Text: "abc", Href: "https://github.com/elastic/celfmt/commits/abc"},
		{Slot: SlotGo, Text: "1.25.4", Href: "https://pkg.go.dev/std@go1.25.4"},
	}
	if diff := cmp.Diff(want, links); diff != "" {
		t.Errorf("Links mismatch (-want +got):\n%s", diff)
	}
}

func TestSlots(t *testing.T) {
	want := []Slot{SlotCelfmt, SlotMito, SlotCELGo, SlotGo}
	if diff := cmp.Diff(want, Slots()); diff != "" {
		t.Errorf("Slots mismatch (-want +got):\n%s", diff)
	}
}

func TestLinks_CommitRunes(t *testing.T) {
	tests := []struct {
		name   string
		commit string
		want   string
	}{
		{"ascii", "0123456789", "0123456"},
		{"exactly seven", "abcdefg", "abcdefg"},
		{"multibyte", "çømmït-ünicode", "çømmït-"},
		{"short multibyte", "ünï", "ünï"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := Links(celfmtui.BuildMetadata{"commit": tt.commit})
			if len(links) != 1 {
				t.Fatalf("expected 1 link, got %v", links)
			}
			text := links[0].Text
			if text != tt.want {
				t.Errorf("text = %q, want %q", text, tt.want)
			}
			if !utf8.ValidString(text) {
				t.Errorf("text %q is not valid UTF-8", text)
			}
			if links[0].Href != "https://github.com/elastic/celfmt/commits/"+tt.commit {
				t.Errorf("href = %q, want full commit", links[0].Href)
			}
		})
	}
}
