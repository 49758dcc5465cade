package frontmatter

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantFM   *Frontmatter
		wantBody string
		wantErr  bool
	}{
		{
			name: "complete frontmatter",
			content: `---
id: n1
title: Meeting notes
folder: Work
tags: [planning, urgent]
links: [n2]
created: 2026-08-01 09:30:00
modified: 2026-08-02 10:00:00
---

Discussed the roadmap.`,
			wantFM: &Frontmatter{
				ID:       "n1",
				Title:    "Meeting notes",
				Folder:   "Work",
				Tags:     []string{"planning", "urgent"},
				Links:    []string{"n2"},
				Created:  "2026-08-01 09:30:00",
				Modified: "2026-08-02 10:00:00",
			},
			wantBody: "\nDiscussed the roadmap.",
		},
		{
			name: "no tags becomes empty slice",
			content: `---
id: n1
title: Untitled
created: 2026-08-01 09:30:00
modified: 2026-08-01 09:30:00
---
body`,
			wantFM: &Frontmatter{
				ID:       "n1",
				Title:    "Untitled",
				Tags:     []string{},
				Created:  "2026-08-01 09:30:00",
				Modified: "2026-08-01 09:30:00",
			},
			wantBody: "body",
		},
		{
			name:     "no frontmatter",
			content:  "just a body",
			wantFM:   nil,
			wantBody: "just a body",
		},
		{
			name: "malformed yaml",
			content: `---
id: [unclosed
---
body`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body, err := Parse(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !reflect.DeepEqual(fm, tt.wantFM) {
				t.Errorf("frontmatter = %+v, want %+v", fm, tt.wantFM)
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestBuildParseRoundTrip(t *testing.T) {
	fm := &Frontmatter{
		ID:       "n1",
		Title:    "Meeting notes",
		Folder:   "Work",
		Tags:     []string{"planning", "a, weird: tag"},
		Links:    []string{"n2", "n3"},
		Created:  "2026-08-01 09:30:00",
		Modified: "2026-08-02 10:00:00",
	}

	content := BuildContent(fm, "the body")
	got, body, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(got, fm) {
		t.Errorf("round trip changed frontmatter:\n got %+v\nwant %+v", got, fm)
	}
	if strings.TrimSpace(body) != "the body" {
		t.Errorf("body = %q", body)
	}
}

func TestBuildOmitsEmptyOptionalFields(t *testing.T) {
	fm := &Frontmatter{
		ID:       "n1",
		Title:    "Loose note",
		Tags:     []string{},
		Created:  "2026-08-01 09:30:00",
		Modified: "2026-08-01 09:30:00",
	}

	out := Build(fm)
	if strings.Contains(out, "folder:") {
		t.Error("empty folder emitted")
	}
	if strings.Contains(out, "links:") {
		t.Error("empty links emitted")
	}
	if !strings.Contains(out, "tags: []") {
		t.Error("tags line missing for an untagged note")
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	orig := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	parsed, err := ParseTimestamp(FormatTimestamp(orig))
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	if !parsed.Equal(orig) {
		t.Errorf("round trip = %v, want %v", parsed, orig)
	}
}

func TestMergeTags(t *testing.T) {
	got := MergeTags(
		[]string{"work", "planning"},
		[]string{"planning", "", "urgent"},
	)
	want := []string{"work", "planning", "urgent"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeTags = %v, want %v", got, want)
	}
}
