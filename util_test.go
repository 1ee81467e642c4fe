package main

import (
	"strings"
	"testing"
	"time"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		firstName string
		lastName  string
		userID    int64
		want      string
	}{
		{"username wins", "ivan_p", "Иван", "Петров", 1, "@ivan_p"},
		{"full name", "", "Иван", "Петров", 1, "Иван Петров"},
		{"first name only", "", "Иван", "", 1, "Иван"},
		{"last name only", "", "", "Петров", 1, "Петров"},
		{"id fallback", "", "", "", 12345, "ID 12345"},
		{"blank names", "", "  ", " ", 7, "ID 7"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := displayName(tc.username, tc.firstName, tc.lastName, tc.userID)
			if got != tc.want {
				t.Errorf("displayName = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		correct, total int
		want           float64
	}{
		{0, 0, 0},
		{3, 0, 0},
		{0, 5, 0},
		{1, 2, 50},
		{3, 4, 75},
		{5, 5, 100},
	}

	for _, tc := range tests {
		if got := accuracy(tc.correct, tc.total); got != tc.want {
			t.Errorf("accuracy(%d, %d) = %v, want %v", tc.correct, tc.total, got, tc.want)
		}
	}
}

func TestRemoveMarkdownChars(t *testing.T) {
	if got := removeMarkdownChars("*bold* _italic_ `code`", ""); got != "bold italic code" {
		t.Errorf("removeMarkdownChars = %q", got)
	}
	if got := removeMarkdownChars("plain", ""); got != "plain" {
		t.Errorf("removeMarkdownChars on plain text = %q", got)
	}
}

func TestUptimeSince(t *testing.T) {
	launched := time.Now().Add(-(26*time.Hour + 10*time.Minute))

	got := uptimeSince(launched)
	if !strings.Contains(got, "*1*") || !strings.Contains(got, "*2*") {
		t.Errorf("uptime for 26h10m = %q, want 1 day and 2 hours in it", got)
	}
}
