package main

import (
	"strings"
	"testing"
)

func TestRenderTable(t *testing.T) {
	t.Run("empty headers", func(t *testing.T) {
		if got := renderTable(nil, [][]string{{"a"}}, nil); got != "" {
			t.Errorf("renderTable() = %q, want empty", got)
		}
	})

	t.Run("pads short rows", func(t *testing.T) {
		got := renderTable([]string{"Group", "Files"}, [][]string{{"the-hall-20240309-1000", "2"}, {"unknown-date"}}, []columnAlignment{alignLeft, alignRight})
		for _, want := range []string{"Group", "Files", "the-hall-20240309-1000", "unknown-date"} {
			if !strings.Contains(got, want) {
				t.Errorf("renderTable() missing %q:\n%s", want, got)
			}
		}
		if lines := strings.Count(got, "\n") + 1; lines != 6 {
			t.Errorf("renderTable() has %d lines, want 6:\n%s", lines, got)
		}
	})
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		if got := formatCount(tt.n); got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
