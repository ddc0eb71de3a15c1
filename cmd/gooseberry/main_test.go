package main

import (
	"testing"
	"time"
)

func TestRootCommandSurface(t *testing.T) {
	root := rootCommand()
	if !root.EnableShellCompletion {
		t.Error("shell completion should be enabled")
	}

	have := make(map[string]bool, len(root.Commands))
	for _, c := range root.Commands {
		have[c.Name] = true
	}
	for _, name := range []string{"sync", "tag", "delete", "view", "move", "make", "clear", "config"} {
		if !have[name] {
			t.Errorf("missing command %q", name)
		}
	}
}

func TestParseInstant(t *testing.T) {
	got, err := parseInstant("2023-06-01")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	got, err = parseInstant("2023-06-01T12:30:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if got.Hour() != 12 {
		t.Errorf("got %v", got)
	}

	if got, err := parseInstant(""); err != nil || got != nil {
		t.Errorf("empty input should parse to nil, got %v, %v", got, err)
	}

	if _, err := parseInstant("next tuesday"); err == nil {
		t.Error("want error for unparsable input")
	}
}
