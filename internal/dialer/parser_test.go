package dialer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/astdialer/internal/dialer"
)

func TestParseLineCommands(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  dialer.Command
	}{
		{"originate", "1o", dialer.Command{Line: 1, Verb: "o"}},
		{"whitespace between number and verb", "2 o", dialer.Command{Line: 2, Verb: "o"}},
		{"leading whitespace", "  3h", dialer.Command{Line: 3, Verb: "h"}},
		{"upper-case verb folds", "4O", dialer.Command{Line: 4, Verb: "o"}},
		{"dtmf argument tail kept raw", "1dt47", dialer.Command{Line: 1, Verb: "d", Arg: "t47"}},
		{"argument tail not trimmed", "1dt 47", dialer.Command{Line: 1, Verb: "d", Arg: "t 47"}},
		{"comment stripped", "1o;foo", dialer.Command{Line: 1, Verb: "o"}},
		{"line nine", "9f", dialer.Command{Line: 9, Verb: "f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dialer.ParseCommand(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommentEquivalence(t *testing.T) {
	plain, err := dialer.ParseCommand("1o")
	require.NoError(t, err)
	commented, err := dialer.ParseCommand("1o;foo")
	require.NoError(t, err)
	assert.Equal(t, plain, commented, "Comment must not change the parsed command")
}

func TestParseGlobalCommands(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  dialer.Command
	}{
		{"sleep seconds", "s5", dialer.Command{Verb: "s", Arg: "5"}},
		{"sleep seconds with space", "s 5", dialer.Command{Verb: "s", Arg: " 5"}},
		{"sleep millis", "ms500", dialer.Command{Verb: "ms", Arg: "500"}},
		{"sleep millis case folded", "MS500", dialer.Command{Verb: "ms", Arg: "500"}},
		{"quit", "q", dialer.Command{Verb: "q"}},
		{"quit upper", "Q", dialer.Command{Verb: "q"}},
		{"hangup all", "k", dialer.Command{Verb: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dialer.ParseCommand(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Global())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		// A leading-digit parse yielding zero is an invalid line number,
		// not a fallback to global parsing.
		{"zero line", "0o", "line number must be between 1 and 9"},
		{"out of range line", "12o", "line number must be between 1 and 9"},
		{"line without verb", "1", "unknown line command"},
		{"unknown global", "x", "unknown global command 'x'"},
		{"empty input", "", "unknown global command ''"},
		{"comment only", ";just a comment", "unknown global command ''"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dialer.ParseCommand(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
