package dialer

import (
	"fmt"
	"strings"
	"unicode"
)

// Command is one parsed input line, used once and discarded.
type Command struct {
	// Line is the target line number, 1..9. Zero means a global command.
	Line int
	// Verb is the line verb as a single lower-case letter, or one of the
	// global tokens "s", "ms", "q", "k".
	Verb string
	// Arg is the raw remainder of the input after the verb, with no
	// whitespace trimming. Each verb handler interprets it on its own.
	Arg string
}

// Global reports whether the command has no target line.
func (c Command) Global() bool { return c.Line == 0 }

// ParseCommand parses one line of input. Everything after a ';' is a comment
// ('#' is not usable as a comment leader since it is a DTMF digit). A leading
// run of decimal digits selects the target line; otherwise the input is
// matched against the global command tokens. Errors carry the message shown
// to the operator; parsing never panics.
func ParseCommand(input string) (Command, error) {
	if i := strings.IndexByte(input, ';'); i >= 0 {
		input = input[:i]
	}
	input = strings.TrimLeftFunc(input, unicode.IsSpace)

	if len(input) > 0 && input[0] >= '0' && input[0] <= '9' {
		return parseLineCommand(input)
	}
	return parseGlobalCommand(input)
}

func parseLineCommand(input string) (Command, error) {
	i := 0
	n := 0
	for i < len(input) && input[i] >= '0' && input[i] <= '9' {
		n = n*10 + int(input[i]-'0')
		i++
	}
	// A parse yielding 0 (e.g. "0o") is an invalid line, not a global
	// command. Out-of-range numbers are rejected here rather than letting
	// them reach the registry.
	if n < 1 || n > MaxLines {
		return Command{}, fmt.Errorf("line number must be between 1 and %d", MaxLines)
	}
	rest := strings.TrimLeftFunc(input[i:], unicode.IsSpace)
	if rest == "" {
		return Command{}, fmt.Errorf("unknown line command ''")
	}
	verb := strings.ToLower(rest[:1])
	return Command{Line: n, Verb: verb, Arg: rest[1:]}, nil
}

func parseGlobalCommand(input string) (Command, error) {
	lower := strings.ToLower(input)
	switch {
	case strings.HasPrefix(lower, "ms"):
		return Command{Verb: "ms", Arg: input[2:]}, nil
	case strings.HasPrefix(lower, "s"):
		return Command{Verb: "s", Arg: input[1:]}, nil
	case lower == "q":
		return Command{Verb: "q"}, nil
	case lower == "k":
		return Command{Verb: "k"}, nil
	}
	return Command{}, fmt.Errorf("unknown global command '%s'", input)
}

// atoiPrefix mimics C atoi: skip leading whitespace, then consume a run of
// decimal digits, stopping at the first non-digit. Garbage parses to 0.
func atoiPrefix(s string) int {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
