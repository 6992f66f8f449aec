//go:build linux || darwin

// Package term flips the controlling terminal between canonical and
// character-at-a-time input. Only the ICANON flag is touched: echo stays on,
// signals keep working.
package term

import (
	"golang.org/x/sys/unix"
)

// State remembers the terminal settings in force before DisableCanonical.
type State struct {
	fd      int
	termios unix.Termios
}

// DisableCanonical turns off canonical mode on fd so reads return per
// keystroke instead of per line. Returns the state to restore on exit.
// Fails when fd is not a terminal (for example scripted input), which
// callers treat as "nothing to restore".
func DisableCanonical(fd int) (*State, error) {
	termios, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return nil, err
	}
	saved := *termios

	termios.Lflag &^= unix.ICANON
	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, termios); err != nil {
		return nil, err
	}
	return &State{fd: fd, termios: saved}, nil
}

// Restore puts the saved settings back.
func (s *State) Restore() error {
	return unix.IoctlSetTermios(s.fd, ioctlWriteTermios, &s.termios)
}
