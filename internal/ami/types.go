// Package ami implements a minimal client for the Asterisk Manager Interface:
// synchronous actions correlated by ActionID, list-style responses assembled
// from their Start/Complete event frames, and asynchronous event delivery.
package ami

import (
	"errors"
	"fmt"
)

// DefaultPort is the standard AMI TCP port.
const DefaultPort = 5038

var (
	// ErrNotConnected is returned when an action is attempted before Connect
	// or after the connection was lost.
	ErrNotConnected = errors.New("ami: not connected")

	// ErrDisconnected is returned to pending actions when the manager
	// connection drops mid-flight.
	ErrDisconnected = errors.New("ami: connection lost")
)

// Event is one key/value block received from the manager. Keys keep their
// wire capitalization ("Event", "Channel", ...).
type Event map[string]string

// Name returns the value of the Event key, or "" for non-event blocks.
func (e Event) Name() string { return e["Event"] }

// Get returns the value for key, or "" if absent.
func (e Event) Get(key string) string { return e[key] }

// Response is the outcome of one manager action. For list-style actions
// (EventList: start) Events holds every event delivered under the action's
// ActionID, including the terminating *Complete frame.
type Response struct {
	Success bool
	Message string
	Events  []Event
}

// Err converts a failed response into an error, using the manager's own
// message when it sent one.
func (r *Response) Err() error {
	if r.Success {
		return nil
	}
	if r.Message != "" {
		return fmt.Errorf("ami: action failed: %s", r.Message)
	}
	return errors.New("ami: action failed")
}
