// Package dialer implements the nine-line command interpreter: a Hayes-like
// single-character command set driving virtual telephone lines on a remote
// Asterisk through its manager interface.
package dialer

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// MaxLines is the number of controllable lines, numbered 1..MaxLines.
const MaxLines = 9

// Dialing profile of the server under test. The remote lines are provisioned
// as PJSIP endpoints named <peerPrefix><line #>; dialing the PLAR code on one
// of them brings its line off hook, parked in a local dialplan context that
// answers and waits.
const (
	peerPrefix       = "autotest"
	plarCode         = "01"
	dialplanContext  = "idle"
	dialplanExten    = "9999"
	dialplanPriority = "1"

	// Normal call clearing.
	hangupCause = 16
)

// Hook states and the events that move between them.
const (
	stateOnHook  = "onhook"
	stateOffHook = "offhook"

	eventOriginate = "originate"
	eventHangup    = "hangup"
)

// Line is one virtual telephone line. Its identity is the index; device and
// dial strings derive from it. The channel name is known only while the line
// is off hook, and only when resolution after origination succeeded.
type Line struct {
	index   int
	hook    *fsm.FSM
	channel string
}

func newLine(index int) *Line {
	l := &Line{index: index}
	l.hook = fsm.NewFSM(
		stateOnHook,
		fsm.Events{
			{Name: eventOriginate, Src: []string{stateOnHook}, Dst: stateOffHook},
			{Name: eventHangup, Src: []string{stateOffHook}, Dst: stateOnHook},
		},
		fsm.Callbacks{
			"enter_" + stateOnHook: func(ctx context.Context, e *fsm.Event) {
				l.channel = ""
			},
		},
	)
	return l
}

// Index returns the line number (1-based).
func (l *Line) Index() int { return l.index }

// DeviceName is the PJSIP device of this line on the remote server. Channel
// names of call legs belonging to the line start with it.
func (l *Line) DeviceName() string {
	return fmt.Sprintf("PJSIP/%s%d", peerPrefix, l.index)
}

// DialString is the originate target that takes this line off hook.
func (l *Line) DialString() string {
	return fmt.Sprintf("PJSIP/%s@%s%d", plarCode, peerPrefix, l.index)
}

// OffHook reports whether the line has an active call leg.
func (l *Line) OffHook() bool { return l.hook.Is(stateOffHook) }

// Channel returns the bound call-leg name, or "" when the line is on hook or
// resolution failed after origination.
func (l *Line) Channel() string { return l.channel }

func (l *Line) bindChannel(channel string) { l.channel = channel }

func (l *Line) originated(ctx context.Context) error {
	return l.hook.Event(ctx, eventOriginate)
}

func (l *Line) hungUp(ctx context.Context) error {
	return l.hook.Event(ctx, eventHangup)
}

// Registry holds the fixed set of lines for the process lifetime.
type Registry struct {
	lines [MaxLines]*Line
}

// NewRegistry creates all nine lines, on hook.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.lines {
		r.lines[i] = newLine(i + 1)
	}
	return r
}

// Line returns the line with the given number, rejecting anything outside
// 1..MaxLines.
func (r *Registry) Line(n int) (*Line, error) {
	if n < 1 || n > MaxLines {
		return nil, fmt.Errorf("line number must be between 1 and %d", MaxLines)
	}
	return r.lines[n-1], nil
}

// OffHookLines returns every line with an active leg, in line order.
func (r *Registry) OffHookLines() []*Line {
	var active []*Line
	for _, l := range r.lines {
		if l.OffHook() {
			active = append(active, l)
		}
	}
	return active
}
