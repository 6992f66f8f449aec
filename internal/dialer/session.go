package dialer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"
)

const (
	// Input buffer sizing: commands longer than the buffer (less a small
	// margin) are discarded with a complaint.
	bufSize       = 64
	maxCommandLen = bufSize - 2

	teardownTimeout = 10 * time.Second
)

// Exit codes of the interactive session.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// SessionConfig wires a Session together.
type SessionConfig struct {
	// Client executes line actions. Required.
	Client Client
	// Conn is released during teardown. May be nil in tests.
	Conn io.Closer
	// In is the operator's input, read one byte at a time.
	In io.Reader
	// Out receives help output; Errw the prompt and command outcomes.
	Out  io.Writer
	Errw io.Writer
	// Metrics may be nil.
	Metrics *Metrics
	// RestoreTerm puts the terminal back into cooked mode during teardown.
	// Nil when raw mode was never engaged (scripted input).
	RestoreTerm func()
	// HandleSignals installs a SIGINT handler routing into Cancel. Tests
	// leave it off.
	HandleSignals bool
}

// Session runs the interactive loop and owns the one-shot teardown path.
// It is single-threaded: every action blocks the loop until the manager
// answers, so at most one action is ever in flight.
type Session struct {
	interp      *Interpreter
	registry    *Registry
	conn        io.Closer
	in          io.Reader
	out         io.Writer
	errw        io.Writer
	restoreTerm func()
	handleSig   bool

	cancelCh    chan struct{}
	cancelOnce  sync.Once
	cleanupOnce sync.Once
}

type readResult struct {
	b   byte
	err error
}

// NewSession creates a session with all nine lines on hook.
func NewSession(cfg SessionConfig) *Session {
	registry := NewRegistry()
	return &Session{
		interp:      NewInterpreter(registry, cfg.Client, cfg.Errw, cfg.Metrics),
		registry:    registry,
		conn:        cfg.Conn,
		in:          cfg.In,
		out:         cfg.Out,
		errw:        cfg.Errw,
		restoreTerm: cfg.RestoreTerm,
		handleSig:   cfg.HandleSignals,
		cancelCh:    make(chan struct{}),
	}
}

// Registry exposes the session's lines.
func (s *Session) Registry() *Registry { return s.registry }

// Cancel requests teardown from outside the loop. The SIGINT handler and the
// manager's forced-disconnect callback both land here, so the loop observes
// the cancellation at its next safe point instead of being torn down from a
// foreign goroutine. Safe to call any number of times, before or after Run.
func (s *Session) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelCh) })
}

// Run drives the loop until quit, end of input, interrupt or forced
// disconnect, runs teardown and returns the process exit code.
func (s *Session) Run(ctx context.Context) int {
	ctx, cancelCtx := context.WithCancel(ctx)
	defer cancelCtx()
	go func() {
		select {
		case <-s.cancelCh:
			cancelCtx()
		case <-ctx.Done():
		}
	}()

	if s.handleSig {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case <-sigCh:
				s.Cancel()
			case <-ctx.Done():
			}
		}()
	}

	// The reader goroutine is the only place allowed to block on input; the
	// loop itself stays selectable so cancellation gets through.
	input := make(chan readResult)
	go readBytes(s.in, input)

	buf := make([]byte, 0, bufSize)
	reset := true
	for {
		if reset {
			buf = buf[:0]
			reset = false
			fmt.Fprintf(s.errw, ">")
		}
		select {
		case <-ctx.Done():
			return s.shutdown(ExitFailure)
		case res := <-input:
			if res.err != nil {
				// Zero bytes read: the operator hung up on us.
				return s.shutdown(ExitOK)
			}
			switch res.b {
			case '\n':
				err := s.interp.Execute(ctx, string(buf))
				if errors.Is(err, ErrQuit) {
					return s.shutdown(ExitOK)
				}
				// A cancellation that arrived mid-command (for example
				// during a sleep) still ends the session.
				if ctx.Err() != nil {
					return s.shutdown(ExitFailure)
				}
				reset = true
			case '?':
				// Help preempts whatever was typed so far.
				fmt.Fprint(s.out, helpText)
				fmt.Fprintln(s.out)
				reset = true
			default:
				buf = append(buf, res.b)
				if len(buf) >= maxCommandLen {
					fmt.Fprintf(s.errw, "Command too long\n")
					reset = true
				}
			}
		}
	}
}

// shutdown is the one-shot cleanup handler: restore the terminal, hang up
// whatever is still off hook, release the manager connection. Whichever of
// quit/EOF, SIGINT or forced disconnect gets here first runs it; later
// triggers are no-ops.
func (s *Session) shutdown(code int) int {
	s.cleanupOnce.Do(func() {
		if s.restoreTerm != nil {
			s.restoreTerm()
		}
		fmt.Fprintf(s.errw, "\n")

		// Teardown gets a fresh context: the session context is already
		// canceled on the interrupt/disconnect paths, and the lines still
		// deserve a best-effort hangup.
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		s.interp.HangupAll(ctx)

		if s.conn != nil {
			_ = s.conn.Close()
		}
		fmt.Fprintf(s.errw, "astdialer exiting...\n")
	})
	return code
}

func readBytes(r io.Reader, ch chan<- readResult) {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			ch <- readResult{b: buf[0]}
		}
		if err != nil {
			ch <- readResult{err: err}
			return
		}
	}
}
