package dialer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/arzzra/astdialer/internal/ami"
)

// Client is the slice of the manager client the interpreter drives lines
// through. *ami.Client satisfies it; tests substitute a fake.
type Client interface {
	Originate(ctx context.Context, channel, dialContext, exten, priority string) (*ami.Response, error)
	Hangup(ctx context.Context, channel string, cause int) (*ami.Response, error)
	SendFlash(ctx context.Context, channel string) (*ami.Response, error)
	PlayDTMF(ctx context.Context, channel string, digit byte) (*ami.Response, error)
	CoreShowChannels(ctx context.Context) (*ami.Response, error)
}

// ErrQuit is returned by Execute when the operator asked to quit. It is the
// only error Execute returns; every other failure is reported to the
// operator and swallowed so the session continues.
var ErrQuit = errors.New("quit")

// Interpreter validates commands against the line registry, invokes manager
// actions and reports outcomes. All operator-facing output goes to errw,
// matching the interactive UX (stdout stays clean for scripted use).
type Interpreter struct {
	registry *Registry
	client   Client
	resolver *Resolver
	errw     io.Writer
	metrics  *Metrics
	log      *slog.Logger
}

// NewInterpreter wires an interpreter over the given registry and client.
func NewInterpreter(registry *Registry, client Client, errw io.Writer, metrics *Metrics) *Interpreter {
	return &Interpreter{
		registry: registry,
		client:   client,
		resolver: NewResolver(client),
		errw:     errw,
		metrics:  metrics,
		log:      slog.Default(),
	}
}

// Execute parses and runs one input line. Parse and action failures are
// printed and absorbed; only a quit request surfaces as ErrQuit.
func (in *Interpreter) Execute(ctx context.Context, input string) error {
	cmd, err := ParseCommand(input)
	if err != nil {
		fmt.Fprintf(in.errw, "%s\n", err)
		return nil
	}
	if cmd.Global() {
		return in.runGlobal(ctx, cmd)
	}
	in.runLine(ctx, cmd)
	return nil
}

func (in *Interpreter) runLine(ctx context.Context, cmd Command) {
	line, err := in.registry.Line(cmd.Line)
	if err != nil {
		fmt.Fprintf(in.errw, "%s\n", err)
		return
	}

	switch cmd.Verb {
	case "o":
		in.originate(ctx, line)
	case "h":
		in.hangup(ctx, line)
	case "f":
		in.flash(ctx, line)
	case "d":
		in.dial(ctx, line, cmd.Arg)
	case "a":
		fmt.Fprintf(in.errw, "Not implemented yet\n")
	default:
		fmt.Fprintf(in.errw, "Unknown line command '%s'\n", cmd.Verb)
	}
}

func (in *Interpreter) originate(ctx context.Context, line *Line) {
	resp, err := in.client.Originate(ctx, line.DialString(), dialplanContext, dialplanExten, dialplanPriority)
	if err != nil {
		in.metrics.observeAction("originate", false)
		fmt.Fprintf(in.errw, "No response\n")
		return
	}
	if !resp.Success {
		in.metrics.observeAction("originate", false)
		fmt.Fprintf(in.errw, "Failed to go off hook on line %d\n", line.Index())
		return
	}
	in.metrics.observeAction("originate", true)

	// The leg exists on the server now, so the line is off hook whether or
	// not we manage to learn the channel's name.
	if err := line.originated(ctx); err != nil {
		in.log.Debug("hook transition rejected",
			slog.Int("line", line.Index()), slog.String("error", err.Error()))
	}
	if err := in.resolver.Resolve(ctx, line); err != nil {
		fmt.Fprintf(in.errw, "%s\n", err)
		return
	}
	fmt.Fprintf(in.errw, "OK\n")
}

func (in *Interpreter) hangup(ctx context.Context, line *Line) {
	if !line.OffHook() {
		fmt.Fprintf(in.errw, "Can't do this action on on-hook line\n")
		return
	}
	resp, err := in.client.Hangup(ctx, line.Channel(), hangupCause)
	if err != nil {
		in.metrics.observeAction("hangup", false)
		fmt.Fprintf(in.errw, "No response\n")
		return
	}
	if !resp.Success {
		in.metrics.observeAction("hangup", false)
		fmt.Fprintf(in.errw, "Failed to go on hook on line %d\n", line.Index())
		return
	}
	in.metrics.observeAction("hangup", true)
	if err := line.hungUp(ctx); err != nil {
		in.log.Debug("hook transition rejected",
			slog.Int("line", line.Index()), slog.String("error", err.Error()))
	}
	fmt.Fprintf(in.errw, "OK\n")
}

func (in *Interpreter) flash(ctx context.Context, line *Line) {
	if !line.OffHook() {
		fmt.Fprintf(in.errw, "Can't do this action on on-hook line\n")
		return
	}
	resp, err := in.client.SendFlash(ctx, line.Channel())
	if err != nil {
		in.metrics.observeAction("flash", false)
		fmt.Fprintf(in.errw, "No response\n")
		return
	}
	if !resp.Success {
		in.metrics.observeAction("flash", false)
		fmt.Fprintf(in.errw, "Failed to send flash on line %d\n", line.Index())
		return
	}
	in.metrics.observeAction("flash", true)
	fmt.Fprintf(in.errw, "OK\n")
}

func (in *Interpreter) dial(ctx context.Context, line *Line, arg string) {
	if !line.OffHook() {
		fmt.Fprintf(in.errw, "Can't do this action on on-hook line\n")
		return
	}
	if arg == "" {
		fmt.Fprintf(in.errw, "Invalid dial type ''\n")
		return
	}
	switch arg[0] {
	case 't':
		// PlayDTMF takes one digit per action. Digits are sent back to
		// back with no pacing; the channel queues them. Per-digit
		// outcomes are not reported.
		for i := 1; i < len(arg); i++ {
			_, err := in.client.PlayDTMF(ctx, line.Channel(), arg[i])
			in.metrics.observeAction("dtmf", err == nil)
		}
	case 'p':
		fmt.Fprintf(in.errw, "Dial pulse not yet supported\n")
	default:
		fmt.Fprintf(in.errw, "Invalid dial type '%c'\n", arg[0])
	}
}

func (in *Interpreter) runGlobal(ctx context.Context, cmd Command) error {
	switch cmd.Verb {
	case "s":
		sleepCtx(ctx, time.Duration(atoiPrefix(cmd.Arg))*time.Second)
	case "ms":
		sleepCtx(ctx, time.Duration(atoiPrefix(cmd.Arg))*time.Millisecond)
	case "q":
		return ErrQuit
	case "k":
		in.HangupAll(ctx)
	}
	return nil
}

// HangupAll hangs up every off-hook line, tolerating per-line failures. Lines
// whose hangup fails stay off hook. Also the teardown sweep.
func (in *Interpreter) HangupAll(ctx context.Context) {
	in.metrics.observeSweep()
	for _, line := range in.registry.OffHookLines() {
		resp, err := in.client.Hangup(ctx, line.Channel(), hangupCause)
		if err != nil || !resp.Success {
			in.metrics.observeAction("hangup", false)
			continue
		}
		in.metrics.observeAction("hangup", true)
		if err := line.hungUp(ctx); err == nil {
			fmt.Fprintf(in.errw, "Hung up line %d\n", line.Index())
		}
	}
}

// sleepCtx blocks for d or until ctx is canceled. The s/ms commands are
// deliberate blocking sleeps; cancellation still has to reach teardown
// without waiting the sleep out.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
