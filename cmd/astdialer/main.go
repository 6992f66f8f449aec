// astdialer is a CLI manipulator for up to nine telephone lines on a remote
// Asterisk, driven over the manager interface with brief commands loosely
// modeled on the Hayes command set. There is no audio path; it exists for
// test setups where the operator (or a script on stdin) needs to work
// multiple lines without touching multiple phones.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arzzra/astdialer/internal/ami"
	"github.com/arzzra/astdialer/internal/dialer"
	"github.com/arzzra/astdialer/internal/term"
)

const termClear = "\x1b[1;1H\x1b[2J"

const connectTimeout = 10 * time.Second

type options struct {
	host        string
	username    string
	password    string
	debug       int
	metricsAddr string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "astdialer",
		Short:         "nine-line AMI dialer for driving a remote Asterisk from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.Flags()
	flags.StringVarP(&opts.host, "host", "l", "127.0.0.1", "Asterisk AMI hostname")
	flags.StringVarP(&opts.username, "username", "u", "", "Asterisk AMI username")
	flags.StringVarP(&opts.password, "password", "p", "", "Asterisk AMI password (autodetected for local connections if possible)")
	flags.CountVarP(&opts.debug, "debug", "d", "Enable AMI debug (repeat for more)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (off when empty)")
	return cmd
}

func run(opts *options) error {
	if opts.username == "" {
		return errors.New("no username provided (use -u flag)")
	}

	level := slog.LevelWarn
	if opts.debug > 0 {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if opts.password == "" && opts.host == "127.0.0.1" {
		// Running next to Asterisk with config access: pull the secret
		// ourselves instead of taking it on the command line.
		password, err := ami.AutoDetectPassword(opts.username)
		if err != nil {
			return fmt.Errorf("no password specified, and failed to autodetect from /etc/asterisk/manager.conf: %w", err)
		}
		opts.password = password
	}

	var sess *dialer.Session
	client := ami.NewClient(opts.host,
		ami.WithLogger(logger),
		// Ordinary events are noise to us.
		ami.WithEventHandler(func(ami.Event) {}),
		ami.WithDisconnectHandler(func() {
			fmt.Fprintf(os.Stderr, "\nAMI was forcibly disconnected...\n")
			if sess != nil {
				sess.Cancel()
			}
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	err := client.Connect(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to AMI (host: %s, user: %s): %w", opts.host, opts.username, err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), connectTimeout)
	err = client.Login(ctx, opts.username, opts.password)
	cancel()
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to log in with username %s: %w", opts.username, err)
	}

	var metrics *dialer.Metrics
	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = dialer.NewMetrics(reg)
		go func() {
			handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
			if err := http.ListenAndServe(opts.metricsAddr, handler); err != nil {
				logger.Warn("metrics listener failed", slog.String("error", err.Error()))
			}
		}()
	}

	// Character-at-a-time input so ? works mid-line. Scripted stdin is not
	// a terminal; that is fine, there is nothing to restore then.
	var restore func()
	if state, err := term.DisableCanonical(int(os.Stdin.Fd())); err == nil {
		restore = func() { _ = state.Restore() }
	}

	fmt.Printf(termClear)
	fmt.Printf("*** astdialer ***\n")
	fmt.Printf("Press ? for help\n")

	sess = dialer.NewSession(dialer.SessionConfig{
		Client:        client,
		Conn:          client,
		In:            os.Stdin,
		Out:           os.Stdout,
		Errw:          os.Stderr,
		Metrics:       metrics,
		RestoreTerm:   restore,
		HandleSignals: true,
	})

	if code := sess.Run(context.Background()); code != dialer.ExitOK {
		os.Exit(code)
	}
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
