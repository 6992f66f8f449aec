package ami

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventHandler receives unsolicited manager events (events that do not belong
// to a pending list action).
type EventHandler func(Event)

// DisconnectHandler fires once if the manager connection drops outside an
// orderly Close.
type DisconnectHandler func()

// Client is a synchronous AMI client. One action is typically in flight at a
// time, but correlation by ActionID keeps it correct regardless.
type Client struct {
	host          string
	port          int
	actionTimeout time.Duration

	onEvent      EventHandler
	onDisconnect DisconnectHandler
	disconnOnce  sync.Once

	mu        sync.Mutex // guards conn, writer, connected, closing
	conn      net.Conn
	writer    *bufio.Writer
	connected bool
	closing   bool

	pendingMu sync.Mutex
	pending   map[string]*pendingAction

	log *slog.Logger
}

type pendingAction struct {
	resp       *Response
	collecting bool // list-style response, waiting for the Complete frame
	done       chan struct{}
	err        error
}

// Option configures a Client.
type Option func(*Client)

// WithPort overrides the manager port.
func WithPort(port int) Option {
	return func(c *Client) { c.port = port }
}

// WithActionTimeout bounds how long a single action waits for its response.
func WithActionTimeout(d time.Duration) Option {
	return func(c *Client) { c.actionTimeout = d }
}

// WithLogger sets the logger used for wire-level debug output.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithEventHandler registers the handler for unsolicited events.
func WithEventHandler(h EventHandler) Option {
	return func(c *Client) { c.onEvent = h }
}

// WithDisconnectHandler registers the forced-disconnect callback.
func WithDisconnectHandler(h DisconnectHandler) Option {
	return func(c *Client) { c.onDisconnect = h }
}

// NewClient creates a client for the manager at host. Connect must be called
// before any action.
func NewClient(host string, opts ...Option) *Client {
	c := &Client{
		host:          host,
		port:          DefaultPort,
		actionTimeout: 10 * time.Second,
		pending:       make(map[string]*pendingAction),
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the manager, consumes the protocol banner and starts the
// reader goroutine.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("ami: connect %s: %w", addr, err)
	}

	reader := bufio.NewReader(conn)

	// First line is the banner, e.g. "Asterisk Call Manager/5.0".
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	banner, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return fmt.Errorf("ami: read banner: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	c.log.Debug("ami connected", slog.String("addr", addr), slog.String("banner", strings.TrimSpace(banner)))

	c.conn = conn
	c.writer = bufio.NewWriter(conn)
	c.connected = true
	c.closing = false

	go c.readLoop(reader)
	return nil
}

// Login authenticates against the manager. A failed login leaves the
// connection open; callers normally Close on error.
func (c *Client) Login(ctx context.Context, username, secret string) error {
	resp, err := c.Action(ctx, "Login", map[string]string{
		"Username": username,
		"Secret":   secret,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("ami: login %s: %w", username, resp.Err())
	}
	return nil
}

// Close logs off and tears down the connection. The disconnect handler does
// not fire for an orderly Close. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	// Best effort; the peer may already be gone.
	_, _ = c.writer.WriteString("Action: Logoff\r\n\r\n")
	_ = c.writer.Flush()
	conn := c.conn
	c.connected = false
	c.mu.Unlock()

	return conn.Close()
}

// Action sends one manager action and blocks until its response arrives, the
// context expires or the connection drops.
func (c *Client) Action(ctx context.Context, name string, fields map[string]string) (*Response, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}

	id := uuid.NewString()
	pa := &pendingAction{
		resp: &Response{},
		done: make(chan struct{}),
	}
	c.pendingMu.Lock()
	c.pending[id] = pa
	c.pendingMu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Action: %s\r\n", name)
	fmt.Fprintf(&b, "ActionID: %s\r\n", id)
	for k, v := range fields {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	b.WriteString("\r\n")

	c.log.Debug("ami action", slog.String("action", name), slog.String("actionID", id))
	_, err := c.writer.WriteString(b.String())
	if err == nil {
		err = c.writer.Flush()
	}
	c.mu.Unlock()

	if err != nil {
		c.dropPending(id)
		return nil, fmt.Errorf("ami: send %s: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.actionTimeout)
	defer cancel()

	select {
	case <-pa.done:
		if pa.err != nil {
			return nil, pa.err
		}
		return pa.resp, nil
	case <-ctx.Done():
		c.dropPending(id)
		return nil, fmt.Errorf("ami: %s: %w", name, ctx.Err())
	}
}

func (c *Client) dropPending(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// readLoop splits the stream into blank-line-terminated blocks and routes
// them: responses complete pending actions, list events accumulate under
// their action, everything else goes to the event handler.
func (c *Client) readLoop(reader *bufio.Reader) {
	block := make(Event)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			c.connectionLost(err)
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(block) > 0 {
				c.dispatch(block)
				block = make(Event)
			}
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			c.log.Debug("ami unparsable line", slog.String("line", line))
			continue
		}
		block[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
}

func (c *Client) dispatch(block Event) {
	id := block["ActionID"]

	if result, ok := block["Response"]; ok {
		c.pendingMu.Lock()
		pa := c.pending[id]
		if pa != nil {
			pa.resp.Success = result == "Success"
			pa.resp.Message = block["Message"]
			if strings.EqualFold(block["EventList"], "start") {
				// List response: keep the action pending until the
				// Complete event frame arrives.
				pa.collecting = true
			} else {
				delete(c.pending, id)
			}
		}
		c.pendingMu.Unlock()
		if pa != nil && !pa.collecting {
			close(pa.done)
		} else if pa == nil {
			c.log.Debug("ami orphan response", slog.String("actionID", id))
		}
		return
	}

	if block.Name() != "" && id != "" {
		c.pendingMu.Lock()
		pa := c.pending[id]
		if pa != nil && pa.collecting {
			pa.resp.Events = append(pa.resp.Events, block)
			if strings.EqualFold(block["EventList"], "complete") ||
				strings.HasSuffix(block.Name(), "Complete") {
				delete(c.pending, id)
				c.pendingMu.Unlock()
				close(pa.done)
				return
			}
			c.pendingMu.Unlock()
			return
		}
		c.pendingMu.Unlock()
	}

	if c.onEvent != nil {
		c.onEvent(block)
	}
}

// connectionLost fails every pending action and, unless the drop came from an
// orderly Close, fires the disconnect handler exactly once.
func (c *Client) connectionLost(err error) {
	c.mu.Lock()
	orderly := c.closing
	c.connected = false
	c.mu.Unlock()

	c.pendingMu.Lock()
	for id, pa := range c.pending {
		pa.err = ErrDisconnected
		close(pa.done)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	if orderly {
		return
	}
	c.log.Debug("ami connection lost", slog.String("error", err.Error()))
	if c.onDisconnect != nil {
		c.disconnOnce.Do(c.onDisconnect)
	}
}
