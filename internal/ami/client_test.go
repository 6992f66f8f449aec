package ami_test

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/astdialer/internal/ami"
)

// fakeManager accepts one connection, writes the protocol banner and hands
// the connection to script.
func fakeManager(t *testing.T, script func(t *testing.T, conn net.Conn, r *bufio.Reader)) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "Should listen on loopback")
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fmt.Fprintf(conn, "Asterisk Call Manager/5.0\r\n")
		script(t, conn, bufio.NewReader(conn))
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

// readAction reads one CRLF key/value block from the client.
func readAction(t *testing.T, r *bufio.Reader) map[string]string {
	t.Helper()
	block := make(map[string]string)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return block
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return block
		}
		key, value, ok := strings.Cut(line, ":")
		if ok {
			block[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
}

func connect(t *testing.T, port int, opts ...ami.Option) *ami.Client {
	t.Helper()
	opts = append(opts, ami.WithPort(port), ami.WithActionTimeout(2*time.Second))
	client := ami.NewClient("127.0.0.1", opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx), "Should connect and read banner")
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLoginSuccess(t *testing.T) {
	port := fakeManager(t, func(t *testing.T, conn net.Conn, r *bufio.Reader) {
		action := readAction(t, r)
		assert.Equal(t, "Login", action["Action"])
		assert.Equal(t, "admin", action["Username"])
		assert.Equal(t, "secret", action["Secret"])
		fmt.Fprintf(conn, "Response: Success\r\nActionID: %s\r\nMessage: Authentication accepted\r\n\r\n", action["ActionID"])
	})

	client := connect(t, port)
	require.NoError(t, client.Login(context.Background(), "admin", "secret"))
}

func TestLoginRejected(t *testing.T) {
	port := fakeManager(t, func(t *testing.T, conn net.Conn, r *bufio.Reader) {
		action := readAction(t, r)
		fmt.Fprintf(conn, "Response: Error\r\nActionID: %s\r\nMessage: Authentication failed\r\n\r\n", action["ActionID"])
	})

	client := connect(t, port)
	err := client.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Authentication failed")
}

func TestActionFailureResponse(t *testing.T) {
	port := fakeManager(t, func(t *testing.T, conn net.Conn, r *bufio.Reader) {
		action := readAction(t, r)
		assert.Equal(t, "Hangup", action["Action"])
		assert.Equal(t, "16", action["Cause"])
		fmt.Fprintf(conn, "Response: Error\r\nActionID: %s\r\nMessage: No such channel\r\n\r\n", action["ActionID"])
	})

	client := connect(t, port)
	resp, err := client.Hangup(context.Background(), "PJSIP/autotest1-00000001", 16)
	require.NoError(t, err, "A protocol-level rejection is not a transport error")
	assert.False(t, resp.Success)
	assert.Equal(t, "No such channel", resp.Message)
}

func TestCoreShowChannelsList(t *testing.T) {
	port := fakeManager(t, func(t *testing.T, conn net.Conn, r *bufio.Reader) {
		action := readAction(t, r)
		assert.Equal(t, "CoreShowChannels", action["Action"])
		id := action["ActionID"]
		fmt.Fprintf(conn, "Response: Success\r\nActionID: %s\r\nEventList: start\r\nMessage: Channels will follow\r\n\r\n", id)
		fmt.Fprintf(conn, "Event: CoreShowChannel\r\nActionID: %s\r\nChannel: PJSIP/autotest1-00000001\r\n\r\n", id)
		fmt.Fprintf(conn, "Event: CoreShowChannel\r\nActionID: %s\r\nChannel: PJSIP/autotest3-00000002\r\n\r\n", id)
		fmt.Fprintf(conn, "Event: CoreShowChannelsComplete\r\nActionID: %s\r\nEventList: Complete\r\nListItems: 2\r\n\r\n", id)
	})

	client := connect(t, port)
	resp, err := client.CoreShowChannels(context.Background())
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Len(t, resp.Events, 3, "Two channels plus the Complete frame")
	assert.Equal(t, "PJSIP/autotest1-00000001", resp.Events[0].Get("Channel"))
	assert.Equal(t, "PJSIP/autotest3-00000002", resp.Events[1].Get("Channel"))
	assert.Equal(t, "CoreShowChannelsComplete", resp.Events[2].Name())
	assert.Empty(t, resp.Events[2].Get("Channel"), "Complete frame carries no channel")
}

func TestUnsolicitedEventDelivered(t *testing.T) {
	release := make(chan struct{})
	port := fakeManager(t, func(t *testing.T, conn net.Conn, r *bufio.Reader) {
		fmt.Fprintf(conn, "Event: Newchannel\r\nChannel: PJSIP/foo-00000001\r\n\r\n")
		<-release
	})
	defer close(release)

	events := make(chan ami.Event, 1)
	connect(t, port, ami.WithEventHandler(func(ev ami.Event) {
		select {
		case events <- ev:
		default:
		}
	}))

	select {
	case ev := <-events:
		assert.Equal(t, "Newchannel", ev.Name())
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestForcedDisconnectFiresOnce(t *testing.T) {
	port := fakeManager(t, func(t *testing.T, conn net.Conn, r *bufio.Reader) {
		// Drop the connection right after the banner.
	})

	disconnects := make(chan struct{}, 4)
	client := connect(t, port, ami.WithDisconnectHandler(func() {
		disconnects <- struct{}{}
	}))

	select {
	case <-disconnects:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect handler never fired")
	}

	// Later actions fail fast instead of hanging.
	_, err := client.SendFlash(context.Background(), "PJSIP/autotest1-00000001")
	require.Error(t, err)

	select {
	case <-disconnects:
		t.Fatal("disconnect handler fired twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOrderlyCloseDoesNotFireDisconnect(t *testing.T) {
	release := make(chan struct{})
	port := fakeManager(t, func(t *testing.T, conn net.Conn, r *bufio.Reader) {
		<-release
	})
	defer close(release)

	disconnects := make(chan struct{}, 1)
	client := connect(t, port, ami.WithDisconnectHandler(func() {
		disconnects <- struct{}{}
	}))

	require.NoError(t, client.Close())

	select {
	case <-disconnects:
		t.Fatal("orderly close must not look like a forced disconnect")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestActionWhenNotConnected(t *testing.T) {
	client := ami.NewClient("127.0.0.1")
	_, err := client.CoreShowChannels(context.Background())
	require.ErrorIs(t, err, ami.ErrNotConnected)
}
