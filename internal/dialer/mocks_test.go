package dialer_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/arzzra/astdialer/internal/ami"
)

// fakeClient records every manager action and answers from canned state.
type fakeClient struct {
	mu    sync.Mutex
	calls []string

	// channels answers CoreShowChannels; showErr overrides it.
	channels []ami.Event
	showErr  error

	originateErr  error
	originateFail bool
	hangupFail    bool
	flashFail     bool
}

func (f *fakeClient) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) Originate(ctx context.Context, channel, dialContext, exten, priority string) (*ami.Response, error) {
	f.record("Originate %s %s %s %s", channel, dialContext, exten, priority)
	if f.originateErr != nil {
		return nil, f.originateErr
	}
	return &ami.Response{Success: !f.originateFail}, nil
}

func (f *fakeClient) Hangup(ctx context.Context, channel string, cause int) (*ami.Response, error) {
	f.record("Hangup %s %d", channel, cause)
	return &ami.Response{Success: !f.hangupFail}, nil
}

func (f *fakeClient) SendFlash(ctx context.Context, channel string) (*ami.Response, error) {
	f.record("SendFlash %s", channel)
	return &ami.Response{Success: !f.flashFail}, nil
}

func (f *fakeClient) PlayDTMF(ctx context.Context, channel string, digit byte) (*ami.Response, error) {
	f.record("PlayDTMF %s %c", channel, digit)
	return &ami.Response{Success: true}, nil
}

func (f *fakeClient) CoreShowChannels(ctx context.Context) (*ami.Response, error) {
	f.record("CoreShowChannels")
	if f.showErr != nil {
		return nil, f.showErr
	}
	events := append([]ami.Event(nil), f.channels...)
	events = append(events, ami.Event{
		"Event":     "CoreShowChannelsComplete",
		"EventList": "Complete",
	})
	return &ami.Response{Success: true, Events: events}, nil
}

// channelList builds CoreShowChannel events for the given channel names.
func channelList(names ...string) []ami.Event {
	var events []ami.Event
	for _, name := range names {
		events = append(events, ami.Event{
			"Event":   "CoreShowChannel",
			"Channel": name,
		})
	}
	return events
}

var errNoResponse = errors.New("no response")
