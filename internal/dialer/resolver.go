package dialer

import (
	"context"
	"fmt"
	"strings"
)

// Resolver discovers which active channel belongs to a just-originated line.
// The Originate action does not report the new channel's name, so the
// resolver lists active channels and prefix-matches on the line's device
// name, assuming at most one leg per device is up at a time.
type Resolver struct {
	client Client
}

// NewResolver creates a resolver querying channels through client.
func NewResolver(client Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve binds line to its active channel. On failure the line keeps
// whatever binding it had; the caller decides how to surface the error.
func (r *Resolver) Resolve(ctx context.Context, line *Line) error {
	resp, err := r.client.CoreShowChannels(ctx)
	if err != nil {
		return fmt.Errorf("failed to show channels")
	}
	prefix := line.DeviceName()
	for _, ev := range resp.Events {
		// Framing events (the ...Complete trailer) carry no Channel key.
		channel := ev.Get("Channel")
		if channel == "" {
			continue
		}
		if strings.HasPrefix(channel, prefix) {
			line.bindChannel(channel)
			return nil
		}
	}
	return fmt.Errorf("failed to find channel for %s", line.DeviceName())
}
