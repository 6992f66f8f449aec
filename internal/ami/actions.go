package ami

import (
	"context"
	"strconv"
)

// Originate creates an outbound call leg on channel and connects it to the
// given dialplan context/extension/priority. The manager does not report the
// new channel's name; see CoreShowChannels.
func (c *Client) Originate(ctx context.Context, channel, dialContext, exten, priority string) (*Response, error) {
	return c.Action(ctx, "Originate", map[string]string{
		"Channel":  channel,
		"Context":  dialContext,
		"Exten":    exten,
		"Priority": priority,
	})
}

// Hangup tears down channel with the given ISDN cause code.
func (c *Client) Hangup(ctx context.Context, channel string, cause int) (*Response, error) {
	return c.Action(ctx, "Hangup", map[string]string{
		"Channel": channel,
		"Cause":   strconv.Itoa(cause),
	})
}

// SendFlash sends a hook flash on channel.
func (c *Client) SendFlash(ctx context.Context, channel string) (*Response, error) {
	return c.Action(ctx, "SendFlash", map[string]string{
		"Channel": channel,
	})
}

// PlayDTMF plays a single DTMF digit on channel. The action takes one digit
// at a time; the channel queues digits sent back to back.
func (c *Client) PlayDTMF(ctx context.Context, channel string, digit byte) (*Response, error) {
	return c.Action(ctx, "PlayDTMF", map[string]string{
		"Channel": channel,
		"Digit":   string(digit),
	})
}

// CoreShowChannels lists the currently active channels. The returned
// Response.Events holds one CoreShowChannel event per channel plus the
// terminating CoreShowChannelsComplete frame.
func (c *Client) CoreShowChannels(ctx context.Context) (*Response, error) {
	return c.Action(ctx, "CoreShowChannels", nil)
}
