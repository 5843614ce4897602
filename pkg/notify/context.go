// Package notify delivers outbound messages over Telegram and webhooks and
// routes pipeline responses back to the channel the capture came from.
package notify

// Channel names.
const (
	ChannelTelegram = "telegram"
	ChannelWebhook  = "webhook"
	ChannelAPI      = "api"
)

// ChannelContext records where a capture originated so responses go back the
// same way.
type ChannelContext struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id,omitempty"`
}

// ShouldSend reports whether a message for target belongs on this context's
// channel. Cross-channel sends are suppressed, not redirected.
func (c ChannelContext) ShouldSend(target string) bool {
	return c.Channel == target
}

// Result is the outcome of one delivery attempt. Delivery failures are data,
// not errors; the pipeline must not fail because a notification did.
type Result struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}
