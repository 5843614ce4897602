package notify

import (
	"context"
	"log/slog"
)

// Router sends pipeline responses back to the channel a capture came from.
type Router struct {
	telegram *Telegram
	webhook  *Webhook
	logger   *slog.Logger
}

// NewRouter creates the response router.
func NewRouter(telegram *Telegram, webhook *Webhook, logger *slog.Logger) *Router {
	return &Router{
		telegram: telegram,
		webhook:  webhook,
		logger:   logger.With("component", "notify"),
	}
}

// Respond delivers a message on the originating channel. API captures get
// their response in the HTTP reply, so no push happens for them.
func (r *Router) Respond(ctx context.Context, chctx ChannelContext, message string) Result {
	switch chctx.Channel {
	case ChannelTelegram:
		return r.telegram.Send(ctx, chctx.ChatID, message)
	case ChannelWebhook:
		return r.webhook.Send(ctx, "", map[string]any{"message": message})
	case ChannelAPI, "":
		return Result{Channel: ChannelAPI, Success: true}
	default:
		r.logger.Warn("unknown response channel", "channel", chctx.Channel)
		return Result{Channel: chctx.Channel, Error: "unknown channel"}
	}
}
