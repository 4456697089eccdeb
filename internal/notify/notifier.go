// Package notify delivers fill notifications to external sinks. Delivery is
// fire-and-forget: failures are logged and never propagate to the trading
// path.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/alphatrader/alphatrader/internal/modules/trading"
)

// deliveryTimeout bounds one sink call.
const deliveryTimeout = 8 * time.Second

// Config selects which sinks are active. Empty fields disable a sink.
type Config struct {
	WebhookURL     string
	TelegramToken  string
	TelegramChatID string
}

// Notifier fans a fill out to every configured sink.
type Notifier struct {
	cfg  Config
	http *resty.Client
	log  zerolog.Logger
}

// New creates a notifier. With no sinks configured it is a silent no-op.
func New(cfg Config, log zerolog.Logger) *Notifier {
	return &Notifier{
		cfg:  cfg,
		http: resty.New().SetTimeout(deliveryTimeout),
		log:  log.With().Str("service", "notify").Logger(),
	}
}

// NotifyFill dispatches the fill to all sinks in the background and returns
// immediately.
func (n *Notifier) NotifyFill(fill trading.Fill) {
	if n.cfg.WebhookURL == "" && n.cfg.TelegramToken == "" {
		return
	}
	go n.deliver(fill)
}

func (n *Notifier) deliver(fill trading.Fill) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if n.cfg.WebhookURL != "" {
		if err := n.sendWebhook(ctx, fill); err != nil {
			n.log.Warn().Err(err).Str("fill_id", fill.ID).Msg("Webhook notification failed")
		}
	}
	if n.cfg.TelegramToken != "" && n.cfg.TelegramChatID != "" {
		if err := n.sendTelegram(ctx, fill); err != nil {
			n.log.Warn().Err(err).Str("fill_id", fill.ID).Msg("Telegram notification failed")
		}
	}
}

func (n *Notifier) sendWebhook(ctx context.Context, fill trading.Fill) error {
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(fill).
		Post(n.cfg.WebhookURL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}

func (n *Notifier) sendTelegram(ctx context.Context, fill trading.Fill) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.cfg.TelegramToken)
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id": n.cfg.TelegramChatID,
			"text":    formatFill(fill),
		}).
		Post(url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode())
	}
	return nil
}

func formatFill(fill trading.Fill) string {
	name := fill.Name
	if name == "" {
		name = fill.Symbol
	}
	return fmt.Sprintf("%s %s (%s) %d @ %.2f, total %.2f [%s]",
		fill.Action, name, fill.Symbol, fill.Quantity, fill.ExecPrice, fill.TotalAmount, fill.Status)
}
