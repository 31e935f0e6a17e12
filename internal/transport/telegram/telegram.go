// Package telegram is the outbound-only Telegram delivery adapter.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"announced/internal/notifier"
	logx "announced/pkg/logx"
)

type Config struct {
	Token string
}

// Adapter renders announcements into Telegram messages. It implements
// notifier.Sink and never polls for updates.
type Adapter struct {
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token: cfg.Token,
		// Send-only: no poller.
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{bot: b, log: log}, nil
}

func (a *Adapter) Send(ctx context.Context, n notifier.Notification) error {
	// telebot sends block on the network; a cancelled run must not.
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.ChatID == 0 {
		return fmt.Errorf("user %s has no chat id", n.UserID)
	}

	_, err := a.bot.Send(tele.ChatID(n.ChatID), render(n), &tele.SendOptions{
		DisableWebPagePreview: false,
	})
	return err
}

func render(n notifier.Notification) string {
	title := ""
	if len(n.SubjectParams) > 0 {
		title = n.SubjectParams[0]
	}
	var b strings.Builder
	b.WriteString("📣 ")
	if title != "" {
		b.WriteString(title)
	} else {
		b.WriteString("New announcement")
	}
	if !n.Time.IsZero() {
		b.WriteString("\n")
		b.WriteString(n.Time.Format(time.RFC1123))
	}
	if n.Link != "" {
		b.WriteString("\n")
		b.WriteString(n.Link)
	}
	return b.String()
}
