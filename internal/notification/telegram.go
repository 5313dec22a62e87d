package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ds124wfegd/roombooker/internal/entity"
)

// MessageSender sends a text message to a chat.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// TelegramNotifier forwards admin notifications to a single chat.
type TelegramNotifier struct {
	bot    MessageSender
	chatID string
}

func NewTelegramNotifier(bot MessageSender, chatID string) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (t *TelegramNotifier) Notify(ctx context.Context, n *entity.Notification) error {
	if n.Audience != entity.AudienceAdmins {
		return nil
	}
	return t.bot.SendMessage(ctx, t.chatID, formatMessage(n))
}

func formatMessage(n *entity.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", n.Timestamp.UTC().Format(time.RFC3339), n.Event)

	switch data := n.Data.(type) {
	case *entity.Reservation:
		fmt.Fprintf(&b, "\nreservation %s (%s)\nroom %s, %s - %s UTC\nstatus: %s",
			data.ID, data.Title, data.RoomID,
			data.StartTime.Format("2006-01-02 15:04"), data.EndTime.Format("15:04"), data.Status)
		if data.CancellationReason != nil {
			fmt.Fprintf(&b, "\nreason: %s", *data.CancellationReason)
		}
	case map[string]interface{}:
		for _, key := range []string{"outcome", "reservationId", "roomId"} {
			if v, ok := data[key]; ok {
				fmt.Fprintf(&b, "\n%s: %v", key, v)
			}
		}
	}
	return b.String()
}
