package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// TelegramDispatcher tells the operators' chat about confirmed and refunded
// bookings. Other events are ignored.
type TelegramDispatcher struct {
	bot    *telego.Bot
	chatID int64
}

func NewTelegramDispatcher(token string, chatID int64) (*TelegramDispatcher, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &TelegramDispatcher{bot: bot, chatID: chatID}, nil
}

func (d *TelegramDispatcher) Dispatch(ctx context.Context, ev Event) error {
	text := telegramText(ev)
	if text == "" {
		return nil
	}
	if _, err := d.bot.SendMessage(ctx, tu.Message(tu.ID(d.chatID), text)); err != nil {
		return fmt.Errorf("telegram send %s: %w", ev.OrderID, err)
	}
	return nil
}

func telegramText(ev Event) string {
	switch ev.Kind {
	case BookingConfirmed:
		return fmt.Sprintf("✅ Booking #%d confirmed\nProperty: %d\nCustomer: %d\nPaid: %s %s\nOrder: %s",
			ev.BookingID, ev.PropertyID, ev.CustomerID, ev.Amount, ev.Currency, ev.OrderID)
	case BookingRefunded:
		return fmt.Sprintf("↩️ Booking #%d refunded (order %s)", ev.BookingID, ev.OrderID)
	}
	return ""
}
