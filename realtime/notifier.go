package realtime

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"

	"hanotex/internal/status"
	"hanotex/models"
	"hanotex/monitoring"
	"hanotex/utils"
)

// Notifier delivers personal notifications over PubNub channels. Sends are
// best effort behind a circuit breaker; a failed delivery is logged and
// dropped because the read model covers missed events.
type Notifier struct {
	pn      *pubnub.PubNub
	breaker *utils.CircuitBreaker
	monitor *monitoring.Monitor
}

func NewNotifier(pn *pubnub.PubNub, monitor *monitoring.Monitor) *Notifier {
	return &Notifier{
		pn:      pn,
		breaker: utils.NewCircuitBreaker("pubnub"),
		monitor: monitor,
	}
}

func (n *Notifier) NotifyOutbid(ctx context.Context, userID string, notice models.OutbidNotice) {
	n.publish(ctx, userID, map[string]any{
		"type":          "outbid",
		"auction_id":    notice.AuctionID,
		"auction_title": notice.AuctionTitle,
		"new_amount":    notice.NewAmount,
		"minimum_bid":   notice.MinimumBid,
	})
}

func (n *Notifier) NotifyAuctionWon(ctx context.Context, userID string, notice models.AuctionWonNotice) {
	n.publish(ctx, userID, map[string]any{
		"type":          "auction_won",
		"auction_id":    notice.AuctionID,
		"auction_title": notice.AuctionTitle,
		"amount":        notice.Amount,
	})
}

func (n *Notifier) publish(ctx context.Context, userID string, message map[string]any) {
	if n.pn == nil || userID == "" {
		return
	}

	channel := "user-" + userID
	_, err := n.breaker.Execute(ctx, func() (interface{}, error) {
		_, _, err := n.pn.Publish().
			Channel(channel).
			Message(message).
			Execute()
		return nil, err
	})
	if err != nil {
		n.monitor.TrackNotifyFailure()
		slog.Warn("notify: publish failed",
			"channel", channel,
			"error", fmt.Errorf("%w: %v", status.ErrChannelUnavailable, err))
	}
}
