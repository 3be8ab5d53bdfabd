package status

import "errors"

// Client-facing errors. These are expected outcomes of normal requests and
// are never logged as system errors.
var (
	ErrAuctionNotFound   = errors.New("auction: auction not found")
	ErrAuctionNotStarted = errors.New("auction: auction has not started")
	ErrAuctionEnded      = errors.New("auction: auction has ended")
	ErrAuctionCancelled  = errors.New("auction: auction was cancelled")
	ErrBidTooLow         = errors.New("bid: amount below minimum bid")
	ErrInvalidAmount     = errors.New("bid: invalid amount")
	ErrInvalidTransition = errors.New("auction: invalid status transition")
)

// Infrastructure errors.
var (
	ErrUpstreamUnavailable = errors.New("store: upstream unavailable")
	ErrChannelUnavailable  = errors.New("relay: channel unavailable")
)

// Code returns the stable machine-readable code for a taxonomy error so
// clients can render specific messages. Unknown errors map to server_error.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAuctionNotFound):
		return "auction_not_found"
	case errors.Is(err, ErrAuctionNotStarted):
		return "auction_not_started"
	case errors.Is(err, ErrAuctionEnded):
		return "auction_ended"
	case errors.Is(err, ErrAuctionCancelled):
		return "auction_cancelled"
	case errors.Is(err, ErrBidTooLow):
		return "bid_too_low"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrChannelUnavailable):
		return "channel_unavailable"
	default:
		return "server_error"
	}
}

// IsClientError reports whether the error is part of the client-facing
// taxonomy, as opposed to an infrastructure fault.
func IsClientError(err error) bool {
	for _, e := range []error{
		ErrAuctionNotFound,
		ErrAuctionNotStarted,
		ErrAuctionEnded,
		ErrAuctionCancelled,
		ErrBidTooLow,
		ErrInvalidAmount,
		ErrInvalidTransition,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
