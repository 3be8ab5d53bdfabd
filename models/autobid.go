package models

import (
	"time"
)

// AutoBid is a standing maximum a bidder is willing to pay. The auto-bid
// engine counter-bids on the bidder's behalf whenever they are outbid, up
// to MaxAmount.
type AutoBid struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	MaxAmount float64   `json:"max_amount"`
	Active    bool      `json:"active"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
}
