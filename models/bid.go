package models

import (
	"time"
)

type Bid struct {
	ID         string    `json:"id"`
	AuctionID  string    `json:"auction_id"`
	BidderID   string    `json:"bidder_id"`
	BidderName string    `json:"bidder_name,omitempty"`
	Amount     float64   `json:"amount"`
	IsWinning  bool      `json:"is_winning"`
	Reference  string    `json:"reference,omitempty"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
}

// BidView is the client-facing shape of a bid in the read model.
type BidView struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Bidder    string    `json:"bidder"`
	Timestamp time.Time `json:"timestamp"`
	IsWinning bool      `json:"isWinning"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BidListPage is one page of an auction's bid history, newest first.
type BidListPage struct {
	Bids       []BidView `json:"bids"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
}

// AnonymousBidder is the placeholder shown when a bid carries no usable
// bidder information.
const AnonymousBidder = "Anonymous"

// ResolveBidderName resolves the display name for a bid with a fixed
// precedence: the bidder's display name, then the raw bidder id, then the
// anonymous placeholder. The result is never empty.
func ResolveBidderName(displayName, bidderID string) string {
	if displayName != "" {
		return displayName
	}
	if bidderID != "" {
		return bidderID
	}
	return AnonymousBidder
}

// NewBidView reshapes a stored bid into its client-facing view.
func NewBidView(b Bid) BidView {
	return BidView{
		ID:        b.ID,
		Amount:    b.Amount,
		Bidder:    ResolveBidderName(b.BidderName, b.BidderID),
		Timestamp: b.Created,
		IsWinning: b.IsWinning,
		CreatedAt: b.Created,
		UpdatedAt: b.Updated,
	}
}
