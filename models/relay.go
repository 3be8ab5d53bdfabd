package models

import (
	"time"
)

// RelayMessageVersion is bumped whenever the relay payload shape changes
// in a way subscribers have to care about.
const RelayMessageVersion = 1

// Relay message types.
const (
	RelayBidPlaced      = "bid_placed"
	RelayAuctionStarted = "auction_started"
	RelayAuctionEnded   = "auction_ended"
)

// RelayMessage is the versioned envelope pushed over the realtime channel.
// The relay is notification-only: clients reconcile against the read model
// and never treat these as authoritative.
type RelayMessage struct {
	Version   int       `json:"v"`
	Type      string    `json:"type"`
	AuctionID string    `json:"auction_id"`
	Payload   any       `json:"payload,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// NewRelayMessage stamps a relay envelope with the current version and time.
func NewRelayMessage(msgType, auctionID string, payload any) RelayMessage {
	return RelayMessage{
		Version:   RelayMessageVersion,
		Type:      msgType,
		AuctionID: auctionID,
		Payload:   payload,
		SentAt:    time.Now().UTC(),
	}
}

// BidPlacedPayload rides on a bid_placed relay message.
type BidPlacedPayload struct {
	BidID      string  `json:"bid_id"`
	Amount     float64 `json:"amount"`
	Bidder     string  `json:"bidder"`
	CurrentBid float64 `json:"current_bid"`
	MinimumBid float64 `json:"minimum_bid"`
	BidCount   int     `json:"bid_count"`
}

// AuctionWonNotice is delivered to the winning bidder when an auction ends.
type AuctionWonNotice struct {
	AuctionID    string  `json:"auction_id"`
	AuctionTitle string  `json:"auction_title"`
	Amount       float64 `json:"amount"`
}

// OutbidNotice is delivered to the displaced bidder's personal channel.
type OutbidNotice struct {
	AuctionID    string  `json:"auction_id"`
	AuctionTitle string  `json:"auction_title"`
	NewAmount    float64 `json:"new_amount"`
	MinimumBid   float64 `json:"minimum_bid"`
}
