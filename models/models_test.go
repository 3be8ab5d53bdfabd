package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuction_CurrentPrice(t *testing.T) {
	a := Auction{StartingPrice: 1000, BidIncrement: 100}
	assert.Equal(t, 1000.0, a.CurrentPrice())

	a.CurrentBid = 1200
	a.BidCount = 2
	assert.Equal(t, 1200.0, a.CurrentPrice())
}

func TestAuction_MinimumNextBid(t *testing.T) {
	a := Auction{StartingPrice: 1000, BidIncrement: 100}

	// The first bid only has to meet the starting price.
	assert.Equal(t, 1000.0, a.MinimumNextBid())

	a.CurrentBid = 1000
	a.BidCount = 1
	assert.Equal(t, 1100.0, a.MinimumNextBid())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to AuctionStatus
		want     bool
	}{
		{StatusUpcoming, StatusActive, true},
		{StatusUpcoming, StatusCancelled, true},
		{StatusUpcoming, StatusEnded, false},
		{StatusActive, StatusEnded, true},
		{StatusActive, StatusCancelled, true},
		{StatusActive, StatusUpcoming, false},
		{StatusEnded, StatusActive, false},
		{StatusEnded, StatusCancelled, false},
		{StatusCancelled, StatusActive, false},
		{StatusCancelled, StatusEnded, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestAuctionStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusUpcoming.IsTerminal())
	assert.False(t, StatusActive.IsTerminal())
	assert.True(t, StatusEnded.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestResolveBidderName(t *testing.T) {
	tests := []struct {
		name        string
		displayName string
		bidderID    string
		want        string
	}{
		{"display name wins", "Alice", "u1", "Alice"},
		{"id as fallback", "", "u1", "u1"},
		{"anonymous last", "", "", AnonymousBidder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveBidderName(tt.displayName, tt.bidderID))
		})
	}
}

func TestNewAuctionView(t *testing.T) {
	a := Auction{
		ID:            "a1",
		Title:         "Painting",
		StartingPrice: 1000,
		CurrentBid:    1500,
		BidIncrement:  100,
		BidCount:      3,
		Status:        StatusActive,
	}

	view := NewAuctionView(&a)
	assert.Equal(t, 1500.0, view.CurrentBid)
	assert.Equal(t, 1600.0, view.MinimumBid)
	assert.Equal(t, 3, view.BidCount)

	// Without bids the view advertises the starting price as both current
	// and minimum.
	fresh := Auction{ID: "a2", StartingPrice: 500, BidIncrement: 50}
	view = NewAuctionView(&fresh)
	assert.Equal(t, 500.0, view.CurrentBid)
	assert.Equal(t, 500.0, view.MinimumBid)
}

func TestNewBidView(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := Bid{
		ID:        "b1",
		BidderID:  "u1",
		Amount:    1200,
		IsWinning: true,
		Created:   created,
		Updated:   created,
	}

	view := NewBidView(b)
	assert.Equal(t, "b1", view.ID)
	assert.Equal(t, "u1", view.Bidder)
	assert.Equal(t, created, view.Timestamp)
	assert.True(t, view.IsWinning)
}

func TestNewRelayMessage(t *testing.T) {
	msg := NewRelayMessage(RelayBidPlaced, "a1", BidPlacedPayload{Amount: 1100})
	assert.Equal(t, RelayMessageVersion, msg.Version)
	assert.Equal(t, RelayBidPlaced, msg.Type)
	assert.Equal(t, "a1", msg.AuctionID)
	assert.False(t, msg.SentAt.IsZero())
}
