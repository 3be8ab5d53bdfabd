package models

import (
	"time"
)

type AuctionStatus string

const (
	StatusUpcoming  AuctionStatus = "upcoming"
	StatusActive    AuctionStatus = "active"
	StatusEnded     AuctionStatus = "ended"
	StatusCancelled AuctionStatus = "cancelled"
)

type Auction struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Category      string        `json:"category"`
	SellerID      string        `json:"seller_id"`
	StartingPrice float64       `json:"starting_price"`
	CurrentBid    float64       `json:"current_bid"`
	BidIncrement  float64       `json:"bid_increment"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Status        AuctionStatus `json:"status"`
	ViewCount     int           `json:"view_count"`
	BidCount      int           `json:"bid_count"`
	Created       time.Time     `json:"created"`
	Updated       time.Time     `json:"updated"`
}

// CurrentPrice is the price a new bid has to beat. Before the first
// accepted bid the starting price itself is the floor.
func (a *Auction) CurrentPrice() float64 {
	if a.BidCount == 0 {
		return a.StartingPrice
	}
	return a.CurrentBid
}

// MinimumNextBid is the lowest amount the next bid may carry.
func (a *Auction) MinimumNextBid() float64 {
	if a.BidCount == 0 {
		return a.StartingPrice
	}
	return a.CurrentBid + a.BidIncrement
}

// CanTransition reports whether the status machine allows moving from one
// status to another. Transitions only go forward: upcoming -> active ->
// ended, with cancellation reachable from any non-terminal state.
func CanTransition(from, to AuctionStatus) bool {
	switch from {
	case StatusUpcoming:
		return to == StatusActive || to == StatusCancelled
	case StatusActive:
		return to == StatusEnded || to == StatusCancelled
	default:
		return false
	}
}

// IsTerminal reports whether no further status changes are possible.
func (s AuctionStatus) IsTerminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

type AuctionView struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Category      string        `json:"category"`
	StartingPrice float64       `json:"starting_price"`
	CurrentBid    float64       `json:"current_bid"`
	MinimumBid    float64       `json:"minimum_bid"`
	BidIncrement  float64       `json:"bid_increment"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Status        AuctionStatus `json:"status"`
	ViewCount     int           `json:"view_count"`
	BidCount      int           `json:"bid_count"`
}

// NewAuctionView builds the client-facing snapshot served on page load.
func NewAuctionView(a *Auction) AuctionView {
	return AuctionView{
		ID:            a.ID,
		Title:         a.Title,
		Category:      a.Category,
		StartingPrice: a.StartingPrice,
		CurrentBid:    a.CurrentPrice(),
		MinimumBid:    a.MinimumNextBid(),
		BidIncrement:  a.BidIncrement,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Status:        a.Status,
		ViewCount:     a.ViewCount,
		BidCount:      a.BidCount,
	}
}
