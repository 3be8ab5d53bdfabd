package services

import (
	"context"

	"hanotex/models"
)

// Store is the persistence boundary over the CMS collections. The production
// implementation is PBStore; tests substitute an in-memory fake.
type Store interface {
	GetAuction(ctx context.Context, id string) (*models.Auction, error)
	ListAuctionsByStatus(ctx context.Context, status models.AuctionStatus) ([]models.Auction, error)
	SetAuctionStatus(ctx context.Context, id string, to models.AuctionStatus) error
	AddViewCount(ctx context.Context, id string, delta int) error

	GetBid(ctx context.Context, id string) (*models.Bid, error)
	ListBids(ctx context.Context, auctionID string, page, perPage int) ([]models.Bid, int, error)
	GetWinningBid(ctx context.Context, auctionID string) (*models.Bid, error)

	// AcceptBid applies the three-part acceptance update atomically: the new
	// bid is created with is_winning set, the previous winner is cleared and
	// the auction's current_bid/bid_count are advanced. Partial application
	// is a defect, not a tolerated race.
	AcceptBid(ctx context.Context, bid models.Bid) (*models.Bid, error)

	ListActiveAutoBids(ctx context.Context, auctionID string) ([]models.AutoBid, error)
	UpsertAutoBid(ctx context.Context, auctionID, bidderID string, maxAmount float64) (*models.AutoBid, error)
	DeactivateAutoBid(ctx context.Context, auctionID, bidderID string) error
}

// Broadcaster pushes best-effort events to the viewers of one auction.
// Implementations must never block the caller.
type Broadcaster interface {
	Broadcast(auctionID string, msg models.RelayMessage)
}

// UserNotifier delivers personal notifications. Failures are non-fatal.
type UserNotifier interface {
	NotifyOutbid(ctx context.Context, userID string, notice models.OutbidNotice)
	NotifyAuctionWon(ctx context.Context, userID string, notice models.AuctionWonNotice)
}
