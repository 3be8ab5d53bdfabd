package services

import (
	"context"
	"fmt"

	"hanotex/internal/status"
	"hanotex/models"
)

// AutoBidService manages standing maximum bids. Execution happens inside
// the bid acceptance path so counter-bids share the auction's lock and
// transactional write.
type AutoBidService struct {
	store Store
}

func NewAutoBidService(store Store) *AutoBidService {
	return &AutoBidService{store: store}
}

// Upsert registers or raises a bidder's standing maximum for an auction.
func (s *AutoBidService) Upsert(ctx context.Context, auctionID, bidderID string, maxAmount float64) (*models.AutoBid, error) {
	if maxAmount <= 0 {
		return nil, fmt.Errorf("auto bid: %w", status.ErrInvalidAmount)
	}

	auction, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("auto bid: %w", err)
	}
	if auction.Status.IsTerminal() {
		return nil, fmt.Errorf("auto bid: %w", status.ErrAuctionEnded)
	}
	if maxAmount < auction.MinimumNextBid() {
		return nil, fmt.Errorf("auto bid: %w - maximum must reach %.2f", status.ErrBidTooLow, auction.MinimumNextBid())
	}

	autoBid, err := s.store.UpsertAutoBid(ctx, auctionID, bidderID, maxAmount)
	if err != nil {
		return nil, fmt.Errorf("auto bid: %w", err)
	}
	return autoBid, nil
}

// Cancel deactivates a bidder's standing maximum. Already placed bids stand.
func (s *AutoBidService) Cancel(ctx context.Context, auctionID, bidderID string) error {
	if err := s.store.DeactivateAutoBid(ctx, auctionID, bidderID); err != nil {
		return fmt.Errorf("auto bid: %w", err)
	}
	return nil
}
