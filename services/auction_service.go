package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"hanotex/config"
	"hanotex/models"
)

// AuctionService is the read model: authoritative, side-effect free
// snapshots of auction and bid state served from storage. Safe to retry
// and to call concurrently.
type AuctionService struct {
	store  Store
	Redis  *redis.Client
	config *config.Config
}

func NewAuctionService(store Store, redisClient *redis.Client, cfg *config.Config) *AuctionService {
	return &AuctionService{
		store:  store,
		Redis:  redisClient,
		config: cfg,
	}
}

// GetAuction returns the client-facing snapshot used on page load and for
// reconciling relay-pushed state.
func (s *AuctionService) GetAuction(ctx context.Context, id string) (*models.AuctionView, error) {
	auction, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get auction: %w", err)
	}
	view := models.NewAuctionView(auction)
	return &view, nil
}

// GetAuctionBids returns one page of the auction's bid history, most recent
// first. A missing auction is a NotFound error, never an empty success list.
func (s *AuctionService) GetAuctionBids(ctx context.Context, auctionID string, page, perPage int) (*models.BidListPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = s.config.DefaultPageSize
	}
	if perPage > s.config.MaxPageSize {
		perPage = s.config.MaxPageSize
	}

	if _, err := s.store.GetAuction(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("get auction bids: %w", err)
	}

	bids, total, err := s.store.ListBids(ctx, auctionID, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("get auction bids: %w", err)
	}

	views := make([]models.BidView, 0, len(bids))
	for _, b := range bids {
		views = append(views, models.NewBidView(b))
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + perPage - 1) / perPage
	}

	return &models.BidListPage{
		Bids:       views,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

// RegisterView counts a page view in Redis. The sweeper flushes the counter
// to the collection, so the hot path never writes to the store.
func (s *AuctionService) RegisterView(ctx context.Context, auctionID string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Incr(ctx, viewCounterKey(auctionID)).Err(); err != nil {
		slog.Warn("auction: view counter increment failed", "auctionId", auctionID, "error", err)
	}
}

func viewCounterKey(auctionID string) string {
	return "auction:views:" + auctionID
}
