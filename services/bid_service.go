package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"hanotex/config"
	"hanotex/internal/status"
	"hanotex/models"
	"hanotex/monitoring"
)

// BidService owns bid acceptance. All mutations for one auction go through
// a per-auction lock, so accepted bids are strictly increasing and at most
// one bid per auction carries the winning flag.
type BidService struct {
	store    Store
	Redis    *redis.Client
	relay    Broadcaster
	notifier UserNotifier
	monitor  *monitoring.Monitor
	config   *config.Config
	locks    *keyedMutex
}

func NewBidService(store Store, redisClient *redis.Client, relay Broadcaster, notifier UserNotifier, monitor *monitoring.Monitor, cfg *config.Config) *BidService {
	return &BidService{
		store:    store,
		Redis:    redisClient,
		relay:    relay,
		notifier: notifier,
		monitor:  monitor,
		config:   cfg,
		locks:    newKeyedMutex(),
	}
}

type PlaceBidRequest struct {
	AuctionID      string
	BidderID       string
	BidderName     string
	Amount         float64
	IdempotencyKey string
}

// PlaceBid validates and persists a bid. Validation fails fast in a fixed
// order so each rejection maps to a distinct error code: auction exists,
// auction is active and inside its time window, amount beats the current
// price by at least the increment.
func (s *BidService) PlaceBid(ctx context.Context, req PlaceBidRequest) (*models.Bid, error) {
	if req.Amount <= 0 {
		s.monitor.TrackBidRejected(status.Code(status.ErrInvalidAmount))
		return nil, fmt.Errorf("place bid: %w", status.ErrInvalidAmount)
	}

	lockStart := time.Now()
	unlock := s.locks.Lock(req.AuctionID)
	defer unlock()
	s.monitor.ObserveBidLockWait(time.Since(lockStart))

	// Bound the whole acceptance so a stalled store cannot hold the
	// auction's lock indefinitely.
	ctx, cancel := context.WithTimeout(ctx, s.config.UpstreamTimeout)
	defer cancel()

	// A retried submission with the same idempotency key returns the
	// original bid instead of creating a duplicate.
	if existing, err := s.replayedBid(ctx, req); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	bid, auction, err := s.acceptLocked(ctx, req.AuctionID, req.BidderID, req.BidderName, req.Amount, "manual")
	if err != nil {
		return nil, err
	}

	s.rememberIdempotencyKey(ctx, req, bid.ID)
	s.runAutoBids(ctx, auction)

	return bid, nil
}

// acceptLocked performs one validated acceptance. The caller must hold the
// auction's lock.
func (s *BidService) acceptLocked(ctx context.Context, auctionID, bidderID, bidderName string, amount float64, source string) (*models.Bid, *models.Auction, error) {
	auction, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		if !status.IsClientError(err) {
			slog.Error("bid: auction lookup failed", "auctionId", auctionID, "error", err)
		}
		s.monitor.TrackBidRejected(status.Code(err))
		return nil, nil, err
	}

	if err := validateAuctionWindow(auction, time.Now().UTC()); err != nil {
		s.monitor.TrackBidRejected(status.Code(err))
		return nil, nil, fmt.Errorf("place bid: %w", err)
	}

	if decimal.NewFromFloat(amount).Cmp(decimal.NewFromFloat(auction.MinimumNextBid())) < 0 {
		s.monitor.TrackBidRejected(status.Code(status.ErrBidTooLow))
		return nil, nil, fmt.Errorf("place bid: %w - minimum bid is %.2f", status.ErrBidTooLow, auction.MinimumNextBid())
	}

	previous, err := s.store.GetWinningBid(ctx, auctionID)
	if err != nil {
		slog.Error("bid: winning bid lookup failed", "auctionId", auctionID, "error", err)
		return nil, nil, err
	}

	accepted, err := s.store.AcceptBid(ctx, models.Bid{
		AuctionID:  auctionID,
		BidderID:   bidderID,
		BidderName: bidderName,
		Amount:     amount,
		Reference:  uuid.NewString(),
	})
	if err != nil {
		slog.Error("bid: acceptance write failed", "auctionId", auctionID, "error", err)
		return nil, nil, fmt.Errorf("place bid: %w", status.ErrUpstreamUnavailable)
	}

	auction.CurrentBid = amount
	auction.BidCount++

	s.monitor.TrackBidAccepted(auctionID, source)
	s.announce(ctx, auction, accepted, previous)

	return accepted, auction, nil
}

// announce pushes the accepted bid to auction viewers and notifies the
// displaced bidder. Both are fire-and-forget and never block acceptance.
func (s *BidService) announce(ctx context.Context, auction *models.Auction, accepted, previous *models.Bid) {
	if s.relay != nil {
		s.relay.Broadcast(auction.ID, models.NewRelayMessage(models.RelayBidPlaced, auction.ID, models.BidPlacedPayload{
			BidID:      accepted.ID,
			Amount:     accepted.Amount,
			Bidder:     models.ResolveBidderName(accepted.BidderName, accepted.BidderID),
			CurrentBid: auction.CurrentPrice(),
			MinimumBid: auction.MinimumNextBid(),
			BidCount:   auction.BidCount,
		}))
	}

	if s.notifier != nil && previous != nil && previous.BidderID != accepted.BidderID {
		go s.notifier.NotifyOutbid(context.WithoutCancel(ctx), previous.BidderID, models.OutbidNotice{
			AuctionID:    auction.ID,
			AuctionTitle: auction.Title,
			NewAmount:    accepted.Amount,
			MinimumBid:   auction.MinimumNextBid(),
		})
	}
}

// runAutoBids executes standing maximum bids after a manual acceptance,
// still under the auction's lock. Each round counter-bids on behalf of the
// highest standing maximum held by someone other than the current leader,
// at the smallest amount that tops the price, until no auto-bid can follow
// or the round cap is hit.
func (s *BidService) runAutoBids(ctx context.Context, auction *models.Auction) {
	maxRounds := s.config.MaxAutoBidRounds
	for round := 0; round < maxRounds; round++ {
		leader, err := s.store.GetWinningBid(ctx, auction.ID)
		if err != nil || leader == nil {
			return
		}

		autoBids, err := s.store.ListActiveAutoBids(ctx, auction.ID)
		if err != nil {
			slog.Error("autobid: listing failed", "auctionId", auction.ID, "error", err)
			return
		}

		candidate := pickAutoBid(autoBids, leader.BidderID, auction.MinimumNextBid())
		if candidate == nil {
			return
		}

		amount := auction.MinimumNextBid()
		if candidate.MaxAmount < amount {
			return
		}

		_, updated, err := s.acceptLocked(ctx, auction.ID, candidate.BidderID, "", amount, "auto")
		if err != nil {
			slog.Error("autobid: counter-bid failed", "auctionId", auction.ID, "bidder", candidate.BidderID, "error", err)
			return
		}
		auction = updated
	}
	slog.Warn("autobid: round cap reached", "auctionId", auction.ID, "rounds", maxRounds)
}

// pickAutoBid selects the standing maximum to execute next: the highest
// max_amount not held by the current leader that can still top the price.
// Ties resolve to the earliest registered.
func pickAutoBid(autoBids []models.AutoBid, leaderID string, minimumBid float64) *models.AutoBid {
	var best *models.AutoBid
	for i := range autoBids {
		ab := &autoBids[i]
		if !ab.Active || ab.BidderID == leaderID || ab.MaxAmount < minimumBid {
			continue
		}
		if best == nil ||
			ab.MaxAmount > best.MaxAmount ||
			(ab.MaxAmount == best.MaxAmount && ab.Created.Before(best.Created)) {
			best = ab
		}
	}
	return best
}

// validateAuctionWindow checks the auction's status and time bounds.
func validateAuctionWindow(a *models.Auction, now time.Time) error {
	switch a.Status {
	case models.StatusUpcoming:
		return status.ErrAuctionNotStarted
	case models.StatusEnded:
		return status.ErrAuctionEnded
	case models.StatusCancelled:
		return status.ErrAuctionCancelled
	}
	if !a.StartTime.IsZero() && now.Before(a.StartTime) {
		return status.ErrAuctionNotStarted
	}
	if !a.EndTime.IsZero() && !now.Before(a.EndTime) {
		return status.ErrAuctionEnded
	}
	return nil
}

func (s *BidService) idempotencyKey(req PlaceBidRequest) string {
	return fmt.Sprintf("bid:idem:%s:%s:%s", req.AuctionID, req.BidderID, req.IdempotencyKey)
}

// replayedBid returns the previously accepted bid for a reused idempotency
// key, or nil when the submission is new.
func (s *BidService) replayedBid(ctx context.Context, req PlaceBidRequest) (*models.Bid, error) {
	if s.Redis == nil || req.IdempotencyKey == "" {
		return nil, nil
	}

	bidID, err := s.Redis.Get(ctx, s.idempotencyKey(req)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		slog.Error("bid: idempotency lookup failed", "auctionId", req.AuctionID, "error", err)
		return nil, fmt.Errorf("place bid: %w", status.ErrUpstreamUnavailable)
	}

	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, fmt.Errorf("place bid: replay lookup: %w", err)
	}
	return bid, nil
}

func (s *BidService) rememberIdempotencyKey(ctx context.Context, req PlaceBidRequest, bidID string) {
	if s.Redis == nil || req.IdempotencyKey == "" {
		return
	}
	if err := s.Redis.SetNX(ctx, s.idempotencyKey(req), bidID, s.config.IdempotencyTTL).Err(); err != nil {
		slog.Warn("bid: idempotency key not stored", "auctionId", req.AuctionID, "error", err)
	}
}
