package services

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"hanotex/config"
	"hanotex/models"
)

const activeAuctionsKey = "active_auctions"

// Sweeper drives the forward-only auction status machine from a single
// background goroutine: upcoming auctions open when their start time
// passes, active auctions close at their end time, and buffered view
// counters are flushed to the store.
type Sweeper struct {
	store    Store
	Redis    *redis.Client
	relay    Broadcaster
	notifier UserNotifier
	config   *config.Config
	wg       sync.WaitGroup
}

func NewSweeper(store Store, redisClient *redis.Client, relay Broadcaster, notifier UserNotifier, cfg *config.Config) *Sweeper {
	return &Sweeper{
		store:    store,
		Redis:    redisClient,
		relay:    relay,
		notifier: notifier,
		config:   cfg,
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	slog.Info("sweeper started", "interval", s.config.SweepInterval)

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			slog.Info("sweeper stopping")
			return
		}
	}
}

// Wait blocks until the background goroutine has exited.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

// Sweep runs one pass of status transitions and counter flushes.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	s.openDueAuctions(ctx, now)
	s.closeExpiredAuctions(ctx, now)
	s.flushViewCounters(ctx)
}

func (s *Sweeper) openDueAuctions(ctx context.Context, now time.Time) {
	upcoming, err := s.store.ListAuctionsByStatus(ctx, models.StatusUpcoming)
	if err != nil {
		slog.Error("sweeper: listing upcoming auctions failed", "error", err)
		return
	}

	for _, auction := range upcoming {
		if auction.StartTime.IsZero() || now.Before(auction.StartTime) {
			continue
		}
		if err := s.store.SetAuctionStatus(ctx, auction.ID, models.StatusActive); err != nil {
			slog.Error("sweeper: opening auction failed", "auctionId", auction.ID, "error", err)
			continue
		}
		if s.Redis != nil {
			s.Redis.SAdd(ctx, activeAuctionsKey, auction.ID)
		}
		if s.relay != nil {
			s.relay.Broadcast(auction.ID, models.NewRelayMessage(models.RelayAuctionStarted, auction.ID, map[string]any{
				"starting_price": auction.StartingPrice,
				"end_time":       auction.EndTime,
			}))
		}
		slog.Info("auction opened", "auctionId", auction.ID)
	}
}

func (s *Sweeper) closeExpiredAuctions(ctx context.Context, now time.Time) {
	active, err := s.store.ListAuctionsByStatus(ctx, models.StatusActive)
	if err != nil {
		slog.Error("sweeper: listing active auctions failed", "error", err)
		return
	}

	for _, auction := range active {
		if auction.EndTime.IsZero() || now.Before(auction.EndTime) {
			continue
		}
		if err := s.store.SetAuctionStatus(ctx, auction.ID, models.StatusEnded); err != nil {
			slog.Error("sweeper: closing auction failed", "auctionId", auction.ID, "error", err)
			continue
		}
		if s.Redis != nil {
			s.Redis.SRem(ctx, activeAuctionsKey, auction.ID)
		}

		winner, err := s.store.GetWinningBid(ctx, auction.ID)
		if err != nil {
			slog.Error("sweeper: winning bid lookup failed", "auctionId", auction.ID, "error", err)
		}

		payload := map[string]any{"final_price": auction.CurrentPrice(), "bid_count": auction.BidCount}
		if winner != nil {
			payload["winner"] = models.ResolveBidderName(winner.BidderName, winner.BidderID)
		}
		if s.relay != nil {
			s.relay.Broadcast(auction.ID, models.NewRelayMessage(models.RelayAuctionEnded, auction.ID, payload))
		}
		if s.notifier != nil && winner != nil {
			go s.notifier.NotifyAuctionWon(context.WithoutCancel(ctx), winner.BidderID, models.AuctionWonNotice{
				AuctionID:    auction.ID,
				AuctionTitle: auction.Title,
				Amount:       winner.Amount,
			})
		}
		slog.Info("auction closed", "auctionId", auction.ID, "bids", auction.BidCount)
	}
}

// flushViewCounters drains the Redis view counters into the collection so
// the read path stays write-free.
func (s *Sweeper) flushViewCounters(ctx context.Context) {
	if s.Redis == nil {
		return
	}

	flushCtx, cancel := context.WithTimeout(ctx, s.config.ViewFlushTimeout)
	defer cancel()

	iter := s.Redis.Scan(flushCtx, 0, viewCounterKey("*"), 100).Iterator()
	for iter.Next(flushCtx) {
		key := iter.Val()
		auctionID := strings.TrimPrefix(key, viewCounterKey(""))

		raw, err := s.Redis.GetDel(flushCtx, key).Result()
		if err != nil {
			continue
		}
		delta, err := strconv.Atoi(raw)
		if err != nil || delta == 0 {
			continue
		}
		if err := s.store.AddViewCount(flushCtx, auctionID, delta); err != nil {
			slog.Warn("sweeper: view flush failed", "auctionId", auctionID, "error", err)
			// Put the count back so it is retried next pass.
			s.Redis.IncrBy(flushCtx, key, int64(delta))
		}
	}
	if err := iter.Err(); err != nil {
		slog.Warn("sweeper: view counter scan failed", "error", err)
	}
}
