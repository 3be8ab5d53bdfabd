package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hanotex/config"
	"hanotex/internal/status"
	"hanotex/models"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxAutoBidRounds: 100,
		IdempotencyTTL:   24 * time.Hour,
		DefaultPageSize:  20,
		MaxPageSize:      100,
		UpstreamTimeout:  10 * time.Second,
	}
}

func activeAuction(id string, startingPrice, increment float64) models.Auction {
	now := time.Now().UTC()
	return models.Auction{
		ID:            id,
		Title:         "Lot " + id,
		StartingPrice: startingPrice,
		BidIncrement:  increment,
		StartTime:     now.Add(-time.Hour),
		EndTime:       now.Add(time.Hour),
		Status:        models.StatusActive,
	}
}

func setupTestBidService(store *fakeStore) (*BidService, *captureRelay, *captureNotifier) {
	relay := &captureRelay{}
	notifier := &captureNotifier{}
	return NewBidService(store, nil, relay, notifier, nil, testConfig()), relay, notifier
}

func TestBidService_FirstBidMustMeetStartingPrice(t *testing.T) {
	store := newFakeStore()
	store.addAuction(activeAuction("a1", 1000, 100))
	service, _, _ := setupTestBidService(store)
	ctx := context.Background()

	_, err := service.PlaceBid(ctx, PlaceBidRequest{AuctionID: "a1", BidderID: "u1", Amount: 900})
	require.Error(t, err)
	assert.Equal(t, "bid_too_low", status.Code(err))

	_, err = service.PlaceBid(ctx, PlaceBidRequest{AuctionID: "a1", BidderID: "u1", Amount: 999.99})
	require.Error(t, err)
	assert.Equal(t, "bid_too_low", status.Code(err))

	bid, err := service.PlaceBid(ctx, PlaceBidRequest{AuctionID: "a1", BidderID: "u1", Amount: 1000})
	require.NoError(t, err)
	assert.True(t, bid.IsWinning)
	assert.Equal(t, 1000.0, bid.Amount)
	assert.NotEmpty(t, bid.Reference)
}

func TestBidService_NextBidNeedsFullIncrement(t *testing.T) {
	store := newFakeStore()
	store.addAuction(activeAuction("a1", 1000, 100))
	service, _, _ := setupTestBidService(store)
	ctx := context.Background()

	_, err := service.PlaceBid(ctx, PlaceBidRequest{AuctionID: "a1", BidderID: "u1", Amount: 1000})
	require.NoError(t, err)

	_, err = service.PlaceBid(ctx, PlaceBidRequest{AuctionID: "a1", BidderID: "u2", Amount: 1050})
	require.Error(t, err)
	assert.Equal(t, "bid_too_low", status.Code(err))

	bid, err := service.PlaceBid(ctx, PlaceBidRequest{AuctionID: "a1", BidderID: "u2", Amount: 1100})
	require.NoError(t, err)
	assert.True(t, bid.IsWinning)

	auction, err := store.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1100.0, auction.CurrentBid)
	assert.Equal(t, 2, auction.BidCount)
}

func TestBidService_WinnerFlipsAtomically(t *testing.T) {
	store := newFakeStore()
	store.addAuction(activeAuction("a1", 1000, 100))
	service, relay, notifier := setupTestBidService(store)
	ctx := context.Background()

	first, err := service.PlaceBid(ctx, PlaceBidRequest{AuctionID: "a1", BidderID: "alice", Amount: 1000})
	require.NoError(t, err)

	_, err = service.PlaceBid(ctx, PlaceBidRequest{AuctionID: "a1", BidderID: "bob", Amount: 1150})
	require.NoError(t, err)

	winning := store.winningBids("a1")
	require.Len(t, winning, 1)
	assert.Equal(t, "bob", winning[0].BidderID)
	assert.Equal(t, 1150.0, winning[0].Amount)

	demoted, err := store.GetBid(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, demoted.IsWinning)

	placed := relay.byType(models.RelayBidPlaced)
	assert.Len(t, placed, 2)

	// The displaced bidder gets a personal notification.
	assert.Eventually(t, func() bool { return notifier.outbidCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"alice"}, notifier.notifiedUsers())
}

func TestBidService_ValidationOrder(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	store.addAuction(models.Auction{ID: "upcoming", StartingPrice: 100, Status: models.StatusUpcoming})
	store.addAuction(models.Auction{ID: "ended", StartingPrice: 100, Status: models.StatusEnded})
	store.addAuction(models.Auction{ID: "cancelled", StartingPrice: 100, Status: models.StatusCancelled})
	expired := activeAuction("expired", 100, 10)
	expired.EndTime = now.Add(-time.Minute)
	store.addAuction(expired)
	service, _, _ := setupTestBidService(store)
	ctx := context.Background()

	tests := []struct {
		name      string
		auctionID string
		amount    float64
		wantCode  string
	}{
		{"zero amount rejected before lookup", "missing", 0, "invalid_amount"},
		{"negative amount", "upcoming", -5, "invalid_amount"},
		{"unknown auction", "missing", 500, "auction_not_found"},
		{"not yet started", "upcoming", 500, "auction_not_started"},
		{"already ended", "ended", 500, "auction_ended"},
		{"cancelled", "cancelled", 500, "auction_cancelled"},
		{"active status but end time passed", "expired", 500, "auction_ended"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.PlaceBid(ctx, PlaceBidRequest{AuctionID: tt.auctionID, BidderID: "u1", Amount: tt.amount})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, status.Code(err))
		})
	}

	// Nothing was written for any rejection.
	assert.Empty(t, store.bids)
}

func TestBidService_ConcurrentBidsSingleWinner(t *testing.T) {
	store := newFakeStore()
	store.addAuction(activeAuction("a1", 100, 1))
	service, _, _ := setupTestBidService(store)
	ctx := context.Background()

	const bidders = 50
	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// Rejections are expected; losers raced a higher amount.
			service.PlaceBid(ctx, PlaceBidRequest{
				AuctionID: "a1",
				BidderID:  "user-" + string(rune('a'+n%26)),
				Amount:    float64(100 + n),
			})
		}(i)
	}
	wg.Wait()

	winning := store.winningBids("a1")
	require.Len(t, winning, 1)
	assert.Equal(t, float64(100+bidders-1), winning[0].Amount)

	auction, err := store.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, winning[0].Amount, auction.CurrentBid)
	assert.Equal(t, len(store.bids), auction.BidCount)

	// Accepted amounts are strictly increasing in acceptance order.
	var prev float64
	for i := 1; i <= auction.BidCount; i++ {
		b, err := store.GetBid(ctx, fmt.Sprintf("bid%04d", i))
		require.NoError(t, err)
		assert.Greater(t, b.Amount, prev)
		prev = b.Amount
	}
}

func TestBidService_IdempotentReplayReturnsOriginal(t *testing.T) {
	store := newFakeStore()
	store.addAuction(activeAuction("a1", 1000, 100))

	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	relay := &captureRelay{}
	cfg := testConfig()
	service := NewBidService(store, db, relay, nil, nil, cfg)
	ctx := context.Background()

	key := "bid:idem:a1:u1:retry-1"
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSetNX(key, "bid0001", cfg.IdempotencyTTL).SetVal(true)

	first, err := service.PlaceBid(ctx, PlaceBidRequest{
		AuctionID:      "a1",
		BidderID:       "u1",
		Amount:         1000,
		IdempotencyKey: "retry-1",
	})
	require.NoError(t, err)

	// The retry hits the stored key and replays the original bid without a
	// second acceptance.
	mock.ExpectGet(key).SetVal(first.ID)

	replayed, err := service.PlaceBid(ctx, PlaceBidRequest{
		AuctionID:      "a1",
		BidderID:       "u1",
		Amount:         1000,
		IdempotencyKey: "retry-1",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, replayed.ID)

	auction, err := store.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, auction.BidCount)
	assert.Len(t, relay.byType(models.RelayBidPlaced), 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBidService_AutoBidCountersManualBid(t *testing.T) {
	store := newFakeStore()
	store.addAuction(activeAuction("a1", 100, 10))
	store.addAutoBid("a1", "bob", 150, time.Now().UTC())
	service, _, _ := setupTestBidService(store)
	ctx := context.Background()

	_, err := service.PlaceBid(ctx, PlaceBidRequest{AuctionID: "a1", BidderID: "alice", Amount: 100})
	require.NoError(t, err)

	winning := store.winningBids("a1")
	require.Len(t, winning, 1)
	assert.Equal(t, "bob", winning[0].BidderID)
	assert.Equal(t, 110.0, winning[0].Amount)

	auction, err := store.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, auction.BidCount)
}

func TestBidService_AutoBidWarStopsAtLowerMaximum(t *testing.T) {
	store := newFakeStore()
	store.addAuction(activeAuction("a1", 100, 10))
	base := time.Now().UTC()
	store.addAutoBid("a1", "alice", 150, base)
	store.addAutoBid("a1", "bob", 200, base.Add(time.Second))
	service, _, _ := setupTestBidService(store)
	ctx := context.Background()

	_, err := service.PlaceBid(ctx, PlaceBidRequest{AuctionID: "a1", BidderID: "carol", Amount: 100})
	require.NoError(t, err)

	// The two standing maximums trade minimum raises until alice's cap is
	// exhausted; bob leads at the step above it.
	winning := store.winningBids("a1")
	require.Len(t, winning, 1)
	assert.Equal(t, "bob", winning[0].BidderID)
	assert.Equal(t, 150.0, winning[0].Amount)

	auction, err := store.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 6, auction.BidCount)
}

func TestBidService_AutoBidDoesNotOutbidItself(t *testing.T) {
	store := newFakeStore()
	store.addAuction(activeAuction("a1", 100, 10))
	store.addAutoBid("a1", "bob", 500, time.Now().UTC())
	service, _, _ := setupTestBidService(store)
	ctx := context.Background()

	_, err := service.PlaceBid(ctx, PlaceBidRequest{AuctionID: "a1", BidderID: "alice", Amount: 100})
	require.NoError(t, err)

	// One counter-bid, then the engine stops because bob already leads.
	auction, err := store.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, auction.BidCount)
	assert.Equal(t, 110.0, auction.CurrentBid)
}

func TestBidService_StoreFailureIsUpstreamUnavailable(t *testing.T) {
	store := newFakeStore()
	store.addAuction(activeAuction("a1", 1000, 100))
	store.acceptErr = errors.New("disk full")
	service, relay, _ := setupTestBidService(store)

	_, err := service.PlaceBid(context.Background(), PlaceBidRequest{AuctionID: "a1", BidderID: "u1", Amount: 1000})
	require.Error(t, err)
	assert.Equal(t, "upstream_unavailable", status.Code(err))
	assert.Empty(t, relay.byType(models.RelayBidPlaced))
}

func TestPickAutoBid(t *testing.T) {
	base := time.Now().UTC()
	autoBids := []models.AutoBid{
		{BidderID: "leader", MaxAmount: 900, Active: true, Created: base},
		{BidderID: "high", MaxAmount: 500, Active: true, Created: base.Add(2 * time.Second)},
		{BidderID: "earlier-tie", MaxAmount: 500, Active: true, Created: base.Add(time.Second)},
		{BidderID: "inactive", MaxAmount: 800, Active: false, Created: base},
		{BidderID: "below-minimum", MaxAmount: 90, Active: true, Created: base},
	}

	picked := pickAutoBid(autoBids, "leader", 100)
	require.NotNil(t, picked)
	assert.Equal(t, "earlier-tie", picked.BidderID)

	assert.Nil(t, pickAutoBid(autoBids, "leader", 600))
	assert.Nil(t, pickAutoBid(nil, "leader", 100))
}

func TestValidateAuctionWindow(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		auction models.Auction
		wantErr error
	}{
		{"active inside window", activeAuction("a", 100, 10), nil},
		{"upcoming", models.Auction{Status: models.StatusUpcoming}, status.ErrAuctionNotStarted},
		{"active before start time", models.Auction{Status: models.StatusActive, StartTime: now.Add(time.Minute)}, status.ErrAuctionNotStarted},
		{"active at end time", models.Auction{Status: models.StatusActive, EndTime: now}, status.ErrAuctionEnded},
		{"cancelled", models.Auction{Status: models.StatusCancelled}, status.ErrAuctionCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAuctionWindow(&tt.auction, now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
