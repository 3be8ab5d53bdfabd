package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hanotex/internal/status"
	"hanotex/models"
)

// fakeStore is an in-memory Store for the service tests. It mirrors the
// transactional semantics of the real store: AcceptBid applies the
// three-part update under one lock and SetAuctionStatus enforces the
// forward-only status machine.
type fakeStore struct {
	mu       sync.Mutex
	auctions map[string]*models.Auction
	bids     map[string]*models.Bid
	autoBids map[string]*models.AutoBid
	seq      int
	baseTime time.Time

	acceptErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		auctions: make(map[string]*models.Auction),
		bids:     make(map[string]*models.Bid),
		autoBids: make(map[string]*models.AutoBid),
		baseTime: time.Now().UTC().Add(-time.Hour),
	}
}

func (f *fakeStore) addAuction(a models.Auction) *models.Auction {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := a
	f.auctions[a.ID] = &stored
	return &stored
}

func (f *fakeStore) addAutoBid(auctionID, bidderID string, maxAmount float64, created time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := auctionID + "/" + bidderID
	f.autoBids[key] = &models.AutoBid{
		ID:        key,
		AuctionID: auctionID,
		BidderID:  bidderID,
		MaxAmount: maxAmount,
		Active:    true,
		Created:   created,
	}
}

func (f *fakeStore) winningBids(auctionID string) []*models.Bid {
	f.mu.Lock()
	defer f.mu.Unlock()
	var winning []*models.Bid
	for _, b := range f.bids {
		if b.AuctionID == auctionID && b.IsWinning {
			winning = append(winning, b)
		}
	}
	return winning
}

func (f *fakeStore) GetAuction(ctx context.Context, id string) (*models.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return nil, status.ErrAuctionNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeStore) ListAuctionsByStatus(ctx context.Context, st models.AuctionStatus) ([]models.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Auction
	for _, a := range f.auctions {
		if a.Status == st {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) SetAuctionStatus(ctx context.Context, id string, to models.AuctionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return status.ErrAuctionNotFound
	}
	if !models.CanTransition(a.Status, to) {
		return fmt.Errorf("%w: %s -> %s", status.ErrInvalidTransition, a.Status, to)
	}
	a.Status = to
	return nil
}

func (f *fakeStore) AddViewCount(ctx context.Context, id string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return status.ErrAuctionNotFound
	}
	a.ViewCount += delta
	return nil
}

func (f *fakeStore) GetBid(ctx context.Context, id string) (*models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bids[id]
	if !ok {
		return nil, fmt.Errorf("%w: bid %s missing", status.ErrUpstreamUnavailable, id)
	}
	copied := *b
	return &copied, nil
}

func (f *fakeStore) ListBids(ctx context.Context, auctionID string, page, perPage int) ([]models.Bid, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []models.Bid
	for _, b := range f.bids {
		if b.AuctionID == auctionID {
			all = append(all, *b)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Created.After(all[j].Created) })

	total := len(all)
	start := (page - 1) * perPage
	if start >= total {
		return nil, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeStore) GetWinningBid(ctx context.Context, auctionID string) (*models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bids {
		if b.AuctionID == auctionID && b.IsWinning {
			copied := *b
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) AcceptBid(ctx context.Context, bid models.Bid) (*models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.acceptErr != nil {
		return nil, f.acceptErr
	}

	a, ok := f.auctions[bid.AuctionID]
	if !ok {
		return nil, status.ErrAuctionNotFound
	}

	for _, b := range f.bids {
		if b.AuctionID == bid.AuctionID && b.IsWinning {
			b.IsWinning = false
		}
	}

	f.seq++
	stored := bid
	stored.ID = fmt.Sprintf("bid%04d", f.seq)
	stored.IsWinning = true
	stored.Created = f.baseTime.Add(time.Duration(f.seq) * time.Second)
	stored.Updated = stored.Created
	f.bids[stored.ID] = &stored

	a.CurrentBid = bid.Amount
	a.BidCount++

	copied := stored
	return &copied, nil
}

func (f *fakeStore) ListActiveAutoBids(ctx context.Context, auctionID string) ([]models.AutoBid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AutoBid
	for _, ab := range f.autoBids {
		if ab.AuctionID == auctionID && ab.Active {
			out = append(out, *ab)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertAutoBid(ctx context.Context, auctionID, bidderID string, maxAmount float64) (*models.AutoBid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := auctionID + "/" + bidderID
	ab, ok := f.autoBids[key]
	if !ok {
		ab = &models.AutoBid{ID: key, AuctionID: auctionID, BidderID: bidderID, Created: time.Now().UTC()}
		f.autoBids[key] = ab
	}
	ab.MaxAmount = maxAmount
	ab.Active = true
	copied := *ab
	return &copied, nil
}

func (f *fakeStore) DeactivateAutoBid(ctx context.Context, auctionID, bidderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ab, ok := f.autoBids[auctionID+"/"+bidderID]; ok {
		ab.Active = false
	}
	return nil
}

// captureRelay records broadcasts for assertions.
type captureRelay struct {
	mu       sync.Mutex
	messages []models.RelayMessage
}

func (r *captureRelay) Broadcast(auctionID string, msg models.RelayMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *captureRelay) byType(t string) []models.RelayMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RelayMessage
	for _, m := range r.messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// captureNotifier records personal notifications. Deliveries happen on
// goroutines, so reads must go through the accessors.
type captureNotifier struct {
	mu      sync.Mutex
	outbid  []models.OutbidNotice
	won     []models.AuctionWonNotice
	userIDs []string
}

func (n *captureNotifier) NotifyOutbid(ctx context.Context, userID string, notice models.OutbidNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outbid = append(n.outbid, notice)
	n.userIDs = append(n.userIDs, userID)
}

func (n *captureNotifier) NotifyAuctionWon(ctx context.Context, userID string, notice models.AuctionWonNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.won = append(n.won, notice)
	n.userIDs = append(n.userIDs, userID)
}

func (n *captureNotifier) outbidCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.outbid)
}

func (n *captureNotifier) wonCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.won)
}

func (n *captureNotifier) notifiedUsers() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.userIDs...)
}
