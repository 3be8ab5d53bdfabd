package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"hanotex/internal/status"
	"hanotex/models"
)

// PBStore implements Store on top of the PocketBase collections.
type PBStore struct {
	app core.App
}

func NewPBStore(app core.App) *PBStore {
	return &PBStore{app: app}
}

func (s *PBStore) GetAuction(ctx context.Context, id string) (*models.Auction, error) {
	rec, err := s.app.FindRecordById("auctions", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}
	return auctionFromRecord(rec), nil
}

func (s *PBStore) ListAuctionsByStatus(ctx context.Context, st models.AuctionStatus) ([]models.Auction, error) {
	recs, err := s.app.FindRecordsByFilter(
		"auctions",
		"status = {:status}",
		"-created",
		0,
		0,
		dbx.Params{"status": string(st)},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}

	auctions := make([]models.Auction, 0, len(recs))
	for _, rec := range recs {
		auctions = append(auctions, *auctionFromRecord(rec))
	}
	return auctions, nil
}

func (s *PBStore) SetAuctionStatus(ctx context.Context, id string, to models.AuctionStatus) error {
	rec, err := s.app.FindRecordById("auctions", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.ErrAuctionNotFound
		}
		return fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}

	from := models.AuctionStatus(rec.GetString("status"))
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", status.ErrInvalidTransition, from, to)
	}

	rec.Set("status", string(to))
	if err := s.app.Save(rec); err != nil {
		return fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (s *PBStore) AddViewCount(ctx context.Context, id string, delta int) error {
	rec, err := s.app.FindRecordById("auctions", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.ErrAuctionNotFound
		}
		return fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}

	rec.Set("view_count", rec.GetInt("view_count")+delta)
	if err := s.app.Save(rec); err != nil {
		return fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (s *PBStore) GetBid(ctx context.Context, id string) (*models.Bid, error) {
	rec, err := s.app.FindRecordById("bids", id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}
	bid := bidFromRecord(rec)
	bid.BidderName = s.displayName(bid.BidderID)
	return bid, nil
}

func (s *PBStore) ListBids(ctx context.Context, auctionID string, page, perPage int) ([]models.Bid, int, error) {
	total, err := s.app.CountRecords("bids", dbx.HashExp{"auction": auctionID})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}

	recs, err := s.app.FindRecordsByFilter(
		"bids",
		"auction = {:auction}",
		"-created",
		perPage,
		(page-1)*perPage,
		dbx.Params{"auction": auctionID},
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}

	names := map[string]string{}
	bids := make([]models.Bid, 0, len(recs))
	for _, rec := range recs {
		bid := bidFromRecord(rec)
		if bid.BidderID != "" {
			name, ok := names[bid.BidderID]
			if !ok {
				name = s.displayName(bid.BidderID)
				names[bid.BidderID] = name
			}
			bid.BidderName = name
		}
		bids = append(bids, *bid)
	}

	return bids, int(total), nil
}

func (s *PBStore) GetWinningBid(ctx context.Context, auctionID string) (*models.Bid, error) {
	recs, err := s.app.FindRecordsByFilter(
		"bids",
		"auction = {:auction} && is_winning = true",
		"-created",
		1,
		0,
		dbx.Params{"auction": auctionID},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	bid := bidFromRecord(recs[0])
	bid.BidderName = s.displayName(bid.BidderID)
	return bid, nil
}

// AcceptBid runs the three-part acceptance update in one transaction so the
// at-most-one-winner invariant holds even if the process dies mid-write.
func (s *PBStore) AcceptBid(ctx context.Context, bid models.Bid) (*models.Bid, error) {
	var saved *core.Record

	err := s.app.RunInTransaction(func(tx core.App) error {
		if _, err := tx.DB().NewQuery(
			"UPDATE bids SET is_winning = 0 WHERE auction = {:auction} AND is_winning = 1",
		).Bind(dbx.Params{"auction": bid.AuctionID}).Execute(); err != nil {
			return fmt.Errorf("clear winning flag: %w", err)
		}

		col, err := tx.FindCollectionByNameOrId("bids")
		if err != nil {
			return fmt.Errorf("bids collection: %w", err)
		}

		rec := core.NewRecord(col)
		rec.Set("auction", bid.AuctionID)
		rec.Set("bidder", bid.BidderID)
		rec.Set("amount", bid.Amount)
		rec.Set("is_winning", true)
		rec.Set("reference", bid.Reference)
		if err := tx.Save(rec); err != nil {
			return fmt.Errorf("save bid: %w", err)
		}

		auction, err := tx.FindRecordById("auctions", bid.AuctionID)
		if err != nil {
			return fmt.Errorf("load auction: %w", err)
		}
		auction.Set("current_bid", bid.Amount)
		auction.Set("bid_count", auction.GetInt("bid_count")+1)
		if err := tx.Save(auction); err != nil {
			return fmt.Errorf("update auction: %w", err)
		}

		saved = rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}

	out := bidFromRecord(saved)
	out.BidderName = bid.BidderName
	return out, nil
}

func (s *PBStore) ListActiveAutoBids(ctx context.Context, auctionID string) ([]models.AutoBid, error) {
	recs, err := s.app.FindRecordsByFilter(
		"auto_bids",
		"auction = {:auction} && active = true",
		"-max_amount",
		0,
		0,
		dbx.Params{"auction": auctionID},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}

	autoBids := make([]models.AutoBid, 0, len(recs))
	for _, rec := range recs {
		autoBids = append(autoBids, models.AutoBid{
			ID:        rec.Id,
			AuctionID: rec.GetString("auction"),
			BidderID:  rec.GetString("bidder"),
			MaxAmount: rec.GetFloat("max_amount"),
			Active:    rec.GetBool("active"),
			Created:   rec.GetDateTime("created").Time(),
			Updated:   rec.GetDateTime("updated").Time(),
		})
	}
	return autoBids, nil
}

func (s *PBStore) UpsertAutoBid(ctx context.Context, auctionID, bidderID string, maxAmount float64) (*models.AutoBid, error) {
	rec, err := s.findAutoBid(auctionID, bidderID)
	if err != nil {
		return nil, err
	}

	if rec == nil {
		col, err := s.app.FindCollectionByNameOrId("auto_bids")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
		}
		rec = core.NewRecord(col)
		rec.Set("auction", auctionID)
		rec.Set("bidder", bidderID)
	}

	rec.Set("max_amount", maxAmount)
	rec.Set("active", true)
	if err := s.app.Save(rec); err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}

	return &models.AutoBid{
		ID:        rec.Id,
		AuctionID: auctionID,
		BidderID:  bidderID,
		MaxAmount: maxAmount,
		Active:    true,
		Created:   rec.GetDateTime("created").Time(),
		Updated:   rec.GetDateTime("updated").Time(),
	}, nil
}

func (s *PBStore) DeactivateAutoBid(ctx context.Context, auctionID, bidderID string) error {
	rec, err := s.findAutoBid(auctionID, bidderID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	rec.Set("active", false)
	if err := s.app.Save(rec); err != nil {
		return fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (s *PBStore) findAutoBid(auctionID, bidderID string) (*core.Record, error) {
	recs, err := s.app.FindRecordsByFilter(
		"auto_bids",
		"auction = {:auction} && bidder = {:bidder}",
		"-created",
		1,
		0,
		dbx.Params{"auction": auctionID, "bidder": bidderID},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrUpstreamUnavailable, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

func (s *PBStore) displayName(userID string) string {
	if userID == "" {
		return ""
	}
	user, err := s.app.FindRecordById("users", userID)
	if err != nil {
		return ""
	}
	return user.GetString("name")
}

func auctionFromRecord(rec *core.Record) *models.Auction {
	return &models.Auction{
		ID:            rec.Id,
		Title:         rec.GetString("title"),
		Category:      rec.GetString("category"),
		SellerID:      rec.GetString("seller"),
		StartingPrice: rec.GetFloat("starting_price"),
		CurrentBid:    rec.GetFloat("current_bid"),
		BidIncrement:  rec.GetFloat("bid_increment"),
		StartTime:     rec.GetDateTime("start_time").Time(),
		EndTime:       rec.GetDateTime("end_time").Time(),
		Status:        models.AuctionStatus(rec.GetString("status")),
		ViewCount:     rec.GetInt("view_count"),
		BidCount:      rec.GetInt("bid_count"),
		Created:       rec.GetDateTime("created").Time(),
		Updated:       rec.GetDateTime("updated").Time(),
	}
}

func bidFromRecord(rec *core.Record) *models.Bid {
	return &models.Bid{
		ID:        rec.Id,
		AuctionID: rec.GetString("auction"),
		BidderID:  rec.GetString("bidder"),
		Amount:    rec.GetFloat("amount"),
		IsWinning: rec.GetBool("is_winning"),
		Reference: rec.GetString("reference"),
		Created:   rec.GetDateTime("created").Time(),
		Updated:   rec.GetDateTime("updated").Time(),
	}
}
