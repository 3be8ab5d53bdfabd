package handlers

import (
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"hanotex/models"
	"hanotex/realtime"
	"hanotex/services"
	"hanotex/utils"
)

type AdminHandler struct {
	app   *pocketbase.PocketBase
	store services.Store
	hub   *realtime.Hub
	redis *redis.Client
}

func NewAdminHandler(app *pocketbase.PocketBase, store services.Store, hub *realtime.Hub, redisClient *redis.Client) *AdminHandler {
	return &AdminHandler{
		app:   app,
		store: store,
		hub:   hub,
		redis: redisClient,
	}
}

// GetAuctionDashboard reports live operational state: which auctions are
// accepting bids and how many relay subscribers each one has.
func (h *AdminHandler) GetAuctionDashboard(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	activeIDs := []string{}
	if h.redis != nil {
		if ids, err := h.redis.SMembers(ctx, "active_auctions").Result(); err == nil {
			activeIDs = ids
		}
	}

	viewers := h.hub.Counts()

	auctions := make([]map[string]any, 0, len(activeIDs))
	for _, id := range activeIDs {
		entry := map[string]any{
			"auction_id": id,
			"viewers":    viewers[id],
		}
		if auction, err := h.store.GetAuction(ctx, id); err == nil {
			entry["title"] = auction.Title
			entry["current_bid"] = auction.CurrentPrice()
			entry["bid_count"] = auction.BidCount
			entry["end_time"] = auction.EndTime
		}
		auctions = append(auctions, entry)
	}

	return utils.OkJSON(e, map[string]any{
		"active_count": len(activeIDs),
		"auctions":     auctions,
	})
}

// CancelAuction force-cancels an auction. Terminal states reject with an
// invalid transition error because status only moves forward.
func (h *AdminHandler) CancelAuction(e *core.RequestEvent) error {
	auctionID := e.Request.PathValue("auctionId")
	ctx := e.Request.Context()

	if err := h.store.SetAuctionStatus(ctx, auctionID, models.StatusCancelled); err != nil {
		return utils.ErrorJSON(e, err)
	}

	if h.redis != nil {
		h.redis.SRem(ctx, "active_auctions", auctionID)
	}
	h.hub.Broadcast(auctionID, models.NewRelayMessage(models.RelayAuctionEnded, auctionID, map[string]any{
		"cancelled": true,
	}))

	return utils.OkJSON(e, map[string]any{"cancelled": true})
}
