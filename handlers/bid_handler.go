package handlers

import (
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"hanotex/models"
	"hanotex/services"
	"hanotex/utils"
)

type BidHandler struct {
	app      *pocketbase.PocketBase
	bids     *services.BidService
	autoBids *services.AutoBidService
}

func NewBidHandler(app *pocketbase.PocketBase, bidService *services.BidService, autoBidService *services.AutoBidService) *BidHandler {
	return &BidHandler{
		app:      app,
		bids:     bidService,
		autoBids: autoBidService,
	}
}

// PlaceBid submits a bid for the authenticated user. A client retrying a
// timed-out submission should resend the same Idempotency-Key header to get
// the original bid back instead of a duplicate.
func (h *BidHandler) PlaceBid(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	bid, err := h.bids.PlaceBid(e.Request.Context(), services.PlaceBidRequest{
		AuctionID:      e.Request.PathValue("auctionId"),
		BidderID:       e.Auth.Id,
		BidderName:     e.Auth.GetString("name"),
		Amount:         req.Amount,
		IdempotencyKey: e.Request.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return utils.ErrorJSON(e, err)
	}

	return utils.OkJSON(e, models.NewBidView(*bid))
}

// SetAutoBid registers or raises the authenticated user's standing maximum.
func (h *BidHandler) SetAutoBid(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		MaxAmount float64 `json:"max_amount"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	autoBid, err := h.autoBids.Upsert(e.Request.Context(), e.Request.PathValue("auctionId"), e.Auth.Id, req.MaxAmount)
	if err != nil {
		return utils.ErrorJSON(e, err)
	}

	return utils.OkJSON(e, autoBid)
}

// CancelAutoBid deactivates the authenticated user's standing maximum.
func (h *BidHandler) CancelAutoBid(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	if err := h.autoBids.Cancel(e.Request.Context(), e.Request.PathValue("auctionId"), e.Auth.Id); err != nil {
		return utils.ErrorJSON(e, err)
	}

	return utils.OkJSON(e, map[string]any{"cancelled": true})
}
