package handlers

import (
	"strconv"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"hanotex/services"
	"hanotex/utils"
)

type AuctionHandler struct {
	app      *pocketbase.PocketBase
	auctions *services.AuctionService
}

func NewAuctionHandler(app *pocketbase.PocketBase, auctionService *services.AuctionService) *AuctionHandler {
	return &AuctionHandler{
		app:      app,
		auctions: auctionService,
	}
}

// GetAuction serves the auction snapshot used on page load and for client
// reconciliation after relay messages.
func (h *AuctionHandler) GetAuction(e *core.RequestEvent) error {
	auctionID := e.Request.PathValue("auctionId")

	view, err := h.auctions.GetAuction(e.Request.Context(), auctionID)
	if err != nil {
		return utils.ErrorJSON(e, err)
	}

	h.auctions.RegisterView(e.Request.Context(), auctionID)

	return utils.OkJSON(e, view)
}

// GetAuctionBids serves the paginated bid history, newest first.
func (h *AuctionHandler) GetAuctionBids(e *core.RequestEvent) error {
	auctionID := e.Request.PathValue("auctionId")

	page, _ := strconv.Atoi(e.Request.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(e.Request.URL.Query().Get("perPage"))

	listPage, err := h.auctions.GetAuctionBids(e.Request.Context(), auctionID, page, perPage)
	if err != nil {
		return utils.ErrorJSON(e, err)
	}

	return utils.OkJSON(e, listPage)
}
