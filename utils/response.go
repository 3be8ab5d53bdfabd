package utils

import (
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"hanotex/internal/status"
)

// OkJSON writes the success envelope.
func OkJSON(e *core.RequestEvent, data any) error {
	return e.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

// ErrorJSON maps a taxonomy error onto the error envelope with a stable
// code. Client-facing rejections are expected outcomes and are not logged;
// everything else is.
func ErrorJSON(e *core.RequestEvent, err error) error {
	code := status.Code(err)

	if !status.IsClientError(err) {
		slog.Error("request failed", "path", e.Request.URL.Path, "code", code, "error", err)
	}

	return e.JSON(httpStatusFor(code), map[string]any{
		"success": false,
		"error":   messageFor(code),
		"code":    code,
	})
}

func httpStatusFor(code string) int {
	switch code {
	case "auction_not_found":
		return http.StatusNotFound
	case "invalid_amount":
		return http.StatusBadRequest
	case "auction_not_started", "auction_ended", "auction_cancelled", "bid_too_low", "invalid_transition":
		return http.StatusUnprocessableEntity
	case "upstream_unavailable", "channel_unavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(code string) string {
	switch code {
	case "auction_not_found":
		return "Auction not found"
	case "auction_not_started":
		return "Auction has not started yet"
	case "auction_ended":
		return "Auction has ended"
	case "auction_cancelled":
		return "Auction was cancelled"
	case "bid_too_low":
		return "Bid amount is below the minimum bid"
	case "invalid_amount":
		return "Invalid bid amount"
	case "invalid_transition":
		return "Status change not allowed"
	case "upstream_unavailable", "channel_unavailable":
		return "Service temporarily unavailable"
	default:
		return "Something went wrong"
	}
}
