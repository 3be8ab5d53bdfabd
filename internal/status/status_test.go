package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrAuctionNotFound, "auction_not_found"},
		{ErrAuctionNotStarted, "auction_not_started"},
		{ErrAuctionEnded, "auction_ended"},
		{ErrAuctionCancelled, "auction_cancelled"},
		{ErrBidTooLow, "bid_too_low"},
		{ErrInvalidAmount, "invalid_amount"},
		{ErrInvalidTransition, "invalid_transition"},
		{ErrUpstreamUnavailable, "upstream_unavailable"},
		{ErrChannelUnavailable, "channel_unavailable"},
		{fmt.Errorf("%w: publish timeout", ErrChannelUnavailable), "channel_unavailable"},
		{errors.New("something else"), "server_error"},
		{nil, "server_error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Code(tt.err))
	}
}

func TestCode_SurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("place bid: %w - minimum bid is 1100.00", ErrBidTooLow)
	assert.Equal(t, "bid_too_low", Code(wrapped))

	doubly := fmt.Errorf("handler: %w", wrapped)
	assert.Equal(t, "bid_too_low", Code(doubly))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(ErrBidTooLow))
	assert.True(t, IsClientError(fmt.Errorf("wrapped: %w", ErrAuctionNotFound)))
	assert.False(t, IsClientError(ErrUpstreamUnavailable))
	assert.False(t, IsClientError(ErrChannelUnavailable))
	assert.False(t, IsClientError(errors.New("boom")))
}
