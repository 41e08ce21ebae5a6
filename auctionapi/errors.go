package auctionapi

import (
	"errors"

	"github.com/cloudx-io/carauction/core"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeBidTooLow              = "bid_too_low"
	CodeAuctionAlreadyClosed   = "auction_already_closed"
	CodeAuctionStillInProgress = "auction_still_in_progress"
	CodeNotAuthorized          = "not_authorized"
	CodeNotAParticipant        = "not_a_participant"
	CodeInvalidRequest         = "invalid_request"
	CodeTransferFailed         = "transfer_failed"
	CodeUnknownType            = "unknown_type"
	CodeInternal               = "internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{core.ErrBidTooLow, CodeBidTooLow},
	{core.ErrAuctionAlreadyClosed, CodeAuctionAlreadyClosed},
	{core.ErrAuctionStillInProgress, CodeAuctionStillInProgress},
	{core.ErrNotAuthorized, CodeNotAuthorized},
	{core.ErrNotAParticipant, CodeNotAParticipant},
	{core.ErrInvalidAmount, CodeInvalidRequest},
	{core.ErrInvalidParticipant, CodeInvalidRequest},
	{core.ErrInsufficientFunds, CodeTransferFailed},
	{core.ErrInsufficientCustody, CodeTransferFailed},
	{core.ErrTransferRefused, CodeTransferFailed},
}

// ErrorCodeFor maps a ledger error onto its wire code
func ErrorCodeFor(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// NewErrorResponse builds the error envelope for err
func NewErrorResponse(err error) ErrorResponse {
	return ErrorResponse{
		Type:    TypeError,
		Code:    ErrorCodeFor(err),
		Message: err.Error(),
	}
}
