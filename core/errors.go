package core

import "errors"

// Auction rule violations. Each is returned wrapped with call context;
// match with errors.Is.
var (
	ErrBidTooLow              = errors.New("bid too low")
	ErrAuctionAlreadyClosed   = errors.New("auction already closed")
	ErrAuctionStillInProgress = errors.New("auction still in progress")
	ErrNotAuthorized          = errors.New("not authorized")
	ErrNotAParticipant        = errors.New("not a participant")
)

// Input validation failures.
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidParticipant = errors.New("invalid participant")
	ErrInvalidItem        = errors.New("invalid item descriptor")
)

// Custody failures. These abort the enclosing ledger operation.
var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientCustody = errors.New("insufficient funds in custody")
	ErrTransferRefused     = errors.New("transfer refused by recipient")
)
