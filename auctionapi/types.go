package auctionapi

import (
	"time"

	"github.com/cloudx-io/carauction/core"
)

// Request types understood by the auction daemon
const (
	TypePing     = "ping"
	TypeDeposit  = "deposit_request"
	TypeBid      = "bid_request"
	TypeComplete = "complete_request"
	TypeWithdraw = "withdraw_request"
	TypeStatus   = "status_request"
	TypeBalance  = "balance_request"
)

// Response types
const (
	TypePong             = "pong"
	TypeError            = "error"
	TypeDepositResponse  = "deposit_response"
	TypeBidResponse      = "bid_response"
	TypeCompleteResponse = "complete_response"
	TypeWithdrawResponse = "withdraw_response"
	TypeStatusResponse   = "status_response"
	TypeBalanceResponse  = "balance_response"
)

// BaseRequest is decoded first to route a request by type
type BaseRequest struct {
	Type string `json:"type"`
}

// DepositRequest is a test faucet that credits an account with value it can bid with
// The daemon honors it only when the auction config sets allow_faucet
type DepositRequest struct {
	Type    string      `json:"type"`
	Account string      `json:"account"`
	Amount  core.Amount `json:"amount"` // wei
}

// BidRequest submits a bid; Amount is the value attached to the call
type BidRequest struct {
	Type   string      `json:"type"`
	Bidder string      `json:"bidder"`
	Amount core.Amount `json:"amount"` // wei
}

// CompleteRequest closes the auction; only the owner may send it
type CompleteRequest struct {
	Type   string `json:"type"`
	Caller string `json:"caller"`
}

// WithdrawRequest pulls a losing bidder's refund after the auction is closed
type WithdrawRequest struct {
	Type   string `json:"type"`
	Caller string `json:"caller"`
}

// BalanceRequest reads an account's custody balance and withdrawable refund
type BalanceRequest struct {
	Type    string `json:"type"`
	Account string `json:"account"`
}

// ErrorResponse reports a rejected request
// Code is stable and Message is for humans
type ErrorResponse struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongResponse struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type DepositResponse struct {
	Type    string      `json:"type"`
	Account string      `json:"account"`
	Balance core.Amount `json:"balance"`
}

type BidResponse struct {
	Type              string           `json:"type"`
	Bid               core.AcceptedBid `json:"bid"`
	HighestBid        core.Amount      `json:"highest_bid"`
	ParticipantsCount uint64           `json:"participants_count"`
}

// CompleteResponse carries the settlement and, when the NSM was reachable,
// an attestation over it
// A missing attestation does not undo the settlement
type CompleteResponse struct {
	Type                  string                `json:"type"`
	Settlement            core.Settlement       `json:"settlement"`
	AttestationCOSEBase64 AttestationCOSEBase64 `json:"attestation_cose_base64,omitempty"`
	AttestationError      string                `json:"attestation_error,omitempty"`
}

type WithdrawResponse struct {
	Type   string      `json:"type"`
	Caller string      `json:"caller"`
	Amount core.Amount `json:"amount"`
}

// StatusResponse exposes the read-only accessors of the ledger
type StatusResponse struct {
	Type              string              `json:"type"`
	AuctionID         string              `json:"auction_id"`
	Item              core.ItemDescriptor `json:"item"`
	Owner             string              `json:"owner"`
	ReservePrice      core.Amount         `json:"reserve_price"`
	HighestBid        core.Amount         `json:"highest_bid"`
	HighestBidder     string              `json:"highest_bidder,omitempty"`
	ParticipantsCount uint64              `json:"participants_count"`
	IsAuctionOver     bool                `json:"is_auction_over"`
}

type BalanceResponse struct {
	Type         string      `json:"type"`
	Account      string      `json:"account"`
	Balance      core.Amount `json:"balance"`
	Withdrawable core.Amount `json:"withdrawable"`
}

// PCRs represents the Platform Configuration Registers from AWS Nitro Enclaves
type PCRs struct {
	// PCR0: Hash of the Enclave Image File (EIF)
	ImageFileHash string `json:"0"`

	// PCR1: Hash of the Linux kernel and initial RAM data (initramfs)
	KernelHash string `json:"1"`

	// PCR2: Hash of user applications, excluding the boot ramfs
	ApplicationHash string `json:"2"`

	// PCR3: Hash of the IAM role assigned to the parent instance
	IAMRoleHash string `json:"3"`

	// PCR4: Hash of the parent instance's ID
	InstanceIDHash string `json:"4"`

	// PCR8: Hash of the enclave image file's signing certificate
	SigningCertHash string `json:"8,omitempty"`
}

// AttestationDoc is the common part of a Nitro attestation document
type AttestationDoc struct {
	ModuleID        string    `json:"module_id"`
	Timestamp       time.Time `json:"timestamp"`
	DigestAlgorithm string    `json:"digest"`
	PCRs            PCRs      `json:"pcrs"`
	Certificate     string    `json:"certificate"` // base64 DER
	CABundle        []string  `json:"cabundle"`    // base64 DER, root first
	PublicKey       string    `json:"public_key"`
	Nonce           string    `json:"nonce"`
}

// SettlementAttestationDoc is an attestation over a closed auction
type SettlementAttestationDoc struct {
	AttestationDoc
	UserData *SettlementAttestationUserData `json:"user_data"`
}

// SettlementAttestationUserData is the settlement commitment embedded in the attestation
// Bidder handles are public in an English auction, so the winner is included
type SettlementAttestationUserData struct {
	AuctionID         string      `json:"auction_id"`
	ItemHash          string      `json:"item_hash"`
	ItemHashNonce     string      `json:"item_hash_nonce"`
	ReservePrice      core.Amount `json:"reserve_price"`
	BidHashes         []string    `json:"bid_hashes"`
	BidHashNonce      string      `json:"bid_hash_nonce"`
	Winner            string      `json:"winner,omitempty"`
	HammerPrice       core.Amount `json:"hammer_price"`
	ParticipantsCount uint64      `json:"participants_count"`
	ClosedAt          time.Time   `json:"closed_at"`
	Timestamp         time.Time   `json:"timestamp"`
}
