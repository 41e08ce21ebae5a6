package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cloudx-io/carauction/auctionapi"
	"github.com/cloudx-io/carauction/core"
)

const publishTimeout = 5 * time.Second

// AuctionService answers decoded requests against one ledger
type AuctionService struct {
	auctionID   string
	ledger      *core.Ledger
	vault       *core.Vault
	publisher   EventPublisher
	newAttester func() (EnclaveAttester, error)
	allowFaucet bool
}

// NewAuctionService opens the auction described by cfg
// A nil publisher disables events
func NewAuctionService(cfg AuctionConfig, publisher EventPublisher, newAttester func() (EnclaveAttester, error)) (*AuctionService, error) {
	ledger, vault, err := BuildLedger(cfg)
	if err != nil {
		return nil, err
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}

	return &AuctionService{
		auctionID:   cfg.AuctionID,
		ledger:      ledger,
		vault:       vault,
		publisher:   publisher,
		newAttester: newAttester,
		allowFaucet: cfg.AllowFaucet,
	}, nil
}

// Handle routes one raw JSON request and returns the response to encode
func (s *AuctionService) Handle(payload []byte) any {
	var baseReq auctionapi.BaseRequest
	if err := json.Unmarshal(payload, &baseReq); err != nil {
		log.Printf("ERROR: Failed to decode base request: %v", err)
		return invalidRequest(fmt.Errorf("failed to decode request: %w", err))
	}

	log.Printf("INFO: Received request type: %s", baseReq.Type)

	switch baseReq.Type {
	case auctionapi.TypePing:
		return auctionapi.PongResponse{
			Type:      auctionapi.TypePong,
			Message:   "auction server is healthy",
			Timestamp: time.Now().Unix(),
		}

	case auctionapi.TypeDeposit:
		var req auctionapi.DepositRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return invalidRequest(fmt.Errorf("failed to decode deposit request: %w", err))
		}
		return s.handleDeposit(req)

	case auctionapi.TypeBid:
		var req auctionapi.BidRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return invalidRequest(fmt.Errorf("failed to decode bid request: %w", err))
		}
		return s.handleBid(req)

	case auctionapi.TypeComplete:
		var req auctionapi.CompleteRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return invalidRequest(fmt.Errorf("failed to decode complete request: %w", err))
		}
		return s.handleComplete(req)

	case auctionapi.TypeWithdraw:
		var req auctionapi.WithdrawRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return invalidRequest(fmt.Errorf("failed to decode withdraw request: %w", err))
		}
		return s.handleWithdraw(req)

	case auctionapi.TypeStatus:
		return s.handleStatus()

	case auctionapi.TypeBalance:
		var req auctionapi.BalanceRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return invalidRequest(fmt.Errorf("failed to decode balance request: %w", err))
		}
		return s.handleBalance(req)

	default:
		return auctionapi.ErrorResponse{
			Type:    auctionapi.TypeError,
			Code:    auctionapi.CodeUnknownType,
			Message: fmt.Sprintf("Unknown request type: %s", baseReq.Type),
		}
	}
}

func (s *AuctionService) handleDeposit(req auctionapi.DepositRequest) any {
	if !s.allowFaucet {
		log.Printf("WARNING: Deposit to %s refused: faucet disabled", req.Account)
		return auctionapi.NewErrorResponse(fmt.Errorf("deposit: faucet disabled: %w", core.ErrNotAuthorized))
	}

	account, err := core.ParseParticipant(req.Account)
	if err != nil {
		return auctionapi.NewErrorResponse(err)
	}
	if err := s.vault.Deposit(account, req.Amount); err != nil {
		return auctionapi.NewErrorResponse(err)
	}

	log.Printf("INFO: Deposited %s ether to %s", core.FormatEther(req.Amount), account)
	return auctionapi.DepositResponse{
		Type:    auctionapi.TypeDepositResponse,
		Account: account.String(),
		Balance: s.vault.Balance(account),
	}
}

func (s *AuctionService) handleBid(req auctionapi.BidRequest) any {
	bidder, err := core.ParseParticipant(req.Bidder)
	if err != nil {
		return auctionapi.NewErrorResponse(err)
	}

	bid, err := s.ledger.SubmitBid(bidder, req.Amount)
	if err != nil {
		log.Printf("INFO: Bid of %s ether from %s rejected: %v", core.FormatEther(req.Amount), bidder, err)
		return auctionapi.NewErrorResponse(err)
	}

	log.Printf("INFO: Bid %s accepted: %s ether from %s (bid #%d)", bid.ID, core.FormatEther(bid.Amount), bidder, bid.Sequence)
	s.publish(newAuctionEvent(s.auctionID, EventBidAccepted, bidder, bid.Amount, bid.Amount, bid.Sequence))

	return auctionapi.BidResponse{
		Type:              auctionapi.TypeBidResponse,
		Bid:               *bid,
		HighestBid:        bid.Amount,
		ParticipantsCount: bid.Sequence,
	}
}

func (s *AuctionService) handleComplete(req auctionapi.CompleteRequest) any {
	caller, err := core.ParseParticipant(req.Caller)
	if err != nil {
		return auctionapi.NewErrorResponse(err)
	}

	settlement, err := s.ledger.CompleteAuction(caller)
	if err != nil {
		log.Printf("INFO: Complete request from %s rejected: %v", caller, err)
		return auctionapi.NewErrorResponse(err)
	}

	log.Printf("INFO: Auction %s completed: winner=%s, hammer price=%s ether",
		s.auctionID, winnerName(settlement), core.FormatEther(settlement.Amount))

	var winner core.Participant
	if settlement.Winner != nil {
		winner = *settlement.Winner
	}
	s.publish(newAuctionEvent(s.auctionID, EventAuctionCompleted, winner, settlement.Amount, settlement.Amount, s.ledger.ParticipantsCount()))

	resp := auctionapi.CompleteResponse{
		Type:       auctionapi.TypeCompleteResponse,
		Settlement: *settlement,
	}

	attestation, err := s.attestSettlement(settlement)
	if err != nil {
		// The auction is closed regardless; the caller can see why there is no proof
		log.Printf("ERROR: Settlement attestation failed: %v", err)
		resp.AttestationError = err.Error()
	} else {
		resp.AttestationCOSEBase64 = attestation.EncodeBase64()
	}

	return resp
}

func (s *AuctionService) attestSettlement(settlement *core.Settlement) (auctionapi.AttestationCOSE, error) {
	if s.newAttester == nil {
		return nil, fmt.Errorf("attestation disabled")
	}
	attester, err := s.newAttester()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize TEE attester: %w", err)
	}

	userData, err := BuildSettlementUserData(s.auctionID, s.ledger.Item(), s.ledger.Bids(), settlement)
	if err != nil {
		return nil, err
	}
	return GenerateSettlementAttestation(attester, userData)
}

func (s *AuctionService) handleWithdraw(req auctionapi.WithdrawRequest) any {
	caller, err := core.ParseParticipant(req.Caller)
	if err != nil {
		return auctionapi.NewErrorResponse(err)
	}

	amount, err := s.ledger.WithdrawBid(caller)
	if err != nil {
		log.Printf("INFO: Withdrawal by %s rejected: %v", caller, err)
		return auctionapi.NewErrorResponse(err)
	}

	log.Printf("INFO: Refunded %s ether to %s", core.FormatEther(amount), caller)
	s.publish(newAuctionEvent(s.auctionID, EventBidWithdrawn, caller, amount, s.ledger.HighestBid(), s.ledger.ParticipantsCount()))

	return auctionapi.WithdrawResponse{
		Type:   auctionapi.TypeWithdrawResponse,
		Caller: caller.String(),
		Amount: amount,
	}
}

func (s *AuctionService) handleStatus() any {
	resp := auctionapi.StatusResponse{
		Type:              auctionapi.TypeStatusResponse,
		AuctionID:         s.auctionID,
		Item:              s.ledger.Item(),
		Owner:             s.ledger.Owner().String(),
		ReservePrice:      s.ledger.ReservePrice(),
		HighestBid:        s.ledger.HighestBid(),
		ParticipantsCount: s.ledger.ParticipantsCount(),
		IsAuctionOver:     s.ledger.IsAuctionOver(),
	}
	if leader, ok := s.ledger.HighestBidder(); ok {
		resp.HighestBidder = leader.String()
	}
	return resp
}

func (s *AuctionService) handleBalance(req auctionapi.BalanceRequest) any {
	account, err := core.ParseParticipant(req.Account)
	if err != nil {
		return auctionapi.NewErrorResponse(err)
	}

	return auctionapi.BalanceResponse{
		Type:         auctionapi.TypeBalanceResponse,
		Account:      account.String(),
		Balance:      s.vault.Balance(account),
		Withdrawable: s.ledger.Withdrawable(account),
	}
}

// publish is best-effort; a failed publish never affects the ledger
func (s *AuctionService) publish(event AuctionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("WARNING: Failed to publish %s event: %v", event.Kind, err)
	}
}

func invalidRequest(err error) auctionapi.ErrorResponse {
	return auctionapi.ErrorResponse{
		Type:    auctionapi.TypeError,
		Code:    auctionapi.CodeInvalidRequest,
		Message: err.Error(),
	}
}

func winnerName(settlement *core.Settlement) string {
	if settlement.Winner == nil {
		return "none"
	}
	return settlement.Winner.String()
}
