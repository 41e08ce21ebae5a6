package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"

	"github.com/cloudx-io/carauction/auctionapi"
	"github.com/cloudx-io/carauction/core"
)

// EnclaveAttester interface for dependency injection and testing
type EnclaveAttester interface {
	Attest(options enclave.AttestationOptions) ([]byte, error)
}

// getEnclaveAttester attempts to get the NSM attester, returns error if not available
func getEnclaveAttester() (EnclaveAttester, error) {
	handle, err := enclave.GetOrInitializeHandle()
	if err != nil {
		return nil, fmt.Errorf("NSM not available: %w", err)
	}
	return handle, nil
}

// BuildSettlementUserData commits to the item, every accepted bid and the settlement
// Each commitment gets its own nonce so hashes cannot be matched across auctions
func BuildSettlementUserData(auctionID string, item core.ItemDescriptor, bids []core.AcceptedBid, settlement *core.Settlement) (*auctionapi.SettlementAttestationUserData, error) {
	if settlement == nil {
		return nil, fmt.Errorf("auction %s is not settled", auctionID)
	}

	itemHashNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate item hash nonce: %w", err)
	}

	bidHashNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate bid hash nonce: %w", err)
	}

	bidHashes := make([]string, 0, len(bids))
	for _, bid := range bids {
		bidHashes = append(bidHashes, core.ComputeBidHash(bid.ID, bid.Amount, bidHashNonce))
	}

	var winner string
	if settlement.Winner != nil {
		winner = settlement.Winner.String()
	}

	return &auctionapi.SettlementAttestationUserData{
		AuctionID:         auctionID,
		ItemHash:          core.ComputeItemHash(item, itemHashNonce),
		ItemHashNonce:     itemHashNonce,
		ReservePrice:      item.ReservePrice,
		BidHashes:         bidHashes,
		BidHashNonce:      bidHashNonce,
		Winner:            winner,
		HammerPrice:       settlement.Amount,
		ParticipantsCount: uint64(len(bids)),
		ClosedAt:          settlement.ClosedAt,
		Timestamp:         time.Now(),
	}, nil
}

// GenerateSettlementAttestation asks the NSM to attest the settlement user data
func GenerateSettlementAttestation(attester EnclaveAttester, userData *auctionapi.SettlementAttestationUserData) (auctionapi.AttestationCOSE, error) {
	if attester == nil {
		return nil, fmt.Errorf("enclave attester is nil")
	}

	userDataBytes, err := json.Marshal(userData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user data: %w", err)
	}

	randomNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate attestation nonce: %w", err)
	}

	attestationCBOR, err := attester.Attest(enclave.AttestationOptions{
		UserData: userDataBytes,
		Nonce:    []byte(randomNonce),
	})
	if err != nil {
		log.Printf("ERROR: NSM attestation failed: %v", err)
		return nil, fmt.Errorf("NSM attestation failed: %w", err)
	}

	log.Printf("INFO: Settlement attestation generated: %d bytes", len(attestationCBOR))

	return auctionapi.AttestationCOSE(attestationCBOR), nil
}

func generateNonce() (string, error) {
	randomBytes := make([]byte, 32) // 256 bits of entropy
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("entropy generation failed: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}
