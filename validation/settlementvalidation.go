package validation

import (
	"crypto/x509"
	"encoding/json"
	"fmt"

	"github.com/cloudx-io/carauction/auctionapi"
	"github.com/cloudx-io/carauction/core"
)

// SettlementValidationInput contains everything a participant knows about a closed auction
// Exactly one of AttestationCOSEGzip and AttestationCOSEBase64 must be set
type SettlementValidationInput struct {
	AttestationCOSEGzip   auctionapi.AttestationCOSEGzip
	AttestationCOSEBase64 auctionapi.AttestationCOSEBase64

	AuctionID   string
	Item        core.ItemDescriptor // ReservePrice included
	Winner      string              // empty = expect the auction closed without a winner
	HammerPrice core.Amount

	// Optional: prove that this bid was part of the auction
	BidID     string
	BidAmount core.Amount

	KnownPCRs []PCRSet       // nil = pcrs.json
	RootCAs   *x509.CertPool // nil = AWS Nitro root
}

// ValidateSettlementAttestation validates a TEE settlement attestation and verifies:
// - Auction ID matches
// - Item descriptor and reserve price match the committed item hash
// - Bid was included in the auction (when BidID is set)
// - Participant count matches the number of committed bids
// - Winner and hammer price match
//
// Returns:
//   - SettlementValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed input, missing config)
func ValidateSettlementAttestation(input *SettlementValidationInput) (*SettlementValidationResult, error) {
	coseBytes, err := input.attestation()
	if err != nil {
		return nil, err
	}

	baseResult, err := validateCommonAttestation(coseBytes, input.KnownPCRs, input.RootCAs)
	if err != nil {
		return nil, err
	}

	settlement, err := parseSettlementAttestation(coseBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse settlement attestation: %w", err)
	}

	result := &SettlementValidationResult{
		BaseValidationResult: *baseResult,
	}

	if settlement.UserData == nil {
		result.ValidationDetails = append(result.ValidationDetails, "Attestation user data missing")
		return result, nil
	}
	userData := settlement.UserData

	result.AuctionIDValid = validateAuctionID(input, userData, result)
	result.ItemHashValid = validateItemHash(input, userData, result)
	result.ReservePriceValid = validateReservePrice(input, userData, result)
	result.BidHashValid = validateBidHash(input, userData, result)
	result.ParticipantsValid = validateParticipants(userData, result)
	result.SettlementValid = validateWinnerAndPrice(input, userData, result)

	return result, nil
}

func (input *SettlementValidationInput) attestation() (auctionapi.AttestationCOSE, error) {
	switch {
	case input.AttestationCOSEGzip != "" && input.AttestationCOSEBase64 != "":
		return nil, fmt.Errorf("both gzip and base64 attestations given")
	case input.AttestationCOSEGzip != "":
		coseBytes, err := input.AttestationCOSEGzip.Decompress()
		if err != nil {
			return nil, fmt.Errorf("decompress attestation: %w", err)
		}
		return coseBytes, nil
	case input.AttestationCOSEBase64 != "":
		return input.AttestationCOSEBase64.Decode()
	default:
		return nil, fmt.Errorf("no attestation given")
	}
}

func validateAuctionID(input *SettlementValidationInput, userData *auctionapi.SettlementAttestationUserData, result *SettlementValidationResult) bool {
	if input.AuctionID == userData.AuctionID {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Auction ID validation passed: %s", input.AuctionID))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Auction ID mismatch: expected %s, attestation has %s", input.AuctionID, userData.AuctionID))
	return false
}

func validateItemHash(input *SettlementValidationInput, userData *auctionapi.SettlementAttestationUserData, result *SettlementValidationResult) bool {
	if userData.ItemHashNonce == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Item hash nonce missing from attestation")
		return false
	}

	computedHash := core.ComputeItemHash(input.Item, userData.ItemHashNonce)
	if computedHash == userData.ItemHash {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Item hash validation passed: %s", computedHash))
		return true
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Item hash mismatch: computed %s, attestation has %s", computedHash, userData.ItemHash))
	return false
}

func validateReservePrice(input *SettlementValidationInput, userData *auctionapi.SettlementAttestationUserData, result *SettlementValidationResult) bool {
	if input.Item.ReservePrice.Equal(userData.ReservePrice) {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Reserve price validation passed: %s ether", core.FormatEther(userData.ReservePrice)))
		return true
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Reserve price mismatch: expected %s ether, attestation has %s ether",
		core.FormatEther(input.Item.ReservePrice), core.FormatEther(userData.ReservePrice)))
	return false
}

func validateBidHash(input *SettlementValidationInput, userData *auctionapi.SettlementAttestationUserData, result *SettlementValidationResult) bool {
	if input.BidID == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Bid inclusion not checked: no bid ID given")
		return true
	}

	if userData.BidHashNonce == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Bid hash nonce missing from attestation")
		return false
	}

	computedHash := core.ComputeBidHash(input.BidID, input.BidAmount, userData.BidHashNonce)
	for _, attestedHash := range userData.BidHashes {
		if computedHash == attestedHash {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bid hash found in attestation: %s", computedHash))
			return true
		}
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bid hash NOT found in attestation. Computed: %s", computedHash))
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Total hashes in attestation: %d", len(userData.BidHashes)))
	return false
}

func validateParticipants(userData *auctionapi.SettlementAttestationUserData, result *SettlementValidationResult) bool {
	if uint64(len(userData.BidHashes)) == userData.ParticipantsCount {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Participant count validation passed: %d", userData.ParticipantsCount))
		return true
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Participant count mismatch: attestation reports %d, commits %d bids",
		userData.ParticipantsCount, len(userData.BidHashes)))
	return false
}

func validateWinnerAndPrice(input *SettlementValidationInput, userData *auctionapi.SettlementAttestationUserData, result *SettlementValidationResult) bool {
	if input.Winner == "" {
		if userData.Winner == "" && userData.HammerPrice.IsZero() {
			result.ValidationDetails = append(result.ValidationDetails, "Settlement validation passed: closed without a winner as expected")
			return true
		}
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Settlement mismatch: expected no winner, attestation has %s at %s ether",
			userData.Winner, core.FormatEther(userData.HammerPrice)))
		return false
	}

	expectedWinner, err := core.ParseParticipant(input.Winner)
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Invalid expected winner: %v", err))
		return false
	}

	if userData.Winner != expectedWinner.String() {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner mismatch: expected %s, attestation has %q", expectedWinner, userData.Winner))
		return false
	}

	if !input.HammerPrice.Equal(userData.HammerPrice) {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Hammer price mismatch: expected %s ether, attestation has %s ether",
			core.FormatEther(input.HammerPrice), core.FormatEther(userData.HammerPrice)))
		return false
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Settlement validation passed: %s won at %s ether",
		expectedWinner, core.FormatEther(userData.HammerPrice)))
	return true
}

func parseSettlementAttestation(coseBytes auctionapi.AttestationCOSE) (*auctionapi.SettlementAttestationDoc, error) {
	attestationDoc, userDataBytes, err := coseBytes.ParseAttestationDoc()
	if err != nil {
		return nil, err
	}

	doc := &auctionapi.SettlementAttestationDoc{AttestationDoc: attestationDoc}
	if len(userDataBytes) == 0 {
		return doc, nil
	}

	var userData auctionapi.SettlementAttestationUserData
	if err := json.Unmarshal(userDataBytes, &userData); err != nil {
		return nil, fmt.Errorf("parse user data: %w", err)
	}
	doc.UserData = &userData
	return doc, nil
}
