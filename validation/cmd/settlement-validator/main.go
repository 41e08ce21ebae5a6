package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/cloudx-io/carauction/auctionapi"
	"github.com/cloudx-io/carauction/core"
	"github.com/cloudx-io/carauction/validation"
)

// auctionFile is the subset of the auctiond config a validator needs
type auctionFile struct {
	AuctionID    string              `toml:"auction_id"`
	ReservePrice string              `toml:"reserve_price"`
	Item         core.ItemDescriptor `toml:"item"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code: 0 valid, 1 invalid, 2 bad input
func run(args []string) int {
	flags := flag.NewFlagSet("settlement-validator", flag.ContinueOnError)
	var (
		configPath       = flags.String("auction-config", "", "Auction TOML config the daemon was started with")
		completeResponse = flags.String("complete-response", "", "complete_response JSON (file path or inline JSON)")
		bidID            = flags.String("bid-id", "", "Your bid ID, to prove the bid was part of the auction")
		bidAmount        = flags.String("bid-amount", "", "Your bid amount in ether (required with --bid-id)")
		pcrConfig        = flags.String("pcrs", "", "Known PCR sets JSON (default: validation/pcrs.json)")
		outputFormat     = flags.String("format", "text", "Output format: text or json")
		help             = flags.Bool("help", false, "Show usage information")
	)
	flags.Usage = showUsage

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *help {
		showUsage()
		return 0
	}

	if *configPath == "" || *completeResponse == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --auction-config and --complete-response are required\n")
		return 2
	}

	input, err := buildValidationInput(*configPath, *completeResponse, *bidID, *bidAmount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading inputs: %v\n", err)
		return 2
	}

	if *pcrConfig != "" {
		input.KnownPCRs, err = validation.LoadPCRsFromFile(*pcrConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading PCRs: %v\n", err)
			return 2
		}
	}

	result, err := validation.ValidateSettlementAttestation(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		return 2
	}

	if *outputFormat == "json" {
		if err := outputJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
			return 2
		}
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		return 1
	}
	return 0
}

func showUsage() {
	fmt.Println("TEE Auction Settlement Validator")
	fmt.Println()
	fmt.Println("Checks that a closed auction was settled by the attested enclave.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  settlement-validator --auction-config <toml> --complete-response <json> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --auction-config <toml>           Auction config (auction_id, reserve_price, [item])")
	fmt.Println("  --complete-response <json>        complete_response returned when the owner closed the auction")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --bid-id <id>                     Bid ID from your bid_response")
	fmt.Println("  --bid-amount <ether>              Bid amount in ether")
	fmt.Println("  --pcrs <json>                     Known PCR sets (default: validation/pcrs.json)")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  settlement-validator \\")
	fmt.Println("    --auction-config auction.toml \\")
	fmt.Println("    --complete-response complete.json \\")
	fmt.Println("    --bid-id 6f1c... --bid-amount 0.04")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Validation passed")
	fmt.Println("  1 - Validation failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

func readJSONInput(input string) ([]byte, error) {
	if data, err := os.ReadFile(input); err == nil {
		return data, nil
	}
	return []byte(input), nil
}

func buildValidationInput(configPath, completeResponse, bidID, bidAmount string) (*validation.SettlementValidationInput, error) {
	var auction auctionFile
	if _, err := toml.DecodeFile(configPath, &auction); err != nil {
		return nil, fmt.Errorf("parse auction config: %w", err)
	}

	reserve, err := core.ParseEther(auction.ReservePrice)
	if err != nil {
		return nil, fmt.Errorf("parse reserve price: %w", err)
	}
	item := auction.Item
	item.ReservePrice = reserve

	data, err := readJSONInput(completeResponse)
	if err != nil {
		return nil, err
	}

	var resp auctionapi.CompleteResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse complete response: %w", err)
	}
	if resp.AttestationCOSEBase64 == "" {
		return nil, fmt.Errorf("complete response carries no attestation (attestation_error: %q)", resp.AttestationError)
	}

	input := &validation.SettlementValidationInput{
		AttestationCOSEBase64: resp.AttestationCOSEBase64,
		AuctionID:             auction.AuctionID,
		Item:                  item,
		HammerPrice:           resp.Settlement.Amount,
		BidID:                 bidID,
	}
	if resp.Settlement.Winner != nil {
		input.Winner = resp.Settlement.Winner.String()
	}

	if bidID != "" {
		if bidAmount == "" {
			return nil, fmt.Errorf("--bid-amount is required with --bid-id")
		}
		input.BidAmount, err = core.ParseEther(bidAmount)
		if err != nil {
			return nil, fmt.Errorf("parse bid amount: %w", err)
		}
	}

	return input, nil
}

func outputText(result *validation.SettlementValidationResult) {
	fmt.Println("TEE Auction Settlement Validator")
	fmt.Println("================================")
	fmt.Println()

	fmt.Println("Summary:")
	fmt.Printf("  PCRs Valid:              %v\n", result.PCRsValid)
	fmt.Printf("  Certificate Valid:       %v\n", result.CertificateValid)
	fmt.Printf("  Signature Valid:         %v\n", result.SignatureValid)
	fmt.Printf("  Auction ID Valid:        %v\n", result.AuctionIDValid)
	fmt.Printf("  Item Hash Valid:         %v\n", result.ItemHashValid)
	fmt.Printf("  Reserve Price Valid:     %v\n", result.ReservePriceValid)
	fmt.Printf("  Bid Hash Valid:          %v\n", result.BidHashValid)
	fmt.Printf("  Participants Valid:      %v\n", result.ParticipantsValid)
	fmt.Printf("  Settlement Valid:        %v\n", result.SettlementValid)

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	fmt.Println("================================")
	if result.IsValid() {
		fmt.Println("VALIDATION: ✓ PASSED")
	} else {
		fmt.Println("VALIDATION: ✗ FAILED")
	}
}

func outputJSON(result *validation.SettlementValidationResult) error {
	output := map[string]any{
		"valid":               result.IsValid(),
		"pcrs_valid":          result.PCRsValid,
		"certificate_valid":   result.CertificateValid,
		"signature_valid":     result.SignatureValid,
		"auction_id_valid":    result.AuctionIDValid,
		"item_hash_valid":     result.ItemHashValid,
		"reserve_price_valid": result.ReservePriceValid,
		"bid_hash_valid":      result.BidHashValid,
		"participants_valid":  result.ParticipantsValid,
		"settlement_valid":    result.SettlementValid,
		"details":             result.ValidationDetails,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
