package main

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/cloudx-io/carauction/core"
)

// AuctionConfig is the TOML file that fixes one auction
//
//	auction_id    = "ford-figo-2010"
//	owner         = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
//	reserve_price = "0.002" # ether
//	allow_faucet  = false   # honor deposit_request, for test networks only
//
//	[item]
//	make   = "Ford"
//	model  = "Figo"
//	color  = "Blue"
//	year   = 2010
//	is_new = true
//
//	[genesis] # optional starting balances, in ether
//	"0x70997970c51812dc3a010c7d01b50e0d17dc79c8" = "10"
type AuctionConfig struct {
	AuctionID    string              `toml:"auction_id"`
	Owner        string              `toml:"owner"`
	ReservePrice string              `toml:"reserve_price"`
	Item         core.ItemDescriptor `toml:"item"`
	Genesis      map[string]string   `toml:"genesis"`
	AllowFaucet  bool                `toml:"allow_faucet"`
}

// DefaultAuctionConfig auctions a 2010 Ford Figo with a 0.002 ether reserve
// It is a development auction, so deposits are honored
func DefaultAuctionConfig() AuctionConfig {
	return AuctionConfig{
		AuctionID:    "ford-figo-2010",
		Owner:        "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
		ReservePrice: "0.002",
		Item: core.ItemDescriptor{
			Make:  "Ford",
			Model: "Figo",
			Color: "Blue",
			Year:  2010,
			IsNew: true,
		},
		AllowFaucet: true,
	}
}

// LoadAuctionConfig reads the TOML file at path, or returns the default when path is empty
func LoadAuctionConfig(path string) (AuctionConfig, error) {
	if path == "" {
		log.Printf("INFO: No auction config given, using default item")
		return DefaultAuctionConfig(), nil
	}

	var cfg AuctionConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return AuctionConfig{}, fmt.Errorf("failed to decode auction config %s: %w", path, err)
	}
	if cfg.AuctionID == "" {
		return AuctionConfig{}, fmt.Errorf("auction config %s: auction_id is required", path)
	}

	log.Printf("INFO: Loaded auction config %s (auction %s)", path, cfg.AuctionID)
	return cfg, nil
}

// BuildLedger opens the auction described by cfg over a fresh vault seeded with the genesis balances
func BuildLedger(cfg AuctionConfig) (*core.Ledger, *core.Vault, error) {
	owner, err := core.ParseParticipant(cfg.Owner)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid owner: %w", err)
	}

	reserve, err := core.ParseEther(cfg.ReservePrice)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid reserve price: %w", err)
	}
	item := cfg.Item
	item.ReservePrice = reserve

	vault := core.NewVault()

	// Deterministic order keeps the startup log stable
	accounts := make([]string, 0, len(cfg.Genesis))
	for account := range cfg.Genesis {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	for _, account := range accounts {
		p, err := core.ParseParticipant(account)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid genesis account: %w", err)
		}
		amount, err := core.ParseEther(cfg.Genesis[account])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid genesis balance for %s: %w", account, err)
		}
		if err := vault.Deposit(p, amount); err != nil {
			return nil, nil, fmt.Errorf("failed to seed %s: %w", account, err)
		}
		log.Printf("INFO: Seeded %s with %s ether", p, core.FormatEther(amount))
	}

	ledger, err := core.NewLedger(core.Config{
		Owner:   owner,
		Item:    item,
		Custody: vault,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open auction: %w", err)
	}

	return ledger, vault, nil
}

// Helper function for required environment variable parsing
func getRequiredEnvInt(key string) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, fmt.Errorf("required environment variable %s is not set", key)
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}

	log.Printf("INFO: Using %s=%d from environment", key, intValue)
	return intValue, nil
}
