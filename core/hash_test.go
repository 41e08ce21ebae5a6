package core

import (
	"crypto/sha256"
	"fmt"
	"testing"
)

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

func TestComputeBidHash(t *testing.T) {
	bidID := "bid_123"
	amount := MustParseEther("0.03")
	nonce := "test_nonce_456"

	hash := ComputeBidHash(bidID, amount, nonce)

	// Verify hash is 64 characters (SHA256 hex encoding)
	if len(hash) != 64 {
		t.Errorf("ComputeBidHash() hash length = %d, want 64", len(hash))
	}
	if !isHex(hash) {
		t.Errorf("ComputeBidHash() contains non-hex characters: %s", hash)
	}

	// Same inputs should produce same hash (deterministic)
	hash2 := ComputeBidHash(bidID, amount, nonce)
	if hash != hash2 {
		t.Errorf("ComputeBidHash() not deterministic")
	}

	// Verify exact hash calculation
	expectedData := fmt.Sprintf("%s|%s|%s", bidID, "30000000000000000", nonce)
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte(expectedData)))
	if hash != expectedHash {
		t.Errorf("ComputeBidHash() = %v, want %v", hash, expectedHash)
	}
}

func TestComputeBidHash_AmountRepresentation(t *testing.T) {
	nonce := "test"

	// The same wei amount reached through different constructors hashes the same
	hash1 := ComputeBidHash("bid-1", MustParseEther("0.04"), nonce)
	hash2 := ComputeBidHash("bid-1", MustParseEther("0.0400"), nonce)
	hash3 := ComputeBidHash("bid-1", Wei(40000000000000000), nonce)

	if hash1 != hash2 || hash1 != hash3 {
		t.Errorf("Equal wei amounts should produce the same hash")
	}

	// One wei apart must differ
	hash4 := ComputeBidHash("bid-1", Wei(40000000000000001), nonce)
	if hash1 == hash4 {
		t.Errorf("Amounts one wei apart should produce different hashes")
	}
}

func TestComputeBidHash_DifferentInputs(t *testing.T) {
	nonce := "test-nonce"
	amount := MustParseEther("0.025")

	if ComputeBidHash("bid-1", amount, nonce) == ComputeBidHash("bid-2", amount, nonce) {
		t.Errorf("Different bid IDs should produce different hashes")
	}
	if ComputeBidHash("bid-1", amount, nonce) == ComputeBidHash("bid-1", amount.Add(Wei(1)), nonce) {
		t.Errorf("Different amounts should produce different hashes")
	}
	if ComputeBidHash("bid-1", amount, "nonce-1") == ComputeBidHash("bid-1", amount, "nonce-2") {
		t.Errorf("Different nonces should produce different hashes")
	}
}

func TestComputeItemHash(t *testing.T) {
	item := ItemDescriptor{
		Make:         "Ford",
		Model:        "Figo",
		Color:        "Blue",
		Year:         2010,
		IsNew:        true,
		ReservePrice: MustParseEther("0.002"),
	}
	nonce := "item-nonce"

	hash := ComputeItemHash(item, nonce)
	if len(hash) != 64 || !isHex(hash) {
		t.Fatalf("ComputeItemHash() = %q, want 64 hex characters", hash)
	}

	expectedData := "item-nonce|Ford|Figo|Blue|2010|true|2000000000000000"
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte(expectedData)))
	if hash != expectedHash {
		t.Errorf("ComputeItemHash() = %v, want %v", hash, expectedHash)
	}

	testCases := []struct {
		name   string
		mutate func(*ItemDescriptor)
	}{
		{"color", func(d *ItemDescriptor) { d.Color = "Red" }},
		{"year", func(d *ItemDescriptor) { d.Year = 2011 }},
		{"is new", func(d *ItemDescriptor) { d.IsNew = false }},
		{"reserve", func(d *ItemDescriptor) { d.ReservePrice = MustParseEther("0.003") }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			changed := item
			tc.mutate(&changed)
			if ComputeItemHash(changed, nonce) == hash {
				t.Errorf("Changing %s should change the item hash", tc.name)
			}
		})
	}
}
