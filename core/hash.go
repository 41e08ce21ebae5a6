package core

import (
	"crypto/sha256"
	"fmt"
)

// ComputeBidHash commits to one accepted bid.
// This is used by the daemon (to generate hashes) and validation (to verify hashes).
//
// Formula: SHA256(bid_id + "|" + amount_in_wei + "|" + nonce)
//
// Amounts are integral wei, so the decimal string form is canonical.
func ComputeBidHash(bidID string, amount Amount, nonce string) string {
	data := fmt.Sprintf("%s|%s|%s", bidID, amount.String(), nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeItemHash commits to the item descriptor, reserve price included.
//
// Formula: SHA256(nonce + "|" + make + "|" + model + "|" + color + "|" + year + "|" + is_new + "|" + reserve_in_wei)
func ComputeItemHash(item ItemDescriptor, nonce string) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%t|%s",
		nonce, item.Make, item.Model, item.Color, item.Year, item.IsNew, item.ReservePrice.String())
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
