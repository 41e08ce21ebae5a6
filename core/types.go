package core

import (
	"fmt"
	"strings"
	"time"
)

// Participant is an opaque account handle (an address-equivalent key).
type Participant string

// ParseParticipant normalizes a handle. Hex addresses are case-insensitive,
// so handles are compared in lower case.
func ParseParticipant(s string) (Participant, error) {
	p := strings.ToLower(strings.TrimSpace(s))
	if p == "" {
		return "", fmt.Errorf("%w: empty handle", ErrInvalidParticipant)
	}
	return Participant(p), nil
}

func (p Participant) String() string {
	return string(p)
}

// ItemDescriptor is the static metadata of the auctioned car.
type ItemDescriptor struct {
	Make         string `json:"make" toml:"make"`
	Model        string `json:"model" toml:"model"`
	Color        string `json:"color" toml:"color"`
	Year         int    `json:"year" toml:"year"`
	IsNew        bool   `json:"is_new" toml:"is_new"`
	ReservePrice Amount `json:"reserve_price" toml:"-"`
}

// Validate checks the descriptor before a ledger is built around it.
func (d ItemDescriptor) Validate() error {
	if strings.TrimSpace(d.Make) == "" {
		return fmt.Errorf("%w: make is required", ErrInvalidItem)
	}
	if strings.TrimSpace(d.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidItem)
	}
	if d.Year <= 0 {
		return fmt.Errorf("%w: invalid year %d", ErrInvalidItem, d.Year)
	}
	if err := ValidateAmount(d.ReservePrice); err != nil {
		return fmt.Errorf("%w: reserve price: %w", ErrInvalidItem, err)
	}
	return nil
}

// AcceptedBid records one accepted SubmitBid call.
type AcceptedBid struct {
	ID        string      `json:"id"`
	Bidder    Participant `json:"bidder"`
	Amount    Amount      `json:"amount"`
	Sequence  uint64      `json:"sequence"` // 1-based, equals the participant count after acceptance
	Timestamp time.Time   `json:"timestamp"`
}

// Settlement is the outcome of closing the auction.
type Settlement struct {
	Owner    Participant      `json:"owner"`
	Winner   *Participant     `json:"winner,omitempty"` // nil if no bid was ever accepted
	Amount   Amount           `json:"amount"`
	Receipt  *TransferReceipt `json:"receipt,omitempty"` // nil when nothing was paid out
	ClosedAt time.Time        `json:"closed_at"`
}

// TransferKind says which direction value moved relative to custody.
type TransferKind string

const (
	TransferCollect TransferKind = "collect"
	TransferRelease TransferKind = "release"
)

// TransferReceipt confirms a completed custody transfer.
type TransferReceipt struct {
	ID     string       `json:"id"`
	Kind   TransferKind `json:"kind"`
	From   Participant  `json:"from,omitempty"`
	To     Participant  `json:"to,omitempty"`
	Amount Amount       `json:"amount"`
}
