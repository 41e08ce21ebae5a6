package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config fixes everything about an auction at construction time.
type Config struct {
	Owner   Participant
	Item    ItemDescriptor
	Custody Custody

	// Clock stamps accepted bids and settlements. Defaults to time.Now.
	Clock func() time.Time
}

// Ledger is a single-item English auction.
//
// Every mutating call holds the ledger lock for its whole duration, so calls
// never interleave, and every call either applies all of its effects or none.
// Custody transfers run before any ledger field is written; a failed transfer
// returns early with the ledger untouched.
//
// Refunds are pull-based: an outbid participant keeps an owed balance and
// withdraws it after the auction is closed.
type Ledger struct {
	mu sync.Mutex

	owner   Participant
	item    ItemDescriptor
	custody Custody
	clock   func() time.Time

	owed              map[Participant]Amount
	highestBid        Amount
	highestBidder     *Participant
	participantsCount uint64
	isOver            bool
	bids              []AcceptedBid
	settlement        *Settlement
}

// NewLedger validates cfg and opens the auction.
func NewLedger(cfg Config) (*Ledger, error) {
	if cfg.Owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidParticipant)
	}
	if err := cfg.Item.Validate(); err != nil {
		return nil, err
	}
	if cfg.Custody == nil {
		return nil, fmt.Errorf("custody is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Ledger{
		owner:      cfg.Owner,
		item:       cfg.Item,
		custody:    cfg.Custody,
		clock:      clock,
		owed:       make(map[Participant]Amount),
		highestBid: Zero,
	}, nil
}

// SubmitBid deposits amount from caller as a new highest bid.
//
// The first bid must exceed the reserve price; every later bid must exceed
// the current highest bid. The deposit adds to whatever the caller already
// has owed, so earlier deposits from the same caller stay refundable.
func (l *Ledger) SubmitBid(caller Participant, amount Amount) (*AcceptedBid, error) {
	if caller == "" {
		return nil, fmt.Errorf("submit bid: %w", ErrInvalidParticipant)
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, fmt.Errorf("submit bid: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isOver {
		return nil, fmt.Errorf("submit bid: %w", ErrAuctionAlreadyClosed)
	}

	threshold := l.highestBid
	if l.highestBidder == nil {
		threshold = l.item.ReservePrice
	}
	if !ExceedsThreshold(amount, threshold) {
		return nil, fmt.Errorf("submit bid: %w: %s does not exceed %s", ErrBidTooLow, amount, threshold)
	}

	if _, err := l.custody.Collect(caller, amount); err != nil {
		return nil, fmt.Errorf("submit bid: collect deposit: %w", err)
	}

	l.owed[caller] = l.owedLocked(caller).Add(amount)
	l.highestBid = amount
	leader := caller
	l.highestBidder = &leader
	l.participantsCount++

	bid := AcceptedBid{
		ID:        uuid.NewString(),
		Bidder:    caller,
		Amount:    amount,
		Sequence:  l.participantsCount,
		Timestamp: l.clock(),
	}
	l.bids = append(l.bids, bid)

	return &bid, nil
}

// CompleteAuction closes bidding and pays the highest bid to the owner.
//
// Closing and payout are one step: if the owner cannot receive the payout the
// auction stays open. On success exactly the hammer price is taken out of the
// winner's owed balance, so any earlier deposits the winner made remain
// withdrawable and the winning deposit can never be paid twice.
func (l *Ledger) CompleteAuction(caller Participant) (*Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isOver {
		return nil, fmt.Errorf("complete auction: %w", ErrAuctionAlreadyClosed)
	}
	if caller != l.owner {
		return nil, fmt.Errorf("complete auction: %w: %s is not the owner", ErrNotAuthorized, caller)
	}

	settlement := &Settlement{
		Owner:  l.owner,
		Amount: l.highestBid,
	}

	if l.highestBidder != nil {
		receipt, err := l.custody.Release(l.owner, l.highestBid)
		if err != nil {
			return nil, fmt.Errorf("complete auction: pay owner: %w", err)
		}
		settlement.Receipt = &receipt

		winner := *l.highestBidder
		settlement.Winner = &winner
		l.owed[winner] = l.owedLocked(winner).Sub(l.highestBid)
	}

	l.isOver = true
	settlement.ClosedAt = l.clock()
	l.settlement = settlement

	return copySettlement(settlement), nil
}

// WithdrawBid pays the caller's whole owed balance back to them.
func (l *Ledger) WithdrawBid(caller Participant) (Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isOver {
		return Zero, fmt.Errorf("withdraw bid: %w", ErrAuctionStillInProgress)
	}

	owed := l.owedLocked(caller)
	if !owed.IsPositive() {
		return Zero, fmt.Errorf("withdraw bid: %w: %s has nothing to withdraw", ErrNotAParticipant, caller)
	}

	if _, err := l.custody.Release(caller, owed); err != nil {
		return Zero, fmt.Errorf("withdraw bid: refund: %w", err)
	}
	l.owed[caller] = Zero

	return owed, nil
}

func (l *Ledger) owedLocked(p Participant) Amount {
	if owed, ok := l.owed[p]; ok {
		return owed
	}
	return Zero
}

func (l *Ledger) ReservePrice() Amount {
	return l.item.ReservePrice
}

func (l *Ledger) Item() ItemDescriptor {
	return l.item
}

func (l *Ledger) Owner() Participant {
	return l.owner
}

func (l *Ledger) HighestBid() Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.highestBid
}

// HighestBidder returns the current leader, or false if nobody has bid.
func (l *Ledger) HighestBidder() (Participant, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.highestBidder == nil {
		return "", false
	}
	return *l.highestBidder, true
}

// ParticipantsCount counts accepted bids, repeat bidders included.
func (l *Ledger) ParticipantsCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.participantsCount
}

func (l *Ledger) IsAuctionOver() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isOver
}

// Withdrawable returns what p could withdraw once the auction is closed.
// While the auction is open the leader's figure still includes the
// leading deposit.
func (l *Ledger) Withdrawable(p Participant) Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owedLocked(p)
}

// Escrowed is the sum of all owed balances. Before closing it equals every
// deposit collected; after closing, every deposit minus the payout and the
// refunds already withdrawn.
func (l *Ledger) Escrowed() Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := Zero
	for _, owed := range l.owed {
		total = total.Add(owed)
	}
	return total
}

// Bids returns the accepted bids in acceptance order.
func (l *Ledger) Bids() []AcceptedBid {
	l.mu.Lock()
	defer l.mu.Unlock()
	bids := make([]AcceptedBid, len(l.bids))
	copy(bids, l.bids)
	return bids
}

// Settlement returns the closing result, or nil while the auction is open.
func (l *Ledger) Settlement() *Settlement {
	l.mu.Lock()
	defer l.mu.Unlock()
	return copySettlement(l.settlement)
}

func copySettlement(s *Settlement) *Settlement {
	if s == nil {
		return nil
	}
	out := *s
	if s.Winner != nil {
		winner := *s.Winner
		out.Winner = &winner
	}
	if s.Receipt != nil {
		receipt := *s.Receipt
		out.Receipt = &receipt
	}
	return &out
}
