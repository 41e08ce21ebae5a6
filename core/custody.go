package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Custody moves value between external accounts and the ledger.
// Either call may fail independently of the ledger's own rules; a failed call
// must not have moved any value.
type Custody interface {
	// Collect moves amount from the account into custody.
	Collect(from Participant, amount Amount) (TransferReceipt, error)
	// Release moves amount out of custody into the account.
	Release(to Participant, amount Amount) (TransferReceipt, error)
}

// Vault is an in-memory Custody. It tracks external account balances and the
// value held on the ledger's behalf. Safe for concurrent use.
type Vault struct {
	mu       sync.Mutex
	balances map[Participant]Amount
	held     Amount
	refusing map[Participant]bool
}

// NewVault creates an empty vault.
func NewVault() *Vault {
	return &Vault{
		balances: make(map[Participant]Amount),
		held:     Zero,
		refusing: make(map[Participant]bool),
	}
}

// Deposit credits an external account, e.g. from a faucet or a bridge.
func (v *Vault) Deposit(to Participant, amount Amount) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[to] = v.balanceLocked(to).Add(amount)
	return nil
}

// Balance returns zero for accounts that were never credited.
func (v *Vault) Balance(p Participant) Amount {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balanceLocked(p)
}

// Held returns the total value in custody.
func (v *Vault) Held() Amount {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.held
}

// RefuseTransfers makes Release to p fail until called again with false.
func (v *Vault) RefuseTransfers(p Participant, refuse bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if refuse {
		v.refusing[p] = true
	} else {
		delete(v.refusing, p)
	}
}

// Accounts returns the known accounts in sorted order.
func (v *Vault) Accounts() []Participant {
	v.mu.Lock()
	defer v.mu.Unlock()
	accounts := make([]Participant, 0, len(v.balances))
	for p := range v.balances {
		accounts = append(accounts, p)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i] < accounts[j]
	})
	return accounts
}

func (v *Vault) Collect(from Participant, amount Amount) (TransferReceipt, error) {
	if err := ValidateAmount(amount); err != nil {
		return TransferReceipt{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	balance := v.balanceLocked(from)
	if balance.LessThan(amount) {
		return TransferReceipt{}, fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from, balance, amount)
	}
	v.balances[from] = balance.Sub(amount)
	v.held = v.held.Add(amount)

	return TransferReceipt{
		ID:     uuid.NewString(),
		Kind:   TransferCollect,
		From:   from,
		Amount: amount,
	}, nil
}

func (v *Vault) Release(to Participant, amount Amount) (TransferReceipt, error) {
	if err := ValidateAmount(amount); err != nil {
		return TransferReceipt{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.refusing[to] {
		return TransferReceipt{}, fmt.Errorf("%w: %s", ErrTransferRefused, to)
	}
	if v.held.LessThan(amount) {
		return TransferReceipt{}, fmt.Errorf("%w: holding %s, releasing %s", ErrInsufficientCustody, v.held, amount)
	}
	v.held = v.held.Sub(amount)
	v.balances[to] = v.balanceLocked(to).Add(amount)

	return TransferReceipt{
		ID:     uuid.NewString(),
		Kind:   TransferRelease,
		To:     to,
		Amount: amount,
	}, nil
}

func (v *Vault) balanceLocked(p Participant) Amount {
	if balance, ok := v.balances[p]; ok {
		return balance
	}
	return Zero
}
