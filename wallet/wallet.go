// Package wallet holds the optimistic mutations behind wallet transactions.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/krisalay/optimistic-cache/snapshot"
	"github.com/krisalay/optimistic-cache/tempid"
	"github.com/krisalay/optimistic-cache/types"
)

var (
	// ErrInvalidAmount is returned for a negative amount.
	ErrInvalidAmount = errors.New("invalid transaction amount")

	// ErrInvalidType is returned for a type other than Income or Expense.
	ErrInvalidType = errors.New("invalid transaction type")
)

// Key addresses a user's wallet.
func Key(userID string) types.Key {
	return types.NewKey("wallet", userID)
}

// Draft is a transaction the user submitted.
type Draft struct {
	Amount      int64
	Type        TxType
	Description string
}

// Validate checks the draft before anything is written.
func (d Draft) Validate() error {
	if d.Amount < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, d.Amount)
	}
	if !d.Type.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, d.Type)
	}
	return nil
}

// TransactionResult holds the handle that undoes the transaction and the temp transaction.
type TransactionResult struct {
	Snapshot    *snapshot.Handle
	Transaction Transaction
}

// Mutator applies wallet actions to the cache.
type Mutator struct {
	snapshots *snapshot.Manager
	ids       *tempid.Allocator
	clock     func() time.Time
}

// NewMutator creates a Mutator. ids may be nil.
func NewMutator(snapshots *snapshot.Manager, ids *tempid.Allocator) *Mutator {
	if ids == nil {
		ids = tempid.NewAllocator("")
	}
	return &Mutator{snapshots: snapshots, ids: ids, clock: time.Now}
}

/*
ApplyTransaction records d before the server confirms it.

BEHAVIOR:
---------
- the draft is validated first; an invalid draft writes nothing
- income adds the amount to the balance, expense subtracts it
- a speculative transaction with a temp id is prepended to the history
- a wallet that was never fetched starts from a zero balance
*/
func (m *Mutator) ApplyTransaction(_ context.Context, userID string, d Draft) (TransactionResult, error) {
	if err := d.Validate(); err != nil {
		return TransactionResult{}, err
	}

	tx := Transaction{
		ID:          m.ids.Allocate(),
		Amount:      d.Amount,
		Type:        d.Type,
		Description: d.Description,
		Timestamp:   m.clock(),
		Speculative: true,
	}

	h, err := m.snapshots.Apply(Key(userID), types.Typed(func(old State, _ bool) (State, error) {
		items := make([]Transaction, 0, len(old.Transactions)+1)
		items = append(items, tx)
		items = append(items, old.Transactions...)
		return State{
			Balance:      old.Balance + tx.Delta(),
			Transactions: items,
		}, nil
	}))
	if err != nil {
		return TransactionResult{}, err
	}
	return TransactionResult{Snapshot: h, Transaction: tx}, nil
}

// Getter is the read side of the store.
type Getter interface {
	Get(key types.Key) (types.Value, bool)
}

// Cached returns the cached wallet of a user.
func Cached(s Getter, userID string) (State, bool) {
	v, _ := s.Get(Key(userID))
	return types.As[State](v)
}
