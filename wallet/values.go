package wallet

import (
	"fmt"
	"time"

	"github.com/krisalay/optimistic-cache/tempid"
	"github.com/krisalay/optimistic-cache/types"
)

// TxType is the direction of a transaction.
type TxType string

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

func (t TxType) valid() bool {
	return t == Income || t == Expense
}

// Transaction is one wallet movement. Amount is always non-negative.
type Transaction struct {
	ID          string
	Amount      int64
	Type        TxType
	Description string
	Timestamp   time.Time
	Speculative bool
}

func (t Transaction) RecordID() string    { return t.ID }
func (t Transaction) IsSpeculative() bool { return t.Speculative }

// Delta is the signed effect of t on the balance.
func (t Transaction) Delta() int64 {
	if t.Type == Expense {
		return -t.Amount
	}
	return t.Amount
}

// State is the value at Key: the balance and the transactions, newest first.
type State struct {
	Balance      int64
	Transactions []Transaction
}

func (State) Kind() types.Kind { return types.KindWallet }

func (s State) Clone() types.Value {
	s.Transactions = append([]Transaction(nil), s.Transactions...)
	return s
}

/*
Replace implements types.Collection.

The balance already carries the temp transaction's delta. If the server
settled a different amount or type, the balance is corrected by the
difference; otherwise it is left as is. If the server record is already in
the history (a refetch landed first), its delta is already in the balance:
the temp transaction is dropped together with its delta.
*/
func (s State) Replace(id string, rec types.Record) (types.Collection, bool, error) {
	tx, ok := rec.(Transaction)
	if !ok {
		return nil, false, fmt.Errorf("%w: wallet cannot hold %T", types.ErrRecordType, rec)
	}
	tx.Speculative = false

	var prev Transaction
	refetched := false
	for _, t := range s.Transactions {
		switch t.ID {
		case id:
			prev = t
		case tx.ID:
			refetched = true
		}
	}

	items, found := tempid.ReplaceRecord(s.Transactions, id, tx)
	if !found {
		return s, false, nil
	}

	balance := s.Balance - prev.Delta()
	if !refetched {
		balance += tx.Delta()
	}
	return State{Balance: balance, Transactions: items}, true, nil
}

// Remove implements types.Collection. Dropping a speculative transaction
// also takes its delta back out of the balance.
func (s State) Remove(id string) (types.Collection, bool) {
	items, removed, found := tempid.RemoveRecord(s.Transactions, id)
	if !found {
		return s, false
	}
	balance := s.Balance
	if removed.Speculative {
		balance -= removed.Delta()
	}
	return State{Balance: balance, Transactions: items}, true
}
