package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/krisalay/optimistic-cache/social"
	"github.com/krisalay/optimistic-cache/types"
	"github.com/krisalay/optimistic-cache/wallet"
)

var errUnavailable = errors.New("server unavailable")

// fakeServer stands in for the remote API: it holds confirmed values and
// can be told to reject the next request.
type fakeServer struct {
	mu   sync.RWMutex
	data map[string]types.Value

	failNext atomic.Bool
	seq      atomic.Uint64
}

func newFakeServer() *fakeServer {
	return &fakeServer{data: make(map[string]types.Value)}
}

func (s *fakeServer) put(key types.Key, v types.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key.String()] = v
}

// Fetch implements types.Fetcher.
func (s *fakeServer) Fetch(_ context.Context, key types.Key) (types.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fmt.Println("SERVER → fetch:", key)
	return types.Clone(s.data[key.String()]), nil
}

func (s *fakeServer) fail() error {
	if s.failNext.CompareAndSwap(true, false) {
		return errUnavailable
	}
	return nil
}

// like confirms or rejects a like toggle.
func (s *fakeServer) like(postID string, isLiked bool) error {
	if err := s.fail(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := social.LikesKey(postID).String()
	c, _ := types.As[social.LikeCounter](s.data[k])
	if isLiked {
		c.Likes++
	} else if c.Likes > 0 {
		c.Likes--
	}
	c.UserLiked = isLiked
	s.data[k] = c
	return nil
}

// transact books a transaction and returns it with its server id.
func (s *fakeServer) transact(userID string, tx wallet.Transaction) (wallet.Transaction, error) {
	if err := s.fail(); err != nil {
		return wallet.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.ID = fmt.Sprintf("tx-%d", s.seq.Add(1))
	tx.Speculative = false

	k := wallet.Key(userID).String()
	st, _ := types.As[wallet.State](s.data[k])
	st.Balance += tx.Delta()
	st.Transactions = append([]wallet.Transaction{tx}, st.Transactions...)
	s.data[k] = st
	return tx, nil
}
