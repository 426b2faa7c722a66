package ledger

import (
	"bytes"
	"sync"

	"github.com/google/uuid"
)

// accountLocks hands out one mutex per account so a transfer holds exclusive
// access to both legs before mutating either. Locks are always taken in
// ascending id order, so two transfers over the same pair in opposite
// directions cannot deadlock. Entries are never evicted; the table is bounded
// by the number of accounts this process has touched.
type accountLocks struct {
	mu sync.Mutex
	m  map[uuid.UUID]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{m: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *accountLocks) lockFor(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if mu, ok := l.m[id]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	l.m[id] = mu
	return mu
}

// acquire locks the given accounts in ascending id order, deduplicating
// repeats, and returns the release function. Release unlocks in reverse.
func (l *accountLocks) acquire(ids ...uuid.UUID) (release func()) {
	ordered := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		dup := false
		for _, seen := range ordered {
			if seen == id {
				dup = true
				break
			}
		}
		if !dup {
			ordered = append(ordered, id)
		}
	}
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && bytes.Compare(ordered[j][:], ordered[j-1][:]) < 0; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	held := make([]*sync.Mutex, 0, len(ordered))
	for _, id := range ordered {
		mu := l.lockFor(id)
		mu.Lock()
		held = append(held, mu)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
