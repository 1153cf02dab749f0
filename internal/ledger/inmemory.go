package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const defaultLockTimeout = 2 * time.Second

type memoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]Account
	entries     []Transaction
	nextID      int64
	rowLocks    map[string]chan struct{}
	lockTimeout time.Duration
	faults      map[FaultPoint]*fault
}

type fault struct {
	skip int
	err  error
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests
// and local development. Row locks behave like SELECT ... FOR UPDATE: a unit
// waiting longer than lockTimeout fails with ErrConflict.
func NewInMemory(lockTimeout time.Duration) Store {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &memoryStore{
		accounts:    make(map[string]Account),
		rowLocks:    make(map[string]chan struct{}),
		lockTimeout: lockTimeout,
		faults:      make(map[FaultPoint]*fault),
	}
}

func (s *memoryStore) CreateAccount(_ context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.Number]; exists {
		return ErrDuplicateAccount
	}
	account.CreatedAt = account.CreatedAt.UTC()
	s.accounts[account.Number] = account
	return nil
}

func (s *memoryStore) GetAccount(_ context.Context, number string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[number]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (s *memoryStore) ListAccounts(_ context.Context, ownerID string) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Account{}
	for _, acc := range s.accounts {
		if acc.OwnerID == ownerID {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (s *memoryStore) ListTransactions(_ context.Context, number string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Transaction{}
	for _, entry := range s.entries {
		if entry.AccountNumber == number {
			out = append(out, entry)
		}
	}
	// Ids are handed out at append time, so commit order can differ from id order.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx := &memoryTx{
		store:    s,
		held:     make(map[string]chan struct{}),
		balances: make(map[string]decimal.Decimal),
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// rowLock returns the lock of an existing account. Unknown numbers get no
// lock, so lookups of random numbers cannot grow rowLocks.
func (s *memoryStore) rowLock(number string) (chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[number]; !exists {
		return nil, false
	}
	lock, ok := s.rowLocks[number]
	if !ok {
		lock = make(chan struct{}, 1)
		s.rowLocks[number] = lock
	}
	return lock, true
}

// trip consumes a registered fault for p, if any.
func (s *memoryStore) trip(p FaultPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.faults[p]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	delete(s.faults, p)
	return f.err
}

type memoryTx struct {
	store    *memoryStore
	held     map[string]chan struct{}
	balances map[string]decimal.Decimal
	entries  []Transaction
}

func (t *memoryTx) LockAccounts(ctx context.Context, numbers ...string) (map[string]Account, error) {
	found := make(map[string]Account, len(numbers))
	for _, number := range lockOrder(numbers) {
		if _, ok := t.held[number]; !ok {
			locked, err := t.acquire(ctx, number)
			if err != nil {
				return nil, err
			}
			if !locked {
				continue
			}
		}
		t.store.mu.RLock()
		acc, ok := t.store.accounts[number]
		t.store.mu.RUnlock()
		if !ok {
			continue
		}
		if pending, ok := t.balances[number]; ok {
			acc.Balance = pending
		}
		found[number] = acc
	}
	return found, nil
}

// acquire reports false without waiting when the account does not exist.
func (t *memoryTx) acquire(ctx context.Context, number string) (bool, error) {
	lock, ok := t.store.rowLock(number)
	if !ok {
		return false, nil
	}
	timer := time.NewTimer(t.store.lockTimeout)
	defer timer.Stop()
	select {
	case lock <- struct{}{}:
		t.held[number] = lock
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
		return false, fmt.Errorf("%w: lock timeout on account %s", ErrConflict, number)
	}
}

func (t *memoryTx) AdjustBalance(_ context.Context, number string, delta decimal.Decimal) (decimal.Decimal, error) {
	if _, ok := t.held[number]; !ok {
		return decimal.Zero, ErrNotLocked
	}
	if err := t.store.trip(FaultAdjust); err != nil {
		return decimal.Zero, err
	}

	current, ok := t.balances[number]
	if !ok {
		t.store.mu.RLock()
		acc, exists := t.store.accounts[number]
		t.store.mu.RUnlock()
		if !exists {
			return decimal.Zero, ErrAccountNotFound
		}
		current = acc.Balance
	}

	next := current.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, ErrInsufficientFunds
	}
	if next.GreaterThan(MaxBalance) {
		return decimal.Zero, ErrBalanceLimit
	}
	t.balances[number] = next
	return next, nil
}

func (t *memoryTx) Append(_ context.Context, entry Transaction) (Transaction, error) {
	if err := validateEntry(entry); err != nil {
		return Transaction{}, err
	}
	if err := t.store.trip(FaultAppend); err != nil {
		return Transaction{}, err
	}

	t.store.mu.Lock()
	t.store.nextID++
	entry.ID = t.store.nextID
	t.store.mu.Unlock()

	entry.CreatedAt = time.Now().UTC()
	t.entries = append(t.entries, entry)
	return entry, nil
}

func (t *memoryTx) commit() error {
	if err := t.store.trip(FaultCommit); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for number, balance := range t.balances {
		acc := t.store.accounts[number]
		acc.Balance = balance
		t.store.accounts[number] = acc
	}
	t.store.entries = append(t.store.entries, t.entries...)
	return nil
}

func (t *memoryTx) release() {
	for number, lock := range t.held {
		<-lock
		delete(t.held, number)
	}
}
