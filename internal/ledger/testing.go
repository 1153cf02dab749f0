package ledger

import "github.com/shopspring/decimal"

// FaultPoint names a step of an in-memory unit of work where a failure can be injected.
type FaultPoint string

const (
	FaultAdjust FaultPoint = "adjust"
	FaultAppend FaultPoint = "append"
	FaultCommit FaultPoint = "commit"
)

// SeedBalance is a test helper that sets the committed balance of an account when using the in-memory store.
func SeedBalance(s Store, number string, amount decimal.Decimal) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		acc := mem.accounts[number]
		acc.Number = number
		acc.Balance = amount
		mem.accounts[number] = acc
	}
}

// InjectFault makes the in-memory store fail once at p with err, after letting
// skip calls at that point succeed.
func InjectFault(s Store, p FaultPoint, skip int, err error) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.faults[p] = &fault{skip: skip, err: err}
	}
}
