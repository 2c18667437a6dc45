package erp

import "sync"

// Op names a budgeted ledger operation.
type Op string

const (
	OpLoad      Op = "load"
	OpSave      Op = "save"
	OpDelete    Op = "delete"
	OpTransform Op = "transform"
	OpSetFields Op = "setfields"
	OpQuery     Op = "query"
)

// opCost is the governance unit cost per operation type.
var opCost = map[Op]int{
	OpLoad:      5,
	OpSave:      20,
	OpDelete:    20,
	OpTransform: 10,
	OpSetFields: 10,
	OpQuery:     10,
}

// Governance floors checked before each item of a bulk batch. The
// bill-and-JE workflow performs far more ledger operations per item,
// so it keeps a larger reserve.
const (
	GovernanceFloorStandard = 100
	GovernanceFloorBillJE   = 300
)

// Budget is an explicit execution budget threaded through bulk loops.
// The zero value is unusable; construct with NewBudget or Unlimited.
type Budget struct {
	mu        sync.Mutex
	remaining int
	unlimited bool
}

// NewBudget grants the given number of governance units.
func NewBudget(units int) *Budget {
	return &Budget{remaining: units}
}

// Unlimited returns a budget that never runs out.
func Unlimited() *Budget {
	return &Budget{unlimited: true}
}

// Consume deducts the cost of one operation. The balance may go
// negative; callers gate on Remaining before starting an item, not
// per operation.
func (b *Budget) Consume(op Op) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unlimited {
		return
	}
	cost, ok := opCost[op]
	if !ok {
		cost = 10
	}
	b.remaining -= cost
}

// Remaining reports the units left.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unlimited {
		return int(^uint(0) >> 1)
	}
	return b.remaining
}
