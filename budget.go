package finvoke

import "sync"

// callBudget tracks one conversation's tool usage. A conversation's calls
// are logically sequential, so the mutex is held across a dispatch's whole
// check-invoke-update sequence.
type callBudget struct {
	mu           sync.Mutex
	calls        int
	unproductive int
}

type budgetTable struct {
	mu      sync.Mutex
	budgets map[string]*callBudget
}

func newBudgetTable() *budgetTable {
	return &budgetTable{
		budgets: make(map[string]*callBudget),
	}
}

// get returns the budget for a conversation, creating it on first use.
// Budgets are never persisted.
func (t *budgetTable) get(conversationID string) *callBudget {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.budgets[conversationID]
	if !ok {
		b = &callBudget{}
		t.budgets[conversationID] = b
	}

	return b
}

func (t *budgetTable) reset(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.budgets, conversationID)
}
