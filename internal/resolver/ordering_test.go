package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"ecosystem-api/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowCollectionStore delays whole-collection fetches of one collection and
// records the order in which fetches finish.
type slowCollectionStore struct {
	*memoryStore
	slow  string
	delay time.Duration

	mu       sync.Mutex
	finished []string
}

func (s *slowCollectionStore) FetchAll(ctx context.Context, collection string, page store.Page) ([]store.Record, error) {
	if collection == s.slow {
		time.Sleep(s.delay)
	}
	records, err := s.memoryStore.FetchAll(ctx, collection, page)
	s.mu.Lock()
	s.finished = append(s.finished, collection)
	s.mu.Unlock()
	return records, err
}

func (s *slowCollectionStore) finishOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.finished...)
}

func ids(t *testing.T, v interface{}) []string {
	t.Helper()
	list, ok := v.([]interface{})
	require.True(t, ok, "expected list, got %T", v)
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, item.(map[string]interface{})["id"].(string))
	}
	return out
}

func TestSiblingRelationsLandInRequestedPositions(t *testing.T) {
	mem := newMemoryStore()
	mem.collections["BudgetStatementPayment"] = []store.Record{
		{"id": int64(71), "budgetStatementWalletId": int64(21)},
		{"id": int64(70), "budgetStatementWalletId": int64(20)},
		{"id": int64(72), "budgetStatementWalletId": int64(21)},
	}
	slow := &slowCollectionStore{memoryStore: mem, slow: "BudgetStatementLineItem", delay: 50 * time.Millisecond}
	schema, _ := newTestSchema(t, slow, Config{})

	data := requireNoErrors(t, execute(context.Background(), schema, `{
		budgetStatementWallets {
			id
			budgetStatementLineItem { id }
			budgetStatementPayment { id }
		}
	}`, nil))

	wallets := data["budgetStatementWallets"].([]interface{})
	require.Len(t, wallets, 2)

	first := wallets[0].(map[string]interface{})
	assert.Equal(t, "20", first["id"])
	assert.Equal(t, []string{"30", "31", "32"}, ids(t, first["budgetStatementLineItem"]))
	assert.Equal(t, []string{"70"}, ids(t, first["budgetStatementPayment"]))

	second := wallets[1].(map[string]interface{})
	assert.Equal(t, "21", second["id"])
	assert.Equal(t, []string{"33"}, ids(t, second["budgetStatementLineItem"]))
	assert.Equal(t, []string{"71", "72"}, ids(t, second["budgetStatementPayment"]))

	// Payments finished before the delayed line items, yet every list sits
	// under the field and parent that requested it.
	order := slow.finishOrder()
	require.NotEmpty(t, order)
	lastPayment, firstLineItem := -1, len(order)
	for i, c := range order {
		switch c {
		case "BudgetStatementPayment":
			lastPayment = i
		case "BudgetStatementLineItem":
			if i < firstLineItem {
				firstLineItem = i
			}
		}
	}
	assert.Less(t, lastPayment, firstLineItem, "finish order: %v", order)
}
