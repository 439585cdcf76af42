package ordering

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersite/internal/models"
)

func TestFormatOrderNumber(t *testing.T) {
	assert.Equal(t, "ORD-20250304-001", FormatOrderNumber("20250304", 1))
	assert.Equal(t, "ORD-20250304-042", FormatOrderNumber("20250304", 42))
	assert.Equal(t, "ORD-20250304-1000", FormatOrderNumber("20250304", 1000))
}

func TestParseSequence(t *testing.T) {
	seq, ok := ParseSequence("ORD-20250304-007", "20250304")
	assert.True(t, ok)
	assert.EqualValues(t, 7, seq)

	seq, ok = ParseSequence("ORD-20250304-1203", "20250304")
	assert.True(t, ok)
	assert.EqualValues(t, 1203, seq)

	for _, bad := range []string{"ORD-20250305-001", "ORD-20250304-", "ORD-20250304-abc", "ORD-20250304-000", "X"} {
		_, ok := ParseSequence(bad, "20250304")
		assert.False(t, ok, bad)
	}
}

func TestNumbererSequentialWithinDay(t *testing.T) {
	n := NewNumberer(newMemSequences(), newMemOrders(), jst)
	now := time.Date(2025, 3, 4, 9, 0, 0, 0, jst)

	first, err := n.Next(context.Background(), now)
	require.NoError(t, err)
	second, err := n.Next(context.Background(), now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "ORD-20250304-001", first)
	assert.Equal(t, "ORD-20250304-002", second)
}

func TestNumbererResetsPerDayInSiteZone(t *testing.T) {
	n := NewNumberer(newMemSequences(), newMemOrders(), jst)

	// 2025-03-04 23:30 JST and 2025-03-04 15:30 UTC fall on different site days.
	late := time.Date(2025, 3, 4, 23, 30, 0, 0, jst)
	next := time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC)

	a, err := n.Next(context.Background(), late)
	require.NoError(t, err)
	b, err := n.Next(context.Background(), next)
	require.NoError(t, err)

	assert.Equal(t, "ORD-20250304-001", a)
	assert.Equal(t, "ORD-20250305-001", b)
}

func TestNumbererSeedsFromExistingOrders(t *testing.T) {
	orders := newMemOrders()
	orders.taken["ORD-20250304-001"] = true
	orders.taken["ORD-20250304-017"] = true
	orders.taken["ORD-20250303-090"] = true

	n := NewNumberer(newMemSequences(), orders, jst)
	number, err := n.Next(context.Background(), time.Date(2025, 3, 4, 12, 0, 0, 0, jst))
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250304-018", number)
}

func TestNumbererConcurrentAllocationsAreUnique(t *testing.T) {
	n := NewNumberer(newMemSequences(), newMemOrders(), jst)
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, jst)

	// Seed first so every goroutine goes straight to the counter.
	_, err := n.Next(context.Background(), now)
	require.NoError(t, err)

	const workers = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]bool{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := n.Next(context.Background(), now)
			assert.NoError(t, err)
			mu.Lock()
			seen[number] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers)
}

func TestOrderStatusesAreKnown(t *testing.T) {
	for _, s := range models.OrderStatuses {
		assert.True(t, s.Valid())
	}
}
