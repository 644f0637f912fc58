package guardrail

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOrder() map[string]any {
	return map[string]any{"symbol": "AAPL", "quantity": 10, "order_type": "market"}
}

func TestValidateSymbol(t *testing.T) {
	t.Parallel()

	g := NewToolGuardrails(nil)
	assert.Equal(t, "Stock symbol cannot be empty", g.ValidateSymbol("").Reason)
	assert.True(t, g.ValidateSymbol(" aapl ").Passed)
	assert.True(t, g.ValidateSymbol("BRK1").Passed)

	res := g.ValidateSymbol("googl.x")
	assert.False(t, res.Passed)
	assert.Equal(t, "Invalid symbol format: GOOGL.X. Symbols should be 1-5 uppercase alphanumeric characters", res.Reason)
	assert.False(t, g.ValidateSymbol("TOOLONG").Passed)
}

func TestValidateQuantity(t *testing.T) {
	t.Parallel()

	g := NewToolGuardrails(nil)
	for _, ok := range []any{1, int64(10000), float64(25), json.Number("300"), uint8(7)} {
		assert.True(t, g.ValidateQuantity(ok).Passed, "%v", ok)
	}
	for _, bad := range []any{"10", true, 2.5, json.Number("1.5"), nil} {
		assert.Equal(t, "Quantity must be an integer", g.ValidateQuantity(bad).Reason, "%v", bad)
	}
	assert.Equal(t, "Quantity must be at least 1", g.ValidateQuantity(0).Reason)
	assert.Equal(t, "Quantity 50000 exceeds maximum allowed (10000 shares/contracts)", g.ValidateQuantity(50000).Reason)
}

func TestValidateOrderType(t *testing.T) {
	t.Parallel()

	g := NewToolGuardrails(nil)
	assert.True(t, g.ValidateOrderType("").Passed)
	assert.True(t, g.ValidateOrderType("LIMIT").Passed)
	assert.Equal(t, "Invalid order type: stop. Must be one of: market, limit", g.ValidateOrderType("stop").Reason)
}

func TestValidateTradingToolIgnoresOtherTools(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	g := NewToolGuardrails(ledger)
	res, err := g.ValidateTradingTool(context.Background(), "clear_positions", map[string]any{}, "s1")
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.False(t, ledger.Has("s1"))
}

func TestValidateTradingToolRejectionLeavesLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := NewMemoryLedger()
	g := NewToolGuardrails(ledger)

	res, err := g.ValidateTradingTool(ctx, "buy_stock", map[string]any{
		"symbol": "aapl", "quantity": 50000, "order_type": "market",
	}, "s1")
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Reason, "exceeds maximum allowed")

	count, err := g.OrderCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestValidateTradingToolCheckOrder(t *testing.T) {
	t.Parallel()

	g := NewToolGuardrails(nil)
	res, err := g.ValidateTradingTool(context.Background(), "sell_stock", map[string]any{
		"symbol": "", "quantity": 0, "order_type": "stop",
	}, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Stock symbol cannot be empty", res.Reason)

	res, err = g.ValidateTradingTool(context.Background(), "sell_stock", map[string]any{
		"symbol": "MSFT", "quantity": 0, "order_type": "stop",
	}, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Quantity must be at least 1", res.Reason)
}

func TestValidateTradingToolSessionCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := NewToolGuardrails(NewMemoryLedger())

	for i := 1; i <= MaxOrdersPerSession; i++ {
		res, err := g.ValidateTradingTool(ctx, "buy_options", validOrder(), "s1")
		require.NoError(t, err)
		require.True(t, res.Passed, "order %d", i)

		count, err := g.OrderCount(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, i, count)
	}

	// Limit wins even when every other field is invalid.
	res, err := g.ValidateTradingTool(ctx, "buy_stock", map[string]any{
		"symbol": "!!!", "quantity": "lots", "order_type": "stop",
	}, "s1")
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Reason, "Maximum order limit (10)")

	count, err := g.OrderCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, MaxOrdersPerSession, count)

	require.NoError(t, g.ResetSession(ctx, "s1"))
	res, err = g.ValidateTradingTool(ctx, "buy_stock", validOrder(), "s1")
	require.NoError(t, err)
	assert.True(t, res.Passed)

	count, err = g.OrderCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestResetSessionRemovesEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := NewMemoryLedger()
	g := NewToolGuardrails(ledger)

	_, err := g.ValidateTradingTool(ctx, "buy_stock", validOrder(), "s1")
	require.NoError(t, err)
	require.True(t, ledger.Has("s1"))

	require.NoError(t, g.ResetSession(ctx, "s1"))
	assert.False(t, ledger.Has("s1"))
}

func TestValidateTradingToolConcurrentCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := NewToolGuardrails(NewMemoryLedger())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.ValidateTradingTool(ctx, "buy_stock", validOrder(), "s-concurrent")
			if err != nil {
				t.Errorf("ValidateTradingTool() error = %v", err)
				return
			}
			if res.Passed {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, MaxOrdersPerSession, accepted)
}
