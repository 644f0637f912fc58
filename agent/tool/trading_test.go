package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
	"github.com/MazarSayed/stock-platform/agent/guardrail"
)

type fakePublisher struct {
	bodies []any
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, _ string, body any, _ time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.bodies = append(f.bodies, body)
	return "msg_1", nil
}

func tradingToolByName(t *testing.T, guard *guardrail.ToolGuardrails, alerts AlertPublisher, name string) einotool.InvokableTool {
	t.Helper()
	for _, tl := range TradingTools(guard, alerts) {
		info, err := tl.Info(context.Background())
		require.NoError(t, err)
		if info.Name == name {
			inv, ok := tl.(einotool.InvokableTool)
			require.True(t, ok)
			return inv
		}
	}
	t.Fatalf("tool %s not found", name)
	return nil
}

func sessionCtx(id string) context.Context {
	return contractx.WithSessionID(context.Background(), id)
}

func TestStockOrderConfirmation(t *testing.T) {
	t.Parallel()

	guard := guardrail.NewToolGuardrails(nil)
	buy := tradingToolByName(t, guard, nil, ToolBuyStock)

	out, err := buy.InvokableRun(sessionCtx("s1"), `{"symbol":" aapl ","quantity":10}`)
	require.NoError(t, err)
	assert.Equal(t, "Order placed: Buy 10 shares of AAPL (market order)", out)

	sell := tradingToolByName(t, guard, nil, ToolSellStock)
	out, err = sell.InvokableRun(sessionCtx("s1"), `{"symbol":"MSFT","quantity":5,"order_type":"LIMIT"}`)
	require.NoError(t, err)
	assert.Equal(t, "Order placed: Sell 5 shares of MSFT (limit order)", out)

	count, err := guard.OrderCount(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStockOrderRejectedByGuardrail(t *testing.T) {
	t.Parallel()

	guard := guardrail.NewToolGuardrails(nil)
	buy := tradingToolByName(t, guard, nil, ToolBuyStock)

	cases := []struct {
		args string
		want string
	}{
		{args: `{"symbol":"TOOLONG","quantity":1}`, want: "Error: Invalid symbol format: TOOLONG. Symbols should be 1-5 uppercase alphanumeric characters"},
		{args: `{"symbol":"AAPL","quantity":0}`, want: "Error: Quantity must be at least 1"},
		{args: `{"symbol":"AAPL","quantity":10.5}`, want: "Error: Quantity must be an integer"},
		{args: `{"symbol":"AAPL","quantity":"10"}`, want: "Error: Quantity must be an integer"},
		{args: `{"symbol":"AAPL","quantity":20000}`, want: "Error: Quantity 20000 exceeds maximum allowed (10000 shares/contracts)"},
		{args: `{"symbol":"AAPL","quantity":1,"order_type":"stop"}`, want: "Error: Invalid order type: stop. Must be one of: market, limit"},
		{args: `not json`, want: "Error: invalid tool arguments"},
	}
	for _, tc := range cases {
		out, err := buy.InvokableRun(sessionCtx("s1"), tc.args)
		require.NoError(t, err, tc.args)
		assert.Equal(t, tc.want, out, tc.args)
	}

	count, err := guard.OrderCount(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOrderLimitPerSession(t *testing.T) {
	t.Parallel()

	guard := guardrail.NewToolGuardrails(nil)
	buy := tradingToolByName(t, guard, nil, ToolBuyStock)

	for i := 0; i < guardrail.MaxOrdersPerSession; i++ {
		out, err := buy.InvokableRun(sessionCtx("s1"), `{"symbol":"AAPL","quantity":1}`)
		require.NoError(t, err)
		require.Contains(t, out, "Order placed")
	}

	out, err := buy.InvokableRun(sessionCtx("s1"), `{"symbol":"AAPL","quantity":1}`)
	require.NoError(t, err)
	assert.Equal(t, "Error: Maximum order limit (10) reached for this session. Please start a new session.", out)

	out, err = buy.InvokableRun(sessionCtx("s2"), `{"symbol":"AAPL","quantity":1}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Order placed")
}

func TestOptionOrder(t *testing.T) {
	t.Parallel()

	guard := guardrail.NewToolGuardrails(nil)
	buy := tradingToolByName(t, guard, nil, ToolBuyOptions)

	out, err := buy.InvokableRun(sessionCtx("s1"), `{"symbol":"tsla","option_type":"Call","quantity":2}`)
	require.NoError(t, err)
	assert.Equal(t, "Order placed: Buy 2 call option contracts of TSLA (market order)", out)

	out, err = buy.InvokableRun(sessionCtx("s1"), `{"symbol":"TSLA","option_type":"straddle","quantity":2}`)
	require.NoError(t, err)
	assert.Equal(t, "Error: Option type must be 'call' or 'put'", out)

	count, err := guard.OrderCount(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClearPositions(t *testing.T) {
	t.Parallel()

	guard := guardrail.NewToolGuardrails(nil)
	clearTool := tradingToolByName(t, guard, nil, ToolClearPositions)

	out, err := clearTool.InvokableRun(sessionCtx("s1"), `{}`)
	require.NoError(t, err)
	assert.Equal(t, "All open positions have been cleared.", out)

	out, err = clearTool.InvokableRun(sessionCtx("s1"), `{"symbol":"nvda"}`)
	require.NoError(t, err)
	assert.Equal(t, "All open positions for NVDA have been cleared.", out)

	out, err = clearTool.InvokableRun(sessionCtx("s1"), `{"symbol":"NOT-A-SYMBOL"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Error: Invalid symbol format")

	count, err := guard.OrderCount(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, count, "clear_positions does not count as an order")
}

func TestPriceAlert(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	alert := tradingToolByName(t, guardrail.NewToolGuardrails(nil), pub, ToolStockPriceAlert)

	out, err := alert.InvokableRun(sessionCtx("s1"), `{"symbol":"aapl","target_price":200}`)
	require.NoError(t, err)
	assert.Equal(t, "Price alert set for AAPL: Alert when price goes above $200.00", out)

	out, err = alert.InvokableRun(sessionCtx("s1"), `{"symbol":"AAPL","target_price":"150.255","direction":"below"}`)
	require.NoError(t, err)
	assert.Equal(t, "Price alert set for AAPL: Alert when price goes below $150.26", out)

	require.Len(t, pub.bodies, 2)
	first, ok := pub.bodies[0].(PriceAlert)
	require.True(t, ok)
	assert.Equal(t, "s1", first.SessionID)
	assert.Equal(t, "200.00", first.TargetPrice)
}

func TestPriceAlertValidation(t *testing.T) {
	t.Parallel()

	alert := tradingToolByName(t, guardrail.NewToolGuardrails(nil), nil, ToolStockPriceAlert)

	cases := []struct {
		args string
		want string
	}{
		{args: `{"symbol":"AAPL"}`, want: "Error: Target price is required"},
		{args: `{"symbol":"AAPL","target_price":-5}`, want: "Error: Target price must be greater than zero"},
		{args: `{"symbol":"AAPL","target_price":"abc"}`, want: "Error: Target price must be a number"},
		{args: `{"symbol":"AAPL","target_price":10,"direction":"flat"}`, want: "Error: Direction must be 'above' or 'below'"},
		{args: `{"target_price":10}`, want: "Error: Stock symbol cannot be empty"},
	}
	for _, tc := range cases {
		out, err := alert.InvokableRun(sessionCtx("s1"), tc.args)
		require.NoError(t, err, tc.args)
		assert.Equal(t, tc.want, out, tc.args)
	}
}

func TestPriceAlertPublishFailure(t *testing.T) {
	t.Parallel()

	alert := tradingToolByName(t, guardrail.NewToolGuardrails(nil), &fakePublisher{err: errors.New("down")}, ToolStockPriceAlert)

	out, err := alert.InvokableRun(sessionCtx("s1"), `{"symbol":"AAPL","target_price":10}`)
	require.NoError(t, err)
	assert.Equal(t, "Error: could not schedule the price alert, please try again later", out)
}
