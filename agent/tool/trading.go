package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
	"github.com/MazarSayed/stock-platform/agent/guardrail"
)

const (
	ToolBuyStock        = "buy_stock"
	ToolSellStock       = "sell_stock"
	ToolBuyOptions      = "buy_options"
	ToolSellOptions     = "sell_options"
	ToolClearPositions  = "clear_positions"
	ToolStockPriceAlert = "stock_price_alert"
)

// AlertPublisher delivers price alerts to the notification pipeline.
type AlertPublisher interface {
	Publish(ctx context.Context, destination string, body any, delay time.Duration) (string, error)
}

// PriceAlert is the payload published for stock_price_alert.
type PriceAlert struct {
	SessionID   string    `json:"session_id"`
	Symbol      string    `json:"symbol"`
	TargetPrice string    `json:"target_price"`
	Direction   string    `json:"direction"`
	CreatedAt   time.Time `json:"created_at"`
}

// tradingTool runs every call through ToolGuardrails. precheck covers the
// arguments the guardrail does not know about and runs first, so a call it
// rejects never reaches the order ledger.
type tradingTool struct {
	info     *schema.ToolInfo
	guard    *guardrail.ToolGuardrails
	precheck func(args map[string]any) string
	run      func(ctx context.Context, args map[string]any) (string, error)
}

var _ einotool.InvokableTool = (*tradingTool)(nil)

func (t *tradingTool) Info(context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

func (t *tradingTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...einotool.Option) (string, error) {
	args, err := decodeArgs(argumentsInJSON)
	if err != nil {
		log.Warn().Err(err).Str("tool", t.info.Name).Msg("invalid tool arguments")
		return errorOutput("invalid tool arguments"), nil
	}

	if t.precheck != nil {
		if reason := t.precheck(args); reason != "" {
			return errorOutput(reason), nil
		}
	}

	res, err := t.guard.ValidateTradingTool(ctx, t.info.Name, args, contractx.SessionIDFrom(ctx))
	if err != nil {
		return "", err
	}
	if !res.Passed {
		return errorOutput(res.Reason), nil
	}

	return t.run(ctx, args)
}

var orderParams = map[string]*schema.ParameterInfo{
	"symbol":     {Type: schema.String, Desc: "Stock symbol, e.g. AAPL or GOOGL", Required: true},
	"quantity":   {Type: schema.Integer, Desc: "Number of shares", Required: true},
	"order_type": {Type: schema.String, Desc: "Order type, market or limit (default market)", Enum: []string{"market", "limit"}},
}

var optionParams = map[string]*schema.ParameterInfo{
	"symbol":      {Type: schema.String, Desc: "Underlying stock symbol, e.g. AAPL", Required: true},
	"option_type": {Type: schema.String, Desc: "call or put", Enum: []string{"call", "put"}, Required: true},
	"quantity":    {Type: schema.Integer, Desc: "Number of option contracts", Required: true},
	"order_type":  {Type: schema.String, Desc: "Order type, market or limit (default market)", Enum: []string{"market", "limit"}},
}

func newStockOrderTool(guard *guardrail.ToolGuardrails, name string, side string) *tradingTool {
	return &tradingTool{
		info: &schema.ToolInfo{
			Name:        name,
			Desc:        fmt.Sprintf("%s shares of a stock.", side),
			ParamsOneOf: schema.NewParamsOneOfByParams(orderParams),
		},
		guard: guard,
		run: func(_ context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf("Order placed: %s %s shares of %s (%s order)",
				side, stringArg(args, "quantity"), symbolArg(args), orderTypeArg(args)), nil
		},
	}
}

func newOptionOrderTool(guard *guardrail.ToolGuardrails, name string, side string) *tradingTool {
	return &tradingTool{
		info: &schema.ToolInfo{
			Name:        name,
			Desc:        fmt.Sprintf("%s call or put option contracts.", side),
			ParamsOneOf: schema.NewParamsOneOfByParams(optionParams),
		},
		guard: guard,
		precheck: func(args map[string]any) string {
			switch strings.ToLower(stringArg(args, "option_type")) {
			case "call", "put":
				return ""
			default:
				return "Option type must be 'call' or 'put'"
			}
		},
		run: func(_ context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf("Order placed: %s %s %s option contracts of %s (%s order)",
				side, stringArg(args, "quantity"), strings.ToLower(stringArg(args, "option_type")), symbolArg(args), orderTypeArg(args)), nil
		},
	}
}

func newClearPositionsTool(guard *guardrail.ToolGuardrails) *tradingTool {
	return &tradingTool{
		info: &schema.ToolInfo{
			Name: ToolClearPositions,
			Desc: "Clear all open positions, or only the positions of one symbol.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": {Type: schema.String, Desc: "Optional stock symbol; omit to clear everything"},
			}),
		},
		guard: guard,
		precheck: func(args map[string]any) string {
			if symbol := symbolArg(args); symbol != "" {
				if res := guard.ValidateSymbol(symbol); !res.Passed {
					return res.Reason
				}
			}
			return ""
		},
		run: func(_ context.Context, args map[string]any) (string, error) {
			if symbol := symbolArg(args); symbol != "" {
				return fmt.Sprintf("All open positions for %s have been cleared.", symbol), nil
			}
			return "All open positions have been cleared.", nil
		},
	}
}

func newPriceAlertTool(guard *guardrail.ToolGuardrails, alerts AlertPublisher) *tradingTool {
	return &tradingTool{
		info: &schema.ToolInfo{
			Name: ToolStockPriceAlert,
			Desc: "Set a price alert that fires when a stock moves above or below a target price.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol":       {Type: schema.String, Desc: "Stock symbol, e.g. AAPL", Required: true},
				"target_price": {Type: schema.Number, Desc: "Target price in USD", Required: true},
				"direction":    {Type: schema.String, Desc: "above or below (default above)", Enum: []string{"above", "below"}},
			}),
		},
		guard: guard,
		precheck: func(args map[string]any) string {
			if res := guard.ValidateSymbol(symbolArg(args)); !res.Passed {
				return res.Reason
			}
			if _, reason := targetPrice(args); reason != "" {
				return reason
			}
			switch alertDirection(args) {
			case "above", "below":
				return ""
			default:
				return "Direction must be 'above' or 'below'"
			}
		},
		run: func(ctx context.Context, args map[string]any) (string, error) {
			symbol := symbolArg(args)
			price, _ := targetPrice(args)
			direction := alertDirection(args)

			if alerts != nil {
				alert := PriceAlert{
					SessionID:   contractx.SessionIDFrom(ctx),
					Symbol:      symbol,
					TargetPrice: price.StringFixed(2),
					Direction:   direction,
					CreatedAt:   time.Now().UTC(),
				}
				id, err := alerts.Publish(ctx, "", alert, 0)
				if err != nil {
					log.Error().Err(err).Str("symbol", symbol).Msg("publish price alert")
					return errorOutput("could not schedule the price alert, please try again later"), nil
				}
				log.Info().Str("symbol", symbol).Str("message_id", id).Msg("price alert published")
			}

			return fmt.Sprintf("Price alert set for %s: Alert when price goes %s $%s", symbol, direction, price.StringFixed(2)), nil
		},
	}
}

func targetPrice(args map[string]any) (decimal.Decimal, string) {
	raw := stringArg(args, "target_price")
	if raw == "" {
		return decimal.Decimal{}, "Target price is required"
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, "Target price must be a number"
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, "Target price must be greater than zero"
	}
	return price, ""
}

func alertDirection(args map[string]any) string {
	if v := strings.ToLower(stringArg(args, "direction")); v != "" {
		return v
	}
	return "above"
}

// TradingTools returns the task agent's tool set.
func TradingTools(guard *guardrail.ToolGuardrails, alerts AlertPublisher) []einotool.BaseTool {
	if guard == nil {
		guard = guardrail.NewToolGuardrails(nil)
	}
	return []einotool.BaseTool{
		newStockOrderTool(guard, ToolBuyStock, "Buy"),
		newStockOrderTool(guard, ToolSellStock, "Sell"),
		newOptionOrderTool(guard, ToolBuyOptions, "Buy"),
		newOptionOrderTool(guard, ToolSellOptions, "Sell"),
		newClearPositionsTool(guard),
		newPriceAlertTool(guard, alerts),
	}
}
