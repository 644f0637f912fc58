package guardrail

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/MazarSayed/stock-platform/pkg/keylock"
	"github.com/MazarSayed/stock-platform/pkg/metrics"
)

const (
	MinQuantity         = 1
	MaxQuantity         = 10000
	MaxOrdersPerSession = 10

	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

var (
	validOrderTypes = []string{OrderTypeMarket, OrderTypeLimit}
	symbolPattern   = regexp.MustCompile(`^[A-Z0-9]{1,5}$`)
)

// TradingTools are the tool names gated by the order ledger.
var TradingTools = []string{"buy_stock", "sell_stock", "buy_options", "sell_options"}

func IsTradingTool(name string) bool {
	for _, t := range TradingTools {
		if t == name {
			return true
		}
	}
	return false
}

// ToolGuardrails gates trading tool calls. The limit check, validation and
// ledger increment for one session run under a per-session lock.
type ToolGuardrails struct {
	ledger Ledger
	locks  *keylock.Locker
}

func NewToolGuardrails(ledger Ledger) *ToolGuardrails {
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	return &ToolGuardrails{
		ledger: ledger,
		locks:  keylock.New(),
	}
}

func (g *ToolGuardrails) ValidateSymbol(symbol string) Result {
	if symbol == "" {
		return Fail("Stock symbol cannot be empty")
	}
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(normalized) {
		return Fail(fmt.Sprintf("Invalid symbol format: %s. Symbols should be 1-5 uppercase alphanumeric characters", normalized))
	}
	return Pass()
}

// ValidateQuantity accepts Go integers and integral JSON numbers. Strings,
// booleans and fractional values are not integers.
func (g *ToolGuardrails) ValidateQuantity(quantity any) Result {
	n, ok := asInteger(quantity)
	if !ok {
		return Fail("Quantity must be an integer")
	}
	if n < MinQuantity {
		return Fail(fmt.Sprintf("Quantity must be at least %d", MinQuantity))
	}
	if n > MaxQuantity {
		return Fail(fmt.Sprintf("Quantity %d exceeds maximum allowed (%d shares/contracts)", n, MaxQuantity))
	}
	return Pass()
}

// ValidateOrderType passes an empty value, which callers default to market.
func (g *ToolGuardrails) ValidateOrderType(orderType string) Result {
	if orderType == "" {
		return Pass()
	}
	normalized := strings.ToLower(strings.TrimSpace(orderType))
	for _, t := range validOrderTypes {
		if t == normalized {
			return Pass()
		}
	}
	return Fail(fmt.Sprintf("Invalid order type: %s. Must be one of: %s", orderType, strings.Join(validOrderTypes, ", ")))
}

func (g *ToolGuardrails) CheckOrderLimit(ctx context.Context, sessionID string) (Result, error) {
	count, err := g.ledger.Count(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("read order count: %w", err)
	}
	if count >= MaxOrdersPerSession {
		return Fail(fmt.Sprintf("Maximum order limit (%d) reached for this session. Please start a new session.", MaxOrdersPerSession)), nil
	}
	return Pass(), nil
}

func (g *ToolGuardrails) IncrementOrderCount(ctx context.Context, sessionID string) error {
	count, err := g.ledger.Increment(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("increment order count: %w", err)
	}
	log.Info().Str("session_id", sessionID).Int("order_count", count).Msg("order count updated")
	return nil
}

// ValidateTradingTool passes non-trading tools untouched. For trading tools
// it checks, in order, the session limit, symbol, quantity and order type;
// the first failure wins. The ledger moves only on acceptance. An empty
// session id skips the ledger entirely.
func (g *ToolGuardrails) ValidateTradingTool(ctx context.Context, toolName string, args map[string]any, sessionID string) (Result, error) {
	if !IsTradingTool(toolName) {
		return Pass(), nil
	}

	if sessionID != "" {
		unlock, err := g.locks.LockContext(ctx, sessionID)
		if err != nil {
			return Result{}, err
		}
		defer unlock()
	}

	res, err := g.validateTradingTool(ctx, args, sessionID)
	if err != nil {
		return Result{}, err
	}
	if !res.Passed {
		log.Warn().Str("tool", toolName).Str("session_id", sessionID).Str("reason", res.Reason).Msg("trading tool rejected")
		metrics.RecordGuardrail("tool", "rejected")
		return res, nil
	}

	// Accepted orders stay counted even if the surrounding turn fails later.
	if sessionID != "" {
		if err := g.IncrementOrderCount(ctx, sessionID); err != nil {
			return Result{}, err
		}
	}
	metrics.RecordGuardrail("tool", "passed")
	return res, nil
}

func (g *ToolGuardrails) validateTradingTool(ctx context.Context, args map[string]any, sessionID string) (Result, error) {
	if sessionID != "" {
		limit, err := g.CheckOrderLimit(ctx, sessionID)
		if err != nil {
			return Result{}, err
		}
		if !limit.Passed {
			return limit, nil
		}
	}

	if res := g.ValidateSymbol(stringArg(args, "symbol", "")); !res.Passed {
		return res, nil
	}

	quantity, ok := args["quantity"]
	if !ok {
		quantity = 0
	}
	if res := g.ValidateQuantity(quantity); !res.Passed {
		return res, nil
	}

	if res := g.ValidateOrderType(stringArg(args, "order_type", OrderTypeMarket)); !res.Passed {
		return res, nil
	}
	return Pass(), nil
}

// ResetSession drops the session's ledger entry.
func (g *ToolGuardrails) ResetSession(ctx context.Context, sessionID string) error {
	unlock, err := g.locks.LockContext(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := g.ledger.Reset(ctx, sessionID); err != nil {
		return fmt.Errorf("reset order count: %w", err)
	}
	log.Info().Str("session_id", sessionID).Msg("order count reset")
	return nil
}

// OrderCount exposes the ledger value for a session.
func (g *ToolGuardrails) OrderCount(ctx context.Context, sessionID string) (int, error) {
	return g.ledger.Count(ctx, sessionID)
}

func stringArg(args map[string]any, key string, def string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func asInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return wholeFloat(float64(n))
	case float64:
		return wholeFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func wholeFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
