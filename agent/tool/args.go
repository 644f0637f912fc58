package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// decodeArgs keeps numbers as json.Number so integer checks see the
// literal the model sent.
func decodeArgs(raw string) (map[string]any, error) {
	args := map[string]any{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	return args, nil
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func symbolArg(args map[string]any) string {
	return strings.ToUpper(stringArg(args, "symbol"))
}

func orderTypeArg(args map[string]any) string {
	if v := strings.ToLower(stringArg(args, "order_type")); v != "" {
		return v
	}
	return "market"
}

func errorOutput(reason string) string {
	return "Error: " + reason
}
