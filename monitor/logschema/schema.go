package logschema

import (
	"fmt"
	"sort"
	"strings"
)

// Schema 定义每个日志事件所需的关键字段，便于集中校验。
type Schema struct {
	Event    string
	Required []string
}

var schemas = map[string]Schema{
	"quote_cycle": {
		Event:    "quote_cycle",
		Required: []string{"symbol", "outcome", "intervalMs"},
	},
	"indicator_update": {
		Event:    "indicator_update",
		Required: []string{"symbol", "volatility", "momentum", "avgVolume", "volumeSpike"},
	},
	"proposal": {
		Event:    "proposal",
		Required: []string{"symbol", "mid", "adjustedMid", "baseRatio", "buy", "sell"},
	},
	"degenerate_quote": {
		Event:    "degenerate_quote",
		Required: []string{"symbol", "error"},
	},
	"order_update": {
		Event:    "order_update",
		Required: []string{"symbol", "status", "clientOrderId"},
	},
	"fill": {
		Event:    "fill",
		Required: []string{"symbol", "side", "amount", "price"},
	},
	"feed_state": {
		Event:    "feed_state",
		Required: []string{"symbol", "state"},
	},
}

// Known 返回所有事件名，便于外部生成文档。
func Known() []string {
	names := make([]string, 0, len(schemas))
	for k := range schemas {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate 检查日志字段是否包含 schema 中要求的 key。
func Validate(event string, fields map[string]interface{}) error {
	s, ok := schemas[event]
	if !ok {
		return nil
	}
	var missing []string
	for _, key := range s.Required {
		if _, exists := fields[key]; !exists {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ","))
	}
	return nil
}
