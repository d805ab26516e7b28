package llm

import (
	"context"
	"fmt"

	"github.com/Sanidhya49/Invested/finance"
	"github.com/Sanidhya49/Invested/logger"
)

// Schema is the JSON-schema subset used to declare tool parameters.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Tool is a function the model may call. The handler's result is sent back
// to the model as {"content": result}.
type Tool struct {
	Name        string
	Description string
	Parameters  *Schema
	Handler     func(ctx context.Context, args map[string]any) (any, error)
}

// Rounds of function calls answered before the last response is returned.
const maxToolRounds = 4

// MarketToolName is the name the model uses to call MarketTool.
const MarketToolName = "get_market_performance"

// MarketTool reports 1-year returns for stock symbols and the NIFTY 50.
func MarketTool() Tool {
	return Tool{
		Name:        MarketToolName,
		Description: "Gets the real-time 1-year market performance for a list of stock symbols and the NIFTY 50 index.",
		Parameters: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"stock_symbols": {
					Type:        "array",
					Items:       &Schema{Type: "string"},
					Description: "A list of stock symbols to fetch performance for, e.g., ['RELIANCE', 'TCS']",
				},
			},
			Required: []string{"stock_symbols"},
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			var symbols []string
			switch v := args["stock_symbols"].(type) {
			case []any:
				for _, s := range v {
					if str, ok := s.(string); ok {
						symbols = append(symbols, str)
					}
				}
			case []string:
				symbols = v
			}
			logger.Infof("tool called: %s for symbols %v", MarketToolName, symbols)
			return finance.MarketPerformance(symbols), nil
		},
	}
}

// runTool executes the named tool and wraps its result as a function
// response payload.
func runTool(ctx context.Context, tools []Tool, name string, args map[string]any) map[string]any {
	for _, t := range tools {
		if t.Name != name {
			continue
		}
		res, err := t.Handler(ctx, args)
		if err != nil {
			logger.Warnf("tool %s failed: %v", name, err)
			return map[string]any{"error": err.Error()}
		}
		return map[string]any{"content": res}
	}
	return map[string]any{"error": fmt.Sprintf("unknown tool %s", name)}
}
