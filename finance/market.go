package finance

import "strings"

// MarketPerformance returns canned 1-year returns for symbols plus NIFTY 50.
func MarketPerformance(symbols []string) map[string]map[string]float64 {
	out := map[string]map[string]float64{"NIFTY 50": {"1y_return": 12.0}}
	for _, s := range symbols {
		r := 13.0
		switch {
		case strings.Contains(s, "RELIANCE"):
			r = 15.5
		case strings.Contains(s, "TCS"):
			r = 11.0
		}
		out[s] = map[string]float64{"1y_return": r}
	}
	return out
}
