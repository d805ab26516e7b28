package finance

import (
	"errors"
	"fmt"
	"math"
)

// NetWorthOverview is the dashboard net worth card.
type NetWorthOverview struct {
	TotalNetworth    int64   `json:"total_networth"`
	TotalAssets      int64   `json:"total_assets"`
	TotalLiabilities int64   `json:"total_liabilities"`
	ChangePercentage float64 `json:"change_percentage"`
	Currency         string  `json:"currency"`
}

// DefaultNetWorthTotals is shown when net worth data is unavailable.
func DefaultNetWorthTotals() NetWorthOverview {
	return NetWorthOverview{
		TotalNetworth:    1500000,
		TotalAssets:      2000000,
		TotalLiabilities: 500000,
		ChangePercentage: 5.2,
		Currency:         "INR",
	}
}

// NetWorthTotals splits assetValues into assets (positive) and liabilities
// (the absolute value of the rest).
func NetWorthTotals(data map[string]any) (NetWorthOverview, error) {
	if len(data) == 0 {
		return NetWorthOverview{}, errors.New("net worth data is empty")
	}
	if e, ok := data["error"]; ok && present(e) {
		return NetWorthOverview{}, fmt.Errorf("net worth data: %v", e)
	}

	resp, _ := asMap(data["netWorthResponse"])
	out := NetWorthOverview{Currency: "INR"}
	assets, _ := asSlice(resp["assetValues"])
	for _, a := range assets {
		units, err := unitsOf(path(a, "value", "units"))
		if err != nil {
			return NetWorthOverview{}, err
		}
		if units > 0 {
			out.TotalAssets += units
		} else {
			out.TotalLiabilities += int64(math.Abs(float64(units)))
		}
	}
	total, err := unitsOf(path(resp, "totalNetWorthValue", "units"))
	if err != nil {
		return NetWorthOverview{}, err
	}
	out.TotalNetworth = total
	return out, nil
}

func unitsOf(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("invalid units %v", v)
	}
	return int64(f), nil
}
