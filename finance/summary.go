package finance

import (
	"time"

	"github.com/Sanidhya49/Invested/fimcp"
)

// SummaryKey maps a data key to the section SafeSummary writes it under.
func SummaryKey(key fimcp.DataKey) string {
	switch key {
	case fimcp.BankTransactions:
		return "bank_summary"
	case fimcp.CreditReport:
		return "credit_summary"
	case fimcp.MFTransactions:
		return "mf_summary"
	case fimcp.NetWorth:
		return "net_worth_summary"
	case fimcp.EPFDetails:
		return "epf_summary"
	case fimcp.StockTransactions:
		return "stock_summary"
	}
	return ""
}

// SafeSummary condenses fetched payloads (keyed by data key) into a small,
// store-friendly document stamped with mcp_cache_timestamp.
func SafeSummary(data map[string]any, now time.Time) map[string]any {
	out := map[string]any{
		"mcp_cache_timestamp": now.UTC().Format("2006-01-02T15:04:05.999999"),
	}

	if bank, ok := asMap(data[string(fimcp.BankTransactions)]); ok {
		if banks, ok := asSlice(bank["bankTransactions"]); ok {
			out["bank_summary"] = bankSummary(banks)
		}
	}
	if credit, ok := asMap(data[string(fimcp.CreditReport)]); ok {
		if s, ok := creditSummary(credit); ok {
			out["credit_summary"] = s
		}
	}
	if mf, ok := asMap(data[string(fimcp.MFTransactions)]); ok {
		if funds, ok := asSlice(mf["mfTransactions"]); ok {
			out["mf_summary"] = mfSummary(funds)
		}
	}
	if nw, ok := asMap(data[string(fimcp.NetWorth)]); ok {
		out["net_worth_summary"] = netWorthSummary(nw)
	}
	if epf, ok := asMap(data[string(fimcp.EPFDetails)]); ok {
		out["epf_summary"] = epfSummary(epf)
	}
	if stock, ok := asMap(data[string(fimcp.StockTransactions)]); ok {
		out["stock_summary"] = stockSummary(stock)
	}
	return out
}

func bankSummary(banks []any) map[string]any {
	total := 0
	recent := []any{}
	for _, b := range banks[:min(2, len(banks))] {
		bank, ok := asMap(b)
		if !ok {
			continue
		}
		txns, ok := asSlice(bank["txns"])
		if !ok {
			continue
		}
		total += len(txns)
		for _, t := range txns[:min(5, len(txns))] {
			row, ok := asSlice(t)
			if !ok || len(row) < 4 {
				continue
			}
			recent = append(recent, map[string]any{
				"amount":      text(row[0]),
				"description": truncate(text(row[1]), 100),
				"date":        text(row[2]),
				"type":        text(row[3]),
			})
		}
	}
	return map[string]any{
		"total_banks":         len(banks),
		"total_transactions":  total,
		"recent_transactions": recent,
	}
}

func creditSummary(credit map[string]any) (map[string]any, bool) {
	reports, ok := asSlice(credit["creditReports"])
	if !ok || len(reports) == 0 {
		return nil, false
	}
	report, ok := asMap(reports[0])
	if !ok {
		return nil, false
	}
	data, ok := report["creditReportData"]
	if !ok {
		return nil, false
	}

	s := map[string]any{"score": "N/A", "total_accounts": 0, "total_balance": 0}
	if score, ok := asMap(path(data, "score")); ok {
		if v, ok := score["bureauScore"]; ok {
			s["score"] = text(v)
		}
	}
	if summary, ok := asMap(path(data, "creditAccount", "creditAccountSummary")); ok {
		if acct, ok := asMap(summary["account"]); ok {
			s["total_accounts"] = int(floatOr(acct["creditAccountTotal"], 0))
		}
		if bal, ok := asMap(summary["totalOutstandingBalance"]); ok {
			s["total_balance"] = int(floatOr(bal["outstandingBalanceAll"], 0))
		}
	}
	return s, true
}

func mfSummary(funds []any) map[string]any {
	var invested float64
	list := []any{}
	for _, f := range funds[:min(3, len(funds))] {
		fund, ok := asMap(f)
		if !ok {
			continue
		}
		info := map[string]any{
			"name":         truncate(textOr(fund, "schemeName"), 50),
			"folio":        textOr(fund, "folioId"),
			"transactions": 0,
		}
		if txns, ok := asSlice(fund["txns"]); ok {
			info["transactions"] = len(txns)
			invested += sumColumn(txns, 4)
		}
		list = append(list, info)
	}
	return map[string]any{"total_funds": len(funds), "total_investment": invested, "funds": list}
}

func netWorthSummary(nw map[string]any) map[string]any {
	s := map[string]any{"total_assets": 0.0, "total_liabilities": 0.0, "net_worth": 0.0}
	items, _ := asSlice(nw["netWorth"])
	for _, it := range items {
		item, ok := asMap(it)
		if !ok {
			continue
		}
		assets, ok1 := numberOrZero(item["totalAssets"])
		liabilities, ok2 := numberOrZero(item["totalLiabilities"])
		net, ok3 := numberOrZero(item["netWorth"])
		if ok1 && ok2 && ok3 {
			s["total_assets"], s["total_liabilities"], s["net_worth"] = assets, liabilities, net
			break
		}
	}
	return s
}

func epfSummary(epf map[string]any) map[string]any {
	s := map[string]any{"total_balance": 0.0, "account_count": 0}
	accounts, ok := asSlice(epf["epfDetails"])
	if !ok {
		return s
	}
	s["account_count"] = len(accounts)
	var total float64
	for _, a := range accounts[:min(2, len(accounts))] {
		if acct, ok := asMap(a); ok {
			if v, ok := numberOrZero(acct["currentBalance"]); ok {
				total += v
			}
		}
	}
	s["total_balance"] = total
	return s
}

func stockSummary(stock map[string]any) map[string]any {
	s := map[string]any{"total_transactions": 0, "total_investment": 0.0}
	txns, ok := asSlice(stock["stockTransactions"])
	if !ok {
		return s
	}
	s["total_transactions"] = len(txns)
	s["total_investment"] = sumColumn(txns[:min(5, len(txns))], 4)
	return s
}

// sumColumn adds row[col] over list rows that are long enough, skipping
// values that are not numeric.
func sumColumn(rows []any, col int) float64 {
	var total float64
	for _, r := range rows {
		row, ok := asSlice(r)
		if !ok || len(row) <= col {
			continue
		}
		if f, ok := toFloat(row[col]); ok {
			total += f
		}
	}
	return total
}

// numberOrZero treats a missing value as 0 and fails on a non-numeric one.
func numberOrZero(v any) (float64, bool) {
	if v == nil {
		return 0, true
	}
	return toFloat(v)
}

func textOr(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		return text(v)
	}
	return "Unknown"
}
