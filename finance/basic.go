package finance

import (
	"fmt"

	"github.com/samber/lo"
)

// Transaction is a flattened, categorized bank transaction.
type Transaction struct {
	Amount    float64 `json:"amount"`
	Narration string  `json:"narration"`
	Date      string  `json:"date"`
	Type      string  `json:"type"`
	Mode      string  `json:"mode"`
	Balance   float64 `json:"balance"`
	Category  string  `json:"category"`
}

// FlattenBankTransactions turns every bank's txns rows into Transactions.
// Type 1 is a credit; anything else is a debit.
func FlattenBankTransactions(bankData map[string]any) ([]Transaction, error) {
	var out []Transaction
	banks, _ := asSlice(bankData["bankTransactions"])
	for _, b := range banks {
		txns, _ := asSlice(path(b, "txns"))
		for _, t := range txns {
			row, ok := asSlice(t)
			if !ok || len(row) < 6 {
				return nil, fmt.Errorf("bank transaction row: %w", errBadInput)
			}
			amount, ok := toFloat(row[0])
			if !ok {
				return nil, fmt.Errorf("amount %v: %w", row[0], errBadInput)
			}
			balance, ok := toFloat(row[5])
			if !ok {
				return nil, fmt.Errorf("balance %v: %w", row[5], errBadInput)
			}
			typ := "DEBIT"
			if f, _ := toFloat(row[3]); f == 1 {
				typ = "CREDIT"
			}
			narration := text(row[1])
			out = append(out, Transaction{
				Amount:    amount,
				Narration: narration,
				Date:      text(row[2]),
				Type:      typ,
				Mode:      text(row[4]),
				Balance:   balance,
				Category:  Categorize(narration),
			})
		}
	}
	return out, nil
}

var securityAssets = []string{"ASSET_TYPE_INDIAN_SECURITIES", "ASSET_TYPE_US_SECURITIES"}

// InvestmentTotal adds mutual fund amounts, EPF and pension balances, and
// the current value of Indian and US securities.
func InvestmentTotal(mf, epf, netWorth any) float64 {
	var total float64

	groups, _ := asSlice(path(mf, "mfTransactions"))
	for _, g := range groups {
		txns, _ := asSlice(path(g, "txns"))
		total += sumColumn(txns, 4)
	}

	accounts, _ := asSlice(path(epf, "uanAccounts"))
	for _, a := range accounts {
		bal, ok := asMap(path(a, "rawDetails", "overall_pf_balance"))
		if !ok {
			continue
		}
		total += floatOr(bal["current_pf_balance"], 0)
		total += floatOr(bal["pension_balance"], 0)
	}

	assets, _ := asSlice(path(netWorth, "netWorthResponse", "assetValues"))
	for _, a := range assets {
		attr, _ := path(a, "netWorthAttribute").(string)
		if lo.Contains(securityAssets, attr) {
			total += floatOr(path(a, "value", "units"), 0)
		}
	}
	return total
}

// BasicScore is the v1 health score out of 100.
type BasicScore struct {
	SavingsScore       int `json:"savings_score"`
	EmergencyFundScore int `json:"emergency_fund_score"`
	InvestmentScore    int `json:"investment_score"`
	TotalScore         int `json:"total_score"`
}

// BasicHealthScore scores savings rate (40), emergency fund progress (30)
// and investments relative to annualized income (30).
func BasicHealthScore(txns []Transaction, totalInvestments, emergencyProgress float64) BasicScore {
	sumType := func(typ string) float64 {
		return lo.SumBy(txns, func(t Transaction) float64 {
			if t.Type == typ {
				return t.Amount
			}
			return 0
		})
	}
	income, spending := sumType("CREDIT"), sumType("DEBIT")

	var s BasicScore
	savingsRate := 0.0
	if income > 0 {
		savingsRate = (income - spending) / income
	}
	switch {
	case savingsRate > 0.20:
		s.SavingsScore = 40
	case savingsRate > 0.10:
		s.SavingsScore = 25
	default:
		s.SavingsScore = 10
	}

	switch {
	case emergencyProgress > 0.9:
		s.EmergencyFundScore = 30
	case emergencyProgress > 0.5:
		s.EmergencyFundScore = 20
	default:
		s.EmergencyFundScore = 5
	}

	ratio := 0.0
	if annual := income * 12; annual > 0 {
		ratio = totalInvestments / annual
	}
	switch {
	case ratio > 1:
		s.InvestmentScore = 30
	case ratio > 0.5:
		s.InvestmentScore = 20
	default:
		s.InvestmentScore = 10
	}

	s.TotalScore = s.SavingsScore + s.EmergencyFundScore + s.InvestmentScore
	return s
}
