package finance

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

// Health score components, 20 points each.
const (
	ComponentEmergencyFund   = "emergency_fund"
	ComponentDebtManagement  = "debt_management"
	ComponentSavingsRate     = "savings_rate"
	ComponentDiversification = "investment_diversification"
	ComponentCreditHealth    = "credit_health"

	componentMax = 20
	// Assumed monthly expenses for the emergency fund ratio.
	assumedMonthlyExpenses = 50000
)

// HealthInputs are the raw provider payloads a score is computed from.
// A nil field means the fetch failed.
type HealthInputs struct {
	NetWorth any
	Bank     any
	Credit   any
	MF       any
	Stock    any
	EPF      any
}

// HealthResult is the v2 financial health score.
type HealthResult struct {
	Score       int            `json:"score"`
	HealthLevel string         `json:"health_level"`
	Feedback    string         `json:"feedback"`
	Components  map[string]int `json:"components"`
	MaxScore    int            `json:"max_score"`
}

var errBadInput = errors.New("unexpected payload shape")

// HealthScore rates five components of 20 points each. Malformed data yields
// a neutral 50 with health level Unknown.
func HealthScore(in HealthInputs) HealthResult {
	res, err := scoreHealth(in)
	if err != nil {
		return HealthResult{
			Score:       50,
			HealthLevel: "Unknown",
			Feedback:    "Unable to calculate score due to data issues.",
			Components:  map[string]int{},
			MaxScore:    100,
		}
	}
	return res
}

func scoreHealth(in HealthInputs) (HealthResult, error) {
	c := map[string]int{
		ComponentEmergencyFund:   0,
		ComponentDebtManagement:  0,
		ComponentSavingsRate:     0,
		ComponentDiversification: 0,
		ComponentCreditHealth:    0,
	}

	if nw, ok := asMap(in.NetWorth); ok && present(nw) {
		if resp, has := nw["netWorthResponse"]; has {
			units := path(resp, "totalNetWorthValue", "units")
			if units == nil {
				units = "0"
			}
			netWorth, ok := toFloat(units)
			if !ok {
				return HealthResult{}, fmt.Errorf("net worth units: %w", errBadInput)
			}
			if present(in.Bank) {
				ratio := netWorth / (assumedMonthlyExpenses * 6)
				c[ComponentEmergencyFund] = tier(ratio >= 1, ratio >= 0.5, ratio >= 0.25)
			}
		}
	}

	credit, hasCredit := creditResponse(in.Credit)
	if hasCredit {
		loans, _ := asSlice(credit["activeLoans"])
		n := len(loans)
		c[ComponentDebtManagement] = tier(n == 0, n <= 2, n <= 4)
	}

	if present(in.Bank) && present(in.MF) {
		mf, ok := asMap(in.MF)
		if !ok {
			return HealthResult{}, fmt.Errorf("mutual funds: %w", errBadInput)
		}
		txns, _ := asSlice(path(mf, "mfTransactionsResponse", "transactions"))
		n := len(txns)
		c[ComponentSavingsRate] = tier(n > 10, n > 5, n > 2)
	}

	kinds := lo.CountBy([]any{in.MF, in.Stock, path(in.NetWorth, "netWorthResponse", "epfDetails")}, present)
	c[ComponentDiversification] = tier(kinds >= 3, kinds == 2, kinds == 1)

	if hasCredit {
		score := 0.0
		if v, ok := credit["creditScore"]; ok && v != nil {
			f, ok := toFloat(v)
			if !ok {
				return HealthResult{}, fmt.Errorf("credit score: %w", errBadInput)
			}
			score = f
		}
		c[ComponentCreditHealth] = tier(score >= 750, score >= 650, score >= 550)
	}

	total := lo.Sum(lo.Values(c))
	level, feedback := healthLevel(total)
	return HealthResult{Score: total, HealthLevel: level, Feedback: feedback, Components: c, MaxScore: 100}, nil
}

func creditResponse(v any) (map[string]any, bool) {
	m, ok := asMap(v)
	if !ok || !present(m) {
		return nil, false
	}
	resp, has := m["creditReportResponse"]
	if !has {
		return nil, false
	}
	r, _ := asMap(resp)
	return r, true
}

// tier maps three descending thresholds onto 20/15/10, else 5.
func tier(top, high, mid bool) int {
	switch {
	case top:
		return 20
	case high:
		return 15
	case mid:
		return 10
	}
	return 5
}

func healthLevel(score int) (string, string) {
	switch {
	case score >= 80:
		return "Excellent", "Outstanding! You're managing your finances exceptionally well."
	case score >= 60:
		return "Good", "Good! You're on track with most goals."
	case score >= 40:
		return "Fair", "Fair. There's room for improvement in several areas."
	}
	return "Poor", "Needs attention. Consider focusing on building emergency funds and reducing debt."
}

// ComponentAnalysis explains one health score component.
type ComponentAnalysis struct {
	Score          int    `json:"score"`
	MaxScore       int    `json:"max_score"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// AnalysisOverview heads a detailed analysis.
type AnalysisOverview struct {
	TotalNetWorth        any    `json:"total_net_worth"`
	FinancialHealthScore int    `json:"financial_health_score"`
	HealthLevel          string `json:"health_level"`
}

// DataSummary counts the records the analysis looked at.
type DataSummary struct {
	TotalTransactions int `json:"total_transactions"`
	InvestmentCount   int `json:"investment_count"`
	StockCount        int `json:"stock_count"`
	ActiveLoans       int `json:"active_loans"`
}

// Analysis is the detailed financial analysis.
type Analysis struct {
	Error           string                       `json:"error,omitempty"`
	Overview        AnalysisOverview             `json:"overview"`
	Components      map[string]ComponentAnalysis `json:"components,omitempty"`
	Recommendations []string                     `json:"recommendations,omitempty"`
	DataSummary     *DataSummary                 `json:"data_summary,omitempty"`
}

var componentText = map[string][2]string{
	ComponentEmergencyFund: {
		"Measures if you have 6+ months of expenses saved",
		"Aim to save 6-12 months of living expenses in a liquid account",
	},
	ComponentDebtManagement: {
		"Evaluates your current debt load and management",
		"Keep debt-to-income ratio below 40% and prioritize high-interest debt",
	},
	ComponentSavingsRate: {
		"Assesses your regular savings and investment contributions",
		"Save at least 20% of your income, including retirement contributions",
	},
	ComponentDiversification: {
		"Evaluates portfolio diversification across asset classes",
		"Diversify across stocks, bonds, real estate, and other assets",
	},
	ComponentCreditHealth: {
		"Measures your credit score and credit history",
		"Maintain a credit score above 750 and keep credit utilization low",
	},
}

var analysisRecommendations = []string{
	"Build an emergency fund covering 6-12 months of expenses",
	"Increase your monthly savings rate to at least 20%",
	"Diversify your investment portfolio across different asset classes",
	"Monitor and improve your credit score regularly",
	"Consider consulting a financial advisor for personalized advice",
}

// DetailedAnalysis expands a health score with per-component guidance and
// record counts. Any missing payload yields the error form.
func DetailedAnalysis(in HealthInputs, score HealthResult) Analysis {
	nw, ok1 := asMap(in.NetWorth)
	_, ok2 := asMap(in.Bank)
	_, ok3 := asMap(in.MF)
	_, ok4 := asMap(in.Stock)
	_, ok5 := asMap(in.Credit)
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return Analysis{
			Error:    "Unable to generate detailed analysis due to data issues.",
			Overview: AnalysisOverview{TotalNetWorth: "0", FinancialHealthScore: 50, HealthLevel: "Unknown"},
		}
	}

	total := path(nw, "netWorthResponse", "totalNetWorthValue", "units")
	if total == nil {
		total = "0"
	}
	components := make(map[string]ComponentAnalysis, len(componentText))
	for name, t := range componentText {
		components[name] = ComponentAnalysis{
			Score:          score.Components[name],
			MaxScore:       componentMax,
			Description:    t[0],
			Recommendation: t[1],
		}
	}
	count := func(v any, keys ...string) int {
		s, _ := asSlice(path(v, keys...))
		return len(s)
	}
	return Analysis{
		Overview: AnalysisOverview{
			TotalNetWorth:        total,
			FinancialHealthScore: score.Score,
			HealthLevel:          score.HealthLevel,
		},
		Components:      components,
		Recommendations: append([]string(nil), analysisRecommendations...),
		DataSummary: &DataSummary{
			TotalTransactions: count(in.Bank, "bankTransactionsResponse", "transactions"),
			InvestmentCount:   count(in.MF, "mfTransactionsResponse", "transactions"),
			StockCount:        count(in.Stock, "stockTransactionsResponse", "transactions"),
			ActiveLoans:       count(in.Credit, "creditReportResponse", "activeLoans"),
		},
	}
}
