package finance

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// DefaultToday is the fixed reference date used for subscription staleness.
var DefaultToday = time.Date(2025, 7, 22, 0, 0, 0, 0, time.UTC)

// Days without a payment after which a recurring charge looks unused.
const unusedAfterDays = 45

// Subscription is a recurring debit found in bank transactions.
type Subscription struct {
	Name                 string  `json:"name"`
	LastPaidDate         string  `json:"last_paid_date"`
	EstimatedMonthlyCost float64 `json:"estimated_monthly_cost"`
	TransactionCount     int     `json:"transaction_count"`
	Status               string  `json:"status"`
}

// SubscriptionInfo is the result of DetectSubscriptions.
type SubscriptionInfo struct {
	TotalMonthlyCost float64        `json:"total_monthly_cost"`
	PotentialSavings float64        `json:"potential_savings"`
	Subscriptions    []Subscription `json:"subscriptions"`
}

var narrationKey = regexp.MustCompile(`[a-zA-Z\s]+`)

type debit struct {
	amount decimal.Decimal
	date   time.Time
}

// DetectSubscriptions groups debit rows by the leading alphabetic run of the
// narration; any group seen more than once is a subscription.
func DetectSubscriptions(bankData map[string]any, today time.Time) SubscriptionInfo {
	info := SubscriptionInfo{Subscriptions: []Subscription{}}
	banks, ok := asSlice(bankData["bankTransactions"])
	if !ok {
		return info
	}

	groups := make(map[string][]debit)
	for _, b := range banks {
		txns, _ := asSlice(path(b, "txns"))
		for _, t := range txns {
			row, ok := asSlice(t)
			if !ok || len(row) < 4 {
				continue
			}
			if typ, ok := toFloat(row[3]); !ok || typ != 2 {
				continue
			}
			amount, ok := toDecimal(row[0])
			if !ok {
				continue
			}
			date, ok := parseDate(text(row[2]))
			if !ok {
				continue
			}
			key := strings.ToUpper(strings.TrimSpace(narrationKey.FindString(text(row[1]))))
			if key == "" {
				continue
			}
			groups[key] = append(groups[key], debit{amount: amount, date: date})
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	today = truncateDay(today)
	total, savings := decimal.Zero, decimal.Zero
	for _, key := range keys {
		rows := groups[key]
		if len(rows) < 2 {
			continue
		}
		sum := decimal.Zero
		last := rows[0].date
		for _, r := range rows {
			sum = sum.Add(r.amount)
			if r.date.After(last) {
				last = r.date
			}
		}
		avg := sum.Div(decimal.NewFromInt(int64(len(rows))))

		status := "active"
		if int(today.Sub(truncateDay(last)).Hours()/24) > unusedAfterDays {
			status = "potentially_unused"
			savings = savings.Add(avg)
		}
		total = total.Add(avg)

		info.Subscriptions = append(info.Subscriptions, Subscription{
			Name:                 titleCase(key),
			LastPaidDate:         last.Format(time.DateOnly),
			EstimatedMonthlyCost: avg.Round(2).InexactFloat64(),
			TransactionCount:     len(rows),
			Status:               status,
		})
	}

	sort.SliceStable(info.Subscriptions, func(i, j int) bool {
		return info.Subscriptions[i].LastPaidDate > info.Subscriptions[j].LastPaidDate
	})
	info.TotalMonthlyCost = total.Round(2).InexactFloat64()
	info.PotentialSavings = savings.Round(2).InexactFloat64()
	return info
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	}
	if f, ok := toFloat(v); ok {
		return decimal.NewFromFloat(f), true
	}
	return decimal.Zero, false
}

var dateLayouts = []string{time.DateOnly, time.RFC3339, time.DateTime, "2006-01-02T15:04:05"}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// titleCase upper-cases the first letter of every alphabetic run and
// lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// AutoDebit is a subscription recognised from an auto-debit narration.
type AutoDebit struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	Amount          int    `json:"amount"`
	Currency        string `json:"currency"`
	BillingCycle    string `json:"billingCycle"`
	NextBilling     string `json:"nextBilling"`
	Status          string `json:"status"`
	Icon            string `json:"icon"`
	Color           string `json:"color"`
	Description     string `json:"description"`
	LastTransaction string `json:"lastTransaction"`
}

// AutoDebitList is the /get-subscriptions payload.
type AutoDebitList struct {
	Subscriptions []AutoDebit `json:"subscriptions"`
	TotalCount    int         `json:"total_count"`
	Currency      string      `json:"currency"`
	Error         string      `json:"error,omitempty"`
}

type merchant struct {
	pattern, name, icon, color, category string
}

// Ordered so that specific Google products match before GOOGLE.
var merchants = []merchant{
	{"NETFLIX", "Netflix", "🎬", "red", "Entertainment"},
	{"SPOTIFY", "Spotify Premium", "🎵", "green", "Music"},
	{"AMAZON PRIME", "Amazon Prime", "📦", "orange", "Shopping"},
	{"YOUTUBE", "YouTube Premium", "📺", "red", "Entertainment"},
	{"GOOGLE CLOUD", "Google Cloud Storage", "☁️", "blue", "Technology"},
	{"MICROSOFT", "Microsoft 365", "💼", "blue", "Productivity"},
	{"ADOBE", "Adobe Creative Cloud", "🎨", "purple", "Creative"},
	{"GOOGLE", "Google Services", "🔍", "blue", "Technology"},
}

var sampleAutoDebits = [][]any{
	{"499", "AUTO-DEBIT - NETFLIX MONTHLY - EXP: 2024-07-10", "2024-06-10"},
	{"299", "AUTO-DEBIT - SPOTIFY PREMIUM - EXP: 2024-07-05", "2024-06-12"},
	{"799", "AUTO-DEBIT - AMAZON PRIME ANNUAL - EXP: 2025-06-20", "2024-06-15"},
	{"1100", "AUTO-DEBIT - GOOGLE CLOUD STORAGE - EXP: 2024-07-15", "2024-06-17"},
	{"129", "AUTO-DEBIT - YOUTUBE PREMIUM - EXP: 2024-07-10", "2024-06-18"},
}

// isoLocal matches the naive ISO timestamps the frontend expects.
const isoLocal = "2006-01-02T15:04:05.999999"

// AutoDebitSubscriptions scans bankTransactionsResponse.transactions for
// auto-debit narrations of known merchants. When nothing matches it falls
// back to a built-in sample so the dashboard is never empty.
func AutoDebitSubscriptions(bankData map[string]any, now time.Time) AutoDebitList {
	rows, _ := asSlice(path(bankData, "bankTransactionsResponse", "transactions"))
	subs := matchAutoDebits(rows, now)
	if len(subs) == 0 {
		sample := make([]any, len(sampleAutoDebits))
		for i, r := range sampleAutoDebits {
			sample[i] = r
		}
		subs = matchAutoDebits(sample, now)
	}
	return AutoDebitList{Subscriptions: subs, TotalCount: len(subs), Currency: "INR"}
}

func matchAutoDebits(rows []any, now time.Time) []AutoDebit {
	subs := []AutoDebit{}
	seen := make(map[string]bool)
	for _, r := range rows {
		var amount any
		var desc, date string
		switch row := r.(type) {
		case []any:
			if len(row) < 3 {
				continue
			}
			amount, desc, date = row[0], text(row[1]), text(row[2])
		case map[string]any:
			amount = row["amount"]
			if amount == nil {
				amount = "0"
			}
			desc, _ = row["description"].(string)
			date, _ = row["date"].(string)
		default:
			continue
		}
		desc = strings.ToUpper(desc)
		if !strings.Contains(desc, "AUTO") {
			continue
		}
		for _, m := range merchants {
			if !strings.Contains(desc, m.pattern) {
				continue
			}
			if !seen[m.name] {
				seen[m.name] = true
				subs = append(subs, AutoDebit{
					Name:            m.name,
					Category:        m.category,
					Amount:          wholeAmount(amount),
					Currency:        "INR",
					BillingCycle:    "Monthly",
					NextBilling:     nextBilling(date, now).Format(isoLocal),
					Status:          "Active",
					Icon:            m.icon,
					Color:           m.color,
					Description:     "Auto-debit from " + date,
					LastTransaction: date,
				})
			}
			break
		}
	}
	return subs
}

func wholeAmount(v any) int {
	switch n := v.(type) {
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	case float64:
		return int(n)
	}
	return 0
}

func nextBilling(date string, now time.Time) time.Time {
	t, err := time.ParseInLocation(time.DateOnly, date, now.Location())
	if err != nil {
		return now.AddDate(0, 0, 30)
	}
	next := t.AddDate(0, 0, 30)
	if next.Before(now) {
		return now.AddDate(0, 0, 30)
	}
	return next
}

// FallbackSubscriptions is served when bank transactions cannot be fetched.
func FallbackSubscriptions(now time.Time) AutoDebitList {
	subs := []AutoDebit{
		{
			Name: "Netflix", Category: "Entertainment", Amount: 499, Currency: "INR",
			BillingCycle: "Monthly", NextBilling: now.AddDate(0, 0, 15).Format(isoLocal),
			Status: "Active", Icon: "🎬", Color: "red",
			Description: "Premium Plan - 4K Ultra HD", LastTransaction: "2024-06-10",
		},
		{
			Name: "Amazon Prime", Category: "Shopping", Amount: 1499, Currency: "INR",
			BillingCycle: "Yearly", NextBilling: now.AddDate(0, 0, 45).Format(isoLocal),
			Status: "Active", Icon: "📦", Color: "orange",
			Description: "Annual Membership", LastTransaction: "2024-06-15",
		},
		{
			Name: "Spotify Premium", Category: "Music", Amount: 299, Currency: "INR",
			BillingCycle: "Monthly", NextBilling: now.AddDate(0, 0, 8).Format(isoLocal),
			Status: "Active", Icon: "🎵", Color: "green",
			Description: "Individual Plan", LastTransaction: "2024-06-12",
		},
	}
	return AutoDebitList{Subscriptions: subs, TotalCount: len(subs), Currency: "INR"}
}
