package finance

import (
	"strings"

	"github.com/samber/lo"
)

type categoryRule struct {
	keywords []string
	category string
}

// Checked in order; the first rule with a matching keyword wins.
var categoryRules = []categoryRule{
	{[]string{"zomato", "swiggy"}, "Food & Dining"},
	{[]string{"salary"}, "Income"},
	{[]string{"uber"}, "Transport"},
	{[]string{"netflix"}, "Entertainment"},
	{[]string{"sip", "mutual fund"}, "Investments"},
	{[]string{"rent"}, "Rent & Utilities"},
	{[]string{"groceries"}, "Groceries"},
}

// Categorize assigns a spending category from a transaction description.
func Categorize(description string) string {
	desc := strings.ToLower(description)
	for _, r := range categoryRules {
		if lo.ContainsBy(r.keywords, func(k string) bool { return strings.Contains(desc, k) }) {
			return r.category
		}
	}
	return "Other"
}
