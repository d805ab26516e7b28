package mockserver

import "github.com/samber/lo"

// DefaultPhone is used by /mcp/stream when the caller sends no phone number.
const DefaultPhone = "8888888888"

// TestUser is one phone number with a canned data set.
type TestUser struct {
	Phone    string
	Scenario string
}

// TestUsers lists every phone number the mock accepts.
var TestUsers = []TestUser{
	{"1111111111", "Credit card heavy - More credit transactions"},
	{"2222222222", "Investment focused - More MF and stock transactions"},
	{"3333333333", "Retirement focused - EPF heavy"},
	{"4444444444", "Young professional - Growth investments"},
	{"5555555555", "Family oriented - Child expenses"},
	{"6666666666", "Debt heavy - Loan payments"},
	{"7777777777", "Savings focused - High savings rate"},
	{"8888888888", "Rich subscriptions - Many streaming services and gym"},
	{"9999999999", "Default - Basic transactions with some subscriptions"},
	{"1010101010", "Basic user - Simple transactions"},
	{"1212121212", "Salary focused - Regular income patterns"},
	{"1313131313", "Mixed portfolio - Balanced transactions"},
	{"1414141414", "Conservative - Low risk transactions"},
	{"2020202020", "High spender - Large transactions"},
	{"2121212121", "Student - Limited income"},
	{"2525252525", "Business owner - Business transactions"},
}

// AllowedNumbers returns the accepted phone numbers in display order.
func AllowedNumbers() []string {
	return lo.Map(TestUsers, func(u TestUser, _ int) string { return u.Phone })
}

// IsAllowed reports whether phone has test data.
func IsAllowed(phone string) bool {
	return lo.ContainsBy(TestUsers, func(u TestUser) bool { return u.Phone == phone })
}
