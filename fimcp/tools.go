package fimcp

// DataKey names one category of user financial data.
type DataKey string

const (
	NetWorth          DataKey = "net_worth"
	BankTransactions  DataKey = "bank_transactions"
	CreditReport      DataKey = "credit_report"
	EPFDetails        DataKey = "epf_details"
	MFTransactions    DataKey = "mf_transactions"
	StockTransactions DataKey = "stock_transactions"
	Goals             DataKey = "goals"
)

// AllFinancialKeys are the six categories served by the stream endpoint.
var AllFinancialKeys = []DataKey{
	NetWorth, BankTransactions, CreditReport, EPFDetails, MFTransactions, StockTransactions,
}

// StreamTool returns the /mcp/stream tool name for k.
func (k DataKey) StreamTool() string {
	return "fetch_" + string(k)
}

// FileName returns the name of the test data file for k.
func (k DataKey) FileName() string {
	if k == Goals {
		return "goals.json"
	}
	return k.StreamTool() + ".json"
}

// MCP tool names served over JSON-RPC.
const (
	ToolGetNetWorth          = "GetNetWorth"
	ToolGetBankTransactions  = "GetBankTransactions"
	ToolGetMFTransactions    = "GetMFTransactions"
	ToolGetStockTransactions = "GetStockTransactions"
	ToolGetEPFDetails        = "GetEPFDetails"
	ToolGetCreditReport      = "GetCreditReport"
	ToolGetGoals             = "GetGoals"
	ToolAddGoal              = "AddGoal"
	ToolUpdateGoal           = "UpdateGoal"
	ToolDeleteGoal           = "DeleteGoal"
)

// ToolInfo describes an MCP tool.
type ToolInfo struct {
	Name        string
	Description string
	// File is the data file a read tool serves; empty for goal mutations.
	File string
}

// Tools lists every MCP tool the mock provider registers.
var Tools = []ToolInfo{
	{ToolGetBankTransactions, "Retrieves a user's bank transaction history.", BankTransactions.FileName()},
	{ToolGetNetWorth, "Retrieves a user's net worth summary.", NetWorth.FileName()},
	{ToolGetMFTransactions, "Retrieves a user's mutual fund transaction history.", MFTransactions.FileName()},
	{ToolGetStockTransactions, "Retrieves a user's stock transaction history.", StockTransactions.FileName()},
	{ToolGetEPFDetails, "Retrieves a user's EPF details.", EPFDetails.FileName()},
	{ToolGetCreditReport, "Retrieves a user's credit report.", CreditReport.FileName()},
	{ToolGetGoals, "Retrieves all financial goals for a user.", Goals.FileName()},
	{ToolAddGoal, "Adds a new financial goal for a user.", ""},
	{ToolUpdateGoal, "Updates an existing financial goal for a user.", ""},
	{ToolDeleteGoal, "Deletes a financial goal for a user.", ""},
}
