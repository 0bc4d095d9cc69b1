package core

import "github.com/shopspring/decimal"

// SampleTransactions is the demo ledger shown before any statement has been
// imported.
func SampleTransactions() []TransactionRecord {
	return []TransactionRecord{
		{ID: "1", Description: "Monthly Groceries", Amount: decimal.RequireFromString("245.50"), Category: "Food", Date: "2024-04-12", Kind: KindExpense, Merchant: "Whole Foods", Location: "San Francisco, CA"},
		{ID: "2", Description: "Netflix Subscription", Amount: decimal.RequireFromString("15.99"), Category: "Entertainment", Date: "2024-04-11", Kind: KindExpense, Merchant: "Netflix"},
		{ID: "3", Description: "Salary Deposit", Amount: decimal.RequireFromString("3500.00"), Category: "Income", Date: "2024-04-01", Kind: KindIncome, Merchant: "Tech Corp Inc"},
		{ID: "4", Description: "Uber Eats Dinner", Amount: decimal.RequireFromString("25.99"), Category: "Food", Date: "2024-04-10", Kind: KindExpense, Merchant: "Uber Eats", Location: "San Francisco, CA"},
		{ID: "5", Description: "Grocery Shopping", Amount: decimal.RequireFromString("85.47"), Category: "Food", Date: "2024-04-08", Kind: KindExpense, Merchant: "Whole Foods", Location: "San Francisco, CA"},
		{ID: "6", Description: "Monthly Salary", Amount: decimal.RequireFromString("4250.00"), Category: "Income", Date: "2024-04-01", Kind: KindIncome, Merchant: "Tech Corp Inc"},
		{ID: "7", Description: "Apartment Rent", Amount: decimal.RequireFromString("1800.00"), Category: "Housing", Date: "2024-04-01", Kind: KindExpense},
		{ID: "8", Description: "Uber Ride", Amount: decimal.RequireFromString("18.50"), Category: "Transport", Date: "2024-04-09", Kind: KindExpense, Merchant: "Uber", Location: "San Francisco, CA"},
		{ID: "9", Description: "Starbucks Coffee", Amount: decimal.RequireFromString("5.75"), Category: "Food", Date: "2024-04-11", Kind: KindExpense, Merchant: "Starbucks", Location: "San Francisco, CA"},
		{ID: "10", Description: "Amazon Purchase", Amount: decimal.RequireFromString("67.99"), Category: "Shopping", Date: "2024-04-07", Kind: KindExpense, Merchant: "Amazon"},
	}
}
