package event_bus

import "github.com/shopspring/decimal"

const (
	// LedgerChangedType is published after any committed write that changes what reports would show.
	LedgerChangedType EventType = "ledger.changed"
	// BudgetAlertType is published once per budget when its spending crosses the alert threshold.
	BudgetAlertType EventType = "budget.alert"
)

type LedgerChanged struct {
	UserId int
	// Source names the operation, e.g. "transaction.created".
	Source string
}

type BudgetAlert struct {
	UserId      int
	BudgetId    string
	Category    string
	Month       int
	Year        int
	Limit       decimal.Decimal
	Spent       decimal.Decimal
	PercentUsed decimal.Decimal
	Threshold   int
}
