package category

import (
	"github.com/finbot-app/finbot/internal/apperr"
)

type Category string

const (
	Food           Category = "Food"
	Rent           Category = "Rent"
	Utilities      Category = "Utilities"
	Transportation Category = "Transportation"
	Healthcare     Category = "Healthcare"
	Entertainment  Category = "Entertainment"
	Shopping       Category = "Shopping"
	Education      Category = "Education"
	Travel         Category = "Travel"
	Groceries      Category = "Groceries"
	Insurance      Category = "Insurance"
	DebtPayment    Category = "Debt Payment"
	Savings        Category = "Savings"
	OtherExpense   Category = "Other Expense"
	Trip           Category = "Trip"

	Salary      Category = "Salary"
	Freelance   Category = "Freelance"
	Investment  Category = "Investment"
	Gift        Category = "Gift"
	OtherIncome Category = "Other Income"
)

var expense = []Category{
	Food, Rent, Utilities, Transportation, Healthcare, Entertainment, Shopping, Education,
	Travel, Groceries, Insurance, DebtPayment, Savings, OtherExpense, Trip,
}

var income = []Category{Salary, Freelance, Investment, Gift, OtherIncome}

var budgetable = toSet(expense)
var known = toSet(append(append([]Category{}, expense...), income...))

func toSet(categories []Category) map[Category]struct{} {
	set := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return set
}

// Expense lists the categories a budget may target.
func Expense() []Category {
	return append([]Category(nil), expense...)
}

func Income() []Category {
	return append([]Category(nil), income...)
}

// Valid reports whether c belongs to the closed set accepted on transactions.
func (c Category) Valid() bool {
	_, ok := known[c]
	return ok
}

// Budgetable reports whether a budget may be set for c. Income-side categories never are.
func (c Category) Budgetable() bool {
	_, ok := budgetable[c]
	return ok
}

// IsIncome reports whether c is one of the income-side categories.
func (c Category) IsIncome() bool {
	_, ok := known[c]
	return ok && !c.Budgetable()
}

func (c Category) String() string {
	return string(c)
}

// Parse accepts any category a transaction may carry.
func Parse(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", apperr.Invalid("category", "unknown category "+s)
	}
	return c, nil
}

// ParseBudgetable accepts only the expense-side categories.
func ParseBudgetable(s string) (Category, error) {
	c, err := Parse(s)
	if err != nil {
		return "", err
	}
	if !c.Budgetable() {
		return "", apperr.Invalid("category", s+" cannot be budgeted")
	}
	return c, nil
}
