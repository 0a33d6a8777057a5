package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ExpenseSummary aggregates the expenses of one family.
type ExpenseSummary struct {
	FamilyID    string          `json:"familyId"`
	Count       int             `json:"count"`
	Total       decimal.Decimal `json:"total"`
	Unparseable int             `json:"unparseable"`
}

// Summarize totals the amounts of the given expenses. Amounts are display
// strings that are never validated on write, so the ones that do not parse as
// decimals are counted instead of summed.
func Summarize(familyID string, expenses []FamilyExpense) ExpenseSummary {
	s := ExpenseSummary{FamilyID: familyID, Total: decimal.Zero}
	for _, e := range expenses {
		s.Count++
		amt, err := decimal.NewFromString(strings.TrimSpace(e.Amount))
		if err != nil {
			s.Unparseable++
			continue
		}
		s.Total = s.Total.Add(amt)
	}
	return s
}
