package google

import (
	"fmt"
	"strings"
	"time"

	"famledger/internal/core"
)

// Columns of the mirror sheet, A through G.
var header = []any{"ID", "Family ID", "Family", "Amount", "Attachment", "Labels", "Created At"}

// expenseRow renders an expense as one sheet row. The amount is written
// verbatim since it is a display string.
func expenseRow(e core.FamilyExpense) []any {
	return []any{
		e.ID,
		e.FamilyID,
		e.FamilyName,
		e.Amount,
		e.AttachmentURL,
		strings.Join(e.Labels, ", "),
		e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// findRow returns the 1-based sheet row whose column A equals id, or 0.
func findRow(colA [][]any, id string) int {
	for i, row := range colA {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:G%d", sheet, row, row)
}
