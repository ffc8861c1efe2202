package invoice

import (
	"fmt"
	"time"

	"github.com/sells-group/freight-cli/internal/model"
)

// DefaultPaymentTermDays is the day of the following month payment is due.
const DefaultPaymentTermDays = 30

// Header identifies one monthly invoice.
type Header struct {
	Number      string    `json:"number"`
	IssueDate   time.Time `json:"issue_date"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	DueDate     time.Time `json:"due_date"`
}

// Month returns the first and last day of a calendar month.
func Month(year int, month time.Month) (time.Time, time.Time) {
	start := model.Date(year, month, 1)
	return start, start.AddDate(0, 1, -1)
}

// NewHeader builds the header for a month's invoice issued on issued. The
// due date is day paymentTermDays of the following month; days past the end
// of that month roll into the next, as with time.Date.
func NewHeader(year int, month time.Month, issued time.Time, paymentTermDays int) Header {
	if paymentTermDays <= 0 {
		paymentTermDays = DefaultPaymentTermDays
	}
	start, end := Month(year, month)
	return Header{
		Number:      fmt.Sprintf("INV-%04d%02d-001", year, int(month)),
		IssueDate:   model.Day(issued),
		PeriodStart: start,
		PeriodEnd:   end,
		DueDate:     model.Date(year, month+1, paymentTermDays),
	}
}
